package reason

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/huginn/pkg/catalog"
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/pattern"
)

// maxRetainedTraces bounds the in-memory trace history.
const maxRetainedTraces = 100

// RuleInfo is the listing view of a rule.
type RuleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// DefinitionInfo is the listing view of an axiom or constraint.
type DefinitionInfo struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Kind        catalog.Kind     `json:"kind"`
	Severity    catalog.Severity `json:"severity"`
}

// RulePreview reports what a rule would do without applying it.
type RulePreview struct {
	RuleID  string           `json:"ruleId"`
	Matches int              `json:"matches"`
	Sample  []map[string]any `json:"sample,omitempty"`
}

// RunSummary aggregates one pass of every rule.
type RunSummary struct {
	Results       []ApplyResult `json:"results"`
	TotalInferred int           `json:"totalInferred"`
	TotalFailures int           `json:"totalFailures"`
	RanAt         time.Time     `json:"ranAt"`
}

// ValidateAndRunResult combines a validation pass with an inference pass.
// Violations are reported but never block inference.
type ValidateAndRunResult struct {
	Axioms          *CheckSummary `json:"axioms"`
	Constraints     *CheckSummary `json:"constraints,omitempty"`
	Inference       *RunSummary   `json:"inference"`
	ViolationsFound bool          `json:"violationsFound"`
}

// InferredFact is one derived node or edge as stored in the graph.
type InferredFact struct {
	Kind       string         `json:"kind"`
	ID         string         `json:"id"`
	Labels     []string       `json:"labels,omitempty"`
	Type       string         `json:"type,omitempty"`
	Properties map[string]any `json:"properties"`
}

// Statistics summarizes graph and catalog state.
type Statistics struct {
	Nodes        int64          `json:"nodes"`
	Edges        int64          `json:"edges"`
	DerivedNodes int            `json:"derivedNodes"`
	DerivedEdges int            `json:"derivedEdges"`
	NodesByLabel map[string]int `json:"nodesByLabel"`
	Rules        int            `json:"rules"`
	Axioms       int            `json:"axioms"`
	Constraints  int            `json:"constraints"`
}

// Service is the reasoning facade: rule application, axiom and constraint
// checking, derived-fact lifecycle, and trace retention. It is safe for
// concurrent use; write conflicts resolve in the store's merge layer.
type Service struct {
	store   graph.Store
	catalog *catalog.Catalog
	exec    *Executor
	checker *Checker
	log     *logrus.Logger

	mu     sync.Mutex
	traces map[string]*Trace
	order  []string
}

// NewService assembles a reasoning service over store and catalog.
func NewService(store graph.Store, cat *catalog.Catalog, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:   store,
		catalog: cat,
		exec:    NewExecutor(store, log),
		checker: NewChecker(store, log),
		log:     log,
		traces:  make(map[string]*Trace),
	}
}

// Rules lists the registered inference rules.
func (s *Service) Rules() []RuleInfo {
	rules := s.catalog.Rules()
	out := make([]RuleInfo, len(rules))
	for i, r := range rules {
		out[i] = RuleInfo{ID: r.ID, Name: r.Name, Description: r.Description, Category: r.Category}
	}
	return out
}

// Axioms lists the registered axioms.
func (s *Service) Axioms() []DefinitionInfo {
	axioms := s.catalog.Axioms()
	out := make([]DefinitionInfo, len(axioms))
	for i, a := range axioms {
		out[i] = DefinitionInfo{ID: a.ID, Name: a.Name, Description: a.Description, Kind: a.Kind, Severity: a.Severity}
	}
	return out
}

// Constraints lists the registered constraints.
func (s *Service) Constraints() []DefinitionInfo {
	constraints := s.catalog.Constraints()
	out := make([]DefinitionInfo, len(constraints))
	for i, c := range constraints {
		out[i] = DefinitionInfo{ID: c.ID, Name: c.Name, Description: c.Description, Kind: c.Kind, Severity: c.Severity}
	}
	return out
}

// CheckRule previews a rule's current candidates without writing anything.
func (s *Service) CheckRule(ctx context.Context, id string) (*RulePreview, error) {
	rule, ok := s.catalog.Rule(id)
	if !ok {
		return nil, fmt.Errorf("rule %q: %w", id, ErrDefinitionNotFound)
	}
	bindings, err := s.exec.Match(ctx, rule, nil)
	if err != nil {
		return nil, err
	}
	preview := &RulePreview{RuleID: id, Matches: len(bindings)}
	for i, b := range bindings {
		if i == 5 {
			break
		}
		preview.Sample = append(preview.Sample, b.Summary())
	}
	return preview, nil
}

// ApplyRule applies one rule without recording a trace.
func (s *Service) ApplyRule(ctx context.Context, id string) (*ApplyResult, error) {
	rule, ok := s.catalog.Rule(id)
	if !ok {
		return nil, fmt.Errorf("rule %q: %w", id, ErrDefinitionNotFound)
	}
	return s.exec.Apply(ctx, rule, nil)
}

// ApplyRuleWithTrace applies one rule and records a full execution trace.
// The trace is retained for later retrieval even when the apply fails.
func (s *Service) ApplyRuleWithTrace(ctx context.Context, id string) (*ApplyResult, *Trace, error) {
	rule, ok := s.catalog.Rule(id)
	if !ok {
		return nil, nil, fmt.Errorf("rule %q: %w", id, ErrDefinitionNotFound)
	}
	trace := NewTrace(rule.ID, rule.Name, rule.Description)
	s.retain(trace)
	result, err := s.exec.Apply(ctx, rule, trace)
	if err != nil {
		return nil, trace, err
	}
	return result, trace, nil
}

// RunAllRules applies every rule once, in catalog order. Rules whose match
// fails contribute an empty result; the pass continues.
func (s *Service) RunAllRules(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{RanAt: time.Now()}
	for _, rule := range s.catalog.Rules() {
		result, err := s.exec.Apply(ctx, rule, nil)
		if err != nil {
			s.log.WithField("rule", rule.ID).WithError(err).Error("rule pass failed")
			summary.Results = append(summary.Results, ApplyResult{
				RuleID: rule.ID, Status: "error", Inferred: []InferredItem{},
			})
			continue
		}
		summary.Results = append(summary.Results, *result)
		summary.TotalInferred += result.Count
		summary.TotalFailures += len(result.Failures)
	}
	return summary, nil
}

// CheckAxiom checks one axiom.
func (s *Service) CheckAxiom(ctx context.Context, id string) (*CheckResult, error) {
	axiom, ok := s.catalog.Axiom(id)
	if !ok {
		return nil, fmt.Errorf("axiom %q: %w", id, ErrDefinitionNotFound)
	}
	return s.checker.Check(ctx, axiom)
}

// CheckAllAxioms checks every axiom.
func (s *Service) CheckAllAxioms(ctx context.Context) (*CheckSummary, error) {
	axioms := s.catalog.Axioms()
	defs := make([]catalog.Validation, len(axioms))
	for i, a := range axioms {
		defs[i] = a
	}
	return s.checker.CheckAll(ctx, defs)
}

// CheckConstraint checks one constraint.
func (s *Service) CheckConstraint(ctx context.Context, id string) (*CheckResult, error) {
	cons, ok := s.catalog.Constraint(id)
	if !ok {
		return nil, fmt.Errorf("constraint %q: %w", id, ErrDefinitionNotFound)
	}
	return s.checker.Check(ctx, cons)
}

// CheckAllConstraints checks every constraint.
func (s *Service) CheckAllConstraints(ctx context.Context) (*CheckSummary, error) {
	constraints := s.catalog.Constraints()
	defs := make([]catalog.Validation, len(constraints))
	for i, c := range constraints {
		defs[i] = c
	}
	return s.checker.CheckAll(ctx, defs)
}

// ValidateAndRun checks axioms (and optionally constraints), then runs all
// rules regardless of the outcome. Validation findings are advisory; the
// result carries them alongside the inference summary.
func (s *Service) ValidateAndRun(ctx context.Context, includeConstraints bool) (*ValidateAndRunResult, error) {
	out := &ValidateAndRunResult{}

	axioms, err := s.CheckAllAxioms(ctx)
	if err != nil {
		return nil, err
	}
	out.Axioms = axioms
	out.ViolationsFound = axioms.TotalViolations > 0

	if includeConstraints {
		constraints, err := s.CheckAllConstraints(ctx)
		if err != nil {
			return nil, err
		}
		out.Constraints = constraints
		out.ViolationsFound = out.ViolationsFound || constraints.TotalViolations > 0
	}

	inference, err := s.RunAllRules(ctx)
	if err != nil {
		return nil, err
	}
	out.Inference = inference
	return out, nil
}

// InferredFacts lists derived nodes and edges, newest known ordering by
// ID for determinism. A limit of 0 returns everything.
func (s *Service) InferredFacts(ctx context.Context, limit int) ([]InferredFact, error) {
	var facts []InferredFact
	err := s.store.Read(ctx, func(v graph.View) error {
		for _, n := range v.AllNodes() {
			if n.Derived() {
				facts = append(facts, InferredFact{
					Kind: InferredNode, ID: string(n.ID), Labels: n.Labels, Properties: n.Properties,
				})
			}
		}
		for _, e := range v.AllEdges() {
			if e.Derived() {
				facts = append(facts, InferredFact{
					Kind: InferredRelationship, ID: string(e.ID), Type: e.Type, Properties: e.Properties,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Kind != facts[j].Kind {
			return facts[i].Kind < facts[j].Kind
		}
		return facts[i].ID < facts[j].ID
	})
	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return facts, nil
}

// ClearInferred removes every derived node and edge in bulk and returns
// how many elements were deleted. Individual derived facts are never
// deleted through any other path.
func (s *Service) ClearInferred(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteWhere(ctx,
		func(n *graph.Node) bool { return n.Derived() },
		func(e *graph.Edge) bool { return e.Derived() },
	)
	if err != nil {
		return 0, err
	}
	s.log.WithField("removed", removed).Info("cleared derived facts")
	return removed, nil
}

// Statistics reports graph and catalog counts.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		NodesByLabel: make(map[string]int),
		Rules:        len(s.catalog.Rules()),
		Axioms:       len(s.catalog.Axioms()),
		Constraints:  len(s.catalog.Constraints()),
	}
	err := s.store.Read(ctx, func(v graph.View) error {
		for _, n := range v.AllNodes() {
			stats.Nodes++
			if n.Derived() {
				stats.DerivedNodes++
			}
			for _, label := range n.Labels {
				stats.NodesByLabel[label]++
			}
		}
		for _, e := range v.AllEdges() {
			stats.Edges++
			if e.Derived() {
				stats.DerivedEdges++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Trace returns a retained trace by id.
func (s *Service) Trace(id string) (*Trace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.traces[id]
	return t, ok
}

// retain stores a trace, evicting the oldest beyond the cap.
func (s *Service) retain(t *Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[t.ID] = t
	s.order = append(s.order, t.ID)
	for len(s.order) > maxRetainedTraces {
		delete(s.traces, s.order[0])
		s.order = s.order[1:]
	}
}

// Match exposes candidate matching for callers that need the raw
// bindings rather than a preview or an apply.
func (s *Service) Match(ctx context.Context, id string) ([]*pattern.Binding, error) {
	rule, ok := s.catalog.Rule(id)
	if !ok {
		return nil, fmt.Errorf("rule %q: %w", id, ErrDefinitionNotFound)
	}
	return s.exec.Match(ctx, rule, nil)
}
