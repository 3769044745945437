package reason

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/huginn/pkg/catalog"
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/pattern"
)

// InferredItem describes one derived fact produced by a rule.
type InferredItem struct {
	Kind    string   `json:"kind"`
	ID      string   `json:"id"`
	Labels  []string `json:"labels,omitempty"`
	Type    string   `json:"type,omitempty"`
	Summary string   `json:"summary"`
}

const (
	// InferredNode and InferredRelationship are the InferredItem kinds.
	InferredNode         = "node"
	InferredRelationship = "relationship"
)

// ApplyFailure reports one candidate whose action failed. Other
// candidates of the same run are unaffected.
type ApplyFailure struct {
	Candidate map[string]any `json:"candidate"`
	Error     string         `json:"error"`
}

// ApplyResult is the outcome of applying one rule.
type ApplyResult struct {
	RuleID   string         `json:"ruleId"`
	Status   string         `json:"status"`
	Count    int            `json:"count"`
	Inferred []InferredItem `json:"inferred"`
	Failures []ApplyFailure `json:"failures,omitempty"`
}

// StatusSuccess is the apply status. Per-candidate failures reduce Count
// and are listed in Failures; they never change the status.
const StatusSuccess = "success"

// Executor evaluates rule patterns and materializes their actions as
// derived facts. All writes go through merge operations keyed on the
// candidate's identity, so re-applying a rule never duplicates facts.
type Executor struct {
	store graph.Store
	log   *logrus.Logger
}

// NewExecutor returns an executor writing to store.
func NewExecutor(store graph.Store, log *logrus.Logger) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{store: store, log: log}
}

// Match evaluates the rule's patterns against one snapshot and returns
// the union of their bindings. The graph is not modified. tr may be nil.
func (ex *Executor) Match(ctx context.Context, rule *catalog.Rule, tr pattern.Tracer) ([]*pattern.Binding, error) {
	var bindings []*pattern.Binding
	err := ex.store.Read(ctx, func(v graph.View) error {
		for _, p := range rule.Match {
			bs, err := pattern.Evaluate(v, p, tr)
			if err != nil {
				return err
			}
			bindings = append(bindings, bs...)
		}
		return nil
	})
	if err != nil {
		return nil, &MatchError{DefinitionID: rule.ID, Err: err}
	}
	return bindings, nil
}

// Apply matches the rule and derives facts for every candidate. A failing
// candidate is recorded and skipped; it never aborts the others. The
// returned result counts only facts that did not already exist.
//
// When a trace is supplied it receives the evaluation phases, one
// INFERENCE step per derived fact, and the terminal RESULT: SUCCESS when
// at least one fact was created, NO_MATCH otherwise, ERROR when the match
// itself failed.
func (ex *Executor) Apply(ctx context.Context, rule *catalog.Rule, trace *Trace) (*ApplyResult, error) {
	// A nil *Trace must stay a nil Tracer interface, or the evaluator's
	// nil check cannot see it.
	var tr pattern.Tracer
	if trace != nil {
		tr = trace
	}
	bindings, err := ex.Match(ctx, rule, tr)
	if err != nil {
		if trace != nil {
			trace.Complete(ResultError, 0, err)
		}
		ruleErrors.WithLabelValues(rule.ID).Inc()
		return nil, err
	}

	result := &ApplyResult{RuleID: rule.ID, Status: StatusSuccess, Inferred: []InferredItem{}}
	for _, b := range bindings {
		items, err := ex.applyCandidate(ctx, rule, b)
		if err != nil {
			result.Failures = append(result.Failures, ApplyFailure{
				Candidate: b.Summary(),
				Error:     err.Error(),
			})
			ex.log.WithFields(logrus.Fields{
				"rule":      rule.ID,
				"candidate": b.Summary(),
			}).WithError(err).Warn("candidate action failed")
			continue
		}
		for _, item := range items {
			result.Inferred = append(result.Inferred, item)
			result.Count++
			if trace != nil {
				trace.AddStep(StepInference, "merged derived fact into the graph", "", item.Summary, 1, nil)
				if item.Kind == InferredNode {
					label := ""
					if len(item.Labels) > 0 {
						label = item.Labels[0]
					}
					trace.OnEvidence(pattern.EvidenceItem{
						Kind:          pattern.EvidenceNode,
						ID:            item.ID,
						Label:         label,
						Justification: "derived by rule " + rule.ID,
					})
				} else {
					trace.OnEvidence(pattern.EvidenceItem{
						Kind:          pattern.EvidenceRelationship,
						ID:            item.ID,
						Label:         item.Type,
						Justification: "derived by rule " + rule.ID,
					})
				}
			}
		}
	}
	if trace != nil {
		if result.Count > 0 {
			trace.Complete(ResultSuccess, result.Count, nil)
		} else {
			trace.Complete(ResultNoMatch, 0, nil)
		}
	}

	ruleApplications.WithLabelValues(rule.ID).Inc()
	inferredFacts.WithLabelValues(rule.ID).Add(float64(result.Count))
	ex.log.WithFields(logrus.Fields{
		"rule":       rule.ID,
		"candidates": len(bindings),
		"inferred":   result.Count,
		"failures":   len(result.Failures),
	}).Info("rule applied")
	return result, nil
}

// applyCandidate materializes the rule's action for one binding. Panics
// in term resolution are contained and surface as an ApplyError.
func (ex *Executor) applyCandidate(ctx context.Context, rule *catalog.Rule, b *pattern.Binding) (items []InferredItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ApplyError{RuleID: rule.ID, Candidate: b.Summary(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	now := time.Now().UTC().Format(time.RFC3339)
	var newNode *graph.Node

	if tmpl := rule.Action.Node; tmpl != nil {
		labels := append(append([]string(nil), tmpl.Labels...), graph.LabelInferred)
		key := resolveTerms(tmpl.Key, b)
		key[graph.PropDerived] = true
		set := resolveTerms(tmpl.Set, b)
		set[graph.PropDerivedAt] = now
		set[graph.PropDerivedBy] = rule.ID

		node, created, mergeErr := ex.store.MergeNode(ctx, labels, key, set)
		if mergeErr != nil {
			return nil, &ApplyError{RuleID: rule.ID, Candidate: b.Summary(), Err: mergeErr}
		}
		newNode = node
		if created {
			items = append(items, InferredItem{
				Kind:    InferredNode,
				ID:      string(node.ID),
				Labels:  node.Labels,
				Summary: fmt.Sprintf("%s node %s", tmpl.Labels[0], node.ID),
			})
		}
	}

	if tmpl := rule.Action.Edge; tmpl != nil {
		from, err := ex.endpoint(tmpl.From, b, newNode)
		if err != nil {
			return nil, &ApplyError{RuleID: rule.ID, Candidate: b.Summary(), Err: err}
		}
		to, err := ex.endpoint(tmpl.To, b, newNode)
		if err != nil {
			return nil, &ApplyError{RuleID: rule.ID, Candidate: b.Summary(), Err: err}
		}

		key := resolveTerms(tmpl.Key, b)
		key[graph.PropDerived] = true
		set := resolveTerms(tmpl.Set, b)
		set[graph.PropDerivedAt] = now
		set[graph.PropDerivedBy] = rule.ID

		edge, created, mergeErr := ex.store.MergeEdge(ctx, tmpl.Type, from, to, key, set)
		if mergeErr != nil {
			return nil, &ApplyError{RuleID: rule.ID, Candidate: b.Summary(), Err: mergeErr}
		}
		if created {
			items = append(items, InferredItem{
				Kind:    InferredRelationship,
				ID:      string(edge.ID),
				Type:    edge.Type,
				Summary: fmt.Sprintf("%s edge %s -> %s", edge.Type, from, to),
			})
		}
	}
	return items, nil
}

// endpoint resolves an edge template endpoint to a node ID.
func (ex *Executor) endpoint(name string, b *pattern.Binding, newNode *graph.Node) (graph.NodeID, error) {
	if name == catalog.ToNewNode {
		if newNode == nil {
			return "", fmt.Errorf("edge endpoint %s but no node was derived", catalog.ToNewNode)
		}
		return newNode.ID, nil
	}
	node := b.Node(name)
	if node == nil {
		return "", fmt.Errorf("edge endpoint %q is not bound to a node", name)
	}
	return node.ID, nil
}

func resolveTerms(terms map[string]catalog.Term, b *pattern.Binding) map[string]any {
	out := make(map[string]any, len(terms)+3)
	for k, term := range terms {
		out[k] = term.Resolve(b)
	}
	return out
}
