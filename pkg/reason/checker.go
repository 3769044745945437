package reason

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/huginn/pkg/catalog"
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/pattern"
)

// Violation is one reported breach of an axiom or constraint.
type Violation struct {
	DefinitionID string           `json:"definitionId"`
	NodeID       string           `json:"nodeId"`
	Description  string           `json:"description"`
	Severity     catalog.Severity `json:"severity"`
	Details      map[string]any   `json:"details,omitempty"`
}

// CheckResult is the outcome of checking one definition against the
// graph. Passed is true exactly when no violations were found.
type CheckResult struct {
	DefinitionID   string           `json:"id"`
	Name           string           `json:"name"`
	Kind           catalog.Kind     `json:"kind"`
	Severity       catalog.Severity `json:"severity"`
	Passed         bool             `json:"passed"`
	ViolationCount int              `json:"violationCount"`
	Violations     []Violation      `json:"violations"`
	CheckedAt      time.Time        `json:"checkedAt"`
}

// CheckSummary aggregates the results of checking a definition set.
type CheckSummary struct {
	TotalDefinitions int           `json:"totalDefinitions"`
	Passed           int           `json:"passed"`
	Failed           int           `json:"failed"`
	TotalViolations  int           `json:"totalViolations"`
	Results          []CheckResult `json:"perDefinitionResults"`
	CheckedAt        time.Time     `json:"checkedAt"`
}

// Checker runs axioms and constraints against the graph. Checks are pure
// reads: they never modify graph state, whatever they find.
type Checker struct {
	store graph.Store
	log   *logrus.Logger
}

// NewChecker returns a checker reading from store.
func NewChecker(store graph.Store, log *logrus.Logger) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{store: store, log: log}
}

// Check evaluates one definition. An error means the check could not run;
// a completed check with violations is not an error.
func (c *Checker) Check(ctx context.Context, def catalog.Validation) (*CheckResult, error) {
	result := &CheckResult{
		DefinitionID: def.DefinitionID(),
		Name:         def.DefinitionName(),
		Kind:         def.DefinitionKind(),
		Severity:     def.SeverityLevel(),
		Violations:   []Violation{},
		CheckedAt:    time.Now(),
	}

	err := c.store.Read(ctx, func(v graph.View) error {
		for _, p := range def.Patterns() {
			bindings, err := pattern.Evaluate(v, p, nil)
			if err != nil {
				return err
			}
			for _, b := range bindings {
				result.Violations = append(result.Violations, c.violation(def, b))
			}
		}
		return nil
	})
	if err != nil {
		return nil, &CheckError{DefinitionID: def.DefinitionID(), Err: err}
	}

	result.ViolationCount = len(result.Violations)
	result.Passed = result.ViolationCount == 0

	checksRun.WithLabelValues(def.DefinitionID()).Inc()
	violationsFound.WithLabelValues(def.DefinitionID()).Add(float64(result.ViolationCount))
	if !result.Passed {
		c.log.WithFields(logrus.Fields{
			"definition": def.DefinitionID(),
			"violations": result.ViolationCount,
			"severity":   def.SeverityLevel(),
		}).Warn("check found violations")
	}
	return result, nil
}

// CheckAll runs every definition and aggregates. A definition whose
// predicate errors aborts the whole run; partial summaries would be
// misleading.
func (c *Checker) CheckAll(ctx context.Context, defs []catalog.Validation) (*CheckSummary, error) {
	summary := &CheckSummary{
		TotalDefinitions: len(defs),
		Results:          make([]CheckResult, 0, len(defs)),
		CheckedAt:        time.Now(),
	}
	for _, def := range defs {
		result, err := c.Check(ctx, def)
		if err != nil {
			return nil, err
		}
		summary.Results = append(summary.Results, *result)
		if result.Passed {
			summary.Passed++
		} else {
			summary.Failed++
			summary.TotalViolations += result.ViolationCount
		}
	}
	return summary, nil
}

func (c *Checker) violation(def catalog.Validation, b *pattern.Binding) Violation {
	v := Violation{
		DefinitionID: def.DefinitionID(),
		Severity:     def.SeverityLevel(),
	}
	if off := def.OffenderTerm().Resolve(b); off != nil {
		if s, ok := off.(string); ok {
			v.NodeID = s
		}
	}
	if msg := def.MessageTerm().Resolve(b); msg != nil {
		if s, ok := msg.(string); ok {
			v.Description = s
		}
	}
	// Details always carry the raw binding (variable to element id or
	// computed value); curated detail terms overlay it.
	details := def.DetailTerms()
	v.Details = b.Summary()
	for k, term := range details {
		v.Details[k] = term.Resolve(b)
	}
	return v
}
