package reason

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/huginn/pkg/pattern"
)

// Result is the terminal outcome of a traced rule execution.
type Result string

const (
	ResultPending Result = "PENDING"
	ResultSuccess Result = "SUCCESS"
	ResultNoMatch Result = "NO_MATCH"
	ResultError   Result = "ERROR"
)

// Step types beyond the pattern evaluator's MATCH/FILTER/CHECK phases.
const (
	StepInference = "INFERENCE"
	StepResult    = "RESULT"
)

// maxEvidence caps evidence entries per trace.
const maxEvidence = 50

// Step is one recorded phase of a rule execution. Query is the predicate
// the phase evaluated, kept for audit; Summary is a one-line result.
type Step struct {
	StepNumber  int              `json:"stepNumber"`
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Query       string           `json:"query,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Candidates  int              `json:"candidates"`
	DataSample  []map[string]any `json:"dataSample,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Evidence is a graph element a trace step touched, with the reason it
// was touched. Property and Value are set for PROPERTY evidence only.
type Evidence struct {
	Kind          string `json:"kind"`
	ID            string `json:"id"`
	Label         string `json:"label"`
	Property      string `json:"property,omitempty"`
	Value         any    `json:"value,omitempty"`
	Justification string `json:"justification,omitempty"`
}

// Trace records how one rule execution unfolded: ordered steps, bounded
// evidence, and a terminal result. A trace starts PENDING and becomes
// immutable once Complete is called; later writes are silently dropped.
//
// Trace implements pattern.Tracer so it can be handed straight to the
// evaluator.
type Trace struct {
	ID              string     `json:"traceId"`
	RuleID          string     `json:"ruleId"`
	RuleName        string     `json:"ruleName"`
	RuleDescription string     `json:"ruleDescription"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Steps           []Step     `json:"steps"`
	Evidence        []Evidence `json:"evidence"`
	Result          Result     `json:"result"`
	InferredCount   int        `json:"inferredCount"`
	Summary         string     `json:"summary,omitempty"`
	Error           string     `json:"error,omitempty"`

	mu   sync.Mutex
	done bool
}

// NewTrace starts a pending trace for the given rule.
func NewTrace(ruleID, ruleName, ruleDescription string) *Trace {
	return &Trace{
		ID:              "TRACE-" + uuid.NewString(),
		RuleID:          ruleID,
		RuleName:        ruleName,
		RuleDescription: ruleDescription,
		StartedAt:       time.Now(),
		Result:          ResultPending,
	}
}

// OnStep appends an evaluation phase. Implements pattern.Tracer.
func (t *Trace) OnStep(kind pattern.StepKind, description, query string, candidates int, sample []map[string]any) {
	t.AddStep(string(kind), description, query, fmt.Sprintf("%d candidates remain", candidates), candidates, sample)
}

// AddStep appends a step with the next step number.
func (t *Trace) AddStep(stepType, description, query, summary string, candidates int, sample []map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.Steps = append(t.Steps, Step{
		StepNumber:  len(t.Steps) + 1,
		Type:        stepType,
		Description: description,
		Query:       query,
		Summary:     summary,
		Candidates:  candidates,
		DataSample:  sample,
		Timestamp:   time.Now(),
	})
}

// OnEvidence appends a touched graph element, up to the evidence cap.
// Implements pattern.Tracer.
func (t *Trace) OnEvidence(ev pattern.EvidenceItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || len(t.Evidence) >= maxEvidence {
		return
	}
	t.Evidence = append(t.Evidence, Evidence{
		Kind:          ev.Kind,
		ID:            ev.ID,
		Label:         ev.Label,
		Property:      ev.Property,
		Value:         ev.Value,
		Justification: ev.Justification,
	})
}

// Complete appends the RESULT step and seals the trace.
func (t *Trace) Complete(result Result, inferredCount int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	summary := fmt.Sprintf("inferred %d new facts", inferredCount)
	switch result {
	case ResultNoMatch:
		summary = "no candidates matched"
	case ResultError:
		summary = "execution failed"
	}
	t.Steps = append(t.Steps, Step{
		StepNumber:  len(t.Steps) + 1,
		Type:        StepResult,
		Description: "execution finished with " + string(result),
		Summary:     summary,
		Candidates:  inferredCount,
		Timestamp:   time.Now(),
	})
	t.Result = result
	t.InferredCount = inferredCount
	t.Summary = summary
	if err != nil {
		t.Error = err.Error()
	}
	now := time.Now()
	t.CompletedAt = &now
	t.done = true
}

// Done reports whether the trace has reached a terminal result.
func (t *Trace) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
