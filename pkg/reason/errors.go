// Package reason executes the reasoning workload: forward-chaining rule
// application, axiom and constraint checking, execution tracing, and the
// derived-fact lifecycle.
//
// The Service type is the facade most callers want. It reads definitions
// from an immutable catalog, evaluates their patterns against single
// graph snapshots, and writes derived facts through identity-keyed merge
// operations, which makes every rule application idempotent: running the
// same rule twice against an unchanged graph infers nothing new the
// second time.
package reason

import (
	"errors"
	"fmt"
)

// ErrDefinitionNotFound is returned when a rule, axiom, or constraint id
// is not present in the catalog.
var ErrDefinitionNotFound = errors.New("definition not found")

// MatchError wraps a failure while evaluating a definition's pattern.
// The graph was not touched.
type MatchError struct {
	DefinitionID string
	Err          error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("match %s: %v", e.DefinitionID, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }

// ApplyError is a per-candidate action failure. It never aborts the run;
// the executor records it and moves to the next candidate.
type ApplyError struct {
	RuleID    string
	Candidate map[string]any
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s to %v: %v", e.RuleID, e.Candidate, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// CheckError wraps a validation predicate failure. A CheckError means the
// check could not run; it is distinct from a check that ran and found
// violations.
type CheckError struct {
	DefinitionID string
	Err          error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %s: %v", e.DefinitionID, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }
