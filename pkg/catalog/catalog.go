// Package catalog holds the immutable registry of inference rules, axioms,
// and constraints.
//
// Definitions are plain Go values built around compiled pattern ASTs. A
// Catalog is assembled once with New (or Builtin for the shipped
// definitions), validated and compiled at construction, and never mutated
// afterwards, so it is safe to share across goroutines without locking.
package catalog

import (
	"fmt"

	"github.com/orneryd/huginn/pkg/pattern"
)

// Severity grades how serious a reported violation is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Kind classifies what logical property a definition enforces.
type Kind string

const (
	// Axiom kinds.
	KindDisjointClasses   Kind = "disjoint-classes"
	KindPropertyDomain    Kind = "property-domain"
	KindPropertyRange     Kind = "property-range"
	KindInverseProperty   Kind = "inverse-property"
	KindTransitive        Kind = "transitive-property"
	KindSymmetric         Kind = "symmetric-property"
	KindFunctional        Kind = "functional-property"
	KindInverseFunctional Kind = "inverse-functional-property"
	KindDomainInvariant   Kind = "domain-invariant"

	// Constraint kinds.
	KindRequiredProperty Kind = "required-property"
	KindValueRange       Kind = "value-range"
	KindCardinality      Kind = "cardinality"
	KindUniqueness       Kind = "uniqueness"
	KindPattern          Kind = "pattern"
	KindDependency       Kind = "dependency"
)

// ToNewNode is the sentinel edge endpoint naming the node a rule's own
// node template just produced.
const ToNewNode = "@new"

// NodeTemplate describes the node a rule derives for each candidate. Key
// terms identify the node for merge matching; Set terms are written only
// on creation.
type NodeTemplate struct {
	Labels []string
	Key    map[string]Term
	Set    map[string]Term
}

// EdgeTemplate describes the edge a rule derives. From and To name bound
// pattern variables, or ToNewNode to target the rule's derived node.
type EdgeTemplate struct {
	Type string
	From string
	To   string
	Key  map[string]Term
	Set  map[string]Term
}

// Action is what a rule does per surviving binding. Node, Edge, or both
// may be set; an edge targeting ToNewNode requires a node template.
type Action struct {
	Node *NodeTemplate
	Edge *EdgeTemplate
}

// Rule is a forward-chaining inference rule: when any of the Match
// patterns produces bindings, Action derives facts for each of them.
// Multiple patterns act as a union, covering disjunctive conditions a
// single conjunctive pattern cannot express.
type Rule struct {
	ID          string
	Name        string
	Description string
	Category    string
	Match       []*pattern.Pattern
	Action      Action
}

// Axiom is a domain-model invariant. Its patterns match violations: an
// empty result means the axiom holds.
type Axiom struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Severity    Severity
	Match       []*pattern.Pattern
	Offender    Term
	Message     Term
	Details     map[string]Term
}

// Constraint is a data-quality requirement, checked exactly like an axiom.
type Constraint struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Severity    Severity
	Match       []*pattern.Pattern
	Offender    Term
	Message     Term
	Details     map[string]Term
}

// Validation is the checker-facing view shared by axioms and constraints.
type Validation interface {
	DefinitionID() string
	DefinitionName() string
	DefinitionKind() Kind
	SeverityLevel() Severity
	Patterns() []*pattern.Pattern
	OffenderTerm() Term
	MessageTerm() Term
	DetailTerms() map[string]Term
}

func (a *Axiom) DefinitionID() string             { return a.ID }
func (a *Axiom) DefinitionName() string           { return a.Name }
func (a *Axiom) DefinitionKind() Kind             { return a.Kind }
func (a *Axiom) SeverityLevel() Severity          { return a.Severity }
func (a *Axiom) Patterns() []*pattern.Pattern     { return a.Match }
func (a *Axiom) OffenderTerm() Term               { return a.Offender }
func (a *Axiom) MessageTerm() Term                { return a.Message }
func (a *Axiom) DetailTerms() map[string]Term     { return a.Details }

func (c *Constraint) DefinitionID() string         { return c.ID }
func (c *Constraint) DefinitionName() string       { return c.Name }
func (c *Constraint) DefinitionKind() Kind         { return c.Kind }
func (c *Constraint) SeverityLevel() Severity      { return c.Severity }
func (c *Constraint) Patterns() []*pattern.Pattern { return c.Match }
func (c *Constraint) OffenderTerm() Term           { return c.Offender }
func (c *Constraint) MessageTerm() Term            { return c.Message }
func (c *Constraint) DetailTerms() map[string]Term { return c.Details }

// Catalog is an immutable, compiled set of definitions.
type Catalog struct {
	rules       map[string]*Rule
	axioms      map[string]*Axiom
	constraints map[string]*Constraint

	ruleOrder       []string
	axiomOrder      []string
	constraintOrder []string
}

// New compiles every definition's patterns, validates identifiers and
// actions, and returns the assembled catalog. The input slices keep their
// order for listings.
func New(rules []*Rule, axioms []*Axiom, constraints []*Constraint) (*Catalog, error) {
	c := &Catalog{
		rules:       make(map[string]*Rule, len(rules)),
		axioms:      make(map[string]*Axiom, len(axioms)),
		constraints: make(map[string]*Constraint, len(constraints)),
	}

	for _, r := range rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if _, dup := c.rules[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		c.rules[r.ID] = r
		c.ruleOrder = append(c.ruleOrder, r.ID)
	}
	for _, a := range axioms {
		if err := validateValidation(a); err != nil {
			return nil, fmt.Errorf("axiom %s: %w", a.ID, err)
		}
		if _, dup := c.axioms[a.ID]; dup {
			return nil, fmt.Errorf("duplicate axiom id %q", a.ID)
		}
		c.axioms[a.ID] = a
		c.axiomOrder = append(c.axiomOrder, a.ID)
	}
	for _, cons := range constraints {
		if err := validateValidation(cons); err != nil {
			return nil, fmt.Errorf("constraint %s: %w", cons.ID, err)
		}
		if _, dup := c.constraints[cons.ID]; dup {
			return nil, fmt.Errorf("duplicate constraint id %q", cons.ID)
		}
		c.constraints[cons.ID] = cons
		c.constraintOrder = append(c.constraintOrder, cons.ID)
	}
	return c, nil
}

func validateRule(r *Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if len(r.Match) == 0 {
		return fmt.Errorf("rule has no match pattern")
	}
	for i, p := range r.Match {
		if err := p.Compile(); err != nil {
			return fmt.Errorf("pattern %d: %w", i, err)
		}
	}
	act := r.Action
	if act.Node == nil && act.Edge == nil {
		return fmt.Errorf("rule derives nothing")
	}
	if act.Node != nil {
		if len(act.Node.Labels) == 0 {
			return fmt.Errorf("node template has no labels")
		}
		if len(act.Node.Key) == 0 {
			return fmt.Errorf("node template has no key terms")
		}
	}
	if act.Edge != nil {
		if act.Edge.Type == "" {
			return fmt.Errorf("edge template has no type")
		}
		if act.Edge.From == "" || act.Edge.To == "" {
			return fmt.Errorf("edge template endpoints incomplete")
		}
		if (act.Edge.To == ToNewNode || act.Edge.From == ToNewNode) && act.Node == nil {
			return fmt.Errorf("edge template targets a derived node but rule has no node template")
		}
	}
	return nil
}

func validateValidation(v Validation) error {
	if v.DefinitionID() == "" {
		return fmt.Errorf("definition has no id")
	}
	if len(v.Patterns()) == 0 {
		return fmt.Errorf("definition has no match pattern")
	}
	for i, p := range v.Patterns() {
		if err := p.Compile(); err != nil {
			return fmt.Errorf("pattern %d: %w", i, err)
		}
	}
	if v.OffenderTerm() == nil {
		return fmt.Errorf("definition has no offender term")
	}
	if v.MessageTerm() == nil {
		return fmt.Errorf("definition has no message term")
	}
	return nil
}

// Rule returns the rule with the given id.
func (c *Catalog) Rule(id string) (*Rule, bool) {
	r, ok := c.rules[id]
	return r, ok
}

// Axiom returns the axiom with the given id.
func (c *Catalog) Axiom(id string) (*Axiom, bool) {
	a, ok := c.axioms[id]
	return a, ok
}

// Constraint returns the constraint with the given id.
func (c *Catalog) Constraint(id string) (*Constraint, bool) {
	cons, ok := c.constraints[id]
	return cons, ok
}

// Rules lists all rules in registration order.
func (c *Catalog) Rules() []*Rule {
	out := make([]*Rule, len(c.ruleOrder))
	for i, id := range c.ruleOrder {
		out[i] = c.rules[id]
	}
	return out
}

// Axioms lists all axioms in registration order.
func (c *Catalog) Axioms() []*Axiom {
	out := make([]*Axiom, len(c.axiomOrder))
	for i, id := range c.axiomOrder {
		out[i] = c.axioms[id]
	}
	return out
}

// Constraints lists all constraints in registration order.
func (c *Catalog) Constraints() []*Constraint {
	out := make([]*Constraint, len(c.constraintOrder))
	for i, id := range c.constraintOrder {
		out[i] = c.constraints[id]
	}
	return out
}

// Builtin returns the catalog of shipped definitions. It panics on an
// invalid definition, which only happens when the builtins themselves are
// broken.
func Builtin() *Catalog {
	c, err := New(builtinRules(), builtinAxioms(), builtinConstraints())
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid builtin definition: %v", err))
	}
	return c
}
