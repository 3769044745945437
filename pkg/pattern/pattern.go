// Package pattern provides typed graph patterns and their evaluation.
//
// A Pattern is a declarative description of a subgraph shape: node clauses
// with label requirements, edge clauses connecting them, property
// conditions, degree conditions, and absence guards. Patterns are built as
// plain Go values, compiled once with Compile, and evaluated read-only
// against a graph.View. Evaluation produces bindings of pattern variables
// to concrete nodes and edges.
//
// Patterns never mutate the graph. They are the predicate half of rules,
// axioms, and constraints; what happens to the bindings is the caller's
// business.
//
// Example:
//
//	p := &pattern.Pattern{
//		Nodes: []pattern.NodeClause{{Var: "e", Labels: []string{"Equipment"}}},
//		Where: []pattern.Condition{
//			{Var: "e", Property: "healthScore", Op: pattern.OpLt, Value: 60},
//		},
//	}
//	if err := p.Compile(); err != nil {
//		return err
//	}
//	bindings, err := pattern.Evaluate(view, p, nil)
package pattern

import (
	"fmt"
	"regexp"
)

// Op is a comparison operator used in conditions.
type Op string

const (
	OpEq       Op = "="
	OpNe       Op = "<>"
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpIn       Op = "IN"
	OpExists   Op = "EXISTS"
	OpAbsent   Op = "ABSENT"
	OpMatches    Op = "MATCHES"
	OpNotMatches Op = "NOT MATCHES"
	OpContains   Op = "CONTAINS"
)

// Direction selects which edges of a node a clause considers.
type Direction string

const (
	Out Direction = "OUT"
	In  Direction = "IN"
	Any Direction = "ANY"
)

// NodeClause declares a pattern variable bound to nodes carrying all of
// Labels and none of WithoutLabels. An empty Labels list matches every
// node.
type NodeClause struct {
	Var           string
	Labels        []string
	WithoutLabels []string
}

// EdgeClause requires an edge of the given type between two already
// declared node variables. Var is optional; when set, the edge is bound
// under that name.
type EdgeClause struct {
	Var  string
	From string
	To   string
	Type string
}

// Condition is a predicate over a bound variable's property.
//
// The right-hand side is one of:
//   - Value: a literal (OpIn expects a []any literal)
//   - ValueVar/ValueProperty: another bound variable's property as
//     rhs*Scale + Offset (Scale 0 means no scaling)
//   - Pattern: a regular expression, for OpMatches and OpNotMatches
//
// OpExists and OpAbsent take no right-hand side.
type Condition struct {
	Var      string
	Property string
	Op       Op

	Value         any
	ValueVar      string
	ValueProperty string
	Scale         float64
	Offset        float64
	Pattern       string

	re *regexp.Regexp
}

// DegreeCondition constrains how many edges of Type a bound node has in
// the given direction, optionally counting only edges whose far endpoint
// carries TargetLabel and satisfies TargetWhere (literal conditions on the
// far node's properties). Op compares the count against Value.
type DegreeCondition struct {
	Var         string
	EdgeType    string
	Direction   Direction
	TargetLabel string
	TargetWhere []Condition
	Op          Op
	Value       int
}

// AbsentClause is a negative guard: the binding survives only if no edge
// of Type leaves From (in Direction) toward a node matching the To*
// fields, with the edge itself satisfying Where. To names a bound
// variable when the guard is between two matched nodes; otherwise ToLabels
// and ToWhere describe arbitrary targets. ToWhere and Where conditions may
// reference outer bound variables through ValueVar.
type AbsentClause struct {
	From      string
	Type      string
	Direction Direction

	To       string
	ToLabels []string
	ToWhere  []Condition

	Where []Condition
}

// ReduceKind names an aggregate reducer.
type ReduceKind string

const (
	ReduceCount ReduceKind = "count"
	ReduceSum   ReduceKind = "sum"
	ReduceAvg   ReduceKind = "avg"
	ReduceMin   ReduceKind = "min"
	ReduceMax   ReduceKind = "max"
	ReduceFirst ReduceKind = "first"
	ReduceLast  ReduceKind = "last"
)

// Key is one grouping key of an aggregate. With Property empty the key is
// the variable's node identity and the node stays bound in the result;
// otherwise the key is the property value, bound under As.
type Key struct {
	Var      string
	Property string
	As       string
}

// Reducer folds a property of Over.Var across each group and binds the
// result under As.
type Reducer struct {
	As       string
	Kind     ReduceKind
	Property string
}

// HavingCondition filters groups after reduction. Left names a reducer or
// key binding; the right-hand side is either the literal Value or another
// binding named by Ref, scaled by Scale (0 means no scaling).
type HavingCondition struct {
	Left  string
	Op    Op
	Value any
	Ref   string
	Scale float64
}

// Aggregate groups bindings and reduces a stream of values per group.
// Over names the variable whose Property values feed the reducers;
// OrderBy orders the stream for first/last reducers.
type Aggregate struct {
	GroupBy []Key
	Over    string
	OrderBy string
	Reduce  []Reducer
	Having  []HavingCondition
}

// Pattern is a complete, compilable graph pattern.
type Pattern struct {
	Nodes     []NodeClause
	Edges     []EdgeClause
	Where     []Condition
	Degrees   []DegreeCondition
	Absent    []AbsentClause
	Aggregate *Aggregate
	Limit     int

	compiled bool
}

// Compile validates the pattern and prepares regular expressions. It must
// be called before Evaluate; compiling twice is harmless.
func (p *Pattern) Compile() error {
	if p.compiled {
		return nil
	}
	if len(p.Nodes) == 0 {
		return fmt.Errorf("pattern has no node clauses")
	}

	vars := make(map[string]bool, len(p.Nodes))
	for i, nc := range p.Nodes {
		if nc.Var == "" {
			return fmt.Errorf("node clause %d has no variable", i)
		}
		if vars[nc.Var] {
			return fmt.Errorf("duplicate variable %q", nc.Var)
		}
		vars[nc.Var] = true
	}
	for i, ec := range p.Edges {
		if !vars[ec.From] || !vars[ec.To] {
			return fmt.Errorf("edge clause %d references undeclared variable", i)
		}
		if ec.Type == "" {
			return fmt.Errorf("edge clause %d has no type", i)
		}
		if ec.Var != "" {
			if vars[ec.Var] {
				return fmt.Errorf("duplicate variable %q", ec.Var)
			}
			vars[ec.Var] = true
		}
	}
	for i := range p.Where {
		if err := p.Where[i].compile(vars); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	for i := range p.Degrees {
		dc := &p.Degrees[i]
		if !vars[dc.Var] {
			return fmt.Errorf("degree condition %d references undeclared variable %q", i, dc.Var)
		}
		switch dc.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		default:
			return fmt.Errorf("degree condition %d: operator %q not usable on counts", i, dc.Op)
		}
		for j := range dc.TargetWhere {
			if err := dc.TargetWhere[j].compileLocal(); err != nil {
				return fmt.Errorf("degree condition %d target condition %d: %w", i, j, err)
			}
		}
	}
	for i := range p.Absent {
		ac := &p.Absent[i]
		if !vars[ac.From] {
			return fmt.Errorf("absence guard %d references undeclared variable %q", i, ac.From)
		}
		if ac.To != "" && !vars[ac.To] {
			return fmt.Errorf("absence guard %d references undeclared variable %q", i, ac.To)
		}
		if ac.Type == "" {
			return fmt.Errorf("absence guard %d has no edge type", i)
		}
		for j := range ac.ToWhere {
			if err := ac.ToWhere[j].compileLocal(); err != nil {
				return fmt.Errorf("absence guard %d target condition %d: %w", i, j, err)
			}
		}
		for j := range ac.Where {
			if err := ac.Where[j].compileLocal(); err != nil {
				return fmt.Errorf("absence guard %d edge condition %d: %w", i, j, err)
			}
		}
	}
	if agg := p.Aggregate; agg != nil {
		if len(agg.GroupBy) == 0 {
			return fmt.Errorf("aggregate has no grouping keys")
		}
		for i, k := range agg.GroupBy {
			if !vars[k.Var] {
				return fmt.Errorf("aggregate key %d references undeclared variable %q", i, k.Var)
			}
			if k.Property != "" && k.As == "" {
				return fmt.Errorf("aggregate key %d on property %q needs As", i, k.Property)
			}
		}
		if len(agg.Reduce) > 0 && !vars[agg.Over] {
			return fmt.Errorf("aggregate reduces over undeclared variable %q", agg.Over)
		}
		for i, r := range agg.Reduce {
			if r.As == "" {
				return fmt.Errorf("reducer %d has no binding name", i)
			}
			switch r.Kind {
			case ReduceCount, ReduceSum, ReduceAvg, ReduceMin, ReduceMax, ReduceFirst, ReduceLast:
			default:
				return fmt.Errorf("reducer %d: unknown kind %q", i, r.Kind)
			}
		}
	}

	p.compiled = true
	return nil
}

func (c *Condition) compile(vars map[string]bool) error {
	if !vars[c.Var] {
		return fmt.Errorf("references undeclared variable %q", c.Var)
	}
	if c.ValueVar != "" && !vars[c.ValueVar] {
		return fmt.Errorf("references undeclared variable %q", c.ValueVar)
	}
	return c.compileLocal()
}

// compileLocal validates everything that does not need the variable set.
func (c *Condition) compileLocal() error {
	if c.Property == "" {
		return fmt.Errorf("condition has no property")
	}
	switch c.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn, OpExists, OpAbsent, OpContains:
	case OpMatches, OpNotMatches:
		if c.Pattern == "" {
			return fmt.Errorf("%s condition has no pattern", c.Op)
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", c.Pattern, err)
		}
		c.re = re
	default:
		return fmt.Errorf("unknown operator %q", c.Op)
	}
	return nil
}

// String renders a compact description of the condition, used in traces.
func (c *Condition) String() string {
	switch c.Op {
	case OpExists:
		return fmt.Sprintf("%s.%s EXISTS", c.Var, c.Property)
	case OpAbsent:
		return fmt.Sprintf("%s.%s ABSENT", c.Var, c.Property)
	case OpMatches, OpNotMatches:
		return fmt.Sprintf("%s.%s %s %q", c.Var, c.Property, c.Op, c.Pattern)
	}
	if c.ValueVar != "" {
		if c.Scale != 0 && c.Scale != 1 {
			return fmt.Sprintf("%s.%s %s %s.%s * %g", c.Var, c.Property, c.Op, c.ValueVar, c.ValueProperty, c.Scale)
		}
		return fmt.Sprintf("%s.%s %s %s.%s", c.Var, c.Property, c.Op, c.ValueVar, c.ValueProperty)
	}
	return fmt.Sprintf("%s.%s %s %v", c.Var, c.Property, c.Op, c.Value)
}
