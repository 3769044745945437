package pattern

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/huginn/pkg/graph"
)

// ErrNotCompiled is returned when a pattern is evaluated before Compile.
var ErrNotCompiled = errors.New("pattern not compiled")

// StepKind classifies an evaluation phase reported to a Tracer.
type StepKind string

const (
	StepMatch  StepKind = "MATCH"
	StepFilter StepKind = "FILTER"
	StepCheck  StepKind = "CHECK"
)

// Evidence kinds reported to a Tracer.
const (
	EvidenceNode         = "NODE"
	EvidenceRelationship = "RELATIONSHIP"
	EvidenceProperty     = "PROPERTY"
)

// sampleSize caps the number of binding rows attached to a trace step.
const sampleSize = 5

// EvidenceItem correlates one graph element with the reason it matched.
// Property and Value are set only for PROPERTY evidence.
type EvidenceItem struct {
	Kind          string
	ID            string
	Label         string
	Property      string
	Value         any
	Justification string
}

// Tracer receives evaluation progress. Implementations must tolerate
// being called once per phase with a zero candidate count; evaluation
// stops at the first empty phase. query is the predicate the phase
// evaluated, rendered for audit.
type Tracer interface {
	OnStep(kind StepKind, description, query string, candidates int, sample []map[string]any)
	OnEvidence(ev EvidenceItem)
}

// Evaluate runs a compiled pattern against a single graph snapshot and
// returns the surviving bindings in a deterministic order. tr may be nil.
//
// Phases run in a fixed order: structural match, property filters (one
// phase per condition), degree filters, aggregation, absence guards, and
// the result limit. Evaluation short-circuits as soon as a phase leaves
// zero candidates.
func Evaluate(v graph.View, p *Pattern, tr Tracer) ([]*Binding, error) {
	if !p.compiled {
		return nil, ErrNotCompiled
	}

	bindings, err := matchStructure(v, p, tr)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, nil
	}

	for i := range p.Where {
		bindings = filterCondition(bindings, &p.Where[i], tr)
		if len(bindings) == 0 {
			return nil, nil
		}
	}

	for i := range p.Degrees {
		bindings = filterDegree(v, bindings, &p.Degrees[i], tr)
		if len(bindings) == 0 {
			return nil, nil
		}
	}

	if p.Aggregate != nil {
		bindings = aggregate(bindings, p.Aggregate, tr)
		if len(bindings) == 0 {
			return nil, nil
		}
	}

	for i := range p.Absent {
		bindings = filterAbsent(v, bindings, &p.Absent[i], tr)
		if len(bindings) == 0 {
			return nil, nil
		}
	}

	if p.Limit > 0 && len(bindings) > p.Limit {
		bindings = bindings[:p.Limit]
	}
	return bindings, nil
}

// matchStructure performs the structural join over node and edge clauses.
func matchStructure(v graph.View, p *Pattern, tr Tracer) ([]*Binding, error) {
	bindings := []*Binding{NewBinding()}
	applied := make([]bool, len(p.Edges))

	for _, nc := range p.Nodes {
		candidates := nodesMatching(v, &nc)
		next := make([]*Binding, 0, len(bindings)*len(candidates))
		for _, b := range bindings {
			for _, n := range candidates {
				nb := b.clone()
				nb.Nodes[nc.Var] = n
				next = append(next, nb)
			}
		}
		bindings = next
		if len(bindings) == 0 {
			break
		}

		// Apply every edge clause whose endpoints are now both bound.
		for i := range p.Edges {
			if applied[i] {
				continue
			}
			ec := &p.Edges[i]
			if bindings[0].Node(ec.From) == nil || bindings[0].Node(ec.To) == nil {
				continue
			}
			applied[i] = true
			bindings = joinEdge(v, bindings, ec)
			if len(bindings) == 0 {
				break
			}
		}
		if len(bindings) == 0 {
			break
		}
	}

	for i, done := range applied {
		if !done && len(bindings) > 0 {
			return nil, fmt.Errorf("edge clause %d never became applicable", i)
		}
	}

	emitStep(tr, StepMatch, "matched graph structure", describeStructure(p), bindings)
	emitMatchEvidence(tr, bindings)
	return bindings, nil
}

func nodesMatching(v graph.View, nc *NodeClause) []*graph.Node {
	var nodes []*graph.Node
	if len(nc.Labels) > 0 {
		nodes = v.NodesByLabel(nc.Labels[0])
	} else {
		nodes = v.AllNodes()
	}
	out := nodes[:0]
	for _, n := range nodes {
		keep := true
		for _, label := range nc.Labels {
			if !n.HasLabel(label) {
				keep = false
				break
			}
		}
		for _, label := range nc.WithoutLabels {
			if n.HasLabel(label) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// joinEdge keeps bindings connected by an edge of the clause's type,
// branching once per matching edge so a bound edge variable is exact.
func joinEdge(v graph.View, bindings []*Binding, ec *EdgeClause) []*Binding {
	out := make([]*Binding, 0, len(bindings))
	for _, b := range bindings {
		from, to := b.Node(ec.From), b.Node(ec.To)
		edges := v.Outgoing(from.ID)
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
		for _, e := range edges {
			if e.Type != ec.Type || e.To != to.ID {
				continue
			}
			if ec.Var == "" {
				out = append(out, b)
				break
			}
			nb := b.clone()
			nb.Edges[ec.Var] = e
			out = append(out, nb)
		}
	}
	return out
}

func filterCondition(bindings []*Binding, c *Condition, tr Tracer) []*Binding {
	out := bindings[:0]
	for _, b := range bindings {
		if conditionHolds(b, c) {
			out = append(out, b)
		}
	}
	emitStep(tr, StepFilter, "filtered "+c.Var+"."+c.Property, c.String(), out)
	emitConditionEvidence(tr, out, c)
	return out
}

func conditionHolds(b *Binding, c *Condition) bool {
	got, exists := b.Resolve(c.Var, c.Property)
	switch c.Op {
	case OpExists:
		return exists
	case OpAbsent:
		return !exists
	}
	if !exists {
		return false
	}

	want := c.Value
	if c.ValueVar != "" {
		rhs, ok := b.Resolve(c.ValueVar, c.ValueProperty)
		if !ok {
			return false
		}
		want = rhs
		if (c.Scale != 0 && c.Scale != 1) || c.Offset != 0 {
			f, ok := toFloat(rhs)
			if !ok {
				return false
			}
			scale := c.Scale
			if scale == 0 {
				scale = 1
			}
			want = f*scale + c.Offset
		}
	}
	return compare(got, c.Op, want, c.re)
}

func filterDegree(v graph.View, bindings []*Binding, dc *DegreeCondition, tr Tracer) []*Binding {
	out := bindings[:0]
	for _, b := range bindings {
		node := b.Node(dc.Var)
		if node == nil {
			continue
		}
		count := degree(v, node.ID, dc)
		if compare(count, dc.Op, dc.Value, nil) {
			nb := b.clone()
			nb.Values[dc.Var+".degree"] = count
			out = append(out, nb)
		}
	}
	query := fmt.Sprintf("degree(%s, %s, %s) %s %d", dc.Var, dc.EdgeType, dc.Direction, dc.Op, dc.Value)
	emitStep(tr, StepFilter, "filtered on relationship degree of "+dc.Var, query, out)
	return out
}

func degree(v graph.View, id graph.NodeID, dc *DegreeCondition) int {
	count := 0
	countEdges := func(edges []*graph.Edge, farOf func(*graph.Edge) graph.NodeID) {
		for _, e := range edges {
			if dc.EdgeType != "" && e.Type != dc.EdgeType {
				continue
			}
			if dc.TargetLabel != "" || len(dc.TargetWhere) > 0 {
				far, ok := v.Node(farOf(e))
				if !ok {
					continue
				}
				if dc.TargetLabel != "" && !far.HasLabel(dc.TargetLabel) {
					continue
				}
				matched := true
				for i := range dc.TargetWhere {
					c := &dc.TargetWhere[i]
					got, exists := far.Properties[c.Property]
					if !propHolds(nil, got, exists, c) {
						matched = false
						break
					}
				}
				if !matched {
					continue
				}
			}
			count++
		}
	}
	if dc.Direction == Out || dc.Direction == Any || dc.Direction == "" {
		countEdges(v.Outgoing(id), func(e *graph.Edge) graph.NodeID { return e.To })
	}
	if dc.Direction == In || dc.Direction == Any {
		countEdges(v.Incoming(id), func(e *graph.Edge) graph.NodeID { return e.From })
	}
	return count
}

func filterAbsent(v graph.View, bindings []*Binding, ac *AbsentClause, tr Tracer) []*Binding {
	out := bindings[:0]
	for _, b := range bindings {
		if !absentEdgeExists(v, b, ac) {
			out = append(out, b)
		}
	}
	emitStep(tr, StepCheck, "checked absence guard", describeAbsent(ac), out)
	return out
}

// absentEdgeExists reports whether any edge matching the guard exists.
func absentEdgeExists(v graph.View, b *Binding, ac *AbsentClause) bool {
	from := b.Node(ac.From)
	if from == nil {
		return false
	}

	check := func(edges []*graph.Edge, farOf func(*graph.Edge) graph.NodeID) bool {
		for _, e := range edges {
			if e.Type != ac.Type {
				continue
			}
			if !edgePropsHold(b, e, ac.Where) {
				continue
			}
			farID := farOf(e)
			if ac.To != "" {
				bound := b.Node(ac.To)
				if bound == nil || bound.ID != farID {
					continue
				}
				return true
			}
			far, ok := v.Node(farID)
			if !ok {
				continue
			}
			if !nodeMatchesTarget(b, far, ac) {
				continue
			}
			return true
		}
		return false
	}

	if ac.Direction == Out || ac.Direction == Any || ac.Direction == "" {
		if check(v.Outgoing(from.ID), func(e *graph.Edge) graph.NodeID { return e.To }) {
			return true
		}
	}
	if ac.Direction == In || ac.Direction == Any {
		if check(v.Incoming(from.ID), func(e *graph.Edge) graph.NodeID { return e.From }) {
			return true
		}
	}
	return false
}

func nodeMatchesTarget(b *Binding, n *graph.Node, ac *AbsentClause) bool {
	for _, label := range ac.ToLabels {
		if !n.HasLabel(label) {
			return false
		}
	}
	for i := range ac.ToWhere {
		c := &ac.ToWhere[i]
		got, exists := n.Properties[c.Property]
		if !propHolds(b, got, exists, c) {
			return false
		}
	}
	return true
}

func edgePropsHold(b *Binding, e *graph.Edge, conds []Condition) bool {
	for i := range conds {
		c := &conds[i]
		got, exists := e.Properties[c.Property]
		if !propHolds(b, got, exists, c) {
			return false
		}
	}
	return true
}

// propHolds evaluates a local condition against a concrete property.
// ValueVar right-hand sides resolve against the outer binding when one is
// supplied.
func propHolds(b *Binding, got any, exists bool, c *Condition) bool {
	switch c.Op {
	case OpExists:
		return exists
	case OpAbsent:
		return !exists
	}
	if !exists {
		return false
	}
	want := c.Value
	if c.ValueVar != "" {
		if b == nil {
			return false
		}
		rhs, ok := b.Resolve(c.ValueVar, c.ValueProperty)
		if !ok {
			return false
		}
		want = rhs
	}
	return compare(got, c.Op, want, c.re)
}

// aggregate groups bindings by the key, folds each reducer across the
// group, and keeps groups passing the having conditions.
func aggregate(bindings []*Binding, agg *Aggregate, tr Tracer) []*Binding {
	type group struct {
		rep     *Binding
		members []*Binding
	}
	var order []string
	groups := make(map[string]*group)

	for _, b := range bindings {
		parts := make([]string, len(agg.GroupBy))
		for i, k := range agg.GroupBy {
			val, _ := b.Resolve(k.Var, k.Property)
			parts[i] = fmt.Sprintf("%v", val)
		}
		key := strings.Join(parts, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{rep: b}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, b)
	}

	var out []*Binding
	for _, key := range order {
		g := groups[key]
		if agg.OrderBy != "" {
			sort.SliceStable(g.members, func(i, j int) bool {
				return lessValues(g.members[i], g.members[j], agg.Over, agg.OrderBy)
			})
		}

		result := NewBinding()
		for _, k := range agg.GroupBy {
			if k.Property == "" {
				result.Nodes[k.Var] = g.rep.Node(k.Var)
				continue
			}
			val, _ := g.rep.Resolve(k.Var, k.Property)
			result.Values[k.As] = val
		}
		for _, r := range agg.Reduce {
			result.Values[r.As] = reduce(g.members, agg.Over, &r)
		}

		keep := true
		for _, h := range agg.Having {
			if !havingHolds(result, &h) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, result)
		}
	}

	emitStep(tr, StepFilter, "aggregated candidates over "+agg.Over, describeAggregate(agg), out)
	return out
}

func lessValues(a, b *Binding, over, property string) bool {
	av, _ := a.Resolve(over, property)
	bv, _ := b.Resolve(over, property)
	if af, ok := toFloat(av); ok {
		if bf, ok := toFloat(bv); ok {
			return af < bf
		}
	}
	return fmt.Sprintf("%v", av) < fmt.Sprintf("%v", bv)
}

func reduce(members []*Binding, over string, r *Reducer) any {
	if r.Kind == ReduceCount {
		return len(members)
	}

	var values []float64
	for _, m := range members {
		v, ok := m.Resolve(over, r.Property)
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			values = append(values, f)
		}
	}

	switch r.Kind {
	case ReduceFirst:
		for _, m := range members {
			if v, ok := m.Resolve(over, r.Property); ok {
				return v
			}
		}
		return nil
	case ReduceLast:
		for i := len(members) - 1; i >= 0; i-- {
			if v, ok := members[i].Resolve(over, r.Property); ok {
				return v
			}
		}
		return nil
	}

	if len(values) == 0 {
		return nil
	}
	switch r.Kind {
	case ReduceSum, ReduceAvg:
		sum := 0.0
		for _, f := range values {
			sum += f
		}
		if r.Kind == ReduceAvg {
			return sum / float64(len(values))
		}
		return sum
	case ReduceMin:
		min := values[0]
		for _, f := range values[1:] {
			if f < min {
				min = f
			}
		}
		return min
	case ReduceMax:
		max := values[0]
		for _, f := range values[1:] {
			if f > max {
				max = f
			}
		}
		return max
	}
	return nil
}

func havingHolds(b *Binding, h *HavingCondition) bool {
	left, ok := b.Values[h.Left]
	if !ok {
		return false
	}
	right := h.Value
	if h.Ref != "" {
		rv, ok := b.Values[h.Ref]
		if !ok {
			return false
		}
		right = rv
		if h.Scale != 0 && h.Scale != 1 {
			f, ok := toFloat(rv)
			if !ok {
				return false
			}
			right = f * h.Scale
		}
	}
	return compare(left, h.Op, right, nil)
}

// --- trace emission ---

func emitStep(tr Tracer, kind StepKind, description, query string, bindings []*Binding) {
	if tr == nil {
		return
	}
	sample := make([]map[string]any, 0, sampleSize)
	for _, b := range bindings {
		if len(sample) == sampleSize {
			break
		}
		sample = append(sample, b.Summary())
	}
	tr.OnStep(kind, description, query, len(bindings), sample)
}

func emitMatchEvidence(tr Tracer, bindings []*Binding) {
	if tr == nil {
		return
	}
	for i, b := range bindings {
		if i == sampleSize {
			return
		}
		for name, n := range b.Nodes {
			label := ""
			if len(n.Labels) > 0 {
				label = n.Labels[0]
			}
			tr.OnEvidence(EvidenceItem{
				Kind:          EvidenceNode,
				ID:            string(n.ID),
				Label:         label,
				Justification: "bound to variable " + name + " by the structural match",
			})
		}
		for name, e := range b.Edges {
			tr.OnEvidence(EvidenceItem{
				Kind:          EvidenceRelationship,
				ID:            string(e.ID),
				Label:         e.Type,
				Justification: "bound to variable " + name + " by the structural match",
			})
		}
	}
}

func emitConditionEvidence(tr Tracer, bindings []*Binding, c *Condition) {
	if tr == nil {
		return
	}
	for i, b := range bindings {
		if i == sampleSize {
			return
		}
		if got, ok := b.Resolve(c.Var, c.Property); ok {
			id := ""
			label := ""
			if n := b.Node(c.Var); n != nil {
				id = string(n.ID)
				if len(n.Labels) > 0 {
					label = n.Labels[0]
				}
			}
			tr.OnEvidence(EvidenceItem{
				Kind:          EvidenceProperty,
				ID:            id,
				Label:         label,
				Property:      c.Property,
				Value:         got,
				Justification: fmt.Sprintf("%s.%s=%v satisfies %s", c.Var, c.Property, got, c.String()),
			})
		}
	}
}

// --- descriptions ---

func describeStructure(p *Pattern) string {
	var sb strings.Builder
	sb.WriteString("MATCH ")
	for i, nc := range p.Nodes {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%s:%s)", nc.Var, strings.Join(nc.Labels, ":"))
	}
	for _, ec := range p.Edges {
		fmt.Fprintf(&sb, ", (%s)-[:%s]->(%s)", ec.From, ec.Type, ec.To)
	}
	return sb.String()
}

func describeAbsent(ac *AbsentClause) string {
	target := ac.To
	if target == "" {
		target = ":" + strings.Join(ac.ToLabels, ":")
	}
	return fmt.Sprintf("no existing (%s)-[:%s]->(%s)", ac.From, ac.Type, target)
}

func describeAggregate(agg *Aggregate) string {
	keys := make([]string, len(agg.GroupBy))
	for i, k := range agg.GroupBy {
		if k.Property == "" {
			keys[i] = k.Var
		} else {
			keys[i] = k.Var + "." + k.Property
		}
	}
	reducers := make([]string, len(agg.Reduce))
	for i, r := range agg.Reduce {
		reducers[i] = fmt.Sprintf("%s=%s(%s.%s)", r.As, r.Kind, agg.Over, r.Property)
	}
	return fmt.Sprintf("GROUP BY %s REDUCE %s", strings.Join(keys, ", "), strings.Join(reducers, ", "))
}
