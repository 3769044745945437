package pattern

import (
	"github.com/orneryd/huginn/pkg/graph"
)

// Binding maps pattern variables to the concrete graph elements (and
// aggregate values) they matched. Bindings are produced by Evaluate and
// consumed by rule actions and violation reporting; the nodes and edges
// inside are copies, safe to read without holding any lock.
type Binding struct {
	Nodes  map[string]*graph.Node
	Edges  map[string]*graph.Edge
	Values map[string]any
}

// NewBinding returns an empty binding.
func NewBinding() *Binding {
	return &Binding{
		Nodes:  make(map[string]*graph.Node),
		Edges:  make(map[string]*graph.Edge),
		Values: make(map[string]any),
	}
}

// Node returns the node bound to name, or nil.
func (b *Binding) Node(name string) *graph.Node {
	return b.Nodes[name]
}

// Edge returns the edge bound to name, or nil.
func (b *Binding) Edge(name string) *graph.Edge {
	return b.Edges[name]
}

// Resolve looks up a value by variable and property. With an empty
// property it returns the aggregate value bound under name, or the bound
// node's ID. With a property it reads the bound node's or edge's property
// map. Missing lookups return (nil, false).
func (b *Binding) Resolve(name, property string) (any, bool) {
	if property == "" {
		if v, ok := b.Values[name]; ok {
			return v, true
		}
		if n, ok := b.Nodes[name]; ok {
			return string(n.ID), true
		}
		if e, ok := b.Edges[name]; ok {
			return string(e.ID), true
		}
		return nil, false
	}
	if n, ok := b.Nodes[name]; ok {
		v, ok := n.Properties[property]
		return v, ok
	}
	if e, ok := b.Edges[name]; ok {
		v, ok := e.Properties[property]
		return v, ok
	}
	return nil, false
}

// clone returns a shallow copy sharing the bound elements but not the maps,
// so extending one branch of a join never leaks into another.
func (b *Binding) clone() *Binding {
	c := &Binding{
		Nodes:  make(map[string]*graph.Node, len(b.Nodes)+1),
		Edges:  make(map[string]*graph.Edge, len(b.Edges)+1),
		Values: make(map[string]any, len(b.Values)),
	}
	for k, v := range b.Nodes {
		c.Nodes[k] = v
	}
	for k, v := range b.Edges {
		c.Edges[k] = v
	}
	for k, v := range b.Values {
		c.Values[k] = v
	}
	return c
}

// Summary renders the binding as a flat row of variable to identifier,
// suitable for trace samples.
func (b *Binding) Summary() map[string]any {
	row := make(map[string]any, len(b.Nodes)+len(b.Edges)+len(b.Values))
	for k, n := range b.Nodes {
		row[k] = string(n.ID)
	}
	for k, e := range b.Edges {
		row[k] = string(e.ID)
	}
	for k, v := range b.Values {
		row[k] = v
	}
	return row
}
