// Package graph provides the property-graph store used by the Huginn
// reasoning engine.
//
// The store follows the labeled property graph model: nodes carry a set of
// labels and a property map, edges carry a relation type and a property map.
// Facts created by the inference engine are tagged with the reserved
// `derived` property (and the Inferred label for nodes) so they can be
// listed and cleared in bulk without touching primary data.
//
// Two implementations are provided:
//   - MemoryStore: thread-safe, in-memory, copy-on-read. Suited for tests
//     and small deployments.
//   - BadgerStore: the same index backed by BadgerDB for durability.
//
// Example Usage:
//
//	store := graph.NewMemoryStore()
//	defer store.Close()
//
//	node := &graph.Node{
//		ID:     graph.NodeID("RO-001"),
//		Labels: []string{"Equipment"},
//		Properties: map[string]any{
//			"equipmentId": "RO-001",
//			"name":        "Reverse Osmosis Unit 1",
//			"healthScore": 52.0,
//		},
//	}
//	if err := store.CreateNode(ctx, node); err != nil {
//		log.Fatal(err)
//	}
//
//	// Merge is the idempotent write used by inference: the second call
//	// with the same key properties is a no-op.
//	m, created, _ := store.MergeNode(ctx,
//		[]string{"Maintenance", graph.LabelInferred},
//		map[string]any{"equipmentId": "RO-001", "kind": "ConditionBased"},
//		map[string]any{graph.PropDerived: true, "status": "Pending"})
//	fmt.Println(m.ID, created)
package graph

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by store implementations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrInvalidEdge   = errors.New("invalid edge: source or target node not found")
	ErrStoreClosed   = errors.New("store closed")
)

// Reserved property keys and labels for derived (inferred) facts.
// Primary ingestion must never set these; the inference executor always does.
const (
	// PropDerived marks a node or edge as created by the inference engine.
	PropDerived = "derived"
	// PropDerivedAt records when the fact was inferred (RFC 3339).
	PropDerivedAt = "derivedAt"
	// PropDerivedBy records the rule id that produced the fact.
	PropDerivedBy = "derivedBy"
	// LabelInferred is added to every derived node in addition to its
	// domain labels, so derived nodes can be listed by label scan.
	LabelInferred = "Inferred"
)

// NodeID is a strongly-typed unique identifier for graph nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// Node is a vertex in the labeled property graph.
//
// Labels are unordered and unique within the set; they are never removed
// implicitly. Properties hold JSON-serializable scalars or ordered lists
// of scalars and may be partial.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"createdAt,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt,omitempty"`
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Property returns the named property and whether it is set (non-nil).
func (n *Node) Property(name string) (any, bool) {
	if n.Properties == nil {
		return nil, false
	}
	v, ok := n.Properties[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Derived reports whether the node was created by the inference engine.
func (n *Node) Derived() bool {
	v, _ := n.Property(PropDerived)
	b, ok := v.(bool)
	return ok && b
}

// Edge is a directed relationship between two nodes.
type Edge struct {
	ID         EdgeID         `json:"id"`
	Type       string         `json:"type"`
	From       NodeID         `json:"from"`
	To         NodeID         `json:"to"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"createdAt,omitempty"`
}

// Property returns the named property and whether it is set (non-nil).
func (e *Edge) Property(name string) (any, bool) {
	if e.Properties == nil {
		return nil, false
	}
	v, ok := e.Properties[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Derived reports whether the edge was created by the inference engine.
func (e *Edge) Derived() bool {
	v, _ := e.Property(PropDerived)
	b, ok := v.(bool)
	return ok && b
}

// View is a consistent read-only snapshot of the graph. All accessors
// return defensive copies, so values taken from a View remain valid after
// the view is released.
//
// A View is only valid for the duration of the Store.Read callback that
// produced it.
type View interface {
	// Node returns the node with the given id.
	Node(id NodeID) (*Node, bool)
	// NodesByLabel returns all nodes carrying the label.
	NodesByLabel(label string) []*Node
	// AllNodes returns every node in the graph.
	AllNodes() []*Node
	// Outgoing returns all edges whose source is the given node.
	Outgoing(id NodeID) []*Edge
	// Incoming returns all edges whose target is the given node.
	Incoming(id NodeID) []*Edge
	// AllEdges returns every edge in the graph.
	AllEdges() []*Edge
}

// Store is the graph storage capability the reasoning core consumes.
//
// Read executes fn against a single consistent snapshot: no mutation
// becomes visible inside one Read call. MergeNode and MergeEdge are the
// transactional create-or-match operations inference relies on for
// idempotence; each call is atomic with respect to concurrent merges of
// the same key, which is what makes concurrent duplicate rule application
// converge to one derived fact.
type Store interface {
	CreateNode(ctx context.Context, n *Node) error
	GetNode(ctx context.Context, id NodeID) (*Node, error)
	CreateEdge(ctx context.Context, e *Edge) error
	GetEdge(ctx context.Context, id EdgeID) (*Edge, error)

	// Read runs fn against a consistent snapshot of the graph.
	Read(ctx context.Context, fn func(View) error) error

	// MergeNode returns the existing node that carries all the given
	// labels and exactly matches the key properties, or creates one with
	// key plus set properties. The boolean reports whether a node was
	// created.
	MergeNode(ctx context.Context, labels []string, key, set map[string]any) (*Node, bool, error)

	// MergeEdge returns the existing edge of the given type between from
	// and to whose properties match key, or creates one with key plus set
	// properties. The boolean reports whether an edge was created.
	MergeEdge(ctx context.Context, edgeType string, from, to NodeID, key, set map[string]any) (*Edge, bool, error)

	// DeleteWhere removes every edge matching edgeWhere and every node
	// matching nodeWhere (detaching its remaining edges). Either predicate
	// may be nil. Returns the total number of elements removed.
	DeleteWhere(ctx context.Context, nodeWhere func(*Node) bool, edgeWhere func(*Edge) bool) (int, error)

	NodeCount(ctx context.Context) (int64, error)
	EdgeCount(ctx context.Context) (int64, error)

	Close() error
}
