package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory Store.
//
// All data lives in RAM and is lost when the process exits. Reads return
// deep copies to prevent external mutation of stored state, and Read
// callbacks run under a read lock so they observe a single consistent
// snapshot. Merge operations take the write lock for the whole
// match-or-create step, which makes them atomic with respect to each other.
//
// Example:
//
//	store := graph.NewMemoryStore()
//	defer store.Close()
//
//	_ = store.CreateNode(ctx, &graph.Node{
//		ID:         "PUMP-001",
//		Labels:     []string{"Equipment"},
//		Properties: map[string]any{"equipmentId": "PUMP-001", "type": "CirculationPump"},
//	})
//
//	err := store.Read(ctx, func(v graph.View) error {
//		for _, n := range v.NodesByLabel("Equipment") {
//			fmt.Println(n.ID)
//		}
//		return nil
//	})
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups
	nodesByLabel  map[string]map[NodeID]struct{}
	outgoingEdges map[NodeID]map[EdgeID]struct{}
	incomingEdges map[NodeID]map[EdgeID]struct{}

	closed bool
}

// NewMemoryStore creates an empty in-memory store ready for concurrent use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodesByLabel:  make(map[string]map[NodeID]struct{}),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
		incomingEdges: make(map[NodeID]map[EdgeID]struct{}),
	}
}

// CreateNode stores a new node. The node is deep-copied; duplicate IDs
// return ErrAlreadyExists.
func (m *MemoryStore) CreateNode(ctx context.Context, node *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if len(node.Labels) == 0 {
		return fmt.Errorf("%w: node %s has no labels", ErrInvalidData, node.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return ErrAlreadyExists
	}
	m.createNodeLocked(node)
	return nil
}

// GetNode returns a copy of the node with the given id.
func (m *MemoryStore) GetNode(ctx context.Context, id NodeID) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	node, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// CreateEdge stores a new edge. Both endpoints must already exist.
func (m *MemoryStore) CreateEdge(ctx context.Context, edge *Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if edge.Type == "" {
		return fmt.Errorf("%w: edge %s has no type", ErrInvalidData, edge.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	if _, exists := m.edges[edge.ID]; exists {
		return ErrAlreadyExists
	}
	if _, ok := m.nodes[edge.From]; !ok {
		return ErrInvalidEdge
	}
	if _, ok := m.nodes[edge.To]; !ok {
		return ErrInvalidEdge
	}
	m.createEdgeLocked(edge)
	return nil
}

// GetEdge returns a copy of the edge with the given id.
func (m *MemoryStore) GetEdge(ctx context.Context, id EdgeID) (*Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	edge, ok := m.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEdge(edge), nil
}

// Read runs fn against a consistent snapshot. The read lock is held for
// the whole call, so no mutation is visible within one Read.
func (m *MemoryStore) Read(ctx context.Context, fn func(View) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStoreClosed
	}
	return fn(&memoryView{store: m})
}

// MergeNode implements the create-or-match write described on the Store
// interface. The whole operation runs under the write lock, so concurrent
// merges with the same key converge on a single node.
func (m *MemoryStore) MergeNode(ctx context.Context, labels []string, key, set map[string]any) (*Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if len(labels) == 0 {
		return nil, false, fmt.Errorf("%w: merge requires at least one label", ErrInvalidData)
	}
	if len(key) == 0 {
		return nil, false, fmt.Errorf("%w: merge requires key properties", ErrInvalidData)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrStoreClosed
	}

	// Scan candidates via the first label's index.
	for id := range m.nodesByLabel[labels[0]] {
		node := m.nodes[id]
		if hasAllLabels(node, labels) && propsMatch(node.Properties, key) {
			return copyNode(node), false, nil
		}
	}

	node := &Node{
		ID:         NodeID("n-" + uuid.NewString()),
		Labels:     append([]string(nil), labels...),
		Properties: mergeProps(key, set),
	}
	m.createNodeLocked(node)
	return copyNode(node), true, nil
}

// MergeEdge implements the create-or-match write for edges. Endpoints
// must exist; the match considers only edges of the given type between
// from and to whose properties include the key.
func (m *MemoryStore) MergeEdge(ctx context.Context, edgeType string, from, to NodeID, key, set map[string]any) (*Edge, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if edgeType == "" {
		return nil, false, fmt.Errorf("%w: merge requires an edge type", ErrInvalidData)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrStoreClosed
	}
	if _, ok := m.nodes[from]; !ok {
		return nil, false, ErrInvalidEdge
	}
	if _, ok := m.nodes[to]; !ok {
		return nil, false, ErrInvalidEdge
	}

	for id := range m.outgoingEdges[from] {
		edge := m.edges[id]
		if edge.To == to && edge.Type == edgeType && propsMatch(edge.Properties, key) {
			return copyEdge(edge), false, nil
		}
	}

	edge := &Edge{
		ID:         EdgeID("e-" + uuid.NewString()),
		Type:       edgeType,
		From:       from,
		To:         to,
		Properties: mergeProps(key, set),
	}
	m.createEdgeLocked(edge)
	return copyEdge(edge), true, nil
}

// DeleteWhere removes matching edges, then matching nodes along with any
// edges still attached to them. Returns the total number removed.
func (m *MemoryStore) DeleteWhere(ctx context.Context, nodeWhere func(*Node) bool, edgeWhere func(*Edge) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrStoreClosed
	}

	removed := 0
	if edgeWhere != nil {
		for id, edge := range m.edges {
			if edgeWhere(edge) {
				m.deleteEdgeLocked(id)
				removed++
			}
		}
	}
	if nodeWhere != nil {
		for id, node := range m.nodes {
			if nodeWhere(node) {
				// Detach remaining edges first.
				for eid := range m.outgoingEdges[id] {
					m.deleteEdgeLocked(eid)
					removed++
				}
				for eid := range m.incomingEdges[id] {
					m.deleteEdgeLocked(eid)
					removed++
				}
				m.deleteNodeLocked(id)
				removed++
			}
		}
	}
	return removed, nil
}

// NodeCount returns the number of nodes.
func (m *MemoryStore) NodeCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStoreClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of edges.
func (m *MemoryStore) EdgeCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStoreClosed
	}
	return int64(len(m.edges)), nil
}

// Close marks the store closed. Further operations return ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// --- internals ---

// createNodeLocked inserts the node and updates indexes. Caller holds mu.
func (m *MemoryStore) createNodeLocked(node *Node) {
	now := time.Now()
	stored := copyNode(node)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	m.nodes[stored.ID] = stored
	for _, label := range stored.Labels {
		if m.nodesByLabel[label] == nil {
			m.nodesByLabel[label] = make(map[NodeID]struct{})
		}
		m.nodesByLabel[label][stored.ID] = struct{}{}
	}
}

// createEdgeLocked inserts the edge and updates indexes. Caller holds mu.
func (m *MemoryStore) createEdgeLocked(edge *Edge) {
	stored := copyEdge(edge)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	m.edges[stored.ID] = stored
	if m.outgoingEdges[stored.From] == nil {
		m.outgoingEdges[stored.From] = make(map[EdgeID]struct{})
	}
	m.outgoingEdges[stored.From][stored.ID] = struct{}{}
	if m.incomingEdges[stored.To] == nil {
		m.incomingEdges[stored.To] = make(map[EdgeID]struct{})
	}
	m.incomingEdges[stored.To][stored.ID] = struct{}{}
}

func (m *MemoryStore) deleteNodeLocked(id NodeID) {
	node, ok := m.nodes[id]
	if !ok {
		return
	}
	for _, label := range node.Labels {
		delete(m.nodesByLabel[label], id)
	}
	delete(m.outgoingEdges, id)
	delete(m.incomingEdges, id)
	delete(m.nodes, id)
}

func (m *MemoryStore) deleteEdgeLocked(id EdgeID) {
	edge, ok := m.edges[id]
	if !ok {
		return
	}
	delete(m.outgoingEdges[edge.From], id)
	delete(m.incomingEdges[edge.To], id)
	delete(m.edges, id)
}

// memoryView reads store state directly; the caller of Read holds the
// read lock for the view's whole lifetime.
type memoryView struct {
	store *MemoryStore
}

func (v *memoryView) Node(id NodeID) (*Node, bool) {
	node, ok := v.store.nodes[id]
	if !ok {
		return nil, false
	}
	return copyNode(node), true
}

func (v *memoryView) NodesByLabel(label string) []*Node {
	ids := v.store.nodesByLabel[label]
	out := make([]*Node, 0, len(ids))
	for id := range ids {
		out = append(out, copyNode(v.store.nodes[id]))
	}
	return out
}

func (v *memoryView) AllNodes() []*Node {
	out := make([]*Node, 0, len(v.store.nodes))
	for _, n := range v.store.nodes {
		out = append(out, copyNode(n))
	}
	return out
}

func (v *memoryView) Outgoing(id NodeID) []*Edge {
	ids := v.store.outgoingEdges[id]
	out := make([]*Edge, 0, len(ids))
	for eid := range ids {
		out = append(out, copyEdge(v.store.edges[eid]))
	}
	return out
}

func (v *memoryView) Incoming(id NodeID) []*Edge {
	ids := v.store.incomingEdges[id]
	out := make([]*Edge, 0, len(ids))
	for eid := range ids {
		out = append(out, copyEdge(v.store.edges[eid]))
	}
	return out
}

func (v *memoryView) AllEdges() []*Edge {
	out := make([]*Edge, 0, len(v.store.edges))
	for _, e := range v.store.edges {
		out = append(out, copyEdge(e))
	}
	return out
}

// --- helpers ---

func copyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		ID:        n.ID,
		Labels:    append([]string(nil), n.Labels...),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	c.Properties = copyProps(n.Properties)
	return c
}

func copyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	return &Edge{
		ID:         e.ID,
		Type:       e.Type,
		From:       e.From,
		To:         e.To,
		Properties: copyProps(e.Properties),
		CreatedAt:  e.CreatedAt,
	}
}

func copyProps(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		if list, ok := v.([]any); ok {
			out[k] = append([]any(nil), list...)
			continue
		}
		out[k] = v
	}
	return out
}

func mergeProps(key, set map[string]any) map[string]any {
	out := make(map[string]any, len(key)+len(set))
	for k, v := range key {
		out[k] = v
	}
	for k, v := range set {
		if _, reserved := key[k]; !reserved {
			out[k] = v
		}
	}
	return out
}

func hasAllLabels(n *Node, labels []string) bool {
	for _, want := range labels {
		if !n.HasLabel(want) {
			return false
		}
	}
	return true
}

// propsMatch reports whether every key property equals the corresponding
// stored property. Numeric values compare by float64 value, so int and
// float64 forms of the same number match.
func propsMatch(props, key map[string]any) bool {
	for k, want := range key {
		got, ok := props[k]
		if !ok {
			return false
		}
		if !valueEqual(got, want) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
