package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStore_WriteThrough(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	require.NoError(t, store.CreateNode(ctx, &Node{
		ID:         "EDI-001",
		Labels:     []string{"Equipment"},
		Properties: map[string]any{"equipmentId": "EDI-001"},
	}))

	node, err := store.GetNode(ctx, "EDI-001")
	require.NoError(t, err)
	assert.Equal(t, "EDI-001", node.Properties["equipmentId"])

	_, created, err := store.MergeNode(ctx, []string{"Maintenance"},
		map[string]any{"equipmentId": "EDI-001"}, map[string]any{"priority": "High"})
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = store.MergeNode(ctx, []string{"Maintenance"},
		map[string]any{"equipmentId": "EDI-001"}, nil)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestBadgerStore_PersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerStore(BadgerOptions{DataDir: dir})
	require.NoError(t, err)

	require.NoError(t, store.CreateNode(ctx, &Node{ID: "RO-001", Labels: []string{"Equipment"}}))
	require.NoError(t, store.CreateNode(ctx, &Node{ID: "UV-001", Labels: []string{"Equipment"}}))
	_, _, err = store.MergeEdge(ctx, "FEEDS_INTO", "RO-001", "UV-001",
		map[string]any{PropDerived: true}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(BadgerOptions{DataDir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	nodes, err := reopened.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nodes)

	edges, err := reopened.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), edges)

	err = reopened.Read(ctx, func(v View) error {
		out := v.Outgoing("RO-001")
		require.Len(t, out, 1)
		assert.Equal(t, "FEEDS_INTO", out[0].Type)
		assert.True(t, out[0].Derived())
		return nil
	})
	require.NoError(t, err)
}

func TestBadgerStore_DeleteWhereRemovesFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerStore(BadgerOptions{DataDir: dir})
	require.NoError(t, err)

	require.NoError(t, store.CreateNode(ctx, &Node{ID: "RO-001", Labels: []string{"Equipment"}}))
	require.NoError(t, store.CreateNode(ctx, &Node{
		ID:         "anomaly-1",
		Labels:     []string{"Anomaly", LabelInferred},
		Properties: map[string]any{PropDerived: true},
	}))
	require.NoError(t, store.CreateEdge(ctx, &Edge{
		ID: "e1", Type: "HAS_ANOMALY", From: "RO-001", To: "anomaly-1",
		Properties: map[string]any{PropDerived: true},
	}))

	removed, err := store.DeleteWhere(ctx,
		func(n *Node) bool { return n.Derived() },
		func(e *Edge) bool { return e.Derived() },
	)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(BadgerOptions{DataDir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	nodes, err := reopened.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), nodes)

	edges, err := reopened.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), edges)
}
