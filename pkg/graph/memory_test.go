package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndGetNode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	node := &Node{
		ID:     "RO-001",
		Labels: []string{"Equipment"},
		Properties: map[string]any{
			"equipmentId": "RO-001",
			"type":        "ReverseOsmosis",
			"healthScore": 92.0,
		},
	}
	require.NoError(t, store.CreateNode(ctx, node))

	got, err := store.GetNode(ctx, "RO-001")
	require.NoError(t, err)
	assert.Equal(t, NodeID("RO-001"), got.ID)
	assert.True(t, got.HasLabel("Equipment"))
	assert.Equal(t, 92.0, got.Properties["healthScore"])
	assert.False(t, got.CreatedAt.IsZero())

	// Mutating the returned copy must not affect stored state.
	got.Properties["healthScore"] = 10.0
	again, err := store.GetNode(ctx, "RO-001")
	require.NoError(t, err)
	assert.Equal(t, 92.0, again.Properties["healthScore"])
}

func TestMemoryStore_CreateNodeErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.CreateNode(ctx, &Node{ID: "n1", Labels: []string{"Equipment"}}))

	tests := []struct {
		name string
		node *Node
		want error
	}{
		{"nil node", nil, ErrInvalidData},
		{"empty id", &Node{Labels: []string{"Equipment"}}, ErrInvalidID},
		{"no labels", &Node{ID: "n2"}, ErrInvalidData},
		{"duplicate id", &Node{ID: "n1", Labels: []string{"Equipment"}}, ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.CreateNode(ctx, tt.node)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMemoryStore_CreateEdge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.CreateNode(ctx, &Node{ID: "RO-001", Labels: []string{"Equipment"}}))
	require.NoError(t, store.CreateNode(ctx, &Node{ID: "RO-001-PS", Labels: []string{"Sensor"}}))

	edge := &Edge{ID: "e1", Type: "HAS_SENSOR", From: "RO-001", To: "RO-001-PS"}
	require.NoError(t, store.CreateEdge(ctx, edge))

	got, err := store.GetEdge(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "HAS_SENSOR", got.Type)
	assert.Equal(t, NodeID("RO-001"), got.From)

	t.Run("missing endpoint", func(t *testing.T) {
		err := store.CreateEdge(ctx, &Edge{ID: "e2", Type: "HAS_SENSOR", From: "RO-001", To: "ghost"})
		assert.ErrorIs(t, err, ErrInvalidEdge)
	})
	t.Run("duplicate id", func(t *testing.T) {
		err := store.CreateEdge(ctx, &Edge{ID: "e1", Type: "HAS_SENSOR", From: "RO-001", To: "RO-001-PS"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestMemoryStore_MergeNode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	key := map[string]any{"equipmentId": "RO-001", "reason": "low health"}
	set := map[string]any{"priority": "Medium"}

	first, created, err := store.MergeNode(ctx, []string{"Maintenance", "Inferred"}, key, set)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Medium", first.Properties["priority"])

	// Same key matches the existing node even with different set props.
	second, created, err := store.MergeNode(ctx, []string{"Maintenance", "Inferred"}, key, map[string]any{"priority": "High"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Medium", second.Properties["priority"])

	// Different key creates a distinct node.
	third, created, err := store.MergeNode(ctx, []string{"Maintenance", "Inferred"},
		map[string]any{"equipmentId": "EDI-001", "reason": "low health"}, set)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)

	count, err := store.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMemoryStore_MergeNodeNumericKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	_, created, err := store.MergeNode(ctx, []string{"Anomaly"}, map[string]any{"value": 52}, nil)
	require.NoError(t, err)
	assert.True(t, created)

	// int and float64 forms of the same number must match.
	_, created, err = store.MergeNode(ctx, []string{"Anomaly"}, map[string]any{"value": 52.0}, nil)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMemoryStore_MergeEdge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.CreateNode(ctx, &Node{ID: "RO-001", Labels: []string{"Equipment"}}))
	require.NoError(t, store.CreateNode(ctx, &Node{ID: "UV-001", Labels: []string{"Equipment"}}))

	key := map[string]any{PropDerived: true}
	first, created, err := store.MergeEdge(ctx, "FEEDS_INTO", "RO-001", "UV-001", key, map[string]any{"inferredBy": "rule"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := store.MergeEdge(ctx, "FEEDS_INTO", "RO-001", "UV-001", key, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// Same endpoints but different type creates a new edge.
	_, created, err = store.MergeEdge(ctx, "CORRELATES_WITH", "RO-001", "UV-001", key, nil)
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("missing endpoint", func(t *testing.T) {
		_, _, err := store.MergeEdge(ctx, "FEEDS_INTO", "ghost", "UV-001", key, nil)
		assert.ErrorIs(t, err, ErrInvalidEdge)
	})
}

func TestMemoryStore_ConcurrentMergeConverges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	key := map[string]any{"equipmentId": "PUMP-001", "reason": "low health"}

	var wg sync.WaitGroup
	createdCount := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := store.MergeNode(ctx, []string{"Maintenance"}, key, nil)
			assert.NoError(t, err)
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	creations := 0
	for created := range createdCount {
		if created {
			creations++
		}
	}
	assert.Equal(t, 1, creations, "exactly one goroutine should create the node")

	count, err := store.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStore_ReadSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.CreateNode(ctx, &Node{ID: "RO-001", Labels: []string{"Equipment"}}))
	require.NoError(t, store.CreateNode(ctx, &Node{ID: "RO-001-PS", Labels: []string{"Sensor"}}))
	require.NoError(t, store.CreateEdge(ctx, &Edge{ID: "e1", Type: "HAS_SENSOR", From: "RO-001", To: "RO-001-PS"}))

	err := store.Read(ctx, func(v View) error {
		assert.Len(t, v.NodesByLabel("Equipment"), 1)
		assert.Len(t, v.NodesByLabel("Sensor"), 1)
		assert.Empty(t, v.NodesByLabel("Maintenance"))
		assert.Len(t, v.AllNodes(), 2)
		assert.Len(t, v.Outgoing("RO-001"), 1)
		assert.Len(t, v.Incoming("RO-001-PS"), 1)
		assert.Empty(t, v.Incoming("RO-001"))

		node, ok := v.Node("RO-001")
		require.True(t, ok)
		assert.Equal(t, NodeID("RO-001"), node.ID)
		_, ok = v.Node("ghost")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_DeleteWhere(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.CreateNode(ctx, &Node{ID: "RO-001", Labels: []string{"Equipment"}}))
	require.NoError(t, store.CreateNode(ctx, &Node{
		ID:         "maint-1",
		Labels:     []string{"Maintenance", LabelInferred},
		Properties: map[string]any{PropDerived: true},
	}))
	require.NoError(t, store.CreateEdge(ctx, &Edge{
		ID: "e1", Type: "NEEDS_MAINTENANCE", From: "RO-001", To: "maint-1",
		Properties: map[string]any{PropDerived: true},
	}))
	require.NoError(t, store.CreateEdge(ctx, &Edge{
		ID: "e2", Type: "HAS_SENSOR", From: "RO-001", To: "maint-1",
	}))

	removed, err := store.DeleteWhere(ctx,
		func(n *Node) bool { return n.Derived() },
		func(e *Edge) bool { return e.Derived() },
	)
	require.NoError(t, err)
	// Derived edge, derived node, and the dangling e2 detached with it.
	assert.Equal(t, 3, removed)

	nodes, err := store.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), nodes)

	edges, err := store.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), edges)

	// Non-derived node survives.
	_, err = store.GetNode(ctx, "RO-001")
	assert.NoError(t, err)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.CreateNode(ctx, &Node{ID: "n", Labels: []string{"X"}}), ErrStoreClosed)
	_, err := store.GetNode(ctx, "n")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, _, err = store.MergeNode(ctx, []string{"X"}, map[string]any{"k": 1}, nil)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Read(ctx, func(View) error { return nil }), ErrStoreClosed)
}
