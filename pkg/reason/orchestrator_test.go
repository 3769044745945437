package reason

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Listings(t *testing.T) {
	svc, _ := newTestService(t)

	rules := svc.Rules()
	require.NotEmpty(t, rules)
	ids := make([]string, len(rules))
	for i, r := range rules {
		assert.NotEmpty(t, r.ID)
		assert.NotEmpty(t, r.Name)
		ids[i] = r.ID
	}
	assert.Contains(t, ids, "maintenance-needed")

	axioms := svc.Axioms()
	require.NotEmpty(t, axioms)
	for _, a := range axioms {
		assert.NotEmpty(t, a.Kind)
		assert.NotEmpty(t, a.Severity)
	}

	constraints := svc.Constraints()
	require.NotEmpty(t, constraints)

	// Listings are stable across calls.
	again := svc.Rules()
	require.Len(t, again, len(rules))
	for i := range rules {
		assert.Equal(t, rules[i].ID, again[i].ID)
	}
}

func TestInferredFacts_ListingAndOrder(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	addEquipment(t, store, "RO-001", "ReverseOsmosis", map[string]any{
		"healthScore": 52.0, "healthStatus": "Warning",
	})
	addEquipment(t, store, "UV-001", "UVSterilizer", map[string]any{
		"healthScore": 45.0, "healthStatus": "Warning",
	})
	_, err := svc.ApplyRule(ctx, "maintenance-needed")
	require.NoError(t, err)

	facts, err := svc.InferredFacts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, facts, 4) // two nodes, two edges

	kinds := map[string]int{}
	var nodeIDs []string
	for _, f := range facts {
		kinds[f.Kind]++
		if f.Kind == InferredNode {
			nodeIDs = append(nodeIDs, f.ID)
			assert.Contains(t, f.Labels, "Maintenance")
			assert.Equal(t, true, f.Properties["derived"])
		}
	}
	assert.Equal(t, 2, kinds[InferredNode])
	assert.Equal(t, 2, kinds[InferredRelationship])
	assert.True(t, sort.StringsAreSorted(nodeIDs))

	limited, err := svc.InferredFacts(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func TestClearInferred_RemovesOnlyDerived(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	addEquipment(t, store, "RO-001", "ReverseOsmosis", map[string]any{
		"healthScore": 52.0, "healthStatus": "Warning",
	})
	addSensor(t, store, "RO-001", "RO-001-PS", "Pressure", map[string]any{"lastValue": 8.0})
	baseNodes, baseEdges := nodeCount(t, store), edgeCount(t, store)

	_, err := svc.ApplyRule(ctx, "maintenance-needed")
	require.NoError(t, err)
	assert.Greater(t, nodeCount(t, store), baseNodes)

	removed, err := svc.ClearInferred(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.Equal(t, baseNodes, nodeCount(t, store))
	assert.Equal(t, baseEdges, edgeCount(t, store))

	facts, err := svc.InferredFacts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, facts)

	// The rule fires again on the next pass: the candidate still exists.
	result, err := svc.ApplyRule(ctx, "maintenance-needed")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	addEquipment(t, store, "RO-001", "ReverseOsmosis", map[string]any{
		"healthScore": 52.0, "healthStatus": "Warning",
	})
	addSensor(t, store, "RO-001", "RO-001-PS", "Pressure", map[string]any{"lastValue": 8.0})
	_, err := svc.ApplyRule(ctx, "maintenance-needed")
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Nodes)
	assert.Equal(t, int64(3), stats.Edges)
	assert.Equal(t, 1, stats.DerivedNodes)
	assert.Equal(t, 1, stats.DerivedEdges)
	assert.Equal(t, 1, stats.NodesByLabel["Equipment"])
	assert.Equal(t, 1, stats.NodesByLabel["Sensor"])
	assert.Equal(t, 1, stats.NodesByLabel["Maintenance"])
	assert.Equal(t, 1, stats.NodesByLabel["Inferred"])
	assert.Equal(t, len(svc.Rules()), stats.Rules)
	assert.Equal(t, len(svc.Axioms()), stats.Axioms)
	assert.Equal(t, len(svc.Constraints()), stats.Constraints)
}

func TestService_MatchExposesBindings(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	addEquipment(t, store, "RO-001", "ReverseOsmosis", map[string]any{
		"healthScore": 52.0, "healthStatus": "Warning",
	})

	bindings, err := svc.Match(ctx, "maintenance-needed")
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	node := bindings[0].Node("e")
	require.NotNil(t, node)
	assert.Equal(t, "RO-001", string(node.ID))
}
