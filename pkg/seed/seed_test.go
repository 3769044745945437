package seed

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/catalog"
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/reason"
)

func silentLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func seededStore(t *testing.T) graph.Store {
	t.Helper()
	store := graph.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	_, err := Plant(context.Background(), store, silentLogger())
	require.NoError(t, err)
	return store
}

func TestPlant_Counts(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	defer store.Close()

	sum, err := Plant(ctx, store, silentLogger())
	require.NoError(t, err)

	nodes, err := store.NodeCount(ctx)
	require.NoError(t, err)
	edges, err := store.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(sum.Nodes), nodes)
	assert.Equal(t, int64(sum.Edges), edges)

	require.NoError(t, store.Read(ctx, func(v graph.View) error {
		assert.Len(t, v.NodesByLabel("Equipment"), 5)
		assert.Len(t, v.NodesByLabel("Sensor"), 16)
		assert.NotEmpty(t, v.NodesByLabel("Observation"))
		return nil
	}))
}

func TestPlant_IsDeterministic(t *testing.T) {
	ctx := context.Background()
	a := graph.NewMemoryStore()
	defer a.Close()
	b := graph.NewMemoryStore()
	defer b.Close()

	sumA, err := Plant(ctx, a, silentLogger())
	require.NoError(t, err)
	sumB, err := Plant(ctx, b, silentLogger())
	require.NoError(t, err)
	assert.Equal(t, sumA, sumB)

	nodeA, _ := a.GetNode(ctx, "RO-001")
	nodeB, _ := b.GetNode(ctx, "RO-001")
	assert.Equal(t, nodeA.Properties, nodeB.Properties)
}

func TestPlant_SeedingTwiceFails(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	_, err := Plant(ctx, store, silentLogger())
	assert.ErrorIs(t, err, graph.ErrAlreadyExists)
}

func TestPlant_PassesAllChecks(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	svc := reason.NewService(store, catalog.Builtin(), silentLogger())

	axioms, err := svc.CheckAllAxioms(ctx)
	require.NoError(t, err)
	for _, r := range axioms.Results {
		assert.True(t, r.Passed, "axiom %s: %+v", r.DefinitionID, r.Violations)
	}

	constraints, err := svc.CheckAllConstraints(ctx)
	require.NoError(t, err)
	for _, r := range constraints.Results {
		assert.True(t, r.Passed, "constraint %s: %+v", r.DefinitionID, r.Violations)
	}
}

func TestPlant_DrivesInference(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	svc := reason.NewService(store, catalog.Builtin(), silentLogger())

	first, err := svc.RunAllRules(ctx)
	require.NoError(t, err)
	assert.Greater(t, first.TotalInferred, 0)
	assert.Zero(t, first.TotalFailures)

	require.NoError(t, store.Read(ctx, func(v graph.View) error {
		// The worn pump gets a maintenance task and a failure prediction.
		maint := v.NodesByLabel("Maintenance")
		require.Len(t, maint, 1)
		assert.Equal(t, "PUMP-001", maint[0].Properties["equipmentId"])

		preds := v.NodesByLabel("FailurePrediction")
		require.Len(t, preds, 1)
		assert.Equal(t, "PUMP-001-VBS", preds[0].Properties["sensorId"])

		// Same-area purification stages were linked up.
		var derivedFeeds int
		for _, e := range v.AllEdges() {
			if e.Type == "FEEDS_INTO" && e.Derived() {
				derivedFeeds++
			}
		}
		assert.Greater(t, derivedFeeds, 0)
		return nil
	}))

	// The pass converges: a second run infers nothing new.
	second, err := svc.RunAllRules(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.TotalInferred)

	// Axioms still hold on the enriched graph, including transitive
	// closure over the derived topology.
	axioms, err := svc.CheckAllAxioms(ctx)
	require.NoError(t, err)
	for _, r := range axioms.Results {
		assert.True(t, r.Passed, "axiom %s: %+v", r.DefinitionID, r.Violations)
	}
}
