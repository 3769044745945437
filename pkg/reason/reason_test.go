package reason

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/catalog"
	"github.com/orneryd/huginn/pkg/graph"
)

// newTestService wires a memory store, the builtin catalog, and a silent
// logger.
func newTestService(t *testing.T) (*Service, graph.Store) {
	t.Helper()
	store := graph.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return NewService(store, catalog.Builtin(), silentLogger()), store
}

func silentLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func addNode(t *testing.T, store graph.Store, id string, labels []string, props map[string]any) {
	t.Helper()
	require.NoError(t, store.CreateNode(context.Background(), &graph.Node{
		ID: graph.NodeID(id), Labels: labels, Properties: props,
	}))
}

func addEquipment(t *testing.T, store graph.Store, id, equipmentType string, props map[string]any) {
	t.Helper()
	if props == nil {
		props = map[string]any{}
	}
	props["equipmentId"] = id
	props["name"] = id
	props["type"] = equipmentType
	addNode(t, store, id, []string{"Equipment"}, props)
}

func addSensor(t *testing.T, store graph.Store, equipmentID, id, sensorType string, props map[string]any) {
	t.Helper()
	if props == nil {
		props = map[string]any{}
	}
	props["sensorId"] = id
	props["type"] = sensorType
	addNode(t, store, id, []string{"Sensor"}, props)
	ctx := context.Background()
	require.NoError(t, store.CreateEdge(ctx, &graph.Edge{
		ID: graph.EdgeID("hs-" + id), Type: "HAS_SENSOR",
		From: graph.NodeID(equipmentID), To: graph.NodeID(id),
	}))
	require.NoError(t, store.CreateEdge(ctx, &graph.Edge{
		ID: graph.EdgeID("at-" + id), Type: "IS_ATTACHED_TO",
		From: graph.NodeID(id), To: graph.NodeID(equipmentID),
	}))
}

// countByLabel counts nodes carrying the label.
func countByLabel(t *testing.T, store graph.Store, label string) int {
	t.Helper()
	count := 0
	require.NoError(t, store.Read(context.Background(), func(v graph.View) error {
		count = len(v.NodesByLabel(label))
		return nil
	}))
	return count
}

func nodeCount(t *testing.T, store graph.Store) int64 {
	t.Helper()
	n, err := store.NodeCount(context.Background())
	require.NoError(t, err)
	return n
}

func edgeCount(t *testing.T, store graph.Store) int64 {
	t.Helper()
	n, err := store.EdgeCount(context.Background())
	require.NoError(t, err)
	return n
}
