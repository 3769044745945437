// Package seed populates a graph store with a deterministic ultrapure
// water plant: two purification stages, polishing, storage, and
// distribution, each with its instrument set and a short observation
// history. The same input always produces the same graph, so the seeded
// plant doubles as a fixture for integration-style tests.
package seed

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/huginn/pkg/graph"
)

// powerHistoryDays is how many days of 15-minute power observations the
// seed generates for the distribution pump.
const powerHistoryDays = 2

// intervalsPerDay at 15-minute resolution.
const intervalsPerDay = 96

// historyStart anchors all generated timestamps.
var historyStart = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

// Summary reports what Plant created.
type Summary struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

type equipmentSpec struct {
	id          string
	name        string
	typ         string
	processArea string
	stageOrder  int
	healthScore float64
	// healthStatus mirrors what the scoring pipeline would assign.
	healthStatus    string
	operatingHours  float64
	installedAt     string
	lastMaintenance int
}

type sensorSpec struct {
	id         string
	equipment  string
	typ        string
	unit       string
	location   string
	lastValue  float64
	firstValue float64
	normalMin  float64
	normalMax  float64
}

var plantEquipment = []equipmentSpec{
	{
		id: "RO-001", name: "Reverse Osmosis Unit 1", typ: "ReverseOsmosis",
		processArea: "Makeup", stageOrder: 1,
		healthScore: 92, healthStatus: "Normal",
		operatingHours: 4200, installedAt: "2025-02-10", lastMaintenance: 20,
	},
	{
		id: "EDI-001", name: "Electrodeionization Unit 1", typ: "EDI",
		processArea: "Makeup", stageOrder: 2,
		healthScore: 88, healthStatus: "Normal",
		operatingHours: 3900, installedAt: "2025-02-10", lastMaintenance: 35,
	},
	{
		id: "UV-001", name: "UV Sterilizer 1", typ: "UVSterilizer",
		processArea: "Makeup", stageOrder: 3,
		healthScore: 95, healthStatus: "Normal",
		operatingHours: 2100, installedAt: "2025-06-01", lastMaintenance: 12,
	},
	{
		id: "TANK-001", name: "UPW Storage Tank 1", typ: "StorageTank",
		processArea: "Makeup", stageOrder: 4,
		healthScore: 97, healthStatus: "Normal",
		operatingHours: 5100, installedAt: "2024-11-20", lastMaintenance: 48,
	},
	{
		id: "PUMP-001", name: "Circulation Pump 1", typ: "CirculationPump",
		processArea: "Distribution", stageOrder: 5,
		healthScore: 58, healthStatus: "Warning",
		operatingHours: 6100, installedAt: "2024-11-20", lastMaintenance: 95,
	},
}

var plantSensors = []sensorSpec{
	{id: "RO-001-PS-IN", equipment: "RO-001", typ: "Pressure", unit: "bar", location: "Inlet",
		lastValue: 9.8, firstValue: 9.9, normalMin: 8, normalMax: 15},
	{id: "RO-001-PS-OUT", equipment: "RO-001", typ: "Pressure", unit: "bar", location: "Outlet",
		lastValue: 8.1, firstValue: 8.2, normalMin: 8, normalMax: 15},
	{id: "RO-001-CS-IN", equipment: "RO-001", typ: "Conductivity", unit: "uS/cm", location: "Inlet",
		lastValue: 12.0, firstValue: 11.0, normalMin: 5, normalMax: 15},
	{id: "RO-001-CS-OUT", equipment: "RO-001", typ: "Conductivity", unit: "uS/cm", location: "Outlet",
		lastValue: 2.0, firstValue: 1.8, normalMin: 0, normalMax: 5},
	{id: "RO-001-FS", equipment: "RO-001", typ: "Flow", unit: "L/min", location: "Outlet",
		lastValue: 45.0, firstValue: 46.2, normalMin: 30, normalMax: 60},
	{id: "RO-001-TS", equipment: "RO-001", typ: "Temperature", unit: "C", location: "Inlet",
		lastValue: 25.0, firstValue: 24.5, normalMin: 10, normalMax: 50},

	{id: "EDI-001-VS", equipment: "EDI-001", typ: "Voltage", unit: "V", location: "Module",
		lastValue: 380.0, firstValue: 375.0, normalMin: 200, normalMax: 600},
	{id: "EDI-001-AS", equipment: "EDI-001", typ: "Current", unit: "A", location: "Module",
		lastValue: 5.2, firstValue: 5.0, normalMin: 2, normalMax: 10},
	{id: "EDI-001-CS-OUT", equipment: "EDI-001", typ: "Conductivity", unit: "uS/cm", location: "Outlet",
		lastValue: 0.06, firstValue: 0.055, normalMin: 0, normalMax: 1},

	{id: "UV-001-UIS", equipment: "UV-001", typ: "Intensity", unit: "%", location: "Chamber",
		lastValue: 92.0, firstValue: 99.0, normalMin: 30, normalMax: 100},
	{id: "UV-001-TS", equipment: "UV-001", typ: "Temperature", unit: "C", location: "Chamber",
		lastValue: 32.0, firstValue: 30.5, normalMin: 10, normalMax: 50},

	{id: "TANK-001-LS", equipment: "TANK-001", typ: "Level", unit: "%", location: "Tank",
		lastValue: 78.0, firstValue: 81.0, normalMin: 20, normalMax: 95},

	{id: "PUMP-001-VBS", equipment: "PUMP-001", typ: "Vibration", unit: "mm/s", location: "Bearing",
		lastValue: 3.2, firstValue: 2.9, normalMin: 0, normalMax: 8},
	{id: "PUMP-001-TS", equipment: "PUMP-001", typ: "Temperature", unit: "C", location: "Motor",
		lastValue: 41.0, firstValue: 39.0, normalMin: 10, normalMax: 50},
	{id: "PUMP-001-FS", equipment: "PUMP-001", typ: "Flow", unit: "L/min", location: "Outlet",
		lastValue: 52.0, firstValue: 53.1, normalMin: 30, normalMax: 60},
	{id: "PUMP-001-PWS", equipment: "PUMP-001", typ: "Power", unit: "kWh", location: "Motor",
		lastValue: 42.5, firstValue: 40.0, normalMin: 10, normalMax: 90},
}

// feedsInto are the asserted process connections. Derived topology edges
// come from the inference rules, not the seed.
var feedsInto = [][2]string{
	{"UV-001", "TANK-001"},
}

// Plant writes the sample plant into store. It fails on the first write
// error; seeding an already-seeded store reports ErrAlreadyExists from
// the store layer.
func Plant(ctx context.Context, store graph.Store, log *logrus.Logger) (*Summary, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sum := &Summary{}

	for _, eq := range plantEquipment {
		node := &graph.Node{
			ID:     graph.NodeID(eq.id),
			Labels: []string{"Equipment"},
			Properties: map[string]any{
				"equipmentId":         eq.id,
				"name":                eq.name,
				"type":                eq.typ,
				"processArea":         eq.processArea,
				"stageOrder":          eq.stageOrder,
				"healthScore":         eq.healthScore,
				"healthStatus":        eq.healthStatus,
				"operatingHours":      eq.operatingHours,
				"installedAt":         eq.installedAt,
				"lastMaintenanceDays": eq.lastMaintenance,
			},
		}
		if err := store.CreateNode(ctx, node); err != nil {
			return nil, fmt.Errorf("seed equipment %s: %w", eq.id, err)
		}
		sum.Nodes++
	}

	for _, s := range plantSensors {
		node := &graph.Node{
			ID:     graph.NodeID(s.id),
			Labels: []string{"Sensor"},
			Properties: map[string]any{
				"sensorId":   s.id,
				"type":       s.typ,
				"unit":       s.unit,
				"location":   s.location,
				"lastValue":  s.lastValue,
				"firstValue": s.firstValue,
				"normalMin":  s.normalMin,
				"normalMax":  s.normalMax,
			},
		}
		if err := store.CreateNode(ctx, node); err != nil {
			return nil, fmt.Errorf("seed sensor %s: %w", s.id, err)
		}
		sum.Nodes++

		if err := store.CreateEdge(ctx, &graph.Edge{
			ID: graph.EdgeID("hs-" + s.id), Type: "HAS_SENSOR",
			From: graph.NodeID(s.equipment), To: graph.NodeID(s.id),
		}); err != nil {
			return nil, fmt.Errorf("seed sensor edge %s: %w", s.id, err)
		}
		sum.Edges++
		if err := store.CreateEdge(ctx, &graph.Edge{
			ID: graph.EdgeID("at-" + s.id), Type: "IS_ATTACHED_TO",
			From: graph.NodeID(s.id), To: graph.NodeID(s.equipment),
		}); err != nil {
			return nil, fmt.Errorf("seed attach edge %s: %w", s.id, err)
		}
		sum.Edges++
	}

	for i, pair := range feedsInto {
		if err := store.CreateEdge(ctx, &graph.Edge{
			ID: graph.EdgeID(fmt.Sprintf("fi-%02d", i)), Type: "FEEDS_INTO",
			From: graph.NodeID(pair[0]), To: graph.NodeID(pair[1]),
		}); err != nil {
			return nil, fmt.Errorf("seed feeds-into %s->%s: %w", pair[0], pair[1], err)
		}
		sum.Edges++
	}

	if err := seedPowerHistory(ctx, store, sum); err != nil {
		return nil, err
	}
	if err := seedVibrationHistory(ctx, store, sum); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"nodes": sum.Nodes, "edges": sum.Edges}).Info("seeded sample plant")
	return sum, nil
}

// seedPowerHistory generates a sinusoidal daily load curve for the pump's
// power meter: low overnight, peaking mid-afternoon.
func seedPowerHistory(ctx context.Context, store graph.Store, sum *Summary) error {
	total := powerHistoryDays * intervalsPerDay
	for i := 0; i < total; i++ {
		ts := historyStart.Add(time.Duration(i*15) * time.Minute)
		hourOfDay := float64(i%intervalsPerDay) / 4.0
		value := 50 + 30*math.Sin((hourOfDay-6)*math.Pi/12)
		value = math.Round(value*100) / 100

		id := fmt.Sprintf("PUMP-001-PWS-obs-%04d", i)
		if err := createObservation(ctx, store, "PUMP-001-PWS", id, value, ts); err != nil {
			return err
		}
		sum.Nodes++
		sum.Edges++
	}
	return nil
}

// seedVibrationHistory gives the worn pump a rising vibration trend: the
// latest reading runs well above the series average, which is what the
// failure-prediction rule looks for.
func seedVibrationHistory(ctx context.Context, store graph.Store, sum *Summary) error {
	values := []float64{2.8, 2.9, 2.9, 3.0, 2.8, 3.0, 3.1, 2.9, 3.0, 3.1, 3.3, 4.9}
	for i, v := range values {
		ts := historyStart.Add(time.Duration(i) * time.Hour)
		id := fmt.Sprintf("PUMP-001-VBS-obs-%04d", i)
		if err := createObservation(ctx, store, "PUMP-001-VBS", id, v, ts); err != nil {
			return err
		}
		sum.Nodes++
		sum.Edges++
	}
	return nil
}

func createObservation(ctx context.Context, store graph.Store, sensorID, id string, value float64, ts time.Time) error {
	node := &graph.Node{
		ID:     graph.NodeID(id),
		Labels: []string{"Observation"},
		Properties: map[string]any{
			"value":     value,
			"timestamp": ts.Format(time.RFC3339),
		},
	}
	if err := store.CreateNode(ctx, node); err != nil {
		return fmt.Errorf("seed observation %s: %w", id, err)
	}
	if err := store.CreateEdge(ctx, &graph.Edge{
		ID: graph.EdgeID("ho-" + id), Type: "HAS_OBSERVATION",
		From: graph.NodeID(sensorID), To: graph.NodeID(id),
	}); err != nil {
		return fmt.Errorf("seed observation edge %s: %w", id, err)
	}
	return nil
}
