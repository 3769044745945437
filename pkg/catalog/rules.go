package catalog

import (
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/pattern"
)

// Sensor reading thresholds used by the anomaly rule. Values outside
// these bounds indicate abnormal operation for ultrapure water plants.
const (
	pressureMin     = 1.0
	pressureMax     = 10.0
	temperatureMin  = 10.0
	temperatureMax  = 50.0
	conductivityMax = 15.0
	vibrationMax    = 8.0
)

// failureTrendFactor flags a sensor whose latest reading exceeds its
// average by this factor.
const failureTrendFactor = 1.25

// minTrendReadings is the minimum number of observations before a trend
// is trusted.
const minTrendReadings = 10

func builtinRules() []*Rule {
	return []*Rule{
		maintenanceNeededRule(),
		anomalyFromSensorRule(),
		failurePredictionRule(),
		equipmentDependencyRule(),
		sensorCorrelationRule(),
	}
}

// maintenanceNeededRule derives a pending Maintenance task for equipment
// whose health score has dropped below 60 without being critical yet.
func maintenanceNeededRule() *Rule {
	return &Rule{
		ID:          "maintenance-needed",
		Name:        "Maintenance Needed Detection",
		Description: "Equipment with a degraded health score gets a pending maintenance task.",
		Category:    "Maintenance",
		Match: []*pattern.Pattern{{
			Nodes: []pattern.NodeClause{
				{Var: "e", Labels: []string{"Equipment"}, WithoutLabels: []string{graph.LabelInferred}},
			},
			Where: []pattern.Condition{
				{Var: "e", Property: "healthScore", Op: pattern.OpLt, Value: 60},
				{Var: "e", Property: "healthStatus", Op: pattern.OpNe, Value: "Critical"},
			},
			Absent: []pattern.AbsentClause{{
				From:     "e",
				Type:     "NEEDS_MAINTENANCE",
				ToLabels: []string{"Maintenance"},
				ToWhere:  []pattern.Condition{{Property: "status", Op: pattern.OpEq, Value: "Pending"}},
			}},
		}},
		Action: Action{
			Node: &NodeTemplate{
				Labels: []string{"Maintenance"},
				Key: map[string]Term{
					"equipmentId": Ref{Var: "e", Property: "equipmentId"},
					"reason":      Lit{"Low health score"},
				},
				Set: map[string]Term{
					"status": Lit{"Pending"},
					"priority": When{
						Var: "e", Property: "healthScore", Op: pattern.OpLt, Value: 40,
						Then: Lit{"High"}, Else: Lit{"Medium"},
					},
					"description": Text{
						Format: "Health score %v is below the maintenance threshold of 60",
						Args:   []Term{Ref{Var: "e", Property: "healthScore"}},
					},
				},
			},
			Edge: &EdgeTemplate{
				Type: "NEEDS_MAINTENANCE",
				From: "e",
				To:   ToNewNode,
			},
		},
	}
}

// anomalyFromSensorRule derives an Anomaly for sensors reporting readings
// outside their operating range. Each out-of-range case is its own
// pattern; all variants feed the same action.
func anomalyFromSensorRule() *Rule {
	outOfRange := func(sensorType string, op pattern.Op, limit float64) *pattern.Pattern {
		return &pattern.Pattern{
			Nodes: []pattern.NodeClause{
				{Var: "e", Labels: []string{"Equipment"}},
				{Var: "s", Labels: []string{"Sensor"}},
			},
			Edges: []pattern.EdgeClause{{From: "e", To: "s", Type: "HAS_SENSOR"}},
			Where: []pattern.Condition{
				{Var: "s", Property: "type", Op: pattern.OpEq, Value: sensorType},
				{Var: "s", Property: "lastValue", Op: op, Value: limit},
			},
			Absent: []pattern.AbsentClause{{
				From:     "e",
				Type:     "HAS_ANOMALY",
				ToLabels: []string{"Anomaly"},
				ToWhere: []pattern.Condition{
					{Property: "sensorId", Op: pattern.OpEq, ValueVar: "s", ValueProperty: "sensorId"},
				},
			}},
		}
	}

	return &Rule{
		ID:          "anomaly-from-sensor",
		Name:        "Sensor Anomaly Detection",
		Description: "Sensors reporting readings outside their operating range produce anomalies.",
		Category:    "Anomaly",
		Match: []*pattern.Pattern{
			outOfRange("Pressure", pattern.OpLt, pressureMin),
			outOfRange("Pressure", pattern.OpGt, pressureMax),
			outOfRange("Temperature", pattern.OpLt, temperatureMin),
			outOfRange("Temperature", pattern.OpGt, temperatureMax),
			outOfRange("Conductivity", pattern.OpGe, conductivityMax),
			outOfRange("Vibration", pattern.OpGe, vibrationMax),
		},
		Action: Action{
			Node: &NodeTemplate{
				Labels: []string{"Anomaly"},
				Key: map[string]Term{
					"sensorId": Ref{Var: "s", Property: "sensorId"},
				},
				Set: map[string]Term{
					"equipmentId": Ref{Var: "e", Property: "equipmentId"},
					"sensorType":  Ref{Var: "s", Property: "type"},
					"value":       Ref{Var: "s", Property: "lastValue"},
					"severity":    Lit{"Warning"},
					"description": Text{
						Format: "%v sensor %v reported out-of-range value %v",
						Args: []Term{
							Ref{Var: "s", Property: "type"},
							Ref{Var: "s", Property: "sensorId"},
							Ref{Var: "s", Property: "lastValue"},
						},
					},
				},
			},
			Edge: &EdgeTemplate{
				Type: "HAS_ANOMALY",
				From: "e",
				To:   ToNewNode,
			},
		},
	}
}

// failurePredictionRule derives a FailurePrediction when a sensor's latest
// observation runs well above its historical average.
func failurePredictionRule() *Rule {
	return &Rule{
		ID:          "failure-prediction",
		Name:        "Failure Prediction",
		Description: "A sensor trending far above its average indicates the equipment may fail.",
		Category:    "Prediction",
		Match: []*pattern.Pattern{{
			Nodes: []pattern.NodeClause{
				{Var: "e", Labels: []string{"Equipment"}},
				{Var: "s", Labels: []string{"Sensor"}},
				{Var: "o", Labels: []string{"Observation"}},
			},
			Edges: []pattern.EdgeClause{
				{From: "e", To: "s", Type: "HAS_SENSOR"},
				{From: "s", To: "o", Type: "HAS_OBSERVATION"},
			},
			Aggregate: &pattern.Aggregate{
				GroupBy: []pattern.Key{{Var: "e"}, {Var: "s"}},
				Over:    "o",
				OrderBy: "timestamp",
				Reduce: []pattern.Reducer{
					{As: "readings", Kind: pattern.ReduceCount},
					{As: "avgValue", Kind: pattern.ReduceAvg, Property: "value"},
					{As: "latest", Kind: pattern.ReduceLast, Property: "value"},
				},
				Having: []pattern.HavingCondition{
					{Left: "readings", Op: pattern.OpGe, Value: minTrendReadings},
					{Left: "latest", Op: pattern.OpGt, Ref: "avgValue", Scale: failureTrendFactor},
				},
			},
			Absent: []pattern.AbsentClause{{
				From:     "e",
				Type:     "MAY_FAIL",
				ToLabels: []string{"FailurePrediction"},
				ToWhere: []pattern.Condition{
					{Property: "sensorId", Op: pattern.OpEq, ValueVar: "s", ValueProperty: "sensorId"},
				},
			}},
		}},
		Action: Action{
			Node: &NodeTemplate{
				Labels: []string{"FailurePrediction"},
				Key: map[string]Term{
					"sensorId": Ref{Var: "s", Property: "sensorId"},
				},
				Set: map[string]Term{
					"equipmentId":     Ref{Var: "e", Property: "equipmentId"},
					"predictedMetric": Ref{Var: "s", Property: "type"},
					"confidence":      Lit{0.7},
					"latestValue":     Ref{Var: "latest"},
					"averageValue":    Ref{Var: "avgValue"},
					"description": Text{
						Format: "Sensor %v latest reading %v exceeds its average %v by more than 25%%",
						Args: []Term{
							Ref{Var: "s", Property: "sensorId"},
							Ref{Var: "latest"},
							Ref{Var: "avgValue"},
						},
					},
				},
			},
			Edge: &EdgeTemplate{
				Type: "MAY_FAIL",
				From: "e",
				To:   ToNewNode,
			},
		},
	}
}

// equipmentDependencyRule derives FEEDS_INTO edges between purification
// stages sharing a process area.
func equipmentDependencyRule() *Rule {
	return &Rule{
		ID:          "equipment-dependency",
		Name:        "Equipment Dependency Discovery",
		Description: "Purification stages in the same process area feed downstream polishing stages.",
		Category:    "Topology",
		Match: []*pattern.Pattern{{
			Nodes: []pattern.NodeClause{
				{Var: "a", Labels: []string{"Equipment"}},
				{Var: "b", Labels: []string{"Equipment"}},
			},
			Where: []pattern.Condition{
				{Var: "a", Property: "type", Op: pattern.OpIn, Value: []any{"ReverseOsmosis", "EDI"}},
				{Var: "b", Property: "type", Op: pattern.OpIn, Value: []any{"UVSterilizer", "StorageTank"}},
				{Var: "a", Property: "processArea", Op: pattern.OpEq, ValueVar: "b", ValueProperty: "processArea"},
			},
			Absent: []pattern.AbsentClause{{From: "a", Type: "FEEDS_INTO", To: "b"}},
		}},
		Action: Action{
			Edge: &EdgeTemplate{
				Type: "FEEDS_INTO",
				From: "a",
				To:   "b",
				Set: map[string]Term{
					"processArea": Ref{Var: "a", Property: "processArea"},
				},
			},
		},
	}
}

// sensorCorrelationRule links pressure and flow sensors on the same
// equipment, which track each other physically.
func sensorCorrelationRule() *Rule {
	return &Rule{
		ID:          "sensor-correlation",
		Name:        "Sensor Correlation",
		Description: "Pressure and flow sensors of one equipment unit are physically correlated.",
		Category:    "Correlation",
		Match: []*pattern.Pattern{{
			Nodes: []pattern.NodeClause{
				{Var: "e", Labels: []string{"Equipment"}},
				{Var: "s1", Labels: []string{"Sensor"}},
				{Var: "s2", Labels: []string{"Sensor"}},
			},
			Edges: []pattern.EdgeClause{
				{From: "e", To: "s1", Type: "HAS_SENSOR"},
				{From: "e", To: "s2", Type: "HAS_SENSOR"},
			},
			Where: []pattern.Condition{
				{Var: "s1", Property: "type", Op: pattern.OpEq, Value: "Pressure"},
				{Var: "s2", Property: "type", Op: pattern.OpEq, Value: "Flow"},
			},
			Absent: []pattern.AbsentClause{{From: "s1", Type: "CORRELATES_WITH", To: "s2"}},
		}},
		Action: Action{
			Edge: &EdgeTemplate{
				Type: "CORRELATES_WITH",
				From: "s1",
				To:   "s2",
				Set: map[string]Term{
					"correlationType": Lit{"pressure-flow"},
					"equipmentId":     Ref{Var: "e", Property: "equipmentId"},
				},
			},
		},
	}
}
