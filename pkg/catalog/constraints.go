package catalog

import (
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/pattern"
)

// equipmentIDPattern is the plant naming convention, e.g. RO-001.
const equipmentIDPattern = `^[A-Z]+-\d{3}$`

// builtinConstraints returns the shipped data-quality constraints. Like
// axioms, their patterns match violations directly.
func builtinConstraints() []*Constraint {
	return []*Constraint{
		{
			ID:          "CONS001",
			Name:        "Equipment required properties",
			Description: "Every equipment node needs equipmentId, name, and type.",
			Kind:        KindRequiredProperty,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{
				equipmentMissing("equipmentId"),
				equipmentMissing("name"),
				equipmentMissing("type"),
			},
			Offender: Ref{Var: "n"},
			Message: Text{
				Format: "Equipment %v is missing one of the required properties equipmentId, name, type",
				Args:   []Term{Ref{Var: "n"}},
			},
		},
		{
			ID:          "CONS002",
			Name:        "Health score range",
			Description: "healthScore must lie between 0 and 100.",
			Kind:        KindValueRange,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{
				equipmentWhere(pattern.Condition{Var: "n", Property: "healthScore", Op: pattern.OpLt, Value: 0}),
				equipmentWhere(pattern.Condition{Var: "n", Property: "healthScore", Op: pattern.OpGt, Value: 100}),
			},
			Offender: Ref{Var: "n"},
			Message: Text{
				Format: "Equipment %v healthScore %v is outside [0, 100]",
				Args:   []Term{Ref{Var: "n", Property: "equipmentId"}, Ref{Var: "n", Property: "healthScore"}},
			},
			Details: map[string]Term{"healthScore": Ref{Var: "n", Property: "healthScore"}},
		},
		{
			ID:          "CONS003",
			Name:        "Equipment sensor cardinality",
			Description: "Every physical equipment node monitors at least one sensor.",
			Kind:        KindCardinality,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "n", Labels: []string{"Equipment"}, WithoutLabels: []string{graph.LabelInferred}},
				},
				Degrees: []pattern.DegreeCondition{{
					Var: "n", EdgeType: "HAS_SENSOR", Direction: pattern.Out,
					TargetLabel: "Sensor", Op: pattern.OpLt, Value: 1,
				}},
			}},
			Offender: Ref{Var: "n"},
			Message: Text{
				Format: "Equipment %v has no sensors attached",
				Args:   []Term{Ref{Var: "n", Property: "equipmentId"}},
			},
		},
		{
			ID:          "CONS004",
			Name:        "Equipment identifier uniqueness",
			Description: "equipmentId must be unique across all equipment nodes.",
			Kind:        KindUniqueness,
			Severity:    SeverityCritical,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{{Var: "n", Labels: []string{"Equipment"}}},
				Aggregate: &pattern.Aggregate{
					GroupBy: []pattern.Key{{Var: "n", Property: "equipmentId", As: "equipmentId"}},
					Over:    "n",
					Reduce:  []pattern.Reducer{{As: "cnt", Kind: pattern.ReduceCount}},
					Having:  []pattern.HavingCondition{{Left: "cnt", Op: pattern.OpGt, Value: 1}},
				},
			}},
			Offender: Text{Format: "group:Equipment.equipmentId=%v", Args: []Term{Ref{Var: "equipmentId"}}},
			Message: Text{
				Format: "equipmentId %v is used by %v equipment nodes",
				Args:   []Term{Ref{Var: "equipmentId"}, Ref{Var: "cnt"}},
			},
			Details: map[string]Term{"count": Ref{Var: "cnt"}},
		},
		{
			ID:          "CONS005",
			Name:        "Temperature reading range",
			Description: "Temperature sensors must report between -50 and 200 degrees.",
			Kind:        KindValueRange,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{
				sensorReading("Temperature", pattern.OpLt, -50),
				sensorReading("Temperature", pattern.OpGt, 200),
			},
			Offender: Ref{Var: "s"},
			Message: Text{
				Format: "Temperature sensor %v reads %v, outside [-50, 200]",
				Args:   []Term{Ref{Var: "s", Property: "sensorId"}, Ref{Var: "s", Property: "lastValue"}},
			},
		},
		{
			ID:          "CONS006",
			Name:        "RO operating pressure",
			Description: "Reverse osmosis pressure sensors must read between 8 and 15 bar.",
			Kind:        KindValueRange,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{
				equipmentSensorReading("ReverseOsmosis", "Pressure", pattern.OpLt, 8),
				equipmentSensorReading("ReverseOsmosis", "Pressure", pattern.OpGt, 15),
			},
			Offender: Ref{Var: "s"},
			Message: Text{
				Format: "RO pressure sensor %v reads %v bar, outside [8, 15]",
				Args:   []Term{Ref{Var: "s", Property: "sensorId"}, Ref{Var: "s", Property: "lastValue"}},
			},
		},
		{
			ID:          "CONS007",
			Name:        "EDI stack voltage",
			Description: "EDI voltage sensors must read between 200 and 600 volts.",
			Kind:        KindValueRange,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{
				equipmentSensorReading("EDI", "Voltage", pattern.OpLt, 200),
				equipmentSensorReading("EDI", "Voltage", pattern.OpGt, 600),
			},
			Offender: Ref{Var: "s"},
			Message: Text{
				Format: "EDI voltage sensor %v reads %v V, outside [200, 600]",
				Args:   []Term{Ref{Var: "s", Property: "sensorId"}, Ref{Var: "s", Property: "lastValue"}},
			},
		},
		{
			ID:          "CONS008",
			Name:        "UV lamp intensity",
			Description: "UV intensity must stay at or above 30 percent.",
			Kind:        KindValueRange,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{
				equipmentSensorReading("UVSterilizer", "Intensity", pattern.OpLt, 30),
			},
			Offender: Ref{Var: "s"},
			Message: Text{
				Format: "UV intensity sensor %v reads %v%%, below 30%%",
				Args:   []Term{Ref{Var: "s", Property: "sensorId"}, Ref{Var: "s", Property: "lastValue"}},
			},
		},
		{
			ID:          "CONS009",
			Name:        "Polishing output conductivity",
			Description: "EDI outlet conductivity must not exceed 1.0 uS/cm.",
			Kind:        KindValueRange,
			Severity:    SeverityCritical,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "e", Labels: []string{"Equipment"}},
					{Var: "s", Labels: []string{"Sensor"}},
				},
				Edges: []pattern.EdgeClause{{From: "e", To: "s", Type: "HAS_SENSOR"}},
				Where: []pattern.Condition{
					{Var: "e", Property: "type", Op: pattern.OpEq, Value: "EDI"},
					{Var: "s", Property: "type", Op: pattern.OpEq, Value: "Conductivity"},
					{Var: "s", Property: "location", Op: pattern.OpEq, Value: "Outlet"},
					{Var: "s", Property: "lastValue", Op: pattern.OpGt, Value: 1.0},
				},
			}},
			Offender: Ref{Var: "s"},
			Message: Text{
				Format: "Outlet conductivity %v uS/cm on %v exceeds the 1.0 limit",
				Args:   []Term{Ref{Var: "s", Property: "lastValue"}, Ref{Var: "e", Property: "equipmentId"}},
			},
		},
		{
			ID:          "CONS010",
			Name:        "Minimum flow",
			Description: "Flow sensors must read at least 30 m3/h.",
			Kind:        KindValueRange,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{
				sensorReading("Flow", pattern.OpLt, 30),
			},
			Offender: Ref{Var: "s"},
			Message: Text{
				Format: "Flow sensor %v reads %v m3/h, below 30",
				Args:   []Term{Ref{Var: "s", Property: "sensorId"}, Ref{Var: "s", Property: "lastValue"}},
			},
		},
		{
			ID:          "CONS011",
			Name:        "Operating hours budget",
			Description: "Equipment past 8000 operating hours is due for overhaul.",
			Kind:        KindValueRange,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{
				equipmentWhere(pattern.Condition{Var: "n", Property: "operatingHours", Op: pattern.OpGt, Value: 8000}),
			},
			Offender: Ref{Var: "n"},
			Message: Text{
				Format: "Equipment %v has %v operating hours, past the 8000 hour budget",
				Args:   []Term{Ref{Var: "n", Property: "equipmentId"}, Ref{Var: "n", Property: "operatingHours"}},
			},
		},
		{
			ID:          "CONS012",
			Name:        "Installation date dependency",
			Description: "Equipment with an installation date must also track operating hours.",
			Kind:        KindDependency,
			Severity:    SeverityLow,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "n", Labels: []string{"Equipment"}, WithoutLabels: []string{graph.LabelInferred}},
				},
				Where: []pattern.Condition{
					{Var: "n", Property: "installedAt", Op: pattern.OpExists},
					{Var: "n", Property: "operatingHours", Op: pattern.OpAbsent},
				},
			}},
			Offender: Ref{Var: "n"},
			Message: Text{
				Format: "Equipment %v records installedAt but not operatingHours",
				Args:   []Term{Ref{Var: "n", Property: "equipmentId"}},
			},
		},
		{
			ID:          "CONS013",
			Name:        "Equipment identifier format",
			Description: "equipmentId must follow the plant naming convention, e.g. RO-001.",
			Kind:        KindPattern,
			Severity:    SeverityLow,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{{Var: "n", Labels: []string{"Equipment"}}},
				Where: []pattern.Condition{
					{Var: "n", Property: "equipmentId", Op: pattern.OpExists},
					{Var: "n", Property: "equipmentId", Op: pattern.OpNotMatches, Pattern: equipmentIDPattern},
				},
			}},
			Offender: Ref{Var: "n"},
			Message: Text{
				Format: "equipmentId %v does not match %s",
				Args:   []Term{Ref{Var: "n", Property: "equipmentId"}, Lit{equipmentIDPattern}},
			},
		},
	}
}

func equipmentMissing(property string) *pattern.Pattern {
	return &pattern.Pattern{
		Nodes: []pattern.NodeClause{
			{Var: "n", Labels: []string{"Equipment"}, WithoutLabels: []string{graph.LabelInferred}},
		},
		Where: []pattern.Condition{{Var: "n", Property: property, Op: pattern.OpAbsent}},
	}
}

func sensorReading(sensorType string, op pattern.Op, limit float64) *pattern.Pattern {
	return &pattern.Pattern{
		Nodes: []pattern.NodeClause{{Var: "s", Labels: []string{"Sensor"}}},
		Where: []pattern.Condition{
			{Var: "s", Property: "type", Op: pattern.OpEq, Value: sensorType},
			{Var: "s", Property: "lastValue", Op: op, Value: limit},
		},
	}
}

func equipmentSensorReading(equipmentType, sensorType string, op pattern.Op, limit float64) *pattern.Pattern {
	return &pattern.Pattern{
		Nodes: []pattern.NodeClause{
			{Var: "e", Labels: []string{"Equipment"}},
			{Var: "s", Labels: []string{"Sensor"}},
		},
		Edges: []pattern.EdgeClause{{From: "e", To: "s", Type: "HAS_SENSOR"}},
		Where: []pattern.Condition{
			{Var: "e", Property: "type", Op: pattern.OpEq, Value: equipmentType},
			{Var: "s", Property: "type", Op: pattern.OpEq, Value: sensorType},
			{Var: "s", Property: "lastValue", Op: op, Value: limit},
		},
	}
}
