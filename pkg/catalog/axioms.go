package catalog

import (
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/pattern"
)

// builtinAxioms returns the shipped domain-model invariants. Each axiom's
// patterns match violating subgraphs; an empty result means the axiom
// holds.
func builtinAxioms() []*Axiom {
	return []*Axiom{
		{
			ID:          "AX001",
			Name:        "Equipment and Sensor are disjoint",
			Description: "No node may carry both the Equipment and the Sensor label.",
			Kind:        KindDisjointClasses,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{{Var: "n", Labels: []string{"Equipment", "Sensor"}}},
			}},
			Offender: Ref{Var: "n"},
			Message:  Text{Format: "Node %v carries both Equipment and Sensor labels", Args: []Term{Ref{Var: "n"}}},
		},
		{
			ID:          "AX002",
			Name:        "Health score range",
			Description: "Equipment healthScore must lie between 0 and 100.",
			Kind:        KindPropertyRange,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{
				equipmentWhere(pattern.Condition{Var: "n", Property: "healthScore", Op: pattern.OpLt, Value: 0}),
				equipmentWhere(pattern.Condition{Var: "n", Property: "healthScore", Op: pattern.OpGt, Value: 100}),
			},
			Offender: Ref{Var: "n"},
			Message: Text{
				Format: "Equipment %v has healthScore %v outside [0, 100]",
				Args:   []Term{Ref{Var: "n", Property: "equipmentId"}, Ref{Var: "n", Property: "healthScore"}},
			},
			Details: map[string]Term{"healthScore": Ref{Var: "n", Property: "healthScore"}},
		},
		{
			ID:          "AX003",
			Name:        "HAS_SENSOR inverse",
			Description: "Every HAS_SENSOR edge must be mirrored by IS_ATTACHED_TO.",
			Kind:        KindInverseProperty,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "e", Labels: []string{"Equipment"}},
					{Var: "s", Labels: []string{"Sensor"}},
				},
				Edges:  []pattern.EdgeClause{{From: "e", To: "s", Type: "HAS_SENSOR"}},
				Absent: []pattern.AbsentClause{{From: "s", Type: "IS_ATTACHED_TO", To: "e"}},
			}},
			Offender: Ref{Var: "s"},
			Message: Text{
				Format: "Sensor %v lacks the IS_ATTACHED_TO edge back to equipment %v",
				Args:   []Term{Ref{Var: "s", Property: "sensorId"}, Ref{Var: "e", Property: "equipmentId"}},
			},
		},
		{
			ID:          "AX004",
			Name:        "FEEDS_INTO transitivity",
			Description: "FEEDS_INTO chains must be closed transitively.",
			Kind:        KindTransitive,
			Severity:    SeverityLow,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "a", Labels: []string{"Equipment"}},
					{Var: "b", Labels: []string{"Equipment"}},
					{Var: "c", Labels: []string{"Equipment"}},
				},
				Edges: []pattern.EdgeClause{
					{From: "a", To: "b", Type: "FEEDS_INTO"},
					{From: "b", To: "c", Type: "FEEDS_INTO"},
				},
				Where: []pattern.Condition{
					{Var: "a", Property: "equipmentId", Op: pattern.OpNe, ValueVar: "c", ValueProperty: "equipmentId"},
				},
				Absent: []pattern.AbsentClause{{From: "a", Type: "FEEDS_INTO", To: "c"}},
			}},
			Offender: Ref{Var: "a"},
			Message: Text{
				Format: "Missing transitive FEEDS_INTO from %v to %v",
				Args:   []Term{Ref{Var: "a", Property: "equipmentId"}, Ref{Var: "c", Property: "equipmentId"}},
			},
		},
		{
			ID:          "AX005",
			Name:        "Health score is functional",
			Description: "Every physical equipment node has exactly one healthScore value.",
			Kind:        KindFunctional,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "n", Labels: []string{"Equipment"}, WithoutLabels: []string{graph.LabelInferred}},
				},
				Where: []pattern.Condition{{Var: "n", Property: "healthScore", Op: pattern.OpAbsent}},
			}},
			Offender: Ref{Var: "n"},
			Message: Text{
				Format: "Equipment %v has no healthScore",
				Args:   []Term{Ref{Var: "n", Property: "equipmentId"}},
			},
		},
		{
			ID:          "AX006",
			Name:        "RO removes conductivity",
			Description: "Reverse osmosis inlet conductivity must exceed outlet conductivity.",
			Kind:        KindDomainInvariant,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "e", Labels: []string{"Equipment"}},
					{Var: "in", Labels: []string{"Sensor"}},
					{Var: "out", Labels: []string{"Sensor"}},
				},
				Edges: []pattern.EdgeClause{
					{From: "e", To: "in", Type: "HAS_SENSOR"},
					{From: "e", To: "out", Type: "HAS_SENSOR"},
				},
				Where: []pattern.Condition{
					{Var: "e", Property: "type", Op: pattern.OpEq, Value: "ReverseOsmosis"},
					{Var: "in", Property: "type", Op: pattern.OpEq, Value: "Conductivity"},
					{Var: "in", Property: "location", Op: pattern.OpEq, Value: "Inlet"},
					{Var: "out", Property: "type", Op: pattern.OpEq, Value: "Conductivity"},
					{Var: "out", Property: "location", Op: pattern.OpEq, Value: "Outlet"},
					{Var: "in", Property: "lastValue", Op: pattern.OpLe, ValueVar: "out", ValueProperty: "lastValue"},
				},
			}},
			Offender: Ref{Var: "e"},
			Message: Text{
				Format: "RO unit %v outlet conductivity %v is not below inlet conductivity %v",
				Args: []Term{
					Ref{Var: "e", Property: "equipmentId"},
					Ref{Var: "out", Property: "lastValue"},
					Ref{Var: "in", Property: "lastValue"},
				},
			},
		},
		{
			ID:          "AX007",
			Name:        "EDI electrical sensors",
			Description: "EDI units need both a voltage and a current sensor.",
			Kind:        KindDomainInvariant,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{
				missingSensor("EDI", "Voltage"),
				missingSensor("EDI", "Current"),
			},
			Offender: Ref{Var: "e"},
			Message: Text{
				Format: "EDI unit %v is missing a required electrical sensor",
				Args:   []Term{Ref{Var: "e", Property: "equipmentId"}},
			},
		},
		{
			ID:          "AX008",
			Name:        "UV intensity sensor",
			Description: "UV sterilizers need an intensity sensor.",
			Kind:        KindDomainInvariant,
			Severity:    SeverityMedium,
			Match:       []*pattern.Pattern{missingSensor("UVSterilizer", "Intensity")},
			Offender:    Ref{Var: "e"},
			Message: Text{
				Format: "UV sterilizer %v has no intensity sensor",
				Args:   []Term{Ref{Var: "e", Property: "equipmentId"}},
			},
		},
		{
			ID:          "AX009",
			Name:        "Process stage ordering",
			Description: "FEEDS_INTO must point from earlier to later purification stages.",
			Kind:        KindDomainInvariant,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "a", Labels: []string{"Equipment"}},
					{Var: "b", Labels: []string{"Equipment"}},
				},
				Edges: []pattern.EdgeClause{{From: "a", To: "b", Type: "FEEDS_INTO"}},
				Where: []pattern.Condition{
					{Var: "a", Property: "stageOrder", Op: pattern.OpGe, ValueVar: "b", ValueProperty: "stageOrder"},
				},
			}},
			Offender: Ref{Var: "a"},
			Message: Text{
				Format: "%v feeds into %v against the process stage order",
				Args:   []Term{Ref{Var: "a", Property: "equipmentId"}, Ref{Var: "b", Property: "equipmentId"}},
			},
		},
		{
			ID:          "AX010",
			Name:        "RO membrane differential",
			Description: "RO inlet pressure must exceed outlet pressure by more than 1.5 bar.",
			Kind:        KindDomainInvariant,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "e", Labels: []string{"Equipment"}},
					{Var: "in", Labels: []string{"Sensor"}},
					{Var: "out", Labels: []string{"Sensor"}},
				},
				Edges: []pattern.EdgeClause{
					{From: "e", To: "in", Type: "HAS_SENSOR"},
					{From: "e", To: "out", Type: "HAS_SENSOR"},
				},
				Where: []pattern.Condition{
					{Var: "e", Property: "type", Op: pattern.OpEq, Value: "ReverseOsmosis"},
					{Var: "in", Property: "type", Op: pattern.OpEq, Value: "Pressure"},
					{Var: "in", Property: "location", Op: pattern.OpEq, Value: "Inlet"},
					{Var: "out", Property: "type", Op: pattern.OpEq, Value: "Pressure"},
					{Var: "out", Property: "location", Op: pattern.OpEq, Value: "Outlet"},
					{Var: "in", Property: "lastValue", Op: pattern.OpLe, ValueVar: "out", ValueProperty: "lastValue", Offset: 1.5},
				},
			}},
			Offender: Ref{Var: "e"},
			Message: Text{
				Format: "RO unit %v pressure differential between %v and %v bar is too small",
				Args: []Term{
					Ref{Var: "e", Property: "equipmentId"},
					Ref{Var: "in", Property: "lastValue"},
					Ref{Var: "out", Property: "lastValue"},
				},
			},
		},
		{
			ID:          "AX011",
			Name:        "Conductivity trend",
			Description: "A conductivity sensor rising more than 20% over its first reading signals resin exhaustion.",
			Kind:        KindDomainInvariant,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{{Var: "s", Labels: []string{"Sensor"}}},
				Where: []pattern.Condition{
					{Var: "s", Property: "type", Op: pattern.OpEq, Value: "Conductivity"},
					{Var: "s", Property: "lastValue", Op: pattern.OpGt, ValueVar: "s", ValueProperty: "firstValue", Scale: 1.2},
				},
			}},
			Offender: Ref{Var: "s"},
			Message: Text{
				Format: "Conductivity sensor %v rose from %v to %v",
				Args: []Term{
					Ref{Var: "s", Property: "sensorId"},
					Ref{Var: "s", Property: "firstValue"},
					Ref{Var: "s", Property: "lastValue"},
				},
			},
		},
		{
			ID:          "AX012",
			Name:        "CORRELATES_WITH symmetry",
			Description: "Asserted sensor correlation is mutual; each edge needs its mirror. Derived correlation edges are exempt, the engine owns their direction.",
			Kind:        KindSymmetric,
			Severity:    SeverityLow,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{
					{Var: "s1", Labels: []string{"Sensor"}},
					{Var: "s2", Labels: []string{"Sensor"}},
				},
				Edges: []pattern.EdgeClause{{Var: "r", From: "s1", To: "s2", Type: "CORRELATES_WITH"}},
				Where: []pattern.Condition{
					{Var: "r", Property: graph.PropDerived, Op: pattern.OpAbsent},
				},
				Absent: []pattern.AbsentClause{{From: "s2", Type: "CORRELATES_WITH", To: "s1"}},
			}},
			Offender: Ref{Var: "s2"},
			Message: Text{
				Format: "Sensor %v correlates with %v but not the other way around",
				Args:   []Term{Ref{Var: "s1", Property: "sensorId"}, Ref{Var: "s2", Property: "sensorId"}},
			},
		},
		{
			ID:          "AX013",
			Name:        "Sensor identifier is inverse functional",
			Description: "A sensorId identifies at most one sensor node.",
			Kind:        KindInverseFunctional,
			Severity:    SeverityHigh,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{{Var: "s", Labels: []string{"Sensor"}}},
				Aggregate: &pattern.Aggregate{
					GroupBy: []pattern.Key{{Var: "s", Property: "sensorId", As: "sensorId"}},
					Over:    "s",
					Reduce:  []pattern.Reducer{{As: "cnt", Kind: pattern.ReduceCount}},
					Having:  []pattern.HavingCondition{{Left: "cnt", Op: pattern.OpGt, Value: 1}},
				},
			}},
			Offender: Text{Format: "group:Sensor.sensorId=%v", Args: []Term{Ref{Var: "sensorId"}}},
			Message: Text{
				Format: "sensorId %v is shared by %v sensor nodes",
				Args:   []Term{Ref{Var: "sensorId"}, Ref{Var: "cnt"}},
			},
			Details: map[string]Term{"count": Ref{Var: "cnt"}},
		},
		{
			ID:          "AX014",
			Name:        "Health score domain",
			Description: "Only Equipment nodes may carry a healthScore property.",
			Kind:        KindPropertyDomain,
			Severity:    SeverityMedium,
			Match: []*pattern.Pattern{{
				Nodes: []pattern.NodeClause{{Var: "n", WithoutLabels: []string{"Equipment"}}},
				Where: []pattern.Condition{{Var: "n", Property: "healthScore", Op: pattern.OpExists}},
			}},
			Offender: Ref{Var: "n"},
			Message:  Text{Format: "Non-equipment node %v carries a healthScore property", Args: []Term{Ref{Var: "n"}}},
		},
	}
}

// equipmentWhere builds a one-clause equipment pattern with a single
// extra condition, shared by the range axioms.
func equipmentWhere(cond pattern.Condition) *pattern.Pattern {
	return &pattern.Pattern{
		Nodes: []pattern.NodeClause{{Var: "n", Labels: []string{"Equipment"}}},
		Where: []pattern.Condition{cond},
	}
}

// missingSensor matches equipment of the given type lacking a sensor of
// the given sensor type.
func missingSensor(equipmentType, sensorType string) *pattern.Pattern {
	return &pattern.Pattern{
		Nodes: []pattern.NodeClause{
			{Var: "e", Labels: []string{"Equipment"}, WithoutLabels: []string{graph.LabelInferred}},
		},
		Where: []pattern.Condition{
			{Var: "e", Property: "type", Op: pattern.OpEq, Value: equipmentType},
		},
		Degrees: []pattern.DegreeCondition{{
			Var: "e", EdgeType: "HAS_SENSOR", Direction: pattern.Out,
			TargetLabel: "Sensor",
			TargetWhere: []pattern.Condition{{Property: "type", Op: pattern.OpEq, Value: sensorType}},
			Op:          pattern.OpLt, Value: 1,
		}},
	}
}
