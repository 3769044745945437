package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/pattern"
)

func TestBuiltin(t *testing.T) {
	c := Builtin()

	assert.Len(t, c.Rules(), 5)
	assert.Len(t, c.Axioms(), 14)
	assert.Len(t, c.Constraints(), 13)

	rule, ok := c.Rule("maintenance-needed")
	require.True(t, ok)
	assert.Equal(t, "Maintenance Needed Detection", rule.Name)
	assert.NotNil(t, rule.Action.Node)
	assert.Equal(t, ToNewNode, rule.Action.Edge.To)

	axiom, ok := c.Axiom("AX001")
	require.True(t, ok)
	assert.Equal(t, KindDisjointClasses, axiom.Kind)
	assert.Equal(t, SeverityHigh, axiom.Severity)

	cons, ok := c.Constraint("CONS004")
	require.True(t, ok)
	assert.Equal(t, KindUniqueness, cons.Kind)
	assert.Equal(t, SeverityCritical, cons.Severity)

	_, ok = c.Rule("ghost")
	assert.False(t, ok)
}

func TestBuiltin_ListingOrderIsStable(t *testing.T) {
	c := Builtin()
	axioms := c.Axioms()
	require.GreaterOrEqual(t, len(axioms), 2)
	assert.Equal(t, "AX001", axioms[0].ID)
	assert.Equal(t, "AX002", axioms[1].ID)

	constraints := c.Constraints()
	assert.Equal(t, "CONS001", constraints[0].ID)
}

func TestBuiltin_PatternsCompiled(t *testing.T) {
	c := Builtin()

	// All patterns must be evaluable straight from the catalog.
	store := graph.NewMemoryStore()
	defer store.Close()
	err := store.Read(context.Background(), func(v graph.View) error {
		for _, r := range c.Rules() {
			for _, p := range r.Match {
				_, err := pattern.Evaluate(v, p, nil)
				require.NoError(t, err, "rule %s", r.ID)
			}
		}
		for _, a := range c.Axioms() {
			for _, p := range a.Match {
				_, err := pattern.Evaluate(v, p, nil)
				require.NoError(t, err, "axiom %s", a.ID)
			}
		}
		for _, cons := range c.Constraints() {
			for _, p := range cons.Match {
				_, err := pattern.Evaluate(v, p, nil)
				require.NoError(t, err, "constraint %s", cons.ID)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	validPattern := func() *pattern.Pattern {
		return &pattern.Pattern{Nodes: []pattern.NodeClause{{Var: "n", Labels: []string{"Equipment"}}}}
	}

	tests := []struct {
		name string
		rule *Rule
	}{
		{"no id", &Rule{Match: []*pattern.Pattern{validPattern()}, Action: Action{Edge: &EdgeTemplate{Type: "X", From: "n", To: "n"}}}},
		{"no pattern", &Rule{ID: "r", Action: Action{Edge: &EdgeTemplate{Type: "X", From: "n", To: "n"}}}},
		{"no action", &Rule{ID: "r", Match: []*pattern.Pattern{validPattern()}}},
		{"node template without key", &Rule{
			ID:    "r",
			Match: []*pattern.Pattern{validPattern()},
			Action: Action{Node: &NodeTemplate{Labels: []string{"X"}}},
		}},
		{"edge to new node without node template", &Rule{
			ID:    "r",
			Match: []*pattern.Pattern{validPattern()},
			Action: Action{Edge: &EdgeTemplate{Type: "X", From: "n", To: ToNewNode}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]*Rule{tt.rule}, nil, nil)
			assert.Error(t, err)
		})
	}

	t.Run("duplicate rule id", func(t *testing.T) {
		mk := func() *Rule {
			return &Rule{
				ID:    "dup",
				Match: []*pattern.Pattern{validPattern()},
				Action: Action{
					Node: &NodeTemplate{Labels: []string{"X"}, Key: map[string]Term{"k": Lit{1}}},
				},
			}
		}
		_, err := New([]*Rule{mk(), mk()}, nil, nil)
		assert.ErrorContains(t, err, "duplicate rule id")
	})

	t.Run("axiom without offender", func(t *testing.T) {
		_, err := New(nil, []*Axiom{{
			ID:      "a",
			Match:   []*pattern.Pattern{validPattern()},
			Message: Lit{"m"},
		}}, nil)
		assert.ErrorContains(t, err, "offender")
	})
}

func TestTerms(t *testing.T) {
	b := pattern.NewBinding()
	b.Nodes["e"] = &graph.Node{
		ID:         "RO-001",
		Labels:     []string{"Equipment"},
		Properties: map[string]any{"equipmentId": "RO-001", "healthScore": 52.0},
	}
	b.Values["cnt"] = 3

	tests := []struct {
		name string
		term Term
		want any
	}{
		{"lit", Lit{"Pending"}, "Pending"},
		{"ref property", Ref{Var: "e", Property: "healthScore"}, 52.0},
		{"ref node id", Ref{Var: "e"}, "RO-001"},
		{"ref aggregate value", Ref{Var: "cnt"}, 3},
		{"ref missing", Ref{Var: "e", Property: "ghost"}, nil},
		{"text", Text{Format: "score %v on %v", Args: []Term{Ref{Var: "e", Property: "healthScore"}, Ref{Var: "e", Property: "equipmentId"}}}, "score 52 on RO-001"},
		{"when true", When{Var: "e", Property: "healthScore", Op: pattern.OpLt, Value: 60, Then: Lit{"High"}, Else: Lit{"Medium"}}, "High"},
		{"when false", When{Var: "e", Property: "healthScore", Op: pattern.OpGt, Value: 60, Then: Lit{"High"}, Else: Lit{"Medium"}}, "Medium"},
		{"when missing property", When{Var: "e", Property: "ghost", Op: pattern.OpLt, Value: 60, Then: Lit{"High"}, Else: Lit{"Medium"}}, "Medium"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.term.Resolve(b))
		})
	}
}
