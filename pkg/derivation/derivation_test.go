package derivation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
)

// fakeChecker answers Holds from an in-memory fact set, keyed by
// "relation:subject:constant", avoiding any database dependency.
type fakeChecker map[string]bool

func (f fakeChecker) Holds(_ context.Context, rel schema.Relation, subject, constant string) (bool, error) {
	return f[rel.Name+":"+subject+":"+constant], nil
}

func testSchema() *schema.Schema {
	return schema.New(
		schema.Relation{Name: "Illness", Columns: []schema.Column{{Name: "name"}, {Name: "value"}}},
		schema.Relation{Name: "Treatment", Columns: []schema.Column{{Name: "name"}, {Name: "value"}}},
		schema.Relation{Name: "Insurance", Columns: []schema.Column{{Name: "name"}, {Name: "value"}}},
	)
}

func TestExpand_BaseFactNoRule(t *testing.T) {
	sc := testSchema()
	root := rules.NewNode("Illness", "alice", "HIV")
	e := New(sc, rules.HeadIndex{}, fakeChecker{})

	graphs, err := e.Expand(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, graphs, 1)
	assert.Equal(t, Graph{root: nil}, graphs[0])
}

func TestExpand_SingleValidatingRule(t *testing.T) {
	sc := testSchema()
	idx := rules.IndexByHead([]rules.Rule{
		{Body: []rules.Atom{{Relation: "Illness", Constant: "HIV"}}, Head: rules.Atom{Relation: "Treatment", Constant: "AZT"}},
	})
	checker := fakeChecker{"Illness:alice:HIV": true}
	e := New(sc, idx, checker)

	root := rules.NewNode("Treatment", "alice", "AZT")
	graphs, err := e.Expand(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, graphs, 1)

	illness := rules.NewNode("Illness", "alice", "HIV")
	assert.Equal(t, []rules.Node{root}, graphs[0][illness])
	assert.Contains(t, graphs[0], root)
}

func TestExpand_RuleDoesNotValidateFallsBackToUnreachable(t *testing.T) {
	sc := testSchema()
	idx := rules.IndexByHead([]rules.Rule{
		{Body: []rules.Atom{{Relation: "Illness", Constant: "HIV"}}, Head: rules.Atom{Relation: "Treatment", Constant: "AZT"}},
	})
	// The body atom doesn't actually hold for this subject.
	checker := fakeChecker{}
	e := New(sc, idx, checker)

	root := rules.NewNode("Treatment", "alice", "AZT")
	graphs, err := e.Expand(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, graphs, 1)
	assert.Equal(t, Graph{root: nil}, graphs[0])
}

func TestExpand_DisjunctionProducesMultipleGraphs(t *testing.T) {
	sc := testSchema()
	idx := rules.IndexByHead([]rules.Rule{
		{Body: []rules.Atom{{Relation: "Illness", Constant: "HIV"}}, Head: rules.Atom{Relation: "Insurance", Constant: "Denied"}},
		{Body: []rules.Atom{{Relation: "Treatment", Constant: "AZT"}}, Head: rules.Atom{Relation: "Insurance", Constant: "Denied"}},
	})
	checker := fakeChecker{
		"Illness:alice:HIV":   true,
		"Treatment:alice:AZT": true,
	}
	e := New(sc, idx, checker)

	root := rules.NewNode("Insurance", "alice", "Denied")
	graphs, err := e.Expand(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, graphs, 2)
}

func TestExpand_CycleStopsRecursion(t *testing.T) {
	sc := testSchema()
	// Illness HIV derives Treatment AZT, which in turn (malformed input,
	// but defensively handled) derives Illness HIV again.
	idx := rules.IndexByHead([]rules.Rule{
		{Body: []rules.Atom{{Relation: "Illness", Constant: "HIV"}}, Head: rules.Atom{Relation: "Treatment", Constant: "AZT"}},
		{Body: []rules.Atom{{Relation: "Treatment", Constant: "AZT"}}, Head: rules.Atom{Relation: "Illness", Constant: "HIV"}},
	})
	checker := fakeChecker{"Illness:alice:HIV": true, "Treatment:alice:AZT": true}
	e := New(sc, idx, checker)

	root := rules.NewNode("Illness", "alice", "HIV")
	graphs, err := e.Expand(context.Background(), root)
	require.NoError(t, err)
	assert.NotEmpty(t, graphs)
}
