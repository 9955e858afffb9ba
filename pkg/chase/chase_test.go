package chase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmentdb/fragment/pkg/chase"
	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
	"github.com/fragmentdb/fragment/test/testutil"
)

func testSchema() *schema.Schema {
	return schema.New(
		schema.Relation{Name: "Illness", Columns: []schema.Column{{Name: "name"}, {Name: "value"}}},
		schema.Relation{Name: "Treatment", Columns: []schema.Column{{Name: "name"}, {Name: "value"}}},
		schema.Relation{Name: "Insurance", Columns: []schema.Column{{Name: "name"}, {Name: "value"}}},
	)
}

func TestRun_ConvergesAndDerivesTransitiveFacts(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	sc := testSchema()
	st := testutil.SeedSchema(t, db, "chase", sc)

	illness, _ := sc.Relation("Illness")
	_, err := st.InsertIfAbsent(ctx, illness, []store.Row{{store.Text("alice"), store.Text("HIV")}})
	require.NoError(t, err)

	rs := []rules.Rule{
		{Body: []rules.Atom{{Relation: "Illness", Constant: "HIV"}}, Head: rules.Atom{Relation: "Treatment", Constant: "AZT"}},
		{Body: []rules.Atom{{Relation: "Treatment", Constant: "AZT"}}, Head: rules.Atom{Relation: "Insurance", Constant: "Denied"}},
	}

	e := chase.New(st, sc, rs)
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Inserted)

	insurance, _ := sc.Relation("Insurance")
	ok, err := st.Holds(ctx, insurance, "alice", "Denied")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_NoMatchingBodyInsertsNothing(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	sc := testSchema()
	st := testutil.SeedSchema(t, db, "chase", sc)

	rs := []rules.Rule{
		{Body: []rules.Atom{{Relation: "Illness", Constant: "HIV"}}, Head: rules.Atom{Relation: "Treatment", Constant: "AZT"}},
	}

	e := chase.New(st, sc, rs)
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 0, res.Inserted)
}

func TestRun_IterationCapHitReturnsRecoverableError(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	sc := testSchema()
	st := testutil.SeedSchema(t, db, "chase", sc)

	illness, _ := sc.Relation("Illness")
	_, err := st.InsertIfAbsent(ctx, illness, []store.Row{{store.Text("alice"), store.Text("HIV")}})
	require.NoError(t, err)

	rs := []rules.Rule{
		{Body: []rules.Atom{{Relation: "Illness", Constant: "HIV"}}, Head: rules.Atom{Relation: "Treatment", Constant: "AZT"}},
		{Body: []rules.Atom{{Relation: "Treatment", Constant: "AZT"}}, Head: rules.Atom{Relation: "Insurance", Constant: "Denied"}},
	}

	e := chase.New(st, sc, rs)
	e.MaxIterations = 1
	res, err := e.Run(ctx)
	assert.ErrorIs(t, err, chase.ErrIterationCapHit)
	assert.False(t, res.Converged)
}
