package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
	"github.com/fragmentdb/fragment/test/testutil"
)

func seedIllness(t *testing.T, s *store.Store, rows ...store.Row) {
	t.Helper()
	n, err := s.InsertIfAbsent(context.Background(), illnessRelation(), rows)
	require.NoError(t, err)
	assert.Equal(t, len(rows), n)
}

func TestInsertIfAbsent_SkipsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))

	row := store.Row{store.Text("alice"), store.Text("HIV")}
	seedIllness(t, s, row)

	// Re-inserting the identical row should insert zero new rows.
	n, err := s.InsertIfAbsent(ctx, illnessRelation(), []store.Row{row})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rows, err := s.Select(ctx, illnessRelation(), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSelect_FiltersByWhere(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))
	seedIllness(t, s,
		store.Row{store.Text("alice"), store.Text("HIV")},
		store.Row{store.Text("bob"), store.Text("Flu")},
	)

	rows, err := s.Select(ctx, illnessRelation(), map[string]store.Value{"name": store.Text("alice")})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "HIV", rows[0][1].String())
}

func TestSelectAnyColumnEquals(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))
	seedIllness(t, s,
		store.Row{store.Text("alice"), store.Text("HIV")},
		store.Row{store.Text("bob"), store.Text("Flu")},
	)

	rows, err := s.SelectAnyColumnEquals(ctx, illnessRelation(), []string{"name", "value"}, store.Text("HIV"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0][0].String())
}

func TestHolds(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))
	seedIllness(t, s, store.Row{store.Text("alice"), store.Text("HIV")})

	ok, err := s.Holds(ctx, illnessRelation(), "alice", "HIV")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Holds(ctx, illnessRelation(), "alice", "Flu")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))
	seedIllness(t, s, store.Row{store.Text("alice"), store.Text("HIV")})

	ok, err := s.Exists(ctx, illnessRelation(), map[string]store.Value{"name": store.Text("alice")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, illnessRelation(), map[string]store.Value{"name": store.Text("ghost")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteByKey(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))
	seedIllness(t, s, store.Row{store.Text("alice"), store.Text("HIV")})

	n, err := s.DeleteByKey(ctx, illnessRelation(), map[string]store.Value{"name": store.Text("alice"), "value": store.Text("HIV")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.Select(ctx, illnessRelation(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubjectsWithConstant(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))
	seedIllness(t, s,
		store.Row{store.Text("alice"), store.Text("HIV")},
		store.Row{store.Text("bob"), store.Text("HIV")},
		store.Row{store.Text("carol"), store.Text("Flu")},
	)

	subjects, err := s.SubjectsWithConstant(ctx, illnessRelation(), "HIV")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, subjects)
}

func TestCopyAllInto(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	sc := schema.New(illnessRelation())

	src := testutil.SeedSchema(t, db, "fs", sc)
	dst := testutil.SeedSchema(t, db, "fo", sc)

	seedIllness(t, src, store.Row{store.Text("alice"), store.Text("HIV")})

	n, err := src.CopyAllInto(ctx, dst, sc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := dst.Select(ctx, illnessRelation(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0][0].String())

	// Re-running the copy should not duplicate rows (InsertIfAbsent).
	n, err = src.CopyAllInto(ctx, dst, sc)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountRows(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))
	seedIllness(t, s,
		store.Row{store.Text("alice"), store.Text("HIV")},
		store.Row{store.Text("bob"), store.Text("Flu")},
	)

	n, err := s.CountRows(ctx, "Illness")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
