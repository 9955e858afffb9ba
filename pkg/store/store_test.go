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

func illnessRelation() schema.Relation {
	return schema.Relation{
		Name: "Illness",
		Columns: []schema.Column{
			{Name: "name"},
			{Name: "value"},
		},
	}
}

func patientRelation() schema.Relation {
	return schema.Relation{
		Name: "Patient",
		Columns: []schema.Column{
			{Name: "name", PrimaryKey: true},
			{Name: "age"},
			{Name: "gender"},
		},
	}
}

func TestEnsureRelation_NoDeclaredPK_UsesFullRowUnique(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))

	rel := illnessRelation()
	require.NoError(t, s.EnsureRelation(ctx, rel))
	// Idempotent: ensuring twice must not error.
	require.NoError(t, s.EnsureRelation(ctx, rel))

	cols, err := s.Columns(ctx, rel.Name)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"name", "value"}, cols.ColumnNames())
}

func TestEnsureRelation_DeclaredPK(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))

	rel := patientRelation()
	require.NoError(t, s.EnsureRelation(ctx, rel))

	cols, err := s.Columns(ctx, rel.Name)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"name", "age", "gender"}, cols.ColumnNames())
}

func TestColumns_UnknownRelation(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))

	_, err := s.Columns(ctx, "Ghost")
	assert.ErrorIs(t, err, store.ErrRelationMissing)
}

func TestRelations_ListsEnsuredTables(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	s := store.New(db, "fs")
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureRelation(ctx, illnessRelation()))
	require.NoError(t, s.EnsureRelation(ctx, patientRelation()))

	names, err := s.Relations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Illness", "Patient"}, names)
}

func TestSchemaName(t *testing.T) {
	db := testutil.DB(t)
	s := store.New(db, "fo")
	assert.Equal(t, "fo", s.SchemaName())
}
