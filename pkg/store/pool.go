package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	fschema "github.com/fragmentdb/fragment/pkg/schema"
)

// ExistenceChecker answers whether R(k,c) exists in one schema, over a
// pgxpool connection pool instead of database/sql. Nothing in this module
// uses it: the backward derivation walk (C5) runs its checks one at a time
// through Store.Holds, and ExistenceChecker's Exists method does not
// satisfy derivation.Checker.
type ExistenceChecker struct {
	pool       *pgxpool.Pool
	schemaName string
}

// NewExistenceChecker wraps a pgxpool.Pool scoped to schemaName.
func NewExistenceChecker(pool *pgxpool.Pool, schemaName string) *ExistenceChecker {
	return &ExistenceChecker{pool: pool, schemaName: schemaName}
}

// Exists reports whether relation rel contains a row with the given
// subject key in its subject column and constant in any of its non-key
// columns — the existence test behind one derivation-graph edge expansion.
func (c *ExistenceChecker) Exists(ctx context.Context, rel fschema.Relation, subject, constant string) (bool, error) {
	nonKey := rel.NonKeyColumns()
	if len(nonKey) == 0 {
		return false, fmt.Errorf("relation %s has no candidate constant columns", rel.Name)
	}
	subjectCol := rel.SubjectColumn()

	clauses := ""
	args := []any{subject, constant}
	for i, col := range nonKey {
		if i > 0 {
			clauses += " OR "
		}
		clauses += fmt.Sprintf("%q = $2", col.Name)
	}

	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %q.%q WHERE %q = $1 AND (%s))`,
		c.schemaName, rel.Name, subjectCol, clauses,
	)

	var exists bool
	row := c.pool.QueryRow(ctx, query, args...)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("checking existence of %s(%s,%s): %w", rel.Name, subject, constant, err)
	}
	return exists, nil
}

// Close releases the underlying connection pool.
func (c *ExistenceChecker) Close() { c.pool.Close() }
