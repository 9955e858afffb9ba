// Package store implements the Tuple Store (C1, spec.md §4.1): a thin,
// schema-introspectable abstraction over a relational backend holding Fs,
// Fo, and Chase. Each fragment is modeled as a distinct PostgreSQL schema
// ("fs", "fo", "chase") inside one database, selected per Store value, so
// that C8's transfer step can read from one schema and write to another
// inside a single transaction (spec.md §9, "Atomicity").
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	fschema "github.com/fragmentdb/fragment/pkg/schema"
)

// Execer is the minimal database handle every Store operation needs. Both
// *sql.DB and *sql.Tx satisfy it, which lets callers run a sequence of
// Store operations inside one transaction when atomicity is required
// (spec.md §9).
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Value is a tagged tuple value: either text or integer, per the sum-type
// guidance in spec.md §9 ("Use sum types rather than generic maps").
type Value struct {
	Text  string
	Int   int64
	IsInt bool
}

// Text constructs a text Value.
func Text(s string) Value { return Value{Text: s} }

// Int constructs an integer Value.
func Int(i int64) Value { return Value{Int: i, IsInt: true} }

// Raw returns the value as an any suitable for passing to database/sql.
func (v Value) Raw() any {
	if v.IsInt {
		return v.Int
	}
	return v.Text
}

// String renders the value the way it appears in a derivation node, "R:k:c"
// wire form (spec.md §9).
func (v Value) String() string {
	if v.IsInt {
		return fmt.Sprintf("%d", v.Int)
	}
	return v.Text
}

// Row is an ordered tuple of values, positionally aligned with a
// relation's column list.
type Row []Value

// Store is a handle onto one fragment (Fs, Fo, or Chase), scoped to a
// single PostgreSQL schema.
type Store struct {
	db         Execer
	schemaName string
}

// New returns a Store scoped to schemaName (e.g. "fs", "fo", "chase").
func New(db Execer, schemaName string) *Store {
	return &Store{db: db, schemaName: schemaName}
}

// SchemaName returns the PostgreSQL schema this Store is scoped to.
func (s *Store) SchemaName() string { return s.schemaName }

func (s *Store) qualify(relation string) string {
	return fmt.Sprintf("%s.%s", quoteIdent(s.schemaName), quoteIdent(relation))
}

// quoteIdent double-quotes a Postgres identifier, escaping embedded quotes.
// Relation and schema names originate from the fixed schema / rule files,
// never from end-user request bodies, but we quote defensively anyway since
// the fixed-schema assumption is an invariant of the caller, not of this
// package.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// EnsureSchema creates this Store's backing PostgreSQL schema if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(s.schemaName)))
	if err != nil {
		return fmt.Errorf("ensuring schema %s: %w", s.schemaName, err)
	}
	return nil
}

// Relations lists every relation (table) known to this Store's schema.
func (s *Store) Relations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, s.schemaName)
	if err != nil {
		return nil, fmt.Errorf("listing relations in %s: %w", s.schemaName, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning relation name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Columns introspects a relation's column layout and primary key, the
// PostgreSQL analog of the source's PRAGMA table_info (spec.md §4.1).
// An error wrapping ErrRelationMissing is returned if the relation does not
// exist in this Store's schema.
func (s *Store) Columns(ctx context.Context, relation string) (fschema.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.column_name,
		       EXISTS (
		           SELECT 1
		           FROM information_schema.table_constraints tc
		           JOIN information_schema.key_column_usage kcu
		             ON tc.constraint_name = kcu.constraint_name
		            AND tc.table_schema = kcu.table_schema
		           WHERE tc.table_schema = c.table_schema
		             AND tc.table_name = c.table_name
		             AND tc.constraint_type = 'PRIMARY KEY'
		             AND kcu.column_name = c.column_name
		       ) AS is_pk
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, s.schemaName, relation)
	if err != nil {
		return fschema.Relation{}, fmt.Errorf("introspecting columns of %s.%s: %w", s.schemaName, relation, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []fschema.Column
	for rows.Next() {
		var c fschema.Column
		if err := rows.Scan(&c.Name, &c.PrimaryKey); err != nil {
			return fschema.Relation{}, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return fschema.Relation{}, err
	}
	if len(cols) == 0 {
		return fschema.Relation{}, fmt.Errorf("relation %s.%s: %w", s.schemaName, relation, ErrRelationMissing)
	}
	return fschema.Relation{Name: relation, Columns: cols}, nil
}

// EnsureRelation creates relation in this Store's schema if it does not
// already exist, cloning rel's column list with TEXT types — acceptable
// per spec.md §4.8 ("all columns as text is acceptable if types are not
// propagated"). Used by C3 and C8 to mirror a relation into Fo on first
// transfer.
func (s *Store) EnsureRelation(ctx context.Context, rel fschema.Relation) error {
	var defs []string
	var pkCols []string
	for _, c := range rel.Columns {
		defs = append(defs, fmt.Sprintf("%s TEXT", quoteIdent(c.Name)))
		if c.PrimaryKey {
			pkCols = append(pkCols, quoteIdent(c.Name))
		}
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s", s.qualify(rel.Name), strings.Join(defs, ", "))
	if len(pkCols) > 0 {
		ddl += fmt.Sprintf(", PRIMARY KEY (%s)", strings.Join(pkCols, ", "))
	} else {
		ddl += fmt.Sprintf(", UNIQUE (%s)", strings.Join(quoteAll(rel.ColumnNames()), ", "))
	}
	ddl += ")"

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring relation %s.%s: %w", s.schemaName, rel.Name, err)
	}
	return nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}
