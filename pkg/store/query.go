package store

import (
	"context"
	"fmt"
	"strings"

	fschema "github.com/fragmentdb/fragment/pkg/schema"
)

// Select returns every row of relation whose columns match where exactly
// (an AND of equalities), projected onto the relation's full column list.
func (s *Store) Select(ctx context.Context, rel fschema.Relation, where map[string]Value) ([]Row, error) {
	cols := rel.ColumnNames()
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteAll(cols), ", "), s.qualify(rel.Name))

	var (
		args       []any
		conditions []string
	)
	for _, col := range cols {
		v, ok := where[col]
		if !ok {
			continue
		}
		args = append(args, v.Raw())
		conditions = append(conditions, fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	return s.runRows(ctx, query, args, len(cols))
}

// SelectAnyColumnEquals returns every row of relation where at least one of
// candidateCols equals value — the disjunctive "does this tuple mention the
// sensitive constant anywhere" query the Initial Extractor (C3) runs per
// root (spec.md §4.3, step 1).
func (s *Store) SelectAnyColumnEquals(ctx context.Context, rel fschema.Relation, candidateCols []string, value Value) ([]Row, error) {
	if len(candidateCols) == 0 {
		return nil, nil
	}
	cols := rel.ColumnNames()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE ", strings.Join(quoteAll(cols), ", "), s.qualify(rel.Name))

	var clauses []string
	for _, c := range candidateCols {
		clauses = append(clauses, fmt.Sprintf("%s = $1", quoteIdent(c)))
	}
	query += strings.Join(clauses, " OR ")

	return s.runRows(ctx, query, []any{value.Raw()}, len(cols))
}

// Holds reports whether rel(subject, constant) exists: a row whose subject
// column equals subject and at least one non-key column equals constant.
// This is the Checker interface pkg/derivation's backward expansion calls
// at every candidate edge (spec.md §4.5).
func (s *Store) Holds(ctx context.Context, rel fschema.Relation, subject, constant string) (bool, error) {
	nonKey := rel.NonKeyColumns()
	if len(nonKey) == 0 {
		return false, fmt.Errorf("relation %s has no candidate constant column", rel.Name)
	}
	var clauses []string
	for _, c := range nonKey {
		clauses = append(clauses, fmt.Sprintf("%s = $2", quoteIdent(c.Name)))
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND (%s))",
		s.qualify(rel.Name), quoteIdent(rel.SubjectColumn()), strings.Join(clauses, " OR "))

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, subject, constant).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking %s(%s,%s): %w", rel.Name, subject, constant, err)
	}
	return exists, nil
}

// Exists reports whether relation contains a row matching where exactly.
// The backward derivation walk (C5) does not call it; it uses Holds.
func (s *Store) Exists(ctx context.Context, rel fschema.Relation, where map[string]Value) (bool, error) {
	cols := rel.ColumnNames()
	var (
		args       []any
		conditions []string
	)
	for _, col := range cols {
		v, ok := where[col]
		if !ok {
			continue
		}
		args = append(args, v.Raw())
		conditions = append(conditions, fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)))
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s", s.qualify(rel.Name))
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ")"

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking existence in %s.%s: %w", s.schemaName, rel.Name, err)
	}
	return exists, nil
}

func (s *Store) runRows(ctx context.Context, query string, args []any, width int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.schemaName, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		dest := make([]string, width)
		ptrs := make([]any, width)
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, width)
		for i, v := range dest {
			row[i] = Text(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// InsertIfAbsent bulk-inserts rows into relation, skipping any row whose key
// columns already exist (the Postgres analog of the source's INSERT OR
// IGNORE). It returns the number of rows actually inserted, which the chase
// loop (C4) uses to detect a fixpoint (spec.md §4.4).
func (s *Store) InsertIfAbsent(ctx context.Context, rel fschema.Relation, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := rel.ColumnNames()
	keyCols := rel.KeyColumns()
	keyNames := make([]string, len(keyCols))
	for i, c := range keyCols {
		keyNames[i] = c.Name
	}

	inserted := 0
	for _, row := range rows {
		if len(row) != len(cols) {
			return inserted, fmt.Errorf("row width %d does not match relation %s (%d columns)", len(row), rel.Name, len(cols))
		}
		args := make([]any, len(row))
		placeholders := make([]string, len(row))
		for i, v := range row {
			args[i] = v.Raw()
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
			s.qualify(rel.Name), strings.Join(quoteAll(cols), ", "), strings.Join(placeholders, ", "), strings.Join(quoteAll(keyNames), ", "))

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("inserting into %s.%s: %w", s.schemaName, rel.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("reading rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// DeleteByKey deletes the row of relation identified by the given key-column
// values, used by the transfer executor (C8) once a tuple has been copied
// into Fo (spec.md §4.8, step 4).
func (s *Store) DeleteByKey(ctx context.Context, rel fschema.Relation, key map[string]Value) (int64, error) {
	var (
		args       []any
		conditions []string
	)
	for col, v := range key {
		args = append(args, v.Raw())
		conditions = append(conditions, fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)))
	}
	if len(conditions) == 0 {
		return 0, fmt.Errorf("delete from %s.%s: empty key", s.schemaName, rel.Name)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", s.qualify(rel.Name), strings.Join(conditions, " AND "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s.%s: %w", s.schemaName, rel.Name, err)
	}
	return res.RowsAffected()
}

// SubjectsWithConstant returns the distinct subject-column values of every
// row in rel whose non-key columns contain constant — used to resolve a
// bare C.txt root (Relation['Const'], no subject) into the concrete
// derivation-node roots C5 expands from (spec.md §4.3/§4.5).
func (s *Store) SubjectsWithConstant(ctx context.Context, rel fschema.Relation, constant string) ([]string, error) {
	rows, err := s.SelectAnyColumnEquals(ctx, rel, columnNamesMatching(rel.NonKeyColumns()), Text(constant))
	if err != nil {
		return nil, err
	}
	subjectIdx := -1
	for i, c := range rel.ColumnNames() {
		if c == rel.SubjectColumn() {
			subjectIdx = i
			break
		}
	}
	if subjectIdx < 0 {
		return nil, nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		if subjectIdx >= len(row) {
			continue
		}
		v := row[subjectIdx].String()
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

func columnNamesMatching(cols []fschema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// CopyAllInto copies every row of every relation in sc from s into dst,
// using InsertIfAbsent so a partial prior copy is safely re-run (used to
// seed the chase working schema from Fs, and to snapshot a baseline for
// the union verifier).
func (s *Store) CopyAllInto(ctx context.Context, dst *Store, sc *fschema.Schema) (int, error) {
	total := 0
	for _, name := range sc.Names() {
		rel, err := sc.Relation(name)
		if err != nil {
			continue
		}
		if err := dst.EnsureRelation(ctx, rel); err != nil {
			return total, fmt.Errorf("ensuring %s in destination: %w", name, err)
		}
		rows, err := s.Select(ctx, rel, nil)
		if err != nil {
			return total, fmt.Errorf("reading %s for copy: %w", name, err)
		}
		n, err := dst.InsertIfAbsent(ctx, rel, rows)
		if err != nil {
			return total, fmt.Errorf("copying %s: %w", name, err)
		}
		total += n
	}
	return total, nil
}

// RawSubjectQuery runs a pre-compiled single-column subject query (as
// produced by pkg/compiler) and returns the matching subject values. It
// exists so the chase engine can execute compiler output without this
// package needing to know anything about TGDs.
func (s *Store) RawSubjectQuery(ctx context.Context, query string, args []any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running compiled subject query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("scanning subject: %w", err)
		}
		out = append(out, subject)
	}
	return out, rows.Err()
}

// CountRows returns the number of rows currently in relation, used by the
// "fragment status" command's per-schema totals.
func (s *Store) CountRows(ctx context.Context, relation string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.qualify(relation))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s.%s: %w", s.schemaName, relation, err)
	}
	return n, nil
}
