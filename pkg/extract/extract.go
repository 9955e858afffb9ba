// Package extract implements the Initial Extractor (C3, spec.md §4.3):
// the first, root-driven pass that moves every tuple directly mentioning a
// sensitive constant out of the public fragment and into the owner
// fragment, before the chase-and-derive pipeline runs at all. Grounded on
// original_source/Chapter_4/a3_0_move_to_fo.py, SecurityExtractor.
package extract

import (
	"context"
	"fmt"
	"log"

	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
)

// Extractor moves tuples directly matching a sensitive root from Fs to Fo.
type Extractor struct {
	Schema *schema.Schema
	Fs     *store.Store
	Fo     *store.Store
}

// New builds an initial Extractor.
func New(sc *schema.Schema, fs, fo *store.Store) *Extractor {
	return &Extractor{Schema: sc, Fs: fs, Fo: fo}
}

// Result summarizes one extraction run.
type Result struct {
	Moved   int
	Skipped int
}

// Run moves, for every root, every Fs row in root.Relation whose non-key
// columns contain root.Constant anywhere (spec.md §4.3, step 1: "any
// non-key column", not just the column the root happened to be generated
// from).
func (e *Extractor) Run(ctx context.Context, roots []rules.Root) (Result, error) {
	var res Result

	known := e.Schema

	for _, root := range roots {
		if !known.Has(root.Relation) {
			log.Printf("[fragment] WARNING: extract: root references unknown relation %q", root.Relation)
			res.Skipped++
			continue
		}
		rel, err := known.Relation(root.Relation)
		if err != nil {
			return res, err
		}

		candidateCols := columnNames(rel.NonKeyColumns())
		rows, err := e.Fs.SelectAnyColumnEquals(ctx, rel, candidateCols, store.Text(root.Constant))
		if err != nil {
			return res, fmt.Errorf("extracting %s['%s']: %w", root.Relation, root.Constant, err)
		}
		if len(rows) == 0 {
			continue
		}

		if err := e.Fo.EnsureRelation(ctx, rel); err != nil {
			return res, fmt.Errorf("ensuring Fo relation %s: %w", root.Relation, err)
		}
		if _, err := e.Fo.InsertIfAbsent(ctx, rel, rows); err != nil {
			return res, fmt.Errorf("inserting %s into Fo: %w", root.Relation, err)
		}

		for _, row := range rows {
			where := rowKey(rel, row)
			if len(where) == 0 {
				continue
			}
			n, err := e.Fs.DeleteByKey(ctx, rel, where)
			if err != nil {
				return res, fmt.Errorf("deleting %s from Fs: %w", root.Relation, err)
			}
			res.Moved += int(n)
		}
	}

	return res, nil
}

func columnNames(cols []schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func indexOf(names []string, target string) int {
	for i, n := range names {
		if n == target {
			return i
		}
	}
	return -1
}

// rowKey builds the exact-tuple delete key for row: the relation's
// KeyColumns() (the declared primary key, or every column when none is
// declared — spec.md §3, "Tuple"). A subject-only key would delete every
// row sharing that subject, which is wrong for a relation like Illness
// where uniqueness is over the full (name, value) tuple and one subject
// can have several rows.
func rowKey(rel schema.Relation, row store.Row) map[string]store.Value {
	cols := rel.ColumnNames()
	where := make(map[string]store.Value, len(rel.KeyColumns()))
	for _, kc := range rel.KeyColumns() {
		idx := indexOf(cols, kc.Name)
		if idx < 0 || idx >= len(row) {
			continue
		}
		where[kc.Name] = row[idx]
	}
	return where
}
