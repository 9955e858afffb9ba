// Package transfer implements the Fs -> Fo transfer executor (C8,
// spec.md §4.8): for every node in the hitting-set union, move the
// matching tuple out of the public fragment and into the owner fragment.
// Grounded on original_source/Chapter_4/a8_fragmentation.py,
// TransferAndDelete.process.
package transfer

import (
	"context"
	"fmt"
	"log"

	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
)

// Executor moves tuples from one Store (Fs) into another (Fo), deleting
// the source row only after the destination insert succeeds, so a crash
// mid-run can only leave a tuple present in both fragments — never in
// neither (spec.md §9, "never delete before the corresponding insert is
// durable").
type Executor struct {
	Schema *schema.Schema
	Fs     *store.Store
	Fo     *store.Store
}

// New builds a transfer Executor.
func New(sc *schema.Schema, fs, fo *store.Store) *Executor {
	return &Executor{Schema: sc, Fs: fs, Fo: fo}
}

// Result summarizes one transfer run.
type Result struct {
	Inserted int
	Deleted  int64
	Skipped  int
}

// Run transfers every node in nodes. A node whose relation is unknown, or
// for which Fs holds no matching row, is skipped and logged rather than
// treated as fatal (spec.md §7, StoreError/SchemaMissing are recoverable).
func (e *Executor) Run(ctx context.Context, nodes []rules.Node) (Result, error) {
	var res Result

	for _, node := range nodes {
		rel, err := e.Schema.Relation(node.Relation)
		if err != nil {
			log.Printf("[fragment] WARNING: transfer: %v", err)
			res.Skipped++
			continue
		}

		subjectCol := rel.SubjectColumn()
		where := map[string]store.Value{subjectCol: store.Text(node.Subject)}

		rows, err := e.Fs.Select(ctx, rel, where)
		if err != nil {
			return res, fmt.Errorf("selecting %s for transfer: %w", node.Relation, err)
		}
		rows = filterByConstant(rel, rows, node.Constant)
		if len(rows) == 0 {
			log.Printf("[fragment] WARNING: no Fs entries for %s (subject=%s, constant=%s)", node.Relation, node.Subject, node.Constant)
			res.Skipped++
			continue
		}

		if err := e.Fo.EnsureRelation(ctx, rel); err != nil {
			return res, fmt.Errorf("ensuring Fo relation %s: %w", node.Relation, err)
		}
		n, err := e.Fo.InsertIfAbsent(ctx, rel, rows)
		if err != nil {
			return res, fmt.Errorf("inserting into Fo %s: %w", node.Relation, err)
		}
		res.Inserted += n

		// Delete exactly the rows just copied, by their full tuple key —
		// not by subject alone, which would also remove this subject's
		// other, unrelated rows in the same relation (e.g. a patient with
		// several illnesses, only one of which is in this hitting set).
		for _, row := range rows {
			key := rowKey(rel, row)
			if len(key) == 0 {
				continue
			}
			deleted, err := e.Fs.DeleteByKey(ctx, rel, key)
			if err != nil {
				return res, fmt.Errorf("deleting from Fs %s: %w", node.Relation, err)
			}
			res.Deleted += deleted
		}
	}

	return res, nil
}

// filterByConstant keeps only rows whose non-key columns contain constant,
// matching the node's exact (subject, constant) identity when the subject
// alone is not unique enough (e.g. a patient with several illnesses).
func filterByConstant(rel schema.Relation, rows []store.Row, constant string) []store.Row {
	nonKeyIdx := make([]int, 0, len(rel.NonKeyColumns()))
	names := rel.ColumnNames()
	for i, name := range names {
		for _, nk := range rel.NonKeyColumns() {
			if nk.Name == name {
				nonKeyIdx = append(nonKeyIdx, i)
			}
		}
	}

	var out []store.Row
	for _, row := range rows {
		for _, i := range nonKeyIdx {
			if i < len(row) && row[i].String() == constant {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// rowKey builds the exact-tuple delete key for row: the relation's
// KeyColumns() (the declared primary key, or every column when none is
// declared — spec.md §3, "Tuple"). A subject-only key would delete every
// row sharing that subject, not just the one this node's constant matched.
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

func indexOf(names []string, target string) int {
	for i, n := range names {
		if n == target {
			return i
		}
	}
	return -1
}
