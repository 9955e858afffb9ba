// Package chase implements the Chase Engine (C4, spec.md §4.4): fixpoint
// materialization of every TGD-implied tuple over a working copy of the
// instance. It never deletes or mutates existing facts (I.4); it only ever
// inserts, and stops either at a fixpoint (an iteration that inserts
// nothing new) or at a configured iteration cap.
package chase

import (
	"context"
	"fmt"
	"log"

	"github.com/fragmentdb/fragment/pkg/compiler"
	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
)

// DefaultMaxIterations bounds the fixpoint loop against a malformed or
// (despite I.3) cyclic rule set, per spec.md §4.4.
const DefaultMaxIterations = 100

// ErrIterationCapHit is returned when the chase reaches MaxIterations
// without converging. Per spec.md §7 this is recoverable: the caller may
// proceed with the partial closure, logging the truncation.
var ErrIterationCapHit = fmt.Errorf("fragment: chase did not converge within iteration cap")

// Engine runs the fixpoint chase over a Store scoped to the working
// ("chase") schema.
type Engine struct {
	Store         *store.Store
	Schema        *schema.Schema
	Rules         []rules.Rule
	MaxIterations int
}

// New builds a chase Engine with DefaultMaxIterations.
func New(st *store.Store, sc *schema.Schema, rs []rules.Rule) *Engine {
	return &Engine{Store: st, Schema: sc, Rules: rs, MaxIterations: DefaultMaxIterations}
}

// Result summarizes one chase run.
type Result struct {
	Iterations int
	Inserted   int
	Converged  bool
}

// Run executes the chase to fixpoint (or to the iteration cap). Every rule
// is compiled once up front; each iteration then executes every rule's
// INTERSECT-chained subject query and inserts any newly-implied head
// tuple; the loop stops the first iteration that inserts nothing
// (spec.md §4.4, "stop at fixpoint").
func (e *Engine) Run(ctx context.Context) (Result, error) {
	queries, compileErrs := compiler.CompileAll(e.Schema, e.Store.SchemaName(), e.Rules)
	for _, err := range compileErrs {
		log.Printf("[fragment] WARNING: skipping rule during chase compilation: %v", err)
	}

	maxIter := e.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	total := 0
	iter := 0
	for ; iter < maxIter; iter++ {
		insertedThisRound := 0
		for _, q := range queries {
			n, err := e.applyRule(ctx, q)
			if err != nil {
				return Result{Iterations: iter, Inserted: total}, err
			}
			insertedThisRound += n
		}
		total += insertedThisRound
		if insertedThisRound == 0 {
			return Result{Iterations: iter + 1, Inserted: total, Converged: true}, nil
		}
	}
	return Result{Iterations: iter, Inserted: total, Converged: false}, ErrIterationCapHit
}

// applyRule runs one rule's compiled subject query and inserts the implied
// head tuple for every returned subject, skipping subjects for which the
// head tuple is already present (I.4: chase only ever grows the instance).
func (e *Engine) applyRule(ctx context.Context, q compiler.GeneratedQuery) (int, error) {
	headRel, err := e.Schema.Relation(q.Rule.Head.Relation)
	if err != nil {
		return 0, fmt.Errorf("applying rule: %w", err)
	}

	rowsRes, err := e.querySubjects(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(rowsRes) == 0 {
		return 0, nil
	}

	constCol := ""
	for _, c := range headRel.NonKeyColumns() {
		if c.Name != headRel.SubjectColumn() {
			constCol = c.Name
			break
		}
	}
	if constCol == "" {
		return 0, fmt.Errorf("relation %s has no column to hold a derived constant", headRel.Name)
	}

	rowsToInsert := make([]store.Row, 0, len(rowsRes))
	for _, subject := range rowsRes {
		row := make(store.Row, len(headRel.Columns))
		for i, col := range headRel.Columns {
			switch {
			case col.Name == headRel.SubjectColumn():
				row[i] = store.Text(subject)
			case col.Name == constCol:
				row[i] = store.Text(q.Rule.Head.Constant)
			default:
				row[i] = store.Text("")
			}
		}
		rowsToInsert = append(rowsToInsert, row)
	}

	return e.Store.InsertIfAbsent(ctx, headRel, rowsToInsert)
}

func (e *Engine) querySubjects(ctx context.Context, q compiler.GeneratedQuery) ([]string, error) {
	return e.Store.RawSubjectQuery(ctx, q.SQL, q.Args)
}
