// Package compiler compiles a TGD rule body into a SQL query selecting
// every subject that satisfies it, following the join strategy in the
// source system (original_source/a4_core_chase.py, _compile_rule): each
// body atom becomes its own SELECT over the subject column, filtered to the
// atom's constant, and the atoms are combined with INTERSECT so the result
// is exactly the subjects for which every atom holds (spec.md §4.4 leaves
// the join strategy implementation-free).
package compiler

import (
	"fmt"
	"strings"

	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
)

// GeneratedQuery is one compiled rule: the subject-selecting SQL plus the
// metadata needed to turn each returned subject into a head tuple insert.
type GeneratedQuery struct {
	Rule  rules.Rule
	SQL   string
	Args  []any
}

// CompileRule compiles rule's body into a GeneratedQuery against the given
// schema, qualifying every table reference with schemaName (the Postgres
// schema holding the working instance — "chase" during the fixpoint loop,
// spec.md §4.4).
func CompileRule(sc *schema.Schema, schemaName string, rule rules.Rule) (GeneratedQuery, error) {
	if len(rule.Body) == 0 {
		return GeneratedQuery{}, fmt.Errorf("compiler: rule has empty body")
	}

	var (
		selects []string
		args    []any
	)
	for i, atom := range rule.Body {
		rel, err := sc.Relation(atom.Relation)
		if err != nil {
			return GeneratedQuery{}, fmt.Errorf("compiling body atom %s: %w", atom.Relation, err)
		}
		subjectCol := rel.SubjectColumn()
		nonKey := rel.NonKeyColumns()
		if len(nonKey) == 0 {
			return GeneratedQuery{}, fmt.Errorf("relation %s has no constant-bearing column", rel.Name)
		}

		var clauses []string
		for _, col := range nonKey {
			if col.Name == subjectCol {
				continue
			}
			args = append(args, atom.Constant)
			clauses = append(clauses, fmt.Sprintf("%q = $%d", col.Name, len(args)))
		}
		if len(clauses) == 0 {
			return GeneratedQuery{}, fmt.Errorf("relation %s has no constant-bearing column", rel.Name)
		}

		selects = append(selects, fmt.Sprintf(
			"SELECT %q AS subject FROM %q.%q t%d WHERE %s",
			subjectCol, schemaName, rel.Name, i, strings.Join(clauses, " OR ")))
	}

	return GeneratedQuery{
		Rule: rule,
		SQL:  strings.Join(selects, "\nINTERSECT\n"),
		Args: args,
	}, nil
}

// CompileAll compiles every rule against sc, skipping (and reporting) any
// rule whose body references a relation the schema does not know about —
// malformed input is recoverable per spec.md §7, never fatal to the whole
// batch.
func CompileAll(sc *schema.Schema, schemaName string, rs []rules.Rule) ([]GeneratedQuery, []error) {
	var (
		out  []GeneratedQuery
		errs []error
	)
	for _, r := range rs {
		q, err := CompileRule(sc, schemaName, r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, q)
	}
	return out, errs
}
