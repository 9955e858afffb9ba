// Package verify checks the two structural invariants a completed
// fragmentation run must satisfy (spec.md §8, P1/P2): Fs and Fo are
// disjoint, and their union reconstructs the original full instance. Its
// only caller is pkg/pipeline, which runs it after C8 when a baseline
// snapshot was taken (A.5); no CLI command calls it directly.
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
)

// ErrInvariantViolation is fatal per spec.md §7: a losslessness or
// disjointness failure means the fragmentation itself is wrong, not a
// transient condition the caller can retry past.
var ErrInvariantViolation = errors.New("fragment: fragmentation invariant violated")

// Report is the outcome of one verification pass.
type Report struct {
	Disjoint    bool
	Lossless    bool
	Violations  []string
}

// Run checks disjointness (P2) and losslessness (P1) of fs/fo against
// full, relation by relation.
func Run(ctx context.Context, sc *schema.Schema, fs, fo, full *store.Store) (Report, error) {
	report := Report{Disjoint: true, Lossless: true}

	for _, name := range sc.Names() {
		rel, err := sc.Relation(name)
		if err != nil {
			continue
		}

		fsRows, err := fs.Select(ctx, rel, nil)
		if err != nil {
			return report, fmt.Errorf("reading Fs.%s: %w", name, err)
		}
		foRows, err := fo.Select(ctx, rel, nil)
		if err != nil {
			return report, fmt.Errorf("reading Fo.%s: %w", name, err)
		}
		fullRows, err := full.Select(ctx, rel, nil)
		if err != nil {
			return report, fmt.Errorf("reading full.%s: %w", name, err)
		}

		fsSet := rowSet(fsRows)
		foSet := rowSet(foRows)
		fullSet := rowSet(fullRows)

		for key := range fsSet {
			if foSet[key] {
				report.Disjoint = false
				report.Violations = append(report.Violations, fmt.Sprintf("%s: tuple %s present in both Fs and Fo", name, key))
			}
		}

		union := make(map[string]bool, len(fsSet)+len(foSet))
		for k := range fsSet {
			union[k] = true
		}
		for k := range foSet {
			union[k] = true
		}
		for key := range fullSet {
			if !union[key] {
				report.Lossless = false
				report.Violations = append(report.Violations, fmt.Sprintf("%s: tuple %s missing from Fs ∪ Fo", name, key))
			}
		}
		for key := range union {
			if !fullSet[key] {
				report.Lossless = false
				report.Violations = append(report.Violations, fmt.Sprintf("%s: tuple %s in Fs ∪ Fo but not in the original instance", name, key))
			}
		}
	}

	if !report.Disjoint || !report.Lossless {
		return report, fmt.Errorf("%w: %d violation(s)", ErrInvariantViolation, len(report.Violations))
	}
	return report, nil
}

func rowSet(rows []store.Row) map[string]bool {
	set := make(map[string]bool, len(rows))
	for _, row := range rows {
		key := ""
		for i, v := range row {
			if i > 0 {
				key += "|"
			}
			key += v.String()
		}
		set[key] = true
	}
	return set
}
