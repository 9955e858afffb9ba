// Package hittingset selects, for each proof-path group produced by
// pkg/paths, one path whose nodes will be moved to the owner fragment —
// enough to break every proof in that group — and unions the selections
// across groups into the final transfer set (C7, spec.md §4.7). Grounded
// on original_source/a7_minimal_union.py, PathCombinator.
package hittingset

import (
	"sort"

	"github.com/fragmentdb/fragment/pkg/paths"
	"github.com/fragmentdb/fragment/pkg/rules"
)

// Greedy picks, per group, the non-empty path that enlarges the running
// union the least, then unions the picks across every group. This is the
// default, scalable strategy (spec.md §4.7).
func Greedy(groups [][]paths.Path) []rules.Node {
	union := make(map[rules.Node]bool)

	for _, group := range groups {
		nonEmpty := nonEmptyPaths(group)
		if len(nonEmpty) == 0 {
			continue
		}

		var best paths.Path
		bestGrowth := -1
		for _, p := range nonEmpty {
			growth := 0
			for _, n := range p {
				if !union[n] {
					growth++
				}
			}
			if bestGrowth == -1 || growth < bestGrowth {
				bestGrowth = growth
				best = p
			}
		}
		for _, n := range best {
			union[n] = true
		}
	}

	return sortedKeys(union)
}

// Exact enumerates every combination of one path per group and returns the
// combination whose union is smallest. Exponential in the number of
// groups; spec.md §4.7 scopes it to an explicit opt-in for small instances
// (a group-count cap guards accidental misuse, see MaxExactGroups).
const MaxExactGroups = 20

// ErrTooManyGroups is returned by Exact when the group count exceeds
// MaxExactGroups, where brute-force enumeration would be impractical.
var ErrTooManyGroups = errTooManyGroups{}

type errTooManyGroups struct{}

func (errTooManyGroups) Error() string {
	return "fragment: too many proof-path groups for exact hitting-set search"
}

// Exact returns the true minimum union across every per-group path choice.
func Exact(groups [][]paths.Path) ([]rules.Node, error) {
	var filtered [][]paths.Path
	for _, group := range groups {
		ne := nonEmptyPaths(group)
		if len(ne) > 0 {
			filtered = append(filtered, ne)
		}
	}
	if len(filtered) > MaxExactGroups {
		return nil, ErrTooManyGroups
	}

	var (
		bestUnion map[rules.Node]bool
		bestSize  = -1
	)

	var combo func(idx int, current map[rules.Node]bool)
	combo = func(idx int, current map[rules.Node]bool) {
		if idx == len(filtered) {
			if bestSize == -1 || len(current) < bestSize {
				bestSize = len(current)
				bestUnion = cloneSet(current)
			}
			return
		}
		for _, p := range filtered[idx] {
			next := cloneSet(current)
			for _, n := range p {
				next[n] = true
			}
			combo(idx+1, next)
		}
	}
	combo(0, map[rules.Node]bool{})

	return sortedKeys(bestUnion), nil
}

func nonEmptyPaths(group []paths.Path) []paths.Path {
	var out []paths.Path
	for _, p := range group {
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func cloneSet(s map[rules.Node]bool) map[rules.Node]bool {
	out := make(map[rules.Node]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func sortedKeys(s map[rules.Node]bool) []rules.Node {
	nodes := make([]rules.Node, 0, len(s))
	for n := range s {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Relation != nodes[j].Relation {
			return nodes[i].Relation < nodes[j].Relation
		}
		if nodes[i].Subject != nodes[j].Subject {
			return nodes[i].Subject < nodes[j].Subject
		}
		return nodes[i].Constant < nodes[j].Constant
	})
	return nodes
}
