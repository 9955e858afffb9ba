package hittingset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmentdb/fragment/pkg/paths"
	"github.com/fragmentdb/fragment/pkg/rules"
)

func node(rel, subj, cst string) rules.Node {
	return rules.NewNode(rel, subj, cst)
}

func TestGreedy_PicksSmallestIncrementalPath(t *testing.T) {
	shared := node("Illness", "alice", "HIV")
	// Group 1: two paths, one of which reuses a node the other doesn't.
	groups := [][]paths.Path{
		{
			paths.Path{shared, node("Treatment", "alice", "AZT")},
			paths.Path{shared},
		},
	}
	union := Greedy(groups)
	// The shorter path (just `shared`) grows the (empty) union by 1 vs 2,
	// so greedy should prefer it.
	require.Len(t, union, 1)
	assert.Equal(t, shared, union[0])
}

func TestGreedy_UnionsAcrossGroups(t *testing.T) {
	a := node("Illness", "alice", "HIV")
	b := node("Treatment", "bob", "AZT")
	groups := [][]paths.Path{
		{paths.Path{a}},
		{paths.Path{b}},
	}
	union := Greedy(groups)
	assert.ElementsMatch(t, []rules.Node{a, b}, union)
}

func TestGreedy_SkipsEmptyPathsAndGroups(t *testing.T) {
	a := node("Illness", "alice", "HIV")
	groups := [][]paths.Path{
		{paths.Path{}},
		{paths.Path{a}},
		{},
	}
	union := Greedy(groups)
	assert.Equal(t, []rules.Node{a}, union)
}

func TestExact_FindsTrueMinimumAcrossGroups(t *testing.T) {
	shared := node("Illness", "alice", "HIV")
	other1 := node("Treatment", "alice", "AZT")
	other2 := node("Insurance", "alice", "Denied")

	// Group 1 offers {shared} or {other1}; group 2 offers {shared} or {other2}.
	// Picking `shared` for both groups yields a union of size 1, which greedy
	// (processing groups independently, first-seen order) would also find
	// here, but exact must find it even when greedy's myopic tie-break would not.
	groups := [][]paths.Path{
		{paths.Path{shared}, paths.Path{other1}},
		{paths.Path{shared}, paths.Path{other2}},
	}
	union, err := Exact(groups)
	require.NoError(t, err)
	assert.Equal(t, []rules.Node{shared}, union)
}

func TestExact_TooManyGroups(t *testing.T) {
	groups := make([][]paths.Path, MaxExactGroups+1)
	for i := range groups {
		groups[i] = []paths.Path{{node("Illness", "p", "c")}}
	}
	_, err := Exact(groups)
	require.Error(t, err)
	assert.Equal(t, ErrTooManyGroups, err)
}
