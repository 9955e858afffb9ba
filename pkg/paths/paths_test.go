package paths

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmentdb/fragment/pkg/derivation"
	"github.com/fragmentdb/fragment/pkg/rules"
)

func newExtractor(baseFacts map[rules.Node]bool) *Extractor {
	return New(func(_ context.Context, n rules.Node) (bool, error) {
		return baseFacts[n], nil
	})
}

func TestExtractGraph_SingleChain(t *testing.T) {
	illness := rules.NewNode("Illness", "alice", "HIV")
	treatment := rules.NewNode("Treatment", "alice", "AZT")
	insurance := rules.NewNode("Insurance", "alice", "Denied")

	// illness supports treatment supports insurance (the root).
	g := derivation.Graph{
		illness:   {treatment},
		treatment: {insurance},
		insurance: nil,
	}

	ex := newExtractor(map[rules.Node]bool{illness: true, treatment: true})
	got, err := ex.ExtractGraph(context.Background(), g)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, Path{illness, treatment}, got[0])
}

func TestExtractGraph_BranchingProducesMultiplePaths(t *testing.T) {
	illnessA := rules.NewNode("Illness", "alice", "HIV")
	illnessB := rules.NewNode("Allergy", "alice", "Penicillin")
	root := rules.NewNode("Insurance", "alice", "Denied")

	g := derivation.Graph{
		illnessA: {root},
		illnessB: {root},
		root:     nil,
	}

	ex := newExtractor(map[rules.Node]bool{illnessA: true, illnessB: true})
	got, err := ex.ExtractGraph(context.Background(), g)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.ElementsMatch(t, []Path{{illnessA}, {illnessB}}, got)
}

func TestExtractGraph_NoBaseFactsYieldsNoPaths(t *testing.T) {
	root := rules.NewNode("Insurance", "alice", "Denied")
	g := derivation.Graph{root: nil}

	ex := newExtractor(nil)
	got, err := ex.ExtractGraph(context.Background(), g)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractGraph_DedupesIdenticalPaths(t *testing.T) {
	illness := rules.NewNode("Illness", "alice", "HIV")
	root := rules.NewNode("Insurance", "alice", "Denied")

	// Two distinct routes from the same base fact to the root yield the
	// same recorded path (just the base fact), so they should collapse.
	mid1 := rules.NewNode("Treatment", "alice", "AZT")
	mid2 := rules.NewNode("LabResult", "alice", "Positive")
	g := derivation.Graph{
		illness: {mid1, mid2},
		mid1:    {root},
		mid2:    {root},
		root:    nil,
	}

	ex := newExtractor(map[rules.Node]bool{illness: true})
	got, err := ex.ExtractGraph(context.Background(), g)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, Path{illness}, got[0])
}
