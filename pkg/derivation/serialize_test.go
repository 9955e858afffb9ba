package derivation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmentdb/fragment/pkg/rules"
)

func TestWriteReadGraphs_RoundTrip(t *testing.T) {
	illness := rules.NewNode("Illness", "alice", "HIV")
	treatment := rules.NewNode("Treatment", "alice", "AZT")
	insurance := rules.NewNode("Insurance", "alice", "Denied")

	g := Graph{
		illness:   {treatment},
		treatment: {insurance},
		insurance: nil,
	}

	var sb strings.Builder
	require.NoError(t, WriteGraphs(&sb, []Graph{g}))

	parsed, warnings, err := ReadGraphs(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, parsed, 1)
	assert.Equal(t, g, parsed[0])
}

func TestWriteGraphs_MultipleGraphsBlankLineSeparated(t *testing.T) {
	a := rules.NewNode("Illness", "alice", "HIV")
	b := rules.NewNode("Illness", "bob", "HIV")

	g1 := Graph{a: nil}
	g2 := Graph{b: nil}

	var sb strings.Builder
	require.NoError(t, WriteGraphs(&sb, []Graph{g1, g2}))

	parsed, _, err := ReadGraphs(strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, g1, parsed[0])
	assert.Equal(t, g2, parsed[1])
}

func TestReadGraphs_MalformedEntryWarns(t *testing.T) {
	input := "graph = {\n  this is not an entry\n}\n"
	parsed, warnings, err := ReadGraphs(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Empty(t, parsed[0])
	require.Len(t, warnings, 1)
}
