package hittingset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmentdb/fragment/pkg/rules"
)

func TestWriteReadUnion_RoundTrip(t *testing.T) {
	nodes := []rules.Node{
		rules.NewNode("Illness", "alice", "HIV"),
		rules.NewNode("Treatment", "alice", "AZT"),
	}

	var sb strings.Builder
	require.NoError(t, WriteUnion(&sb, nodes))
	assert.Equal(t, `['Illness:alice:HIV', 'Treatment:alice:AZT']`, sb.String())

	parsed, err := ReadUnion(sb.String())
	require.NoError(t, err)
	assert.Equal(t, nodes, parsed)
}

func TestWriteUnion_Empty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteUnion(&sb, nil))
	assert.Equal(t, "[]", sb.String())

	parsed, err := ReadUnion(sb.String())
	require.NoError(t, err)
	assert.Empty(t, parsed)
}
