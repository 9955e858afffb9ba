package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_StringRoundTrip(t *testing.T) {
	n := NewNode("Illness", "alice", "HIV")
	assert.Equal(t, "Illness:alice:HIV", n.String())

	parsed, err := ParseNode(n.String())
	require.NoError(t, err)
	assert.Equal(t, n, parsed)
}

func TestParseNode_Malformed(t *testing.T) {
	_, err := ParseNode("not-enough-parts")
	assert.Error(t, err)
}

func TestParseNode_ConstantMayContainColon(t *testing.T) {
	// SplitN(3) leaves any extra ':' inside the final (constant) field.
	n, err := ParseNode("Illness:alice:HIV:extra")
	require.NoError(t, err)
	assert.Equal(t, Node{Relation: "Illness", Subject: "alice", Constant: "HIV:extra"}, n)
}
