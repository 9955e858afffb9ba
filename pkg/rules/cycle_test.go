package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCycles_Acyclic(t *testing.T) {
	rs := []Rule{
		{Body: []Atom{{Relation: "Illness", Constant: "HIV"}}, Head: Atom{Relation: "Treatment", Constant: "AZT"}},
		{Body: []Atom{{Relation: "Treatment", Constant: "AZT"}}, Head: Atom{Relation: "Insurance", Constant: "Denied"}},
	}
	assert.NoError(t, DetectCycles(rs))
}

func TestDetectCycles_DirectCycle(t *testing.T) {
	rs := []Rule{
		{Body: []Atom{{Relation: "A", Constant: "1"}}, Head: Atom{Relation: "B", Constant: "2"}},
		{Body: []Atom{{Relation: "B", Constant: "2"}}, Head: Atom{Relation: "A", Constant: "1"}},
	}
	err := DetectCycles(rs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCyclicRules))
}

func TestDetectCycles_SelfLoop(t *testing.T) {
	rs := []Rule{
		{Body: []Atom{{Relation: "A", Constant: "1"}}, Head: Atom{Relation: "A", Constant: "1"}},
	}
	err := DetectCycles(rs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCyclicRules))
}

func TestDetectCycles_MultiBodyNoFalsePositive(t *testing.T) {
	rs := []Rule{
		{Body: []Atom{{Relation: "A", Constant: "1"}, {Relation: "B", Constant: "2"}}, Head: Atom{Relation: "C", Constant: "3"}},
		{Body: []Atom{{Relation: "C", Constant: "3"}}, Head: Atom{Relation: "D", Constant: "4"}},
	}
	assert.NoError(t, DetectCycles(rs))
}
