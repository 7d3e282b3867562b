package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindInheritanceCycles_Empty(t *testing.T) {
	assert.Empty(t, FindInheritanceCycles(nil))
}

func TestFindInheritanceCycles_DAG(t *testing.T) {
	graph := InheritanceGraph{
		"Article": {"Record"},
		"Thesis":  {"Record", "Citable"},
		"Record":  nil,
		"Citable": nil,
	}
	assert.Empty(t, FindInheritanceCycles(graph), "DAG has no cycles")
}

func TestFindInheritanceCycles_SelfBase(t *testing.T) {
	graph := InheritanceGraph{"Loop": {"Loop"}}
	assert.Equal(t, [][]string{{"Loop", "Loop"}}, FindInheritanceCycles(graph))
}

func TestFindInheritanceCycles_TwoNodes(t *testing.T) {
	graph := InheritanceGraph{
		"A": {"B"},
		"B": {"A"},
	}
	assert.Equal(t, [][]string{{"A", "B", "A"}}, FindInheritanceCycles(graph))
}

func TestFindInheritanceCycles_ThreeNodesAndBystander(t *testing.T) {
	graph := InheritanceGraph{
		"A":     {"B"},
		"B":     {"C"},
		"C":     {"A"},
		"Other": {"A"},
	}
	cycles := FindInheritanceCycles(graph)
	assert.Equal(t, [][]string{{"A", "B", "C", "A"}}, cycles)
}

func TestFindInheritanceCycles_IndependentCycles(t *testing.T) {
	graph := InheritanceGraph{
		"A": {"B"},
		"B": {"A"},
		"X": {"X"},
	}
	cycles := FindInheritanceCycles(graph)
	assert.Len(t, cycles, 2)
	assert.Equal(t, []string{"A", "B", "A"}, cycles[0])
	assert.Equal(t, []string{"X", "X"}, cycles[1])
}

func TestFindInheritanceCycles_IgnoresUnknownBases(t *testing.T) {
	graph := InheritanceGraph{"A": {"Missing"}}
	assert.Empty(t, FindInheritanceCycles(graph))
}

func TestTarjanSCC_SingleNode(t *testing.T) {
	sccs := tarjanSCC(InheritanceGraph{"A": nil})
	assert.Equal(t, [][]string{{"A"}}, sccs)
}

func TestHasSelfLoop(t *testing.T) {
	graph := InheritanceGraph{"A": {"B", "A"}, "B": nil}
	assert.True(t, hasSelfLoop("A", graph))
	assert.False(t, hasSelfLoop("B", graph))
}
