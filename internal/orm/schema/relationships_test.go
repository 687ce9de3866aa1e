package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDependencyGraph_DetectCycles(t *testing.T) {
	t.Run("acyclic", func(t *testing.T) {
		g := newDependencyGraph([]string{"A", "B", "C"})
		g.addEdge("A", "B")
		g.addEdge("B", "C")
		assert.Empty(t, g.DetectCycles())
	})

	t.Run("simple cycle", func(t *testing.T) {
		g := newDependencyGraph([]string{"A", "B"})
		g.addEdge("A", "B")
		g.addEdge("B", "A")

		cycles := g.DetectCycles()
		assert.Equal(t, [][]string{{"A", "B"}}, cycles)
	})

	t.Run("self loop", func(t *testing.T) {
		g := newDependencyGraph([]string{"Node"})
		g.addEdge("Node", "Node")
		assert.Equal(t, [][]string{{"Node"}}, g.DetectCycles())
	})

	t.Run("independent cycles", func(t *testing.T) {
		g := newDependencyGraph([]string{"D", "C", "B", "A"})
		g.addEdge("A", "B")
		g.addEdge("B", "A")
		g.addEdge("C", "D")
		g.addEdge("D", "C")

		cycles := g.DetectCycles()
		assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}}, cycles)
	})

	t.Run("duplicate edges are ignored", func(t *testing.T) {
		g := newDependencyGraph([]string{"A", "B"})
		g.addEdge("A", "B")
		g.addEdge("A", "B")
		assert.Len(t, g.edges["A"], 1)
	})
}

func TestFormatCycles(t *testing.T) {
	out := formatCycles([][]string{{"A", "B"}})
	assert.Equal(t, "  Cycle 1: A -> B -> A", out)
}
