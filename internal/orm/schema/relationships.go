package schema

import (
	"fmt"
	"sort"
	"strings"
)

// dependencyGraph is a directed graph of class names. It backs both the
// inheritance check (edges to the ancestor) and the association analysis
// (edges to association targets).
type dependencyGraph struct {
	nodes []string
	edges map[string][]string
}

func newDependencyGraph(nodes []string) *dependencyGraph {
	sorted := make([]string, len(nodes))
	copy(sorted, nodes)
	sort.Strings(sorted)
	return &dependencyGraph{
		nodes: sorted,
		edges: make(map[string][]string),
	}
}

func (g *dependencyGraph) addEdge(from, to string) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// DetectCycles returns one cycle per strongly connected region reached from
// each unvisited root, in deterministic order.
func (g *dependencyGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string) bool
	dfs = func(node string, path []string) bool {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				if dfs(neighbor, path) {
					return true
				}
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
				return true
			}
		}

		recursionStack[node] = false
		return false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			// A cycle aborts the walk before the stack unwinds
			for k := range recursionStack {
				delete(recursionStack, k)
			}
			dfs(node, nil)
		}
	}

	return cycles
}

// formatCycles formats cycle information for error messages
func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}

// inheritanceGraph builds the ancestor edges of the declared classes
func inheritanceGraph(classes map[string]*ClassDescriptor, ancestors map[string]string) *dependencyGraph {
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	g := newDependencyGraph(names)
	for name, ancestor := range ancestors {
		if ancestor != "" {
			g.addEdge(name, ancestor)
		}
	}
	return g
}

// associationGraph builds edges from each class to the targets of its
// effective associations
func associationGraph(classes map[string]*ClassDescriptor) *dependencyGraph {
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	g := newDependencyGraph(names)
	for _, name := range g.nodes {
		for _, p := range classes[name].Associations() {
			g.addEdge(name, p.rng.targetName)
		}
	}
	return g
}

// DependencyReport summarises the association structure of a registry
type DependencyReport struct {
	TotalClasses int
	Dependencies map[string][]string // class -> association targets
	Dependents   map[string][]string // class -> classes referencing it
	Cycles       [][]string
	SelfRefs     []string // classes with an association to themselves
}

// String formats the dependency report
func (r *DependencyReport) String() string {
	var b strings.Builder

	b.WriteString("Association Report\n")
	b.WriteString(fmt.Sprintf("Total Classes: %d\n", r.TotalClasses))

	if len(r.SelfRefs) > 0 {
		b.WriteString(fmt.Sprintf("Self-referencing: %s\n", strings.Join(r.SelfRefs, ", ")))
	}
	if len(r.Cycles) > 0 {
		b.WriteString("Association cycles:\n")
		b.WriteString(formatCycles(r.Cycles))
		b.WriteString("\n")
	}

	names := make([]string, 0, len(r.Dependencies))
	for name := range r.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		deps := r.Dependencies[name]
		if len(deps) > 0 {
			b.WriteString(fmt.Sprintf("  %s -> %s\n", name, strings.Join(deps, ", ")))
		}
	}

	return b.String()
}
