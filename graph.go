package appframe

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// DependencyGraph is a directed graph over comparable node identifiers.
// An edge (dependency, dependent) means the dependency must be initialized
// before the dependent. The graph knows nothing about modules or lifecycles;
// it only provides ordering and cycle detection.
//
// Nodes remember their insertion order so that topological sorts are
// reproducible across runs.
type DependencyGraph[T comparable] struct {
	nodes   []T
	nodeSet map[T]struct{}
	edges   map[T][]T // dependency -> dependents
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph[T comparable]() *DependencyGraph[T] {
	return &DependencyGraph[T]{
		nodeSet: make(map[T]struct{}),
		edges:   make(map[T][]T),
	}
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *DependencyGraph[T]) AddNode(node T) {
	if _, exists := g.nodeSet[node]; exists {
		return
	}
	g.nodeSet[node] = struct{}{}
	g.nodes = append(g.nodes, node)
}

// AddEdge adds a directed edge from a dependency to a dependent, adding
// both endpoints as nodes if needed. Duplicate edges are ignored.
// A self-edge is a logic error and fails immediately rather than
// surfacing later as a one-node cycle.
func (g *DependencyGraph[T]) AddEdge(dependency, dependent T) error {
	if dependency == dependent {
		return fmt.Errorf("%w: %v", ErrSelfDependency, dependency)
	}
	g.AddNode(dependency)
	g.AddNode(dependent)
	if slices.Contains(g.edges[dependency], dependent) {
		return nil
	}
	g.edges[dependency] = append(g.edges[dependency], dependent)
	return nil
}

// HasNode reports whether the node is present in the graph.
func (g *DependencyGraph[T]) HasNode(node T) bool {
	_, exists := g.nodeSet[node]
	return exists
}

// Nodes returns the graph's nodes in insertion order.
func (g *DependencyGraph[T]) Nodes() []T {
	return slices.Clone(g.nodes)
}

// Len returns the number of nodes in the graph.
func (g *DependencyGraph[T]) Len() int {
	return len(g.nodes)
}

// TopologicalSort orders the nodes so that every dependency appears before
// its dependents, using Kahn's algorithm. Ties between ready nodes are
// broken by node insertion order, making the output deterministic.
// The graph itself is not mutated.
//
// If the graph contains a cycle the sort fails with ErrCircularDependency
// carrying one concrete cycle path, e.g. "a -> b -> c -> a".
func (g *DependencyGraph[T]) TopologicalSort() ([]T, error) {
	index := make(map[T]int, len(g.nodes))
	for i, node := range g.nodes {
		index[node] = i
	}

	inDegree := make(map[T]int, len(g.nodes))
	for _, node := range g.nodes {
		for _, dependent := range g.edges[node] {
			inDegree[dependent]++
		}
	}

	// Ready list kept sorted by insertion index for the deterministic
	// tie-break.
	var ready []T
	push := func(node T) {
		at := sort.Search(len(ready), func(i int) bool {
			return index[ready[i]] > index[node]
		})
		ready = slices.Insert(ready, at, node)
	}
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}

	result := make([]T, 0, len(g.nodes))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		result = append(result, current)

		for _, dependent := range g.edges[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				push(dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		cycle := g.findCycle()
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency, formatCycle(cycle))
	}

	return result, nil
}

// findCycle reconstructs one concrete cycle via depth-first search.
// Only called when TopologicalSort could not fully order the graph, so a
// cycle is known to exist.
func (g *DependencyGraph[T]) findCycle() []T {
	visited := make(map[T]struct{}, len(g.nodes))
	var path []T

	var visit func(node T) []T
	visit = func(node T) []T {
		if at := slices.Index(path, node); at >= 0 {
			return append(slices.Clone(path[at:]), node)
		}
		if _, done := visited[node]; done {
			return nil
		}
		visited[node] = struct{}{}
		path = append(path, node)
		for _, dependent := range g.edges[node] {
			if cycle := visit(dependent); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		return nil
	}

	for _, node := range g.nodes {
		if _, done := visited[node]; done {
			continue
		}
		if cycle := visit(node); cycle != nil {
			return cycle
		}
	}
	return nil
}

func formatCycle[T comparable](cycle []T) string {
	parts := make([]string, len(cycle))
	for i, node := range cycle {
		parts[i] = fmt.Sprintf("%v", node)
	}
	return strings.Join(parts, " -> ")
}

// Reversed returns a new graph with every edge's direction flipped. The
// receiver is left untouched. Used to compute shutdown order without
// re-deriving dependencies.
func (g *DependencyGraph[T]) Reversed() *DependencyGraph[T] {
	reversed := NewDependencyGraph[T]()
	for _, node := range g.nodes {
		reversed.AddNode(node)
	}
	for _, node := range g.nodes {
		for _, dependent := range g.edges[node] {
			// Self-edges cannot exist here, AddEdge rejected them.
			_ = reversed.AddEdge(dependent, node)
		}
	}
	return reversed
}
