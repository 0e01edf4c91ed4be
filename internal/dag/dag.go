// Package dag provides directed acyclic graph operations for model dependencies.
// It supports cycle detection, deterministic topological sorting, execution
// levels and upstream/downstream selection.
package dag

import (
	"container/heap"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

// Node represents a node in the DAG.
type Node struct {
	// ID is the unique identifier (model name)
	ID string
	// Index is the declaration position, used to break ordering ties
	Index int
	// Data holds arbitrary node data
	Data any
}

// Graph is a directed graph with edges from dependency to dependent.
// Node insertion order is the declaration order.
type Graph struct {
	nodes   map[string]*Node
	order   []string            // insertion order
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Adding an existing ID is an error.
func (g *Graph) AddNode(id string, data any) error {
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("duplicate node %q", id)
	}
	g.nodes[id] = &Node{ID: id, Index: len(g.order), Data: data}
	g.order = append(g.order, id)
	return nil
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// Self-loops are recorded so that cycle detection reports them.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Parents returns the dependencies of a node.
func (g *Graph) Parents(id string) []string {
	return slices.Clone(g.parents[id])
}

// Children returns the dependents of a node.
func (g *Graph) Children(id string) []string {
	return slices.Clone(g.edges[id])
}

// Nodes returns node IDs in declaration order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// FindCycle returns a cycle as a closed path following dependency edges
// (a depends on b depends on a -> [a b a]), or nil if the graph is acyclic.
// Traversal follows declaration order so the reported cycle is stable.
func (g *Graph) FindCycle() []string {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inProgress
		stack = append(stack, id)

		for _, dep := range g.parents[id] {
			switch state[dep] {
			case inProgress:
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// CycleError reports a dependency cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// Kind implements core.KindedError.
func (e *CycleError) Kind() core.ErrorKind { return core.ErrCycleDetected }

// TopologicalSort returns node IDs with every dependency before its
// dependents. Among ready nodes the one declared first wins.
func (g *Graph) TopologicalSort() ([]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	inDegree := make(map[string]int, len(g.nodes))
	ready := &indexHeap{}
	for _, id := range g.order {
		inDegree[id] = len(g.parents[id])
		if inDegree[id] == 0 {
			heap.Push(ready, g.nodes[id])
		}
	}

	result := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*Node)
		result = append(result, n.ID)
		for _, child := range g.edges[n.ID] {
			inDegree[child]--
			if inDegree[child] == 0 {
				heap.Push(ready, g.nodes[child])
			}
		}
	}
	return result, nil
}

// ExecutionLevels groups nodes by depth. Every node in level i depends
// only on nodes in levels below i, so a level may run concurrently.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(order))
	maxDepth := -1
	for _, id := range order {
		d := 0
		for _, p := range g.parents[id] {
			if depth[p]+1 > d {
				d = depth[p] + 1
			}
		}
		depth[id] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, id := range order {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	return levels, nil
}

// Downstream returns every node that transitively depends on any of ids,
// excluding ids themselves, in declaration order.
func (g *Graph) Downstream(ids ...string) []string {
	return g.walk(g.edges, ids)
}

// Upstream returns every node that any of ids transitively depends on,
// excluding ids themselves, in declaration order.
func (g *Graph) Upstream(ids ...string) []string {
	return g.walk(g.parents, ids)
}

func (g *Graph) walk(adj map[string][]string, ids []string) []string {
	seen := make(map[string]bool)
	start := make(map[string]bool, len(ids))
	queue := slices.Clone(ids)
	for _, id := range ids {
		start[id] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out []string
	for _, id := range g.order {
		if seen[id] && !start[id] {
			out = append(out, id)
		}
	}
	return out
}

// Roots returns nodes with no dependencies, in declaration order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes with no dependents, in declaration order.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// indexHeap is a min-heap of nodes by declaration index.
type indexHeap []*Node

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i].Index < h[j].Index }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(*Node)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
