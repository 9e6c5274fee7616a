// Package graph provides a cycle-safe directed acyclic graph used for
// task dependency tracking and decomposition bookkeeping.
package graph

import (
	"errors"
	"sort"
	"sync"
)

// ErrCycleDetected indicates the graph contains, or an operation would
// create, a circular dependency.
var ErrCycleDetected = errors.New("circular dependency detected")

// DAG is a directed acyclic graph of id-keyed nodes with arbitrary
// payloads. Edges point from a prerequisite to the nodes it enables:
// an edge A -> B means B depends on A.
//
// All neighbor sets are indexed by id rather than held as pointers, so
// traversal and copying never recurse through node structures.
type DAG struct {
	mu sync.RWMutex
	// nodes maps node ID to its payload.
	nodes map[string]any
	// successors maps node ID to the set of nodes it enables.
	successors map[string]map[string]bool
	// predecessors maps node ID to the set of nodes it depends on.
	predecessors map[string]map[string]bool
}

// New creates a new empty DAG.
func New() *DAG {
	return &DAG{
		nodes:        make(map[string]any),
		successors:   make(map[string]map[string]bool),
		predecessors: make(map[string]map[string]bool),
	}
}

// AddNode registers a node with the given payload.
// Returns false if the id is already present; the graph is unchanged.
func (g *DAG) AddNode(id string, payload any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		return false
	}
	g.nodes[id] = payload
	g.successors[id] = make(map[string]bool)
	g.predecessors[id] = make(map[string]bool)
	return true
}

// AddEdge inserts a directed edge from -> to. Returns false if either
// node is absent, the edge already exists, or the edge would create a
// cycle (including a self-loop). On failure the graph is unchanged.
func (g *DAG) AddEdge(from, to string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if from == to {
		return false
	}
	if _, ok := g.nodes[from]; !ok {
		return false
	}
	if _, ok := g.nodes[to]; !ok {
		return false
	}
	if g.successors[from][to] {
		return false
	}
	// The edge from -> to closes a cycle exactly when from is already
	// reachable from to.
	if g.reachableLocked(to, from) {
		return false
	}

	g.successors[from][to] = true
	g.predecessors[to][from] = true
	return true
}

// RemoveEdge deletes the edge from -> to if present.
func (g *DAG) RemoveEdge(from, to string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.successors[from][to] {
		return false
	}
	delete(g.successors[from], to)
	delete(g.predecessors[to], from)
	return true
}

// RemoveNode detaches all incident edges and removes the node.
// Returns false if the node is absent.
func (g *DAG) RemoveNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return false
	}
	for succ := range g.successors[id] {
		delete(g.predecessors[succ], id)
	}
	for pred := range g.predecessors[id] {
		delete(g.successors[pred], id)
	}
	delete(g.nodes, id)
	delete(g.successors, id)
	delete(g.predecessors, id)
	return true
}

// HasNode reports whether the node is present.
func (g *DAG) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// HasEdge reports whether the edge from -> to is present.
func (g *DAG) HasEdge(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.successors[from][to]
}

// Payload returns the payload stored for id, and whether the node exists.
func (g *DAG) Payload(id string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.nodes[id]
	return p, ok
}

// Size returns the number of nodes in the graph.
func (g *DAG) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Successors returns the ids of nodes this node enables, sorted.
func (g *DAG) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.successors[id])
}

// Predecessors returns the ids of nodes this node depends on, sorted.
func (g *DAG) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.predecessors[id])
}

// Sources returns the ids of nodes with no predecessors, sorted.
// These are the graph's entry points.
func (g *DAG) Sources() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for id := range g.nodes {
		if len(g.predecessors[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Sinks returns the ids of nodes with no successors, sorted.
// These are the graph's final aggregation points.
func (g *DAG) Sinks() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for id := range g.nodes {
		if len(g.successors[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Ancestors returns every node from which id is reachable, sorted.
func (g *DAG) Ancestors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(id, g.predecessors)
}

// Descendants returns every node reachable from id, sorted.
func (g *DAG) Descendants(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(id, g.successors)
}

// WouldCycle reports whether adding the edge from -> to would create a
// cycle. Unlike AddEdge it does not mutate the graph, and it tolerates
// absent nodes (an absent endpoint can never close a cycle).
func (g *DAG) WouldCycle(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if from == to {
		return true
	}
	return g.reachableLocked(to, from)
}

// TopologicalSort returns node ids in an order where every predecessor
// comes before the nodes it enables. Ties are broken by id so the order
// is deterministic. Returns ErrCycleDetected if the graph is cyclic;
// AddEdge should make that impossible, but the check is independent
// because RemoveNode/RemoveEdge misuse could be hidden by skipping it.
func (g *DAG) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Kahn's algorithm over a scratch in-degree map.
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.predecessors[id])
	}

	var frontier []string
	for id, d := range indegree {
		if d == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(g.nodes))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		next := sortedKeys(g.successors[id])
		var promoted []string
		for _, succ := range next {
			indegree[succ]--
			if indegree[succ] == 0 {
				promoted = append(promoted, succ)
			}
		}
		if len(promoted) > 0 {
			frontier = append(frontier, promoted...)
			sort.Strings(frontier)
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrCycleDetected
	}
	return order, nil
}

// reachableLocked reports whether target is reachable from start by
// following successor edges. Caller must hold the lock.
func (g *DAG) reachableLocked(start, target string) bool {
	if start == target {
		return true
	}
	visited := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for succ := range g.successors[id] {
			if succ == target {
				return true
			}
			if !visited[succ] {
				visited[succ] = true
				stack = append(stack, succ)
			}
		}
	}
	return false
}

// collectLocked walks the given neighbor index transitively from id.
func (g *DAG) collectLocked(id string, index map[string]map[string]bool) []string {
	visited := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for n := range index[cur] {
			if !visited[n] {
				visited[n] = true
				stack = append(stack, n)
			}
		}
	}
	delete(visited, id)
	return sortedKeys(visited)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
