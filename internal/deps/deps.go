// Package deps tracks forward and reverse dependency edges between tasks
// and decides when tasks become ready or cascade-fail.
package deps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ordolabs/ordo/internal/graph"
	"github.com/ordolabs/ordo/pkg/models"
)

// StatusFunc resolves the current status of a task. The manager supplies
// its registry lookup so readiness checks never consult a stale cache.
type StatusFunc func(taskID string) (models.TaskStatus, bool)

// Manager records, for every task, the set of tasks it depends on and
// the set of tasks depending on it. It is the single authority for
// promoting tasks to ready and for failure cascades.
type Manager struct {
	mu sync.RWMutex
	// forward maps task -> the tasks it depends on.
	forward map[string]map[string]bool
	// reverse maps task -> the tasks that depend on it.
	reverse map[string]map[string]bool
	// dag mirrors the edges for cycle checking and structural queries.
	dag *graph.DAG
}

// NewManager creates an empty dependency manager.
func NewManager() *Manager {
	return &Manager{
		forward: make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
		dag:     graph.New(),
	}
}

// Graph exposes the underlying DAG for structural queries (sources,
// sinks, topological order). Mutation goes through Register only.
func (m *Manager) Graph() *graph.DAG {
	return m.dag
}

// Register records the dependency edges for a new task. Dependencies are
// immutable afterwards. Registering an edge set that would close a cycle
// fails with models.ErrCyclicDependency and leaves no partial state.
func (m *Manager) Register(taskID string, dependencyIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.forward[taskID]; exists {
		return fmt.Errorf("register %s: %w", taskID, models.ErrDuplicateTask)
	}

	m.dag.AddNode(taskID, nil)

	added := make([][2]string, 0, len(dependencyIDs))
	rollback := func() {
		for _, e := range added {
			m.dag.RemoveEdge(e[0], e[1])
		}
		m.dag.RemoveNode(taskID)
	}

	for _, depID := range dependencyIDs {
		if depID == taskID {
			rollback()
			return fmt.Errorf("register %s: self-dependency: %w", taskID, models.ErrCyclicDependency)
		}
		// Dependencies may reference tasks registered later only if that
		// cannot close a cycle; since edges are immutable, referencing an
		// existing task is the normal case and a placeholder node covers
		// forward references.
		m.dag.AddNode(depID, nil)
		if !m.dag.AddEdge(depID, taskID) {
			if m.dag.WouldCycle(depID, taskID) {
				rollback()
				return fmt.Errorf("register %s: dependency %s: %w", taskID, depID, models.ErrCyclicDependency)
			}
			// Duplicate dependency entry; ignore.
			continue
		}
		added = append(added, [2]string{depID, taskID})
	}

	fwd := make(map[string]bool, len(dependencyIDs))
	for _, depID := range dependencyIDs {
		fwd[depID] = true
	}
	m.forward[taskID] = fwd
	for depID := range fwd {
		if m.reverse[depID] == nil {
			m.reverse[depID] = make(map[string]bool)
		}
		m.reverse[depID][taskID] = true
	}
	return nil
}

// Dependencies returns the ids the task depends on, sorted.
func (m *Manager) Dependencies(taskID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.forward[taskID])
}

// Dependents returns the ids depending on the task, sorted.
func (m *Manager) Dependents(taskID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.reverse[taskID])
}

// IsSatisfied reports whether every dependency of taskID has succeeded,
// per the supplied status resolver. A task with no dependencies is
// trivially satisfied.
func (m *Manager) IsSatisfied(taskID string, status StatusFunc) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.satisfiedLocked(taskID, status)
}

func (m *Manager) satisfiedLocked(taskID string, status StatusFunc) bool {
	for depID := range m.forward[taskID] {
		s, ok := status(depID)
		if !ok || s != models.TaskStatusSucceeded {
			return false
		}
	}
	return true
}

// OnTaskSucceeded returns the dependents of taskID whose dependencies
// are now all satisfied. This is the only path by which a pending task
// becomes eligible for ready promotion. The result is sorted for
// deterministic scheduling.
func (m *Manager) OnTaskSucceeded(taskID string, status StatusFunc) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ready []string
	for depID := range m.reverse[taskID] {
		s, ok := status(depID)
		if !ok || s != models.TaskStatusPending {
			continue
		}
		if m.satisfiedLocked(depID, status) {
			ready = append(ready, depID)
		}
	}
	sort.Strings(ready)
	return ready
}

// OnTaskFailed returns the transitive dependents of taskID that should
// cascade to failed. Only tasks still pending are included: ready,
// processing, and terminal tasks do not depend on the failed task in an
// unmet way, or have already resolved. The result is sorted.
func (m *Manager) OnTaskFailed(taskID string, status StatusFunc) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := make(map[string]bool)
	stack := []string{taskID}
	var failed []string
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for depID := range m.reverse[cur] {
			if visited[depID] {
				continue
			}
			visited[depID] = true
			if s, ok := status(depID); ok && s == models.TaskStatusPending {
				failed = append(failed, depID)
			}
			stack = append(stack, depID)
		}
	}
	sort.Strings(failed)
	return failed
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
