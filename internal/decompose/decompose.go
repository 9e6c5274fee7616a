// Package decompose provides task decomposition strategies: splitting a
// task into dependent or independent subtasks for divide-and-conquer
// execution.
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ordolabs/ordo/pkg/models"
)

// Strategy plans the subtasks for a parent task.
type Strategy interface {
	// Name is the key tasks use to select this strategy via
	// metadata["strategy"].
	Name() string
	// Plan produces subtask specifications. Specs may reference each
	// other's ids in DependsOn; the task manager registers them in order.
	Plan(ctx context.Context, parent *models.Task) ([]models.TaskSpec, error)
}

// Engine selects a strategy by the task's declared strategy key and
// runs it. It implements the manager's DecomposeEngine contract.
type Engine struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewEngine creates an engine with the built-in strategies registered.
func NewEngine() *Engine {
	e := &Engine{strategies: make(map[string]Strategy)}
	e.Register(Sequential{})
	e.Register(ParallelMap{})
	return e
}

// Register adds a strategy, replacing any existing one with the same name.
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.Name()] = s
}

// Strategies returns the registered strategy names, sorted.
func (e *Engine) Strategies() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decompose plans subtasks for the given task using its declared
// strategy. A missing or unregistered strategy key fails with
// models.ErrStrategyNotFound.
func (e *Engine) Decompose(ctx context.Context, task *models.Task) ([]models.TaskSpec, error) {
	key := task.Meta(models.MetaStrategy)
	if key == "" {
		return nil, fmt.Errorf("task %s declares no strategy: %w", task.ID, models.ErrStrategyNotFound)
	}

	e.mu.RLock()
	strategy, ok := e.strategies[key]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("task %s: strategy %q: %w", task.ID, key, models.ErrStrategyNotFound)
	}

	specs, err := strategy.Plan(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", key, err)
	}
	return specs, nil
}

// parseItems decodes a task input as a JSON array. String elements are
// unquoted; any other element passes through as its raw JSON text, so
// collections of numbers or objects decompose too.
func parseItems(input string) ([]string, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(input), &elems); err != nil {
		return nil, fmt.Errorf("input is not a JSON array: %w", err)
	}

	items := make([]string, len(elems))
	for i, raw := range elems {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			items[i] = s
			continue
		}
		items[i] = string(raw)
	}
	return items, nil
}

// subtaskID derives a deterministic child id from the parent and index.
func subtaskID(parentID string, i int) string {
	return fmt.Sprintf("%s.%d", parentID, i+1)
}

// Sequential splits a task into a chain: one subtask per input step,
// each depending on the previous. The output of step k feeds step k+1
// through a result reference resolved when the step becomes ready.
type Sequential struct{}

// Name returns the strategy key.
func (Sequential) Name() string { return "sequential" }

// Plan expects the parent input to be a JSON array of step payloads.
func (Sequential) Plan(_ context.Context, parent *models.Task) ([]models.TaskSpec, error) {
	steps, err := parseItems(parent.Input)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps to decompose")
	}

	specs := make([]models.TaskSpec, len(steps))
	for i, step := range steps {
		spec := models.TaskSpec{
			ID:       subtaskID(parent.ID, i),
			Priority: parent.Priority,
			Input:    step,
		}
		if i > 0 {
			prev := subtaskID(parent.ID, i-1)
			spec.DependsOn = []string{prev}
			// Later steps consume the previous step's result; the literal
			// step payload is carried in metadata for strategies that need it.
			spec.Input = "@result:" + prev
			spec.Metadata = map[string]string{"step": step}
		}
		specs[i] = spec
	}
	return specs, nil
}

// ParallelMap splits a task into one independent subtask per element of
// the input collection. Subtasks have no edges between each other.
type ParallelMap struct{}

// Name returns the strategy key.
func (ParallelMap) Name() string { return "parallel_map" }

// Plan expects the parent input to be a JSON array of element payloads.
func (ParallelMap) Plan(_ context.Context, parent *models.Task) ([]models.TaskSpec, error) {
	items, err := parseItems(parent.Input)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no elements to map over")
	}

	specs := make([]models.TaskSpec, len(items))
	for i, item := range items {
		specs[i] = models.TaskSpec{
			ID:       subtaskID(parent.ID, i),
			Priority: parent.Priority,
			Input:    item,
		}
	}
	return specs, nil
}
