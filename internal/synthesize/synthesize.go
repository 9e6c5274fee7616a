// Package synthesize aggregates completed subtask results into a single
// parent result.
package synthesize

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ordolabs/ordo/internal/llm"
	"github.com/ordolabs/ordo/pkg/models"
)

// Strategy combines ordered subtask results into one parent result.
type Strategy interface {
	// Name is the key tasks use to select this strategy via
	// metadata["synthesis"].
	Name() string
	// Combine receives results sorted by subtask creation order.
	Combine(ctx context.Context, parent *models.Task, results []models.SubtaskResult) (string, error)
}

// Engine selects a synthesis strategy by the parent task's declared key
// and runs it. It implements the manager's SynthesisEngine contract.
type Engine struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	fallback   string
}

// NewEngine creates an engine with the built-in strategies registered
// and Concatenate as the default for tasks that declare no key.
func NewEngine() *Engine {
	e := &Engine{
		strategies: make(map[string]Strategy),
		fallback:   Concatenate{}.Name(),
	}
	e.Register(Concatenate{})
	e.Register(MergeObjects{})
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

// Synthesize combines the subtask results for the parent using its
// declared strategy, or the default when none is declared. An unknown
// key fails with models.ErrStrategyNotFound; strategy errors surface so
// the manager can fail the parent instead of recording a partial result.
func (e *Engine) Synthesize(ctx context.Context, parent *models.Task, results []models.SubtaskResult) (string, error) {
	key := parent.Meta(models.MetaSynthesis)
	if key == "" {
		key = e.fallback
	}

	e.mu.RLock()
	strategy, ok := e.strategies[key]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("parent %s: synthesis %q: %w", parent.ID, key, models.ErrStrategyNotFound)
	}

	out, err := strategy.Combine(ctx, parent, results)
	if err != nil {
		return "", fmt.Errorf("synthesis %q: %w", key, err)
	}
	return out, nil
}

// Concatenate joins subtask results in creation order.
type Concatenate struct{}

// Name returns the strategy key.
func (Concatenate) Name() string { return "concatenate" }

// Combine joins the already-ordered results.
func (Concatenate) Combine(_ context.Context, _ *models.Task, results []models.SubtaskResult) (string, error) {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Result)
	}
	return b.String(), nil
}

// MergeObjects shallow-merges JSON object results. On key collision the
// later subtask by creation order wins; the rule is deterministic, not
// arbitrary.
type MergeObjects struct{}

// Name returns the strategy key.
func (MergeObjects) Name() string { return "merge_objects" }

// Combine decodes each result as a JSON object and merges them in order.
// A result that is not a JSON object is a synthesis failure.
func (MergeObjects) Combine(_ context.Context, _ *models.Task, results []models.SubtaskResult) (string, error) {
	merged := make(map[string]json.RawMessage)
	for _, r := range results {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(r.Result), &obj); err != nil {
			return "", fmt.Errorf("result of %s is not a JSON object: %w", r.TaskID, err)
		}
		for k, v := range obj {
			merged[k] = v
		}
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("encode merged object: %w", err)
	}
	return string(out), nil
}

// summaryPrompt is the prompt template for model-backed synthesis.
const summaryPrompt = `Combine the following partial results into one coherent final result.
Return ONLY the combined result, no commentary.

Partial results in order:
%s`

// Summarize asks a language-model adapter to combine results into prose.
type Summarize struct {
	completer llm.Completer
}

// NewSummarize creates a model-backed synthesis strategy.
func NewSummarize(completer llm.Completer) Summarize {
	return Summarize{completer: completer}
}

// Name returns the strategy key.
func (Summarize) Name() string { return "summarize" }

// Combine prompts the adapter with the ordered results.
func (s Summarize) Combine(ctx context.Context, _ *models.Task, results []models.SubtaskResult) (string, error) {
	if s.completer == nil {
		return "", fmt.Errorf("no model adapter configured")
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "--- part %d ---\n%s\n", i+1, r.Result)
	}

	out, err := s.completer.Complete(ctx, fmt.Sprintf(summaryPrompt, b.String()))
	if err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}
	return strings.TrimSpace(out), nil
}
