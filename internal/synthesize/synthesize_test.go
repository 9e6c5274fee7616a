package synthesize

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/ordolabs/ordo/pkg/models"
)

func results(values ...string) []models.SubtaskResult {
	out := make([]models.SubtaskResult, len(values))
	for i, v := range values {
		out[i] = models.SubtaskResult{
			TaskID: string(rune('a' + i)),
			Seq:    uint64(i),
			Result: v,
		}
	}
	return out
}

func TestConcatenate(t *testing.T) {
	parent := &models.Task{ID: "p"}
	got, err := NewEngine().Synthesize(context.Background(), parent, results("a", "b", "c"))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
}

func TestConcatenateIsDefault(t *testing.T) {
	// No synthesis key declared: Concatenate applies.
	parent := &models.Task{ID: "p", Metadata: map[string]string{}}
	got, err := NewEngine().Synthesize(context.Background(), parent, results("x", "y"))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got != "xy" {
		t.Errorf("got %q, want %q", got, "xy")
	}
}

func TestMergeObjects(t *testing.T) {
	parent := &models.Task{
		ID:       "p",
		Metadata: map[string]string{models.MetaSynthesis: "merge_objects"},
	}
	in := results(
		`{"a": 1, "shared": "first"}`,
		`{"b": 2, "shared": "second"}`,
	)

	got, err := NewEngine().Synthesize(context.Background(), parent, in)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	var merged map[string]any
	if err := json.Unmarshal([]byte(got), &merged); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	// Later subtask wins on collision.
	want := map[string]any{"a": float64(1), "b": float64(2), "shared": "second"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("merged = %v, want %v", merged, want)
	}
}

func TestMergeObjectsRejectsNonObject(t *testing.T) {
	parent := &models.Task{
		ID:       "p",
		Metadata: map[string]string{models.MetaSynthesis: "merge_objects"},
	}
	if _, err := NewEngine().Synthesize(context.Background(), parent, results("not json")); err == nil {
		t.Error("expected error for non-object result")
	}
}

func TestUnknownStrategy(t *testing.T) {
	parent := &models.Task{
		ID:       "p",
		Metadata: map[string]string{models.MetaSynthesis: "bogus"},
	}
	_, err := NewEngine().Synthesize(context.Background(), parent, results("a"))
	if !errors.Is(err, models.ErrStrategyNotFound) {
		t.Errorf("expected ErrStrategyNotFound, got %v", err)
	}
}

// staticCompleter returns a canned response.
type staticCompleter struct {
	response string
	err      error
}

func (s staticCompleter) Complete(context.Context, string) (string, error) {
	return s.response, s.err
}

func TestSummarize(t *testing.T) {
	e := NewEngine()
	e.Register(NewSummarize(staticCompleter{response: "  combined text \n"}))

	parent := &models.Task{
		ID:       "p",
		Metadata: map[string]string{models.MetaSynthesis: "summarize"},
	}
	got, err := e.Synthesize(context.Background(), parent, results("a", "b"))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got != "combined text" {
		t.Errorf("got %q, want trimmed summary", got)
	}
}

func TestSummarizeAdapterError(t *testing.T) {
	e := NewEngine()
	e.Register(NewSummarize(staticCompleter{err: errors.New("api down")}))

	parent := &models.Task{
		ID:       "p",
		Metadata: map[string]string{models.MetaSynthesis: "summarize"},
	}
	if _, err := e.Synthesize(context.Background(), parent, results("a")); err == nil {
		t.Error("expected error from failing adapter")
	}
}
