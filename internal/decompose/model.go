package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ordolabs/ordo/internal/llm"
	"github.com/ordolabs/ordo/pkg/models"
)

// planPrompt is the prompt template for model-backed decomposition.
const planPrompt = `Break this task into subtasks that can be executed independently or in sequence.

Task:
%s

Return ONLY a JSON array of subtasks with this exact structure (no other text):
[
  {
    "input": "The full payload for this subtask",
    "depends_on": [0, 1]
  }
]

Guidelines:
- depends_on lists zero-based indices of earlier subtasks that must finish first
- Prefer independent subtasks; only add dependencies when output of one feeds another
- Use empty array [] for depends_on if there are no dependencies
- Each subtask input must be self-contained`

// plannedSubtask is the JSON structure the model returns for one subtask.
type plannedSubtask struct {
	Input     string `json:"input"`
	DependsOn []int  `json:"depends_on"`
}

// Model asks a language-model adapter to plan subtasks. The adapter is
// an opaque prompt-to-text function; malformed responses fail the plan.
type Model struct {
	completer llm.Completer
}

// NewModel creates a model-backed strategy over the given adapter.
func NewModel(completer llm.Completer) Model {
	return Model{completer: completer}
}

// Name returns the strategy key.
func (Model) Name() string { return "model" }

// Plan prompts the adapter with the parent input and parses the
// returned subtask list.
func (s Model) Plan(ctx context.Context, parent *models.Task) ([]models.TaskSpec, error) {
	if s.completer == nil {
		return nil, fmt.Errorf("no model adapter configured")
	}

	response, err := s.completer.Complete(ctx, fmt.Sprintf(planPrompt, parent.Input))
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}

	planned, err := parsePlan(response)
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	specs := make([]models.TaskSpec, len(planned))
	for i, sub := range planned {
		spec := models.TaskSpec{
			ID:       subtaskID(parent.ID, i),
			Priority: parent.Priority,
			Input:    sub.Input,
		}
		for _, dep := range sub.DependsOn {
			if dep < 0 || dep >= i {
				return nil, fmt.Errorf("subtask %d depends on invalid index %d", i, dep)
			}
			spec.DependsOn = append(spec.DependsOn, subtaskID(parent.ID, dep))
		}
		specs[i] = spec
	}
	return specs, nil
}

// parsePlan extracts the JSON array from a model response that may wrap
// it in prose or markdown fences.
func parsePlan(response string) ([]plannedSubtask, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		preview := response
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("no JSON array in response: %q", preview)
	}

	var planned []plannedSubtask
	if err := json.Unmarshal([]byte(response[start:end+1]), &planned); err != nil {
		return nil, fmt.Errorf("decode subtasks: %w", err)
	}
	return planned, nil
}
