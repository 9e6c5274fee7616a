// Package taskfile loads task graph definitions from YAML files.
package taskfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ordolabs/ordo/internal/graph"
	"github.com/ordolabs/ordo/pkg/models"
)

// File is the on-disk shape of a task graph definition.
type File struct {
	// Name is an optional human-readable label for the graph.
	Name string `yaml:"name"`
	// Tasks lists the task specifications in file order.
	Tasks []models.TaskSpec `yaml:"tasks"`
}

// Load reads a task file, validates it, and returns the specs in an
// order safe for sequential registration: every task appears after all
// of its dependencies.
func Load(path string) ([]models.TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML content and returns dependency-ordered specs.
func Parse(data []byte) ([]models.TaskSpec, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("task file defines no tasks")
	}

	byID := make(map[string]models.TaskSpec, len(file.Tasks))
	dag := graph.New()
	for i, spec := range file.Tasks {
		if spec.ID == "" {
			return nil, fmt.Errorf("task %d: missing id", i)
		}
		if _, dup := byID[spec.ID]; dup {
			return nil, fmt.Errorf("task %s: %w", spec.ID, models.ErrDuplicateTask)
		}
		byID[spec.ID] = spec
		dag.AddNode(spec.ID, nil)
	}
	for _, spec := range file.Tasks {
		for _, depID := range spec.DependsOn {
			if _, ok := byID[depID]; !ok {
				return nil, fmt.Errorf("task %s: dependency %s: %w", spec.ID, depID, models.ErrUnknownTask)
			}
			// A dependency listed twice is redundant, not cyclic.
			if dag.HasEdge(depID, spec.ID) {
				continue
			}
			if !dag.AddEdge(depID, spec.ID) {
				return nil, fmt.Errorf("task %s depends on %s: %w", spec.ID, depID, models.ErrCyclicDependency)
			}
		}
	}

	order, err := dag.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("ordering tasks: %w", err)
	}

	specs := make([]models.TaskSpec, 0, len(order))
	for _, id := range order {
		specs = append(specs, byID[id])
	}
	return specs, nil
}
