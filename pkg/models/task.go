package models

import (
	"sort"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on unmet dependencies.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates all dependencies succeeded and the task is schedulable.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusProcessing indicates the task has been claimed by an executor.
	TaskStatusProcessing TaskStatus = "processing"
	// TaskStatusSucceeded indicates the task completed successfully.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed indicates the task failed or was cascade-failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was explicitly cancelled.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusProcessing,
		TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is permitted by the
// task state machine. Cancellation is allowed from any non-terminal state;
// every other transition follows pending -> ready -> processing -> terminal.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == TaskStatusCancelled {
		return true
	}
	switch s {
	case TaskStatusPending:
		return next == TaskStatusReady || next == TaskStatusFailed
	case TaskStatusReady:
		return next == TaskStatusProcessing
	case TaskStatusProcessing:
		return next == TaskStatusSucceeded || next == TaskStatusFailed
	default:
		return false
	}
}

// Metadata keys recognized by the decomposition and synthesis engines.
const (
	// MetaStrategy names the decomposition strategy for a task.
	MetaStrategy = "strategy"
	// MetaSynthesis names the synthesis strategy used when a decomposed
	// parent's subtasks all succeed.
	MetaSynthesis = "synthesis"
	// MetaParentID links a subtask to the decomposed parent it aggregates into.
	// This is aggregation membership, distinct from scheduling dependencies.
	MetaParentID = "parent_id"
)

// Task represents a unit of work in the orchestration graph.
type Task struct {
	// ID is the unique, immutable identifier for this task.
	ID string `json:"id"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority is the scheduling key; lower values are scheduled first.
	// Mutable only while the task is pending or ready.
	Priority float64 `json:"priority"`
	// DependsOn lists task IDs that must succeed before this task becomes ready.
	// Immutable after creation.
	DependsOn []string `json:"depends_on,omitempty"`
	// Input is the opaque task payload. Large payloads hold a blob-store
	// reference rather than the bytes themselves.
	Input string `json:"input,omitempty"`
	// Result is the opaque task result, subject to the same blob rule.
	Result string `json:"result,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// Metadata carries free-form strategy hints (strategy, parent_id, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
	// CreatedAt is when the task was registered.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the task was claimed by an executor, if it has been.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Seq is the creation sequence number, used for stable ordering.
	Seq uint64 `json:"seq"`
}

// Meta returns the metadata value for key, or "" if unset.
func (t *Task) Meta(key string) string {
	if t.Metadata == nil {
		return ""
	}
	return t.Metadata[key]
}

// ParentID returns the aggregation parent of a subtask, or "" for top-level tasks.
func (t *Task) ParentID() string {
	return t.Meta(MetaParentID)
}

// Clone returns a deep copy of the task. The manager hands clones to
// callers so registry state is never mutated from outside.
func (t *Task) Clone() *Task {
	c := *t
	if t.DependsOn != nil {
		c.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

// TaskSpec describes a task to be created. The zero value is a valid
// spec for an independent task with default priority.
type TaskSpec struct {
	// ID is the externally-supplied identifier. If empty, one is allocated.
	ID string `json:"id,omitempty" yaml:"id"`
	// Priority is the scheduling key; lower runs first.
	Priority float64 `json:"priority" yaml:"priority"`
	// DependsOn lists prerequisite task IDs.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`
	// Input is the task payload.
	Input string `json:"input,omitempty" yaml:"input"`
	// Metadata carries strategy hints.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata"`
}

// Equal reports whether two specs are materially identical. Used to
// distinguish idempotent re-creation from a duplicate-id conflict.
func (s TaskSpec) Equal(other TaskSpec) bool {
	if s.ID != other.ID || s.Priority != other.Priority || s.Input != other.Input {
		return false
	}
	if len(s.DependsOn) != len(other.DependsOn) {
		return false
	}
	a := append([]string(nil), s.DependsOn...)
	b := append([]string(nil), other.DependsOn...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	if len(s.Metadata) != len(other.Metadata) {
		return false
	}
	for k, v := range s.Metadata {
		if other.Metadata[k] != v {
			return false
		}
	}
	return true
}
