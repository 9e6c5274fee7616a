// Package manager owns the canonical task registry and mediates every
// task state transition.
package manager

import (
	"time"
)

// EventType represents the type of task lifecycle event.
type EventType string

const (
	// EventTaskCreated indicates a task was registered.
	EventTaskCreated EventType = "task_created"
	// EventTaskReady indicates a task's dependencies were met and it was queued.
	EventTaskReady EventType = "task_ready"
	// EventTaskClaimed indicates an executor pulled the task for processing.
	EventTaskClaimed EventType = "task_claimed"
	// EventTaskSucceeded indicates a task completed successfully.
	EventTaskSucceeded EventType = "task_succeeded"
	// EventTaskFailed indicates a task failed, directly or by cascade.
	EventTaskFailed EventType = "task_failed"
	// EventTaskCancelled indicates a task was explicitly cancelled.
	EventTaskCancelled EventType = "task_cancelled"
	// EventTaskDecomposed indicates a task was split into subtasks.
	EventTaskDecomposed EventType = "task_decomposed"
	// EventTaskSynthesized indicates a parent's subtask results were aggregated.
	EventTaskSynthesized EventType = "task_synthesized"
)

// Event represents a task lifecycle event emitted by the manager.
// Events are advisory: consumers that fall behind lose events rather
// than blocking a transition.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task.
	TaskID string
	// ParentID is the aggregation parent, if the task is a subtask.
	ParentID string
	// Message provides additional context about the event.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emit sends an event without blocking. The caller may hold the manager
// lock, so a full channel drops the event instead of waiting.
func (m *Manager) emit(evtType EventType, taskID, parentID, message string) {
	if m.events == nil {
		return
	}
	evt := Event{
		Type:      evtType,
		TaskID:    taskID,
		ParentID:  parentID,
		Message:   message,
		Timestamp: m.clock(),
	}
	select {
	case m.events <- evt:
	default:
		m.logf("[events] dropped %s for task %s (channel full)", evtType, taskID)
	}
}

// Events returns the lifecycle event channel. The channel is closed
// when the manager is closed.
func (m *Manager) Events() <-chan Event {
	return m.events
}
