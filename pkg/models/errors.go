package models

import "errors"

// Sentinel errors for the orchestration core. Callers match these with
// errors.Is; operations wrap them with task-specific context.
var (
	// ErrCyclicDependency indicates a registration would close a dependency
	// cycle. Retrying with the same dependency set can never succeed.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrUnknownTask indicates an operation referenced a task id that is
	// not in the registry.
	ErrUnknownTask = errors.New("unknown task")

	// ErrDuplicateTask indicates CreateTask was called with an existing id
	// and a materially different specification.
	ErrDuplicateTask = errors.New("duplicate task id")

	// ErrStrategyNotFound indicates no registered decomposition or
	// synthesis strategy matches the task's declared strategy key.
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrInvalidTransition indicates an attempt to move a task through a
	// transition the state machine does not permit.
	ErrInvalidTransition = errors.New("invalid task transition")
)
