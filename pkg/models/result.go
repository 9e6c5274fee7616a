package models

// SubtaskResult pairs a completed subtask with its result, ordered by
// the subtask's creation sequence for deterministic synthesis.
type SubtaskResult struct {
	// TaskID is the subtask's id.
	TaskID string `json:"task_id"`
	// Seq is the subtask's creation sequence number.
	Seq uint64 `json:"seq"`
	// Result is the subtask's result payload, with blob references
	// already resolved.
	Result string `json:"result"`
}
