package manager

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ordolabs/ordo/internal/decompose"
	"github.com/ordolabs/ordo/internal/synthesize"
	"github.com/ordolabs/ordo/pkg/models"
)

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := New(opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newEngineManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{
		WithDecomposer(decompose.NewEngine()),
		WithSynthesizer(synthesize.NewEngine()),
	}, opts...)
	return newManager(t, opts...)
}

func mustCreate(t *testing.T, m *Manager, spec models.TaskSpec) *models.Task {
	t.Helper()
	task, err := m.CreateTask(spec)
	if err != nil {
		t.Fatalf("CreateTask(%s): %v", spec.ID, err)
	}
	return task
}

func claim(t *testing.T, m *Manager, wantID string) *models.Task {
	t.Helper()
	task := m.GetNextTask()
	if task == nil {
		t.Fatalf("GetNextTask returned nil, want %s", wantID)
	}
	if task.ID != wantID {
		t.Fatalf("GetNextTask = %s, want %s", task.ID, wantID)
	}
	return task
}

func TestCreateTaskNoDepsIsReady(t *testing.T) {
	m := newManager(t)
	task := mustCreate(t, m, models.TaskSpec{ID: "solo", Priority: 2, Input: "payload"})

	if task.Status != models.TaskStatusReady {
		t.Errorf("status = %s, want ready", task.Status)
	}
	if m.QueueLen() != 1 {
		t.Errorf("QueueLen = %d, want 1", m.QueueLen())
	}
}

func TestCreateTaskWithDepsIsPending(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})
	task := mustCreate(t, m, models.TaskSpec{ID: "b", Priority: 1, DependsOn: []string{"a"}})

	if task.Status != models.TaskStatusPending {
		t.Errorf("status = %s, want pending", task.Status)
	}
	if m.QueueLen() != 1 {
		t.Errorf("QueueLen = %d, want 1 (only the dependency)", m.QueueLen())
	}
}

func TestCreateTaskDependencyOnSucceededTask(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})
	claim(t, m, "a")
	if err := m.CompleteTask("a", "done"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	task := mustCreate(t, m, models.TaskSpec{ID: "b", Priority: 1, DependsOn: []string{"a"}})
	if task.Status != models.TaskStatusReady {
		t.Errorf("status = %s, want ready (dependency already satisfied)", task.Status)
	}
}

func TestCreateTaskUnknownDependency(t *testing.T) {
	m := newManager(t)
	_, err := m.CreateTask(models.TaskSpec{ID: "b", DependsOn: []string{"ghost"}})
	if !errors.Is(err, models.ErrUnknownTask) {
		t.Errorf("err = %v, want ErrUnknownTask", err)
	}
	if m.Size() != 0 {
		t.Errorf("Size = %d after failed create, want 0", m.Size())
	}
}

func TestCreateTaskSelfDependency(t *testing.T) {
	m := newManager(t)
	if _, err := m.CreateTask(models.TaskSpec{ID: "a", DependsOn: []string{"a"}}); err == nil {
		t.Error("expected error for self-dependency")
	}
}

func TestCreateTaskIdempotent(t *testing.T) {
	m := newManager(t)
	spec := models.TaskSpec{ID: "job", Priority: 3, Input: "x"}
	first := mustCreate(t, m, spec)
	second := mustCreate(t, m, spec)

	if first.ID != second.ID || first.Seq != second.Seq {
		t.Errorf("idempotent create returned a different task: %v vs %v", first, second)
	}
	if m.Size() != 1 {
		t.Errorf("Size = %d, want 1", m.Size())
	}
	if m.QueueLen() != 1 {
		t.Errorf("QueueLen = %d, want 1 (no duplicate queue entry)", m.QueueLen())
	}
}

func TestCreateTaskConflictingSpec(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "job", Priority: 3, Input: "x"})
	_, err := m.CreateTask(models.TaskSpec{ID: "job", Priority: 9, Input: "x"})
	if !errors.Is(err, models.ErrDuplicateTask) {
		t.Errorf("err = %v, want ErrDuplicateTask", err)
	}
}

func TestCreateTaskAllocatesID(t *testing.T) {
	m := newManager(t)
	task := mustCreate(t, m, models.TaskSpec{Priority: 1})
	if task.ID == "" {
		t.Error("expected allocated id")
	}
}

func TestGetNextTaskEmpty(t *testing.T) {
	m := newManager(t)
	if task := m.GetNextTask(); task != nil {
		t.Errorf("GetNextTask on empty manager = %v, want nil", task)
	}
}

func TestSchedulingOrder(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "A", Priority: 5})
	mustCreate(t, m, models.TaskSpec{ID: "B", Priority: 1})
	mustCreate(t, m, models.TaskSpec{ID: "C", Priority: 10, DependsOn: []string{"A"}})

	// Lower priority value runs first; C stays pending behind A.
	claim(t, m, "B")
	if err := m.CompleteTask("B", "b done"); err != nil {
		t.Fatalf("CompleteTask(B): %v", err)
	}

	a := claim(t, m, "A")
	if a.StartedAt == nil {
		t.Error("claimed task has no StartedAt")
	}
	if next := m.GetNextTask(); next != nil {
		t.Fatalf("C claimed before A completed: %s", next.ID)
	}

	if err := m.CompleteTask("A", "a done"); err != nil {
		t.Fatalf("CompleteTask(A): %v", err)
	}
	claim(t, m, "C")
	if err := m.CompleteTask("C", "c done"); err != nil {
		t.Fatalf("CompleteTask(C): %v", err)
	}

	if next := m.GetNextTask(); next != nil {
		t.Errorf("queue not empty after draining: %s", next.ID)
	}
}

func TestSchedulingFIFOAmongEqualPriorities(t *testing.T) {
	m := newManager(t)
	for _, id := range []string{"first", "second", "third"} {
		mustCreate(t, m, models.TaskSpec{ID: id, Priority: 7})
	}
	claim(t, m, "first")
	claim(t, m, "second")
	claim(t, m, "third")
}

func TestDependencyGatingMultipleDeps(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "left", Priority: 1})
	mustCreate(t, m, models.TaskSpec{ID: "right", Priority: 2})
	mustCreate(t, m, models.TaskSpec{ID: "join", Priority: 1, DependsOn: []string{"left", "right"}})

	claim(t, m, "left")
	if err := m.CompleteTask("left", ""); err != nil {
		t.Fatalf("CompleteTask(left): %v", err)
	}

	task, _ := m.GetTask("join")
	if task.Status != models.TaskStatusPending {
		t.Fatalf("join promoted with one of two deps met: %s", task.Status)
	}

	claim(t, m, "right")
	if err := m.CompleteTask("right", ""); err != nil {
		t.Fatalf("CompleteTask(right): %v", err)
	}
	task, _ = m.GetTask("join")
	if task.Status != models.TaskStatusReady {
		t.Errorf("join status = %s after both deps met, want ready", task.Status)
	}
}

func TestResultChaining(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "producer", Priority: 1})
	mustCreate(t, m, models.TaskSpec{ID: "consumer", Priority: 1, DependsOn: []string{"producer"}, Input: "@result:producer"})

	claim(t, m, "producer")
	if err := m.CompleteTask("producer", "artifact"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	consumer := claim(t, m, "consumer")
	if consumer.Input != "artifact" {
		t.Errorf("consumer input = %q, want %q", consumer.Input, "artifact")
	}
}

func TestCompleteTaskInvalidStates(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})

	// Ready, never claimed.
	if err := m.CompleteTask("a", ""); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("complete ready task: err = %v, want ErrInvalidTransition", err)
	}
	if err := m.CompleteTask("ghost", ""); !errors.Is(err, models.ErrUnknownTask) {
		t.Errorf("complete unknown task: err = %v, want ErrUnknownTask", err)
	}

	claim(t, m, "a")
	if err := m.CompleteTask("a", ""); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if err := m.CompleteTask("a", ""); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("complete succeeded task: err = %v, want ErrInvalidTransition", err)
	}
}

func TestFailTaskCascades(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "A", Priority: 1})
	mustCreate(t, m, models.TaskSpec{ID: "D", Priority: 1, DependsOn: []string{"A"}})
	mustCreate(t, m, models.TaskSpec{ID: "E", Priority: 1, DependsOn: []string{"D"}})

	claim(t, m, "A")
	if err := m.FailTask("A", errors.New("disk on fire")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}

	a, _ := m.GetTask("A")
	if a.Status != models.TaskStatusFailed || a.Error != "disk on fire" {
		t.Errorf("A = %s %q", a.Status, a.Error)
	}
	for _, id := range []string{"D", "E"} {
		task, _ := m.GetTask(id)
		if task.Status != models.TaskStatusFailed {
			t.Errorf("%s status = %s, want failed (cascade)", id, task.Status)
		}
		if !strings.HasPrefix(task.Error, "dependency failed: ") {
			t.Errorf("%s error = %q", id, task.Error)
		}
	}
	// Cascaded tasks never reach the queue.
	if m.QueueLen() != 0 {
		t.Errorf("QueueLen = %d, want 0", m.QueueLen())
	}
	if next := m.GetNextTask(); next != nil {
		t.Errorf("claimed cascade-failed task %s", next.ID)
	}
}

func TestCancelReadyTask(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})

	if err := m.CancelTask("a"); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	task, _ := m.GetTask("a")
	if task.Status != models.TaskStatusCancelled {
		t.Errorf("status = %s, want cancelled", task.Status)
	}
	if next := m.GetNextTask(); next != nil {
		t.Errorf("claimed cancelled task %s", next.ID)
	}
}

func TestCancelProcessingTask(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})
	claim(t, m, "a")

	if err := m.CancelTask("a"); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	// The executor still holds the task; its late completion is rejected.
	if err := m.CompleteTask("a", "late"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("late complete: err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelTerminalTask(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})
	claim(t, m, "a")
	if err := m.CompleteTask("a", ""); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if err := m.CancelTask("a"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("cancel succeeded task: err = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdatePriorityReordersQueue(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "slow", Priority: 1})
	mustCreate(t, m, models.TaskSpec{ID: "urgent", Priority: 10})

	if err := m.UpdatePriority("urgent", 0.5); err != nil {
		t.Fatalf("UpdatePriority: %v", err)
	}
	claim(t, m, "urgent")
	claim(t, m, "slow")
}

func TestUpdatePriorityPendingTask(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})
	mustCreate(t, m, models.TaskSpec{ID: "b", Priority: 5, DependsOn: []string{"a"}})
	mustCreate(t, m, models.TaskSpec{ID: "c", Priority: 2, DependsOn: []string{"a"}})

	if err := m.UpdatePriority("b", 1); err != nil {
		t.Fatalf("UpdatePriority: %v", err)
	}

	claim(t, m, "a")
	if err := m.CompleteTask("a", ""); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	// b was promoted with its updated priority and now beats c.
	claim(t, m, "b")
	claim(t, m, "c")
}

func TestUpdatePriorityProcessingTask(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})
	claim(t, m, "a")
	if err := m.UpdatePriority("a", 9); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestDecomposeParallelMapRoundTrip(t *testing.T) {
	m := newEngineManager(t)
	mustCreate(t, m, models.TaskSpec{
		ID:       "letters",
		Priority: 1,
		Input:    `[1,2,3]`,
		Metadata: map[string]string{
			models.MetaStrategy:  "parallel_map",
			models.MetaSynthesis: "concatenate",
		},
	})

	claim(t, m, "letters")
	ids, err := m.Decompose(context.Background(), "letters")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	want := []string{"letters.1", "letters.2", "letters.3"}
	if len(ids) != len(want) {
		t.Fatalf("subtask ids = %v, want %v", ids, want)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("subtask ids = %v, want %v", ids, want)
		}
	}

	outputs := map[string]string{"1": "a", "2": "b", "3": "c"}
	for range want {
		sub := m.GetNextTask()
		if sub == nil {
			t.Fatal("expected a ready subtask")
		}
		if sub.ParentID() != "letters" {
			t.Errorf("subtask %s parent = %q", sub.ID, sub.ParentID())
		}
		if err := m.CompleteTask(sub.ID, outputs[sub.Input]); err != nil {
			t.Fatalf("CompleteTask(%s): %v", sub.ID, err)
		}
	}

	parent, _ := m.GetTask("letters")
	if parent.Status != models.TaskStatusSucceeded {
		t.Fatalf("parent status = %s (error %q), want succeeded", parent.Status, parent.Error)
	}
	result, err := m.TaskResult("letters")
	if err != nil || result != "abc" {
		t.Errorf("parent result = %q, %v, want \"abc\"", result, err)
	}
}

func TestDecomposeSequentialChainsResults(t *testing.T) {
	m := newEngineManager(t)
	mustCreate(t, m, models.TaskSpec{
		ID:       "pipeline",
		Priority: 1,
		Input:    `["extract","transform"]`,
		Metadata: map[string]string{models.MetaStrategy: "sequential"},
	})

	claim(t, m, "pipeline")
	if _, err := m.Decompose(context.Background(), "pipeline"); err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	first := claim(t, m, "pipeline.1")
	if first.Input != "extract" {
		t.Errorf("first step input = %q", first.Input)
	}
	if err := m.CompleteTask("pipeline.1", "rows"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	second := claim(t, m, "pipeline.2")
	if second.Input != "rows" {
		t.Errorf("second step input = %q, want chained %q", second.Input, "rows")
	}
	if err := m.CompleteTask("pipeline.2", "table"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	// No synthesis strategy set; the default concatenation applies.
	result, err := m.TaskResult("pipeline")
	if err != nil || result != "rowstable" {
		t.Errorf("pipeline result = %q, %v", result, err)
	}
}

func TestDecomposeUnknownStrategyFailsParent(t *testing.T) {
	m := newEngineManager(t)
	mustCreate(t, m, models.TaskSpec{
		ID:       "odd",
		Priority: 1,
		Input:    `["x"]`,
		Metadata: map[string]string{models.MetaStrategy: "quantum"},
	})

	claim(t, m, "odd")
	if _, err := m.Decompose(context.Background(), "odd"); err == nil {
		t.Fatal("expected decompose error")
	}
	task, _ := m.GetTask("odd")
	if task.Status != models.TaskStatusFailed {
		t.Errorf("parent status = %s, want failed", task.Status)
	}
}

func TestDecomposeEmptyPlanFailsParent(t *testing.T) {
	m := newEngineManager(t)
	mustCreate(t, m, models.TaskSpec{
		ID:       "hollow",
		Priority: 1,
		Input:    `[]`,
		Metadata: map[string]string{models.MetaStrategy: "parallel_map"},
	})

	claim(t, m, "hollow")
	if _, err := m.Decompose(context.Background(), "hollow"); err == nil {
		t.Fatal("expected decompose error")
	}
	task, _ := m.GetTask("hollow")
	if task.Status != models.TaskStatusFailed {
		t.Errorf("parent status = %s, want failed", task.Status)
	}
}

func TestDecomposeRequiresProcessing(t *testing.T) {
	m := newEngineManager(t)
	mustCreate(t, m, models.TaskSpec{
		ID:       "idle",
		Priority: 1,
		Input:    `["x"]`,
		Metadata: map[string]string{models.MetaStrategy: "parallel_map"},
	})

	if _, err := m.Decompose(context.Background(), "idle"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.Decompose(context.Background(), "ghost"); !errors.Is(err, models.ErrUnknownTask) {
		t.Errorf("err = %v, want ErrUnknownTask", err)
	}
}

func TestSubtaskFailureFailsParent(t *testing.T) {
	m := newEngineManager(t)
	mustCreate(t, m, models.TaskSpec{
		ID:       "batch",
		Priority: 1,
		Input:    `["ok","bad"]`,
		Metadata: map[string]string{models.MetaStrategy: "parallel_map"},
	})

	claim(t, m, "batch")
	if _, err := m.Decompose(context.Background(), "batch"); err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	claim(t, m, "batch.1")
	if err := m.CompleteTask("batch.1", "fine"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	parent, _ := m.GetTask("batch")
	if parent.Status != models.TaskStatusProcessing {
		t.Fatalf("parent left processing early: %s", parent.Status)
	}

	claim(t, m, "batch.2")
	if err := m.FailTask("batch.2", errors.New("element rejected")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}

	parent, _ = m.GetTask("batch")
	if parent.Status != models.TaskStatusFailed {
		t.Errorf("parent status = %s, want failed", parent.Status)
	}
	if !strings.Contains(parent.Error, "batch.2") {
		t.Errorf("parent error = %q, want mention of failed subtask", parent.Error)
	}
}

func TestSubtaskCancellationFailsParent(t *testing.T) {
	m := newEngineManager(t)
	mustCreate(t, m, models.TaskSpec{
		ID:       "batch",
		Priority: 1,
		Input:    `["one","two"]`,
		Metadata: map[string]string{models.MetaStrategy: "parallel_map"},
	})

	claim(t, m, "batch")
	if _, err := m.Decompose(context.Background(), "batch"); err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	if err := m.CancelTask("batch.2"); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	claim(t, m, "batch.1")
	if err := m.CompleteTask("batch.1", "done"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	parent, _ := m.GetTask("batch")
	if parent.Status != models.TaskStatusFailed {
		t.Errorf("parent status = %s, want failed", parent.Status)
	}
}

// memBlobStore is an in-memory BlobStore for threshold tests.
type memBlobStore struct {
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (s *memBlobStore) Put(data []byte) (string, error) {
	ref := fmt.Sprintf("sha256:%x", sha256.Sum256(data))
	s.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *memBlobStore) Get(ref string) ([]byte, error) {
	data, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", ref)
	}
	return data, nil
}

func TestBlobThresholdOffloadsLargePayloads(t *testing.T) {
	store := newMemBlobStore()
	m := newManager(t, WithBlobStore(store, 16))

	small := mustCreate(t, m, models.TaskSpec{ID: "small", Priority: 1, Input: "tiny"})
	if small.Input != "tiny" {
		t.Errorf("small input = %q, want inline", small.Input)
	}

	bigPayload := strings.Repeat("z", 64)
	big := mustCreate(t, m, models.TaskSpec{ID: "big", Priority: 1, Input: bigPayload})
	if !strings.HasPrefix(big.Input, "sha256:") {
		t.Errorf("big input = %q, want blob reference", big.Input)
	}

	claim(t, m, "small")
	claim(t, m, "big")
	bigResult := strings.Repeat("r", 64)
	if err := m.CompleteTask("big", bigResult); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	stored, _ := m.GetTask("big")
	if !strings.HasPrefix(stored.Result, "sha256:") {
		t.Errorf("stored result = %q, want blob reference", stored.Result)
	}
	resolved, err := m.TaskResult("big")
	if err != nil || resolved != bigResult {
		t.Errorf("TaskResult = %q, %v", resolved, err)
	}
}

func TestEvictTask(t *testing.T) {
	m := newManager(t)
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})

	if err := m.EvictTask("a"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("evict ready task: err = %v, want ErrInvalidTransition", err)
	}

	claim(t, m, "a")
	if err := m.CompleteTask("a", ""); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if err := m.EvictTask("a"); err != nil {
		t.Fatalf("EvictTask: %v", err)
	}
	if m.Size() != 0 {
		t.Errorf("Size = %d after evict, want 0", m.Size())
	}
	if _, err := m.GetTask("a"); !errors.Is(err, models.ErrUnknownTask) {
		t.Errorf("GetTask after evict: err = %v, want ErrUnknownTask", err)
	}
}

func TestListTasksCreationOrder(t *testing.T) {
	m := newManager(t)
	for _, id := range []string{"z", "m", "a"} {
		mustCreate(t, m, models.TaskSpec{ID: id, Priority: 1})
	}
	tasks := m.ListTasks()
	if len(tasks) != 3 {
		t.Fatalf("ListTasks len = %d", len(tasks))
	}
	for i, want := range []string{"z", "m", "a"} {
		if tasks[i].ID != want {
			t.Errorf("tasks[%d] = %s, want %s", i, tasks[i].ID, want)
		}
	}
}

func TestLifecycleEvents(t *testing.T) {
	m := newManager(t, WithEventBuffer(16))
	mustCreate(t, m, models.TaskSpec{ID: "a", Priority: 1})
	claim(t, m, "a")
	if err := m.CompleteTask("a", ""); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	want := []EventType{EventTaskCreated, EventTaskReady, EventTaskClaimed, EventTaskSucceeded}
	for _, wt := range want {
		select {
		case evt := <-m.Events():
			if evt.Type != wt {
				t.Errorf("event = %s, want %s", evt.Type, wt)
			}
			if evt.TaskID != "a" {
				t.Errorf("event task = %s, want a", evt.TaskID)
			}
		default:
			t.Fatalf("missing %s event", wt)
		}
	}
}
