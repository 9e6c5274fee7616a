package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ordolabs/ordo/internal/deps"
	"github.com/ordolabs/ordo/internal/fibheap"
	"github.com/ordolabs/ordo/pkg/models"
)

const (
	// resultRefPrefix marks a task input that should be filled from
	// another task's result when the task becomes ready.
	resultRefPrefix = "@result:"
	// blobRefPrefix marks a payload held in the external blob store.
	blobRefPrefix = "sha256:"
)

// BlobStore is the storage collaborator for large payloads. The manager
// stores only references in task inputs and results; the bytes are owned
// by the store.
type BlobStore interface {
	Put(data []byte) (ref string, err error)
	Get(ref string) ([]byte, error)
}

// DecomposeEngine produces subtask specifications for a task.
type DecomposeEngine interface {
	Decompose(ctx context.Context, task *models.Task) ([]models.TaskSpec, error)
}

// SynthesisEngine aggregates completed subtask results into a parent result.
type SynthesisEngine interface {
	Synthesize(ctx context.Context, parent *models.Task, results []models.SubtaskResult) (string, error)
}

// Manager owns the canonical task registry and composes the dependency
// manager and the ready queue. It is an explicitly constructed instance;
// independent managers never share state.
//
// All mutating operations serialize through a single mutex. GetNextTask
// never blocks waiting for work; wait-for-work policy belongs to the
// caller.
type Manager struct {
	mu sync.Mutex

	registry map[string]*models.Task
	specs    map[string]models.TaskSpec
	// children maps a decomposed parent to its subtask ids in creation order.
	children map[string][]string
	queue    *fibheap.Heap
	deps     *deps.Manager
	seq      uint64

	blob            BlobStore
	inlineThreshold int
	decomposer      DecomposeEngine
	synthesizer     SynthesisEngine

	clock  func() time.Time
	newID  func() string
	logger *DebugLogger
	events chan Event
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithBlobStore sets the blob store and the inline payload threshold in
// bytes. Payloads longer than the threshold are stored as references.
func WithBlobStore(store BlobStore, inlineThreshold int) Option {
	return func(m *Manager) {
		m.blob = store
		m.inlineThreshold = inlineThreshold
	}
}

// WithDecomposer sets the decomposition engine.
func WithDecomposer(d DecomposeEngine) Option {
	return func(m *Manager) { m.decomposer = d }
}

// WithSynthesizer sets the synthesis engine.
func WithSynthesizer(s SynthesisEngine) Option {
	return func(m *Manager) { m.synthesizer = s }
}

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithIDGenerator overrides the id allocator. Used by tests.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithEventBuffer sets the lifecycle event channel capacity.
func WithEventBuffer(n int) Option {
	return func(m *Manager) { m.events = make(chan Event, n) }
}

// New creates a Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		registry: make(map[string]*models.Task),
		specs:    make(map[string]models.TaskSpec),
		children: make(map[string][]string),
		queue:    fibheap.New(),
		deps:     deps.NewManager(),
		clock:    time.Now,
		newID:    func() string { return uuid.New().String()[:8] },
		events:   make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close closes the event channel and the logger.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events != nil {
		close(m.events)
		m.events = nil
	}
	return m.logger.Close()
}

// Graph exposes the dependency DAG for structural queries.
func (m *Manager) Graph() *deps.Manager {
	return m.deps
}

// CreateTask registers a new task. If the spec carries no id, one is
// allocated. Tasks with no (or already-satisfied) dependencies are
// promoted to ready and queued immediately.
//
// Creation is idempotent: re-creating an existing id with an identical
// spec returns the existing task; a materially different spec fails with
// models.ErrDuplicateTask.
func (m *Manager) CreateTask(spec models.TaskSpec) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(spec)
}

func (m *Manager) createLocked(spec models.TaskSpec) (*models.Task, error) {
	if spec.ID != "" {
		if existing, ok := m.registry[spec.ID]; ok {
			if m.specs[spec.ID].Equal(spec) {
				m.logf("[manager] CreateTask %s: idempotent no-op", spec.ID)
				return existing.Clone(), nil
			}
			return nil, fmt.Errorf("create %s: %w", spec.ID, models.ErrDuplicateTask)
		}
	} else {
		spec.ID = m.newID()
		for _, taken := m.registry[spec.ID]; taken; _, taken = m.registry[spec.ID] {
			spec.ID = m.newID()
		}
	}

	for _, depID := range spec.DependsOn {
		if _, ok := m.registry[depID]; !ok {
			return nil, fmt.Errorf("create %s: dependency %s: %w", spec.ID, depID, models.ErrUnknownTask)
		}
	}

	if err := m.deps.Register(spec.ID, spec.DependsOn); err != nil {
		return nil, fmt.Errorf("create %s: %w", spec.ID, err)
	}

	input, err := m.storePayload(spec.Input)
	if err != nil {
		return nil, fmt.Errorf("create %s: store input: %w", spec.ID, err)
	}

	task := &models.Task{
		ID:        spec.ID,
		Status:    models.TaskStatusPending,
		Priority:  spec.Priority,
		DependsOn: append([]string(nil), spec.DependsOn...),
		Input:     input,
		CreatedAt: m.clock(),
		Seq:       m.seq,
	}
	m.seq++
	if spec.Metadata != nil {
		task.Metadata = make(map[string]string, len(spec.Metadata))
		for k, v := range spec.Metadata {
			task.Metadata[k] = v
		}
	}

	m.registry[task.ID] = task
	m.specs[task.ID] = spec
	if parentID := task.ParentID(); parentID != "" {
		m.children[parentID] = append(m.children[parentID], task.ID)
	}

	m.logf("[manager] created task %s priority=%v deps=%v", task.ID, task.Priority, task.DependsOn)
	m.emit(EventTaskCreated, task.ID, task.ParentID(), "")

	if m.deps.IsSatisfied(task.ID, m.statusLocked) {
		if err := m.promoteLocked(task); err != nil {
			return nil, err
		}
	}
	return task.Clone(), nil
}

// promoteLocked moves a pending task to ready and queues it.
func (m *Manager) promoteLocked(task *models.Task) error {
	if !task.Status.CanTransition(models.TaskStatusReady) {
		return fmt.Errorf("promote %s from %s: %w", task.ID, task.Status, models.ErrInvalidTransition)
	}

	// Chained inputs are filled at promotion time, when the referenced
	// result is guaranteed to exist.
	if ref, ok := strings.CutPrefix(task.Input, resultRefPrefix); ok {
		if src, exists := m.registry[ref]; exists {
			task.Input = src.Result
		}
	}

	task.Status = models.TaskStatusReady
	if err := m.queue.Insert(task.Priority, task.ID); err != nil {
		return fmt.Errorf("queue %s: %w", task.ID, err)
	}
	m.logf("[manager] task %s ready (priority=%v)", task.ID, task.Priority)
	m.emit(EventTaskReady, task.ID, task.ParentID(), "")
	return nil
}

// GetNextTask pops the highest-priority ready task, transitions it to
// processing, and returns a copy. Returns nil when no task is ready;
// an empty queue is a normal condition, never an error, and the call
// never blocks waiting for work.
func (m *Manager) GetNextTask() *models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		_, id, ok := m.queue.ExtractMin()
		if !ok {
			return nil
		}
		task, exists := m.registry[id]
		if !exists || task.Status != models.TaskStatusReady {
			// Stale queue entry; skip.
			m.logf("[manager] skipping stale queue entry %s", id)
			continue
		}
		task.Status = models.TaskStatusProcessing
		now := m.clock()
		task.StartedAt = &now
		m.logf("[manager] task %s claimed", id)
		m.emit(EventTaskClaimed, id, task.ParentID(), "")
		return task.Clone()
	}
}

// CompleteTask records a successful result for a processing task,
// promotes any dependents whose dependencies are now all met, and, if
// the task was the last outstanding subtask of a decomposed parent,
// synthesizes and completes the parent.
func (m *Manager) CompleteTask(taskID, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.registry[taskID]
	if !ok {
		return fmt.Errorf("complete %s: %w", taskID, models.ErrUnknownTask)
	}
	if !task.Status.CanTransition(models.TaskStatusSucceeded) {
		return fmt.Errorf("complete %s from %s: %w", taskID, task.Status, models.ErrInvalidTransition)
	}
	return m.completeLocked(task, result)
}

func (m *Manager) completeLocked(task *models.Task, result string) error {
	stored, err := m.storePayload(result)
	if err != nil {
		return fmt.Errorf("complete %s: store result: %w", task.ID, err)
	}

	task.Result = stored
	task.Status = models.TaskStatusSucceeded
	now := m.clock()
	task.CompletedAt = &now
	m.logf("[manager] task %s succeeded", task.ID)
	m.emit(EventTaskSucceeded, task.ID, task.ParentID(), "")

	for _, readyID := range m.deps.OnTaskSucceeded(task.ID, m.statusLocked) {
		if err := m.promoteLocked(m.registry[readyID]); err != nil {
			return err
		}
	}

	if parentID := task.ParentID(); parentID != "" {
		m.maybeSynthesizeLocked(parentID)
	}
	return nil
}

// FailTask records a failure for a processing task and cascades the
// failure to its pending transitive dependents.
func (m *Manager) FailTask(taskID string, taskErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.registry[taskID]
	if !ok {
		return fmt.Errorf("fail %s: %w", taskID, models.ErrUnknownTask)
	}
	if !task.Status.CanTransition(models.TaskStatusFailed) {
		return fmt.Errorf("fail %s from %s: %w", taskID, task.Status, models.ErrInvalidTransition)
	}

	msg := "task failed"
	if taskErr != nil {
		msg = taskErr.Error()
	}
	m.failLocked(task, msg)
	return nil
}

// failLocked marks the task failed and cascade-fails its pending
// dependents deterministically. Parents of failed subtasks fail too:
// they can never synthesize.
func (m *Manager) failLocked(task *models.Task, msg string) {
	task.Status = models.TaskStatusFailed
	task.Error = msg
	now := m.clock()
	task.CompletedAt = &now
	m.logf("[manager] task %s failed: %s", task.ID, msg)
	m.emit(EventTaskFailed, task.ID, task.ParentID(), msg)

	for _, depID := range m.deps.OnTaskFailed(task.ID, m.statusLocked) {
		dep := m.registry[depID]
		dep.Status = models.TaskStatusFailed
		dep.Error = "dependency failed: " + task.ID
		ts := m.clock()
		dep.CompletedAt = &ts
		m.logf("[manager] task %s cascade-failed (dependency %s)", depID, task.ID)
		m.emit(EventTaskFailed, depID, dep.ParentID(), dep.Error)
		if parentID := dep.ParentID(); parentID != "" {
			m.maybeSynthesizeLocked(parentID)
		}
	}

	if parentID := task.ParentID(); parentID != "" {
		m.maybeSynthesizeLocked(parentID)
	}
}

// CancelTask cancels a non-terminal task. A ready task is removed from
// the queue; a processing task only has its status flipped, since the
// in-flight executor is outside this core's control. Dependents are not
// cancelled automatically.
func (m *Manager) CancelTask(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.registry[taskID]
	if !ok {
		return fmt.Errorf("cancel %s: %w", taskID, models.ErrUnknownTask)
	}
	if !task.Status.CanTransition(models.TaskStatusCancelled) {
		return fmt.Errorf("cancel %s from %s: %w", taskID, task.Status, models.ErrInvalidTransition)
	}

	if task.Status == models.TaskStatusReady {
		_ = m.queue.Delete(taskID)
	}
	task.Status = models.TaskStatusCancelled
	now := m.clock()
	task.CompletedAt = &now
	m.logf("[manager] task %s cancelled", taskID)
	m.emit(EventTaskCancelled, taskID, task.ParentID(), "")
	return nil
}

// UpdatePriority changes the scheduling key of a pending or ready task.
func (m *Manager) UpdatePriority(taskID string, priority float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.registry[taskID]
	if !ok {
		return fmt.Errorf("update priority %s: %w", taskID, models.ErrUnknownTask)
	}
	switch task.Status {
	case models.TaskStatusPending:
		task.Priority = priority
	case models.TaskStatusReady:
		if err := m.queue.Update(taskID, priority); err != nil {
			return fmt.Errorf("update priority %s: %w", taskID, err)
		}
		task.Priority = priority
	default:
		return fmt.Errorf("update priority %s from %s: %w", taskID, task.Status, models.ErrInvalidTransition)
	}
	return nil
}

// Decompose splits a processing task into subtasks using the configured
// decomposition engine. The strategy call runs outside the manager lock;
// the resulting specs are registered atomically afterwards. A strategy
// failure, or a strategy producing no subtasks, fails the parent rather
// than leaving it stuck in processing.
func (m *Manager) Decompose(ctx context.Context, taskID string) ([]string, error) {
	m.mu.Lock()
	if m.decomposer == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("decompose %s: no engine: %w", taskID, models.ErrStrategyNotFound)
	}
	task, ok := m.registry[taskID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("decompose %s: %w", taskID, models.ErrUnknownTask)
	}
	if task.Status != models.TaskStatusProcessing {
		m.mu.Unlock()
		return nil, fmt.Errorf("decompose %s from %s: %w", taskID, task.Status, models.ErrInvalidTransition)
	}
	snapshot := task.Clone()
	if ref, ok := strings.CutPrefix(snapshot.Input, blobRefPrefix); ok && m.blob != nil {
		data, err := m.blob.Get(blobRefPrefix + ref)
		if err == nil {
			snapshot.Input = string(data)
		}
	}
	m.mu.Unlock()

	specs, err := m.decomposer.Decompose(ctx, snapshot)

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok = m.registry[taskID]
	if !ok || task.Status != models.TaskStatusProcessing {
		return nil, fmt.Errorf("decompose %s: task no longer processing: %w", taskID, models.ErrInvalidTransition)
	}
	if err != nil {
		m.failLocked(task, fmt.Sprintf("decomposition failed: %v", err))
		return nil, fmt.Errorf("decompose %s: %w", taskID, err)
	}
	if len(specs) == 0 {
		m.failLocked(task, "decomposition produced no subtasks")
		return nil, fmt.Errorf("decompose %s: strategy produced no subtasks", taskID)
	}

	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		if spec.Metadata == nil {
			spec.Metadata = make(map[string]string)
		}
		spec.Metadata[models.MetaParentID] = taskID
		sub, err := m.createLocked(spec)
		if err != nil {
			m.failLocked(task, fmt.Sprintf("subtask creation failed: %v", err))
			return nil, fmt.Errorf("decompose %s: create subtask: %w", taskID, err)
		}
		ids = append(ids, sub.ID)
	}

	m.logf("[manager] task %s decomposed into %d subtasks", taskID, len(ids))
	m.emit(EventTaskDecomposed, taskID, "", fmt.Sprintf("%d subtasks", len(ids)))
	return ids, nil
}

// maybeSynthesizeLocked runs synthesis for a decomposed parent once all
// of its subtasks have reached a terminal state. A failed or cancelled
// subtask fails the parent; a synthesis error fails the parent; success
// completes the parent recursively.
func (m *Manager) maybeSynthesizeLocked(parentID string) {
	parent, ok := m.registry[parentID]
	if !ok || parent.Status != models.TaskStatusProcessing {
		return
	}
	childIDs := m.children[parentID]
	if len(childIDs) == 0 {
		return
	}

	results := make([]models.SubtaskResult, 0, len(childIDs))
	for _, childID := range childIDs {
		child, ok := m.registry[childID]
		if !ok {
			return
		}
		switch child.Status {
		case models.TaskStatusSucceeded:
			value, err := m.loadPayload(child.Result)
			if err != nil {
				m.failLocked(parent, fmt.Sprintf("synthesis failed: load result of %s: %v", childID, err))
				return
			}
			results = append(results, models.SubtaskResult{TaskID: childID, Seq: child.Seq, Result: value})
		case models.TaskStatusFailed, models.TaskStatusCancelled:
			m.failLocked(parent, fmt.Sprintf("subtask %s %s", childID, child.Status))
			return
		default:
			// Subtasks still outstanding.
			return
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })

	if m.synthesizer == nil {
		m.failLocked(parent, "no synthesis engine configured")
		return
	}
	result, err := m.synthesizer.Synthesize(context.Background(), parent.Clone(), results)
	if err != nil {
		m.failLocked(parent, fmt.Sprintf("synthesis failed: %v", err))
		return
	}

	m.logf("[manager] task %s synthesized from %d subtasks", parentID, len(results))
	m.emit(EventTaskSynthesized, parentID, "", fmt.Sprintf("%d subtasks", len(results)))
	if err := m.completeLocked(parent, result); err != nil {
		m.failLocked(parent, fmt.Sprintf("record synthesized result: %v", err))
	}
}

// GetTask returns a copy of the task with the given id.
func (m *Manager) GetTask(taskID string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.registry[taskID]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", taskID, models.ErrUnknownTask)
	}
	return task.Clone(), nil
}

// TaskResult returns the result payload of a task with blob references
// resolved.
func (m *Manager) TaskResult(taskID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.registry[taskID]
	if !ok {
		return "", fmt.Errorf("result %s: %w", taskID, models.ErrUnknownTask)
	}
	return m.loadPayload(task.Result)
}

// ListTasks returns copies of every registered task in creation order.
// Completed tasks are retained for auditing; callers evict explicitly
// if memory is a concern.
func (m *Manager) ListTasks() []*models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Task, 0, len(m.registry))
	for _, task := range m.registry {
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Subtasks returns the subtask ids of a decomposed parent in creation order.
func (m *Manager) Subtasks(parentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.children[parentID]...)
}

// EvictTask removes a terminal task from the registry. Non-terminal
// tasks cannot be evicted.
func (m *Manager) EvictTask(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.registry[taskID]
	if !ok {
		return fmt.Errorf("evict %s: %w", taskID, models.ErrUnknownTask)
	}
	if !task.Status.Terminal() {
		return fmt.Errorf("evict %s from %s: %w", taskID, task.Status, models.ErrInvalidTransition)
	}
	delete(m.registry, taskID)
	delete(m.specs, taskID)
	delete(m.children, taskID)
	m.deps.Graph().RemoveNode(taskID)
	return nil
}

// Size returns the number of registered tasks.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registry)
}

// QueueLen returns the number of ready tasks awaiting extraction.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// statusLocked resolves a task's status from the registry. Used as the
// deps.StatusFunc so readiness checks always see current state.
func (m *Manager) statusLocked(taskID string) (models.TaskStatus, bool) {
	task, ok := m.registry[taskID]
	if !ok {
		return "", false
	}
	return task.Status, true
}

// storePayload pushes a payload into the blob store if it exceeds the
// inline threshold, returning the reference; small payloads pass through.
func (m *Manager) storePayload(payload string) (string, error) {
	if m.blob == nil || m.inlineThreshold <= 0 || len(payload) <= m.inlineThreshold {
		return payload, nil
	}
	if strings.HasPrefix(payload, blobRefPrefix) {
		return payload, nil
	}
	ref, err := m.blob.Put([]byte(payload))
	if err != nil {
		return "", err
	}
	m.logf("[manager] stored %d-byte payload as %s", len(payload), ref)
	return ref, nil
}

// loadPayload resolves a blob reference back to its bytes; inline
// payloads pass through.
func (m *Manager) loadPayload(payload string) (string, error) {
	if m.blob == nil || !strings.HasPrefix(payload, blobRefPrefix) {
		return payload, nil
	}
	data, err := m.blob.Get(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
