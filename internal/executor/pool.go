// Package executor runs a pool of workers that pull ready tasks from a
// manager and execute them.
package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ordolabs/ordo/internal/manager"
	"github.com/ordolabs/ordo/pkg/models"
)

// Handler executes a leaf task and returns its result payload.
type Handler func(ctx context.Context, task *models.Task) (string, error)

// Config contains configuration options for the Pool.
type Config struct {
	// Workers is the number of concurrent workers. Defaults to 4.
	Workers int
	// PollInterval is how long an idle worker waits before checking
	// for work again. Defaults to 100ms.
	PollInterval time.Duration
}

// Pool manages multiple concurrent task workers against a single
// manager. Tasks carrying a decomposition strategy are split via the
// manager; everything else is handed to the configured Handler.
type Pool struct {
	mgr     *manager.Manager
	handler Handler
	cfg     Config

	// inflight counts workers that are between claiming a task and
	// finishing it. Used to detect quiescence in Drain.
	inflight atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a new Pool driving the given manager.
func NewPool(mgr *manager.Manager, handler Handler, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		mgr:     mgr,
		handler: handler,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines. Calling Start more than once
// is a no-op.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.cfg.Workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop signals all workers to exit and waits for them to finish any
// in-flight task.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}

// Drain starts the pool and blocks until the graph is quiescent: the
// ready queue is empty and no worker holds a task. Tasks still pending
// on unsatisfiable dependencies do not prevent quiescence. The pool is
// stopped before Drain returns.
func (p *Pool) Drain(ctx context.Context) error {
	p.Start()
	defer p.Stop()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("draining task graph: %w", ctx.Err())
		case <-ticker.C:
			if p.inflight.Load() == 0 && p.mgr.QueueLen() == 0 {
				return nil
			}
		}
	}
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int {
	return p.cfg.Workers
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		p.inflight.Add(1)
		task := p.mgr.GetNextTask()
		if task == nil {
			p.inflight.Add(-1)
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.execute(task)
		p.inflight.Add(-1)
	}
}

// execute runs a single claimed task to a terminal state.
func (p *Pool) execute(task *models.Task) {
	if task.Meta(models.MetaStrategy) != "" {
		// Decompose fails the task itself on engine errors.
		_, _ = p.mgr.Decompose(p.ctx, task.ID)
		return
	}

	result, err := p.handler(p.ctx, task)
	if err != nil {
		_ = p.mgr.FailTask(task.ID, err)
		return
	}
	_ = p.mgr.CompleteTask(task.ID, result)
}
