package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ordolabs/ordo/internal/blob"
	"github.com/ordolabs/ordo/internal/config"
	"github.com/ordolabs/ordo/internal/decompose"
	"github.com/ordolabs/ordo/internal/executor"
	"github.com/ordolabs/ordo/internal/llm"
	"github.com/ordolabs/ordo/internal/manager"
	"github.com/ordolabs/ordo/internal/state"
	"github.com/ordolabs/ordo/internal/synthesize"
	"github.com/ordolabs/ordo/internal/taskfile"
	"github.com/ordolabs/ordo/pkg/models"
)

var (
	runWorkers int
	runWatch   bool
	runEcho    bool
	runDBPath  string
)

var runCmd = &cobra.Command{
	Use:   "run <taskfile>",
	Short: "Execute a task graph from a YAML file",
	Long: `Execute a task graph defined in a YAML task file.

Tasks are registered in dependency order and run by a worker pool.
Tasks whose metadata names a decomposition strategy are split into
subtasks; their results are synthesized back into the parent when the
last subtask finishes.

Leaf tasks are sent to the configured model by default. Use --echo to
run leaf tasks as pass-throughs of their input, which needs no API
access and is useful for exercising graph structure.

With --watch, ordo re-executes the graph whenever the task file
changes, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskGraph,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Worker count (defaults to config)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Re-run when the task file changes")
	runCmd.Flags().BoolVar(&runEcho, "echo", false, "Run leaf tasks as input pass-throughs (no model calls)")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "State database path (defaults to config)")
}

func runTaskGraph(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := args[0]
	if err := executeFile(ctx, cfg, path); err != nil {
		return err
	}
	if !runWatch {
		return nil
	}
	return watchAndRerun(ctx, cfg, path)
}

// executeFile runs one full pass over the task file: register, drain,
// persist, report.
func executeFile(ctx context.Context, cfg *config.Config, path string) error {
	specs, err := taskfile.Load(path)
	if err != nil {
		return err
	}

	store, err := blob.NewStore(cfg.BlobDir())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	opts := []manager.Option{
		manager.WithBlobStore(store, cfg.Blob.InlineThreshold),
	}
	if cfg.Debug.LogPath != "" {
		logger, err := manager.NewDebugLogger(cfg.Debug.LogPath)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		opts = append(opts, manager.WithLogger(logger))
	}

	decomposer := decompose.NewEngine()
	synthesizer := synthesize.NewEngine()
	handler := echoHandler

	if !runEcho {
		client, err := llm.NewClient(llm.ClientConfig{
			Model:         cfg.Anthropic.Model,
			APIKey:        cfg.Anthropic.APIKey,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			return fmt.Errorf("create model client: %w", err)
		}
		decomposer.Register(decompose.NewModel(client))
		synthesizer.Register(synthesize.NewSummarize(client))
		handler = modelHandler(client)
	}
	opts = append(opts, manager.WithDecomposer(decomposer), manager.WithSynthesizer(synthesizer))

	mgr := manager.New(opts...)
	defer mgr.Close()

	for _, spec := range specs {
		if _, err := mgr.CreateTask(spec); err != nil {
			return fmt.Errorf("register task: %w", err)
		}
	}

	workers := cfg.Executor.Workers
	if runWorkers > 0 {
		workers = runWorkers
	}
	pool := executor.NewPool(mgr, handler, executor.Config{
		Workers:      workers,
		PollInterval: cfg.Executor.PollInterval,
	})
	if err := pool.Drain(ctx); err != nil {
		return err
	}

	tasks := mgr.ListTasks()
	if err := persistSnapshot(cfg, tasks); err != nil {
		return err
	}
	printSummary(mgr, tasks)
	return nil
}

// echoHandler completes leaf tasks with their own input.
func echoHandler(_ context.Context, task *models.Task) (string, error) {
	return task.Input, nil
}

// modelHandler completes leaf tasks by sending their input as a prompt.
func modelHandler(client *llm.Client) executor.Handler {
	return func(ctx context.Context, task *models.Task) (string, error) {
		return client.Complete(ctx, task.Input)
	}
}

func persistSnapshot(cfg *config.Config, tasks []*models.Task) error {
	dbPath := cfg.DBPath()
	if runDBPath != "" {
		dbPath = runDBPath
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state db: %w", err)
	}
	if err := db.SaveSnapshot(tasks); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func printSummary(mgr *manager.Manager, tasks []*models.Task) {
	for _, task := range tasks {
		fmt.Printf("%s  %s", statusLabel(task.Status), task.ID)
		switch task.Status {
		case models.TaskStatusSucceeded:
			if result, err := mgr.TaskResult(task.ID); err == nil && result != "" {
				fmt.Printf("  %s", truncate(result, 72))
			}
		case models.TaskStatusFailed:
			fmt.Printf("  %s", truncate(task.Error, 72))
		}
		fmt.Println()
	}
}

func statusLabel(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusSucceeded:
		return color.GreenString("%-10s", status)
	case models.TaskStatusFailed:
		return color.RedString("%-10s", status)
	case models.TaskStatusCancelled:
		return color.YellowString("%-10s", status)
	default:
		return fmt.Sprintf("%-10s", status)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// watchAndRerun blocks, re-executing the task file on every write until
// the context is cancelled.
func watchAndRerun(ctx context.Context, cfg *config.Config, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors typically replace the file, which
	// would drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fmt.Printf("watching %s\n", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			evAbs, err := filepath.Abs(event.Name)
			if err != nil || evAbs != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			fmt.Printf("task file changed, re-running\n")
			if err := executeFile(ctx, cfg, path); err != nil {
				fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
