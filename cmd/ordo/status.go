package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ordolabs/ordo/internal/config"
	"github.com/ordolabs/ordo/internal/state"
	"github.com/ordolabs/ordo/pkg/models"
)

var statusDBPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted task graph state",
	Long: `Display the state of the last persisted task graph run.

Shows task counts per status and the tasks themselves in creation
order, with errors for failed tasks.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDBPath, "db", "", "State database path (defaults to config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.DBPath()
	if statusDBPath != "" {
		dbPath = statusDBPath
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No persisted state. Run 'ordo run <taskfile>' first.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state db: %w", err)
	}

	counts, err := db.CountByStatus()
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}
	if len(counts) == 0 {
		fmt.Println("No tasks recorded.")
		return nil
	}

	total := 0
	for _, status := range []models.TaskStatus{
		models.TaskStatusPending,
		models.TaskStatusReady,
		models.TaskStatusProcessing,
		models.TaskStatusSucceeded,
		models.TaskStatusFailed,
		models.TaskStatusCancelled,
	} {
		n := counts[status]
		total += n
		if n > 0 {
			fmt.Printf("%s %d\n", statusLabel(status), n)
		}
	}
	fmt.Printf("%-10s %d\n", "total", total)

	tasks, err := db.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	fmt.Println()
	for _, task := range tasks {
		fmt.Printf("%s  %s", statusLabel(task.Status), task.ID)
		if task.Status == models.TaskStatusFailed && task.Error != "" {
			fmt.Printf("  %s", color.RedString(truncate(task.Error, 72)))
		}
		fmt.Println()
	}
	return nil
}
