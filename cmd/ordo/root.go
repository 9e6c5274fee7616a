package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ordo",
	Short: "Task graph orchestration engine",
	Long: `Ordo runs dependency-ordered task graphs with priority scheduling.

Tasks are defined in YAML files as a directed acyclic graph. Ordo
schedules ready tasks by priority, decomposes composite tasks into
subtasks, and synthesizes subtask results back into parent results.

Core capabilities:
- Priority scheduling with deterministic FIFO tie-breaking
- Dependency gating and cascade failure propagation
- Decomposition strategies (sequential, parallel_map, model)
- Result synthesis (concatenate, merge_objects, summarize)
- Large payload offloading to a content-addressed blob store`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
