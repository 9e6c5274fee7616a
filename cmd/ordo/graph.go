package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ordolabs/ordo/internal/taskfile"
)

var graphCmd = &cobra.Command{
	Use:   "graph <taskfile>",
	Short: "Validate a task file and print its execution order",
	Long: `Validate a task file without executing it.

Checks for duplicate ids, unknown dependencies, and cycles, then
prints the tasks in a dependency-safe execution order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := taskfile.Load(args[0])
		if err != nil {
			return err
		}
		for i, spec := range specs {
			line := fmt.Sprintf("%2d. %s (priority %v)", i+1, spec.ID, spec.Priority)
			if len(spec.DependsOn) > 0 {
				line += " after " + strings.Join(spec.DependsOn, ", ")
			}
			fmt.Println(line)
		}
		return nil
	},
}
