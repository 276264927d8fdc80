package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Kohei-Wada/taskdog-sub001/internal/build"
)

var rootCmd = &cobra.Command{
	Use:   build.Slug,
	Short: "Taskdog is a personal task planner with a schedule optimizer",
	Long: `Taskdog is a personal task planner built around a schedule optimizer.

It keeps tasks with estimates, deadlines, and dependencies, and assigns
per-day hour allocations under daily capacity using a pluggable strategy
(greedy, balanced, backward, round_robin). The server exposes a REST API
and a WebSocket event stream that fans every change out to connected
clients.
`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(Server())
	rootCmd.AddCommand(Optimize())
	rootCmd.AddCommand(List())
	rootCmd.AddCommand(Stats())
	rootCmd.AddCommand(Version())
}
