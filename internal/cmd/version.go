package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Kohei-Wada/taskdog-sub001/internal/build"
)

// Version returns the command that prints the binary version.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the binary version",
		Long:  `Print the current version of the Taskdog executable.`,
		Run: func(_ *cobra.Command, _ []string) {
			println(build.Version)
		},
	}
}
