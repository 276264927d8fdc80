package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

// List returns the command that prints tasks matching a filter.
func List() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "list [flags]",
			Short: "List tasks",
			Long: `Print the tasks in the store as a table.

By default archived tasks are hidden. Filter by status or tag, show
archived tasks only, or include everything.

Example:
  taskdog list --status=in_progress --tag=work
`,
			Args: cobra.NoArgs,
		}, listFlags, runList,
	)
}

var listFlags = []commandLineFlag{statusFlag, tagFlag, archivedFlag, allFlag}

func runList(ctx *Context, _ []string) error {
	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := ctx.NewService(store, nil, nil, nil)

	var filter tasks.ListFilter
	if raw, _ := ctx.Command.Flags().GetString("status"); raw != "" {
		status, err := core.ParseStatus(raw)
		if err != nil {
			return err
		}
		filter.Status = &status
	}
	filter.Tag, _ = ctx.Command.Flags().GetString("tag")
	filter.ArchivedOnly, _ = ctx.Command.Flags().GetBool("archived")
	filter.All, _ = ctx.Command.Flags().GetBool("all")

	list, err := svc.List(ctx, filter)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	fmt.Println(renderTaskTable(list))
	return nil
}
