package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// Stats returns the command that prints activity statistics.
func Stats() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "stats [flags]",
			Short: "Show task statistics",
			Long: `Summarize activity over a period.

For bounded periods a task counts when it was created, started, finished,
or had hours logged inside the window. Also prints per-tag aggregates.

Example:
  taskdog stats --period=30d
`,
			Args: cobra.NoArgs,
		}, statsFlags, runStats,
	)
}

var statsFlags = []commandLineFlag{periodFlag}

func runStats(ctx *Context, _ []string) error {
	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := ctx.NewService(store, nil, nil, nil)

	period, _ := ctx.Command.Flags().GetString("period")
	stats, err := svc.Statistics(ctx, period)
	if err != nil {
		return err
	}

	window := stats.To.String()
	if !stats.From.IsZero() {
		window = stats.From.String() + " .. " + stats.To.String()
	}
	fmt.Println(renderKV([][2]string{
		{"Period", stats.Period},
		{"Window", window},
		{"Tasks", strconv.Itoa(stats.TotalTasks)},
		{"Pending", strconv.Itoa(stats.Counts.Pending)},
		{"In progress", strconv.Itoa(stats.Counts.InProgress)},
		{"Completed", strconv.Itoa(stats.Counts.Completed)},
		{"Canceled", strconv.Itoa(stats.Counts.Canceled)},
		{"Completion rate", fmt.Sprintf("%.0f%%", stats.CompletionRate*100)},
		{"Estimated hours", fmt.Sprintf("%.1f", stats.EstimatedHours)},
		{"Actual hours", fmt.Sprintf("%.1f", stats.ActualHours)},
	}))

	if len(stats.DailyActual) > 0 {
		fmt.Println(renderAllocations(stats.DailyActual))
	}

	tagStats, err := svc.TagStatistics(ctx)
	if err != nil {
		return err
	}
	if len(tagStats) == 0 {
		return nil
	}

	w := table.NewWriter()
	w.AppendHeader(table.Row{"Tag", "Tasks", "Completed", "Est", "Actual"})
	for _, ts := range tagStats {
		w.AppendRow(table.Row{
			ts.Tag,
			ts.Counts.Total(),
			ts.Counts.Completed,
			fmt.Sprintf("%.1f", ts.EstimatedHours),
			fmt.Sprintf("%.1f", ts.ActualHours),
		})
	}
	fmt.Println(w.Render())
	return nil
}
