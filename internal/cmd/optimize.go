package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

// Optimize returns the command that runs one optimization pass from the
// command line.
func Optimize() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "optimize [task-id...] [flags]",
			Short: "Assign planned dates and daily hours to tasks",
			Long: `Run the schedule optimizer.

Without arguments every schedulable task is targeted; with task ids only
those tasks are rescheduled and everything else keeps its reservations.
Per-task placement failures are reported in the summary, not as command
errors.

Example:
  taskdog optimize --algorithm=balanced --start-date=2025-01-06
  taskdog optimize 3 7 --force
`,
		}, optimizeFlags, runOptimize,
	)
}

var optimizeFlags = []commandLineFlag{algorithmFlag, startDateFlag, maxHoursFlag, forceFlag, allDaysFlag}

func runOptimize(ctx *Context, args []string) error {
	req := tasks.OptimizeRequest{}
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return fmt.Errorf("%w: invalid task id %q", core.ErrValidation, arg)
		}
		req.TaskIDs = append(req.TaskIDs, id)
	}

	req.Algorithm, _ = ctx.Command.Flags().GetString("algorithm")
	if raw, _ := ctx.Command.Flags().GetString("start-date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return err
		}
		req.StartDate = d
	}
	if raw, _ := ctx.Command.Flags().GetString("max-hours"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			return fmt.Errorf("%w: invalid max-hours %q", core.ErrValidation, raw)
		}
		req.MaxHoursPerDay = hours
	}
	req.ForceOverride, _ = ctx.Command.Flags().GetBool("force")
	req.IncludeAllDays, _ = ctx.Command.Flags().GetBool("all-days")

	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := ctx.NewService(store, nil, nil, nil)

	result, err := svc.Optimize(ctx, req, events.Source{})
	if err != nil {
		return err
	}

	printOptimizeResult(result)
	return nil
}

func printOptimizeResult(result *tasks.OptimizeResult) {
	summary := result.Summary
	rows := [][2]string{
		{"Algorithm", result.Algorithm},
		{"Scheduled", strconv.Itoa(summary.ScheduledCount)},
		{"Failed", strconv.Itoa(summary.FailedCount)},
		{"Total hours", fmt.Sprintf("%.1f", summary.TotalHours)},
	}
	if !summary.StartDate.IsZero() {
		rows = append(rows, [2]string{"Range", summary.StartDate.String() + " .. " + summary.EndDate.String()})
	}
	fmt.Println(renderKV(rows))

	if len(result.Scheduled) > 0 {
		fmt.Println(renderTaskTable(result.Scheduled))
	}
	if len(result.DailyTotals) > 0 {
		fmt.Println(renderAllocations(result.DailyTotals))
	}

	for _, failure := range result.Failed {
		fmt.Println(color.RedString("✗ task %d (%s): %s", failure.TaskID, failure.Name, failure.Reason))
	}
	for _, d := range summary.OverloadedDays {
		fmt.Println(color.YellowString("⚠ %s is over capacity", d))
	}
}
