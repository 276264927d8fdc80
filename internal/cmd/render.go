package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// Status symbols using Unicode characters for visual clarity.
const (
	symbolPending    = "○"
	symbolInProgress = "●"
	symbolCompleted  = "✓"
	symbolCanceled   = "✗"
)

func statusSymbol(s core.Status) string {
	switch s {
	case core.StatusInProgress:
		return symbolInProgress
	case core.StatusCompleted:
		return symbolCompleted
	case core.StatusCanceled:
		return symbolCanceled
	default:
		return symbolPending
	}
}

func statusCell(s core.Status) string {
	text := fmt.Sprintf("%s %s", statusSymbol(s), s)
	switch s {
	case core.StatusInProgress:
		return color.CyanString(text)
	case core.StatusCompleted:
		return color.GreenString(text)
	case core.StatusCanceled:
		return color.RedString(text)
	default:
		return text
	}
}

func priorityCell(p int) string {
	switch {
	case p >= 70:
		return color.RedString("%d", p)
	case p >= 30:
		return color.YellowString("%d", p)
	default:
		return fmt.Sprintf("%d", p)
	}
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatHours(h float64) string {
	if h == 0 {
		return ""
	}
	return fmt.Sprintf("%gh", h)
}

var taskHeader = table.Row{"ID", "Name", "Status", "Pri", "Est", "Deadline", "Planned", "Tags"}

func renderTaskTable(ts []*core.Task) string {
	w := table.NewWriter()
	w.AppendHeader(taskHeader)
	for _, t := range ts {
		planned := ""
		if t.HasSchedule() {
			planned = formatDay(t.PlannedStart) + " .. " + formatDay(t.PlannedEnd)
			if t.IsFixed {
				planned += " (fixed)"
			}
		}
		w.AppendRow(table.Row{
			t.ID,
			t.Name,
			statusCell(t.Status),
			priorityCell(t.Priority),
			formatHours(t.EstimatedDuration),
			formatDay(t.Deadline),
			planned,
			strings.Join(t.Tags, ", "),
		})
	}
	return w.Render()
}

func renderAllocations(allocations map[core.Date]float64) string {
	w := table.NewWriter()
	w.AppendHeader(table.Row{"Date", "Hours"})
	for _, d := range core.SortedDates(allocations) {
		w.AppendRow(table.Row{d.String(), fmt.Sprintf("%.1f", allocations[d])})
	}
	return w.Render()
}

func renderKV(rows [][2]string) string {
	w := table.NewWriter()
	for _, row := range rows {
		w.AppendRow(table.Row{row[0], row[1]})
	}
	return w.Render()
}
