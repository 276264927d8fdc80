package tasks

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/samber/lo"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/depgraph"
	"github.com/Kohei-Wada/taskdog-sub001/internal/scheduler"
)

// ListFilter narrows List results. The zero value lists every non-archived
// task.
type ListFilter struct {
	Status       *core.Status
	Tag          string
	ArchivedOnly bool
	// All includes archived tasks alongside active ones.
	All bool
}

// List returns the tasks matching the filter, ascending by id.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*core.Task, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(t *core.Task, _ int) bool {
		switch {
		case filter.ArchivedOnly && !t.Archived:
			return false
		case !filter.ArchivedOnly && !filter.All && t.Archived:
			return false
		}
		if filter.Status != nil && t.Status != *filter.Status {
			return false
		}
		if filter.Tag != "" && !t.HasTag(filter.Tag) {
			return false
		}
		return true
	}), nil
}

// Get returns one task by id.
func (s *Service) Get(ctx context.Context, id int) (*core.Task, error) {
	return s.repo.GetByID(ctx, id)
}

// Detail is the expanded view of one task.
type Detail struct {
	Task       *core.Task   `json:"task"`
	Prereqs    []*core.Task `json:"prereqs,omitempty"`
	Dependents []*core.Task `json:"dependents,omitempty"`
	Children   []*core.Task `json:"children,omitempty"`
	HasNotes   bool         `json:"has_notes"`
}

// Detail resolves the task's relations and reports whether notes exist.
func (s *Service) Detail(ctx context.Context, id int) (*Detail, error) {
	all, index, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := index[id]
	if !ok {
		return nil, core.NewNotFoundError(id)
	}

	d := &Detail{Task: t}
	for _, dep := range t.DependsOn {
		if prereq, ok := index[dep]; ok {
			d.Prereqs = append(d.Prereqs, prereq)
		}
	}
	for _, other := range all {
		if slices.Contains(other.DependsOn, id) {
			d.Dependents = append(d.Dependents, other)
		}
		if other.ParentID == id {
			d.Children = append(d.Children, other)
		}
	}
	if s.notes != nil {
		d.HasNotes = s.notes.Has(id)
	}
	return d, nil
}

// Notes returns the task's notes content and whether any exist.
func (s *Service) Notes(ctx context.Context, id int) (string, bool, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return "", false, err
	}
	if s.notes == nil {
		return "", false, nil
	}
	return s.notes.Read(id)
}

// TopologicalOrder linearizes the given task ids (or every task when none
// are given) so prerequisites come first.
func (s *Service) TopologicalOrder(ctx context.Context, ids ...int) ([]int, error) {
	all, _, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return depgraph.New(all).TopologicalOrder(ids...)
}

// Algorithms lists the registered optimization strategies.
func (s *Service) Algorithms() []scheduler.Metadata {
	return scheduler.Algorithms()
}

// GanttBar is one row of the gantt view: the task with its planned window
// and the per-day hours inside the requested range.
type GanttBar struct {
	Task       *core.Task            `json:"task"`
	Start      core.Date             `json:"start"`
	End        core.Date             `json:"end"`
	DailyHours map[core.Date]float64 `json:"daily_hours,omitempty"`
}

// GanttData is the gantt view over a date range. Bars are grouped so each
// parent is followed by its children.
type GanttData struct {
	From        core.Date             `json:"from"`
	To          core.Date             `json:"to"`
	Bars        []GanttBar            `json:"bars"`
	DailyTotals map[core.Date]float64 `json:"daily_totals,omitempty"`
}

// ganttDefaultDays is the span rendered when the caller gives no end date.
const ganttDefaultDays = 28

// GanttData returns every scheduled task whose planned window intersects
// [from, to]. Zero bounds default to a four-week view from today.
func (s *Service) GanttData(ctx context.Context, from, to core.Date) (*GanttData, error) {
	if from.IsZero() {
		from = core.NewDate(s.now())
	}
	if to.IsZero() {
		to = from.AddDays(ganttDefaultDays - 1)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: gantt range %s..%s is inverted", core.ErrValidation, from, to)
	}

	all, _, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	cal := s.calendar(false)
	data := &GanttData{From: from, To: to, DailyTotals: make(map[core.Date]float64)}
	for _, t := range all {
		if t.Archived || !t.HasSchedule() || t.PlannedEnd.IsZero() {
			continue
		}
		start, end := core.NewDate(t.PlannedStart), core.NewDate(t.PlannedEnd)
		if end.Before(from) || start.After(to) {
			continue
		}
		bar := GanttBar{Task: t, Start: start, End: end}
		for d, hours := range core.WorkloadAllocations(t, cal) {
			if d.Before(from) || d.After(to) {
				continue
			}
			if bar.DailyHours == nil {
				bar.DailyHours = make(map[core.Date]float64)
			}
			bar.DailyHours[d] = hours
			if t.ShouldCountInWorkload() {
				data.DailyTotals[d] += hours
			}
		}
		data.Bars = append(data.Bars, bar)
	}
	if len(data.DailyTotals) == 0 {
		data.DailyTotals = nil
	}
	data.Bars = groupBars(data.Bars)
	return data, nil
}

// groupBars orders bars so each parent precedes its children, ascending by
// id within every level. Bars whose parent is not part of the view stay top
// level.
func groupBars(bars []GanttBar) []GanttBar {
	if len(bars) == 0 {
		return bars
	}
	present := make(map[int]struct{}, len(bars))
	for _, b := range bars {
		present[b.Task.ID] = struct{}{}
	}
	children := make(map[int][]GanttBar)
	var roots []GanttBar
	for _, b := range bars {
		parent := b.Task.ParentID
		if parent != 0 {
			if _, ok := present[parent]; ok {
				children[parent] = append(children[parent], b)
				continue
			}
		}
		roots = append(roots, b)
	}
	byID := func(a, b GanttBar) int { return a.Task.ID - b.Task.ID }
	slices.SortFunc(roots, byID)
	for id := range children {
		slices.SortFunc(children[id], byID)
	}

	out := make([]GanttBar, 0, len(bars))
	var walk func(b GanttBar)
	walk = func(b GanttBar) {
		out = append(out, b)
		for _, c := range children[b.Task.ID] {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return out
}

// StatusCounts breaks a task population down by lifecycle phase.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Canceled   int `json:"canceled"`
}

func (c *StatusCounts) add(status core.Status) {
	switch status {
	case core.StatusPending:
		c.Pending++
	case core.StatusInProgress:
		c.InProgress++
	case core.StatusCompleted:
		c.Completed++
	case core.StatusCanceled:
		c.Canceled++
	}
}

// Total sums all phases.
func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Completed + c.Canceled
}

// TagStat aggregates the tasks carrying one tag.
type TagStat struct {
	Tag            string       `json:"tag"`
	Counts         StatusCounts `json:"counts"`
	EstimatedHours float64      `json:"estimated_hours"`
	ActualHours    float64      `json:"actual_hours"`
}

// TagStatistics aggregates non-archived tasks per tag, sorted by tag. A
// task carrying several tags counts toward each of them.
func (s *Service) TagStatistics(ctx context.Context) ([]TagStat, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	byTag := make(map[string]*TagStat)
	for _, t := range all {
		if t.Archived {
			continue
		}
		for _, tag := range t.Tags {
			stat, ok := byTag[tag]
			if !ok {
				stat = &TagStat{Tag: tag}
				byTag[tag] = stat
			}
			stat.Counts.add(t.Status)
			stat.EstimatedHours += t.EstimatedDuration
			stat.ActualHours += t.SpentHours()
		}
	}

	stats := make([]TagStat, 0, len(byTag))
	for _, stat := range byTag {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Tag < stats[j].Tag })
	return stats, nil
}

// Statistics summarizes activity over a period.
type Statistics struct {
	Period         string                `json:"period"`
	From           core.Date             `json:"from,omitempty"`
	To             core.Date             `json:"to"`
	Counts         StatusCounts          `json:"counts"`
	TotalTasks     int                   `json:"total_tasks"`
	CompletionRate float64               `json:"completion_rate"`
	EstimatedHours float64               `json:"estimated_hours"`
	ActualHours    float64               `json:"actual_hours"`
	DailyActual    map[core.Date]float64 `json:"daily_actual,omitempty"`
}

// Statistics aggregates non-archived tasks over period "7d", "30d", or
// "all". For bounded periods a task counts when it was created, started,
// finished, or had hours logged inside the window; actual hours and the
// daily series are clipped to the window.
func (s *Service) Statistics(ctx context.Context, period string) (*Statistics, error) {
	days, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}

	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	today := core.NewDate(s.now())
	stats := &Statistics{Period: period, To: today}
	var from core.Date
	if days > 0 {
		from = today.AddDays(-(days - 1))
		stats.From = from
	}

	for _, t := range all {
		if t.Archived {
			continue
		}
		if days > 0 && !activeInWindow(t, from, today) {
			continue
		}
		stats.Counts.add(t.Status)
		stats.EstimatedHours += t.EstimatedDuration
		for d, hours := range t.ActualDailyHours {
			if days > 0 && (d.Before(from) || d.After(today)) {
				continue
			}
			stats.ActualHours += hours
			if stats.DailyActual == nil {
				stats.DailyActual = make(map[core.Date]float64)
			}
			stats.DailyActual[d] += hours
		}
	}
	stats.TotalTasks = stats.Counts.Total()
	if stats.TotalTasks > 0 {
		stats.CompletionRate = float64(stats.Counts.Completed) / float64(stats.TotalTasks)
	}
	return stats, nil
}

func parsePeriod(period string) (int, error) {
	switch period {
	case "7d":
		return 7, nil
	case "30d":
		return 30, nil
	case "all", "":
		return 0, nil
	}
	return 0, fmt.Errorf("%w: unknown period %q (want 7d, 30d, or all)", core.ErrValidation, period)
}

// activeInWindow reports whether the task had any activity inside [from, to]:
// creation, an actual start or end, or logged hours.
func activeInWindow(t *core.Task, from, to core.Date) bool {
	inRange := func(d core.Date) bool {
		return !d.IsZero() && !d.Before(from) && !d.After(to)
	}
	if inRange(core.NewDate(t.CreatedAt)) {
		return true
	}
	if !t.ActualStart.IsZero() && inRange(core.NewDate(t.ActualStart)) {
		return true
	}
	if !t.ActualEnd.IsZero() && inRange(core.NewDate(t.ActualEnd)) {
		return true
	}
	for d := range t.ActualDailyHours {
		if inRange(d) {
			return true
		}
	}
	return false
}
