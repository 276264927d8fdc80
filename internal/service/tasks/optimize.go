package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/telemetry"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/scheduler"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
)

const hoursEpsilon = 1e-9

// OptimizeRequest selects what to schedule and under which constraints. An
// empty TaskIDs list targets every task; an empty Algorithm uses the
// configured default.
type OptimizeRequest struct {
	TaskIDs        []int     `json:"task_ids,omitempty"`
	Algorithm      string    `json:"algorithm,omitempty"`
	StartDate      core.Date `json:"start_date,omitempty"`
	MaxHoursPerDay float64   `json:"max_hours_per_day,omitempty"`
	ForceOverride  bool      `json:"force_override,omitempty"`
	IncludeAllDays bool      `json:"include_all_days,omitempty"`
}

// TaskFailure reports one task the run could not place.
type TaskFailure struct {
	TaskID int    `json:"task_id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Summary condenses one optimization run.
type Summary struct {
	ScheduledCount int         `json:"scheduled_count"`
	FailedCount    int         `json:"failed_count"`
	TotalHours     float64     `json:"total_hours"`
	StartDate      core.Date   `json:"start_date,omitempty"`
	EndDate        core.Date   `json:"end_date,omitempty"`
	OverloadedDays []core.Date `json:"overloaded_days,omitempty"`
}

// OptimizeResult is the full outcome of one run. DailyAllocations holds the
// hours the run itself placed; DailyTotals is the whole ledger including
// seeded context. BeforeSnapshot maps task id to the planned start it had
// before the run, for tasks that had one.
type OptimizeResult struct {
	RunID            string                `json:"run_id"`
	Algorithm        string                `json:"algorithm"`
	Scheduled        []*core.Task          `json:"scheduled"`
	Failed           []TaskFailure         `json:"failed,omitempty"`
	DailyAllocations map[core.Date]float64 `json:"daily_allocations,omitempty"`
	DailyTotals      map[core.Date]float64 `json:"daily_totals,omitempty"`
	Summary          Summary               `json:"summary"`
	BeforeSnapshot   map[int]time.Time     `json:"before_snapshot,omitempty"`
}

// Optimize runs the named strategy over the selected tasks, persists the new
// schedules in one batch, and announces the run. Per-task placement failures
// are reported in the result, not as errors; structural problems (unknown
// ids, unknown algorithm, nothing schedulable when targets were explicit)
// abort the run.
func (s *Service) Optimize(ctx context.Context, req OptimizeRequest, src events.Source) (*OptimizeResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	started := time.Now()
	algorithm := req.Algorithm
	if algorithm == "" {
		algorithm = s.defaultAlgorithm
	}

	ctx, span := telemetry.Start(ctx, fmt.Sprintf("Optimize: %s", algorithm), trace.WithAttributes(
		attribute.String("optimize.algorithm", algorithm),
		attribute.Bool("optimize.force", req.ForceOverride),
		attribute.Int("optimize.targets", len(req.TaskIDs)),
	))
	defer span.End()

	result, err := s.optimize(ctx, req, algorithm)
	if err != nil {
		span.SetAttributes(attribute.String("optimize.outcome", "error"))
		s.metrics.OptimizeRun(algorithm, "error")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("optimize.outcome", "ok"),
		attribute.String("optimize.run_id", result.RunID),
		attribute.Int("optimize.scheduled", result.Summary.ScheduledCount),
		attribute.Int("optimize.failed", result.Summary.FailedCount),
	)
	s.metrics.OptimizeRun(algorithm, "ok")
	s.metrics.TasksScheduled(result.Summary.ScheduledCount)
	s.metrics.TasksUnschedulable(result.Summary.FailedCount)
	s.metrics.ObserveOptimizeDuration(algorithm, time.Since(started))

	s.publish(ctx, events.TypeScheduleOptimized, src, events.ScheduleOptimizedPayload{
		ScheduledCount: result.Summary.ScheduledCount,
		FailedCount:    result.Summary.FailedCount,
		Algorithm:      algorithm,
	})
	logger.Info(ctx, "Optimization finished",
		"runId", result.RunID,
		"algorithm", algorithm,
		"scheduled", result.Summary.ScheduledCount,
		"failed", result.Summary.FailedCount,
	)
	return result, nil
}

func (s *Service) optimize(ctx context.Context, req OptimizeRequest, algorithm string) (*OptimizeResult, error) {
	all, index, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	before := make(map[int]time.Time)
	for _, t := range all {
		if t.HasSchedule() {
			before[t.ID] = t.PlannedStart
		}
	}

	targets, explicit, err := selectTargets(all, index, req.TaskIDs)
	if err != nil {
		return nil, err
	}

	schedulable, failed, reasons := filterSchedulable(targets, req.ForceOverride, explicit)
	if explicit && len(schedulable) == 0 {
		return nil, &core.NoSchedulableTasksError{TaskIDs: sortedUnique(req.TaskIDs), Reasons: reasons}
	}

	contextTasks := selectContext(all, schedulable, req.ForceOverride)

	cal := s.calendar(req.IncludeAllDays)
	ledger := scheduler.NewLedger(cal)
	ledger.Seed(contextTasks, req.ForceOverride)

	strategy, err := scheduler.Create(algorithm, s.dayStart, s.dayEnd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	capacity := req.MaxHoursPerDay
	if capacity <= 0 {
		capacity = s.maxHoursPerDay
	}
	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = core.NewDate(now)
	}
	params := scheduler.Params{
		StartDate:      startDate,
		MaxHoursPerDay: capacity,
		Calendar:       cal,
		CurrentTime:    now,
		HorizonDays:    s.horizonDays,
	}

	run := strategy.Optimize(schedulable, contextTasks, params, ledger)

	for _, t := range run.Scheduled {
		t.UpdatedAt = now
	}
	if err := s.repo.SaveAll(ctx, run.Scheduled); err != nil {
		return nil, fmt.Errorf("failed to persist schedules: %w", err)
	}

	cleared, err := s.clearOrphans(ctx, schedulable, run, req.ForceOverride, now)
	if err != nil {
		return nil, err
	}

	if err := s.propagateParentPeriods(ctx, all, run.Scheduled, cleared, now); err != nil {
		return nil, err
	}

	failed = append(failed, lo.Map(run.Failures, func(f scheduler.Failure, _ int) TaskFailure {
		return TaskFailure{TaskID: f.Task.ID, Name: f.Task.Name, Reason: f.Reason}
	})...)

	return buildResult(algorithm, run, failed, ledger, capacity, before), nil
}

// selectTargets resolves the requested ids against the snapshot. Every
// explicit id must exist.
func selectTargets(all []*core.Task, index map[int]*core.Task, ids []int) ([]*core.Task, bool, error) {
	if len(ids) == 0 {
		return all, false, nil
	}
	var targets []*core.Task
	var missing []int
	for _, id := range sortedUnique(ids) {
		t, ok := index[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		targets = append(targets, t)
	}
	if len(missing) > 0 {
		return nil, true, core.NewNotFoundError(missing...)
	}
	return targets, true, nil
}

// filterSchedulable splits the targets into the set a strategy may place and
// the per-task refusal reasons. Refusals surface as failures only for
// explicit targets; an implicit run silently skips finished, archived,
// estimate-less, and pinned tasks.
func filterSchedulable(targets []*core.Task, force, explicit bool) ([]*core.Task, []TaskFailure, map[int]string) {
	var schedulable []*core.Task
	var failed []TaskFailure
	reasons := make(map[int]string)
	for _, t := range targets {
		err := t.ValidateSchedulable(force)
		if err == nil {
			schedulable = append(schedulable, t)
			continue
		}
		reason := err.Error()
		var nsErr *core.NotSchedulableError
		if errors.As(err, &nsErr) {
			reason = nsErr.Reason
		}
		reasons[t.ID] = reason
		if explicit {
			failed = append(failed, TaskFailure{TaskID: t.ID, Name: t.Name, Reason: reason})
		}
	}
	return schedulable, failed, reasons
}

// selectContext picks the tasks whose existing schedules constrain the run.
// Anything not being rescheduled still occupies capacity; under a forced
// implicit run only pinned and in-progress work survives seeding anyway.
func selectContext(all, schedulable []*core.Task, force bool) []*core.Task {
	rescheduling := make(map[int]struct{}, len(schedulable))
	for _, t := range schedulable {
		rescheduling[t.ID] = struct{}{}
	}
	var contextTasks []*core.Task
	for _, t := range all {
		if _, ok := rescheduling[t.ID]; ok {
			continue
		}
		if !t.ShouldCountInWorkload() {
			continue
		}
		if force {
			if t.IsFixed || t.Status == core.StatusInProgress {
				contextTasks = append(contextTasks, t)
			}
			continue
		}
		if t.HasSchedule() {
			contextTasks = append(contextTasks, t)
		}
	}
	return contextTasks
}

// clearOrphans removes leftover schedules from tasks the run declined to
// place. Only a forced run clears; a plain run keeps old plans.
func (s *Service) clearOrphans(ctx context.Context, schedulable []*core.Task, run *scheduler.Result, force bool, now time.Time) ([]*core.Task, error) {
	if !force {
		return nil, nil
	}
	placed := make(map[int]struct{}, len(run.Scheduled))
	for _, t := range run.Scheduled {
		placed[t.ID] = struct{}{}
	}
	var cleared []*core.Task
	for _, t := range schedulable {
		if _, ok := placed[t.ID]; ok {
			continue
		}
		if !t.HasSchedule() {
			continue
		}
		c := t.Clone()
		c.ClearSchedule()
		c.UpdatedAt = now
		cleared = append(cleared, c)
	}
	if len(cleared) == 0 {
		return nil, nil
	}
	if err := s.repo.SaveAll(ctx, cleared); err != nil {
		return nil, fmt.Errorf("failed to clear orphan schedules: %w", err)
	}
	return cleared, nil
}

// propagateParentPeriods re-derives each parent's planned window from its
// children after the run changed them, walking up to the root. Parents are
// processed deepest first so a grandparent always sees final child windows.
func (s *Service) propagateParentPeriods(ctx context.Context, all, scheduled, cleared []*core.Task, now time.Time) error {
	view := make(map[int]*core.Task, len(all))
	for _, t := range all {
		view[t.ID] = t
	}
	for _, t := range scheduled {
		view[t.ID] = t
	}
	for _, t := range cleared {
		view[t.ID] = t
	}

	need := make(map[int]struct{})
	collect := func(ts []*core.Task) {
		for _, t := range ts {
			for id, guard := t.ParentID, 0; id != 0 && guard < len(view); guard++ {
				if _, ok := need[id]; ok {
					break
				}
				need[id] = struct{}{}
				p, ok := view[id]
				if !ok {
					break
				}
				id = p.ParentID
			}
		}
	}
	collect(scheduled)
	collect(cleared)
	if len(need) == 0 {
		return nil
	}

	children := make(map[int][]*core.Task)
	for _, t := range view {
		if t.ParentID != 0 {
			children[t.ParentID] = append(children[t.ParentID], t)
		}
	}

	order := make([]int, 0, len(need))
	for id := range need {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		di, dj := parentDepth(view, order[i]), parentDepth(view, order[j])
		if di != dj {
			return di > dj
		}
		return order[i] < order[j]
	})

	var updates []*core.Task
	for _, id := range order {
		parent, ok := view[id]
		if !ok {
			continue
		}
		var start, end time.Time
		for _, c := range children[id] {
			c = view[c.ID]
			if c.Archived || !c.HasSchedule() || c.PlannedEnd.IsZero() {
				continue
			}
			if start.IsZero() || c.PlannedStart.Before(start) {
				start = c.PlannedStart
			}
			if c.PlannedEnd.After(end) {
				end = c.PlannedEnd
			}
		}
		if start.Equal(parent.PlannedStart) && end.Equal(parent.PlannedEnd) && len(parent.DailyAllocations) == 0 {
			continue
		}
		updated := parent.Clone()
		if start.IsZero() {
			updated.ClearSchedule()
		} else {
			updated.PlannedStart = start
			updated.PlannedEnd = end
			updated.DailyAllocations = nil
		}
		updated.UpdatedAt = now
		updates = append(updates, updated)
		view[id] = updated
	}
	if len(updates) == 0 {
		return nil
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })
	if err := s.repo.SaveAll(ctx, updates); err != nil {
		return fmt.Errorf("failed to propagate parent periods: %w", err)
	}
	return nil
}

// parentDepth counts the ancestors above id, guarding against reference
// loops in stored data.
func parentDepth(view map[int]*core.Task, id int) int {
	depth := 0
	for guard := 0; guard < len(view); guard++ {
		t, ok := view[id]
		if !ok || t.ParentID == 0 {
			return depth
		}
		depth++
		id = t.ParentID
	}
	return depth
}

func buildResult(algorithm string, run *scheduler.Result, failed []TaskFailure, ledger *scheduler.Ledger, capacity float64, before map[int]time.Time) *OptimizeResult {
	totals := ledger.Reserved()
	var overloaded []core.Date
	for _, d := range core.SortedDates(totals) {
		if totals[d] > capacity+hoursEpsilon {
			overloaded = append(overloaded, d)
		}
	}

	var totalHours float64
	for _, hours := range run.DailyAllocationsUsed {
		totalHours += hours
	}
	var first, last core.Date
	if dates := core.SortedDates(run.DailyAllocationsUsed); len(dates) > 0 {
		first, last = dates[0], dates[len(dates)-1]
	}

	return &OptimizeResult{
		RunID:            newRunID(),
		Algorithm:        algorithm,
		Scheduled:        run.Scheduled,
		Failed:           failed,
		DailyAllocations: run.DailyAllocationsUsed,
		DailyTotals:      totals,
		Summary: Summary{
			ScheduledCount: len(run.Scheduled),
			FailedCount:    len(failed),
			TotalHours:     totalHours,
			StartDate:      first,
			EndDate:        last,
			OverloadedDays: overloaded,
		},
		BeforeSnapshot: before,
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

func sortedUnique(ids []int) []int {
	out := lo.Uniq(ids)
	sort.Ints(out)
	return out
}
