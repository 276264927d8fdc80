package core

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Task is the unit of work. Fields are mutated only through the named
// operations below; the write path persists the whole record after each one.
type Task struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Status   Status   `json:"status"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags,omitempty"`

	// EstimatedDuration is in hours. Zero means unset; an unset duration
	// makes the task invisible to every scheduling strategy.
	EstimatedDuration float64 `json:"estimated_duration,omitempty"`

	Deadline     time.Time `json:"deadline,omitzero"`
	PlannedStart time.Time `json:"planned_start,omitzero"`
	PlannedEnd   time.Time `json:"planned_end,omitzero"`
	IsFixed      bool      `json:"is_fixed,omitempty"`

	ActualStart      time.Time        `json:"actual_start,omitzero"`
	ActualEnd        time.Time        `json:"actual_end,omitzero"`
	ActualDailyHours map[Date]float64 `json:"actual_daily_hours,omitempty"`

	// DailyAllocations maps a calendar date to planned hours. The sum never
	// exceeds EstimatedDuration and equals it when the task is fully
	// scheduled.
	DailyAllocations map[Date]float64 `json:"daily_allocations,omitempty"`

	DependsOn []int `json:"depends_on,omitempty"`

	// ParentID links the task into an optional parent/child hierarchy.
	// Zero means no parent.
	ParentID int `json:"parent_id,omitempty"`

	Archived  bool      `json:"archived,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask builds a pending task with the given identity.
func NewTask(id int, name string, now time.Time) *Task {
	return &Task{
		ID:        id,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks every field-level invariant. Relation-level invariants
// (acyclic dependencies, existing ids) are the dependency graph's job.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrNameRequired
	}
	if t.Priority < 0 {
		return ErrPriorityNegative
	}
	for _, tag := range t.Tags {
		if strings.TrimSpace(tag) == "" {
			return ErrTagEmpty
		}
	}
	if t.EstimatedDuration < 0 {
		return ErrDurationNotPositive
	}
	if !t.PlannedStart.IsZero() && !t.PlannedEnd.IsZero() && t.PlannedStart.After(t.PlannedEnd) {
		return ErrPlannedRangeInverted
	}
	for d, hours := range t.ActualDailyHours {
		if hours < 0 {
			return fmt.Errorf("%w: logged hours on %s", ErrHoursNegative, d)
		}
	}
	if err := t.validateAllocations(t.DailyAllocations); err != nil {
		return err
	}
	for _, dep := range t.DependsOn {
		if dep == t.ID {
			return ErrSelfDependency
		}
	}
	return nil
}

// ValidateSchedulable reports whether a strategy may (re)schedule the task.
// forceOverride lets the caller reschedule fixed tasks.
func (t *Task) ValidateSchedulable(forceOverride bool) error {
	switch {
	case t.Status.IsFinished():
		return &NotSchedulableError{TaskID: t.ID, Reason: fmt.Sprintf("already %s", t.Status)}
	case t.Archived:
		return &NotSchedulableError{TaskID: t.ID, Reason: "archived"}
	case t.EstimatedDuration <= 0:
		return &NotSchedulableError{TaskID: t.ID, Reason: "no estimated duration"}
	case t.IsFixed && !forceOverride:
		return &NotSchedulableError{TaskID: t.ID, Reason: "schedule is fixed"}
	}
	return nil
}

// ShouldCountInWorkload reports whether the task's allocations still occupy
// capacity. Finished and archived tasks do not.
func (t *Task) ShouldCountInWorkload() bool {
	return t.Status.IsActive() && !t.Archived
}

// HasSchedule reports whether the task currently owns a planned window.
func (t *Task) HasSchedule() bool {
	return !t.PlannedStart.IsZero()
}

// SetDailyAllocations replaces the allocation map after validating every
// entry against the planned window.
func (t *Task) SetDailyAllocations(allocs map[Date]float64) error {
	if err := t.validateAllocations(allocs); err != nil {
		return err
	}
	if len(allocs) == 0 {
		t.DailyAllocations = nil
		return nil
	}
	copied := make(map[Date]float64, len(allocs))
	for d, hours := range allocs {
		copied[d] = hours
	}
	t.DailyAllocations = copied
	return nil
}

func (t *Task) validateAllocations(allocs map[Date]float64) error {
	if len(allocs) == 0 {
		return nil
	}
	if t.PlannedStart.IsZero() || t.PlannedEnd.IsZero() {
		return ErrAllocationOutOfRange
	}
	first, last := NewDate(t.PlannedStart), NewDate(t.PlannedEnd)
	for d, hours := range allocs {
		if hours <= 0 {
			return fmt.Errorf("%w: %g on %s", ErrAllocationNotPositive, hours, d)
		}
		if d.Before(first) || d.After(last) {
			return fmt.Errorf("%w: %s outside [%s, %s]", ErrAllocationOutOfRange, d, first, last)
		}
	}
	return nil
}

// ClearSchedule removes the planned window and its allocations.
func (t *Task) ClearSchedule() {
	t.PlannedStart = time.Time{}
	t.PlannedEnd = time.Time{}
	t.DailyAllocations = nil
}

// AllocatedHours sums the planned daily allocations.
func (t *Task) AllocatedHours() float64 {
	var total float64
	for _, hours := range t.DailyAllocations {
		total += hours
	}
	return total
}

// SpentHours sums the logged daily hours.
func (t *Task) SpentHours() float64 {
	var total float64
	for _, hours := range t.ActualDailyHours {
		total += hours
	}
	return total
}

// Start moves a pending task into progress and stamps the actual start.
func (t *Task) Start(now time.Time) error {
	if t.Status.IsFinished() {
		return &AlreadyFinishedError{TaskID: t.ID, Status: t.Status}
	}
	if t.Status == StatusInProgress {
		return ErrAlreadyStarted
	}
	t.Status = StatusInProgress
	if t.ActualStart.IsZero() {
		t.ActualStart = now
	}
	return nil
}

// Complete finishes the task from PENDING or IN_PROGRESS, backfilling the
// actual start when the task was never explicitly started.
func (t *Task) Complete(now time.Time) error {
	if t.Status.IsFinished() {
		return &AlreadyFinishedError{TaskID: t.ID, Status: t.Status}
	}
	t.Status = StatusCompleted
	if t.ActualStart.IsZero() {
		t.ActualStart = now
	}
	t.ActualEnd = now
	return nil
}

// Pause suspends an in-progress task back to PENDING. The actual start is
// kept so resuming does not lose history.
func (t *Task) Pause() error {
	if t.Status != StatusInProgress {
		return ErrNotInProgress
	}
	t.Status = StatusPending
	return nil
}

// Cancel abandons the task and stamps the actual end.
func (t *Task) Cancel(now time.Time) error {
	if t.Status.IsFinished() {
		return &AlreadyFinishedError{TaskID: t.ID, Status: t.Status}
	}
	t.Status = StatusCanceled
	t.ActualEnd = now
	return nil
}

// Reopen returns a finished task to PENDING. Logged hours and the actual
// start survive; the actual end is cleared.
func (t *Task) Reopen() error {
	if !t.Status.IsFinished() {
		return ErrNotFinished
	}
	t.Status = StatusPending
	t.ActualEnd = time.Time{}
	return nil
}

// Archive soft-deletes the task. Idempotent.
func (t *Task) Archive() {
	t.Archived = true
}

// Restore undoes Archive. Idempotent.
func (t *Task) Restore() {
	t.Archived = false
}

// FixTimes pins the planned window to the given bounds and marks the task
// fixed so strategies leave it alone. Existing allocations are dropped; the
// workload view reconstructs them by even split over the fixed interval.
func (t *Task) FixTimes(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: fixed times require both start and end", ErrValidation)
	}
	if start.After(end) {
		return ErrPlannedRangeInverted
	}
	t.PlannedStart = start
	t.PlannedEnd = end
	t.DailyAllocations = nil
	t.IsFixed = true
	return nil
}

// Unfix releases a fixed schedule back to the optimizer.
func (t *Task) Unfix() {
	t.IsFixed = false
}

// LogHours accumulates worked hours onto a calendar date.
func (t *Task) LogHours(d Date, hours float64) error {
	if hours < 0 {
		return ErrHoursNegative
	}
	if t.ActualDailyHours == nil {
		t.ActualDailyHours = make(map[Date]float64)
	}
	t.ActualDailyHours[d] += hours
	return nil
}

// SetTags replaces the tag set after trimming, deduplicating, and sorting.
func (t *Task) SetTags(tags []string) error {
	if len(tags) == 0 {
		t.Tags = nil
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return ErrTagEmpty
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		cleaned = append(cleaned, tag)
	}
	slices.Sort(cleaned)
	t.Tags = cleaned
	return nil
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// AddDependency records a prerequisite edge, keeping DependsOn sorted and
// duplicate-free. Cycle checks belong to the dependency graph service.
func (t *Task) AddDependency(prereqID int) error {
	if prereqID == t.ID {
		return ErrSelfDependency
	}
	if slices.Contains(t.DependsOn, prereqID) {
		return ErrDependencyExists
	}
	t.DependsOn = append(t.DependsOn, prereqID)
	slices.Sort(t.DependsOn)
	return nil
}

// RemoveDependency drops a prerequisite edge.
func (t *Task) RemoveDependency(prereqID int) error {
	idx := slices.Index(t.DependsOn, prereqID)
	if idx < 0 {
		return ErrDependencyAbsent
	}
	t.DependsOn = slices.Delete(t.DependsOn, idx, idx+1)
	if len(t.DependsOn) == 0 {
		t.DependsOn = nil
	}
	return nil
}

// Clone deep-copies the task so strategies can scribble on a private copy
// and partial runs never leak into shared state.
func (t *Task) Clone() *Task {
	copied := *t
	if t.Tags != nil {
		copied.Tags = slices.Clone(t.Tags)
	}
	if t.DependsOn != nil {
		copied.DependsOn = slices.Clone(t.DependsOn)
	}
	if t.ActualDailyHours != nil {
		copied.ActualDailyHours = make(map[Date]float64, len(t.ActualDailyHours))
		for d, hours := range t.ActualDailyHours {
			copied.ActualDailyHours[d] = hours
		}
	}
	if t.DailyAllocations != nil {
		copied.DailyAllocations = make(map[Date]float64, len(t.DailyAllocations))
		for d, hours := range t.DailyAllocations {
			copied.DailyAllocations[d] = hours
		}
	}
	return &copied
}
