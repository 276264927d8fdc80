package scheduler

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// Registered algorithm names.
const (
	AlgorithmGreedy     = "greedy"
	AlgorithmBalanced   = "balanced"
	AlgorithmBackward   = "backward"
	AlgorithmRoundRobin = "round_robin"
)

const (
	// DefaultMaxHoursPerDay caps daily reservations when the caller does not
	// supply a capacity.
	DefaultMaxHoursPerDay = 6.0

	// DefaultHorizonDays bounds the scan window for tasks without a
	// deadline. Fourteen calendar days always contain at least seven
	// workdays in any sane holiday calendar.
	DefaultHorizonDays = 14

	epsilon = 1e-9
)

// Params carries the per-invocation inputs shared by every strategy.
type Params struct {
	StartDate      core.Date
	MaxHoursPerDay float64
	Calendar       core.Calendar
	CurrentTime    time.Time
	HorizonDays    int
}

func (p Params) withDefaults() Params {
	if p.MaxHoursPerDay <= 0 {
		p.MaxHoursPerDay = DefaultMaxHoursPerDay
	}
	if p.HorizonDays <= 0 {
		p.HorizonDays = DefaultHorizonDays
	}
	if p.StartDate.IsZero() {
		now := p.CurrentTime
		if now.IsZero() {
			now = time.Now()
		}
		p.StartDate = core.NewDate(now)
	}
	return p
}

// effectiveDeadline bounds a task's scan window: its own deadline when set,
// otherwise the horizon from the start date.
func (p Params) effectiveDeadline(t *core.Task) core.Date {
	if !t.Deadline.IsZero() {
		return core.NewDate(t.Deadline)
	}
	return p.StartDate.AddDays(p.HorizonDays)
}

// Failure pairs an unschedulable task with the human-readable reason.
type Failure struct {
	Task   *core.Task
	Reason string
}

// Result is the outcome of one strategy run. Scheduled tasks are private
// clones carrying their new planned window and allocations; the originals
// are untouched.
type Result struct {
	Scheduled            []*core.Task
	Failures             []Failure
	DailyAllocationsUsed map[core.Date]float64
}

func newResult() *Result {
	return &Result{DailyAllocationsUsed: make(map[core.Date]float64)}
}

func (r *Result) commit(scheduled *core.Task) {
	r.Scheduled = append(r.Scheduled, scheduled)
	for d, hours := range scheduled.DailyAllocations {
		r.DailyAllocationsUsed[d] += hours
	}
}

func (r *Result) fail(t *core.Task, reason string) {
	r.Failures = append(r.Failures, Failure{Task: t, Reason: reason})
}

// Strategy places schedulable tasks onto workdays. Implementations are pure
// CPU: they read the ledger and the params, mutate only their own clones,
// and never block.
type Strategy interface {
	Name() string
	Optimize(tasks, contextTasks []*core.Task, params Params, ledger *Ledger) *Result
}

// Metadata describes a registered algorithm for selection UIs.
type Metadata struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Factory builds a strategy bound to the configured workday bounds.
type Factory func(dayStart, dayEnd core.TimeOfDay) Strategy

type registration struct {
	meta    Metadata
	factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register adds an algorithm to the registry. Strategies self-register from
// their init functions.
func Register(meta Metadata, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[meta.Name] = registration{meta: meta, factory: factory}
}

// Create instantiates the named algorithm.
func Create(name string, dayStart, dayEnd core.TimeOfDay) (Strategy, error) {
	registryMu.RLock()
	reg, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownAlgorithm, name)
	}
	return reg.factory(dayStart, dayEnd), nil
}

// Known reports whether an algorithm with the given name is registered.
func Known(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Algorithms lists the registered algorithms sorted by name.
func Algorithms() []Metadata {
	registryMu.RLock()
	defer registryMu.RUnlock()
	metas := make([]Metadata, 0, len(registry))
	for _, reg := range registry {
		metas = append(metas, reg.meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas
}

// sortEarliestFirst orders tasks by (deadline asc, priority desc, id asc).
// A missing deadline sorts after every present one.
func sortEarliestFirst(tasks []*core.Task) []*core.Task {
	sorted := slices.Clone(tasks)
	slices.SortStableFunc(sorted, func(a, b *core.Task) int {
		if c := compareDeadlines(a, b); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

func compareDeadlines(a, b *core.Task) int {
	switch {
	case a.Deadline.IsZero() && b.Deadline.IsZero():
		return 0
	case a.Deadline.IsZero():
		return 1
	case b.Deadline.IsZero():
		return -1
	case a.Deadline.Before(b.Deadline):
		return -1
	case b.Deadline.Before(a.Deadline):
		return 1
	}
	return 0
}

// buildSchedule clones the task with the committed allocations and a planned
// window spanning the first through last committed day.
func buildSchedule(t *core.Task, allocs map[core.Date]float64, dayStart, dayEnd core.TimeOfDay) (*core.Task, error) {
	dates := core.SortedDates(allocs)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: task %d produced no allocations", core.ErrValidation, t.ID)
	}
	scheduled := t.Clone()
	scheduled.PlannedStart = dayStart.On(dates[0])
	scheduled.PlannedEnd = dayEnd.On(dates[len(dates)-1])
	if err := scheduled.SetDailyAllocations(allocs); err != nil {
		return nil, err
	}
	return scheduled, nil
}

// rollback releases every partially committed hour of a failed task.
func rollback(ledger *Ledger, allocs map[core.Date]float64) {
	for d, hours := range allocs {
		ledger.Release(d, hours)
	}
}

// ceilToTenth rounds up to one decimal place.
func ceilToTenth(v float64) float64 {
	return math.Ceil(v*10) / 10
}

func cannotMeetDeadline(remaining float64) string {
	return fmt.Sprintf("Cannot meet deadline; %.1fh remaining", remaining)
}
