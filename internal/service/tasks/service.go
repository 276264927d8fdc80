// Package tasks is the write path and query surface over the task store.
// Every mutation runs validate → persist → publish under a single writer
// lock so subscribers observe events in commit order; reads go straight to
// the repository. Optimize drives the scheduling strategies.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/metrics"
	"github.com/Kohei-Wada/taskdog-sub001/internal/scheduler"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
)

// Repository persists tasks. The sql store is the production implementation;
// tests use an in-memory fake. An id of zero passed to Create means the
// repository assigns the next free one.
type Repository interface {
	GetAll(ctx context.Context) ([]*core.Task, error)
	GetByID(ctx context.Context, id int) (*core.Task, error)
	SaveAll(ctx context.Context, tasks []*core.Task) error
	Create(ctx context.Context, t *core.Task) error
	Delete(ctx context.Context, id int) error
	NextID(ctx context.Context) (int, error)
}

// NotesStore keeps free-form markdown notes addressed by task id.
type NotesStore interface {
	Read(taskID int) (string, bool, error)
	Write(taskID int, content string) error
	Delete(taskID int) error
	Has(taskID int) bool
}

// Service owns every task mutation and query.
type Service struct {
	repo  Repository
	notes NotesStore
	hub   *events.Hub

	clock    core.Clock
	holidays core.HolidayChecker
	metrics  *metrics.Metrics

	maxHoursPerDay   float64
	dayStart         core.TimeOfDay
	dayEnd           core.TimeOfDay
	horizonDays      int
	defaultAlgorithm string

	// writeMu serializes the whole mutate → persist → publish pipeline.
	writeMu sync.Mutex

	notesMu    sync.Mutex
	noteWrites map[int]time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock pins the service clock, mainly for tests.
func WithClock(c core.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithHolidays installs the holiday checker consulted by the workday
// calendar. Absent checker means only weekends are non-workdays.
func WithHolidays(h core.HolidayChecker) Option {
	return func(s *Service) { s.holidays = h }
}

// WithMetrics attaches the optimizer run collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithWorkHours overrides the daily capacity and the workday bounds used to
// anchor planned timestamps.
func WithWorkHours(maxPerDay float64, dayStart, dayEnd core.TimeOfDay) Option {
	return func(s *Service) {
		if maxPerDay > 0 {
			s.maxHoursPerDay = maxPerDay
		}
		s.dayStart = dayStart
		s.dayEnd = dayEnd
	}
}

// WithHorizonDays overrides the scan window for tasks without a deadline.
func WithHorizonDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

// WithDefaultAlgorithm sets the strategy used when a request names none.
func WithDefaultAlgorithm(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.defaultAlgorithm = name
		}
	}
}

// New builds the service over its collaborators. The hub may be nil, in
// which case mutations are not broadcast; the notes store may be nil, in
// which case the notes operations report notes as unconfigured.
func New(repo Repository, notes NotesStore, hub *events.Hub, opts ...Option) *Service {
	s := &Service{
		repo:             repo,
		notes:            notes,
		hub:              hub,
		clock:            core.SystemClock{},
		maxHoursPerDay:   scheduler.DefaultMaxHoursPerDay,
		dayStart:         core.WorkdayStart,
		dayEnd:           core.WorkdayEnd,
		horizonDays:      scheduler.DefaultHorizonDays,
		defaultAlgorithm: scheduler.AlgorithmGreedy,
		noteWrites:       make(map[int]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) now() time.Time { return s.clock.Now() }

func (s *Service) calendar(includeAllDays bool) core.Calendar {
	return core.Calendar{Holidays: s.holidays, IncludeAllDays: includeAllDays}
}

func (s *Service) publish(ctx context.Context, typ events.Type, src events.Source, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(ctx, typ, src, payload)
}

// loadAll returns the current snapshot plus an id index.
func (s *Service) loadAll(ctx context.Context) ([]*core.Task, map[int]*core.Task, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	index := make(map[int]*core.Task, len(all))
	for _, t := range all {
		index[t.ID] = t
	}
	return all, index, nil
}

// change loads one task, applies fn to a private copy, validates, and
// persists the result. Callers hold the write lock.
func (s *Service) change(ctx context.Context, id int, fn func(*core.Task) error) (*core.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t = t.Clone()
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()
	if err := s.repo.SaveAll(ctx, []*core.Task{t}); err != nil {
		return nil, fmt.Errorf("failed to save task %d: %w", id, err)
	}
	return t, nil
}
