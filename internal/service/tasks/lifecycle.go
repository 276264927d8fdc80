package tasks

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/depgraph"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
)

// CreateRequest carries the caller-settable fields for a new task.
type CreateRequest struct {
	Name              string    `json:"name"`
	Priority          int       `json:"priority,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	EstimatedDuration float64   `json:"estimated_duration,omitempty"`
	Deadline          time.Time `json:"deadline,omitzero"`
	PlannedStart      time.Time `json:"planned_start,omitzero"`
	PlannedEnd        time.Time `json:"planned_end,omitzero"`
	IsFixed           bool      `json:"is_fixed,omitempty"`
	DependsOn         []int     `json:"depends_on,omitempty"`
	ParentID          int       `json:"parent_id,omitempty"`
}

// Create validates the request against the current snapshot, persists the
// new task, and announces it.
func (s *Service) Create(ctx context.Context, req CreateRequest, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if len(req.DependsOn) > 0 || req.ParentID != 0 {
		_, index, err := s.loadAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, dep := range req.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("%w: unknown task %d", core.ErrValidation, dep)
			}
		}
		if req.ParentID != 0 {
			if _, ok := index[req.ParentID]; !ok {
				return nil, fmt.Errorf("%w: unknown parent task %d", core.ErrValidation, req.ParentID)
			}
		}
	}

	t := core.NewTask(0, req.Name, s.now())
	t.Priority = req.Priority
	t.EstimatedDuration = req.EstimatedDuration
	t.Deadline = req.Deadline
	t.PlannedStart = req.PlannedStart
	t.PlannedEnd = req.PlannedEnd
	t.IsFixed = req.IsFixed
	t.ParentID = req.ParentID
	if err := t.SetTags(req.Tags); err != nil {
		return nil, err
	}
	for _, dep := range req.DependsOn {
		if err := t.AddDependency(dep); err != nil {
			return nil, err
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.publish(ctx, events.TypeTaskCreated, src, events.TaskCreatedPayload{Task: t})
	logger.Info(ctx, "Task created", "id", t.ID, "name", t.Name)
	return t, nil
}

// UpdateRequest is a field mask: nil leaves a field unchanged, a pointed-to
// zero value clears the optional it targets.
type UpdateRequest struct {
	Name              *string    `json:"name,omitempty"`
	Priority          *int       `json:"priority,omitempty"`
	EstimatedDuration *float64   `json:"estimated_duration,omitempty"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	PlannedStart      *time.Time `json:"planned_start,omitempty"`
	PlannedEnd        *time.Time `json:"planned_end,omitempty"`
	IsFixed           *bool      `json:"is_fixed,omitempty"`
	ParentID          *int       `json:"parent_id,omitempty"`
}

func (r UpdateRequest) touchesPlanning() bool {
	return r.EstimatedDuration != nil || r.Deadline != nil ||
		r.PlannedStart != nil || r.PlannedEnd != nil || r.IsFixed != nil
}

// fields lists the targeted field names in wire order.
func (r UpdateRequest) fields() []string {
	var fields []string
	if r.Name != nil {
		fields = append(fields, "name")
	}
	if r.Priority != nil {
		fields = append(fields, "priority")
	}
	if r.EstimatedDuration != nil {
		fields = append(fields, "estimated_duration")
	}
	if r.Deadline != nil {
		fields = append(fields, "deadline")
	}
	if r.PlannedStart != nil {
		fields = append(fields, "planned_start")
	}
	if r.PlannedEnd != nil {
		fields = append(fields, "planned_end")
	}
	if r.IsFixed != nil {
		fields = append(fields, "is_fixed")
	}
	if r.ParentID != nil {
		fields = append(fields, "parent_id")
	}
	return fields
}

// Update applies a field mask. Planning fields are refused on finished
// tasks; editing the duration or the planned window drops the optimizer's
// allocations because they no longer describe the task.
func (s *Service) Update(ctx context.Context, id int, req UpdateRequest, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	fields := req.fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", core.ErrValidation)
	}

	if req.ParentID != nil && *req.ParentID != 0 {
		_, index, err := s.loadAll(ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := index[*req.ParentID]; !ok {
			return nil, fmt.Errorf("%w: unknown parent task %d", core.ErrValidation, *req.ParentID)
		}
		if parentLoop(index, id, *req.ParentID) {
			return nil, fmt.Errorf("%w: parent chain would loop through task %d", core.ErrValidation, id)
		}
	}

	t, err := s.change(ctx, id, func(t *core.Task) error {
		if t.Status.IsFinished() && req.touchesPlanning() {
			return &core.AlreadyFinishedError{TaskID: t.ID, Status: t.Status}
		}
		if req.Name != nil {
			t.Name = *req.Name
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if req.EstimatedDuration != nil {
			t.EstimatedDuration = *req.EstimatedDuration
		}
		if req.Deadline != nil {
			t.Deadline = *req.Deadline
		}
		if req.PlannedStart != nil {
			t.PlannedStart = *req.PlannedStart
		}
		if req.PlannedEnd != nil {
			t.PlannedEnd = *req.PlannedEnd
		}
		if req.IsFixed != nil {
			t.IsFixed = *req.IsFixed
		}
		if req.ParentID != nil {
			t.ParentID = *req.ParentID
		}
		if req.EstimatedDuration != nil || req.PlannedStart != nil || req.PlannedEnd != nil {
			t.DailyAllocations = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{Task: t, UpdatedFields: fields})
	return t, nil
}

// parentLoop reports whether linking childID under parentID would make the
// parent chain reach childID again.
func parentLoop(index map[int]*core.Task, childID, parentID int) bool {
	seen := make(map[int]bool)
	for id := parentID; id != 0; {
		if id == childID {
			return true
		}
		if seen[id] {
			// The chain already loops; refuse to extend it.
			return true
		}
		seen[id] = true
		p, ok := index[id]
		if !ok {
			return false
		}
		id = p.ParentID
	}
	return false
}

// SetTags replaces the task's tag set.
func (s *Service) SetTags(ctx context.Context, id int, tags []string, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.change(ctx, id, func(t *core.Task) error { return t.SetTags(tags) })
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{Task: t, UpdatedFields: []string{"tags"}})
	return t, nil
}

// AddDependency records that task id requires prereqID to finish first. The
// edge is validated against the whole graph so a cycle can never enter the
// store.
func (s *Service) AddDependency(ctx context.Context, id, prereqID int, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, index, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := index[id]; !ok {
		return nil, core.NewNotFoundError(id)
	}
	if err := depgraph.New(all).CheckAdd(id, prereqID); err != nil {
		return nil, err
	}

	t, err := s.change(ctx, id, func(t *core.Task) error { return t.AddDependency(prereqID) })
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{Task: t, UpdatedFields: []string{"depends_on"}})
	return t, nil
}

// RemoveDependency drops a prerequisite edge.
func (s *Service) RemoveDependency(ctx context.Context, id, prereqID int, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.change(ctx, id, func(t *core.Task) error { return t.RemoveDependency(prereqID) })
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{Task: t, UpdatedFields: []string{"depends_on"}})
	return t, nil
}

// transition runs one status-changing mutation and announces the move.
func (s *Service) transition(ctx context.Context, id int, src events.Source, apply func(*core.Task) error) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var old core.Status
	t, err := s.change(ctx, id, func(t *core.Task) error {
		old = t.Status
		return apply(t)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskStatusChanged, src, events.TaskStatusChangedPayload{
		Task:      t,
		OldStatus: old,
		NewStatus: t.Status,
	})
	logger.Info(ctx, "Task status changed", "id", t.ID, "from", old.String(), "to", t.Status.String())
	return t, nil
}

// Start moves a pending task into progress.
func (s *Service) Start(ctx context.Context, id int, src events.Source) (*core.Task, error) {
	return s.transition(ctx, id, src, func(t *core.Task) error { return t.Start(s.now()) })
}

// Complete finishes a task from PENDING or IN_PROGRESS.
func (s *Service) Complete(ctx context.Context, id int, src events.Source) (*core.Task, error) {
	return s.transition(ctx, id, src, func(t *core.Task) error { return t.Complete(s.now()) })
}

// Pause suspends an in-progress task back to PENDING.
func (s *Service) Pause(ctx context.Context, id int, src events.Source) (*core.Task, error) {
	return s.transition(ctx, id, src, func(t *core.Task) error { return t.Pause() })
}

// Cancel abandons a task.
func (s *Service) Cancel(ctx context.Context, id int, src events.Source) (*core.Task, error) {
	return s.transition(ctx, id, src, func(t *core.Task) error { return t.Cancel(s.now()) })
}

// Reopen returns a finished task to PENDING.
func (s *Service) Reopen(ctx context.Context, id int, src events.Source) (*core.Task, error) {
	return s.transition(ctx, id, src, func(t *core.Task) error { return t.Reopen() })
}

// Archive soft-deletes a task.
func (s *Service) Archive(ctx context.Context, id int, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.change(ctx, id, func(t *core.Task) error {
		t.Archive()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{Task: t, UpdatedFields: []string{"archived"}})
	return t, nil
}

// Restore undoes Archive.
func (s *Service) Restore(ctx context.Context, id int, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.change(ctx, id, func(t *core.Task) error {
		t.Restore()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{Task: t, UpdatedFields: []string{"archived"}})
	return t, nil
}

// FixTimes pins the planned window and marks the task fixed so the
// strategies leave it alone.
func (s *Service) FixTimes(ctx context.Context, id int, start, end time.Time, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.change(ctx, id, func(t *core.Task) error {
		if t.Status.IsFinished() {
			return &core.AlreadyFinishedError{TaskID: t.ID, Status: t.Status}
		}
		return t.FixTimes(start, end)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{
		Task:          t,
		UpdatedFields: []string{"planned_start", "planned_end", "is_fixed"},
	})
	return t, nil
}

// Unfix releases a fixed schedule back to the optimizer.
func (s *Service) Unfix(ctx context.Context, id int, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.change(ctx, id, func(t *core.Task) error {
		t.Unfix()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{Task: t, UpdatedFields: []string{"is_fixed"}})
	return t, nil
}

// LogHours accumulates worked hours onto a calendar date.
func (s *Service) LogHours(ctx context.Context, id int, d core.Date, hours float64, src events.Source) (*core.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if d.IsZero() {
		return nil, fmt.Errorf("%w: date required", core.ErrValidation)
	}
	t, err := s.change(ctx, id, func(t *core.Task) error { return t.LogHours(d, hours) })
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeTaskUpdated, src, events.TaskUpdatedPayload{Task: t, UpdatedFields: []string{"actual_daily_hours"}})
	return t, nil
}

// Remove deletes a task permanently, detaching every reference other tasks
// held to it and dropping its notes file.
func (s *Service) Remove(ctx context.Context, id int, src events.Source) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, index, err := s.loadAll(ctx)
	if err != nil {
		return err
	}
	if _, ok := index[id]; !ok {
		return core.NewNotFoundError(id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}

	now := s.now()
	var changed []*core.Task
	for _, other := range all {
		if other.ID == id {
			continue
		}
		dependsOnIt := slices.Contains(other.DependsOn, id)
		if !dependsOnIt && other.ParentID != id {
			continue
		}
		c := other.Clone()
		if dependsOnIt {
			_ = c.RemoveDependency(id)
		}
		if c.ParentID == id {
			c.ParentID = 0
		}
		c.UpdatedAt = now
		changed = append(changed, c)
	}
	if len(changed) > 0 {
		if err := s.repo.SaveAll(ctx, changed); err != nil {
			return fmt.Errorf("failed to detach references to task %d: %w", id, err)
		}
	}
	if s.notes != nil {
		if err := s.notes.Delete(id); err != nil {
			logger.Warn(ctx, "Failed to delete task notes", "id", id, "err", err)
		}
	}
	s.publish(ctx, events.TypeTaskDeleted, src, events.TaskDeletedPayload{TaskID: id})
	logger.Info(ctx, "Task removed", "id", id)
	return nil
}

// notesEchoWindow is how long an UpdateNotes write suppresses the watcher's
// notification for the same task, so the service does not re-announce its
// own file writes.
const notesEchoWindow = 2 * time.Second

// UpdateNotes writes the task's notes file. Empty content deletes it.
func (s *Service) UpdateNotes(ctx context.Context, id int, content string, src events.Source) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.notes == nil {
		return fmt.Errorf("%w: notes are not configured", core.ErrValidation)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	var err error
	if content == "" {
		err = s.notes.Delete(id)
	} else {
		err = s.notes.Write(id, content)
	}
	if err != nil {
		return fmt.Errorf("failed to write notes for task %d: %w", id, err)
	}
	s.markNotesWritten(id)
	s.publish(ctx, events.TypeTaskNotesUpdated, src, events.TaskNotesUpdatedPayload{TaskID: id})
	return nil
}

// NotifyNotesChanged publishes a notes event for an on-disk edit observed by
// the notes watcher. Edits that went through UpdateNotes within the echo
// window are skipped.
func (s *Service) NotifyNotesChanged(ctx context.Context, id int) {
	if s.recentNoteWrite(id) {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		logger.Debug(ctx, "Ignoring notes change for unknown task", "id", id)
		return
	}
	s.publish(ctx, events.TypeTaskNotesUpdated, events.Source{}, events.TaskNotesUpdatedPayload{TaskID: id})
}

func (s *Service) markNotesWritten(id int) {
	s.notesMu.Lock()
	defer s.notesMu.Unlock()
	s.noteWrites[id] = s.now()
}

func (s *Service) recentNoteWrite(id int) bool {
	s.notesMu.Lock()
	defer s.notesMu.Unlock()
	at, ok := s.noteWrites[id]
	if !ok {
		return false
	}
	if s.now().Sub(at) >= notesEchoWindow {
		delete(s.noteWrites, id)
		return false
	}
	return true
}
