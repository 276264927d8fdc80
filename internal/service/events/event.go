// Package events fans task change notifications out to connected clients.
// Every successful mutation publishes exactly one event; subscribers see
// them in commit order, and the client that caused a change never receives
// its own echo.
package events

import (
	"time"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// Type identifies the kind of change an event reports.
type Type string

const (
	TypeConnected         Type = "connected"
	TypeTaskCreated       Type = "task_created"
	TypeTaskUpdated       Type = "task_updated"
	TypeTaskDeleted       Type = "task_deleted"
	TypeTaskStatusChanged Type = "task_status_changed"
	TypeTaskNotesUpdated  Type = "task_notes_updated"
	TypeScheduleOptimized Type = "schedule_optimized"
)

// Event is the wire envelope delivered to subscribers.
type Event struct {
	Type           Type      `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	SourceClientID string    `json:"source_client_id,omitempty"`
	SourceUserName string    `json:"source_user_name,omitempty"`
	Payload        any       `json:"payload"`
}

// Source attributes a mutation to the client that issued it. The zero
// value means the change came from the system itself (CLI, auto-plan).
type Source struct {
	ClientID string
	UserName string
}

// DisplayName returns the name shown for the source, preferring the
// user-facing name over the client token.
func (s Source) DisplayName() string {
	if s.UserName != "" {
		return s.UserName
	}
	return s.ClientID
}

// ConnectedPayload greets a new subscriber with its attribution token.
type ConnectedPayload struct {
	ClientID string `json:"client_id"`
}

// TaskCreatedPayload reports a newly created task.
type TaskCreatedPayload struct {
	Task *core.Task `json:"task"`
}

// TaskUpdatedPayload reports a field-level update.
type TaskUpdatedPayload struct {
	Task          *core.Task `json:"task"`
	UpdatedFields []string   `json:"updated_fields"`
}

// TaskDeletedPayload reports a removed task.
type TaskDeletedPayload struct {
	TaskID int `json:"task_id"`
}

// TaskStatusChangedPayload reports a lifecycle transition.
type TaskStatusChangedPayload struct {
	Task      *core.Task  `json:"task"`
	OldStatus core.Status `json:"old_status"`
	NewStatus core.Status `json:"new_status"`
}

// TaskNotesUpdatedPayload reports changed notes content.
type TaskNotesUpdatedPayload struct {
	TaskID int `json:"task_id"`
}

// ScheduleOptimizedPayload summarizes an optimizer run.
type ScheduleOptimizedPayload struct {
	ScheduledCount int    `json:"scheduled_count"`
	FailedCount    int    `json:"failed_count"`
	Algorithm      string `json:"algorithm"`
}
