package core

import (
	"encoding/json"
	"fmt"
)

// Status represents the canonical lifecycle phases for a task.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusCanceled
)

// String returns the canonical lowercase token used across APIs, logs, and
// the persisted form.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IsFinished checks if the status is terminal.
func (s Status) IsFinished() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// IsActive checks if the task still demands work.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusInProgress
}

// ParseStatus converts a canonical token back into a Status.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "pending":
		return StatusPending, nil
	case "in_progress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "canceled":
		return StatusCanceled, nil
	default:
		return StatusPending, fmt.Errorf("%w: unknown status %q", ErrValidation, v)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
