package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every concrete error below unwraps to exactly one of these so
// callers can classify with errors.Is without string matching.
var (
	ErrNotFound           = errors.New("task not found")
	ErrValidation         = errors.New("validation failed")
	ErrNotSchedulable     = errors.New("task is not schedulable")
	ErrAlreadyFinished    = errors.New("task is already finished")
	ErrNoSchedulableTasks = errors.New("no schedulable tasks")
	ErrCorruptedData      = errors.New("corrupted task data")
)

// Validation failures on task fields and relations.
var (
	ErrNameRequired          = fmt.Errorf("%w: name must not be empty", ErrValidation)
	ErrPriorityNegative      = fmt.Errorf("%w: priority must not be negative", ErrValidation)
	ErrTagEmpty              = fmt.Errorf("%w: tags must not be empty strings", ErrValidation)
	ErrDurationNotPositive   = fmt.Errorf("%w: estimated duration must be positive", ErrValidation)
	ErrHoursNegative         = fmt.Errorf("%w: hours must not be negative", ErrValidation)
	ErrPlannedRangeInverted  = fmt.Errorf("%w: planned start must not be after planned end", ErrValidation)
	ErrAllocationNotPositive = fmt.Errorf("%w: daily allocations must be positive", ErrValidation)
	ErrAllocationOutOfRange  = fmt.Errorf("%w: daily allocation date outside planned period", ErrValidation)
	ErrSelfDependency        = fmt.Errorf("%w: a task cannot depend on itself", ErrValidation)
	ErrDependencyExists      = fmt.Errorf("%w: dependency already exists", ErrValidation)
	ErrDependencyAbsent      = fmt.Errorf("%w: dependency does not exist", ErrValidation)
	ErrCycleDetected         = fmt.Errorf("%w: dependency cycle detected", ErrValidation)
	ErrUnknownAlgorithm      = fmt.Errorf("%w: unknown optimization algorithm", ErrValidation)
	ErrNotInProgress         = fmt.Errorf("%w: task is not in progress", ErrValidation)
	ErrAlreadyStarted        = fmt.Errorf("%w: task is already started", ErrValidation)
	ErrNotFinished           = fmt.Errorf("%w: task is not finished", ErrValidation)
)

// NotFoundError reports one or more task ids that do not exist.
type NotFoundError struct {
	IDs []int
}

func (e *NotFoundError) Error() string {
	if len(e.IDs) == 1 {
		return fmt.Sprintf("task %d not found", e.IDs[0])
	}
	return fmt.Sprintf("tasks %s not found", joinIDs(e.IDs))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError builds a NotFoundError over the given ids.
func NewNotFoundError(ids ...int) error {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	return &NotFoundError{IDs: sorted}
}

// NotSchedulableError explains why a single task cannot be scheduled.
type NotSchedulableError struct {
	TaskID int
	Reason string
}

func (e *NotSchedulableError) Error() string {
	return fmt.Sprintf("task %d is not schedulable: %s", e.TaskID, e.Reason)
}

func (e *NotSchedulableError) Unwrap() error { return ErrNotSchedulable }

// AlreadyFinishedError rejects an operation on a completed or canceled task.
type AlreadyFinishedError struct {
	TaskID int
	Status Status
}

func (e *AlreadyFinishedError) Error() string {
	return fmt.Sprintf("task %d is already %s", e.TaskID, e.Status)
}

func (e *AlreadyFinishedError) Unwrap() error { return ErrAlreadyFinished }

// NoSchedulableTasksError is raised when an explicit target list survives the
// schedulability filter empty. Reasons map task id to the per-task cause.
type NoSchedulableTasksError struct {
	TaskIDs []int
	Reasons map[int]string
}

func (e *NoSchedulableTasksError) Error() string {
	var parts []string
	for _, id := range e.TaskIDs {
		if reason, ok := e.Reasons[id]; ok {
			parts = append(parts, fmt.Sprintf("%d: %s", id, reason))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("none of tasks %s can be scheduled", joinIDs(e.TaskIDs))
	}
	return fmt.Sprintf("none of tasks %s can be scheduled (%s)", joinIDs(e.TaskIDs), strings.Join(parts, "; "))
}

func (e *NoSchedulableTasksError) Unwrap() error { return ErrNoSchedulableTasks }

// CorruptedDataError carries details about a malformed stored record.
type CorruptedDataError struct {
	Details string
	Err     error
}

func (e *CorruptedDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupted task data: %s: %v", e.Details, e.Err)
	}
	return fmt.Sprintf("corrupted task data: %s", e.Details)
}

func (e *CorruptedDataError) Unwrap() error { return ErrCorruptedData }

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
