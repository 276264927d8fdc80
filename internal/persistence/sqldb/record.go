package sqldb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// taskColumns is the canonical column list. scanFrom and storeArgs must
// keep the same order.
const taskColumns = "id, name, status, priority, tags, estimated_duration, " +
	"deadline, planned_start, planned_end, is_fixed, actual_start, actual_end, " +
	"actual_daily_hours, daily_allocations, depends_on, parent_id, archived, " +
	"created_at, updated_at"

const taskColumnCount = 19

// taskRecord is the flat stored representation of a task row.
type taskRecord struct {
	ID                int
	Name              string
	Status            string
	Priority          int
	Tags              []byte
	EstimatedDuration float64
	Deadline          sql.NullString
	PlannedStart      sql.NullString
	PlannedEnd        sql.NullString
	IsFixed           bool
	ActualStart       sql.NullString
	ActualEnd         sql.NullString
	ActualDailyHours  []byte
	DailyAllocations  []byte
	DependsOn         []byte
	ParentID          sql.NullInt64
	Archived          bool
	CreatedAt         string
	UpdatedAt         string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *taskRecord) scanFrom(row rowScanner) error {
	return row.Scan(
		&r.ID, &r.Name, &r.Status, &r.Priority, &r.Tags,
		&r.EstimatedDuration, &r.Deadline, &r.PlannedStart, &r.PlannedEnd,
		&r.IsFixed, &r.ActualStart, &r.ActualEnd,
		&r.ActualDailyHours, &r.DailyAllocations, &r.DependsOn,
		&r.ParentID, &r.Archived, &r.CreatedAt, &r.UpdatedAt,
	)
}

// task converts the stored row back into the domain type. Any field that
// fails to decode marks the row as corrupted.
func (r *taskRecord) task() (*core.Task, error) {
	status, err := core.ParseStatus(r.Status)
	if err != nil {
		return nil, corruptedField(r.ID, "status", err)
	}
	tags, err := decodeList[string](r.Tags)
	if err != nil {
		return nil, corruptedField(r.ID, "tags", err)
	}
	deadline, err := parseStoredTime(r.Deadline)
	if err != nil {
		return nil, corruptedField(r.ID, "deadline", err)
	}
	plannedStart, err := parseStoredTime(r.PlannedStart)
	if err != nil {
		return nil, corruptedField(r.ID, "planned_start", err)
	}
	plannedEnd, err := parseStoredTime(r.PlannedEnd)
	if err != nil {
		return nil, corruptedField(r.ID, "planned_end", err)
	}
	actualStart, err := parseStoredTime(r.ActualStart)
	if err != nil {
		return nil, corruptedField(r.ID, "actual_start", err)
	}
	actualEnd, err := parseStoredTime(r.ActualEnd)
	if err != nil {
		return nil, corruptedField(r.ID, "actual_end", err)
	}
	actualDailyHours, err := decodeHoursByDate(r.ActualDailyHours)
	if err != nil {
		return nil, corruptedField(r.ID, "actual_daily_hours", err)
	}
	dailyAllocations, err := decodeHoursByDate(r.DailyAllocations)
	if err != nil {
		return nil, corruptedField(r.ID, "daily_allocations", err)
	}
	dependsOn, err := decodeList[int](r.DependsOn)
	if err != nil {
		return nil, corruptedField(r.ID, "depends_on", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return nil, corruptedField(r.ID, "created_at", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if err != nil {
		return nil, corruptedField(r.ID, "updated_at", err)
	}

	return &core.Task{
		ID:                r.ID,
		Name:              r.Name,
		Status:            status,
		Priority:          r.Priority,
		Tags:              tags,
		EstimatedDuration: r.EstimatedDuration,
		Deadline:          deadline,
		PlannedStart:      plannedStart,
		PlannedEnd:        plannedEnd,
		IsFixed:           r.IsFixed,
		ActualStart:       actualStart,
		ActualEnd:         actualEnd,
		ActualDailyHours:  actualDailyHours,
		DailyAllocations:  dailyAllocations,
		DependsOn:         dependsOn,
		ParentID:          int(r.ParentID.Int64),
		Archived:          r.Archived,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}, nil
}

// storeArgs flattens a task into the argument list matching taskColumns.
func storeArgs(t *core.Task) []any {
	return []any{
		t.ID,
		t.Name,
		t.Status.String(),
		t.Priority,
		encodeList(t.Tags),
		t.EstimatedDuration,
		formatStoredTime(t.Deadline),
		formatStoredTime(t.PlannedStart),
		formatStoredTime(t.PlannedEnd),
		t.IsFixed,
		formatStoredTime(t.ActualStart),
		formatStoredTime(t.ActualEnd),
		encodeHoursByDate(t.ActualDailyHours),
		encodeHoursByDate(t.DailyAllocations),
		encodeList(t.DependsOn),
		storedParentID(t.ParentID),
		t.Archived,
		t.CreatedAt.Format(time.RFC3339Nano),
		t.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func corruptedField(id int, field string, err error) error {
	return &core.CorruptedDataError{
		Details: fmt.Sprintf("task %d: field %s", id, field),
		Err:     err,
	}
}

// formatStoredTime renders a timestamp for storage; the zero time stores
// as NULL.
func formatStoredTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func parseStoredTime(v sql.NullString) (time.Time, error) {
	if !v.Valid || v.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v.String)
}

func storedParentID(id int) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}

// encodeList renders a slice as a JSON array; nil stores as the empty
// array.
func encodeList[T any](v []T) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList[T any](raw []byte) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v []T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}

// encodeHoursByDate renders a per-date hours map as a JSON object keyed by
// YYYY-MM-DD; nil stores as the empty object.
func encodeHoursByDate(m map[core.Date]float64) string {
	if len(m) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func decodeHoursByDate(raw []byte) (map[core.Date]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[core.Date]float64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	for d := range m {
		if _, err := core.ParseDate(string(d)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
