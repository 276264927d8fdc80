package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	t.Parallel()

	t.Run("parse and format", func(t *testing.T) {
		t.Parallel()
		d, err := ParseDate("2025-01-06")
		require.NoError(t, err)
		assert.Equal(t, Date("2025-01-06"), d)
		assert.Equal(t, time.Monday, d.Weekday())

		_, err = ParseDate("06/01/2025")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("from time", func(t *testing.T) {
		t.Parallel()
		d := NewDate(time.Date(2025, 1, 6, 23, 59, 0, 0, time.Local))
		assert.Equal(t, Date("2025-01-06"), d)
		assert.True(t, NewDate(time.Time{}).IsZero())
	})

	t.Run("arithmetic and ordering", func(t *testing.T) {
		t.Parallel()
		d := Date("2025-01-31")
		assert.Equal(t, Date("2025-02-01"), d.AddDays(1))
		assert.Equal(t, Date("2025-01-30"), d.AddDays(-1))
		assert.True(t, Date("2025-01-06").Before("2025-01-07"))
		assert.True(t, Date("2025-01-07").After("2025-01-06"))
		assert.False(t, Date("2025-01-06").After("2025-01-06"))
	})

	t.Run("min max", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, Date("2025-01-06"), MinDate("2025-01-07", "2025-01-06"))
		assert.Equal(t, Date("2025-01-07"), MaxDate("2025-01-07", "2025-01-06"))
	})

	t.Run("sorted keys", func(t *testing.T) {
		t.Parallel()
		dates := SortedDates(map[Date]float64{
			"2025-01-08": 1, "2025-01-06": 1, "2025-01-07": 1,
		})
		assert.Equal(t, []Date{"2025-01-06", "2025-01-07", "2025-01-08"}, dates)
	})
}

func TestTimeOfDay(t *testing.T) {
	t.Parallel()

	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 30}, tod)
	assert.Equal(t, "09:30", tod.String())

	anchored := tod.On("2025-01-06")
	assert.Equal(t, time.Date(2025, 1, 6, 9, 30, 0, 0, time.Local), anchored)

	_, err = ParseTimeOfDay("25:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		err := NewNotFoundError(3, 1, 2)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "tasks 1, 2, 3 not found", err.Error())
		assert.Equal(t, "task 5 not found", NewNotFoundError(5).Error())
	})

	t.Run("no schedulable tasks", func(t *testing.T) {
		t.Parallel()
		err := &NoSchedulableTasksError{
			TaskIDs: []int{1, 2},
			Reasons: map[int]string{1: "archived", 2: "no estimated duration"},
		}
		assert.ErrorIs(t, err, ErrNoSchedulableTasks)
		assert.Contains(t, err.Error(), "1: archived")
		assert.Contains(t, err.Error(), "2: no estimated duration")
	})

	t.Run("corrupted data", func(t *testing.T) {
		t.Parallel()
		err := &CorruptedDataError{Details: "task 4: bad status", Err: ErrValidation}
		assert.ErrorIs(t, err, ErrCorruptedData)
		assert.Contains(t, err.Error(), "task 4: bad status")
	})

	t.Run("kinds stay distinct", func(t *testing.T) {
		t.Parallel()
		assert.NotErrorIs(t, NewNotFoundError(1), ErrValidation)
		assert.NotErrorIs(t, ErrNameRequired, ErrNotFound)
		assert.NotErrorIs(t, &AlreadyFinishedError{TaskID: 1, Status: StatusCompleted}, ErrValidation)
	})
}
