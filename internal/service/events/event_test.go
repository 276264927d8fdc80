package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWireFormat(t *testing.T) {
	t.Parallel()

	event := Event{
		Type:           TypeTaskDeleted,
		Timestamp:      time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC),
		SourceClientID: "cli-1",
		SourceUserName: "alice",
		Payload:        TaskDeletedPayload{TaskID: 7},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "task_deleted",
		"timestamp": "2025-01-06T12:00:00Z",
		"source_client_id": "cli-1",
		"source_user_name": "alice",
		"payload": {"task_id": 7}
	}`, string(data))
}

func TestEventOmitsEmptyAttribution(t *testing.T) {
	t.Parallel()

	event := Event{
		Type:      TypeScheduleOptimized,
		Timestamp: time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC),
		Payload: ScheduleOptimizedPayload{
			ScheduledCount: 4,
			FailedCount:    1,
			Algorithm:      "greedy",
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "source_client_id")
	assert.NotContains(t, string(data), "source_user_name")
	assert.Contains(t, string(data), `"scheduled_count":4`)
}

func TestSourceDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "alice", Source{ClientID: "cli-1", UserName: "alice"}.DisplayName())
	assert.Equal(t, "cli-1", Source{ClientID: "cli-1"}.DisplayName())
	assert.Empty(t, Source{}.DisplayName())
}
