package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

// testNow is a Monday morning.
var testNow = time.Date(2025, 1, 6, 8, 0, 0, 0, time.Local)

// memRepo is an in-memory tasks.Repository for handler tests.
type memRepo struct {
	mu    sync.Mutex
	tasks map[int]*core.Task
}

var _ tasks.Repository = (*memRepo)(nil)

func newMemRepo(seed ...*core.Task) *memRepo {
	r := &memRepo{tasks: make(map[int]*core.Task)}
	for _, t := range seed {
		r.tasks[t.ID] = t.Clone()
	}
	return r
}

func (r *memRepo) GetAll(_ context.Context) ([]*core.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*core.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.tasks[id].Clone())
	}
	return out, nil
}

func (r *memRepo) GetByID(_ context.Context, id int) (*core.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, core.NewNotFoundError(id)
	}
	return t.Clone(), nil
}

func (r *memRepo) SaveAll(_ context.Context, list []*core.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range list {
		r.tasks[t.ID] = t.Clone()
	}
	return nil
}

func (r *memRepo) Create(_ context.Context, t *core.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.maxIDLocked() + 1
	}
	r.tasks[t.ID] = t.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return core.NewNotFoundError(id)
	}
	delete(r.tasks, id)
	return nil
}

func (r *memRepo) NextID(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxIDLocked() + 1, nil
}

func (r *memRepo) maxIDLocked() int {
	maxID := 0
	for id := range r.tasks {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// memNotes is an in-memory tasks.NotesStore.
type memNotes struct {
	mu      sync.Mutex
	content map[int]string
}

var _ tasks.NotesStore = (*memNotes)(nil)

func newMemNotes() *memNotes {
	return &memNotes{content: make(map[int]string)}
}

func (n *memNotes) Read(taskID int) (string, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.content[taskID]
	return c, ok, nil
}

func (n *memNotes) Write(taskID int, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.content[taskID] = content
	return nil
}

func (n *memNotes) Delete(taskID int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.content, taskID)
	return nil
}

func (n *memNotes) Has(taskID int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.content[taskID]
	return ok
}

// recorder captures delivered events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Deliver(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type apiFixture struct {
	router *chi.Mux
	repo   *memRepo
	hub    *events.Hub
}

func newAPIFixture(t *testing.T, seed ...*core.Task) *apiFixture {
	t.Helper()
	clock := core.ClockFunc(func() time.Time { return testNow })
	repo := newMemRepo(seed...)
	hub := events.NewHub(clock, nil)
	svc := tasks.New(repo, newMemNotes(), hub, tasks.WithClock(clock))

	router := chi.NewRouter()
	New(svc, hub).ConfigureRoutes(router)
	return &apiFixture{router: router, repo: repo, hub: hub}
}

// do runs one request through the router. A string body is sent raw;
// anything else is JSON-encoded. Headers come in key, value pairs.
func (f *apiFixture) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func requireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, code, resp.Code)
	assert.NotEmpty(t, resp.Message)
}

func seedTask(id int, name string) *core.Task {
	return core.NewTask(id, name, testNow.Add(-24*time.Hour))
}

func TestCreateTask(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/tasks", tasks.CreateRequest{
		Name:              "Write report",
		EstimatedDuration: 3,
		Tags:              []string{"work"},
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	created := decodeBody[core.Task](t, w)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, core.StatusPending, created.Status)
	assert.Equal(t, []string{"work"}, created.Tags)

	w = f.do(t, http.MethodPost, "/tasks", tasks.CreateRequest{Name: "  "})
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)

	w = f.do(t, http.MethodPost, "/tasks", "{not json")
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestGetTaskDetail(t *testing.T) {
	t.Parallel()
	dep := seedTask(2, "Review report")
	require.NoError(t, dep.AddDependency(1))
	f := newAPIFixture(t, seedTask(1, "Write report"), dep)

	w := f.do(t, http.MethodGet, "/tasks/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decodeBody[tasks.Detail](t, w)
	assert.Equal(t, 2, detail.Task.ID)
	require.Len(t, detail.Prereqs, 1)
	assert.Equal(t, 1, detail.Prereqs[0].ID)
	assert.False(t, detail.HasNotes)

	w = f.do(t, http.MethodGet, "/tasks/99", nil)
	requireErrorCode(t, w, http.StatusNotFound, codeNotFound)

	w = f.do(t, http.MethodGet, "/tasks/abc", nil)
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestListTasks(t *testing.T) {
	t.Parallel()
	t1 := seedTask(1, "Deep work")
	require.NoError(t, t1.SetTags([]string{"deep"}))
	t2 := seedTask(2, "Done already")
	require.NoError(t, t2.Complete(testNow.Add(-time.Hour)))
	t3 := seedTask(3, "Old stuff")
	t3.Archive()
	f := newAPIFixture(t, t1, t2, t3)

	ids := func(w *httptest.ResponseRecorder) []int {
		resp := decodeBody[taskListResponse](t, w)
		out := make([]int, len(resp.Tasks))
		for i, task := range resp.Tasks {
			out[i] = task.ID
		}
		return out
	}

	w := f.do(t, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{1, 2}, ids(w))

	w = f.do(t, http.MethodGet, "/tasks?status=completed", nil)
	assert.Equal(t, []int{2}, ids(w))

	w = f.do(t, http.MethodGet, "/tasks?tag=deep", nil)
	assert.Equal(t, []int{1}, ids(w))

	w = f.do(t, http.MethodGet, "/tasks?archived=true", nil)
	assert.Equal(t, []int{3}, ids(w))

	w = f.do(t, http.MethodGet, "/tasks?all=true", nil)
	assert.Equal(t, []int{1, 2, 3}, ids(w))

	w = f.do(t, http.MethodGet, "/tasks?status=bogus", nil)
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, seedTask(1, "Write report"))

	w := f.do(t, http.MethodPatch, "/tasks/1", map[string]any{"name": "Write summary", "priority": 2})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	updated := decodeBody[core.Task](t, w)
	assert.Equal(t, "Write summary", updated.Name)
	assert.Equal(t, 2, updated.Priority)

	w = f.do(t, http.MethodPatch, "/tasks/1", map[string]any{"priority": -1})
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestLifecycleEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, seedTask(1, "Write report"))

	w := f.do(t, http.MethodPost, "/tasks/1/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	started := decodeBody[core.Task](t, w)
	assert.Equal(t, core.StatusInProgress, started.Status)
	assert.False(t, started.ActualStart.IsZero())

	w = f.do(t, http.MethodPost, "/tasks/1/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, core.StatusCompleted, decodeBody[core.Task](t, w).Status)

	w = f.do(t, http.MethodPost, "/tasks/1/complete", nil)
	requireErrorCode(t, w, http.StatusConflict, codeConflict)

	w = f.do(t, http.MethodPost, "/tasks/1/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reopened := decodeBody[core.Task](t, w)
	assert.Equal(t, core.StatusPending, reopened.Status)
	assert.True(t, reopened.ActualEnd.IsZero())

	w = f.do(t, http.MethodPost, "/tasks/1/pause", nil)
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)

	w = f.do(t, http.MethodPost, "/tasks/9/start", nil)
	requireErrorCode(t, w, http.StatusNotFound, codeNotFound)
}

func TestArchiveRestore(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, seedTask(1, "Write report"))

	w := f.do(t, http.MethodPost, "/tasks/1/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[core.Task](t, w).Archived)

	w = f.do(t, http.MethodPost, "/tasks/1/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[core.Task](t, w).Archived)
}

func TestDependencyEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, seedTask(1, "Write report"), seedTask(2, "Review report"))

	w := f.do(t, http.MethodPost, "/tasks/2/dependencies", addDependencyRequest{PrereqID: 1})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	assert.Equal(t, []int{1}, decodeBody[core.Task](t, w).DependsOn)

	// Reverse edge closes a cycle.
	w = f.do(t, http.MethodPost, "/tasks/1/dependencies", addDependencyRequest{PrereqID: 2})
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)

	w = f.do(t, http.MethodDelete, "/tasks/2/dependencies/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[core.Task](t, w).DependsOn)

	w = f.do(t, http.MethodDelete, "/tasks/2/dependencies/1", nil)
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestTagAndHoursEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, seedTask(1, "Write report"))

	w := f.do(t, http.MethodPut, "/tasks/1/tags", setTagsRequest{Tags: []string{"beta", "alpha", "beta"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"alpha", "beta"}, decodeBody[core.Task](t, w).Tags)

	w = f.do(t, http.MethodPost, "/tasks/1/hours", logHoursRequest{Date: "2025-01-06", Hours: 2.5})
	require.Equal(t, http.StatusOK, w.Code)
	logged := decodeBody[core.Task](t, w)
	assert.InDelta(t, 2.5, logged.ActualDailyHours[core.Date("2025-01-06")], 1e-9)

	w = f.do(t, http.MethodPost, "/tasks/1/hours", logHoursRequest{Date: "Jan 6", Hours: 1})
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestFixEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, seedTask(1, "Standup"))

	start := time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 8, 18, 0, 0, 0, time.UTC)
	w := f.do(t, http.MethodPost, "/tasks/1/fix", fixTimesRequest{Start: start, End: end})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	fixed := decodeBody[core.Task](t, w)
	assert.True(t, fixed.IsFixed)
	assert.True(t, fixed.PlannedStart.Equal(start))

	w = f.do(t, http.MethodPost, "/tasks/1/unfix", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[core.Task](t, w).IsFixed)

	w = f.do(t, http.MethodPost, "/tasks/1/fix", fixTimesRequest{Start: end, End: start})
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestNotesEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, seedTask(1, "Write report"))

	w := f.do(t, http.MethodGet, "/tasks/1/notes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[notesResponse](t, w).Exists)

	w = f.do(t, http.MethodPut, "/tasks/1/notes", putNotesRequest{Content: "# Plan\n- outline"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/tasks/1/notes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decodeBody[notesResponse](t, w)
	assert.True(t, notes.Exists)
	assert.Equal(t, "# Plan\n- outline", notes.Content)

	w = f.do(t, http.MethodPut, "/tasks/9/notes", putNotesRequest{Content: "x"})
	requireErrorCode(t, w, http.StatusNotFound, codeNotFound)
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, seedTask(1, "Write report"))

	w := f.do(t, http.MethodDelete, "/tasks/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/tasks/1", nil)
	requireErrorCode(t, w, http.StatusNotFound, codeNotFound)
}

func TestOptimizeEndpoint(t *testing.T) {
	t.Parallel()
	t1 := seedTask(1, "Write report")
	t1.EstimatedDuration = 4
	t1.Deadline = time.Date(2025, 1, 10, 18, 0, 0, 0, time.Local)
	t2 := seedTask(2, "Review notes")
	t2.EstimatedDuration = 2
	f := newAPIFixture(t, t1, t2)

	w := f.do(t, http.MethodPost, "/optimize", tasks.OptimizeRequest{Algorithm: "greedy"})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	result := decodeBody[tasks.OptimizeResult](t, w)
	assert.Equal(t, "greedy", result.Algorithm)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Scheduled, 2)
	assert.Equal(t, 2, result.Summary.ScheduledCount)

	w = f.do(t, http.MethodPost, "/optimize", tasks.OptimizeRequest{Algorithm: "bogus"})
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)

	w = f.do(t, http.MethodPost, "/optimize", tasks.OptimizeRequest{TaskIDs: []int{99}})
	requireErrorCode(t, w, http.StatusNotFound, codeNotFound)
}

func TestGanttEndpoint(t *testing.T) {
	t.Parallel()
	t1 := seedTask(1, "Write report")
	t1.EstimatedDuration = 4
	t1.PlannedStart = time.Date(2025, 1, 7, 9, 0, 0, 0, time.Local)
	t1.PlannedEnd = time.Date(2025, 1, 8, 18, 0, 0, 0, time.Local)
	t1.DailyAllocations = map[core.Date]float64{"2025-01-07": 3, "2025-01-08": 1}
	f := newAPIFixture(t, t1)

	w := f.do(t, http.MethodGet, "/gantt?from=2025-01-06&to=2025-01-12", nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	data := decodeBody[tasks.GanttData](t, w)
	require.Len(t, data.Bars, 1)
	assert.Equal(t, 1, data.Bars[0].Task.ID)
	assert.InDelta(t, 3, data.DailyTotals[core.Date("2025-01-07")], 1e-9)

	w = f.do(t, http.MethodGet, "/gantt?from=2025-01-12&to=2025-01-06", nil)
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)

	w = f.do(t, http.MethodGet, "/gantt?from=bogus", nil)
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestStatisticsEndpoints(t *testing.T) {
	t.Parallel()
	t1 := seedTask(1, "Write report")
	t1.EstimatedDuration = 4
	require.NoError(t, t1.SetTags([]string{"work"}))
	require.NoError(t, t1.LogHours("2025-01-05", 3))
	require.NoError(t, t1.Complete(testNow.Add(-time.Hour)))
	t2 := seedTask(2, "Review notes")
	require.NoError(t, t2.SetTags([]string{"work"}))
	f := newAPIFixture(t, t1, t2)

	w := f.do(t, http.MethodGet, "/statistics?period=7d", nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	stats := decodeBody[tasks.Statistics](t, w)
	assert.Equal(t, "7d", stats.Period)
	assert.Equal(t, 1, stats.Counts.Completed)
	assert.Equal(t, 1, stats.Counts.Pending)
	assert.InDelta(t, 3, stats.ActualHours, 1e-9)

	w = f.do(t, http.MethodGet, "/statistics?period=bogus", nil)
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)

	w = f.do(t, http.MethodGet, "/statistics/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tagStats := decodeBody[tagStatisticsResponse](t, w)
	require.Len(t, tagStats.Tags, 1)
	assert.Equal(t, "work", tagStats.Tags[0].Tag)
	assert.Equal(t, 1, tagStats.Tags[0].Counts.Completed)
	assert.Equal(t, 1, tagStats.Tags[0].Counts.Pending)
}

func TestAlgorithmsEndpoint(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/algorithms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[algorithmsResponse](t, w)
	names := make([]string, len(resp.Algorithms))
	for i, m := range resp.Algorithms {
		names[i] = m.Name
	}
	assert.ElementsMatch(t, []string{"greedy", "balanced", "backward", "round_robin"}, names)
}

func TestTaskOrderEndpoint(t *testing.T) {
	t.Parallel()
	dep := seedTask(2, "Review report")
	require.NoError(t, dep.AddDependency(1))
	f := newAPIFixture(t, seedTask(1, "Write report"), dep)

	w := f.do(t, http.MethodGet, "/tasks/order?ids=2,1", nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	assert.Equal(t, []int{1, 2}, decodeBody[taskOrderResponse](t, w).Order)

	w = f.do(t, http.MethodGet, "/tasks/order", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{1, 2}, decodeBody[taskOrderResponse](t, w).Order)

	w = f.do(t, http.MethodGet, "/tasks/order?ids=abc", nil)
	requireErrorCode(t, w, http.StatusBadRequest, codeInvalidRequest)
}

func TestMutationAttribution(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	peer := &recorder{}
	f.hub.Subscribe("peer", peer)

	// A change attributed to the peer itself is suppressed.
	w := f.do(t, http.MethodPost, "/tasks", tasks.CreateRequest{Name: "Mine"}, "X-Client-ID", "peer")
	require.Equal(t, http.StatusCreated, w.Code)

	// A change from anyone else is delivered.
	w = f.do(t, http.MethodPost, "/tasks", tasks.CreateRequest{Name: "Theirs"}, "X-Client-ID", "other", "X-User-Name", "alice")
	require.Equal(t, http.StatusCreated, w.Code)

	types := peer.types()
	require.Equal(t, []events.Type{events.TypeConnected, events.TypeTaskCreated}, types)
}
