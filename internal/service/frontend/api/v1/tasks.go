package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

type taskListResponse struct {
	Tasks []*core.Task `json:"tasks"`
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	list, err := a.svc.List(r.Context(), filter)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskListResponse{Tasks: list})
}

func listFilterFromQuery(r *http.Request) (tasks.ListFilter, error) {
	q := r.URL.Query()
	filter := tasks.ListFilter{
		Tag:          q.Get("tag"),
		ArchivedOnly: q.Get("archived") == "true",
		All:          q.Get("all") == "true",
	}
	if v := q.Get("status"); v != "" {
		status, err := core.ParseStatus(v)
		if err != nil {
			return tasks.ListFilter{}, err
		}
		filter.Status = &status
	}
	return filter, nil
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	t, err := a.svc.Create(r.Context(), req, requestSource(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	detail, err := a.svc.Detail(r.Context(), id)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var req tasks.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	t, err := a.svc.Update(r.Context(), id, req, requestSource(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.svc.Remove(r.Context(), id, requestSource(r)); err != nil {
		a.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition adapts the one-task lifecycle operations, which all share the
// same shape, into handlers.
func (a *API) transition(op func(*tasks.Service, context.Context, int, events.Source) (*core.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDParam(r)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		t, err := op(a.svc, r.Context(), id, requestSource(r))
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

type setTagsRequest struct {
	Tags []string `json:"tags"`
}

func (a *API) setTags(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var req setTagsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	t, err := a.svc.SetTags(r.Context(), id, req.Tags, requestSource(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type addDependencyRequest struct {
	PrereqID int `json:"prereq_id"`
}

func (a *API) addDependency(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var req addDependencyRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	t, err := a.svc.AddDependency(r.Context(), id, req.PrereqID, requestSource(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) removeDependency(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	raw := chi.URLParam(r, "prereqID")
	prereqID, err := strconv.Atoi(raw)
	if err != nil {
		a.handleError(w, r, fmt.Errorf("%w: invalid prerequisite id %q", core.ErrValidation, raw))
		return
	}
	t, err := a.svc.RemoveDependency(r.Context(), id, prereqID, requestSource(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type fixTimesRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (a *API) fixTimes(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var req fixTimesRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	t, err := a.svc.FixTimes(r.Context(), id, req.Start, req.End, requestSource(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type logHoursRequest struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

func (a *API) logHours(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var req logHoursRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	d, err := core.ParseDate(req.Date)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	t, err := a.svc.LogHours(r.Context(), id, d, req.Hours, requestSource(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type notesResponse struct {
	TaskID  int    `json:"task_id"`
	Content string `json:"content"`
	Exists  bool   `json:"exists"`
}

func (a *API) getNotes(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	content, exists, err := a.svc.Notes(r.Context(), id)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notesResponse{TaskID: id, Content: content, Exists: exists})
}

type putNotesRequest struct {
	Content string `json:"content"`
}

func (a *API) putNotes(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var req putNotesRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.svc.UpdateNotes(r.Context(), id, req.Content, requestSource(r)); err != nil {
		a.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
