// Package api implements the v1 REST API over the task service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

// EventHub is the subscriber registry behind the event stream endpoint.
type EventHub interface {
	Subscribe(clientID string, sub events.Subscriber)
	Unsubscribe(clientID string)
}

// API exposes the task service over HTTP.
type API struct {
	svc *tasks.Service
	hub EventHub
}

// New builds the API. A nil hub disables the event stream endpoint.
func New(svc *tasks.Service, hub EventHub) *API {
	return &API{svc: svc, hub: hub}
}

// ConfigureRoutes registers every v1 route on the given router.
func (a *API) ConfigureRoutes(r chi.Router) {
	r.Get("/tasks", a.listTasks)
	r.Post("/tasks", a.createTask)
	r.Get("/tasks/order", a.taskOrder)
	r.Get("/tasks/{taskID}", a.getTask)
	r.Patch("/tasks/{taskID}", a.updateTask)
	r.Delete("/tasks/{taskID}", a.deleteTask)

	r.Post("/tasks/{taskID}/start", a.transition((*tasks.Service).Start))
	r.Post("/tasks/{taskID}/complete", a.transition((*tasks.Service).Complete))
	r.Post("/tasks/{taskID}/pause", a.transition((*tasks.Service).Pause))
	r.Post("/tasks/{taskID}/cancel", a.transition((*tasks.Service).Cancel))
	r.Post("/tasks/{taskID}/reopen", a.transition((*tasks.Service).Reopen))
	r.Post("/tasks/{taskID}/archive", a.transition((*tasks.Service).Archive))
	r.Post("/tasks/{taskID}/restore", a.transition((*tasks.Service).Restore))
	r.Post("/tasks/{taskID}/unfix", a.transition((*tasks.Service).Unfix))

	r.Put("/tasks/{taskID}/tags", a.setTags)
	r.Post("/tasks/{taskID}/dependencies", a.addDependency)
	r.Delete("/tasks/{taskID}/dependencies/{prereqID}", a.removeDependency)
	r.Post("/tasks/{taskID}/fix", a.fixTimes)
	r.Post("/tasks/{taskID}/hours", a.logHours)
	r.Get("/tasks/{taskID}/notes", a.getNotes)
	r.Put("/tasks/{taskID}/notes", a.putNotes)

	r.Post("/optimize", a.optimize)
	r.Get("/gantt", a.gantt)
	r.Get("/statistics", a.statistics)
	r.Get("/statistics/tags", a.tagStatistics)
	r.Get("/algorithms", a.algorithms)

	if a.hub != nil {
		r.Get("/events", a.eventStream)
	}
}

// requestSource reads the mutation attribution headers. Both are optional;
// an absent client id means the caller hears its own change echoed back.
func requestSource(r *http.Request) events.Source {
	return events.Source{
		ClientID: r.Header.Get("X-Client-ID"),
		UserName: r.Header.Get("X-User-Name"),
	}
}

// taskIDParam parses the {taskID} route parameter.
func taskIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "taskID")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid task id %q", core.ErrValidation, raw)
	}
	return id, nil
}

// decodeJSON reads the request body into v, mapping malformed input to a
// validation error.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", core.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeNotFound       = "not_found"
	codeInvalidRequest = "invalid_request"
	codeConflict       = "conflict"
	codeInternalError  = "internal_error"
)

// handleError maps domain error kinds onto HTTP statuses. Internal errors
// are logged and reported with a generic message.
func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	code := codeInternalError
	message := "An unexpected error occurred"
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrNotFound):
		code, status = codeNotFound, http.StatusNotFound
		message = err.Error()
	case errors.Is(err, core.ErrAlreadyFinished):
		code, status = codeConflict, http.StatusConflict
		message = err.Error()
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrNotSchedulable),
		errors.Is(err, core.ErrNoSchedulableTasks):
		code, status = codeInvalidRequest, http.StatusBadRequest
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		logger.Errorf(r.Context(), "Internal server error: %v", err)
	}

	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
