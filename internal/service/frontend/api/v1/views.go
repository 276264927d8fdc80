package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/scheduler"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

func (a *API) optimize(w http.ResponseWriter, r *http.Request) {
	var req tasks.OptimizeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	result, err := a.svc.Optimize(r.Context(), req, requestSource(r))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) gantt(w http.ResponseWriter, r *http.Request) {
	from, err := dateQuery(r, "from")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	to, err := dateQuery(r, "to")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	data, err := a.svc.GanttData(r.Context(), from, to)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(r *http.Request, name string) (core.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", nil
	}
	return core.ParseDate(v)
}

func (a *API) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Statistics(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type tagStatisticsResponse struct {
	Tags []tasks.TagStat `json:"tags"`
}

func (a *API) tagStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.TagStatistics(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tagStatisticsResponse{Tags: stats})
}

type algorithmsResponse struct {
	Algorithms []scheduler.Metadata `json:"algorithms"`
}

func (a *API) algorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, algorithmsResponse{Algorithms: a.svc.Algorithms()})
}

type taskOrderResponse struct {
	Order []int `json:"order"`
}

// taskOrder returns a dependency-respecting execution order for the listed
// task ids, or for every task when ids is absent.
func (a *API) taskOrder(w http.ResponseWriter, r *http.Request) {
	ids, err := idsQuery(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	order, err := a.svc.TopologicalOrder(r.Context(), ids...)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskOrderResponse{Order: order})
}

func idsQuery(r *http.Request) ([]int, error) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid task id %q", core.ErrValidation, p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
