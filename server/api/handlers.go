package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/loomtask/loom/engine"
	"github.com/loomtask/loom/events"
	"github.com/loomtask/loom/task"
)

// MaxListLimit caps how many tasks a single list request may return.
const MaxListLimit = 1000

// DefaultListLimit applies when a list request names no limit.
const DefaultListLimit = 100

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Engine  *engine.Engine
	Bus     events.Bus
	Logger  *slog.Logger
	Version string
	StartAt int64 // unix timestamp of server start
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks/count", h.countTasks)
	mux.HandleFunc("GET /api/tasks/statistics", h.statistics)
	mux.HandleFunc("GET /api/tasks/status/list", h.statusList)
	mux.HandleFunc("GET /api/tasks/priority/list", h.priorityList)
	mux.HandleFunc("POST /api/tasks/bulk-update", h.bulkUpdate)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/transition-check", h.transitionCheck)
	mux.HandleFunc("POST /api/tasks/{id}/dependencies", h.addDependencies)
	mux.HandleFunc("DELETE /api/tasks/{id}/dependencies/{depID}", h.removeDependency)

	mux.HandleFunc("GET /api/events", h.listEvents)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps engine and store errors to HTTP status codes.
func errorStatus(err error) int {
	var (
		verr *task.ValidationError
		terr *task.InvalidTransitionError
		serr *task.SelfDependencyError
		uerr *task.UnknownTaskError
		cerr *task.DependencyConflictError
	)
	switch {
	case errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr), errors.As(err, &serr), errors.As(err, &uerr):
		return http.StatusBadRequest
	case errors.As(err, &terr), errors.As(err, &cerr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeTaskError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("api request failed", slog.Any("err", err))
	}
	writeError(w, status, err.Error())
}

// taskView is the API shape of a task, the stored fields plus derived ones.
// Tags and dependency ids shadow the model's omitempty fields so clients
// always see them, empty or not.
type taskView struct {
	*task.Task
	Tags               []string     `json:"tags"`
	DependencyIDs      []string     `json:"dependency_ids"`
	ProgressPercentage float64      `json:"progress_percentage"`
	IsReadyToStart     *bool        `json:"is_ready_to_start,omitempty"`
	Dependencies       []depSummary `json:"dependencies,omitempty"`
}

// depSummary is the short form of a dependency in single-task responses.
type depSummary struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Status task.Status `json:"status"`
}

func viewOf(t *task.Task) *taskView {
	return &taskView{
		Task:               t,
		Tags:               emptyIfNil(t.Tags),
		DependencyIDs:      emptyIfNil(t.DependencyIDs),
		ProgressPercentage: t.Progress(),
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// detailViewOf is viewOf plus readiness and dependency summaries, which
// cost a store lookup per dependency and so are only computed for
// single-task responses. A dangling dependency counts as incomplete and
// carries no summary.
func (h *Handlers) detailViewOf(r *http.Request, t *task.Task) (*taskView, error) {
	v := viewOf(t)
	ready := true
	for _, dep := range t.DependencyIDs {
		d, err := h.Engine.Get(r.Context(), dep)
		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				ready = false
				continue
			}
			return nil, err
		}
		if d.Status != task.StatusCompleted {
			ready = false
		}
		v.Dependencies = append(v.Dependencies, depSummary{ID: d.ID, Title: d.Title, Status: d.Status})
	}
	v.IsReadyToStart = &ready
	return v, nil
}

// --- Task handlers ---

// parseFilter builds a task.Filter from list query parameters. A malformed
// enum or sort field is a client error, not something to silently ignore.
func parseFilter(q map[string][]string) (task.Filter, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	f := task.Filter{Limit: DefaultListLimit}

	if s := get("status"); s != "" {
		st := task.Status(s)
		if !st.Valid() {
			return f, &task.ValidationError{Field: "status", Reason: "unknown status " + strconv.Quote(s)}
		}
		f.Status = &st
	}
	if p := get("priority"); p != "" {
		pr := task.Priority(p)
		if !pr.Valid() {
			return f, &task.ValidationError{Field: "priority", Reason: "unknown priority " + strconv.Quote(p)}
		}
		f.Priority = &pr
	}
	f.Assignee = get("assigned_to")
	f.Search = get("search")
	f.DependsOn = get("depends_on")
	if t := get("tags"); t != "" {
		for _, tag := range strings.Split(t, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}
	if o := get("overdue"); o != "" {
		b, err := strconv.ParseBool(o)
		if err != nil {
			return f, &task.ValidationError{Field: "overdue", Reason: "must be a boolean"}
		}
		f.Overdue = &b
	}
	if s := get("sort_by"); s != "" {
		if !task.SortFields[s] {
			return f, &task.ValidationError{Field: "sort_by", Reason: "unsupported sort field " + strconv.Quote(s)}
		}
		f.SortBy = s
	}
	if d := get("sort_desc"); d != "" {
		b, err := strconv.ParseBool(d)
		if err != nil {
			return f, &task.ValidationError{Field: "sort_desc", Reason: "must be a boolean"}
		}
		f.SortDesc = b
	}
	if l := get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return f, &task.ValidationError{Field: "limit", Reason: "must be a non-negative integer"}
		}
		f.Limit = n
	}
	if f.Limit == 0 || f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if o := get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			return f, &task.ValidationError{Field: "offset", Reason: "must be a non-negative integer"}
		}
		f.Offset = n
	}
	return f, nil
}

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	tasks, err := h.Engine.List(r.Context(), filter)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	views := make([]*taskView, len(tasks))
	for i, t := range tasks {
		views[i] = viewOf(t)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created, err := h.Engine.Create(r.Context(), &t)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	view, err := h.detailViewOf(r, created)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) countTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	n, err := h.Engine.Count(r.Context(), filter)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": n})
}

func (h *Handlers) statusList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]task.Status{"statuses": task.Statuses})
}

func (h *Handlers) priorityList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]task.Priority{"priorities": task.Priorities})
}

func (h *Handlers) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Statistics(r.Context())
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	view, err := h.detailViewOf(r, t)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var p task.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := h.Engine.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	view, err := h.detailViewOf(r, t)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) transitionCheck(w http.ResponseWriter, r *http.Request) {
	// The proposed status comes from the new_status query parameter, or
	// from a JSON body for clients that prefer one.
	proposed := task.Status(r.URL.Query().Get("new_status"))
	if proposed == "" {
		var body struct {
			NewStatus task.Status `json:"new_status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		proposed = body.NewStatus
	}
	if !proposed.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(string(proposed)))
		return
	}
	check, err := h.Engine.CheckTaskTransition(r.Context(), r.PathValue("id"), proposed)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// --- Dependency handlers ---

func (h *Handlers) addDependencies(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DependencyIDs []string `json:"dependency_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.DependencyIDs) == 0 {
		writeError(w, http.StatusBadRequest, "dependency_ids must not be empty")
		return
	}
	t, err := h.Engine.AddDependencies(r.Context(), r.PathValue("id"), body.DependencyIDs)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	view, err := h.detailViewOf(r, t)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) removeDependency(w http.ResponseWriter, r *http.Request) {
	t, err := h.Engine.RemoveDependency(r.Context(), r.PathValue("id"), r.PathValue("depID"))
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	view, err := h.detailViewOf(r, t)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- Bulk update ---

type bulkItemResult struct {
	TaskID  string    `json:"task_id"`
	Success bool      `json:"success"`
	Task    *taskView `json:"task,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type bulkResponse struct {
	Results      []bulkItemResult `json:"results"`
	UpdatedCount int              `json:"updated_count"`
	FailedCount  int              `json:"failed_count"`
}

func (h *Handlers) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskIDs []string   `json:"task_ids"`
		Updates task.Patch `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.TaskIDs) == 0 {
		writeError(w, http.StatusBadRequest, "task_ids must not be empty")
		return
	}
	if body.Updates.Empty() {
		writeError(w, http.StatusBadRequest, "updates must name at least one field")
		return
	}

	results, err := h.Engine.BulkUpdate(r.Context(), body.TaskIDs, body.Updates)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	resp := bulkResponse{Results: make([]bulkItemResult, len(results))}
	for i, res := range results {
		item := bulkItemResult{TaskID: res.ID}
		if res.Err != nil {
			item.Error = res.Err.Error()
			resp.FailedCount++
		} else {
			item.Success = true
			item.Task = viewOf(res.Task)
			resp.UpdatedCount++
		}
		resp.Results[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Event handlers ---

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	evs := h.Bus.History(limit)
	if evs == nil {
		evs = []*events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.Version,
		"uptime_seconds": time.Now().Unix() - h.StartAt,
	})
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
