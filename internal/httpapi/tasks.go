package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/envoyrun/envoy/pkg/envoy"
)

type runView struct {
	ID         string             `json:"id"`
	Status     envoy.RunStatus    `json:"status"`
	Result     string             `json:"result"`
	Trace      []envoy.TraceEntry `json:"trace"`
	StartedAt  string             `json:"started_at"`
	FinishedAt *string            `json:"finished_at,omitempty"`
}

func toRunView(run *envoy.TaskRun) runView {
	var trace []envoy.TraceEntry
	_ = json.Unmarshal([]byte(run.Output), &trace)

	v := runView{
		ID:        run.ID,
		Status:    run.Status,
		Result:    run.Result,
		Trace:     trace,
		StartedAt: run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if run.FinishedAt != nil {
		f := run.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
		v.FinishedAt = &f
	}
	return v
}

type taskView struct {
	*envoy.ScheduledTask
	LastRun *runView `json:"lastRun,omitempty"`
}

// handleListTasks implements GET /tasks (§6): every scheduled task with its
// most recent run's parsed trace attached.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]taskView, 0, len(all))
	for _, task := range all {
		view := taskView{ScheduledTask: task}
		runs, err := s.store.ListRuns(r.Context(), task.ID, 1)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(runs) > 0 {
			rv := toRunView(runs[0])
			view.LastRun = &rv
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTaskRuns implements GET /tasks/:name/runs?limit= (§6).
func (s *Server) handleTaskRuns(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	task, err := s.store.GetTask(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), task.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunView(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteTask implements DELETE /tasks/:name. Deleting a task cascades
// to its runs (store-level ON DELETE CASCADE); the live scheduler is
// reconciled afterward so an in-memory job doesn't keep firing.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.store.DeleteTask(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}
	if s.scheduler != nil {
		if err := s.scheduler.Reconcile(r.Context()); err != nil {
			s.logger.Warn("failed to reconcile scheduler after task delete", "task", name, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
