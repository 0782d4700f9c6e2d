package http

import (
	"net/http"

	"fleemy/internal/log"
	"fleemy/internal/planning"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	tasks := c.State().Tasks
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskView(t))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	t, err := ParseTaskBody(w, r, "")
	if err != nil {
		parseError(err).Write(w)
		return
	}
	m, err := c.CreateWeeklyTask(r.Context(), t)
	s.track(r.Context(), log.OpCreate, c.UID(), m.Value.ID, m.Outcome)
	MutationResponse(m, err, http.StatusCreated, toTaskView(m.Value)).Notice(c.Notice()).Write(w)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	id := r.PathValue("id")
	t, err := ParseTaskBody(w, r, id)
	if err != nil {
		parseError(err).Write(w)
		return
	}
	m, err := c.UpdateWeeklyTask(r.Context(), t)
	s.track(r.Context(), log.OpUpdate, c.UID(), id, m.Outcome)
	MutationResponse(m, err, http.StatusOK, toTaskView(m.Value)).Notice(c.Notice()).Write(w)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	id := r.PathValue("id")
	m, err := c.DeleteWeeklyTask(r.Context(), id)
	s.track(r.Context(), log.OpDelete, c.UID(), id, m.Outcome)
	MutationResponse(m, err, http.StatusNoContent, nil).Notice(c.Notice()).Write(w)
}
