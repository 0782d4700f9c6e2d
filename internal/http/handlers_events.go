package http

import (
	"net/http"

	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
)

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	e, err := ParseEventBody(w, r, "")
	if err != nil {
		parseError(err).Write(w)
		return
	}
	m, err := c.CreateEvent(r.Context(), e)
	s.track(r.Context(), log.OpCreate, c.UID(), m.Value.ID, m.Outcome)
	MutationResponse(m, err, http.StatusCreated, toEventView(m.Value)).Notice(c.Notice()).Write(w)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	id := r.PathValue("id")
	e, err := ParseEventBody(w, r, id)
	if err != nil {
		parseError(err).Write(w)
		return
	}
	m, err := c.UpdateEvent(r.Context(), e)
	s.track(r.Context(), log.OpUpdate, c.UID(), id, m.Outcome)
	MutationResponse(m, err, http.StatusOK, toEventView(m.Value)).Notice(c.Notice()).Write(w)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	id := r.PathValue("id")
	m, err := c.DeleteEvent(r.Context(), id)
	s.track(r.Context(), log.OpDelete, c.UID(), id, m.Outcome)
	MutationResponse(m, err, http.StatusNoContent, nil).Notice(c.Notice()).Write(w)
}

// handleClearWeek deletes every event of the anchor week. Partial failures
// answer with the error; the events that stayed deleted are still listed by
// a following GET.
func (s *Server) handleClearWeek(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	m, err := c.ClearWeek(r.Context())
	s.track(r.Context(), log.OpDelete, c.UID(), c.State().Week.String(), m.Outcome)
	body := clearWeekView{Deleted: toEventViews(m.Value), Outcome: string(m.Outcome)}
	MutationResponse(m, err, http.StatusOK, body).Notice(c.Notice()).Write(w)
}

// parseError maps body decoding failures: malformed JSON is a bad request,
// well-formed but invalid values are unprocessable.
func parseError(err error) *JSONResponseBuilder {
	if core.IsValidation(err) {
		return UnprocessableEntityError(err.Error())
	}
	return BadRequestError(err.Error())
}
