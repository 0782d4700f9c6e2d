package http

import (
	"net/http"

	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
)

// respondPlanning answers with the state of c, the grid of its view and the
// summary of the displayed period.
func (s *Server) respondPlanning(w http.ResponseWriter, r *http.Request, c *planning.Controller, status int) {
	st := c.State()
	v := toPlanningView(st)
	if st.View == planning.ViewMonth {
		v.MonthGrid = toMonthGridView(c.MonthGrid())
	} else {
		v.WeekGrid = toWeekGridView(c.WeekGrid())
	}
	if sum, err := c.Summary(r.Context()); err == nil {
		v.Summary = toSummaryView(sum)
	} else {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Summary unavailable",
			log.FieldUID, st.UID, log.FieldError, err)
	}
	NewJSONResponse().Status(status).Notice(st.Notice).Body(v).Write(w)
}

// respondAfterMove answers a navigation request. A failed reload is not an
// error for the client when the controller fell back to cached data.
func (s *Server) respondAfterMove(w http.ResponseWriter, r *http.Request, c *planning.Controller, err error) {
	if err != nil && !c.State().Offline {
		FromError(err).Notice(c.Notice()).Write(w)
		return
	}
	s.respondPlanning(w, r, c, http.StatusOK)
}

func (s *Server) handleGetPlanning(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	s.respondPlanning(w, r, c, http.StatusOK)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	s.respondAfterMove(w, r, c, c.Load(r.Context()))
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	var body struct {
		Step int `json:"step"`
	}
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if body.Step == 0 {
		UnprocessableEntityError("step must be non-zero").Write(w)
		return
	}
	s.respondAfterMove(w, r, c, c.Navigate(r.Context(), body.Step))
}

func (s *Server) handleSwitchView(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	var body struct {
		View string `json:"view"`
	}
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	view, err := planning.ParseView(body.View)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	s.respondAfterMove(w, r, c, c.SwitchView(r.Context(), view))
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	var body struct {
		Date string `json:"date"`
	}
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	date, err := ParseDate(body.Date, c.Policy().Location)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	s.respondAfterMove(w, r, c, c.GoTo(r.Context(), date))
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	s.respondAfterMove(w, r, c, c.Today(r.Context()))
}

func (s *Server) handleClearNotice(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	c.ClearNotice()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	sum, err := c.Summary(r.Context())
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(toSummaryView(sum)).Write(w)
}

// handleSlot returns the resolved cell of one (day, slot start) position.
func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	day, err := core.ParseWeekday(r.PathValue("day"))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	start, err := core.ParseClock(r.PathValue("start"))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	cell := c.SlotAt(day, start)
	body := cellView{
		Start:   string(cell.Start),
		Events:  toEventViews(cell.Events),
		Tasks:   toOccurrences(cell.Tasks),
		Primary: string(cell.Primary),
		Overlay: string(cell.Overlay),
		Stacked: cell.Stacked,
	}
	NewJSONResponse().Body(body).Write(w)
}

// handleDay lists the loaded events on a calendar date.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	date, err := ParseDate(r.PathValue("date"), c.Policy().Location)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"date":   date.Format(dateLayout),
		"events": toEventViews(c.EventsOnDate(date)),
	}).Write(w)
}
