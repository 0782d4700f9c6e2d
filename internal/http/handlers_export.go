package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"fleemy/internal/ics"
	"fleemy/internal/log"
	"fleemy/internal/planning"
)

// handleWeekICS serves the anchor week as an iCalendar file. Only loaded
// data is exported; the month view exports the week of its anchor date.
func (s *Server) handleWeekICS(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	st := c.State()
	policy := c.Policy()

	var buf bytes.Buffer
	err := ics.Write(&buf, ics.Week{
		UID:        st.UID,
		Week:       st.Week,
		Events:     st.Events,
		Tasks:      st.Tasks,
		HourlyRate: policy.HourlyRate,
		Location:   policy.Location,
		Stamp:      time.Now(),
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "ICS export failed", log.FieldUID, st.UID, log.FieldError, err)
		InternalServerError("export failed").Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ics.FileName(st.Week)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type exportView struct {
	Year     int          `json:"year"`
	Week     int          `json:"week"`
	Ref      string       `json:"ref,omitempty"`
	EventRef string       `json:"event_ref,omitempty"`
	Skipped  bool         `json:"skipped"`
	Offline  bool         `json:"offline"`
	Summary  *summaryView `json:"summary"`
}

// handleExport appends a week to the spreadsheet. Without year and week the
// anchor week is exported.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, c *planning.Controller) {
	if s.exporter == nil {
		ErrorResponse(http.StatusNotImplemented, "spreadsheet export is not configured").Write(w)
		return
	}
	params, err := ParseWeekParams(r.URL.Query())
	if err != nil {
		FromError(err).Write(w)
		return
	}
	week := c.State().Week
	if params.Set {
		week = params.Week
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	res, err := s.exporter.ExportWeek(r.Context(), c.UID(), week, force)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Week export failed",
			log.FieldUID, c.UID(), log.FieldWeek, week.String(), log.FieldError, err)
		ErrorResponse(http.StatusBadGateway, "export failed").Write(w)
		return
	}
	if !res.Skipped {
		atomic.AddInt64(&s.appMetrics.exports, 1)
	}

	NewJSONResponse().Body(exportView{
		Year:     week.Year,
		Week:     week.Week,
		Ref:      res.Ref,
		EventRef: res.EventRef,
		Skipped:  res.Skipped,
		Offline:  res.Offline,
		Summary:  toSummaryView(res.Revenue),
	}).Write(w)
}
