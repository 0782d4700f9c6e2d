// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies are decoded into the planning API wire types so the same JSON works
// against this server and the backend.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/planning/remote"
)

const maxBodyBytes = 64 << 10

var errMissingUser = errors.New("missing " + remote.UserHeader + " header")

// UserID returns the uid the request acts for.
func UserID(r *http.Request) (string, error) {
	uid := sanitizeInput(r.Header.Get(remote.UserHeader))
	if uid == "" {
		return "", errMissingUser
	}
	if len(uid) > 128 || strings.ContainsAny(uid, "/ ") {
		return "", fmt.Errorf("invalid %s header", remote.UserHeader)
	}
	return uid, nil
}

// DecodeJSON reads a size-limited JSON body into v. Unknown fields are
// rejected so typos do not silently reset values.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

// ParseEventBody decodes an event. The id always comes from the path.
func ParseEventBody(w http.ResponseWriter, r *http.Request, id string) (core.CalendarEvent, error) {
	var dto remote.EventDTO
	if err := DecodeJSON(w, r, &dto); err != nil {
		return core.CalendarEvent{}, err
	}
	dto.ID = id
	dto.UID = ""
	dto.Description = sanitizeInput(dto.Description)
	dto.Client = sanitizeInput(dto.Client)
	return dto.ToEvent()
}

// ParseTaskBody decodes a weekly task. The id always comes from the path.
func ParseTaskBody(w http.ResponseWriter, r *http.Request, id string) (core.WeeklyTask, error) {
	var dto remote.TaskDTO
	if err := DecodeJSON(w, r, &dto); err != nil {
		return core.WeeklyTask{}, err
	}
	dto.ID = id
	dto.UID = ""
	dto.Name = sanitizeInput(dto.Name)
	dto.Color = sanitizeInput(dto.Color)
	dto.Icon = sanitizeInput(dto.Icon)
	return dto.ToTask()
}

// WeekParams holds an optional ISO week selected by query parameters.
type WeekParams struct {
	Week calendar.YearWeek
	Set  bool
}

// ParseWeekParams reads year and week from the query. Both or neither must
// be given.
func ParseWeekParams(query url.Values) (WeekParams, error) {
	ys, ws := strings.TrimSpace(query.Get("year")), strings.TrimSpace(query.Get("week"))
	if ys == "" && ws == "" {
		return WeekParams{}, nil
	}
	year, err := strconv.Atoi(ys)
	if err != nil || year < 1970 || year > 9999 {
		return WeekParams{}, &core.ValidationError{Field: "year", Reason: fmt.Sprintf("invalid year %q", ys)}
	}
	week, err := strconv.Atoi(ws)
	if err != nil || week < 1 || week > calendar.WeeksInYear(year) {
		return WeekParams{}, &core.ValidationError{Field: "week", Reason: fmt.Sprintf("invalid week %q", ws)}
	}
	return WeekParams{Week: calendar.YearWeek{Year: year, Week: week}, Set: true}, nil
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: "date", Reason: fmt.Sprintf("invalid date %q", s)}
	}
	return t, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
