// Package remote is the REST adapter of the planning backend port.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
)

// UserHeader carries the uid for deployments where the token does not
// identify the user by itself.
const UserHeader = "X-Fleemy-User"

// Config for the REST client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the planning API.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *log.Logger
}

var _ planning.Backend = (*Client)(nil)

func New(cfg Config, logger *log.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid planning API URL %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		base:   base,
		token:  cfg.Token,
		http:   &http.Client{Timeout: timeout},
		logger: logger.WithComponent(log.ComponentBackend),
	}, nil
}

// do performs a request and decodes a JSON response into out when non-nil.
// Transport failures and 5xx responses become network errors so the caller
// can queue the change; 404 and 4xx validation responses are mapped to the
// matching domain errors.
func (c *Client) do(ctx context.Context, method, path, uid string, body, out any) error {
	op := method + " " + path
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if uid != "" {
		req.Header.Set(UserHeader, uid)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return &core.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.logger.DebugContext(ctx, "planning API call", log.FieldMethod, method, log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode, log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", op, err)
		}
		return nil
	}

	detail := readDetail(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &core.NotFoundError{Kind: kindOf(path), ID: lastSegment(path)}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return &core.ValidationError{Reason: detail}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &core.NetworkError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, detail)}
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, detail)
}

func readDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e ErrorDTO
	if json.Unmarshal(raw, &e) == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(raw))
}

func kindOf(path string) string {
	switch {
	case strings.Contains(path, "/events"):
		return "event"
	case strings.Contains(path, "/tasks"):
		return "task"
	}
	return "resource"
}

func lastSegment(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

func (c *Client) toPeriod(ctx context.Context, dto PeriodDTO) planning.Period {
	p := planning.Period{
		Events: make([]core.CalendarEvent, 0, len(dto.Events)),
		Tasks:  make([]core.WeeklyTask, 0, len(dto.Tasks)),
	}
	for _, d := range dto.Events {
		e, err := d.ToEvent()
		if err != nil {
			c.logger.WarnContext(ctx, "skipping malformed event", log.FieldEntityID, d.ID, log.FieldError, err)
			continue
		}
		p.Events = append(p.Events, e)
	}
	for _, d := range dto.Tasks {
		t, err := d.ToTask()
		if err != nil {
			c.logger.WarnContext(ctx, "skipping malformed task", log.FieldEntityID, d.ID, log.FieldError, err)
			continue
		}
		p.Tasks = append(p.Tasks, t)
	}
	return p
}

func (c *Client) LoadWeek(ctx context.Context, uid string, week calendar.YearWeek) (planning.Period, error) {
	var dto PeriodDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/planning/week/%d/%d", week.Year, week.Week), uid, nil, &dto); err != nil {
		return planning.Period{}, err
	}
	return c.toPeriod(ctx, dto), nil
}

func (c *Client) LoadMonth(ctx context.Context, uid string, year int, month time.Month) (planning.Period, error) {
	var dto PeriodDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/planning/month/%d/%d", year, int(month)), uid, nil, &dto); err != nil {
		return planning.Period{}, err
	}
	return c.toPeriod(ctx, dto), nil
}

func (c *Client) CreateEvent(ctx context.Context, e core.CalendarEvent) (core.CalendarEvent, error) {
	var out EventDTO
	if err := c.do(ctx, http.MethodPost, "/planning/events", e.UID, EventToDTO(e), &out); err != nil {
		return core.CalendarEvent{}, err
	}
	return out.ToEvent()
}

func (c *Client) UpdateEvent(ctx context.Context, e core.CalendarEvent) (core.CalendarEvent, error) {
	var out EventDTO
	if err := c.do(ctx, http.MethodPut, "/planning/events/"+url.PathEscape(e.ID), e.UID, EventToDTO(e), &out); err != nil {
		return core.CalendarEvent{}, err
	}
	return out.ToEvent()
}

func (c *Client) DeleteEvent(ctx context.Context, uid, id string) error {
	return c.do(ctx, http.MethodDelete, "/planning/events/"+url.PathEscape(id), uid, nil, nil)
}

func (c *Client) CreateTask(ctx context.Context, t core.WeeklyTask) (core.WeeklyTask, error) {
	var out TaskDTO
	if err := c.do(ctx, http.MethodPost, "/planning/tasks", t.UID, TaskToDTO(t), &out); err != nil {
		return core.WeeklyTask{}, err
	}
	return out.ToTask()
}

func (c *Client) UpdateTask(ctx context.Context, t core.WeeklyTask) (core.WeeklyTask, error) {
	var out TaskDTO
	if err := c.do(ctx, http.MethodPut, "/planning/tasks/"+url.PathEscape(t.ID), t.UID, TaskToDTO(t), &out); err != nil {
		return core.WeeklyTask{}, err
	}
	return out.ToTask()
}

func (c *Client) DeleteTask(ctx context.Context, uid, id string) error {
	return c.do(ctx, http.MethodDelete, "/planning/tasks/"+url.PathEscape(id), uid, nil, nil)
}

func (c *Client) GetEarnings(ctx context.Context, uid string, week calendar.YearWeek) (core.Revenue, error) {
	var out EarningsDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/planning/earnings/%d/%d", week.Year, week.Week), uid, nil, &out); err != nil {
		return core.Revenue{}, err
	}
	return out.ToRevenue(), nil
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", "", nil, nil)
}
