package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"fleemy/internal/calendar"
	ports "fleemy/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base names without year; the week-year of each row is prefixed.
	revenueBase string
	eventsBase  string
}

var _ ports.Exporter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_REVENUE_SHEET_NAME (default "Revenue"),
// GOOGLE_EVENTS_SHEET_NAME (default "Events").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	revenueBase := strings.TrimSpace(os.Getenv("GOOGLE_REVENUE_SHEET_NAME"))
	if revenueBase == "" {
		revenueBase = "Revenue"
	}
	eventsBase := strings.TrimSpace(os.Getenv("GOOGLE_EVENTS_SHEET_NAME"))
	if eventsBase == "" {
		eventsBase = "Events"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		revenueBase:   revenueBase,
		eventsBase:    eventsBase,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		var err error
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) append(ctx context.Context, sheet string, values [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:I", sheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// AppendWeek writes one revenue row to "<year> <revenue sheet>".
func (c *Client) AppendWeek(ctx context.Context, row ports.WeekRow) (string, error) {
	if row.UID == "" {
		return "", errors.New("week row without uid")
	}
	sheet := yearPrefixedName(c.revenueBase, row.Week.Year)
	return c.append(ctx, sheet, [][]any{weekRowValues(row)})
}

// AppendEvents writes the rows to the events sheet of the first row's year.
func (c *Client) AppendEvents(ctx context.Context, rows []ports.EventRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, eventRowValues(r))
	}
	year, _ := calendar.ISOWeek(rows[0].Date)
	return c.append(ctx, yearPrefixedName(c.eventsBase, year), values)
}

// ReadWeek scans the revenue sheet for the last row of (uid, week).
func (c *Client) ReadWeek(ctx context.Context, uid string, week calendar.YearWeek) (ports.WeekRow, bool, error) {
	if c.svc == nil {
		return ports.WeekRow{}, false, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:I", yearPrefixedName(c.revenueBase, week.Year))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return ports.WeekRow{}, false, fmt.Errorf("read %s: %w", rng, err)
	}
	row, ok := findWeekRow(resp.Values, uid, week)
	return row, ok, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func parseEurosToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Normalize decimal comma
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if f < 0 {
		return int64((f * 100.0) - 0.5), true
	}
	return int64((f * 100.0) + 0.5), true
}
