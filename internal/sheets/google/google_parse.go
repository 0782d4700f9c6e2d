package google

import (
	"strconv"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	ports "fleemy/internal/sheets"
)

// Revenue sheet columns: UID, Week, Paid, Unpaid, Pending, Tasks, Total, Hours, Events.
func weekRowValues(r ports.WeekRow) []any {
	return []any{
		r.UID,
		r.Week.String(),
		r.Revenue.Paid.String(),
		r.Revenue.Unpaid.String(),
		r.Revenue.Pending.String(),
		r.Revenue.TasksTotal.String(),
		r.Revenue.Total().String(),
		r.Hours,
		r.Events,
	}
}

// Events sheet columns: UID, Date, Day, Start, End, Client, Description, Status, Amount.
func eventRowValues(r ports.EventRow) []any {
	return []any{
		r.UID,
		r.Date.Format("2006-01-02"),
		string(r.Event.Day),
		string(r.Event.Start),
		string(r.Event.End),
		r.Event.ClientName,
		r.Event.Description,
		string(r.Event.Status),
		r.Amount.String(),
	}
}

// findWeekRow returns the last row matching (uid, week). Header and malformed
// rows are skipped.
func findWeekRow(values [][]interface{}, uid string, week calendar.YearWeek) (ports.WeekRow, bool) {
	var (
		out   ports.WeekRow
		found bool
	)
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 6 || cols[0] != uid || cols[1] != week.String() {
			continue
		}
		row := ports.WeekRow{UID: uid, Week: week}
		amounts := []*core.Money{&row.Revenue.Paid, &row.Revenue.Unpaid, &row.Revenue.Pending, &row.Revenue.TasksTotal}
		ok := true
		for i, dst := range amounts {
			cents, parsed := parseEurosToCents(cols[2+i])
			if !parsed {
				ok = false
				break
			}
			*dst = core.Cents(cents)
		}
		if !ok {
			continue
		}
		if len(cols) > 7 {
			row.Hours, _ = strconv.Atoi(cols[7])
		}
		if len(cols) > 8 {
			row.Events, _ = strconv.Atoi(cols[8])
		}
		out, found = row, true
	}
	return out, found
}
