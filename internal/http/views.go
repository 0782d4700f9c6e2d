package http

import (
	"fleemy/internal/core"
	"fleemy/internal/planning"
	"fleemy/internal/planning/remote"
	"fleemy/internal/schedule"
)

const dateLayout = "2006-01-02"

// Response bodies of the planning API. Events and tasks reuse the wire
// shape of the backend API with the local sync flag added.
type (
	eventView struct {
		remote.EventDTO
		PendingSync bool `json:"pending_sync,omitempty"`
	}

	taskView struct {
		remote.TaskDTO
		PendingSync bool `json:"pending_sync,omitempty"`
	}

	occurrenceView struct {
		TaskID string  `json:"task_id"`
		Name   string  `json:"name"`
		Color  string  `json:"color,omitempty"`
		Icon   string  `json:"icon,omitempty"`
		Price  float64 `json:"price"`
		Start  string  `json:"start"`
		End    string  `json:"end"`
	}

	cellView struct {
		Start   string           `json:"start"`
		Events  []eventView      `json:"events,omitempty"`
		Tasks   []occurrenceView `json:"tasks,omitempty"`
		Primary string           `json:"primary,omitempty"`
		Overlay string           `json:"overlay,omitempty"`
		Stacked bool             `json:"stacked,omitempty"`
	}

	columnView struct {
		Day   string     `json:"day"`
		Date  string     `json:"date"`
		Cells []cellView `json:"cells"`
	}

	weekGridView struct {
		Year    int          `json:"year"`
		Week    int          `json:"week"`
		Slots   []string     `json:"slots"`
		Columns []columnView `json:"columns"`
	}

	monthCellView struct {
		Date    string           `json:"date"`
		InMonth bool             `json:"in_month"`
		Weekend bool             `json:"weekend"`
		Events  []eventView      `json:"events,omitempty"`
		Tasks   []occurrenceView `json:"tasks,omitempty"`
	}

	monthGridView struct {
		Year  int             `json:"year"`
		Month int             `json:"month"`
		Cells []monthCellView `json:"cells"`
	}

	summaryView struct {
		remote.EarningsDTO
		Total          float64 `json:"total"`
		NotWorkedHours int     `json:"not_worked_hours"`
		Display        string  `json:"display"`
	}

	planningView struct {
		UID       string         `json:"uid"`
		View      string         `json:"view"`
		Anchor    string         `json:"anchor"`
		Year      int            `json:"year"`
		Week      int            `json:"week"`
		Month     int            `json:"month"`
		Loaded    bool           `json:"loaded"`
		Offline   bool           `json:"offline"`
		Notice    string         `json:"notice,omitempty"`
		Events    []eventView    `json:"events"`
		Tasks     []taskView     `json:"tasks"`
		WeekGrid  *weekGridView  `json:"week_grid,omitempty"`
		MonthGrid *monthGridView `json:"month_grid,omitempty"`
		Summary   *summaryView   `json:"summary,omitempty"`
	}

	clearWeekView struct {
		Deleted []eventView `json:"deleted"`
		Outcome string      `json:"outcome"`
	}
)

func toEventView(e core.CalendarEvent) eventView {
	return eventView{EventDTO: remote.EventToDTO(e), PendingSync: e.PendingSync}
}

func toEventViews(events []core.CalendarEvent) []eventView {
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, toEventView(e))
	}
	return out
}

func toTaskView(t core.WeeklyTask) taskView {
	return taskView{TaskDTO: remote.TaskToDTO(t), PendingSync: t.PendingSync}
}

func toOccurrences(in []schedule.TaskOccurrence) []occurrenceView {
	if len(in) == 0 {
		return nil
	}
	out := make([]occurrenceView, 0, len(in))
	for _, o := range in {
		out = append(out, occurrenceView{
			TaskID: o.Task.ID,
			Name:   o.Task.Name,
			Color:  o.Task.Color,
			Icon:   o.Task.Icon,
			Price:  o.Task.Price.Euros(),
			Start:  string(o.Slot.Start),
			End:    string(o.Slot.End),
		})
	}
	return out
}

func toWeekGridView(g schedule.WeekGrid) *weekGridView {
	v := &weekGridView{Year: g.Week.Year, Week: g.Week.Week, Slots: make([]string, 0, len(g.Slots))}
	for _, s := range g.Slots {
		v.Slots = append(v.Slots, string(s))
	}
	for _, col := range g.Columns {
		cv := columnView{Day: string(col.Day), Date: col.Date.Format(dateLayout), Cells: make([]cellView, 0, len(col.Cells))}
		for _, c := range col.Cells {
			cell := cellView{
				Start:   string(c.Start),
				Tasks:   toOccurrences(c.Tasks),
				Primary: string(c.Primary),
				Overlay: string(c.Overlay),
				Stacked: c.Stacked,
			}
			if len(c.Events) > 0 {
				cell.Events = toEventViews(c.Events)
			}
			cv.Cells = append(cv.Cells, cell)
		}
		v.Columns = append(v.Columns, cv)
	}
	return v
}

func toMonthGridView(g schedule.MonthGrid) *monthGridView {
	v := &monthGridView{Year: g.Year, Month: int(g.Month), Cells: make([]monthCellView, 0, len(g.Cells))}
	for _, c := range g.Cells {
		cell := monthCellView{
			Date:    c.Date.Format(dateLayout),
			InMonth: c.InMonth,
			Weekend: c.Weekend,
			Tasks:   toOccurrences(c.Tasks),
		}
		if len(c.Events) > 0 {
			cell.Events = toEventViews(c.Events)
		}
		v.Cells = append(v.Cells, cell)
	}
	return v
}

func toSummaryView(r core.Revenue) *summaryView {
	return &summaryView{
		EarningsDTO:    remote.RevenueToDTO(r),
		Total:          r.Total().Euros(),
		NotWorkedHours: r.NotWorkedHours,
		Display:        r.Total().String(),
	}
}

func toPlanningView(st planning.State) planningView {
	v := planningView{
		UID:     st.UID,
		View:    string(st.View),
		Anchor:  st.Anchor.Format(dateLayout),
		Year:    st.Week.Year,
		Week:    st.Week.Week,
		Month:   int(st.Month),
		Loaded:  st.Loaded,
		Offline: st.Offline,
		Notice:  st.Notice,
		Events:  toEventViews(st.Events),
		Tasks:   make([]taskView, 0, len(st.Tasks)),
	}
	for _, t := range st.Tasks {
		v.Tasks = append(v.Tasks, toTaskView(t))
	}
	return v
}
