package remote

import (
	"time"

	"fleemy/internal/core"
)

// Wire types of the planning REST API.
type (
	EventDTO struct {
		ID          string     `json:"id,omitempty"`
		UID         string     `json:"uid,omitempty"`
		Week        int        `json:"week"`
		Year        int        `json:"year"`
		Description string     `json:"description"`
		Client      string     `json:"client"`
		Day         string     `json:"day"`
		StartTime   string     `json:"start_time"`
		EndTime     string     `json:"end_time"`
		Status      string     `json:"status"`
		HourlyRate  *float64   `json:"hourly_rate,omitempty"`
		CreatedAt   *time.Time `json:"created_at,omitempty"`
	}

	SlotDTO struct {
		Day   string `json:"day"`
		Start string `json:"start"`
		End   string `json:"end"`
	}

	TaskDTO struct {
		ID        string    `json:"id,omitempty"`
		UID       string    `json:"uid,omitempty"`
		Name      string    `json:"name"`
		Price     float64   `json:"price"`
		Color     string    `json:"color"`
		Icon      string    `json:"icon"`
		TimeSlots []SlotDTO `json:"time_slots"`
	}

	PeriodDTO struct {
		Events []EventDTO `json:"events"`
		Tasks  []TaskDTO  `json:"tasks"`
	}

	EarningsDTO struct {
		Paid       float64 `json:"paid"`
		Unpaid     float64 `json:"unpaid"`
		Pending    float64 `json:"pending"`
		TasksTotal float64 `json:"tasks_total"`
	}

	ErrorDTO struct {
		Detail string `json:"detail"`
	}
)

func EventToDTO(e core.CalendarEvent) EventDTO {
	d := EventDTO{
		ID:          e.ID,
		UID:         e.UID,
		Week:        e.Week,
		Year:        e.Year,
		Description: e.Description,
		Client:      e.ClientName,
		Day:         string(e.Day),
		StartTime:   string(e.Start),
		EndTime:     string(e.End),
		Status:      string(e.Status),
	}
	if e.HourlyRate.Cents > 0 {
		r := e.HourlyRate.Euros()
		d.HourlyRate = &r
	}
	return d
}

// ToEvent converts and validates a wire event. Clocks are normalised so
// "9:00" and "09:00" index the same slot.
func (d EventDTO) ToEvent() (core.CalendarEvent, error) {
	day, err := core.ParseWeekday(d.Day)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	start, err := core.ParseClock(d.StartTime)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	end, err := core.ParseClock(d.EndTime)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	status, err := core.ParseStatus(d.Status)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	e := core.CalendarEvent{
		ID:          d.ID,
		UID:         d.UID,
		Description: d.Description,
		ClientName:  d.Client,
		Day:         day,
		Start:       start,
		End:         end,
		Status:      status,
		Week:        d.Week,
		Year:        d.Year,
	}
	if d.HourlyRate != nil {
		e.HourlyRate = core.FromEuros(*d.HourlyRate)
	}
	return e, nil
}

func TaskToDTO(t core.WeeklyTask) TaskDTO {
	d := TaskDTO{
		ID:        t.ID,
		UID:       t.UID,
		Name:      t.Name,
		Price:     t.Price.Euros(),
		Color:     t.Color,
		Icon:      t.Icon,
		TimeSlots: make([]SlotDTO, 0, len(t.Slots)),
	}
	for _, s := range t.Slots {
		d.TimeSlots = append(d.TimeSlots, SlotDTO{Day: string(s.Day), Start: string(s.Start), End: string(s.End)})
	}
	return d
}

func (d TaskDTO) ToTask() (core.WeeklyTask, error) {
	t := core.WeeklyTask{
		ID:    d.ID,
		UID:   d.UID,
		Name:  d.Name,
		Price: core.FromEuros(d.Price),
		Color: d.Color,
		Icon:  d.Icon,
	}
	for _, s := range d.TimeSlots {
		day, err := core.ParseWeekday(s.Day)
		if err != nil {
			return core.WeeklyTask{}, err
		}
		start, err := core.ParseClock(s.Start)
		if err != nil {
			return core.WeeklyTask{}, err
		}
		end, err := core.ParseClock(s.End)
		if err != nil {
			return core.WeeklyTask{}, err
		}
		t.Slots = append(t.Slots, core.TaskSlot{Day: day, Start: start, End: end})
	}
	return t, nil
}

func (d EarningsDTO) ToRevenue() core.Revenue {
	return core.Revenue{
		Paid:       core.FromEuros(d.Paid),
		Unpaid:     core.FromEuros(d.Unpaid),
		Pending:    core.FromEuros(d.Pending),
		TasksTotal: core.FromEuros(d.TasksTotal),
	}
}

func RevenueToDTO(r core.Revenue) EarningsDTO {
	return EarningsDTO{
		Paid:       r.Paid.Euros(),
		Unpaid:     r.Unpaid.Euros(),
		Pending:    r.Pending.Euros(),
		TasksTotal: r.TasksTotal.Euros(),
	}
}
