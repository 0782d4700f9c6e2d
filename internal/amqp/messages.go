package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/planning"
)

// ChangeMessage announces a confirmed planning mutation. Consumers reload the
// affected week instead of trusting a payload.
type ChangeMessage struct {
	UID       string    `json:"uid"`
	Kind      string    `json:"kind"`
	EntityID  string    `json:"entity_id"`
	Year      int       `json:"year,omitempty"`
	Week      int       `json:"week,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(c planning.Change) *ChangeMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		UID:       c.UID,
		Kind:      string(c.Kind),
		EntityID:  c.EntityID,
		Year:      c.Week.Year,
		Week:      c.Week.Week,
		Timestamp: ts,
	}
}

// YearWeek is the week touched by the change; ok is false for task changes.
func (m *ChangeMessage) YearWeek() (calendar.YearWeek, bool) {
	if m.Year == 0 || m.Week == 0 {
		return calendar.YearWeek{}, false
	}
	return calendar.YearWeek{Year: m.Year, Week: m.Week}, true
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UID == "" {
		return nil, fmt.Errorf("change message without uid")
	}
	return &msg, nil
}
