package memory

import (
	"context"
	"testing"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/sheets"
)

func TestStoreAppendAndRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := calendar.YearWeek{Year: 2024, Week: 2}

	if _, err := s.AppendWeek(ctx, sheets.WeekRow{Week: w}); err == nil {
		t.Fatal("expected error for row without uid")
	}

	ref, err := s.AppendWeek(ctx, sheets.WeekRow{UID: "u1", Week: w, Revenue: core.Revenue{Paid: core.Cents(100)}})
	if err != nil || ref != "mem:week:1" {
		t.Fatalf("ref=%q err=%v", ref, err)
	}
	_, _ = s.AppendWeek(ctx, sheets.WeekRow{UID: "u1", Week: w, Revenue: core.Revenue{Paid: core.Cents(250)}})

	row, ok, err := s.ReadWeek(ctx, "u1", w)
	if err != nil || !ok || row.Revenue.Paid.Cents != 250 {
		t.Fatalf("latest row not returned: %+v ok=%v err=%v", row, ok, err)
	}
	if _, ok, _ := s.ReadWeek(ctx, "u2", w); ok {
		t.Fatal("row leaked across users")
	}

	ref, err = s.AppendEvents(ctx, []sheets.EventRow{{UID: "u1"}, {UID: "u1"}})
	if err != nil || ref != "mem:events:1-2" || len(s.Events()) != 2 {
		t.Fatalf("ref=%q err=%v", ref, err)
	}
}
