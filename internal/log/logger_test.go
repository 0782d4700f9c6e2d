package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestComponentIsStamped(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, JSON: true, Level: slog.LevelDebug})

	logger.Info("first")
	logger.WithComponent(ComponentSync).With(FieldUID, "u1").Debug("second")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0][FieldComponent] != ComponentApp {
		t.Errorf("component = %v", lines[0][FieldComponent])
	}
	if lines[1][FieldComponent] != ComponentSync || lines[1][FieldUID] != "u1" {
		t.Errorf("line = %v", lines[1])
	}
}

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("fallback logger = %+v", l)
	}
	want := Discard()
	ctx := context.WithValue(context.Background(), LoggerContextKey, want)
	if got := FromContext(ctx); got != want {
		t.Error("expected the logger stored in the context")
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Output: &buf, JSON: true}))
		r := httptest.NewRequest("GET", "/api/planning?view=week", nil)
		sl.LogHTTPEnd(context.Background(), r, tt.status, 12, "10.0.0.1")

		lines := decodeLines(t, &buf)
		if len(lines) != 1 {
			t.Fatalf("status %d: %d lines", tt.status, len(lines))
		}
		got := lines[0]
		if got["level"] != tt.level || got[FieldQuery] != "view=week" || got[FieldClientIP] != "10.0.0.1" {
			t.Errorf("status %d: %v", tt.status, got)
		}
		if got[FieldSuccess] != (tt.status < 400) {
			t.Errorf("status %d: success = %v", tt.status, got[FieldSuccess])
		}
	}
}

func TestLogMutation(t *testing.T) {
	var buf bytes.Buffer
	NewStructuredLogger(New(Config{Output: &buf, JSON: true})).
		LogMutation(context.Background(), OpCreate, "u1", "e1", "pending_sync")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0][FieldOutcome] != "pending_sync" || lines[0][FieldOperation] != OpCreate || lines[0][FieldEntityID] != "e1" {
		t.Errorf("line = %v", lines[0])
	}
}
