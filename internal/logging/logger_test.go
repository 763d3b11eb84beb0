package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/migration-sim/internal/events"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		logsDebug bool
		logsInfo  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			logger.Info("info message")

			if got := strings.Contains(buf.String(), "debug message"); got != tt.logsDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.logsDebug)
			}
			if got := strings.Contains(buf.String(), "info message"); got != tt.logsInfo {
				t.Errorf("info logged = %v, want %v", got, tt.logsInfo)
			}
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLogger("info", &buf).Info("flow created", "id", "flow_1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["msg"] != "flow created" || line["id"] != "flow_1" {
		t.Errorf("line = %v, want msg and id fields", line)
	}
}

func TestEventSink_WritesEachEventOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	sink, err := OpenEventSink(path)
	if err != nil {
		t.Fatalf("OpenEventSink() error: %v", err)
	}

	first := []events.Event{{ID: "event_1", Type: events.TypeFlowChange}}
	second := append(first, events.Event{ID: "event_2", Type: events.TypeCapacityLimit})

	if n, err := sink.Write(first); err != nil || n != 1 {
		t.Fatalf("Write(first) = %d, %v, want 1, nil", n, err)
	}
	if n, err := sink.Write(second); err != nil || n != 1 {
		t.Fatalf("Write(second) = %d, %v, want 1, nil", n, err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e events.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		ids = append(ids, e.ID)
	}
	if len(ids) != 2 || ids[0] != "event_1" || ids[1] != "event_2" {
		t.Errorf("ids = %v, want [event_1 event_2]", ids)
	}
}

func TestEventSink_NilSafe(t *testing.T) {
	sink, err := OpenEventSink("")
	if err != nil || sink != nil {
		t.Fatalf("OpenEventSink(\"\") = %v, %v, want nil, nil", sink, err)
	}
	if n, err := sink.Write([]events.Event{{ID: "event_1"}}); n != 0 || err != nil {
		t.Errorf("nil Write() = %d, %v, want 0, nil", n, err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("nil Close() error: %v", err)
	}
}
