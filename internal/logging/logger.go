// Package logging provides leveled logging for the simulator and a JSONL
// sink for simulation events.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/talgya/migration-sim/internal/events"
)

// ParseLevel maps a level name to a slog.Level.
// Supported values: "debug", "info", "warn", "error" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing text to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewJSONLogger creates a leveled slog.Logger writing JSON lines to w.
func NewJSONLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// EventSink appends simulation events to a JSONL file.
// It is safe for concurrent use. A nil EventSink is safe to use;
// all methods are no-ops on nil receiver.
type EventSink struct {
	mu      sync.Mutex
	file    *os.File
	written map[string]bool
}

// OpenEventSink opens path for append, creating parent directories.
// An empty path returns a nil sink.
func OpenEventSink(path string) (*EventSink, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &EventSink{file: f, written: make(map[string]bool)}, nil
}

// Write appends the events not yet written by this sink, in order.
// It returns how many were written.
func (s *EventSink) Write(evs []events.Event) (int, error) {
	if s == nil || s.file == nil {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range evs {
		if s.written[e.ID] {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return n, err
		}
		data = append(data, '\n')
		if _, err := s.file.Write(data); err != nil {
			return n, err
		}
		s.written[e.ID] = true
		n++
	}
	return n, nil
}

// Close closes the underlying file. Safe to call on nil receiver.
func (s *EventSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.file.Close()
	s.file = nil
	return err
}
