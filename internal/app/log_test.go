package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestArkHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "20240615T143045Z",
			level:   slog.LevelInfo,
			message: "snapshot created",
			want:    "2024-06-15T14:30:45Z\tINFO\t20240615T143045Z\tsnapshot created\n",
		},
		{
			name:    "debug level",
			opID:    "20240615T143046Z",
			level:   slog.LevelDebug,
			message: "verifying chain link",
			want:    "2024-06-15T14:30:45Z\tDEBUG\t20240615T143046Z\tverifying chain link\n",
		},
		{
			name:    "with record attrs",
			opID:    "20240615T143047Z",
			level:   slog.LevelInfo,
			message: "event appended",
			attrs:   []slog.Attr{slog.String("stream_id", "consult-1"), slog.Int("offset", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\t20240615T143047Z\tevent appended\tstream_id=consult-1\toffset=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &arkHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestArkHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &arkHandler{w: &buf, opID: "op-1"}

	// Add pre-set attrs
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "ledger")}).(*arkHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "append", 0)
	r.AddAttrs(slog.String("event_id", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=ledger") {
		t.Errorf("expected pre-set attr component=ledger, got: %q", got)
	}
	if !strings.Contains(got, "event_id=abc") {
		t.Errorf("expected record attr event_id=abc, got: %q", got)
	}
}

func TestArkHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &arkHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*arkHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestArkHandler_Enabled(t *testing.T) {
	h := &arkHandler{}
	// All levels should be enabled
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-op")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
