package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelDebug)

	l.Info(context.Background(), "candidate eliminated", String("gesture", "spiral"), Float64("score", 1.5))

	out := buf.String()
	if !strings.Contains(out, "candidate eliminated") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "gesture=spiral") {
		t.Errorf("expected gesture field in output, got %q", out)
	}
	if !strings.Contains(out, "source=") {
		t.Errorf("expected source field in output, got %q", out)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)

	l.Info(context.Background(), "hidden")
	l.Warn(context.Background(), "shown", Error(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "boom") {
		t.Errorf("expected warn record with error, got %q", out)
	}
}

func TestNamed_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo).Named("coordinator")

	l.Info(context.Background(), "ready")

	if !strings.Contains(buf.String(), "component=coordinator") {
		t.Errorf("expected component field, got %q", buf.String())
	}
}

func TestInitAndGet(t *testing.T) {
	if err := Init("debug"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if Named("test") == nil {
		t.Fatal("named logger is nil")
	}
}

func TestSetLevelString(t *testing.T) {
	for _, level := range []string{"debug", "info", "", "WARN", "warning", "error"} {
		if err := SetLevelString(level); err != nil {
			t.Errorf("SetLevelString(%q) error = %v", level, err)
		}
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "discarded")
	l.Named("x").Debug(context.Background(), "discarded")
}
