package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerRendersComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger = WithComponent(logger, "generation")
	logger.Info("task queued", String(FieldTaskID, "abc"), Int("position", 2))

	line := buf.String()
	if !strings.Contains(line, "INFO generation: task queued") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "task_id=abc") {
		t.Fatalf("expected task_id attr, got %q", line)
	}
	if !strings.Contains(line, "position=2") {
		t.Fatalf("expected position attr, got %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger.Warn("submission failed", String("detail", "engine rejected node 4"))

	if !strings.Contains(buf.String(), `detail="engine rejected node 4"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestPrettyHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger.Info("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
	logger.Error("kept")
	if !strings.Contains(buf.String(), "ERROR kept") {
		t.Fatalf("expected error line, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing happens", Error(nil))
}
