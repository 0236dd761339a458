package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"treadle/internal/services"
)

func TestConsoleHandlerRendersFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("stage started", String(FieldStage, "transcribe"), Int("attempt", 1))

	out := buf.String()
	if !strings.Contains(out, "stage started") {
		t.Fatalf("message missing from output: %q", out)
	}
	if !strings.Contains(out, "stage=transcribe") {
		t.Errorf("stage field missing: %q", out)
	}
	if !strings.Contains(out, "attempt=1") {
		t.Errorf("attempt field missing: %q", out)
	}
}

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := NewComponentLogger(slog.New(newConsoleHandler(&buf, lvl)), "cache")

	logger.Info("entry published")

	out := buf.String()
	if !strings.Contains(out, "[cache]") {
		t.Fatalf("component tag missing: %q", out)
	}
	if strings.Contains(out, "component=") {
		t.Errorf("component should not repeat as key=value: %q", out)
	}
}

func TestJSONHandlerShape(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl))

	logger.Warn("cache degraded", String(FieldErrorHint, "check cache directory"))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json log line: %v", err)
	}
	if decoded["level"] != "warn" {
		t.Errorf("level = %v, want warn", decoded["level"])
	}
	if decoded["msg"] != "cache degraded" {
		t.Errorf("msg = %v", decoded["msg"])
	}
	if decoded[FieldErrorHint] != "check cache directory" {
		t.Errorf("error_hint = %v", decoded[FieldErrorHint])
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	base := slog.New(newJSONHandler(&buf, lvl))

	ctx := services.WithJobID(context.Background(), "job-42")
	ctx = services.WithStage(ctx, "align")

	WithContext(ctx, base).Info("hello")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json log line: %v", err)
	}
	if decoded[FieldJobID] != "job-42" {
		t.Errorf("job_id = %v", decoded[FieldJobID])
	}
	if decoded[FieldStage] != "align" {
		t.Errorf("stage = %v", decoded[FieldStage])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := NewNop()
	logger.Error("should vanish")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should report disabled")
	}
}
