package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" info ", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"", slog.LevelDebug},
		{"verbose", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := levelFromString(tt.input); got != tt.want {
			t.Errorf("levelFromString(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "key", "global")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=global") {
		t.Errorf("expected warn line with attributes, got %s", out)
	}
}
