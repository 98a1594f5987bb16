package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "processor", slog.LevelInfo)
	log.With("job_id", "j1").Info("Shipments assembled", "count", 2)

	out := buf.String()
	for _, want := range []string{"component=processor", "job_id=j1", "count=2", `msg="Shipments assembled"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "x", slog.LevelWarn)
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopDiscards(t *testing.T) {
	NewNop().Error("nothing", "k", "v")
}
