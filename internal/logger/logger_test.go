package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTextOutputFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = newLogger(&buf, WarnLevel, "text")
	t.Cleanup(func() { defaultLogger = nil })

	Info("hidden %d", 1)
	Warn("skipped %s", "Jokic")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] skipped Jokic") {
		t.Errorf("missing warn line: %q", out)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = newLogger(&buf, DebugLevel, "json")
	t.Cleanup(func() { defaultLogger = nil })

	Debug("cache hit for %s", "PTS")

	var entry map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if entry["level"] != "debug" || entry["msg"] != "cache hit for PTS" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["time"] == "" {
		t.Error("missing time field")
	}
}

func TestUninitializedLoggerIsSilent(t *testing.T) {
	defaultLogger = nil
	Info("no panic")
	Error("no panic")
}
