package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{"default", *DefaultConfig(), false},
		{"debug", *DebugConfig(), false},
		{"bad level", Config{Level: "trace", Format: TextFormat, Output: StderrOutput}, true},
		{"bad format", Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, true},
		{"file without path", Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestLogger_FieldsAccumulate(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&Config{Level: DebugLevel, Format: JSONFormat, Output: StdoutOutput}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.WithComponent("parser").WithField("institution", "CBE").Info("parsed message")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "parser" {
		t.Errorf("component = %v, want parser", entry["component"])
	}
	if entry["institution"] != "CBE" {
		t.Errorf("institution = %v, want CBE", entry["institution"])
	}
	if entry["msg"] != "parsed message" {
		t.Errorf("msg = %v, want 'parsed message'", entry["msg"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&Config{Level: WarnLevel, Format: TextFormat, Output: StdoutOutput, DisableTimestamp: true}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.Info("hidden")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	discard := Discard()
	SetGlobalLogger(discard)
	if GetGlobalLogger() != discard {
		t.Error("SetGlobalLogger did not replace the global logger")
	}
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewWithWriter(&Config{Level: InfoLevel, Format: JSONFormat, Output: StdoutOutput}, &buf)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tracker := NewProgressTracker(ProgressConfig{
		Operation:   "batch",
		Total:       4,
		LogInterval: time.Hour,
		Logger:      log,
		Clock:       clock,
	})

	tracker.Record(true)
	tracker.Record(false)
	tracker.Record(true)
	now = now.Add(2 * time.Second)
	tracker.Record(true)

	stats := tracker.Complete()
	if stats.Current != 4 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 4 processed, 1 failed", stats)
	}
	if stats.Percentage != 100 {
		t.Errorf("Percentage = %v, want 100", stats.Percentage)
	}
	if stats.Rate != 2 {
		t.Errorf("Rate = %v, want 2", stats.Rate)
	}
	if !strings.Contains(buf.String(), "Operation completed") {
		t.Errorf("completion not logged: %s", buf.String())
	}
	if got := stats.String(); got != "batch: 4/4 (100.0%), 1 unmatched" {
		t.Errorf("String() = %q", got)
	}
}
