package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestStandardLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetFormatter(GetFormatter("json"))
	l.SetLevel(Debug)

	l.WithFields(map[string]any{"target": "neon"}).Debug("built %d handlers", 208)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not json: %v: %q", err, buf.String())
	}
	if got["msg"] != "built 208 handlers" {
		t.Errorf("msg: got %v", got["msg"])
	}
	if got["target"] != "neon" {
		t.Errorf("target field: got %v", got["target"])
	}
	if got["level"] != "debug" {
		t.Errorf("level: got %v", got["level"])
	}
}

func TestStandardLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetFormatter(GetFormatter("text"))
	l.SetLevel(Warn)

	l.Info("hidden")
	l.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("info message logged at warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn message missing: %q", buf.String())
	}
	if l.GetLevel() != Warn {
		t.Errorf("GetLevel: got %v, want %v", l.GetLevel(), Warn)
	}
}

func TestGetLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", Debug, false},
		{"", Info, false},
		{"INFO", Info, false},
		{"warning", Warn, false},
		{"error", Error, false},
		{"trace", Debug, true},
	}
	for _, tt := range tests {
		got, err := GetLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("GetLevel(%q): err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("GetLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNoOpLogger(t *testing.T) {
	l := NewNoOpLogger()
	l.SetLevel(Debug)
	if l.WithFields(map[string]any{"a": 1}).GetLevel() != Debug {
		t.Error("WithFields did not keep level")
	}
}
