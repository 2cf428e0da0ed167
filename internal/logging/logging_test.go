package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	defer func() {
		SetOutput(os.Stdout)
		SetLevel(LevelInfo)
	}()

	Debug("chunk 3 retried")
	Info("table done")
	Warn("size lookup degraded")
	Error("merge failed")

	out := buf.String()
	if strings.Contains(out, "chunk 3 retried") || strings.Contains(out, "table done") {
		t.Errorf("messages below level leaked through: %s", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "[ERROR]") {
		t.Errorf("expected WARN and ERROR lines, got: %s", out)
	}
}

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	defer func() {
		SetOutput(os.Stdout)
	}()

	Info("synced %d rows", 42)

	out := buf.String()
	if !strings.Contains(out, "[INFO] synced 42 rows") {
		t.Errorf("unexpected format: %s", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("log line missing trailing newline: %q", out)
	}
}
