package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown", "command", "group create")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "group create") {
		t.Fatalf("expected warning with key/value, got %q", out)
	}
}

func TestNewUnknownLevelFallsBackToWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "chatty")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestLevelFromFlags(t *testing.T) {
	cases := []struct {
		debug, verbose, only bool
		configured, want     string
	}{
		{true, true, true, "error", LevelDebug},
		{false, true, false, "", LevelInfo},
		{false, false, true, "", LevelError},
		{false, false, false, "info", "info"},
		{false, false, false, "", LevelWarn},
	}
	for _, tc := range cases {
		if got := LevelFromFlags(tc.debug, tc.verbose, tc.only, tc.configured); got != tc.want {
			t.Fatalf("LevelFromFlags(%v,%v,%v,%q) = %q, want %q", tc.debug, tc.verbose, tc.only, tc.configured, got, tc.want)
		}
	}
}
