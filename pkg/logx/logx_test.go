package logx

import (
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("team")
	if logger == nil {
		t.Fatal("Expected NewLogger to return non-nil instance")
	}
	if logger.GetComponent() != "team" {
		t.Errorf("Expected component 'team', got %q", logger.GetComponent())
	}
}

func TestWithComponent(t *testing.T) {
	base := NewLogger("orch")
	derived := base.WithComponent("specialist:dev")

	if derived.GetComponent() != "specialist:dev" {
		t.Errorf("Expected derived component 'specialist:dev', got %q", derived.GetComponent())
	}
	if base.GetComponent() != "orch" {
		t.Errorf("Expected base component unchanged, got %q", base.GetComponent())
	}
}

func TestLogBufferCapture(t *testing.T) {
	logger := NewLogger("buffer-test")
	logger.Info("workflow %s started", "wf-123")

	entries := GetRecentLogEntries("buffer-test", time.Time{})
	if len(entries) == 0 {
		t.Fatal("Expected log entry captured in buffer")
	}

	last := entries[len(entries)-1]
	if last.Level != string(LevelInfo) {
		t.Errorf("Expected INFO level, got %s", last.Level)
	}
	if last.Message != "workflow wf-123 started" {
		t.Errorf("Unexpected message: %q", last.Message)
	}
}

func TestLogBufferBounded(t *testing.T) {
	buf := &InMemoryLogBuffer{maxSize: 10}
	for i := 0; i < 25; i++ {
		buf.AddLogEntry(&LogEntry{Component: "x", Message: "m"})
	}
	if got := len(buf.GetLogEntries("", time.Time{})); got != 10 {
		t.Errorf("Expected buffer capped at 10 entries, got %d", got)
	}
}

func TestDebugGate(t *testing.T) {
	SetDebug(false)
	if IsDebugEnabled() {
		t.Error("Expected debug disabled")
	}
	SetDebug(true)
	if !IsDebugEnabled() {
		t.Error("Expected debug enabled")
	}
	SetDebug(false)
}
