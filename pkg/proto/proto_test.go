package proto

import (
	"testing"
)

func TestParseActor(t *testing.T) {
	tests := []struct {
		input    string
		expected Actor
		wantErr  bool
	}{
		{"ba", ActorBA, false},
		{"dev", ActorDev, false},
		{"developer", ActorDev, false},
		{"tester", ActorTester, false},
		{"qa", ActorTester, false},
		{"finish", ActorFinish, false},
		{"FINISH", ActorFinish, false},
		{" Dev ", ActorDev, false},
		{"manager", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		actor, err := ParseActor(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseActor(%q): expected error, got %q", tt.input, actor)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseActor(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if actor != tt.expected {
			t.Errorf("ParseActor(%q) = %q, want %q", tt.input, actor, tt.expected)
		}
	}
}

func TestActorIsSpecialist(t *testing.T) {
	for _, a := range []Actor{ActorBA, ActorDev, ActorTester} {
		if !a.IsSpecialist() {
			t.Errorf("Expected %s to be a specialist", a)
		}
	}
	if ActorFinish.IsSpecialist() {
		t.Error("Expected finish not to be a specialist")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	// The suspend state must stay resumable.
	nonTerminal := []Status{StatusPending, StatusRunning, StatusWaitingForClarification}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}
}

func TestFailureReasonIsTransient(t *testing.T) {
	if !ReasonUpstreamUnavailable.IsTransient() {
		t.Error("Expected upstream_unavailable to be transient")
	}
	if !ReasonTimeout.IsTransient() {
		t.Error("Expected timeout to be transient")
	}
	if ReasonSchemaValidationExhausted.IsTransient() {
		t.Error("Expected schema_validation_exhausted to be non-retryable")
	}
	if ReasonIterationBudgetExhausted.IsTransient() {
		t.Error("Expected iteration_budget_exhausted to be non-retryable")
	}
}

func TestMessageLogAppendOnly(t *testing.T) {
	var log MessageLog

	log.Append(RoleUser, "add a health check endpoint")
	log.Append(RoleManager, "routing to ba")
	log.Append(RoleBA, "analysis complete")

	if log.Len() != 3 {
		t.Fatalf("Expected 3 entries, got %d", log.Len())
	}

	msgs := log.Messages()
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleManager || msgs[2].Role != RoleBA {
		t.Error("Expected messages in append order")
	}

	// Mutating the returned slice must not affect the log.
	msgs[0].Content = "tampered"
	if log.Messages()[0].Content != "add a health check endpoint" {
		t.Error("Expected log entries to be isolated from caller mutation")
	}
}

func TestMessageLogTail(t *testing.T) {
	var log MessageLog
	for i := 0; i < 5; i++ {
		log.Append(RoleManager, "pass")
	}

	if got := len(log.Tail(2)); got != 2 {
		t.Errorf("Tail(2) returned %d entries", got)
	}
	if got := len(log.Tail(10)); got != 5 {
		t.Errorf("Tail(10) returned %d entries, want all 5", got)
	}
}

func TestBAResponseNeedsClarification(t *testing.T) {
	resp := &BAResponse{Title: "t", Description: "d"}
	if resp.NeedsClarification() {
		t.Error("Expected no clarification needed without questions")
	}
	resp.Questions = []string{"Which port should the endpoint listen on?"}
	if !resp.NeedsClarification() {
		t.Error("Expected clarification needed with questions")
	}
}

func TestTestPlanHasUnresolvedDefects(t *testing.T) {
	plan := &TestPlan{Title: "review", RiskAssessment: RiskAssessment{Level: RiskLow, Summary: "clean"}}
	if plan.HasUnresolvedDefects() {
		t.Error("Expected no defects with empty concerns")
	}
	plan.RiskAssessment.Concerns = []string{"handler ignores write error"}
	if !plan.HasUnresolvedDefects() {
		t.Error("Expected unresolved defects with concerns present")
	}
}
