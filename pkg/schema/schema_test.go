package schema

import (
	"errors"
	"strings"
	"testing"

	"devteam/pkg/proto"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", "Here you go:\n{\"a\": 1}\nHope that helps!", `{"a": 1}`},
		{"whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateRouteDecision(t *testing.T) {
	decision, err := ValidateRouteDecision(`{"next_actor": "dev", "reasoning": "requirements are ready"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.NextActor != proto.ActorDev {
		t.Errorf("expected dev, got %s", decision.NextActor)
	}
	if decision.Reasoning != "requirements are ready" {
		t.Errorf("unexpected reasoning: %q", decision.Reasoning)
	}
}

func TestValidateRouteDecisionFenced(t *testing.T) {
	raw := "```json\n{\"next_actor\": \"FINISH\", \"reasoning\": \"all done\"}\n```"
	decision, err := ValidateRouteDecision(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.NextActor != proto.ActorFinish {
		t.Errorf("expected finish, got %s", decision.NextActor)
	}
}

func TestValidateRouteDecisionErrors(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantField string
	}{
		{"not json", "I think we should send this to the developer.", "$"},
		{"missing actor", `{"reasoning": "because"}`, "next_actor"},
		{"bad enum", `{"next_actor": "architect", "reasoning": "because"}`, "next_actor"},
		{"missing reasoning", `{"next_actor": "ba"}`, "reasoning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRouteDecision(tt.raw)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected field error on %q, got %v", tt.wantField, verr.Fields)
			}
		})
	}
}

func TestValidateBAResponse(t *testing.T) {
	raw := `{
		"title": "User login",
		"description": "Add login with email and password",
		"user_stories": [
			{"id": "US-1", "title": "Login form", "description": "As a user I want to log in", "acceptance_criteria": ["form validates email"]}
		],
		"questions": [],
		"priority": "high"
	}`
	resp, err := ValidateBAResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Title != "User login" {
		t.Errorf("unexpected title: %q", resp.Title)
	}
	if len(resp.UserStories) != 1 || resp.UserStories[0].ID != "US-1" {
		t.Errorf("user stories not decoded: %+v", resp.UserStories)
	}
	if resp.NeedsClarification() {
		t.Error("no questions, should not need clarification")
	}
}

func TestValidateBAResponseBadPriority(t *testing.T) {
	raw := `{"title": "t", "description": "d", "priority": "urgent"}`
	_, err := ValidateBAResponse(raw)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "priority") {
		t.Errorf("expected priority error, got %v", verr)
	}
}

func TestValidateImplementationResult(t *testing.T) {
	raw := `{
		"success": true,
		"plan": [{"path": "main.go", "summary": "entry point"}],
		"files": [{"path": "main.go", "content": "package main"}],
		"explanations": {"main.go": "Implemented the entry point."},
		"created_files": ["main.go"]
	}`
	result, err := ValidateImplementationResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if len(result.Files) != 1 || result.Files[0].Path != "main.go" {
		t.Errorf("files not decoded: %+v", result.Files)
	}
	if result.Explanations["main.go"] == "" {
		t.Errorf("explanations not decoded: %+v", result.Explanations)
	}
}

func TestValidateImplementationResultProseExplanations(t *testing.T) {
	raw := `{
		"success": true,
		"files": [{"path": "main.go", "content": "package main"}],
		"explanations": "Implemented the entry point."
	}`
	_, err := ValidateImplementationResult(raw)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "explanations") {
		t.Errorf("expected explanations error, got %v", verr)
	}
}

func TestValidateImplementationResultMissingSuccess(t *testing.T) {
	_, err := ValidateImplementationResult(`{"files": []}`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Fields[0].Field != "success" {
		t.Errorf("expected success error, got %v", verr.Fields)
	}
}

func TestValidateTestPlan(t *testing.T) {
	raw := `{
		"title": "Login test plan",
		"description": "Coverage for the login flow",
		"tests": [{"path": "login_test.go", "content": "package main"}],
		"risk_assessment": {
			"level": "medium",
			"summary": "One edge case uncovered",
			"concerns": ["empty password accepted"],
			"recommendations": ["add validation"]
		}
	}`
	plan, err := ValidateTestPlan(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.RiskAssessment.Level != proto.RiskMedium {
		t.Errorf("unexpected level: %q", plan.RiskAssessment.Level)
	}
	if !plan.HasUnresolvedDefects() {
		t.Error("concerns present, should report defects")
	}
}

func TestValidateTestPlanBadLevel(t *testing.T) {
	raw := `{"title": "t", "risk_assessment": {"level": "severe", "summary": "s"}}`
	_, err := ValidateTestPlan(raw)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "risk_assessment.level") {
		t.Errorf("expected level error, got %v", verr)
	}
}

func TestValidateDispatch(t *testing.T) {
	got, err := Validate(RouteDecisionV1, `{"next_actor": "tester", "reasoning": "code is written"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decision, ok := got.(*proto.RouteDecision)
	if !ok {
		t.Fatalf("expected *proto.RouteDecision, got %T", got)
	}
	if decision.NextActor != proto.ActorTester {
		t.Errorf("expected tester, got %s", decision.NextActor)
	}

	if _, err := Validate(ID("bogus.v9"), "{}"); err == nil {
		t.Error("expected error for unknown schema")
	}
}

func TestForActor(t *testing.T) {
	id, err := ForActor(proto.ActorDev)
	if err != nil || id != ImplementationResultV1 {
		t.Errorf("ForActor(dev) = %v, %v", id, err)
	}
	if _, err := ForActor(proto.ActorFinish); err == nil {
		t.Error("expected error for finish")
	}
}

func TestValidationErrorDetail(t *testing.T) {
	verr := &ValidationError{Schema: BAResponseV1}
	verr.add("title", "required field is missing")
	verr.add("priority", "must be a string")
	detail := verr.Detail()
	if !strings.Contains(detail, "title") || !strings.Contains(detail, "priority") {
		t.Errorf("detail missing fields: %q", detail)
	}
}
