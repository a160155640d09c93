package specialist

import (
	"encoding/json"
	"fmt"
	"strings"

	"devteam/pkg/proto"
)

const baSystemPrompt = `You are a business analyst on a software development team.
Analyze the user request and produce requirements with user stories.
If the request is too ambiguous to analyze, ask clarifying questions instead of guessing.

Respond with ONLY a JSON object:
{
  "title": "<short feature title>",
  "description": "<what is being built and why>",
  "user_stories": [
    {"id": "US-1", "title": "...", "description": "As a ... I want ...", "acceptance_criteria": ["..."]}
  ],
  "questions": ["<clarifying question, only when the request is ambiguous>"],
  "priority": "high" | "medium" | "low"
}`

const devSystemPrompt = `You are a developer on a software development team.
Implement the requirements as complete, working code files. Plan first, then write every file in full.
When the review reported concerns, address each one.

Respond with ONLY a JSON object:
{
  "success": true | false,
  "plan": [{"path": "<file path>", "summary": "<what this file does>"}],
  "files": [{"path": "<file path>", "content": "<complete file content>"}],
  "explanations": {"<file path>": "<explanation>"},
  "created_files": [],
  "error": "<only when success is false>"
}`

const testerSystemPrompt = `You are a tester on a software development team.
Review the implementation against the requirements. Write test files and assess the risk.
List every unresolved defect as a concern; an empty concerns list means the implementation is acceptable.

Respond with ONLY a JSON object:
{
  "title": "<test plan title>",
  "description": "<review scope>",
  "tests": [{"path": "<test file path>", "content": "<complete test file content>", "purpose": "..."}],
  "risk_assessment": {
    "level": "low" | "medium" | "high" | "critical",
    "summary": "<overall assessment>",
    "concerns": ["<unresolved defect>"],
    "recommendations": ["<suggested improvement>"]
  }
}`

func systemPromptFor(role proto.Actor) string {
	switch role {
	case proto.ActorBA:
		return baSystemPrompt
	case proto.ActorDev:
		return devSystemPrompt
	case proto.ActorTester:
		return testerSystemPrompt
	default:
		return ""
	}
}

// buildPrompt assembles the role's task context from workflow state, kept
// within the prompt token budget.
func (a *Adapter) buildPrompt(role proto.Actor, view proto.StateView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User request:\n%s\n", view.UserRequest)

	switch role {
	case proto.ActorBA:
		// Clarification answers arrive as user messages after the original
		// request; give the analyst the conversation.
		for i := range view.Messages {
			msg := &view.Messages[i]
			if msg.Role == proto.RoleUser && msg.Content != view.UserRequest {
				fmt.Fprintf(&b, "\nAdditional input from the user:\n%s\n", msg.Content)
			}
		}

	case proto.ActorDev:
		if view.BAResult != nil {
			b.WriteString("\nRequirements:\n")
			b.WriteString(asJSON(view.BAResult))
			b.WriteString("\n")
		}
		if view.TesterResult != nil && view.TesterResult.HasUnresolvedDefects() {
			b.WriteString("\nThe review of your previous implementation reported these concerns, address all of them:\n")
			for _, concern := range view.TesterResult.RiskAssessment.Concerns {
				fmt.Fprintf(&b, "- %s\n", concern)
			}
		}
		if view.DevResult != nil && !view.DevResult.Success {
			fmt.Fprintf(&b, "\nYour previous attempt failed: %s\n", view.DevResult.Error)
		}

	case proto.ActorTester:
		if view.BAResult != nil {
			b.WriteString("\nRequirements:\n")
			b.WriteString(asJSON(view.BAResult))
			b.WriteString("\n")
		}
		if view.DevResult != nil {
			b.WriteString("\nImplementation to review:\n")
			b.WriteString(asJSON(view.DevResult))
			b.WriteString("\n")
		}
	}

	return a.tokens.TruncateToTokenLimit(b.String(), a.promptBudget)
}

func asJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
