package routing

import (
	"context"
	"fmt"
	"strings"

	"devteam/pkg/agent"
	"devteam/pkg/logx"
	"devteam/pkg/metrics"
	"devteam/pkg/proto"
	"devteam/pkg/schema"
)

const routingSystemPrompt = `You are the manager of a software development team with three specialists:
- "ba": business analyst, turns the user request into requirements and user stories
- "dev": developer, implements the requirements as code files
- "tester": tester, reviews the implementation and produces tests plus a risk assessment

Decide who should act next, or "finish" when the work is done.

Rules:
- Requirements come before implementation, implementation before review.
- If the latest review reports unresolved concerns, the developer must address them before finishing.
- Respond with ONLY a JSON object, no prose:
{"next_actor": "ba" | "dev" | "tester" | "finish", "reasoning": "<one sentence>"}`

// recentMessageWindow bounds how much conversation the router sees.
const recentMessageWindow = 10

// LLMPolicy routes with the manager LLM, validating its output against the
// routing schema with a bounded re-prompt budget. Any failure falls back to
// the deterministic rules, so routing itself never fails a workflow.
type LLMPolicy struct {
	client     agent.LLMClient
	rules      *RulePolicy
	maxRetries int
	logger     *logx.Logger
	recorder   *metrics.Recorder
}

// NewLLMPolicy creates an LLM-backed routing policy with rule fallback.
func NewLLMPolicy(client agent.LLMClient, maxRetries int, recorder *metrics.Recorder) *LLMPolicy {
	return &LLMPolicy{
		client:     client,
		rules:      NewRulePolicy(),
		maxRetries: maxRetries,
		logger:     logx.NewLogger("routing"),
		recorder:   recorder,
	}
}

// Decide implements Policy.
func (p *LLMPolicy) Decide(ctx context.Context, view proto.StateView) (Outcome, error) {
	prompt := p.buildPrompt(view)
	messages := []agent.CompletionMessage{
		agent.NewSystemMessage(routingSystemPrompt),
		agent.NewUserMessage(prompt),
	}

	var malformed []string

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		resp, err := p.client.Complete(ctx, agent.NewCompletionRequest(messages))
		if err != nil {
			p.logger.Warn("Routing LLM call failed, falling back to rules: %v", err)
			return p.fallback(ctx, view, malformed)
		}

		decision, err := schema.ValidateRouteDecision(resp.Content)
		if err == nil {
			return Outcome{
				Decision:  enforceFeedbackLaw(view, *decision),
				Malformed: malformed,
			}, nil
		}

		verr, ok := err.(*schema.ValidationError)
		if !ok {
			p.logger.Warn("Routing decision rejected, falling back to rules: %v", err)
			return p.fallback(ctx, view, malformed)
		}

		malformed = append(malformed, resp.Content)
		if p.recorder != nil {
			p.recorder.ObserveValidationRetry("manager")
		}
		p.logger.Warn("Routing decision failed validation (attempt %d/%d): %v",
			attempt+1, p.maxRetries+1, verr)

		// Re-prompt with the rejected payload and the field errors.
		messages = append(messages,
			agent.NewAssistantMessage(resp.Content),
			agent.NewUserMessage(fmt.Sprintf(
				"Your response did not match the required format:\n%s\nRespond again with ONLY the JSON object.",
				verr.Detail(),
			)),
		)
	}

	p.logger.Warn("Routing validation budget exhausted after %d attempts, falling back to rules", p.maxRetries+1)
	return p.fallback(ctx, view, malformed)
}

func (p *LLMPolicy) fallback(ctx context.Context, view proto.StateView, malformed []string) (Outcome, error) {
	outcome, err := p.rules.Decide(ctx, view)
	if err != nil {
		return Outcome{}, err
	}
	outcome.Malformed = malformed
	outcome.Decision.Reasoning = "fallback rules: " + outcome.Decision.Reasoning
	return outcome, nil
}

// buildPrompt summarizes workflow state for the routing decision.
func (p *LLMPolicy) buildPrompt(view proto.StateView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User request: %s\n\n", view.UserRequest)
	fmt.Fprintf(&b, "Iteration %d of %d.\n\n", view.IterationCount, view.MaxIterations)

	b.WriteString("Current state:\n")
	if view.BAResult != nil {
		fmt.Fprintf(&b, "- Requirements: %q (%d user stories)\n",
			view.BAResult.Title, len(view.BAResult.UserStories))
	} else {
		b.WriteString("- Requirements: not yet analyzed\n")
	}
	if view.DevResult != nil {
		fmt.Fprintf(&b, "- Implementation: success=%t, %d files\n",
			view.DevResult.Success, len(view.DevResult.Files))
	} else {
		b.WriteString("- Implementation: not started\n")
	}
	if view.TesterResult != nil {
		fmt.Fprintf(&b, "- Review: risk=%s, %d unresolved concerns\n",
			view.TesterResult.RiskAssessment.Level, len(view.TesterResult.RiskAssessment.Concerns))
		for _, concern := range view.TesterResult.RiskAssessment.Concerns {
			fmt.Fprintf(&b, "  - %s\n", concern)
		}
	} else {
		b.WriteString("- Review: not performed\n")
	}
	if view.LastCompletedActor != "" {
		fmt.Fprintf(&b, "- Last completed step: %s\n", view.LastCompletedActor)
	}

	tail := view.Messages
	if len(tail) > recentMessageWindow {
		tail = tail[len(tail)-recentMessageWindow:]
	}
	if len(tail) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for i := range tail {
			msg := &tail[i]
			fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
		}
	}

	b.WriteString("\nWho should act next?")
	return b.String()
}
