// Package specialist invokes the BA, developer, and tester roles: it builds
// the role prompt from workflow state, validates the structured output with
// a bounded re-prompt budget, and lands generated files in the workspace.
package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devteam/pkg/agent"
	"devteam/pkg/logx"
	"devteam/pkg/metrics"
	"devteam/pkg/proto"
	"devteam/pkg/schema"
	"devteam/pkg/utils"
	"devteam/pkg/workspace"
)

// Adapter turns a routing decision into one validated specialist result.
type Adapter struct {
	clients       map[proto.Actor]agent.LLMClient
	workspace     *workspace.Manager
	tokens        *utils.TokenCounter
	maxValidation int
	stepTimeout   time.Duration
	promptBudget  int
	logger        *logx.Logger
	recorder      *metrics.Recorder
}

// Options configures an Adapter.
type Options struct {
	Clients       map[proto.Actor]agent.LLMClient
	Workspace     *workspace.Manager
	Tokens        *utils.TokenCounter
	MaxValidation int           // re-prompt budget per invocation
	StepTimeout   time.Duration // deadline per invocation
	PromptBudget  int           // token budget for prompt context
	Recorder      *metrics.Recorder
}

// NewAdapter creates a specialist invocation adapter.
func NewAdapter(opts Options) *Adapter {
	if opts.MaxValidation <= 0 {
		opts.MaxValidation = schema.DefaultMaxRetries
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 2 * time.Minute
	}
	if opts.PromptBudget <= 0 {
		opts.PromptBudget = 8000
	}
	return &Adapter{
		clients:       opts.Clients,
		workspace:     opts.Workspace,
		tokens:        opts.Tokens,
		maxValidation: opts.MaxValidation,
		stepTimeout:   opts.StepTimeout,
		promptBudget:  opts.PromptBudget,
		logger:        logx.NewLogger("specialist"),
		recorder:      opts.Recorder,
	}
}

// Invoke runs one specialist and returns its validated result. The error is
// always an *InvocationFailure when non-nil.
func (a *Adapter) Invoke(ctx context.Context, role proto.Actor, view proto.StateView) (*proto.SpecialistResult, error) {
	client, ok := a.clients[role]
	if !ok {
		return nil, &InvocationFailure{
			Role:   role,
			Reason: proto.ReasonUpstreamUnavailable,
			Detail: fmt.Sprintf("no client configured for role %s", role),
		}
	}

	schemaID, err := schema.ForActor(role)
	if err != nil {
		return nil, &InvocationFailure{
			Role:   role,
			Reason: proto.ReasonUpstreamUnavailable,
			Detail: err.Error(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.stepTimeout)
	defer cancel()

	messages := []agent.CompletionMessage{
		agent.NewSystemMessage(systemPromptFor(role)),
		agent.NewUserMessage(a.buildPrompt(role, view)),
	}

	started := time.Now()
	var malformed []string

	for attempt := 0; attempt <= a.maxValidation; attempt++ {
		req := agent.NewCompletionRequest(messages)
		if role == proto.ActorDev {
			req.Temperature = agent.TemperatureDeterministic
		}

		resp, err := client.Complete(ctx, req)
		if err != nil {
			a.recorder.ObserveInvocation(role.String(), false, time.Since(started))
			return nil, &InvocationFailure{
				Role:      role,
				Reason:    classifyTransportError(err),
				Detail:    err.Error(),
				Malformed: malformed,
			}
		}

		payload, verr := schema.Validate(schemaID, resp.Content)
		if verr == nil {
			result, buildErr := a.buildResult(role, view, payload)
			if buildErr != nil {
				a.recorder.ObserveInvocation(role.String(), false, time.Since(started))
				return nil, buildErr
			}
			result.Malformed = malformed
			a.recorder.ObserveInvocation(role.String(), true, time.Since(started))
			a.logger.Info("✅ %s finished: %s", role, result.Summary)
			return result, nil
		}

		var validation *schema.ValidationError
		if !errors.As(verr, &validation) {
			a.recorder.ObserveInvocation(role.String(), false, time.Since(started))
			return nil, &InvocationFailure{
				Role:      role,
				Reason:    proto.ReasonSchemaValidationExhausted,
				Detail:    verr.Error(),
				Malformed: malformed,
			}
		}

		malformed = append(malformed, resp.Content)
		a.recorder.ObserveValidationRetry(role.String())
		a.logger.Warn("%s output failed validation (attempt %d/%d): %v",
			role, attempt+1, a.maxValidation+1, validation)

		messages = append(messages,
			agent.NewAssistantMessage(resp.Content),
			agent.NewUserMessage(fmt.Sprintf(
				"Your response did not match the required JSON format:\n%s\nRespond again with ONLY the corrected JSON object.",
				validation.Detail(),
			)),
		)
	}

	a.recorder.ObserveInvocation(role.String(), false, time.Since(started))
	return nil, &InvocationFailure{
		Role:      role,
		Reason:    proto.ReasonSchemaValidationExhausted,
		Detail:    fmt.Sprintf("output failed validation %d times", a.maxValidation+1),
		Malformed: malformed,
	}
}

func classifyTransportError(err error) proto.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return proto.ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return proto.ReasonCancelled
	}
	if strings.Contains(err.Error(), "timeout") {
		return proto.ReasonTimeout
	}
	return proto.ReasonUpstreamUnavailable
}

// buildResult turns a validated payload into a SpecialistResult, writing
// generated files into the project workspace.
func (a *Adapter) buildResult(role proto.Actor, view proto.StateView, payload any) (*proto.SpecialistResult, error) {
	switch role {
	case proto.ActorBA:
		ba := payload.(*proto.BAResponse)
		summary := fmt.Sprintf("Requirements analysis complete: %q, %d user stories", ba.Title, len(ba.UserStories))
		if ba.NeedsClarification() {
			summary = fmt.Sprintf("Requirements analysis blocked on %d clarifying questions", len(ba.Questions))
		}
		return &proto.SpecialistResult{Role: role, BA: ba, Summary: summary}, nil

	case proto.ActorDev:
		dev := payload.(*proto.ImplementationResult)
		artifacts, err := a.writeFiles(role, view.ProjectID, dev.Files)
		if err != nil {
			return nil, err
		}
		dev.CreatedFiles = artifacts
		summary := fmt.Sprintf("Implementation complete: %d files written", len(artifacts))
		if !dev.Success {
			summary = fmt.Sprintf("Implementation failed: %s", dev.Error)
		}
		return &proto.SpecialistResult{Role: role, Dev: dev, Artifacts: artifacts, Summary: summary}, nil

	case proto.ActorTester:
		plan := payload.(*proto.TestPlan)
		var files []proto.GeneratedFile
		for i := range plan.Tests {
			files = append(files, proto.GeneratedFile{Path: plan.Tests[i].Path, Content: plan.Tests[i].Content})
		}
		artifacts, err := a.writeFiles(role, view.ProjectID, files)
		if err != nil {
			return nil, err
		}
		summary := fmt.Sprintf("Review complete: risk %s, %d tests, %d concerns",
			plan.RiskAssessment.Level, len(plan.Tests), len(plan.RiskAssessment.Concerns))
		return &proto.SpecialistResult{Role: role, Test: plan, Artifacts: artifacts, Summary: summary}, nil

	default:
		return nil, &InvocationFailure{
			Role:   role,
			Reason: proto.ReasonUpstreamUnavailable,
			Detail: fmt.Sprintf("unsupported role %s", role),
		}
	}
}

func (a *Adapter) writeFiles(role proto.Actor, projectID string, files []proto.GeneratedFile) ([]string, error) {
	var written []string
	for i := range files {
		file := &files[i]
		rel, err := a.workspace.WriteFile(projectID, file.Path, file.Content)
		if err != nil {
			return nil, &InvocationFailure{
				Role:   role,
				Reason: proto.ReasonUpstreamUnavailable,
				Detail: fmt.Sprintf("failed to write artifact %s: %v", file.Path, err),
			}
		}
		written = append(written, rel)
	}
	return written, nil
}
