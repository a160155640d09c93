package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devteam/pkg/logx"
	"devteam/pkg/metrics"
	"devteam/pkg/proto"
	"devteam/pkg/routing"
	"devteam/pkg/specialist"
)

// Store persists workflow records. Satisfied by persistence.DatabaseOperations.
type Store interface {
	CreateWorkflow(snapshot *proto.WorkflowSnapshot) error
	UpdateWorkflow(snapshot *proto.WorkflowSnapshot) error
}

// Invoker runs one specialist. Satisfied by specialist.Adapter.
type Invoker interface {
	Invoke(ctx context.Context, role proto.Actor, view proto.StateView) (*proto.SpecialistResult, error)
}

// Supervisor drives one workflow: route, invoke, merge, persist, repeat.
// It is the only writer of its WorkflowState.
type Supervisor struct {
	state    *WorkflowState
	router   routing.Policy
	invoker  Invoker
	store    Store
	logger   *logx.Logger
	recorder *metrics.Recorder

	maxTransientRetries int
	retryBackoff        time.Duration

	startedAt time.Time
}

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Router  routing.Policy
	Invoker Invoker
	Store   Store

	// MaxTransientRetries bounds whole-step retries for transient
	// invocation failures (upstream unavailable, timeout).
	MaxTransientRetries int
	RetryBackoff        time.Duration

	Recorder *metrics.Recorder
}

// NewSupervisor creates a supervisor for the given workflow state.
func NewSupervisor(state *WorkflowState, opts SupervisorOptions) *Supervisor {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	return &Supervisor{
		state:               state,
		router:              opts.Router,
		invoker:             opts.Invoker,
		store:               opts.Store,
		logger:              logx.NewLogger("team"),
		recorder:            opts.Recorder,
		maxTransientRetries: opts.MaxTransientRetries,
		retryBackoff:        opts.RetryBackoff,
	}
}

// State exposes the workflow state for the owning orchestrator.
func (s *Supervisor) State() *WorkflowState {
	return s.state
}

// Run drives the workflow until it completes, fails, or suspends waiting
// for clarification. The caller has already persisted the pending record;
// Run transitions it to running. The returned snapshot carries the outcome;
// a non-nil error means an infrastructure fault (persistence), not a
// workflow failure.
func (s *Supervisor) Run(ctx context.Context) (*proto.WorkflowSnapshot, error) {
	s.startedAt = time.Now()

	if s.state.status == proto.StatusPending {
		s.state.status = proto.StatusRunning
		if err := s.persist(); err != nil {
			return nil, err
		}
		s.logger.Info("🚀 Workflow %s started: %q", s.state.id, s.state.userRequest)
	}

	for {
		// Cancellation is honored at the loop boundary: a step in flight
		// finishes or aborts, then the workflow fails with a clean reason.
		if ctx.Err() != nil {
			return s.fail(proto.ReasonCancelled, "workflow cancelled")
		}

		// The counter never exceeds the cap: when the next pass would,
		// the workflow fails without incrementing.
		if s.state.iterationCount+1 > s.state.maxIterations {
			return s.fail(proto.ReasonIterationBudgetExhausted,
				fmt.Sprintf("iteration budget of %d exhausted", s.state.maxIterations))
		}
		s.state.iterationCount++
		s.recorder.ObserveIteration()

		outcome, err := s.router.Decide(ctx, s.state.View())
		if err != nil {
			return s.fail(proto.ReasonUpstreamUnavailable,
				fmt.Sprintf("routing failed: %v", err))
		}
		s.appendMalformed(proto.RoleManager, outcome.Malformed)
		s.state.appendMessage(proto.RoleManager,
			fmt.Sprintf("→ %s: %s", outcome.Decision.NextActor, outcome.Decision.Reasoning))
		s.logger.Info("Iteration %d: routing to %s (%s)",
			s.state.iterationCount, outcome.Decision.NextActor, outcome.Decision.Reasoning)

		if outcome.Decision.NextActor == proto.ActorFinish {
			return s.finish()
		}

		result, failure := s.invokeWithRetry(ctx, outcome.Decision.NextActor)
		if failure != nil {
			s.appendMalformed(failure.Role.String(), failure.Malformed)
			if failure.Reason == proto.ReasonCancelled {
				return s.fail(proto.ReasonCancelled, "workflow cancelled")
			}
			return s.fail(failure.Reason, failure.Detail)
		}

		s.appendMalformed(result.Role.String(), result.Malformed)
		s.state.merge(result)
		s.state.appendMessage(result.Role.String(), result.Summary)

		if result.Role == proto.ActorBA && result.BA.NeedsClarification() {
			return s.suspend(result.BA.Questions)
		}

		if err := s.persist(); err != nil {
			return nil, err
		}
	}
}

// Resume reopens a suspended workflow with the user's answer and drives it
// to its next stopping point.
func (s *Supervisor) Resume(ctx context.Context, answer string) (*proto.WorkflowSnapshot, error) {
	if s.state.status != proto.StatusWaitingForClarification {
		return nil, fmt.Errorf("workflow %s is not waiting for clarification (status %s)",
			s.state.id, s.state.status)
	}

	s.state.resume(answer)
	if err := s.persist(); err != nil {
		return nil, err
	}
	s.logger.Info("▶️ Workflow %s resumed with clarification", s.state.id)
	return s.Run(ctx)
}

// invokeWithRetry runs one specialist, retrying the whole step on transient
// failures with linear backoff. Validation exhaustion is never retried at
// this level: its re-prompt budget already ran inside the adapter.
func (s *Supervisor) invokeWithRetry(ctx context.Context, role proto.Actor) (*proto.SpecialistResult, *specialist.InvocationFailure) {
	var lastFailure *specialist.InvocationFailure

	for attempt := 0; attempt <= s.maxTransientRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("Retrying %s after transient failure (attempt %d/%d)",
				role, attempt+1, s.maxTransientRetries+1)
			select {
			case <-ctx.Done():
				return nil, &specialist.InvocationFailure{
					Role:   role,
					Reason: proto.ReasonCancelled,
					Detail: ctx.Err().Error(),
				}
			case <-time.After(s.retryBackoff):
			}
		}

		result, err := s.invoker.Invoke(ctx, role, s.state.View())
		if err == nil {
			return result, nil
		}

		var failure *specialist.InvocationFailure
		if !errors.As(err, &failure) {
			failure = &specialist.InvocationFailure{
				Role:   role,
				Reason: proto.ReasonUpstreamUnavailable,
				Detail: err.Error(),
			}
		}
		lastFailure = failure

		if !failure.Reason.IsTransient() {
			return nil, failure
		}

		// The failure goes into the audit trail even when a retry recovers.
		s.state.appendMessage(failure.Role.String(),
			fmt.Sprintf("invocation failure (%s): %s", failure.Reason, failure.Detail))
	}

	return nil, lastFailure
}

// appendMalformed records validator-rejected payloads in the message log so
// the audit trail survives recovery.
func (s *Supervisor) appendMalformed(role string, payloads []string) {
	for i, payload := range payloads {
		s.state.appendMessage(role,
			fmt.Sprintf("rejected output (attempt %d): %s", i+1, payload))
	}
}

func (s *Supervisor) finish() (*proto.WorkflowSnapshot, error) {
	s.state.finalResponse = s.buildFinalResponse()
	s.state.status = proto.StatusCompleted
	s.state.appendMessage(proto.RoleManager, s.state.finalResponse)

	if err := s.persist(); err != nil {
		return nil, err
	}
	s.recorder.ObserveWorkflow(string(proto.StatusCompleted), "", time.Since(s.startedAt))
	s.logger.Info("🏁 Workflow %s completed after %d iterations", s.state.id, s.state.iterationCount)
	return s.state.Snapshot(), nil
}

func (s *Supervisor) suspend(questions []string) (*proto.WorkflowSnapshot, error) {
	s.state.clarifyingQuestions = append([]string(nil), questions...)
	s.state.status = proto.StatusWaitingForClarification
	s.state.appendMessage(proto.RoleManager,
		fmt.Sprintf("waiting for clarification: %s", strings.Join(questions, " | ")))

	if err := s.persist(); err != nil {
		return nil, err
	}
	s.logger.Info("⏸️ Workflow %s suspended on %d clarifying questions", s.state.id, len(questions))
	return s.state.Snapshot(), nil
}

func (s *Supervisor) fail(reason proto.FailureReason, detail string) (*proto.WorkflowSnapshot, error) {
	s.state.status = proto.StatusFailed
	s.state.failureReason = reason
	s.state.errorMessage = detail
	s.state.appendMessage(proto.RoleManager, fmt.Sprintf("workflow failed (%s): %s", reason, detail))

	if err := s.persist(); err != nil {
		return nil, err
	}
	s.recorder.ObserveWorkflow(string(proto.StatusFailed), string(reason), time.Since(s.startedAt))
	s.logger.Error("Workflow %s failed: %s (%s)", s.state.id, detail, reason)
	return s.state.Snapshot(), nil
}

func (s *Supervisor) persist() error {
	if err := s.store.UpdateWorkflow(s.state.Snapshot()); err != nil {
		return fmt.Errorf("failed to persist workflow %s: %w", s.state.id, err)
	}
	return nil
}

// buildFinalResponse synthesizes the user-facing summary from the merged
// specialist results.
func (s *Supervisor) buildFinalResponse() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Workflow complete for request: %s\n", s.state.userRequest)

	if s.state.baResult != nil {
		fmt.Fprintf(&b, "\nRequirements: %s\n%s\n", s.state.baResult.Title, s.state.baResult.Description)
		for i := range s.state.baResult.UserStories {
			story := &s.state.baResult.UserStories[i]
			fmt.Fprintf(&b, "- %s: %s\n", story.ID, story.Title)
		}
	}

	if s.state.devResult != nil {
		fmt.Fprintf(&b, "\nImplementation: %d files\n", len(s.state.devResult.CreatedFiles))
		for _, path := range s.state.devResult.CreatedFiles {
			fmt.Fprintf(&b, "- %s\n", path)
		}
	}

	if s.state.testerResult != nil {
		fmt.Fprintf(&b, "\nReview: risk %s. %s\n",
			s.state.testerResult.RiskAssessment.Level, s.state.testerResult.RiskAssessment.Summary)
		for _, rec := range s.state.testerResult.RiskAssessment.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	if len(s.state.artifacts) > 0 {
		fmt.Fprintf(&b, "\nArtifacts: %s\n", strings.Join(s.state.artifacts, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}
