// Package proto defines the shared workflow vocabulary: actor and status
// enums, the append-only message log, routing decisions, and the structured
// schemas every specialist's output must satisfy.
package proto

import (
	"fmt"
	"strings"
)

// Actor identifies who acts next in the workflow.
type Actor string

const (
	// ActorBA is the business analyst specialist.
	ActorBA Actor = "ba"

	// ActorDev is the developer specialist.
	ActorDev Actor = "dev"

	// ActorTester is the tester specialist.
	ActorTester Actor = "tester"

	// ActorFinish terminates the workflow.
	ActorFinish Actor = "finish"
)

// String returns the string representation of Actor.
func (a Actor) String() string {
	return string(a)
}

// IsSpecialist reports whether the actor is one of the three worker roles.
func (a Actor) IsSpecialist() bool {
	return a == ActorBA || a == ActorDev || a == ActorTester
}

// ValidateActor validates if a string is a valid actor token.
func ValidateActor(actor string) (Actor, bool) {
	switch Actor(actor) {
	case ActorBA, ActorDev, ActorTester, ActorFinish:
		return Actor(actor), true
	default:
		return "", false
	}
}

// ParseActor parses a string into an Actor with validation.
// Accepts the legacy upper-case "FINISH" token from older router payloads.
func ParseActor(s string) (Actor, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	switch normalized {
	case "ba":
		return ActorBA, nil
	case "dev", "developer":
		return ActorDev, nil
	case "tester", "qa":
		return ActorTester, nil
	case "finish", "done":
		return ActorFinish, nil
	default:
		if actor, valid := ValidateActor(s); valid {
			return actor, nil
		}
		return "", fmt.Errorf("unknown actor: %s", s)
	}
}

// Status represents the lifecycle state of a workflow.
type Status string

const (
	StatusPending                 Status = "pending"
	StatusRunning                 Status = "running"
	StatusWaitingForClarification Status = "waiting_for_clarification"
	StatusCompleted               Status = "completed"
	StatusFailed                  Status = "failed"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status is a final state.
// waiting_for_clarification is a suspend point, not terminal: the resume
// entry point can transition it back to running.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidateStatus validates if a string is a valid workflow status.
func ValidateStatus(status string) (Status, bool) {
	switch Status(status) {
	case StatusPending, StatusRunning, StatusWaitingForClarification, StatusCompleted, StatusFailed:
		return Status(status), true
	default:
		return "", false
	}
}

// ParseStatus parses a string into a Status with validation.
func ParseStatus(s string) (Status, error) {
	if status, valid := ValidateStatus(strings.ToLower(strings.TrimSpace(s))); valid {
		return status, nil
	}
	return "", fmt.Errorf("unknown workflow status: %s", s)
}

// FailureReason is the machine-readable reason code carried by a failed
// workflow or a specialist invocation failure.
type FailureReason string

const (
	// ReasonIterationBudgetExhausted means the supervisor loop hit max_iterations.
	ReasonIterationBudgetExhausted FailureReason = "iteration_budget_exhausted"

	// ReasonSchemaValidationExhausted means a specialist's output never passed
	// schema validation within the retry budget.
	ReasonSchemaValidationExhausted FailureReason = "schema_validation_exhausted"

	// ReasonUpstreamUnavailable means the generation backend was unreachable.
	ReasonUpstreamUnavailable FailureReason = "upstream_unavailable"

	// ReasonTimeout means a specialist invocation exceeded its deadline.
	ReasonTimeout FailureReason = "timeout"

	// ReasonCancelled means an external cancellation request was honored.
	ReasonCancelled FailureReason = "cancelled"
)

// String returns the string representation of FailureReason.
func (r FailureReason) String() string {
	return string(r)
}

// IsTransient reports whether an invocation failure with this reason is
// eligible for whole-step retries at the supervisor level.
func (r FailureReason) IsTransient() bool {
	return r == ReasonUpstreamUnavailable || r == ReasonTimeout
}

// ValidateFailureReason validates if a string is a known failure reason.
func ValidateFailureReason(reason string) (FailureReason, bool) {
	switch FailureReason(reason) {
	case ReasonIterationBudgetExhausted, ReasonSchemaValidationExhausted,
		ReasonUpstreamUnavailable, ReasonTimeout, ReasonCancelled:
		return FailureReason(reason), true
	default:
		return "", false
	}
}
