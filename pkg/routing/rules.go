// Package routing decides which actor acts next. The manager LLM makes the
// primary decision; a deterministic rule policy backs it up and enforces the
// defect feedback law.
package routing

import (
	"context"

	"devteam/pkg/proto"
)

// Outcome is a routing decision plus the validator-rejected payloads that
// preceded it, kept for the audit trail.
type Outcome struct {
	Decision  proto.RouteDecision
	Malformed []string
}

// Policy decides the next actor from a read-only view of workflow state.
type Policy interface {
	Decide(ctx context.Context, view proto.StateView) (Outcome, error)
}

// RulePolicy routes deterministically from workflow state. It is the
// fallback when LLM routing is unavailable, and its ordering encodes the
// pipeline: requirements, implementation, review, rework, finish.
type RulePolicy struct{}

// NewRulePolicy creates the deterministic routing policy.
func NewRulePolicy() *RulePolicy {
	return &RulePolicy{}
}

// Decide implements Policy.
func (p *RulePolicy) Decide(_ context.Context, view proto.StateView) (Outcome, error) {
	return Outcome{Decision: decideByRules(view)}, nil
}

func decideByRules(view proto.StateView) proto.RouteDecision {
	if view.BAResult == nil {
		return proto.RouteDecision{
			NextActor: proto.ActorBA,
			Reasoning: "no requirements analysis yet",
		}
	}

	if view.DevResult == nil || !view.DevResult.Success {
		return proto.RouteDecision{
			NextActor: proto.ActorDev,
			Reasoning: "no successful implementation yet",
		}
	}

	if view.TesterResult == nil {
		return proto.RouteDecision{
			NextActor: proto.ActorTester,
			Reasoning: "implementation has not been reviewed",
		}
	}

	if view.TesterResult.HasUnresolvedDefects() {
		// A defect report the developer has not yet seen goes to the
		// developer. After rework the tester re-reviews.
		if view.LastCompletedActor == proto.ActorTester {
			return proto.RouteDecision{
				NextActor: proto.ActorDev,
				Reasoning: "review found defects, developer must address them",
			}
		}
		return proto.RouteDecision{
			NextActor: proto.ActorTester,
			Reasoning: "developer reworked the implementation, review again",
		}
	}

	return proto.RouteDecision{
		NextActor: proto.ActorFinish,
		Reasoning: "all stages complete and review is clean",
	}
}

// enforceFeedbackLaw overrides a decision that would skip mandatory rework:
// a fresh defect report must route to the developer before anything else.
func enforceFeedbackLaw(view proto.StateView, decision proto.RouteDecision) proto.RouteDecision {
	if view.TesterResult != nil &&
		view.TesterResult.HasUnresolvedDefects() &&
		view.LastCompletedActor == proto.ActorTester &&
		decision.NextActor != proto.ActorDev {
		return proto.RouteDecision{
			NextActor: proto.ActorDev,
			Reasoning: "review found unresolved defects, routing to developer for rework",
		}
	}
	return decision
}
