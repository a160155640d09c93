// Package team owns workflow state and the supervisor loop that drives a
// run from user request to terminal record.
package team

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"devteam/pkg/proto"
)

// WorkflowState is the single mutable home of one run. Only the supervisor
// touches it; everyone else sees a read-only view or a snapshot.
type WorkflowState struct {
	id          string
	userRequest string
	projectID   string

	log          proto.MessageLog
	baResult     *proto.BAResponse
	devResult    *proto.ImplementationResult
	testerResult *proto.TestPlan
	artifacts    []string

	clarifyingQuestions []string
	finalResponse       string

	status        proto.Status
	failureReason proto.FailureReason
	errorMessage  string

	iterationCount int
	maxIterations  int
	lastCompleted  proto.Actor

	createdAt time.Time
	updatedAt time.Time
}

// NewWorkflowState creates a pending workflow for a user request. The
// request becomes the first message of the append-only log.
func NewWorkflowState(userRequest, projectID string, maxIterations int) *WorkflowState {
	now := time.Now().UTC()
	st := &WorkflowState{
		id:            uuid.New().String(),
		userRequest:   userRequest,
		projectID:     projectID,
		status:        proto.StatusPending,
		maxIterations: maxIterations,
		createdAt:     now,
		updatedAt:     now,
	}
	if st.projectID == "" {
		st.projectID = st.id
	}
	st.log.Append(proto.RoleUser, userRequest)
	return st
}

// RestoreWorkflowState rebuilds state from a persisted snapshot, for
// resuming a suspended workflow.
func RestoreWorkflowState(snapshot *proto.WorkflowSnapshot) *WorkflowState {
	st := &WorkflowState{
		id:                  snapshot.ID,
		userRequest:         snapshot.UserRequest,
		projectID:           snapshot.ProjectID,
		baResult:            snapshot.BAResult,
		devResult:           snapshot.DevResult,
		testerResult:        snapshot.TesterResult,
		artifacts:           append([]string(nil), snapshot.Artifacts...),
		clarifyingQuestions: append([]string(nil), snapshot.ClarifyingQuestions...),
		finalResponse:       snapshot.FinalResponse,
		status:              snapshot.Status,
		failureReason:       snapshot.FailureReason,
		errorMessage:        snapshot.ErrorMessage,
		iterationCount:      snapshot.IterationCount,
		maxIterations:       snapshot.MaxIterations,
		createdAt:           snapshot.CreatedAt,
		updatedAt:           snapshot.UpdatedAt,
	}
	st.log.Restore(snapshot.Messages)
	return st
}

// ID returns the workflow identifier.
func (st *WorkflowState) ID() string {
	return st.id
}

// Status returns the current lifecycle status.
func (st *WorkflowState) Status() proto.Status {
	return st.status
}

// View returns the read-only projection handed to routing and specialists.
func (st *WorkflowState) View() proto.StateView {
	return proto.StateView{
		WorkflowID:         st.id,
		UserRequest:        st.userRequest,
		ProjectID:          st.projectID,
		Messages:           st.log.Messages(),
		BAResult:           st.baResult,
		DevResult:          st.devResult,
		TesterResult:       st.testerResult,
		Artifacts:          append([]string(nil), st.artifacts...),
		LastCompletedActor: st.lastCompleted,
		IterationCount:     st.iterationCount,
		MaxIterations:      st.maxIterations,
	}
}

// Snapshot returns the persisted representation of the current state.
func (st *WorkflowState) Snapshot() *proto.WorkflowSnapshot {
	return &proto.WorkflowSnapshot{
		ID:                  st.id,
		Status:              st.status,
		FailureReason:       st.failureReason,
		ErrorMessage:        st.errorMessage,
		UserRequest:         st.userRequest,
		ProjectID:           st.projectID,
		IterationCount:      st.iterationCount,
		MaxIterations:       st.maxIterations,
		Artifacts:           append([]string(nil), st.artifacts...),
		ClarifyingQuestions: append([]string(nil), st.clarifyingQuestions...),
		FinalResponse:       st.finalResponse,
		Messages:            st.log.Messages(),
		BAResult:            st.baResult,
		DevResult:           st.devResult,
		TesterResult:        st.testerResult,
		CreatedAt:           st.createdAt,
		UpdatedAt:           st.updatedAt,
	}
}

// appendMessage adds one entry to the append-only log and bumps updated_at.
func (st *WorkflowState) appendMessage(role, content string) {
	st.log.Append(role, content)
	st.updatedAt = time.Now().UTC()
}

// merge folds a validated specialist result into state. Artifacts are a
// union; results replace the previous result for the same role.
func (st *WorkflowState) merge(result *proto.SpecialistResult) {
	switch result.Role {
	case proto.ActorBA:
		st.baResult = result.BA
	case proto.ActorDev:
		st.devResult = result.Dev
	case proto.ActorTester:
		st.testerResult = result.Test
	}
	st.artifacts = unionSorted(st.artifacts, result.Artifacts)
	st.lastCompleted = result.Role
	st.updatedAt = time.Now().UTC()
}

// resume reopens a suspended workflow with the user's answer. The previous
// analysis is dropped so the analyst reprocesses the request with the new
// information; the answer itself lives in the message log.
func (st *WorkflowState) resume(answer string) {
	st.appendMessage(proto.RoleUser, answer)
	st.clarifyingQuestions = nil
	st.baResult = nil
	st.lastCompleted = ""
	st.status = proto.StatusRunning
}

func unionSorted(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, s := range existing {
		seen[s] = struct{}{}
	}
	for _, s := range incoming {
		seen[s] = struct{}{}
	}
	union := make([]string, 0, len(seen))
	for s := range seen {
		union = append(union, s)
	}
	sort.Strings(union)
	return union
}
