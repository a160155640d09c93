package proto

import "time"

// StateView is a read-only projection of workflow state handed to the
// routing policy and the specialist invocation adapter. Only the supervisor
// mutates workflow state; everything else sees this copy.
type StateView struct {
	WorkflowID   string
	UserRequest  string
	ProjectID    string
	Messages     []Message
	BAResult     *BAResponse
	DevResult    *ImplementationResult
	TesterResult *TestPlan
	Artifacts    []string

	// LastCompletedActor is the specialist whose result merged most recently.
	// Routing needs it to tell a fresh defect report from one the developer
	// has already addressed.
	LastCompletedActor Actor

	IterationCount int
	MaxIterations  int
}

// WorkflowSnapshot is the persisted representation of one run, exposed to
// external callers for polling. Once Status is terminal the stored snapshot
// is never mutated again except by the explicit resume entry point.
type WorkflowSnapshot struct {
	ID                  string                `json:"id"`
	Status              Status                `json:"status"`
	FailureReason       FailureReason         `json:"failure_reason,omitempty"`
	ErrorMessage        string                `json:"error_message,omitempty"`
	UserRequest         string                `json:"user_request"`
	ProjectID           string                `json:"project_id,omitempty"`
	IterationCount      int                   `json:"iteration_count"`
	MaxIterations       int                   `json:"max_iterations"`
	Artifacts           []string              `json:"artifacts,omitempty"`
	ClarifyingQuestions []string              `json:"clarifying_questions,omitempty"`
	FinalResponse       string                `json:"final_response,omitempty"`
	Messages            []Message             `json:"messages,omitempty"`
	BAResult            *BAResponse           `json:"ba_result,omitempty"`
	DevResult           *ImplementationResult `json:"dev_result,omitempty"`
	TesterResult        *TestPlan             `json:"tester_result,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}
