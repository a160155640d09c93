package persistence

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"devteam/pkg/proto"
)

func testOps(t *testing.T) *DatabaseOperations {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := InitializeDatabase(dbPath)
	if err != nil {
		t.Fatalf("InitializeDatabase: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewDatabaseOperations(db)
}

func testSnapshot(id string) *proto.WorkflowSnapshot {
	now := time.Now().UTC().Truncate(time.Second)
	return &proto.WorkflowSnapshot{
		ID:             id,
		Status:         proto.StatusRunning,
		UserRequest:    "build a login page",
		ProjectID:      "proj-1",
		IterationCount: 1,
		MaxIterations:  10,
		Artifacts:      []string{"main.go"},
		Messages: []proto.Message{
			proto.NewMessage(proto.RoleUser, "build a login page"),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetWorkflow(t *testing.T) {
	ops := testOps(t)

	snapshot := testSnapshot("wf-1")
	snapshot.BAResult = &proto.BAResponse{Title: "Login", Description: "Add login"}
	if err := ops.CreateWorkflow(snapshot); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	got, err := ops.GetWorkflow("wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.UserRequest != "build a login page" {
		t.Errorf("unexpected user request: %q", got.UserRequest)
	}
	if got.Status != proto.StatusRunning {
		t.Errorf("unexpected status: %s", got.Status)
	}
	if got.BAResult == nil || got.BAResult.Title != "Login" {
		t.Errorf("BA result not round-tripped: %+v", got.BAResult)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "build a login page" {
		t.Errorf("messages not round-tripped: %+v", got.Messages)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0] != "main.go" {
		t.Errorf("artifacts not round-tripped: %+v", got.Artifacts)
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	ops := testOps(t)
	if _, err := ops.GetWorkflow("missing"); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestUpdateWorkflowAppendsMessages(t *testing.T) {
	ops := testOps(t)

	snapshot := testSnapshot("wf-2")
	if err := ops.CreateWorkflow(snapshot); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	snapshot.IterationCount = 2
	snapshot.Messages = append(snapshot.Messages,
		proto.NewMessage(proto.RoleManager, "routing to ba"),
		proto.NewMessage(proto.RoleBA, "requirements drafted"),
	)
	snapshot.UpdatedAt = time.Now().UTC()
	if err := ops.UpdateWorkflow(snapshot); err != nil {
		t.Fatalf("UpdateWorkflow: %v", err)
	}

	got, err := ops.GetWorkflow("wf-2")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.IterationCount != 2 {
		t.Errorf("iteration count not updated: %d", got.IterationCount)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	if got.Messages[1].Role != proto.RoleManager {
		t.Errorf("message order lost: %+v", got.Messages)
	}
}

func TestUpdateWorkflowIdempotentMessages(t *testing.T) {
	ops := testOps(t)

	snapshot := testSnapshot("wf-3")
	if err := ops.CreateWorkflow(snapshot); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	// Same snapshot written twice must not duplicate message rows.
	if err := ops.UpdateWorkflow(snapshot); err != nil {
		t.Fatalf("UpdateWorkflow: %v", err)
	}
	if err := ops.UpdateWorkflow(snapshot); err != nil {
		t.Fatalf("UpdateWorkflow: %v", err)
	}

	got, err := ops.GetWorkflow("wf-3")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Errorf("expected 1 message after repeated updates, got %d", len(got.Messages))
	}
}

func TestTerminalRecordImmutable(t *testing.T) {
	ops := testOps(t)

	snapshot := testSnapshot("wf-4")
	snapshot.Status = proto.StatusCompleted
	snapshot.FinalResponse = "done"
	if err := ops.CreateWorkflow(snapshot); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	snapshot.FinalResponse = "tampered"
	err := ops.UpdateWorkflow(snapshot)
	if !errors.Is(err, ErrWorkflowTerminal) {
		t.Fatalf("expected ErrWorkflowTerminal, got %v", err)
	}

	got, err := ops.GetWorkflow("wf-4")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.FinalResponse != "done" {
		t.Errorf("terminal record was mutated: %q", got.FinalResponse)
	}
}

func TestTerminalGuardAllowsSuspended(t *testing.T) {
	ops := testOps(t)

	snapshot := testSnapshot("wf-5")
	snapshot.Status = proto.StatusWaitingForClarification
	snapshot.ClarifyingQuestions = []string{"which SSO provider?"}
	if err := ops.CreateWorkflow(snapshot); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	// Suspended is not terminal, so resume can update the record.
	snapshot.Status = proto.StatusRunning
	snapshot.ClarifyingQuestions = nil
	if err := ops.UpdateWorkflow(snapshot); err != nil {
		t.Fatalf("UpdateWorkflow after suspension: %v", err)
	}
}

func TestListWorkflows(t *testing.T) {
	ops := testOps(t)

	for _, id := range []string{"wf-a", "wf-b", "wf-c"} {
		s := testSnapshot(id)
		if err := ops.CreateWorkflow(s); err != nil {
			t.Fatalf("CreateWorkflow(%s): %v", id, err)
		}
	}

	all, err := ops.ListWorkflows(0)
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 workflows, got %d", len(all))
	}

	limited, err := ops.ListWorkflows(2)
	if err != nil {
		t.Fatalf("ListWorkflows(2): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 workflows, got %d", len(limited))
	}
}

func TestUpdateMissingWorkflow(t *testing.T) {
	ops := testOps(t)
	if err := ops.UpdateWorkflow(testSnapshot("ghost")); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestGetWorkflowRepeatedReadsIdentical(t *testing.T) {
	ops := testOps(t)

	snapshot := testSnapshot("wf-reread")
	snapshot.BAResult = &proto.BAResponse{Title: "Login", Description: "Add login"}
	snapshot.Messages = append(snapshot.Messages,
		proto.NewMessage(proto.RoleManager, "→ ba: requirements first"))
	if err := ops.CreateWorkflow(snapshot); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	first, err := ops.GetWorkflow("wf-reread")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	second, err := ops.GetWorkflow("wf-reread")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reads with no writes between differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if len(first.Messages) != 2 || first.Messages[1].ID != second.Messages[1].ID {
		t.Errorf("message identity changed between reads")
	}
}
