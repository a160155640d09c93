package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"devteam/pkg/proto"
)

// ErrWorkflowNotFound indicates the requested workflow record does not exist.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrWorkflowTerminal indicates an attempt to update a record whose status
// is already terminal. Terminal records are immutable.
var ErrWorkflowTerminal = errors.New("workflow record is terminal")

// DatabaseOperations provides workflow record CRUD over a database handle.
type DatabaseOperations struct {
	db *sql.DB
}

// NewDatabaseOperations creates operations bound to the given connection.
func NewDatabaseOperations(db *sql.DB) *DatabaseOperations {
	return &DatabaseOperations{db: db}
}

// CreateWorkflow inserts a new workflow record with its messages.
func (ops *DatabaseOperations) CreateWorkflow(snapshot *proto.WorkflowSnapshot) error {
	artifacts, questions, ba, dev, tester, err := encodeColumns(snapshot)
	if err != nil {
		return err
	}

	tx, err := ops.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO workflows (
			id, status, failure_reason, error_message, user_request, project_id,
			iteration_count, max_iterations, artifacts, clarifying_questions,
			final_response, ba_result, dev_result, tester_result, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID, string(snapshot.Status), string(snapshot.FailureReason),
		snapshot.ErrorMessage, snapshot.UserRequest, snapshot.ProjectID,
		snapshot.IterationCount, snapshot.MaxIterations, artifacts, questions,
		snapshot.FinalResponse, ba, dev, tester,
		snapshot.CreatedAt.UTC(), snapshot.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow %s: %w", snapshot.ID, err)
	}

	if err := insertMessages(tx, snapshot.ID, 0, snapshot.Messages); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workflow insert: %w", err)
	}
	return nil
}

// UpdateWorkflow rewrites a workflow record from the snapshot and appends any
// new messages. Refuses to touch a record whose stored status is terminal:
// once a workflow completes, fails, or is cancelled its record is immutable.
func (ops *DatabaseOperations) UpdateWorkflow(snapshot *proto.WorkflowSnapshot) error {
	artifacts, questions, ba, dev, tester, err := encodeColumns(snapshot)
	if err != nil {
		return err
	}

	tx, err := ops.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storedStatus string
	err = tx.QueryRow(`SELECT status FROM workflows WHERE id = ?`, snapshot.ID).Scan(&storedStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, snapshot.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to read workflow %s: %w", snapshot.ID, err)
	}
	if proto.Status(storedStatus).IsTerminal() {
		return fmt.Errorf("%w: %s (status %s)", ErrWorkflowTerminal, snapshot.ID, storedStatus)
	}

	_, err = tx.Exec(`
		UPDATE workflows SET
			status = ?, failure_reason = ?, error_message = ?, project_id = ?,
			iteration_count = ?, artifacts = ?, clarifying_questions = ?,
			final_response = ?, ba_result = ?, dev_result = ?, tester_result = ?,
			updated_at = ?
		WHERE id = ?`,
		string(snapshot.Status), string(snapshot.FailureReason), snapshot.ErrorMessage,
		snapshot.ProjectID, snapshot.IterationCount, artifacts, questions,
		snapshot.FinalResponse, ba, dev, tester,
		snapshot.UpdatedAt.UTC(), snapshot.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow %s: %w", snapshot.ID, err)
	}

	// The message log is append-only, so only rows past the stored count
	// are inserted.
	var storedCount int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM workflow_messages WHERE workflow_id = ?`, snapshot.ID,
	).Scan(&storedCount)
	if err != nil {
		return fmt.Errorf("failed to count messages for %s: %w", snapshot.ID, err)
	}
	if storedCount < len(snapshot.Messages) {
		if err := insertMessages(tx, snapshot.ID, storedCount, snapshot.Messages); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workflow update: %w", err)
	}
	return nil
}

// GetWorkflow loads a workflow record with its messages.
func (ops *DatabaseOperations) GetWorkflow(id string) (*proto.WorkflowSnapshot, error) {
	row := ops.db.QueryRow(`
		SELECT id, status, failure_reason, error_message, user_request, project_id,
			iteration_count, max_iterations, artifacts, clarifying_questions,
			final_response, ba_result, dev_result, tester_result, created_at, updated_at
		FROM workflows WHERE id = ?`, id)

	snapshot, err := scanWorkflow(row)
	if err != nil {
		return nil, err
	}

	rows, err := ops.db.Query(`
		SELECT id, role, content, timestamp
		FROM workflow_messages WHERE workflow_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var msg proto.Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		snapshot.Messages = append(snapshot.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return snapshot, nil
}

// ListWorkflows returns workflow records ordered by most recent update,
// without their message logs. A limit of 0 means no limit.
func (ops *DatabaseOperations) ListWorkflows(limit int) ([]*proto.WorkflowSnapshot, error) {
	query := `
		SELECT id, status, failure_reason, error_message, user_request, project_id,
			iteration_count, max_iterations, artifacts, clarifying_questions,
			final_response, ba_result, dev_result, tester_result, created_at, updated_at
		FROM workflows ORDER BY updated_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := ops.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []*proto.WorkflowSnapshot
	for rows.Next() {
		snapshot, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}
	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*proto.WorkflowSnapshot, error) {
	var (
		snapshot  proto.WorkflowSnapshot
		status    string
		reason    string
		artifacts string
		questions string
		ba        sql.NullString
		dev       sql.NullString
		tester    sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&snapshot.ID, &status, &reason, &snapshot.ErrorMessage,
		&snapshot.UserRequest, &snapshot.ProjectID,
		&snapshot.IterationCount, &snapshot.MaxIterations,
		&artifacts, &questions, &snapshot.FinalResponse,
		&ba, &dev, &tester, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	snapshot.Status = proto.Status(status)
	snapshot.FailureReason = proto.FailureReason(reason)
	snapshot.CreatedAt = createdAt.UTC()
	snapshot.UpdatedAt = updatedAt.UTC()

	if err := json.Unmarshal([]byte(artifacts), &snapshot.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to decode artifacts for %s: %w", snapshot.ID, err)
	}
	if err := json.Unmarshal([]byte(questions), &snapshot.ClarifyingQuestions); err != nil {
		return nil, fmt.Errorf("failed to decode clarifying questions for %s: %w", snapshot.ID, err)
	}
	if ba.Valid && ba.String != "" {
		snapshot.BAResult = &proto.BAResponse{}
		if err := json.Unmarshal([]byte(ba.String), snapshot.BAResult); err != nil {
			return nil, fmt.Errorf("failed to decode BA result for %s: %w", snapshot.ID, err)
		}
	}
	if dev.Valid && dev.String != "" {
		snapshot.DevResult = &proto.ImplementationResult{}
		if err := json.Unmarshal([]byte(dev.String), snapshot.DevResult); err != nil {
			return nil, fmt.Errorf("failed to decode dev result for %s: %w", snapshot.ID, err)
		}
	}
	if tester.Valid && tester.String != "" {
		snapshot.TesterResult = &proto.TestPlan{}
		if err := json.Unmarshal([]byte(tester.String), snapshot.TesterResult); err != nil {
			return nil, fmt.Errorf("failed to decode tester result for %s: %w", snapshot.ID, err)
		}
	}

	return &snapshot, nil
}

func insertMessages(tx *sql.Tx, workflowID string, from int, messages []proto.Message) error {
	for seq := from; seq < len(messages); seq++ {
		msg := &messages[seq]
		_, err := tx.Exec(`
			INSERT INTO workflow_messages (workflow_id, seq, id, role, content, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			workflowID, seq, msg.ID, msg.Role, msg.Content, msg.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert message %d for %s: %w", seq, workflowID, err)
		}
	}
	return nil
}

func encodeColumns(snapshot *proto.WorkflowSnapshot) (artifacts, questions string, ba, dev, tester sql.NullString, err error) {
	artifactsBytes, err := json.Marshal(valueOrEmpty(snapshot.Artifacts))
	if err != nil {
		return "", "", ba, dev, tester, fmt.Errorf("failed to encode artifacts: %w", err)
	}
	questionBytes, err := json.Marshal(valueOrEmpty(snapshot.ClarifyingQuestions))
	if err != nil {
		return "", "", ba, dev, tester, fmt.Errorf("failed to encode clarifying questions: %w", err)
	}

	ba, err = encodeResult(snapshot.BAResult)
	if err != nil {
		return "", "", ba, dev, tester, err
	}
	dev, err = encodeResult(snapshot.DevResult)
	if err != nil {
		return "", "", ba, dev, tester, err
	}
	tester, err = encodeResult(snapshot.TesterResult)
	if err != nil {
		return "", "", ba, dev, tester, err
	}

	return string(artifactsBytes), string(questionBytes), ba, dev, tester, nil
}

func encodeResult(v any) (sql.NullString, error) {
	switch result := v.(type) {
	case *proto.BAResponse:
		if result == nil {
			return sql.NullString{}, nil
		}
	case *proto.ImplementationResult:
		if result == nil {
			return sql.NullString{}, nil
		}
	case *proto.TestPlan:
		if result == nil {
			return sql.NullString{}, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func valueOrEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
