package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Designed for:
//   - Production workflows requiring persistence
//   - Deployments where the database outlives the orchestrator process
//   - Audit trails and compliance requirements
//
// MySQLStore uses connection pooling and transactions for reliability. MySQL
// has no partial unique indexes, so the one-pending-checkpoint invariant is
// enforced with a SELECT ... FOR UPDATE inside the create transaction.
//
// Security Warning:
//
//	NEVER hardcode credentials in your source code. Use environment variables:
//	    dsn := os.Getenv("MYSQL_DSN")
//	    if dsn == "" {
//	        log.Fatal("MYSQL_DSN environment variable not set")
//	    }
//	    st, err := store.NewMySQLStore(dsn + "?parseTime=true")
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a new MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// parseTime=true is required so TIMESTAMP columns scan into time.Time.
//
// The store automatically:
//   - Creates required tables if they don't exist
//   - Configures connection pooling
//   - Verifies the connection with a ping
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// createTables creates the required database schema if it doesn't exist.
func (m *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			type VARCHAR(64) NOT NULL,
			status ENUM('pending','running','awaiting_checkpoint','completed','failed','cancelled') NOT NULL,
			workspace_path VARCHAR(1024) NOT NULL DEFAULT '',
			created_at TIMESTAMP(6) NOT NULL,
			updated_at TIMESTAMP(6) NOT NULL,
			completed_at TIMESTAMP(6) NULL,
			result JSON NULL,
			metadata JSON NULL,
			INDEX idx_workflows_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS checkpoints (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			workflow_id VARCHAR(64) NOT NULL,
			number INT NOT NULL,
			step_name VARCHAR(255) NOT NULL,
			worker_outputs JSON NOT NULL,
			editable_content MEDIUMTEXT NOT NULL,
			instructions TEXT NOT NULL,
			primary_action VARCHAR(64) NOT NULL,
			secondary_actions JSON NOT NULL,
			iteration INT NOT NULL DEFAULT 0,
			resolution ENUM('pending','approved','rejected','edited') NOT NULL DEFAULT 'pending',
			action VARCHAR(64) NULL,
			edited_content MEDIUMTEXT NULL,
			notes TEXT NULL,
			resolved_by VARCHAR(255) NULL,
			created_at TIMESTAMP(6) NOT NULL,
			resolved_at TIMESTAMP(6) NULL,
			UNIQUE KEY unique_workflow_number (workflow_id, number),
			INDEX idx_checkpoints_resolution (workflow_id, resolution),
			CONSTRAINT fk_checkpoints_workflow FOREIGN KEY (workflow_id)
				REFERENCES workflows(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS executions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			workflow_id VARCHAR(64) NOT NULL,
			worker_name VARCHAR(255) NOT NULL,
			worker_kind VARCHAR(64) NOT NULL,
			input MEDIUMTEXT NOT NULL,
			output MEDIUMTEXT NULL,
			status ENUM('pending','running','completed','failed') NOT NULL,
			started_at TIMESTAMP(6) NOT NULL,
			completed_at TIMESTAMP(6) NULL,
			elapsed_ms BIGINT NULL,
			INDEX idx_executions_workflow (workflow_id),
			CONSTRAINT fk_executions_workflow FOREIGN KEY (workflow_id)
				REFERENCES workflows(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS messages (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			workflow_id VARCHAR(64) NOT NULL,
			role VARCHAR(32) NOT NULL,
			content MEDIUMTEXT NOT NULL,
			worker_name VARCHAR(255) NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_messages_workflow (workflow_id),
			CONSTRAINT fk_messages_workflow FOREIGN KEY (workflow_id)
				REFERENCES workflows(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS continuations (
			workflow_id VARCHAR(64) NOT NULL PRIMARY KEY,
			node VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			updated_at TIMESTAMP(6) NOT NULL,
			CONSTRAINT fk_continuations_workflow FOREIGN KEY (workflow_id)
				REFERENCES workflows(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}

	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (m *MySQLStore) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// CreateWorkflow persists a new workflow record (implements Store).
func (m *MySQLStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, type, status, workspace_path, created_at, updated_at, completed_at, result, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		wf.ID, wf.Name, wf.Type, string(wf.Status), wf.WorkspacePath,
		wf.CreatedAt.UTC(), wf.UpdatedAt.UTC(),
		mysqlNullTime(wf.CompletedAt), nullRaw(wf.Result), nullRaw(wf.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID (implements Store).
func (m *MySQLStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	wf, err := mysqlScanWorkflow(m.db.QueryRowContext(ctx, `
		SELECT id, name, type, status, workspace_path, created_at, updated_at, completed_at, result, metadata
		FROM workflows WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	return wf, nil
}

// UpdateWorkflowStatus atomically writes a new status and optional fields
// (implements Store).
func (m *MySQLStore) UpdateWorkflowStatus(ctx context.Context, id string, status Status, upd WorkflowUpdate) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, `
		UPDATE workflows
		SET status = ?,
			updated_at = ?,
			completed_at = COALESCE(?, completed_at),
			result = COALESCE(?, result)
		WHERE id = ?
	`,
		string(status), time.Now().UTC(),
		mysqlNullTime(upd.CompletedAt), nullRaw(upd.Result), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		// RowsAffected is 0 for no-op updates too; confirm existence.
		if _, err := m.GetWorkflow(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListWorkflowsByStatus returns workflows matching any of the given statuses
// (implements Store). No statuses means all workflows.
func (m *MySQLStore) ListWorkflowsByStatus(ctx context.Context, statuses ...Status) ([]*Workflow, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	where := ""
	args := make([]interface{}, len(statuses))
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
		where = "WHERE status IN (" + placeholders + ")"
		for i, st := range statuses {
			args[i] = string(st)
		}
	}

	// #nosec G201 -- placeholders are "?" marks, not user input
	query := fmt.Sprintf(`
		SELECT id, name, type, status, workspace_path, created_at, updated_at, completed_at, result, metadata
		FROM workflows
		%s
		ORDER BY created_at ASC
	`, where)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var workflows []*Workflow
	for rows.Next() {
		wf, err := mysqlScanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow rows: %w", err)
	}
	return workflows, nil
}

// DeleteWorkflow removes a workflow and its child records via FK cascade
// (implements Store).
func (m *MySQLStore) DeleteWorkflow(ctx context.Context, id string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateCheckpoint persists a new pending checkpoint (implements Store).
//
// The pending-count check and number assignment lock the workflow's
// checkpoint rows with FOR UPDATE so concurrent creators serialize.
func (m *MySQLStore) CreateCheckpoint(ctx context.Context, cp *Checkpoint) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	outputsJSON, err := json.Marshal(cp.WorkerOutputs)
	if err != nil {
		return fmt.Errorf("failed to marshal worker outputs: %w", err)
	}
	secondaryJSON, err := json.Marshal(cp.Actions.Secondary)
	if err != nil {
		return fmt.Errorf("failed to marshal secondary actions: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var pending int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM checkpoints
		WHERE workflow_id = ? AND resolution = 'pending'
		FOR UPDATE
	`, cp.WorkflowID).Scan(&pending)
	if err != nil {
		return fmt.Errorf("failed to check pending checkpoints: %w", err)
	}
	if pending > 0 {
		err = ErrPendingCheckpointExists
		return err
	}

	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(number), 0) + 1 FROM checkpoints WHERE workflow_id = ? FOR UPDATE
	`, cp.WorkflowID).Scan(&cp.Number)
	if err != nil {
		return fmt.Errorf("failed to assign checkpoint number: %w", err)
	}

	cp.Resolution = CheckpointPending
	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints
			(id, workflow_id, number, step_name, worker_outputs, editable_content,
			 instructions, primary_action, secondary_actions, iteration, resolution, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)
	`,
		cp.ID, cp.WorkflowID, cp.Number, cp.StepName, string(outputsJSON),
		cp.EditableContent, cp.Instructions, cp.Actions.Primary, string(secondaryJSON),
		cp.Iteration, cp.CreatedAt.UTC(),
	)
	if err != nil {
		err = fmt.Errorf("failed to insert checkpoint: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint by ID (implements Store).
func (m *MySQLStore) GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	cp, err := mysqlScanCheckpoint(m.db.QueryRowContext(ctx, checkpointSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// PendingCheckpoint returns the workflow's pending checkpoint (implements
// Store).
func (m *MySQLStore) PendingCheckpoint(ctx context.Context, workflowID string) (*Checkpoint, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	cp, err := mysqlScanCheckpoint(m.db.QueryRowContext(ctx,
		checkpointSelect+` WHERE workflow_id = ? AND resolution = 'pending'`, workflowID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending checkpoint: %w", err)
	}
	return cp, nil
}

// ResolveCheckpoint applies a resolution via compare-and-set on the pending
// status (implements Store).
func (m *MySQLStore) ResolveCheckpoint(ctx context.Context, id string, res CheckpointResolution) (*Checkpoint, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE checkpoints
		SET resolution = ?,
			action = ?,
			edited_content = ?,
			notes = ?,
			resolved_by = ?,
			resolved_at = ?
		WHERE id = ? AND resolution = 'pending'
	`,
		string(res.Status), res.Action, res.EditedContent, res.Notes, res.ResolvedBy,
		res.ResolvedAt.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkpoint: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		if _, err := m.GetCheckpoint(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrCheckpointResolved
	}

	return m.GetCheckpoint(ctx, id)
}

// ListCheckpoints returns a workflow's checkpoints ordered by number
// (implements Store).
func (m *MySQLStore) ListCheckpoints(ctx context.Context, workflowID string) ([]*Checkpoint, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx,
		checkpointSelect+` WHERE workflow_id = ? ORDER BY number ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var checkpoints []*Checkpoint
	for rows.Next() {
		cp, err := mysqlScanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return checkpoints, nil
}

// CreateExecution persists a new execution record (implements Store).
func (m *MySQLStore) CreateExecution(ctx context.Context, ex *Execution) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, `
		INSERT INTO executions (workflow_id, worker_name, worker_kind, input, output, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ex.WorkflowID, ex.WorkerName, ex.WorkerKind, ex.Input,
		nullString(ex.Output), string(ex.Status), ex.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	ex.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read execution id: %w", err)
	}
	return nil
}

// FinishExecution records an execution's terminal status (implements Store).
func (m *MySQLStore) FinishExecution(ctx context.Context, id int64, status ExecutionStatus, output string, completedAt time.Time) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, `
		UPDATE executions
		SET status = ?,
			output = ?,
			completed_at = ?,
			elapsed_ms = TIMESTAMPDIFF(MICROSECOND, started_at, ?) DIV 1000
		WHERE id = ?
	`,
		string(status), output, completedAt.UTC(), completedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExecutions returns a workflow's executions ordered by start time
// (implements Store).
func (m *MySQLStore) ListExecutions(ctx context.Context, workflowID string) ([]*Execution, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, workflow_id, worker_name, worker_kind, input, output, status, started_at, completed_at, elapsed_ms
		FROM executions
		WHERE workflow_id = ?
		ORDER BY started_at ASC, id ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var executions []*Execution
	for rows.Next() {
		var (
			ex          Execution
			output      sql.NullString
			status      string
			completedAt sql.NullTime
			elapsed     sql.NullInt64
		)
		if err := rows.Scan(&ex.ID, &ex.WorkflowID, &ex.WorkerName, &ex.WorkerKind,
			&ex.Input, &output, &status, &ex.StartedAt, &completedAt, &elapsed); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		ex.Status = ExecutionStatus(status)
		ex.Output = output.String
		ex.ElapsedMS = elapsed.Int64
		if completedAt.Valid {
			t := completedAt.Time
			ex.CompletedAt = &t
		}
		executions = append(executions, &ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution rows: %w", err)
	}
	return executions, nil
}

// AppendMessage appends to the conversation log (implements Store).
func (m *MySQLStore) AppendMessage(ctx context.Context, msg *Message) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, `
		INSERT INTO messages (workflow_id, role, content, worker_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		msg.WorkflowID, msg.Role, msg.Content, nullString(msg.WorkerName), msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	msg.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message id: %w", err)
	}
	return nil
}

// ListMessages returns up to limit most recent messages in chronological
// order (implements Store).
func (m *MySQLStore) ListMessages(ctx context.Context, workflowID string, limit int) ([]*Message, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, workflow_id, role, content, worker_name, created_at
		FROM messages
		WHERE workflow_id = ?
		ORDER BY id DESC
	`
	args := []interface{}{workflowID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*Message
	for rows.Next() {
		var (
			msg    Message
			worker sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.WorkflowID, &msg.Role, &msg.Content, &worker, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.WorkerName = worker.String
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SaveContinuation upserts the workflow's continuation (implements Store).
func (m *MySQLStore) SaveContinuation(ctx context.Context, c *Continuation) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO continuations (workflow_id, node, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			node = VALUES(node),
			state = VALUES(state),
			updated_at = VALUES(updated_at)
	`,
		c.WorkflowID, c.Node, string(c.State), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save continuation: %w", err)
	}
	return nil
}

// LoadContinuation retrieves the workflow's continuation (implements Store).
func (m *MySQLStore) LoadContinuation(ctx context.Context, workflowID string) (*Continuation, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	var (
		c     Continuation
		state []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT workflow_id, node, state, updated_at
		FROM continuations WHERE workflow_id = ?
	`, workflowID).Scan(&c.WorkflowID, &c.Node, &state, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load continuation: %w", err)
	}
	c.State = json.RawMessage(state)
	return &c, nil
}

// Close closes the database connection pool. Double-close is a no-op.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore) Ping(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

// Stats returns database connection pool statistics.
func (m *MySQLStore) Stats() sql.DBStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.Stats()
}

func mysqlScanWorkflow(row rowScanner) (*Workflow, error) {
	var (
		wf          Workflow
		status      string
		completedAt sql.NullTime
		result      sql.NullString
		metadata    sql.NullString
	)
	err := row.Scan(&wf.ID, &wf.Name, &wf.Type, &status, &wf.WorkspacePath,
		&wf.CreatedAt, &wf.UpdatedAt, &completedAt, &result, &metadata)
	if err != nil {
		return nil, err
	}
	wf.Status = Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		wf.CompletedAt = &t
	}
	if result.Valid {
		wf.Result = json.RawMessage(result.String)
	}
	if metadata.Valid {
		wf.Metadata = json.RawMessage(metadata.String)
	}
	return &wf, nil
}

func mysqlScanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var (
		cp            Checkpoint
		outputsJSON   []byte
		secondaryJSON []byte
		resolution    string
		action        sql.NullString
		editedContent sql.NullString
		notes         sql.NullString
		resolvedBy    sql.NullString
		resolvedAt    sql.NullTime
	)
	err := row.Scan(&cp.ID, &cp.WorkflowID, &cp.Number, &cp.StepName, &outputsJSON,
		&cp.EditableContent, &cp.Instructions, &cp.Actions.Primary, &secondaryJSON,
		&cp.Iteration, &resolution, &action, &editedContent, &notes, &resolvedBy,
		&cp.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	cp.Resolution = CheckpointStatus(resolution)
	cp.Action = action.String
	cp.EditedContent = editedContent.String
	cp.Notes = notes.String
	cp.ResolvedBy = resolvedBy.String
	if err := json.Unmarshal(outputsJSON, &cp.WorkerOutputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker outputs: %w", err)
	}
	if err := json.Unmarshal(secondaryJSON, &cp.Actions.Secondary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secondary actions: %w", err)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		cp.ResolvedAt = &t
	}
	return &cp, nil
}

func mysqlNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
