package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It keeps all workflow entities in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments (the engine is single-node by design)
//   - Local runs requiring durable audit history
//
// WAL mode is enabled for concurrent reads; writes are serialized through a
// single connection, which matches the engine's single-writer-per-workflow
// model.
//
// Schema:
//   - workflows: one row per workflow instance
//   - checkpoints: human-review checkpoints with resolutions
//   - executions: one row per worker invocation
//   - messages: append-only conversation log
//   - continuations: persisted resume state, one row per workflow
//
// Deleting a workflow cascades to every child table.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a new SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./orchestra.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// The store automatically creates the database file and schema, enables WAL
// mode and foreign keys, and sets a busy timeout.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./orchestra.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close() // Ignore close error when returning pragma error
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required database schema if it doesn't exist.
func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN
				('pending','running','awaiting_checkpoint','completed','failed','cancelled')),
			workspace_path TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NULL,
			result TEXT NULL,
			metadata TEXT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status)`,

		`CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT NOT NULL PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			step_name TEXT NOT NULL,
			worker_outputs TEXT NOT NULL DEFAULT '[]',
			editable_content TEXT NOT NULL DEFAULT '',
			instructions TEXT NOT NULL DEFAULT '',
			primary_action TEXT NOT NULL,
			secondary_actions TEXT NOT NULL DEFAULT '[]',
			iteration INTEGER NOT NULL DEFAULT 0,
			resolution TEXT NOT NULL DEFAULT 'pending' CHECK(resolution IN
				('pending','approved','rejected','edited')),
			action TEXT NULL,
			edited_content TEXT NULL,
			notes TEXT NULL,
			resolved_by TEXT NULL,
			created_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP NULL,
			UNIQUE(workflow_id, number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_resolution
			ON checkpoints(workflow_id, resolution)`,
		// At most one pending checkpoint per workflow, enforced at the
		// schema level as a backstop to the coordinator's check.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_one_pending
			ON checkpoints(workflow_id) WHERE resolution = 'pending'`,

		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			worker_name TEXT NOT NULL,
			worker_kind TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT NULL,
			status TEXT NOT NULL CHECK(status IN
				('pending','running','completed','failed')),
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NULL,
			elapsed_ms INTEGER NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_workflow ON executions(workflow_id)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			worker_name TEXT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_workflow ON messages(workflow_id)`,

		`CREATE TABLE IF NOT EXISTS continuations (
			workflow_id TEXT NOT NULL PRIMARY KEY REFERENCES workflows(id) ON DELETE CASCADE,
			node TEXT NOT NULL,
			state TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// CreateWorkflow persists a new workflow record (implements Store).
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (id, name, type, status, workspace_path, created_at, updated_at, completed_at, result, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		wf.ID, wf.Name, wf.Type, string(wf.Status), wf.WorkspacePath,
		wf.CreatedAt.UTC().Format(time.RFC3339Nano),
		wf.UpdatedAt.UTC().Format(time.RFC3339Nano),
		nullTime(wf.CompletedAt), nullRaw(wf.Result), nullRaw(wf.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID (implements Store).
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, type, status, workspace_path, created_at, updated_at, completed_at, result, metadata
		FROM workflows WHERE id = ?
	`
	wf, err := scanWorkflow(s.db.QueryRowContext(ctx, query, id))
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
func (s *SQLiteStore) UpdateWorkflowStatus(ctx context.Context, id string, status Status, upd WorkflowUpdate) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	query := `
		UPDATE workflows
		SET status = ?,
			updated_at = ?,
			completed_at = COALESCE(?, completed_at),
			result = COALESCE(?, result)
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		string(status),
		time.Now().UTC().Format(time.RFC3339Nano),
		nullTime(upd.CompletedAt),
		nullRaw(upd.Result),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow status: %w", err)
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

// ListWorkflowsByStatus returns workflows matching any of the given statuses
// (implements Store). No statuses means all workflows.
func (s *SQLiteStore) ListWorkflowsByStatus(ctx context.Context, statuses ...Status) ([]*Workflow, error) {
	if err := s.checkOpen(); err != nil {
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

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var workflows []*Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
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
func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
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
// The per-workflow checkpoint number is assigned inside the insert
// transaction; the partial unique index on pending checkpoints guards the
// one-pending-per-workflow invariant against races.
func (s *SQLiteStore) CreateCheckpoint(ctx context.Context, cp *Checkpoint) error {
	if err := s.checkOpen(); err != nil {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var pending int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE workflow_id = ? AND resolution = 'pending'`,
		cp.WorkflowID,
	).Scan(&pending)
	if err != nil {
		return fmt.Errorf("failed to check pending checkpoints: %w", err)
	}
	if pending > 0 {
		err = ErrPendingCheckpointExists
		return err
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM checkpoints WHERE workflow_id = ?`,
		cp.WorkflowID,
	).Scan(&cp.Number)
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
		cp.Iteration, cp.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "idx_checkpoints_one_pending") {
			err = ErrPendingCheckpointExists
		} else {
			err = fmt.Errorf("failed to insert checkpoint: %w", err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint by ID (implements Store).
func (s *SQLiteStore) GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, checkpointSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// PendingCheckpoint returns the workflow's pending checkpoint (implements
// Store). Always served from the database, never a cache.
func (s *SQLiteStore) PendingCheckpoint(ctx context.Context, workflowID string) (*Checkpoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx,
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
func (s *SQLiteStore) ResolveCheckpoint(ctx context.Context, id string, res CheckpointResolution) (*Checkpoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
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
		res.ResolvedAt.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkpoint: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish missing from already-resolved.
		if _, err := s.GetCheckpoint(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrCheckpointResolved
	}

	return s.GetCheckpoint(ctx, id)
}

// ListCheckpoints returns a workflow's checkpoints ordered by number
// (implements Store).
func (s *SQLiteStore) ListCheckpoints(ctx context.Context, workflowID string) ([]*Checkpoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		checkpointSelect+` WHERE workflow_id = ? ORDER BY number ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var checkpoints []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
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
func (s *SQLiteStore) CreateExecution(ctx context.Context, ex *Execution) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (workflow_id, worker_name, worker_kind, input, output, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ex.WorkflowID, ex.WorkerName, ex.WorkerKind, ex.Input,
		nullString(ex.Output), string(ex.Status),
		ex.StartedAt.UTC().Format(time.RFC3339Nano),
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
func (s *SQLiteStore) FinishExecution(ctx context.Context, id int64, status ExecutionStatus, output string, completedAt time.Time) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET status = ?,
			output = ?,
			completed_at = ?,
			elapsed_ms = CAST((julianday(?) - julianday(started_at)) * 86400000 AS INTEGER)
		WHERE id = ?
	`,
		string(status), output,
		completedAt.UTC().Format(time.RFC3339Nano),
		completedAt.UTC().Format(time.RFC3339Nano),
		id,
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
func (s *SQLiteStore) ListExecutions(ctx context.Context, workflowID string) ([]*Execution, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
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
			startedAt   string
			completedAt sql.NullString
			elapsed     sql.NullInt64
			status      string
		)
		if err := rows.Scan(&ex.ID, &ex.WorkflowID, &ex.WorkerName, &ex.WorkerKind,
			&ex.Input, &output, &status, &startedAt, &completedAt, &elapsed); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		ex.Status = ExecutionStatus(status)
		ex.Output = output.String
		ex.ElapsedMS = elapsed.Int64
		if ex.StartedAt, err = parseTimestamp(startedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t, err := parseTimestamp(completedAt.String)
			if err != nil {
				return nil, err
			}
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
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (workflow_id, role, content, worker_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		msg.WorkflowID, msg.Role, msg.Content, nullString(msg.WorkerName),
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
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
func (s *SQLiteStore) ListMessages(ctx context.Context, workflowID string, limit int) ([]*Message, error) {
	if err := s.checkOpen(); err != nil {
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

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*Message
	for rows.Next() {
		var (
			msg       Message
			worker    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &msg.WorkflowID, &msg.Role, &msg.Content, &worker, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.WorkerName = worker.String
		if msg.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	// Rows were fetched newest-first to honor the limit; flip to
	// chronological order for callers.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SaveContinuation upserts the workflow's continuation (implements Store).
func (s *SQLiteStore) SaveContinuation(ctx context.Context, c *Continuation) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO continuations (workflow_id, node, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(workflow_id) DO UPDATE SET
			node = excluded.node,
			state = excluded.state,
			updated_at = excluded.updated_at
	`,
		c.WorkflowID, c.Node, string(c.State),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save continuation: %w", err)
	}
	return nil
}

// LoadContinuation retrieves the workflow's continuation (implements Store).
func (s *SQLiteStore) LoadContinuation(ctx context.Context, workflowID string) (*Continuation, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var (
		c         Continuation
		state     string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT workflow_id, node, state, updated_at
		FROM continuations WHERE workflow_id = ?
	`, workflowID).Scan(&c.WorkflowID, &c.Node, &state, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load continuation: %w", err)
	}
	c.State = json.RawMessage(state)
	if c.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Close closes the database connection. Double-close is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

const checkpointSelect = `
	SELECT id, workflow_id, number, step_name, worker_outputs, editable_content,
		instructions, primary_action, secondary_actions, iteration, resolution,
		action, edited_content, notes, resolved_by, created_at, resolved_at
	FROM checkpoints`

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row rowScanner) (*Workflow, error) {
	var (
		wf          Workflow
		status      string
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
		result      sql.NullString
		metadata    sql.NullString
	)
	err := row.Scan(&wf.ID, &wf.Name, &wf.Type, &status, &wf.WorkspacePath,
		&createdAt, &updatedAt, &completedAt, &result, &metadata)
	if err != nil {
		return nil, err
	}
	wf.Status = Status(status)
	if wf.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if wf.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTimestamp(completedAt.String)
		if err != nil {
			return nil, err
		}
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

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var (
		cp            Checkpoint
		outputsJSON   string
		secondaryJSON string
		resolution    string
		action        sql.NullString
		editedContent sql.NullString
		notes         sql.NullString
		resolvedBy    sql.NullString
		createdAt     string
		resolvedAt    sql.NullString
	)
	err := row.Scan(&cp.ID, &cp.WorkflowID, &cp.Number, &cp.StepName, &outputsJSON,
		&cp.EditableContent, &cp.Instructions, &cp.Actions.Primary, &secondaryJSON,
		&cp.Iteration, &resolution, &action, &editedContent, &notes, &resolvedBy,
		&createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	cp.Resolution = CheckpointStatus(resolution)
	cp.Action = action.String
	cp.EditedContent = editedContent.String
	cp.Notes = notes.String
	cp.ResolvedBy = resolvedBy.String
	if err := json.Unmarshal([]byte(outputsJSON), &cp.WorkerOutputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker outputs: %w", err)
	}
	if err := json.Unmarshal([]byte(secondaryJSON), &cp.Actions.Secondary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secondary actions: %w", err)
	}
	if cp.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t, err := parseTimestamp(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		cp.ResolvedAt = &t
	}
	return &cp, nil
}

func parseTimestamp(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullRaw(r json.RawMessage) interface{} {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
