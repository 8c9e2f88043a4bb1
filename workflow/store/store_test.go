package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// newTestStores returns one instance of every Store implementation that can
// run without external services. Each test exercises all of them so the
// backends stay behaviorally identical.
func newTestStores(t *testing.T) map[string]Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqlite, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	mem := NewMemStore()
	t.Cleanup(func() { _ = mem.Close() })

	return map[string]Store{
		"memory": mem,
		"sqlite": sqlite,
	}
}

func newTestWorkflow(id string) *Workflow {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Workflow{
		ID:        id,
		Name:      "Test workflow",
		Type:      "plan_review",
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_WorkflowLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			wf := newTestWorkflow("wf-aaa111bbb222")
			if err := s.CreateWorkflow(ctx, wf); err != nil {
				t.Fatalf("CreateWorkflow failed: %v", err)
			}

			got, err := s.GetWorkflow(ctx, wf.ID)
			if err != nil {
				t.Fatalf("GetWorkflow failed: %v", err)
			}
			if got.Status != StatusPending {
				t.Errorf("expected status pending, got %s", got.Status)
			}
			if got.Type != "plan_review" {
				t.Errorf("expected type plan_review, got %q", got.Type)
			}

			if err := s.UpdateWorkflowStatus(ctx, wf.ID, StatusRunning, WorkflowUpdate{}); err != nil {
				t.Fatalf("UpdateWorkflowStatus failed: %v", err)
			}

			completed := time.Now().UTC().Truncate(time.Millisecond)
			result := json.RawMessage(`{"final_plan":"done"}`)
			err = s.UpdateWorkflowStatus(ctx, wf.ID, StatusCompleted, WorkflowUpdate{
				CompletedAt: &completed,
				Result:      result,
			})
			if err != nil {
				t.Fatalf("UpdateWorkflowStatus to completed failed: %v", err)
			}

			got, err = s.GetWorkflow(ctx, wf.ID)
			if err != nil {
				t.Fatalf("GetWorkflow failed: %v", err)
			}
			if got.Status != StatusCompleted {
				t.Errorf("expected status completed, got %s", got.Status)
			}
			if got.CompletedAt == nil {
				t.Error("expected CompletedAt to be set")
			}
			if string(got.Result) != string(result) {
				t.Errorf("expected result %s, got %s", result, got.Result)
			}

			// Unknown workflow
			if _, err := s.GetWorkflow(ctx, "wf-missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for missing workflow, got %v", err)
			}
			if err := s.UpdateWorkflowStatus(ctx, "wf-missing", StatusRunning, WorkflowUpdate{}); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for missing workflow update, got %v", err)
			}
		})
	}
}

func TestStore_ListWorkflowsByStatus(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			for i, status := range []Status{StatusRunning, StatusAwaitingCheckpoint, StatusCompleted} {
				wf := newTestWorkflow(fmt.Sprintf("wf-%012d", i))
				wf.CreatedAt = wf.CreatedAt.Add(time.Duration(i) * time.Millisecond)
				wf.Status = status
				if err := s.CreateWorkflow(ctx, wf); err != nil {
					t.Fatalf("CreateWorkflow failed: %v", err)
				}
			}

			active, err := s.ListWorkflowsByStatus(ctx, StatusRunning, StatusAwaitingCheckpoint)
			if err != nil {
				t.Fatalf("ListWorkflowsByStatus failed: %v", err)
			}
			if len(active) != 2 {
				t.Fatalf("expected 2 active workflows, got %d", len(active))
			}
			if active[0].ID != "wf-000000000000" {
				t.Errorf("expected creation-time ordering, got first id %s", active[0].ID)
			}

			all, err := s.ListWorkflowsByStatus(ctx)
			if err != nil {
				t.Fatalf("ListWorkflowsByStatus with no statuses failed: %v", err)
			}
			if len(all) != 3 {
				t.Errorf("expected all 3 workflows for no statuses, got %d", len(all))
			}
		})
	}
}

func TestStore_CheckpointInvariants(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			wf := newTestWorkflow("wf-checkpoint01")
			if err := s.CreateWorkflow(ctx, wf); err != nil {
				t.Fatalf("CreateWorkflow failed: %v", err)
			}

			cp1 := &Checkpoint{
				ID:              "cp-1",
				WorkflowID:      wf.ID,
				StepName:        "plan_ready_for_review",
				EditableContent: "the plan",
				Actions: ActionSet{
					Primary:   "send_to_reviewers",
					Secondary: []string{"edit_and_continue", "cancel"},
				},
				CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
			}
			if err := s.CreateCheckpoint(ctx, cp1); err != nil {
				t.Fatalf("CreateCheckpoint failed: %v", err)
			}
			if cp1.Number != 1 {
				t.Errorf("expected first checkpoint number 1, got %d", cp1.Number)
			}

			// Second pending checkpoint for the same workflow must be rejected.
			dup := &Checkpoint{
				ID:         "cp-dup",
				WorkflowID: wf.ID,
				StepName:   "plan_ready_for_review",
				Actions:    ActionSet{Primary: "send_to_reviewers"},
				CreatedAt:  time.Now().UTC(),
			}
			if err := s.CreateCheckpoint(ctx, dup); !errors.Is(err, ErrPendingCheckpointExists) {
				t.Fatalf("expected ErrPendingCheckpointExists, got %v", err)
			}

			pending, err := s.PendingCheckpoint(ctx, wf.ID)
			if err != nil {
				t.Fatalf("PendingCheckpoint failed: %v", err)
			}
			if pending.ID != "cp-1" {
				t.Errorf("expected pending checkpoint cp-1, got %s", pending.ID)
			}
			if !pending.Actions.Contains("cancel") {
				t.Error("expected actions to contain cancel")
			}

			// Resolve, then the next checkpoint gets number 2.
			res := CheckpointResolution{
				Status:     CheckpointApproved,
				Action:     "send_to_reviewers",
				ResolvedBy: "user",
				ResolvedAt: time.Now().UTC().Truncate(time.Millisecond),
			}
			resolved, err := s.ResolveCheckpoint(ctx, cp1.ID, res)
			if err != nil {
				t.Fatalf("ResolveCheckpoint failed: %v", err)
			}
			if resolved.Resolution != CheckpointApproved {
				t.Errorf("expected resolution approved, got %s", resolved.Resolution)
			}
			if resolved.ResolvedAt == nil {
				t.Error("expected ResolvedAt to be set")
			}

			// Second resolution attempt is rejected, record unchanged.
			_, err = s.ResolveCheckpoint(ctx, cp1.ID, CheckpointResolution{
				Status:     CheckpointRejected,
				ResolvedAt: time.Now().UTC(),
			})
			if !errors.Is(err, ErrCheckpointResolved) {
				t.Fatalf("expected ErrCheckpointResolved, got %v", err)
			}
			again, err := s.GetCheckpoint(ctx, cp1.ID)
			if err != nil {
				t.Fatalf("GetCheckpoint failed: %v", err)
			}
			if again.Resolution != CheckpointApproved {
				t.Errorf("resolution changed after rejected CAS: %s", again.Resolution)
			}

			if _, err := s.PendingCheckpoint(ctx, wf.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after resolution, got %v", err)
			}

			cp2 := &Checkpoint{
				ID:         "cp-2",
				WorkflowID: wf.ID,
				StepName:   "reviews_ready_for_consolidation",
				Actions:    ActionSet{Primary: "request_revision"},
				Iteration:  1,
				CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
			}
			if err := s.CreateCheckpoint(ctx, cp2); err != nil {
				t.Fatalf("CreateCheckpoint for second checkpoint failed: %v", err)
			}
			if cp2.Number != 2 {
				t.Errorf("expected second checkpoint number 2, got %d", cp2.Number)
			}

			all, err := s.ListCheckpoints(ctx, wf.ID)
			if err != nil {
				t.Fatalf("ListCheckpoints failed: %v", err)
			}
			if len(all) != 2 {
				t.Fatalf("expected 2 checkpoints in history, got %d", len(all))
			}
			if all[0].Number != 1 || all[1].Number != 2 {
				t.Errorf("expected numbers [1 2], got [%d %d]", all[0].Number, all[1].Number)
			}
		})
	}
}

func TestStore_CheckpointWorkerOutputs(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			wf := newTestWorkflow("wf-outputs00001")
			if err := s.CreateWorkflow(ctx, wf); err != nil {
				t.Fatalf("CreateWorkflow failed: %v", err)
			}

			ts := time.Now().UTC().Truncate(time.Millisecond)
			cp := &Checkpoint{
				ID:         "cp-outputs",
				WorkflowID: wf.ID,
				StepName:   "reviews_ready_for_consolidation",
				WorkerOutputs: []WorkerOutput{
					{WorkerName: "reviewer-1", WorkerKind: "reviewer", Output: "APPROVE", Timestamp: ts},
					{WorkerName: "reviewer-2", WorkerKind: "reviewer", Output: "Concerns: scope", Timestamp: ts},
				},
				Actions:   ActionSet{Primary: "request_revision", Secondary: []string{"approve", "cancel"}},
				CreatedAt: ts,
			}
			if err := s.CreateCheckpoint(ctx, cp); err != nil {
				t.Fatalf("CreateCheckpoint failed: %v", err)
			}

			got, err := s.GetCheckpoint(ctx, cp.ID)
			if err != nil {
				t.Fatalf("GetCheckpoint failed: %v", err)
			}
			if len(got.WorkerOutputs) != 2 {
				t.Fatalf("expected 2 worker outputs, got %d", len(got.WorkerOutputs))
			}
			if got.WorkerOutputs[1].WorkerName != "reviewer-2" {
				t.Errorf("expected reviewer-2, got %q", got.WorkerOutputs[1].WorkerName)
			}
			if got.WorkerOutputs[0].Output != "APPROVE" {
				t.Errorf("expected APPROVE output, got %q", got.WorkerOutputs[0].Output)
			}
		})
	}
}

func TestStore_Executions(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			wf := newTestWorkflow("wf-exec00000001")
			if err := s.CreateWorkflow(ctx, wf); err != nil {
				t.Fatalf("CreateWorkflow failed: %v", err)
			}

			started := time.Now().UTC().Truncate(time.Millisecond)
			ex := &Execution{
				WorkflowID: wf.ID,
				WorkerName: "planner",
				WorkerKind: "planner",
				Input:      "Create a plan",
				Status:     ExecutionRunning,
				StartedAt:  started,
			}
			if err := s.CreateExecution(ctx, ex); err != nil {
				t.Fatalf("CreateExecution failed: %v", err)
			}
			if ex.ID == 0 {
				t.Fatal("expected execution ID to be assigned")
			}

			completed := started.Add(1500 * time.Millisecond)
			if err := s.FinishExecution(ctx, ex.ID, ExecutionCompleted, "the plan", completed); err != nil {
				t.Fatalf("FinishExecution failed: %v", err)
			}

			list, err := s.ListExecutions(ctx, wf.ID)
			if err != nil {
				t.Fatalf("ListExecutions failed: %v", err)
			}
			if len(list) != 1 {
				t.Fatalf("expected 1 execution, got %d", len(list))
			}
			got := list[0]
			if got.Status != ExecutionCompleted {
				t.Errorf("expected completed status, got %s", got.Status)
			}
			if got.Output != "the plan" {
				t.Errorf("expected output 'the plan', got %q", got.Output)
			}
			if got.ElapsedMS < 1400 || got.ElapsedMS > 1600 {
				t.Errorf("expected elapsed near 1500ms, got %d", got.ElapsedMS)
			}
		})
	}
}

func TestStore_Messages(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			wf := newTestWorkflow("wf-msgs0000001")
			if err := s.CreateWorkflow(ctx, wf); err != nil {
				t.Fatalf("CreateWorkflow failed: %v", err)
			}

			for i := 0; i < 5; i++ {
				msg := &Message{
					WorkflowID: wf.ID,
					Role:       "assistant",
					Content:    fmt.Sprintf("message %d", i),
					WorkerName: "planner",
					CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
				}
				if err := s.AppendMessage(ctx, msg); err != nil {
					t.Fatalf("AppendMessage failed: %v", err)
				}
			}

			all, err := s.ListMessages(ctx, wf.ID, 0)
			if err != nil {
				t.Fatalf("ListMessages failed: %v", err)
			}
			if len(all) != 5 {
				t.Fatalf("expected 5 messages, got %d", len(all))
			}
			if all[0].Content != "message 0" || all[4].Content != "message 4" {
				t.Error("expected chronological ordering")
			}

			last, err := s.ListMessages(ctx, wf.ID, 2)
			if err != nil {
				t.Fatalf("ListMessages with limit failed: %v", err)
			}
			if len(last) != 2 {
				t.Fatalf("expected 2 messages with limit, got %d", len(last))
			}
			if last[0].Content != "message 3" || last[1].Content != "message 4" {
				t.Errorf("expected last two in order, got %q, %q", last[0].Content, last[1].Content)
			}
		})
	}
}

func TestStore_Continuations(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			wf := newTestWorkflow("wf-cont0000001")
			if err := s.CreateWorkflow(ctx, wf); err != nil {
				t.Fatalf("CreateWorkflow failed: %v", err)
			}

			if _, err := s.LoadContinuation(ctx, wf.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound before save, got %v", err)
			}

			c := &Continuation{
				WorkflowID: wf.ID,
				Node:       "await_plan_review",
				State:      json.RawMessage(`{"plan":"v1","iteration":0}`),
				UpdatedAt:  time.Now().UTC().Truncate(time.Millisecond),
			}
			if err := s.SaveContinuation(ctx, c); err != nil {
				t.Fatalf("SaveContinuation failed: %v", err)
			}

			// Upsert replaces the previous continuation.
			c.Node = "await_consolidation_review"
			c.State = json.RawMessage(`{"plan":"v2","iteration":1}`)
			if err := s.SaveContinuation(ctx, c); err != nil {
				t.Fatalf("SaveContinuation upsert failed: %v", err)
			}

			got, err := s.LoadContinuation(ctx, wf.ID)
			if err != nil {
				t.Fatalf("LoadContinuation failed: %v", err)
			}
			if got.Node != "await_consolidation_review" {
				t.Errorf("expected updated node, got %q", got.Node)
			}
			var state map[string]interface{}
			if err := json.Unmarshal(got.State, &state); err != nil {
				t.Fatalf("continuation state is not valid JSON: %v", err)
			}
			if state["plan"] != "v2" {
				t.Errorf("expected plan v2, got %v", state["plan"])
			}
		})
	}
}

func TestStore_DeleteWorkflowCascades(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			wf := newTestWorkflow("wf-delete000001")
			if err := s.CreateWorkflow(ctx, wf); err != nil {
				t.Fatalf("CreateWorkflow failed: %v", err)
			}
			cp := &Checkpoint{
				ID:         "cp-delete",
				WorkflowID: wf.ID,
				StepName:   "plan_ready_for_review",
				Actions:    ActionSet{Primary: "send_to_reviewers"},
				CreatedAt:  time.Now().UTC(),
			}
			if err := s.CreateCheckpoint(ctx, cp); err != nil {
				t.Fatalf("CreateCheckpoint failed: %v", err)
			}
			if err := s.SaveContinuation(ctx, &Continuation{
				WorkflowID: wf.ID,
				Node:       "await_plan_review",
				State:      json.RawMessage(`{}`),
				UpdatedAt:  time.Now().UTC(),
			}); err != nil {
				t.Fatalf("SaveContinuation failed: %v", err)
			}

			if err := s.DeleteWorkflow(ctx, wf.ID); err != nil {
				t.Fatalf("DeleteWorkflow failed: %v", err)
			}

			if _, err := s.GetWorkflow(ctx, wf.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected workflow gone, got %v", err)
			}
			if _, err := s.GetCheckpoint(ctx, cp.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected checkpoint gone, got %v", err)
			}
			if _, err := s.LoadContinuation(ctx, wf.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected continuation gone, got %v", err)
			}

			if err := s.DeleteWorkflow(ctx, wf.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound on double delete, got %v", err)
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:            false,
		StatusRunning:            false,
		StatusAwaitingCheckpoint: false,
		StatusCompleted:          true,
		StatusFailed:             true,
		StatusCancelled:          true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("Status(%s).Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestStore_ClosedStore(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	_ = mem.Close()
	if err := mem.CreateWorkflow(ctx, newTestWorkflow("wf-closed")); err == nil {
		t.Error("expected error on closed store")
	}

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	_ = sqlite.Close()
	if err := sqlite.Close(); err != nil {
		t.Errorf("double close should be a no-op, got %v", err)
	}
	if _, err := sqlite.GetWorkflow(ctx, "wf-any"); err == nil {
		t.Error("expected error on closed store")
	}
}
