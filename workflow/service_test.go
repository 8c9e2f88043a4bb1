package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maestro-ai/maestro-go/workflow/store"
)

func TestService_CreateValidation(t *testing.T) {
	env := newTestEnv(t, Config{})

	var verr *ValidationError
	_, _, err := env.svc.Create(context.Background(), CreateRequest{Prompt: "   "})
	if !errors.As(err, &verr) {
		t.Fatalf("Create with blank prompt = %v, want ValidationError", err)
	}
}

func TestService_CreateDefaults(t *testing.T) {
	env := newTestEnv(t, Config{})
	longPrompt := strings.Repeat("requirements ", 20)

	wf, _, err := env.svc.Create(context.Background(), CreateRequest{Prompt: longPrompt})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(wf.ID, "wf-") {
		t.Errorf("workflow ID = %q, want wf- prefix", wf.ID)
	}
	if len(wf.Name) > 64 {
		t.Errorf("defaulted name length = %d, want <= 64", len(wf.Name))
	}
	if wf.Type != "plan_review" {
		t.Errorf("workflow type = %q", wf.Type)
	}
}

func TestService_State(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	wf, planCP := env.create(t)

	snap, err := env.svc.State(ctx, wf.ID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if snap.Checkpoint == nil || snap.Checkpoint.ID != planCP.ID {
		t.Errorf("snapshot checkpoint = %+v, want pending plan review", snap.Checkpoint)
	}
	if snap.Node != NodeAwaitPlanReview {
		t.Errorf("snapshot node = %s, want %s", snap.Node, NodeAwaitPlanReview)
	}
	if snap.Plan != "the plan" {
		t.Errorf("snapshot plan = %q", snap.Plan)
	}
	if len(snap.Reviews) != 0 {
		t.Errorf("reviews before fan-out = %d, want 0", len(snap.Reviews))
	}

	// After the fan-out the snapshot carries advisory verdicts. r1's
	// script approves; r2's asks for changes.
	if _, err := env.svc.Resolve(ctx, planCP.ID, Resolution{Action: ActionSendToReviewers}); err != nil {
		t.Fatal(err)
	}
	snap, err = env.svc.State(ctx, wf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Reviews) != 2 {
		t.Fatalf("reviews = %d, want 2", len(snap.Reviews))
	}
	verdicts := map[string]ReviewVerdict{}
	for _, r := range snap.Reviews {
		verdicts[r.WorkerName] = r.Verdict
	}
	if verdicts["reviewer-1"] != VerdictApproved {
		t.Errorf("reviewer-1 verdict = %s, want approved", verdicts["reviewer-1"])
	}
	if verdicts["reviewer-2"] != VerdictHasFeedback {
		t.Errorf("reviewer-2 verdict = %s, want has_feedback", verdicts["reviewer-2"])
	}
}

func TestService_History(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	wf, planCP := env.create(t)

	consCP, err := env.svc.Resolve(ctx, planCP.ID, Resolution{Action: ActionSendToReviewers})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Resolve(ctx, consCP.ID, Resolution{Action: ActionApprove, ResolvedBy: "alice"}); err != nil {
		t.Fatal(err)
	}

	hist, err := env.svc.History(ctx, wf.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist.Checkpoints) != 2 {
		t.Errorf("checkpoints = %d, want 2", len(hist.Checkpoints))
	}
	for i, cp := range hist.Checkpoints {
		if cp.Number != i+1 {
			t.Errorf("checkpoint %d has number %d", i, cp.Number)
		}
		if cp.Resolution == store.CheckpointPending {
			t.Errorf("checkpoint %s still pending in completed workflow", cp.ID)
		}
	}
	// Planner plus two reviewers.
	if len(hist.Executions) != 3 {
		t.Errorf("executions = %d, want 3", len(hist.Executions))
	}
	if len(hist.Messages) != 3 {
		t.Errorf("messages = %d, want 3", len(hist.Messages))
	}
	if hist.Checkpoints[1].ResolvedBy != "alice" {
		t.Errorf("resolved_by = %q, want alice", hist.Checkpoints[1].ResolvedBy)
	}
}

func TestService_Delete(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	wf, planCP := env.create(t)

	// Non-terminal workflows cannot be deleted.
	var verr *ValidationError
	if err := env.svc.Delete(ctx, wf.ID); !errors.As(err, &verr) {
		t.Fatalf("Delete on active workflow = %v, want ValidationError", err)
	}

	consCP, err := env.svc.Resolve(ctx, planCP.ID, Resolution{Action: ActionSendToReviewers})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Resolve(ctx, consCP.ID, Resolution{Action: ActionApprove}); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.Delete(ctx, wf.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := env.store.GetWorkflow(ctx, wf.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("workflow still present after delete: %v", err)
	}
	// Dependents went with it.
	cps, err := env.store.ListCheckpoints(ctx, wf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cps) != 0 {
		t.Errorf("checkpoints remain after delete: %d", len(cps))
	}
}

func TestService_List(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	wf1, _ := env.create(t)
	wf2, cp2 := env.create(t)

	if _, err := env.svc.Resolve(ctx, cp2.ID, Resolution{Action: ActionCancel}); err != nil {
		t.Fatal(err)
	}

	awaiting, err := env.svc.List(ctx, store.StatusAwaitingCheckpoint)
	if err != nil {
		t.Fatal(err)
	}
	if len(awaiting) != 1 || awaiting[0].ID != wf1.ID {
		t.Errorf("awaiting = %+v, want only %s", awaiting, wf1.ID)
	}

	cancelled, err := env.svc.List(ctx, store.StatusCancelled)
	if err != nil {
		t.Fatal(err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != wf2.ID {
		t.Errorf("cancelled = %+v, want only %s", cancelled, wf2.ID)
	}

	all, err := env.svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}
}
