package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maestro-ai/maestro-go/workflow/store"
)

func TestCanTransition(t *testing.T) {
	statuses := []store.Status{
		store.StatusPending,
		store.StatusRunning,
		store.StatusAwaitingCheckpoint,
		store.StatusCompleted,
		store.StatusFailed,
		store.StatusCancelled,
	}

	legal := map[store.Status]map[store.Status]bool{
		store.StatusPending: {
			store.StatusRunning: true,
		},
		store.StatusRunning: {
			store.StatusAwaitingCheckpoint: true,
			store.StatusCompleted:          true,
			store.StatusFailed:             true,
			store.StatusCancelled:          true,
		},
		store.StatusAwaitingCheckpoint: {
			store.StatusRunning:   true,
			store.StatusCompleted: true,
			store.StatusFailed:    true,
			store.StatusCancelled: true,
		},
	}

	// Exhaustive pairwise check, including self-transitions and edges out
	// of terminal statuses.
	for _, from := range statuses {
		for _, to := range statuses {
			want := legal[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}

	t.Run("terminal statuses have no outgoing edges", func(t *testing.T) {
		for _, from := range statuses {
			if !from.Terminal() {
				continue
			}
			for _, to := range statuses {
				if CanTransition(from, to) {
					t.Errorf("terminal %s allows transition to %s", from, to)
				}
			}
		}
	})
}

func TestStatusSync_RejectsPendingCancel(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	statusSync := NewStatusSync(st, nil, nil)

	now := time.Now().UTC()
	wf := &store.Workflow{
		ID: "wf-pending", Name: "pending", Type: "plan_review",
		Status: store.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		t.Fatal(err)
	}

	var invalid *InvalidTransitionError
	err := statusSync.Apply(ctx, wf.ID, store.StatusCancelled, store.WorkflowUpdate{})
	if !errors.As(err, &invalid) {
		t.Fatalf("Apply(pending->cancelled) = %v, want InvalidTransitionError", err)
	}

	got, err := st.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusPending {
		t.Errorf("status after rejected transition = %s, want pending", got.Status)
	}
}

func TestClassifyReview(t *testing.T) {
	tests := []struct {
		name   string
		review string
		want   ReviewVerdict
	}{
		{
			name:   "plain approval",
			review: "The plan is approved. Looks good to me, ready to proceed.",
			want:   VerdictApproved,
		},
		{
			name:   "approval with no concerns",
			review: "Excellent plan, well-structured, no issues found.",
			want:   VerdictApproved,
		},
		{
			name:   "critical concern overrides praise",
			review: "Great work overall, but there is a critical issue with the auth flow that must be addressed.",
			want:   VerdictHasFeedback,
		},
		{
			name:   "rejection",
			review: "I reject this plan. It is not ready.",
			want:   VerdictHasFeedback,
		},
		{
			name:   "many shoulds",
			review: "You should add caching. You should consider retries. The doc should cover failure modes.",
			want:   VerdictHasFeedback,
		},
		{
			name:   "long review without signals",
			review: strings.Repeat("This section describes the module layout in neutral terms. ", 6),
			want:   VerdictHasFeedback,
		},
		{
			name:   "short review without signals",
			review: "Interesting.",
			want:   VerdictUnclear,
		},
		{
			name:   "case insensitive",
			review: "APPROVED. LOOKS GOOD.",
			want:   VerdictApproved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyReview(tt.review); got != tt.want {
				t.Errorf("ClassifyReview(%q) = %s, want %s", tt.review, got, tt.want)
			}
		})
	}
}

func TestJoinPolicy(t *testing.T) {
	tests := []struct {
		name      string
		policy    JoinPolicy
		succeeded int
		total     int
		want      bool
	}{
		{"all with full success", JoinAll(), 3, 3, true},
		{"all with one failure", JoinAll(), 2, 3, false},
		{"zero value behaves as all", JoinPolicy{}, 2, 3, false},
		{"quorum met exactly", JoinQuorum(2), 2, 3, true},
		{"quorum exceeded", JoinQuorum(2), 3, 3, true},
		{"quorum missed", JoinQuorum(2), 1, 3, false},
		{"quorum of one", JoinQuorum(1), 1, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Satisfied(tt.succeeded, tt.total); got != tt.want {
				t.Errorf("%s.Satisfied(%d, %d) = %v, want %v",
					tt.policy, tt.succeeded, tt.total, got, tt.want)
			}
		})
	}
}

func TestConsolidateReviews(t *testing.T) {
	reviews := []store.WorkerOutput{
		{WorkerName: "reviewer-1", Output: "First review body."},
		{WorkerName: "reviewer-2", Output: "Second review body."},
	}
	out := ConsolidateReviews(reviews)

	if !strings.HasPrefix(out, "=== CONSOLIDATED REVIEW FEEDBACK ===") {
		t.Errorf("missing header: %q", out[:40])
	}
	for _, want := range []string{
		"## reviewer-1", "First review body.",
		"## reviewer-2", "Second review body.",
		"=== USER CONSOLIDATION ===",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("consolidated output missing %q", want)
		}
	}
	if strings.Index(out, "reviewer-1") > strings.Index(out, "reviewer-2") {
		t.Error("reviewer sections out of order")
	}
}

func TestFormatFeedback(t *testing.T) {
	out := FormatFeedback([]store.WorkerOutput{
		{WorkerName: "reviewer-1", Output: "Tighten the timeline."},
	})
	if !strings.Contains(out, "**** reviewer-1 FEEDBACK START ****") ||
		!strings.Contains(out, "**** reviewer-1 FEEDBACK END ****") {
		t.Errorf("feedback delimiters missing: %q", out)
	}
	if !strings.Contains(out, "Tighten the timeline.") {
		t.Errorf("feedback body missing: %q", out)
	}
}

func TestContinuationRoundTrip(t *testing.T) {
	in := &RunState{
		InitialPrompt:  "build a queue",
		Plan:           "plan text",
		EditedPlan:     "edited plan text",
		ReviewerPrompt: "custom reviewer prompt",
		Reviews: []store.WorkerOutput{
			{WorkerName: "reviewer-1", WorkerKind: "reviewer", Output: "fine"},
		},
		Feedback:  "consolidated feedback",
		Iteration: 2,
	}

	cont, err := encodeContinuation("wf-1", NodeAwaitConsolidation, in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if cont.WorkflowID != "wf-1" || cont.Node != NodeAwaitConsolidation {
		t.Errorf("continuation header = %s/%s", cont.WorkflowID, cont.Node)
	}

	out, err := decodeContinuation(cont)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.InitialPrompt != in.InitialPrompt || out.Plan != in.Plan ||
		out.EditedPlan != in.EditedPlan || out.ReviewerPrompt != in.ReviewerPrompt ||
		out.Feedback != in.Feedback || out.Iteration != in.Iteration {
		t.Errorf("round trip mismatch: %+v != %+v", out, in)
	}
	if len(out.Reviews) != 1 || out.Reviews[0].WorkerName != "reviewer-1" {
		t.Errorf("reviews lost in round trip: %+v", out.Reviews)
	}
	if out.CurrentPlan() != "edited plan text" {
		t.Errorf("CurrentPlan = %q, want edited plan", out.CurrentPlan())
	}
}

func TestRunState_CurrentPlan(t *testing.T) {
	s := &RunState{Plan: "original"}
	if s.CurrentPlan() != "original" {
		t.Errorf("CurrentPlan = %q, want original", s.CurrentPlan())
	}
	s.EditedPlan = "edited"
	if s.CurrentPlan() != "edited" {
		t.Errorf("CurrentPlan = %q, want edited", s.CurrentPlan())
	}
}

func TestConfig_Normalize(t *testing.T) {
	cfg := Config{}.normalize()
	if cfg.Planner.Name != "planner" {
		t.Errorf("default planner = %q", cfg.Planner.Name)
	}
	if len(cfg.Reviewers) != DefaultReviewFanOut {
		t.Errorf("default reviewers = %d, want %d", len(cfg.Reviewers), DefaultReviewFanOut)
	}
	if cfg.Reviewers[0].Name != "reviewer-1" {
		t.Errorf("first reviewer = %q", cfg.Reviewers[0].Name)
	}
	if cfg.WorkerTimeout != DefaultWorkerTimeout {
		t.Errorf("default timeout = %v", cfg.WorkerTimeout)
	}

	disabled := Config{WorkerTimeout: -1}.normalize()
	if disabled.WorkerTimeout != 0 {
		t.Errorf("negative timeout normalizes to %v, want 0", disabled.WorkerTimeout)
	}
}
