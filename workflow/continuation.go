package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/maestro-ai/maestro-go/workflow/store"
)

// Continuation node names. A continuation records which suspension point a
// workflow is parked at; Resume dispatches on the node.
const (
	NodeAwaitPlanReview     = "await_plan_review"
	NodeAwaitReviewerPrompt = "await_reviewer_prompt"
	NodeAwaitConsolidation  = "await_consolidation"
	NodeAwaitPlannerPrompt  = "await_planner_prompt"
)

// RunState is the serialized workflow state carried in a continuation. It
// holds everything the engine needs to resume after a human decision,
// surviving process restarts via the store.
type RunState struct {
	// InitialPrompt is the user's original requirements.
	InitialPrompt string `json:"initial_prompt"`

	// Plan is the planner's latest output.
	Plan string `json:"plan"`

	// EditedPlan is the human's edited plan when set; downstream steps use
	// it in preference to Plan.
	EditedPlan string `json:"edited_plan,omitempty"`

	// ReviewerPrompt is the human-edited reviewer prompt. When set the
	// review fan-out sends this text verbatim instead of the template.
	ReviewerPrompt string `json:"reviewer_prompt,omitempty"`

	// PlannerPrompt is the human-edited planner revision prompt.
	PlannerPrompt string `json:"planner_prompt,omitempty"`

	// Reviews holds the latest fan-out's reviewer outputs.
	Reviews []store.WorkerOutput `json:"reviews,omitempty"`

	// Feedback is the consolidated review feedback, possibly edited by the
	// human at the consolidation checkpoint.
	Feedback string `json:"feedback,omitempty"`

	// Iteration counts completed review/revision cycles, starting at 0.
	Iteration int `json:"iteration"`
}

// CurrentPlan returns the human-edited plan when present, otherwise the
// planner's output.
func (s *RunState) CurrentPlan() string {
	if s.EditedPlan != "" {
		return s.EditedPlan
	}
	return s.Plan
}

// encodeContinuation serializes the run state into a store continuation at
// the given node.
func encodeContinuation(workflowID, node string, state *RunState) (*store.Continuation, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run state: %w", err)
	}
	return &store.Continuation{
		WorkflowID: workflowID,
		Node:       node,
		State:      raw,
	}, nil
}

// decodeContinuation deserializes a store continuation's run state.
func decodeContinuation(cont *store.Continuation) (*RunState, error) {
	var state RunState
	if err := json.Unmarshal(cont.State, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}
