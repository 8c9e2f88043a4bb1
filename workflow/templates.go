package workflow

import (
	"fmt"
	"strings"

	"github.com/maestro-ai/maestro-go/workflow/store"
)

// Prompt templates for the plan review workflow. These are the default
// prompts; prompt-edit checkpoints let the human replace the fully rendered
// text before it is sent.

// PlanningPrompt renders the initial planner prompt from the user's
// requirements.
func PlanningPrompt(requirements string) string {
	return fmt.Sprintf(`You are a PLANNING AGENT helping develop a comprehensive plan.

The user has the following requirements:

%s

Please create a detailed development plan that addresses these requirements.

IMPORTANT: Respond directly with your plan. Do NOT use any tools or try to read files.
Base your plan on the requirements provided above.

Include:
- Architecture overview
- Implementation steps
- Timeline estimates
- Potential challenges

Your plan will be reviewed by multiple REVIEW AGENTS before implementation.

Provide your complete plan in your response.`, requirements)
}

// RevisionPrompt renders the planner revision prompt from the current plan
// and consolidated review feedback.
func RevisionPrompt(currentPlan, feedback string) string {
	return fmt.Sprintf(`The REVIEW AGENT(s) have provided feedback on your plan.

**** CURRENT PLAN START ****
%s
**** CURRENT PLAN END ****

%s

Please revise your plan based on the feedback above.
Address the concerns raised and incorporate the suggestions.
`, currentPlan, feedback)
}

// ReviewPrompt renders a reviewer's prompt for the given plan.
func ReviewPrompt(plan, reviewerName string) string {
	return fmt.Sprintf(`You are a REVIEW AGENT (%s) helping review a development plan.

The PLANNING AGENT has prepared the following plan:

**** PLAN START ****
%s
**** PLAN END ****

Please provide expert review feedback on the plan.
Focus on:
- Technical feasibility
- Architecture concerns
- Missing considerations
- Timeline realism
- Security and scalability

Provide direct, unambiguous feedback that will help improve the plan.
`, reviewerName, plan)
}

// ConsolidateReviews joins reviewer outputs into an editable block with a
// section for the human's own consolidation notes.
func ConsolidateReviews(reviews []store.WorkerOutput) string {
	var sb strings.Builder
	sb.WriteString("=== CONSOLIDATED REVIEW FEEDBACK ===\n\n")
	for _, r := range reviews {
		sb.WriteString("## " + r.WorkerName + "\n\n")
		sb.WriteString(r.Output)
		sb.WriteString("\n\n" + strings.Repeat("=", 60) + "\n\n")
	}
	sb.WriteString("\n=== USER CONSOLIDATION ===\n")
	sb.WriteString("[Edit this section to provide consolidated feedback to the PLANNING AGENT]\n\n")
	return sb.String()
}

// FormatFeedback wraps each reviewer's output in delimiters for the planner
// revision prompt.
func FormatFeedback(reviews []store.WorkerOutput) string {
	parts := make([]string, len(reviews))
	for i, r := range reviews {
		parts[i] = fmt.Sprintf("**** %s FEEDBACK START ****\n%s\n**** %s FEEDBACK END ****",
			r.WorkerName, r.Output, r.WorkerName)
	}
	return strings.Join(parts, "\n\n")
}

// Checkpoint instructions shown to the human alongside editable content.
const (
	planReviewInstructions = "The PLANNING AGENT has created a plan. " +
		"Review and edit if needed before sending to REVIEW AGENTS."

	consolidationInstructions = "Review feedback from all REVIEW AGENTS has been consolidated. " +
		"Edit if needed, then choose whether to revise the plan or complete the workflow."

	editReviewerPromptInstructions = "Edit the complete prompt that will be sent to all REVIEW AGENTS.\n\n" +
		"You can inject user feedback, directives, or additional context here.\n" +
		"The edited prompt will be sent to all reviewers.\n\n" +
		"Tip: Add user feedback like this:\n" +
		"**** USER FEEDBACK START ****\n" +
		"[Your feedback/directives here]\n" +
		"**** USER FEEDBACK END ****"

	editPlannerPromptInstructions = "Edit the complete prompt that will be sent to the PLANNING AGENT for revision.\n\n" +
		"You can inject user feedback, directives, or additional context here.\n" +
		"The edited prompt will be sent to the planner to revise the plan.\n\n" +
		"Tip: Add user feedback/directives like this:\n" +
		"**** USER FEEDBACK START ****\n" +
		"[Your feedback/directives here]\n" +
		"**** USER FEEDBACK END ****"
)
