package workflow

import (
	"regexp"
	"strings"
)

// ReviewVerdict classifies a reviewer's output.
type ReviewVerdict string

const (
	VerdictApproved    ReviewVerdict = "approved"
	VerdictHasFeedback ReviewVerdict = "has_feedback"
	VerdictUnclear     ReviewVerdict = "unclear"
)

var approvalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bapproved?\b`),
	regexp.MustCompile(`\blooks?\s+good\b`),
	regexp.MustCompile(`\bready\s+to\s+(proceed|implement|continue)\b`),
	regexp.MustCompile(`\bno\s+(concerns?|issues?|problems?)\b`),
	regexp.MustCompile(`\bexcellent\s+plan\b`),
	regexp.MustCompile(`\bwell[-\s]structured\b`),
	regexp.MustCompile(`\bcomprehensive\s+plan\b`),
	regexp.MustCompile(`\bno\s+major\s+(concerns?|issues?)\b`),
	regexp.MustCompile(`\ball\s+good\b`),
	regexp.MustCompile(`\bproceed\s+with\s+implementation\b`),
}

var concernPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(critical|major|serious)\s+(issue|concern|problem)\b`),
	regexp.MustCompile(`\bmust\s+(address|fix|change|add|update)\b`),
	regexp.MustCompile(`\brequired?\s+(change|update|fix)\b`),
	regexp.MustCompile(`\bmissing\s+(critical|important|essential)\b`),
	regexp.MustCompile(`\bshould\s+(add|include|consider|address)\b.*\bbefore\s+implementation\b`),
	regexp.MustCompile(`\bsignificant\s+(concern|issue|problem)\b`),
	regexp.MustCompile(`\bnot\s+ready\b`),
	regexp.MustCompile(`\bneeds?\s+(revision|more\s+work|improvement)\b`),
	regexp.MustCompile(`\breject\b`),
}

var shouldPattern = regexp.MustCompile(`\bshould\b`)

// ClassifyReview determines whether a review is an approval or carries
// actionable feedback, using keyword heuristics.
//
// Rules, in order:
//   - Approval signals with zero concern signals classify as approved.
//   - Any concern signal classifies as has_feedback, even alongside praise.
//   - Three or more "should" statements classify as has_feedback.
//   - Remaining approval signals classify as approved.
//   - Long reviews default to has_feedback, short ones to unclear.
//
// The verdict is advisory. It feeds the state snapshot's per-reviewer
// approval summary and never gates a transition; the human decides at the
// consolidation checkpoint.
func ClassifyReview(review string) ReviewVerdict {
	content := strings.ToLower(review)

	approvalScore := 0
	for _, p := range approvalPatterns {
		if p.MatchString(content) {
			approvalScore++
		}
	}
	concernScore := 0
	for _, p := range concernPatterns {
		if p.MatchString(content) {
			concernScore++
		}
	}

	if approvalScore > 0 && concernScore == 0 {
		return VerdictApproved
	}
	if concernScore > 0 {
		return VerdictHasFeedback
	}
	if len(shouldPattern.FindAllString(content, -1)) >= 3 {
		return VerdictHasFeedback
	}
	if approvalScore > 0 {
		return VerdictApproved
	}
	if len(content) > 200 {
		return VerdictHasFeedback
	}
	return VerdictUnclear
}
