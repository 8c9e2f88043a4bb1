package workflow

import "fmt"

// JoinPolicy decides whether a review fan-out succeeded given how many
// reviewers completed. The policy is declared per run, before the fan-out
// executes; the engine never improvises a quorum after failures.
type JoinPolicy struct {
	// Quorum is the minimum number of successful reviewer results required.
	// Zero means all reviewers must succeed.
	Quorum int
}

// JoinAll requires every reviewer to succeed. This is the default.
func JoinAll() JoinPolicy {
	return JoinPolicy{}
}

// JoinQuorum requires at least min reviewers to succeed. min must be at
// least 1.
func JoinQuorum(min int) JoinPolicy {
	return JoinPolicy{Quorum: min}
}

// Satisfied reports whether succeeded of total reviewer results meets the
// policy.
func (p JoinPolicy) Satisfied(succeeded, total int) bool {
	if p.Quorum <= 0 {
		return succeeded == total
	}
	return succeeded >= p.Quorum
}

func (p JoinPolicy) String() string {
	if p.Quorum <= 0 {
		return "all"
	}
	return fmt.Sprintf("quorum(%d)", p.Quorum)
}
