package workflow

import (
	"strconv"
	"time"

	"github.com/maestro-ai/maestro-go/workflow/gateway"
)

// DefaultWorkerTimeout bounds each individual agent call.
const DefaultWorkerTimeout = 5 * time.Minute

// DefaultReviewFanOut is the number of parallel reviewers when none are
// configured explicitly.
const DefaultReviewFanOut = 3

// Config carries the engine's tunables. The zero value is usable: defaults
// are applied by normalize when the engine is constructed.
type Config struct {
	// Planner is the planning worker. Defaults to {Name: "planner",
	// Kind: "planner"}.
	Planner gateway.Worker

	// Reviewers are the fan-out review workers. Defaults to
	// DefaultReviewFanOut workers named "reviewer-1" .. "reviewer-N".
	Reviewers []gateway.Worker

	// WorkerTimeout bounds each agent call. Zero selects
	// DefaultWorkerTimeout; negative disables the deadline.
	WorkerTimeout time.Duration

	// Join decides when the review fan-out counts as successful. The zero
	// value requires all reviewers to succeed.
	Join JoinPolicy

	// MaxIterations caps review/revision cycles. When a workflow reaches
	// the cap, the consolidation checkpoint offers only approve and cancel.
	// Zero means unbounded; the human's cancel action is the loop bound.
	MaxIterations int

	// CheckpointTTL, when positive, lets SweepExpired cancel workflows
	// whose pending checkpoint has waited longer than this. Zero disables
	// expiry; checkpoints wait indefinitely.
	CheckpointTTL time.Duration
}

// normalize fills zero values with defaults.
func (c Config) normalize() Config {
	if c.Planner.Name == "" {
		c.Planner = gateway.Worker{Name: "planner", Kind: "planner"}
	}
	if len(c.Reviewers) == 0 {
		c.Reviewers = DefaultReviewers(DefaultReviewFanOut)
	}
	if c.WorkerTimeout == 0 {
		c.WorkerTimeout = DefaultWorkerTimeout
	}
	if c.WorkerTimeout < 0 {
		c.WorkerTimeout = 0
	}
	return c
}

// DefaultReviewers builds n review workers named "reviewer-1" .. "reviewer-n".
func DefaultReviewers(n int) []gateway.Worker {
	workers := make([]gateway.Worker, n)
	for i := range workers {
		workers[i] = gateway.Worker{
			Name: "reviewer-" + strconv.Itoa(i+1),
			Kind: "reviewer",
		}
	}
	return workers
}
