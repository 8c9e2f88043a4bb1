// Package gateway defines the boundary between the workflow engine and
// external LLM agent backends.
//
// A Gateway turns a prompt into text. The engine composes prompts, records
// executions, and enforces timeouts; gateways only speak to their provider
// API. Provider adapters live in the anthropic, openai, and google
// subpackages; tests use MockGateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Worker identifies one agent participating in a workflow.
type Worker struct {
	// Name is unique within the workflow, e.g. "planner", "reviewer-1".
	Name string

	// Kind is the role: "planner", "reviewer", or "consolidator".
	Kind string
}

// Request is a single agent invocation.
type Request struct {
	// System is the system prompt establishing the agent's role. Optional.
	System string

	// Prompt is the user prompt for this invocation.
	Prompt string
}

// Result is a successful agent response.
type Result struct {
	// Output is the agent's text response.
	Output string

	// TokensUsed is the total token count reported by the provider, zero
	// if unavailable.
	TokensUsed int

	// Model is the provider model that produced the output.
	Model string
}

// Gateway is a connection to one agent backend.
//
// Implementations must be safe for concurrent use; the engine fans reviewer
// calls out in parallel. Invoke must respect context cancellation and
// deadlines.
type Gateway interface {
	// Name identifies the backend, e.g. "anthropic", "mock".
	Name() string

	// Invoke sends the request and returns the agent's response.
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Error is a failure reported by a gateway.
type Error struct {
	// Gateway is the backend that failed.
	Gateway string

	// Code classifies the failure: "rate_limit", "auth", "timeout",
	// "api_error", "parse_error".
	Code string

	// Message is the human-readable detail.
	Message string

	// Retryable reports whether the same call may succeed later.
	Retryable bool

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s (%s): %v", e.Gateway, e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s (%s)", e.Gateway, e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// NewTimeoutError builds the Error recorded when an agent call exceeds its
// deadline. Timeouts are always retryable.
func NewTimeoutError(gatewayName string, timeout time.Duration) *Error {
	return &Error{
		Gateway:   gatewayName,
		Code:      "timeout",
		Message:   fmt.Sprintf("call exceeded %s deadline", timeout),
		Retryable: true,
	}
}

// IsTimeout reports whether err is a gateway timeout.
func IsTimeout(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Code == "timeout"
}

// InvokeWithTimeout calls g.Invoke with a deadline. A context deadline or
// cancellation surfaced by the gateway is converted to a timeout Error so
// callers get a uniform failure shape regardless of backend.
func InvokeWithTimeout(ctx context.Context, g Gateway, req Request, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		return g.Invoke(ctx, req)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := g.Invoke(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewTimeoutError(g.Name(), timeout)
		}
		return nil, err
	}
	return res, nil
}
