package gateway

import (
	"context"
	"sync"
	"time"
)

// MockGateway is a scripted Gateway for tests and local development.
//
// Responses are consumed in order per worker-agnostic call sequence. When
// the script is exhausted the last entry repeats, so a single entry acts as
// a fixed response. Script entries may carry errors to exercise failure
// paths, and Delay simulates slow backends for timeout and cancellation
// tests.
type MockGateway struct {
	mu      sync.Mutex
	name    string
	script  []MockResponse
	calls   []Request
	nextIdx int

	// Delay is applied before each response. The delay respects context
	// cancellation.
	Delay time.Duration
}

// MockResponse is one scripted reply.
type MockResponse struct {
	Output string
	Err    error
}

// NewMockGateway creates a MockGateway with the given script.
func NewMockGateway(script ...MockResponse) *MockGateway {
	return &MockGateway{
		name:   "mock",
		script: script,
	}
}

// NewMockGatewayNamed creates a MockGateway reporting the given backend name.
func NewMockGatewayNamed(name string, script ...MockResponse) *MockGateway {
	return &MockGateway{
		name:   name,
		script: script,
	}
}

func (m *MockGateway) Name() string { return m.name }

// Invoke returns the next scripted response, recording the request.
func (m *MockGateway) Invoke(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	var resp MockResponse
	if len(m.script) > 0 {
		idx := m.nextIdx
		if idx >= len(m.script) {
			idx = len(m.script) - 1
		}
		resp = m.script[idx]
		m.nextIdx++
	}
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Result{Output: resp.Output, Model: "mock"}, nil
}

// SetScript replaces the script and resets the cursor.
func (m *MockGateway) SetScript(script ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
	m.nextIdx = 0
}

// Calls returns a copy of every request received so far.
func (m *MockGateway) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Invoke calls received.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
