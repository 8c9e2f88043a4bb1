package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockGateway_Script(t *testing.T) {
	g := NewMockGateway(
		MockResponse{Output: "first"},
		MockResponse{Err: errors.New("boom")},
		MockResponse{Output: "last"},
	)

	ctx := context.Background()

	res, err := g.Invoke(ctx, Request{Prompt: "one"})
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if res.Output != "first" {
		t.Errorf("expected 'first', got %q", res.Output)
	}

	if _, err := g.Invoke(ctx, Request{Prompt: "two"}); err == nil {
		t.Fatal("expected scripted error on second call")
	}

	// Third and fourth calls both return the last entry.
	for i := 0; i < 2; i++ {
		res, err := g.Invoke(ctx, Request{Prompt: "again"})
		if err != nil {
			t.Fatalf("call failed: %v", err)
		}
		if res.Output != "last" {
			t.Errorf("expected 'last', got %q", res.Output)
		}
	}

	if g.CallCount() != 4 {
		t.Errorf("expected 4 recorded calls, got %d", g.CallCount())
	}
	if g.Calls()[0].Prompt != "one" {
		t.Errorf("expected first prompt recorded, got %q", g.Calls()[0].Prompt)
	}
}

func TestMockGateway_RespectsCancellation(t *testing.T) {
	g := NewMockGateway(MockResponse{Output: "slow"})
	g.Delay = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Invoke(ctx, Request{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInvokeWithTimeout(t *testing.T) {
	t.Run("completes within deadline", func(t *testing.T) {
		g := NewMockGateway(MockResponse{Output: "ok"})
		res, err := InvokeWithTimeout(context.Background(), g, Request{Prompt: "x"}, time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Output != "ok" {
			t.Errorf("expected ok, got %q", res.Output)
		}
	})

	t.Run("exceeds deadline", func(t *testing.T) {
		g := NewMockGateway(MockResponse{Output: "never"})
		g.Delay = time.Second

		_, err := InvokeWithTimeout(context.Background(), g, Request{Prompt: "x"}, 20*time.Millisecond)
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if !IsTimeout(err) {
			t.Errorf("expected timeout classification, got %v", err)
		}
		var gerr *Error
		if !errors.As(err, &gerr) || !gerr.Retryable {
			t.Errorf("expected retryable gateway error, got %v", err)
		}
	})

	t.Run("zero timeout disables deadline", func(t *testing.T) {
		g := NewMockGateway(MockResponse{Output: "ok"})
		if _, err := InvokeWithTimeout(context.Background(), g, Request{Prompt: "x"}, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestRouter(t *testing.T) {
	def := NewMockGatewayNamed("default")
	special := NewMockGatewayNamed("special")

	r := NewRouter(def)
	r.Bind("planner", special)

	g, err := r.Route("planner")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if g.Name() != "special" {
		t.Errorf("expected special gateway for planner, got %q", g.Name())
	}

	g, err = r.Route("reviewer-1")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if g.Name() != "default" {
		t.Errorf("expected default gateway, got %q", g.Name())
	}

	empty := NewRouter(nil)
	if _, err := empty.Route("anything"); err == nil {
		t.Error("expected error with no default and no binding")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Gateway: "mock", Code: "api_error", Message: "failed", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error string")
	}
}
