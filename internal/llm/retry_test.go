package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

func TestRetrying_SucceedsAfterTransientFailures(t *testing.T) {
	inner := NewMockOracle()
	attempts := 0
	inner.GenerateCommandFunc = func(req domain.CommandRequest) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "불 켜줘", nil
	}

	r := NewRetrying(inner, 3, time.Millisecond, zap.NewNop())
	got, err := r.GenerateCommand(context.Background(), domain.CommandRequest{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got != "불 켜줘" {
		t.Errorf("command = %q", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetrying_ExhaustsAttempts(t *testing.T) {
	cause := errors.New("provider down")
	inner := NewMockOracle()
	inner.SelfEvaluateError = cause

	r := NewRetrying(inner, 2, time.Millisecond, zap.NewNop())
	_, err := r.SelfEvaluate(context.Background(), domain.SelfEvalRequest{})
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped cause", err)
	}
	if calls := len(inner.SelfEvaluateCalls); calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetrying_StopsOnCanceledContext(t *testing.T) {
	inner := NewMockOracle()
	inner.GenerateCommandError = errors.New("transient")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetrying(inner, 5, time.Hour, zap.NewNop())
	_, err := r.GenerateCommand(ctx, domain.CommandRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls := len(inner.GenerateCommandCalls); calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry after cancel)", calls)
	}
}

func TestRetrying_MinimumOneAttempt(t *testing.T) {
	inner := NewMockOracle()
	r := NewRetrying(inner, 0, time.Millisecond, zap.NewNop())

	got, err := r.GenerateCommand(context.Background(), domain.CommandRequest{})
	if err != nil || got != "불 켜줘" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestThrottled_Passthrough(t *testing.T) {
	inner := NewMockOracle()
	limiter := NewSharedLimiter(1000, 10)

	// Two wrappers drawing from one budget, the per-site wiring shape.
	a := NewThrottledWith(inner, limiter)
	b := NewThrottledWith(inner, limiter)

	if _, err := a.GenerateCommand(context.Background(), domain.CommandRequest{}); err != nil {
		t.Fatal(err)
	}
	eval, err := b.SelfEvaluate(context.Background(), domain.SelfEvalRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if eval.Score != 5 {
		t.Errorf("score = %d, want the mock default", eval.Score)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.GenerateCommand(canceled, domain.CommandRequest{}); err == nil {
		t.Error("limiter wait must honor context cancellation")
	}
}
