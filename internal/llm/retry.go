package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// Retrying wraps an oracle and retries failed calls with exponential
// backoff. Context cancellation aborts both the call and the backoff wait.
type Retrying struct {
	inner    domain.Oracle
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

func NewRetrying(inner domain.Oracle, attempts int, backoff time.Duration, logger *zap.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{
		inner:    inner,
		attempts: attempts,
		backoff:  backoff,
		logger:   logger,
	}
}

func retry[T any](ctx context.Context, r *Retrying, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == r.attempts {
			break
		}

		r.logger.Warn("oracle call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, r.attempts, lastErr)
}

func (r *Retrying) QuarterNarratives(ctx context.Context, req domain.NarrativeRequest) ([]domain.QuarterDraft, error) {
	return retry(ctx, r, "quarter narratives", func() ([]domain.QuarterDraft, error) {
		return r.inner.QuarterNarratives(ctx, req)
	})
}

func (r *Retrying) GenerateCommand(ctx context.Context, req domain.CommandRequest) (string, error) {
	return retry(ctx, r, "generate command", func() (string, error) {
		return r.inner.GenerateCommand(ctx, req)
	})
}

func (r *Retrying) GenerativeAct(ctx context.Context, req domain.GenerativeRequest) (*domain.GenerativeResult, error) {
	return retry(ctx, r, "generative act", func() (*domain.GenerativeResult, error) {
		return r.inner.GenerativeAct(ctx, req)
	})
}

func (r *Retrying) ClassifyIntent(ctx context.Context, req domain.ClassifyRequest) (string, error) {
	return retry(ctx, r, "classify intent", func() (string, error) {
		return r.inner.ClassifyIntent(ctx, req)
	})
}

func (r *Retrying) SelfEvaluate(ctx context.Context, req domain.SelfEvalRequest) (*domain.Evaluation, error) {
	return retry(ctx, r, "self evaluate", func() (*domain.Evaluation, error) {
		return r.inner.SelfEvaluate(ctx, req)
	})
}

func (r *Retrying) ObserverEvaluate(ctx context.Context, view domain.ObserverView) (*domain.Evaluation, error) {
	return retry(ctx, r, "observer evaluate", func() (*domain.Evaluation, error) {
		return r.inner.ObserverEvaluate(ctx, view)
	})
}
