package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// Throttled wraps an oracle with a shared rate limiter so parallel cells
// cannot exceed the provider's request budget.
type Throttled struct {
	inner   domain.Oracle
	limiter *rate.Limiter
}

func NewThrottled(inner domain.Oracle, rps float64, burst int) *Throttled {
	return NewThrottledWith(inner, NewSharedLimiter(rps, burst))
}

// NewThrottledWith wraps inner with an existing limiter, so several oracles
// can draw from one request budget.
func NewThrottledWith(inner domain.Oracle, limiter *rate.Limiter) *Throttled {
	return &Throttled{
		inner:   inner,
		limiter: limiter,
	}
}

// NewSharedLimiter builds a limiter for one provider-wide request budget.
func NewSharedLimiter(rps float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (t *Throttled) QuarterNarratives(ctx context.Context, req domain.NarrativeRequest) ([]domain.QuarterDraft, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.QuarterNarratives(ctx, req)
}

func (t *Throttled) GenerateCommand(ctx context.Context, req domain.CommandRequest) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.inner.GenerateCommand(ctx, req)
}

func (t *Throttled) GenerativeAct(ctx context.Context, req domain.GenerativeRequest) (*domain.GenerativeResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.GenerativeAct(ctx, req)
}

func (t *Throttled) ClassifyIntent(ctx context.Context, req domain.ClassifyRequest) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.inner.ClassifyIntent(ctx, req)
}

func (t *Throttled) SelfEvaluate(ctx context.Context, req domain.SelfEvalRequest) (*domain.Evaluation, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.SelfEvaluate(ctx, req)
}

func (t *Throttled) ObserverEvaluate(ctx context.Context, view domain.ObserverView) (*domain.Evaluation, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.ObserverEvaluate(ctx, view)
}
