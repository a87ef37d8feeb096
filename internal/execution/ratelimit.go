// File: internal/execution/ratelimit.go
package execution

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// RateLimitedExecutor throttles an inner step executor with a shared token
// bucket so bursts of concurrent plans cannot hammer the cloud effectors.
// A limiter wait cut short by the step's context deadline surfaces as an
// ordinary step failure.
type RateLimitedExecutor struct {
	inner   schemas.StepExecutor
	limiter *rate.Limiter
}

// NewRateLimitedExecutor wraps inner with a limiter of r calls per second and
// the given burst. A non-positive rate returns inner unchanged.
func NewRateLimitedExecutor(inner schemas.StepExecutor, r float64, burst int) schemas.StepExecutor {
	if r <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedExecutor{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(r), burst),
	}
}

func (e *RateLimitedExecutor) ExecuteStep(ctx context.Context, action string, parameters map[string]any) (*schemas.StepResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", action, err)
	}
	return e.inner.ExecuteStep(ctx, action, parameters)
}

func (e *RateLimitedExecutor) RollbackStep(ctx context.Context, action string, rollbackData map[string]any) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for rollback of %s: %w", action, err)
	}
	return e.inner.RollbackStep(ctx, action, rollbackData)
}
