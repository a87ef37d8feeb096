// File: internal/execution/simulator.go
// Description: A step executor that applies no real infrastructure changes.
// Used by the CLI demo wiring and anywhere a coordination run needs to be
// rehearsed end to end without touching cloud APIs.

package execution

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// SimulatedExecutor reports success for every step after an optional delay.
type SimulatedExecutor struct {
	logger *zap.Logger
	delay  time.Duration
}

// NewSimulatedExecutor returns a no-op executor. A positive delay makes each
// step take that long, which keeps timeout and concurrency behavior
// observable in rehearsal runs.
func NewSimulatedExecutor(logger *zap.Logger, delay time.Duration) *SimulatedExecutor {
	return &SimulatedExecutor{
		logger: logger.With(zap.String("component", "simulated_executor")),
		delay:  delay,
	}
}

func (s *SimulatedExecutor) ExecuteStep(ctx context.Context, action string, parameters map[string]any) (*schemas.StepResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("Simulated step", zap.String("action", action))
	return &schemas.StepResult{
		Output: map[string]any{
			"simulated": true,
			"action":    action,
		},
		RollbackData: map[string]any{
			"simulated": true,
			"action":    action,
		},
	}, nil
}

func (s *SimulatedExecutor) RollbackStep(ctx context.Context, action string, rollbackData map[string]any) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.logger.Info("Simulated rollback", zap.String("action", action))
	return nil
}

func (s *SimulatedExecutor) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
