// File: internal/execution/orchestrator.go
// Description: Turns an approved recommendation into an ordered execution
// plan, runs the plan's steps strictly in order through the injected step
// executor, and unwinds completed reversible steps in LIFO order when a
// critical step fails. Plan execution is the only long-running operation in
// the engine; ExecuteAsync runs it on a bounded pool so plans for different
// recommendations proceed concurrently without blocking coordination.

package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
	"github.com/archokshi/optiinfra-sub000/internal/config"
)

// Orchestrator creates and executes plans for approved recommendations.
type Orchestrator struct {
	store     PlanStore
	executor  schemas.StepExecutor
	templates *TemplateRegistry
	audit     schemas.AuditSink
	logger    *zap.Logger

	stepTimeout time.Duration
	// sem bounds how many plans execute their steps at the same time.
	sem *semaphore.Weighted

	// now is swapped out by tests to control timestamps.
	now func() time.Time
}

// NewOrchestrator wires an orchestrator from its dependencies. The audit sink
// may be nil, in which case terminal plan states are only logged.
func NewOrchestrator(
	cfg config.EngineConfig,
	store PlanStore,
	executor schemas.StepExecutor,
	templates *TemplateRegistry,
	audit schemas.AuditSink,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("plan store cannot be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("step executor cannot be nil")
	}
	if templates == nil {
		templates = NewTemplateRegistry()
	}

	concurrency := cfg.MaxConcurrentPlans
	if concurrency <= 0 {
		concurrency = 4
	}
	stepTimeout := cfg.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = 5 * time.Minute
	}

	return &Orchestrator{
		store:       store,
		executor:    executor,
		templates:   templates,
		audit:       audit,
		logger:      logger.With(zap.String("component", "execution_orchestrator")),
		stepTimeout: stepTimeout,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreatePlan expands the recommendation's action into an ordered step list and
// persists the pending plan. Creation is synchronous and cheap; nothing runs
// until Execute.
func (o *Orchestrator) CreatePlan(rec *schemas.Recommendation, customerID string) *schemas.ExecutionPlan {
	plan := &schemas.ExecutionPlan{
		ID:               uuid.NewString(),
		RecommendationID: rec.ID,
		CustomerID:       customerID,
		Steps:            o.templates.Build(rec),
		Status:           schemas.PlanPending,
		CreatedAt:        o.now(),
	}
	o.store.Put(plan)

	o.logger.Info("Execution plan created",
		zap.String("plan_id", plan.ID),
		zap.String("recommendation_id", rec.ID),
		zap.String("action", rec.Action),
		zap.Int("steps", len(plan.Steps)))

	return o.mustSnapshot(plan.ID)
}

// GetPlan returns a snapshot of one plan.
func (o *Orchestrator) GetPlan(planID string) (*schemas.ExecutionPlan, error) {
	plan, ok := o.store.Get(planID)
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", planID, schemas.ErrPlanNotFound)
	}
	return plan, nil
}

// ListPlans returns snapshots of the customer's plans.
func (o *Orchestrator) ListPlans(customerID string) []*schemas.ExecutionPlan {
	return o.store.ListByCustomer(customerID)
}

// ExecuteAsync runs Execute on the bounded pool and returns a buffered channel
// that delivers the plan's terminal error (or nil). The caller gets "plan
// started" semantics immediately and may poll the store or wait on the channel
// for completion.
func (o *Orchestrator) ExecuteAsync(ctx context.Context, planID string) <-chan error {
	done := make(chan error, 1)
	go func() {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			done <- fmt.Errorf("waiting for execution slot: %w", err)
			return
		}
		defer o.sem.Release(1)
		done <- o.Execute(ctx, planID)
	}()
	return done
}

// Execute claims a pending plan and runs its steps strictly in order. A
// critical step failure aborts the run, unwinds completed reversible steps in
// reverse order, and surfaces the failing step's error; non-critical failures
// are recorded and skipped over. Claiming is atomic: a plan that is already
// running or terminal fails fast with ErrPlanNotPending.
func (o *Orchestrator) Execute(ctx context.Context, planID string) error {
	plan, err := o.claim(planID)
	if err != nil {
		return err
	}

	logger := o.logger.With(zap.String("plan_id", planID))
	logger.Info("Plan execution started", zap.Int("steps", len(plan.Steps)))

	for idx := range plan.Steps {
		step := plan.Steps[idx]

		o.markStepRunning(planID, idx)

		result, stepErr := o.runStep(ctx, step)

		if stepErr == nil {
			o.markStepCompleted(planID, idx, result)
			continue
		}

		if !step.Critical {
			logger.Warn("Non-critical step failed, continuing",
				zap.String("step_action", step.Action),
				zap.Int("step_index", idx),
				zap.Error(stepErr))
			o.markStepFailed(planID, idx, stepErr)
			continue
		}

		logger.Error("Critical step failed, rolling back",
			zap.String("step_action", step.Action),
			zap.Int("step_index", idx),
			zap.Error(stepErr))

		o.markStepFailed(planID, idx, stepErr)
		rolledBack := o.rollback(ctx, planID, idx)
		logger.Info("Rollback finished", zap.Int("steps_rolled_back", rolledBack))

		o.finishPlan(ctx, planID, schemas.PlanRolledBack)
		return fmt.Errorf("step %d (%s) of plan %s failed: %w", idx, step.Action, planID, stepErr)
	}

	o.finishPlan(ctx, planID, schemas.PlanCompleted)
	logger.Info("Plan execution completed")
	return nil
}

// runStep invokes the executor with the per-step timeout applied. A deadline
// error is indistinguishable from any other step failure.
func (o *Orchestrator) runStep(ctx context.Context, step *schemas.ExecutionStep) (*schemas.StepResult, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return o.executor.ExecuteStep(stepCtx, step.Action, step.Parameters)
}

// rollback unwinds steps before failedIdx in strictly decreasing index order.
// Only completed reversible steps are touched; each undo failure is logged and
// the walk continues, so one stubborn step never blocks undoing the ones
// beneath it. Returns how many steps were rolled back.
func (o *Orchestrator) rollback(ctx context.Context, planID string, failedIdx int) int {
	logger := o.logger.With(zap.String("plan_id", planID))

	snapshot, ok := o.store.Get(planID)
	if !ok {
		return 0
	}

	rolledBack := 0
	for idx := failedIdx - 1; idx >= 0; idx-- {
		step := snapshot.Steps[idx]
		if !step.Reversible || step.Status != schemas.StepCompleted {
			continue
		}

		rollbackCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		err := o.executor.RollbackStep(rollbackCtx, step.Action, step.RollbackData)
		cancel()

		if err != nil {
			// Best-effort: record the failure and keep walking down.
			logger.Error("Rollback of step failed",
				zap.String("step_action", step.Action),
				zap.Int("step_index", idx),
				zap.Error(err))
			continue
		}

		o.markStepRolledBack(planID, idx)
		rolledBack++
		logger.Info("Step rolled back",
			zap.String("step_action", step.Action),
			zap.Int("step_index", idx))
	}
	return rolledBack
}

// claim atomically moves a pending plan to running and returns a snapshot of
// its (immutable from here on) step definitions.
func (o *Orchestrator) claim(planID string) (*schemas.ExecutionPlan, error) {
	var snapshot *schemas.ExecutionPlan
	err := o.store.Update(planID, func(p *schemas.ExecutionPlan) error {
		if p.Status != schemas.PlanPending {
			return fmt.Errorf("plan %s is %s: %w", p.ID, p.Status, schemas.ErrPlanNotPending)
		}
		now := o.now()
		p.Status = schemas.PlanRunning
		p.StartedAt = &now
		snapshot = clonePlan(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (o *Orchestrator) markStepRunning(planID string, idx int) {
	_ = o.store.Update(planID, func(p *schemas.ExecutionPlan) error {
		now := o.now()
		p.CurrentStep = idx
		step := p.Steps[idx]
		step.Status = schemas.StepRunning
		step.StartedAt = &now
		return nil
	})
}

func (o *Orchestrator) markStepCompleted(planID string, idx int, result *schemas.StepResult) {
	_ = o.store.Update(planID, func(p *schemas.ExecutionPlan) error {
		now := o.now()
		step := p.Steps[idx]
		step.Status = schemas.StepCompleted
		step.CompletedAt = &now
		if step.StartedAt != nil {
			step.Duration = now.Sub(*step.StartedAt)
		}
		if result != nil {
			step.Result = result.Output
			if step.Reversible {
				step.RollbackData = result.RollbackData
			}
		}
		return nil
	})
}

func (o *Orchestrator) markStepFailed(planID string, idx int, stepErr error) {
	_ = o.store.Update(planID, func(p *schemas.ExecutionPlan) error {
		now := o.now()
		step := p.Steps[idx]
		step.Status = schemas.StepFailed
		step.CompletedAt = &now
		if step.StartedAt != nil {
			step.Duration = now.Sub(*step.StartedAt)
		}
		step.Error = stepErr.Error()
		return nil
	})
}

func (o *Orchestrator) markStepRolledBack(planID string, idx int) {
	_ = o.store.Update(planID, func(p *schemas.ExecutionPlan) error {
		p.Steps[idx].Status = schemas.StepRolledBack
		return nil
	})
}

// finishPlan records the terminal status and reports the plan to the audit
// sink.
func (o *Orchestrator) finishPlan(ctx context.Context, planID string, status schemas.PlanStatus) {
	_ = o.store.Update(planID, func(p *schemas.ExecutionPlan) error {
		now := o.now()
		p.Status = status
		switch status {
		case schemas.PlanRolledBack:
			p.RolledBackAt = &now
		case schemas.PlanCompleted:
			p.CompletedAt = &now
		default:
			p.CompletedAt = &now
		}
		if p.StartedAt != nil {
			p.Duration = now.Sub(*p.StartedAt)
		}
		return nil
	})

	if o.audit != nil {
		if plan, ok := o.store.Get(planID); ok {
			o.audit.RecordPlanFinished(ctx, plan)
		}
	}
}

func (o *Orchestrator) mustSnapshot(planID string) *schemas.ExecutionPlan {
	plan, _ := o.store.Get(planID)
	return plan
}
