// File: internal/coordinator/coordinator.go
// Description: The facade that sequences one coordination run: validate the
// batch, detect conflicts, resolve them, gate survivors through approval, and
// optionally launch execution plans for everything already approved. Pure
// sequencing and aggregation; all business logic lives in the components.

package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
	"github.com/archokshi/optiinfra-sub000/internal/approval"
	"github.com/archokshi/optiinfra-sub000/internal/conflict"
	"github.com/archokshi/optiinfra-sub000/internal/execution"
)

// Options steer one coordination run.
type Options struct {
	// AutoApprove lets low-risk survivors proceed without a human gate.
	AutoApprove bool
	// ExecuteNow creates and starts an execution plan for every survivor
	// that ended the run approved. Plans run asynchronously; the result
	// reports them as created, not finished.
	ExecuteNow bool
}

// Coordinator wires the detector, resolver, approval manager, and execution
// orchestrator into a single entry point per batch.
type Coordinator struct {
	detector     *conflict.Detector
	resolver     *conflict.Resolver
	approvals    *approval.Manager
	orchestrator *execution.Orchestrator
	audit        schemas.AuditSink
	logger       *zap.Logger
	inflight     sync.WaitGroup
}

// New builds a coordinator. The audit sink may be nil.
func New(
	detector *conflict.Detector,
	resolver *conflict.Resolver,
	approvals *approval.Manager,
	orchestrator *execution.Orchestrator,
	audit schemas.AuditSink,
	logger *zap.Logger,
) (*Coordinator, error) {
	if detector == nil || resolver == nil || approvals == nil || orchestrator == nil {
		return nil, fmt.Errorf("cannot initialize coordinator with nil components")
	}
	return &Coordinator{
		detector:     detector,
		resolver:     resolver,
		approvals:    approvals,
		orchestrator: orchestrator,
		audit:        audit,
		logger:       logger.With(zap.String("component", "coordinator")),
	}, nil
}

// Coordinate processes one batch of recommendations for one customer. The
// batch is private to this call; the shared approval and plan stores are the
// only state that outlives it. A failure scoped to one recommendation never
// aborts the rest of the batch.
func (c *Coordinator) Coordinate(
	ctx context.Context,
	customerID string,
	recommendations []*schemas.Recommendation,
	opts Options,
) *schemas.CoordinationResult {
	logger := c.logger.With(zap.String("customer_id", customerID))
	result := &schemas.CoordinationResult{
		CustomerID:           customerID,
		StartedAt:            time.Now().UTC(),
		TotalRecommendations: len(recommendations),
	}

	logger.Info("Coordination started",
		zap.Int("recommendations", len(recommendations)),
		zap.Bool("auto_approve", opts.AutoApprove),
		zap.Bool("execute_now", opts.ExecuteNow))

	// 1. Validation. Malformed recommendations are rejected here, before
	// detection, with no side effects beyond the log and the count.
	valid := make([]*schemas.Recommendation, 0, len(recommendations))
	for _, rec := range recommendations {
		if err := rec.Validate(); err != nil {
			logger.Warn("Rejecting invalid recommendation", zap.Error(err))
			result.Invalid++
			continue
		}
		valid = append(valid, rec)
	}

	// 2. Conflict detection and resolution.
	conflicts := c.detector.Detect(valid)
	kept, resolved := c.resolver.Resolve(valid, conflicts)
	result.Conflicts = resolved
	result.KeptRecommendations = len(kept)

	if c.audit != nil {
		for _, conf := range resolved {
			if conf.Resolved {
				c.audit.RecordConflictResolved(ctx, conf)
			}
		}
	}

	// 3. Approval gating of the survivors.
	for _, rec := range kept {
		if opts.AutoApprove && c.approvals.AutoApprove(rec) {
			rec.Status = schemas.RecommendationApproved
			result.AutoApproved++
			continue
		}

		a := c.approvals.RequestApproval(rec, customerID)
		if a == nil {
			// No gate required for this risk tier.
			rec.Status = schemas.RecommendationApproved
			result.AutoApproved++
			continue
		}
		rec.Status = schemas.RecommendationPendingApproval
		result.Approvals = append(result.Approvals, a)
	}

	// 4. Launch plans for everything already approved.
	if opts.ExecuteNow {
		for _, rec := range kept {
			if rec.Status != schemas.RecommendationApproved {
				continue
			}
			plan := c.orchestrator.CreatePlan(rec, customerID)
			result.Plans = append(result.Plans, plan)

			// Fire and track: the pool bounds concurrency, the channel
			// carries the terminal error for anyone who cares to wait.
			done := c.orchestrator.ExecuteAsync(ctx, plan.ID)
			c.inflight.Add(1)
			go c.reportPlanOutcome(plan.ID, done, logger)
		}
	}

	result.FinishedAt = time.Now().UTC()
	logger.Info("Coordination finished",
		zap.Int("kept", result.KeptRecommendations),
		zap.Int("invalid", result.Invalid),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Int("approvals_pending", len(result.Approvals)),
		zap.Int("auto_approved", result.AutoApproved),
		zap.Int("plans_started", len(result.Plans)))

	return result
}

// Wait blocks until every plan launched by previous Coordinate calls has
// reached a terminal status. Used by short-lived callers that must not exit
// while plans are still running.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

// reportPlanOutcome drains one plan's completion channel so asynchronous
// failures always land in the log even when no caller waits on the plan.
func (c *Coordinator) reportPlanOutcome(planID string, done <-chan error, logger *zap.Logger) {
	defer c.inflight.Done()
	if err := <-done; err != nil {
		logger.Error("Plan execution failed", zap.String("plan_id", planID), zap.Error(err))
		return
	}
	logger.Info("Plan execution succeeded", zap.String("plan_id", planID))
}
