package schemas

import (
	"context"
)

// -- Executor Interface --

// StepResult is what a step executor hands back for a successful step.
type StepResult struct {
	// Output is the opaque result payload recorded on the step.
	Output map[string]any
	// RollbackData is whatever the executor needs to undo the step later.
	// Only meaningful for reversible steps; may be nil.
	RollbackData map[string]any
}

// StepExecutor is the seam where real-world effects plug in: cloud-provider
// calls, notifications, config pushes. The orchestrator drives every step
// through this interface and never talks to providers directly.
type StepExecutor interface {
	// ExecuteStep performs the given action with the step's parameters.
	// The context carries the per-step timeout; a deadline error is treated
	// like any other step failure.
	ExecuteStep(ctx context.Context, action string, parameters map[string]any) (*StepResult, error)

	// RollbackStep undoes a previously completed step using the rollback
	// data captured at completion time. Failures are logged best-effort and
	// never escalate.
	RollbackStep(ctx context.Context, action string, rollbackData map[string]any) error
}

// -- Audit Interface --

// AuditSink receives immutable lifecycle events for downstream observability.
// Implementations must be safe for concurrent use; errors are the sink's own
// problem and must never propagate into engine control flow.
type AuditSink interface {
	RecordConflictResolved(ctx context.Context, conflict *Conflict)
	RecordApprovalDecision(ctx context.Context, approval *Approval)
	RecordPlanFinished(ctx context.Context, plan *ExecutionPlan)
}
