// File: internal/audit/audit.go
// Description: Best-effort audit reporting. Every resolved conflict, approval
// decision, and plan terminal state is an immutable event for downstream
// observability; failures to record never feed back into engine control flow.

package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// Logger is the default schemas.AuditSink: it writes every event to the
// structured log. It is the sink of last resort and never fails.
type Logger struct {
	logger *zap.Logger
}

// NewLogger returns a zap-backed audit sink.
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{
		logger: logger.With(zap.String("component", "audit")),
	}
}

func (l *Logger) RecordConflictResolved(ctx context.Context, c *schemas.Conflict) {
	l.logger.Info("audit: conflict resolved",
		zap.String("conflict_id", c.ID),
		zap.String("type", string(c.Type)),
		zap.String("severity", string(c.Severity)),
		zap.Strings("recommendation_ids", c.RecommendationIDs),
		zap.String("resolution", c.Resolution))
}

func (l *Logger) RecordApprovalDecision(ctx context.Context, a *schemas.Approval) {
	l.logger.Info("audit: approval decided",
		zap.String("approval_id", a.ID),
		zap.String("recommendation_id", a.RecommendationID),
		zap.String("customer_id", a.CustomerID),
		zap.String("status", string(a.Status)),
		zap.String("decided_by", a.DecidedBy))
}

func (l *Logger) RecordPlanFinished(ctx context.Context, p *schemas.ExecutionPlan) {
	l.logger.Info("audit: plan finished",
		zap.String("plan_id", p.ID),
		zap.String("recommendation_id", p.RecommendationID),
		zap.String("customer_id", p.CustomerID),
		zap.String("status", string(p.Status)),
		zap.Duration("duration", p.Duration))
}

// Fanout forwards every event to multiple sinks, e.g. the log plus the
// database store.
type Fanout struct {
	sinks []schemas.AuditSink
}

// NewFanout returns a sink that forwards to every non-nil sink given.
func NewFanout(sinks ...schemas.AuditSink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) RecordConflictResolved(ctx context.Context, c *schemas.Conflict) {
	for _, s := range f.sinks {
		s.RecordConflictResolved(ctx, c)
	}
}

func (f *Fanout) RecordApprovalDecision(ctx context.Context, a *schemas.Approval) {
	for _, s := range f.sinks {
		s.RecordApprovalDecision(ctx, a)
	}
}

func (f *Fanout) RecordPlanFinished(ctx context.Context, p *schemas.ExecutionPlan) {
	for _, s := range f.sinks {
		s.RecordPlanFinished(ctx, p)
	}
}
