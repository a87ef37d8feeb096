// File: internal/approval/manager.go
// Description: The human-approval gate. Risk decides whether a recommendation
// auto-proceeds or waits for a decision; expiry is evaluated lazily on every
// read or decision attempt, never by a background timer.

package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// expiryWindows maps a recommendation's risk level to how long a human has to
// decide. The low window is unreachable today (low risk never creates an
// approval) and is kept for a future policy knob.
var expiryWindows = map[schemas.RiskLevel]time.Duration{
	schemas.RiskLow:      7 * 24 * time.Hour,
	schemas.RiskMedium:   2 * 24 * time.Hour,
	schemas.RiskHigh:     24 * time.Hour,
	schemas.RiskCritical: 4 * time.Hour,
}

// Manager owns the approval lifecycle for all customers sharing one store.
type Manager struct {
	store  Store
	audit  schemas.AuditSink
	logger *zap.Logger

	// now is swapped out by tests to control expiry.
	now func() time.Time
}

// NewManager returns a manager backed by the given store. The audit sink may
// be nil, in which case decisions are only logged.
func NewManager(store Store, audit schemas.AuditSink, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		audit:  audit,
		logger: logger.With(zap.String("component", "approval_manager")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AutoApprove reports whether the recommendation may proceed without a human
// gate. Only the lowest risk tier qualifies.
func (m *Manager) AutoApprove(rec *schemas.Recommendation) bool {
	return rec.Risk == schemas.RiskLow
}

// RequestApproval creates a pending approval for the recommendation, or
// returns nil when its risk level requires none. The approval snapshots the
// recommendation's risk at creation time; later edits to the recommendation
// never move an already-issued expiry.
func (m *Manager) RequestApproval(rec *schemas.Recommendation, customerID string) *schemas.Approval {
	if m.AutoApprove(rec) {
		m.logger.Debug("No approval required for low-risk recommendation",
			zap.String("recommendation_id", rec.ID))
		return nil
	}

	now := m.now()
	a := &schemas.Approval{
		ID:               uuid.NewString(),
		RecommendationID: rec.ID,
		CustomerID:       customerID,
		Risk:             rec.Risk,
		Status:           schemas.ApprovalPending,
		RequestedBy:      rec.AgentID,
		RequestedAt:      now,
		ExpiresAt:        now.Add(expiryWindows[rec.Risk]),
	}
	m.store.Put(a)

	m.logger.Info("Approval requested",
		zap.String("approval_id", a.ID),
		zap.String("recommendation_id", rec.ID),
		zap.String("customer_id", customerID),
		zap.String("risk_level", string(rec.Risk)),
		zap.Time("expires_at", a.ExpiresAt))

	return a
}

// ProcessApproval applies a human decision to a pending approval. Exactly one
// terminal transition ever succeeds per record: concurrent decisions race
// inside the store's Update and the loser observes ErrApprovalAlreadyDecided.
// A decision attempted after the expiry window flips the record to expired as
// a side effect and returns ErrApprovalExpired.
func (m *Manager) ProcessApproval(ctx context.Context, approvalID string, decision schemas.ApprovalDecision, actorID, reason string) error {
	if decision != schemas.DecisionApprove && decision != schemas.DecisionReject {
		return fmt.Errorf("unknown approval decision %q", decision)
	}

	var decided *schemas.Approval
	err := m.store.Update(approvalID, func(a *schemas.Approval) error {
		if a.Status != schemas.ApprovalPending {
			return fmt.Errorf("approval %s is %s: %w", a.ID, a.Status, schemas.ErrApprovalAlreadyDecided)
		}

		now := m.now()
		if a.ExpiredAt(now) {
			a.Status = schemas.ApprovalExpired
			return fmt.Errorf("approval %s expired at %s: %w", a.ID, a.ExpiresAt, schemas.ErrApprovalExpired)
		}

		if decision == schemas.DecisionApprove {
			a.Status = schemas.ApprovalApproved
		} else {
			a.Status = schemas.ApprovalRejected
		}
		a.DecidedBy = actorID
		a.DecidedAt = &now
		a.DecisionReason = reason

		decided = cloneApproval(a)
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Approval decided",
		zap.String("approval_id", approvalID),
		zap.String("status", string(decided.Status)),
		zap.String("decided_by", actorID))

	if m.audit != nil {
		m.audit.RecordApprovalDecision(ctx, decided)
	}
	return nil
}

// ListPending returns the customer's approvals that are still awaiting a
// decision. Any pending approval whose window has closed is flipped to
// expired during the scan (lazy sweep) and excluded from the result.
func (m *Manager) ListPending(ctx context.Context, customerID string) []*schemas.Approval {
	now := m.now()
	var pending []*schemas.Approval

	for _, a := range m.store.ListByCustomer(customerID) {
		if a.Status != schemas.ApprovalPending {
			continue
		}
		if a.ExpiredAt(now) {
			m.expire(ctx, a.ID)
			continue
		}
		pending = append(pending, a)
	}
	return pending
}

// GetApproval returns a snapshot of one approval, applying lazy expiry first.
func (m *Manager) GetApproval(ctx context.Context, approvalID string) (*schemas.Approval, error) {
	a, ok := m.store.Get(approvalID)
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", approvalID, schemas.ErrApprovalNotFound)
	}
	if a.Status == schemas.ApprovalPending && a.ExpiredAt(m.now()) {
		m.expire(ctx, a.ID)
		a.Status = schemas.ApprovalExpired
	}
	return a, nil
}

// expire flips a pending approval to expired. Benign if a decision landed in
// the meantime: the status check inside Update keeps terminal states terminal.
func (m *Manager) expire(ctx context.Context, approvalID string) {
	var expired *schemas.Approval
	err := m.store.Update(approvalID, func(a *schemas.Approval) error {
		if a.Status != schemas.ApprovalPending {
			return schemas.ErrApprovalAlreadyDecided
		}
		a.Status = schemas.ApprovalExpired
		expired = cloneApproval(a)
		return nil
	})
	if err != nil {
		return
	}

	m.logger.Info("Approval expired", zap.String("approval_id", approvalID))
	if m.audit != nil {
		m.audit.RecordApprovalDecision(ctx, expired)
	}
}
