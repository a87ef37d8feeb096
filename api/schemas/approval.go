package schemas

import (
	"time"
)

// -- Approval Schemas --

// ApprovalStatus tracks the lifecycle of a human-approval gate. pending is the
// only non-terminal state; every other status is final.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s ApprovalStatus) Terminal() bool {
	switch s {
	case ApprovalApproved, ApprovalRejected, ApprovalExpired:
		return true
	}
	return false
}

// Approval is a risk-gated authorization record for one recommendation. It is
// created pending, decided at most once, and kept forever for audit.
type Approval struct {
	ID               string `json:"id"`
	RecommendationID string `json:"recommendation_id"`
	CustomerID       string `json:"customer_id"`

	// Risk is snapshotted from the recommendation at creation time and never
	// updated afterward, even if the recommendation is later edited.
	Risk RiskLevel `json:"risk_level"`

	Status      ApprovalStatus `json:"status"`
	RequestedBy string         `json:"requested_by"` // Producing agent ID.
	RequestedAt time.Time      `json:"requested_at"`
	ExpiresAt   time.Time      `json:"expires_at"`

	// Decision fields, populated by the single terminal transition.
	DecidedBy      string     `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	DecisionReason string     `json:"decision_reason,omitempty"`
}

// ExpiredAt reports whether the approval's window has closed as of now.
// Expiry is evaluated lazily: there is no background sweeper, the check runs
// whenever the record is read or decided.
func (a *Approval) ExpiredAt(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// ApprovalDecision is the verdict a human (or policy) hands down on a pending
// approval.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
)
