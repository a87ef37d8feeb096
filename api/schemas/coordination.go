package schemas

import (
	"time"
)

// -- Coordination Result Schemas --

// CoordinationResult is the aggregate outcome of coordinating one batch of
// recommendations for one customer. Plans listed here have been created (and
// possibly started) but may still be running when the result is returned.
type CoordinationResult struct {
	CustomerID string    `json:"customer_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// TotalRecommendations counts the batch as submitted, KeptRecommendations
	// the survivors after validation and conflict resolution.
	TotalRecommendations int `json:"total_recommendations"`
	KeptRecommendations  int `json:"kept_recommendations"`
	// Invalid counts batch members rejected by validation before detection.
	Invalid int `json:"invalid"`

	Conflicts []*Conflict `json:"conflicts,omitempty"`
	Approvals []*Approval `json:"approvals,omitempty"`
	// AutoApproved counts recommendations that proceeded without a human gate.
	AutoApproved int `json:"auto_approved"`

	Plans []*ExecutionPlan `json:"plans,omitempty"`
}
