package schemas

import (
	"fmt"
	"time"
)

// -- Recommendation Schemas --

// RiskLevel classifies how dangerous it is to apply a recommendation. The
// values are lowercase to align with database ENUMs and the JSON wire format
// used by the producing agents.
type RiskLevel string

// Constants defining the standard risk levels, from safest to most dangerous.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRank defines the total ordering over risk levels. Conflict resolution
// and approval gating both depend on this ordering being explicit.
var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank returns the position of the risk level in the total order
// (low < medium < high < critical), or -1 for an unknown level.
func (r RiskLevel) Rank() int {
	rank, ok := riskRank[r]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether the risk level is one of the four known values.
func (r RiskLevel) Valid() bool {
	_, ok := riskRank[r]
	return ok
}

// AtLeast reports whether the risk level is equal to or more dangerous than other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// RecommendationStatus tracks a recommendation through one coordination run.
// Producing agents always submit recommendations as "proposed"; the engine is
// the only writer of subsequent statuses.
type RecommendationStatus string

const (
	RecommendationProposed        RecommendationStatus = "proposed"
	RecommendationApproved        RecommendationStatus = "approved"
	RecommendationPendingApproval RecommendationStatus = "pending_approval"
	RecommendationRejected        RecommendationStatus = "rejected"
	RecommendationDiscarded       RecommendationStatus = "discarded"
)

// Recommendation is a proposal from one autonomous agent to change one or more
// infrastructure resources. Recommendations arrive pre-scored: the engine
// never recomputes savings, priority, or confidence, it only coordinates.
type Recommendation struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`   // The agent instance that produced this proposal.
	AgentType string `json:"agent_type"` // The agent category, e.g. "cost" or "performance".

	// Type is a free-form category tag assigned by the producing agent
	// (e.g. "spot_migration", "idle_cleanup").
	Type string `json:"type"`

	// Action is the symbolic operation the recommendation wants applied,
	// e.g. "migrate_to_spot" or "scale_down". It keys the step-template
	// registry at plan-creation time.
	Action string    `json:"action"`
	Risk   RiskLevel `json:"risk_level"`

	// EstimatedSavings is the projected monthly saving in USD. Never negative.
	EstimatedSavings float64 `json:"estimated_savings"`
	// Priority orders recommendations during conflict resolution; higher wins.
	Priority int `json:"priority"`
	// Confidence is the producing agent's self-assessed certainty in [0, 1].
	Confidence float64 `json:"confidence"`

	// Resources lists the identifiers of every resource this recommendation
	// touches. Must be non-empty.
	Resources []string `json:"resources"`
	// DependsOn lists recommendation IDs that must execute before this one.
	DependsOn []string `json:"depends_on,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Status is the only field the engine mutates.
	Status RecommendationStatus `json:"status"`
}

// Validate checks the structural invariants a recommendation must satisfy
// before it may enter a coordination run. A failed validation rejects only
// this recommendation, never the whole batch.
func (r *Recommendation) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing recommendation id", ErrInvalidRecommendation)
	}
	if r.AgentID == "" {
		return fmt.Errorf("%w: recommendation %s has no producing agent", ErrInvalidRecommendation, r.ID)
	}
	if r.Action == "" {
		return fmt.Errorf("%w: recommendation %s has no action", ErrInvalidRecommendation, r.ID)
	}
	if !r.Risk.Valid() {
		return fmt.Errorf("%w: recommendation %s has unknown risk level %q", ErrInvalidRecommendation, r.ID, r.Risk)
	}
	if len(r.Resources) == 0 {
		return fmt.Errorf("%w: recommendation %s touches no resources", ErrInvalidRecommendation, r.ID)
	}
	if r.EstimatedSavings < 0 {
		return fmt.Errorf("%w: recommendation %s has negative savings %.2f", ErrInvalidRecommendation, r.ID, r.EstimatedSavings)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: recommendation %s has confidence %.2f outside [0,1]", ErrInvalidRecommendation, r.ID, r.Confidence)
	}
	return nil
}

// SharedResources returns the resource IDs present in both recommendations.
// Order follows r's resource list.
func (r *Recommendation) SharedResources(other *Recommendation) []string {
	seen := make(map[string]struct{}, len(other.Resources))
	for _, res := range other.Resources {
		seen[res] = struct{}{}
	}
	var shared []string
	for _, res := range r.Resources {
		if _, ok := seen[res]; ok {
			shared = append(shared, res)
		}
	}
	return shared
}

// DependsOnID reports whether the recommendation lists id as a prerequisite.
func (r *Recommendation) DependsOnID(id string) bool {
	for _, dep := range r.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}
