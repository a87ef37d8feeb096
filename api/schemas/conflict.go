package schemas

import (
	"time"
)

// -- Conflict Schemas --

// ConflictType identifies why two recommendations cannot both be applied.
type ConflictType string

const (
	// ConflictResource marks recommendations whose resource sets overlap.
	ConflictResource ConflictType = "resource"
	// ConflictAction marks recommendations with mutually exclusive actions.
	ConflictAction ConflictType = "action"
	// ConflictDependency marks recommendations that depend on each other.
	ConflictDependency ConflictType = "dependency"
)

// ConflictSeverity grades how serious a detected conflict is.
type ConflictSeverity string

const (
	ConflictSeverityLow    ConflictSeverity = "low"
	ConflictSeverityMedium ConflictSeverity = "medium"
	ConflictSeverityHigh   ConflictSeverity = "high"
)

// Conflict is the evidence record produced when the detector finds that two
// recommendations cannot both be safely applied. Once the resolver marks it
// resolved it becomes an immutable historical record.
type Conflict struct {
	ID       string           `json:"id"`
	Type     ConflictType     `json:"type"`
	Severity ConflictSeverity `json:"severity"`

	// RecommendationIDs lists the implicated recommendations, always >= 2.
	RecommendationIDs []string `json:"recommendation_ids"`

	Description string `json:"description"`
	// Field names the conflicting attribute ("resources", "action", "depends_on").
	Field string `json:"field"`

	DetectedAt time.Time `json:"detected_at"`

	// Resolution outcome, written exactly once by the resolver.
	Resolved   bool       `json:"resolved"`
	Resolution string     `json:"resolution,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Involves reports whether the conflict implicates the given recommendation.
func (c *Conflict) Involves(recommendationID string) bool {
	for _, id := range c.RecommendationIDs {
		if id == recommendationID {
			return true
		}
	}
	return false
}
