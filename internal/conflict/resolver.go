// File: internal/conflict/resolver.go
// Description: Deterministic resolution of detected conflicts. For every
// conflict the resolver keeps exactly one of the pair and discards the other;
// the win/lose decision is a pure function of the two recommendations' own
// fields, so processing order never changes the final kept set.

package conflict

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// Resolver consumes detected conflicts and filters the batch down to the
// recommendations that survive.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver returns a resolver that logs through the given logger.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		logger: logger.With(zap.String("component", "conflict_resolver")),
	}
}

// Resolve walks the conflicts in detection order, picks a winner for each, and
// returns the surviving recommendations (input order preserved) together with
// the now-resolved conflicts. A recommendation discarded by one conflict stays
// discarded even if it also appears in later conflicts.
func (r *Resolver) Resolve(
	recommendations []*schemas.Recommendation,
	conflicts []*schemas.Conflict,
) ([]*schemas.Recommendation, []*schemas.Conflict) {
	byID := make(map[string]*schemas.Recommendation, len(recommendations))
	scanOrder := make(map[string]int, len(recommendations))
	for i, rec := range recommendations {
		byID[rec.ID] = rec
		scanOrder[rec.ID] = i
	}

	discarded := make(map[string]bool)

	for _, c := range conflicts {
		if len(c.RecommendationIDs) < 2 {
			continue
		}
		a, okA := byID[c.RecommendationIDs[0]]
		b, okB := byID[c.RecommendationIDs[1]]
		if !okA || !okB {
			r.logger.Warn("Conflict references a recommendation outside the batch, skipping",
				zap.String("conflict_id", c.ID))
			continue
		}

		winner, loser, criterion := pickWinner(a, b, scanOrder)

		// A recommendation already discarded by an earlier conflict never
		// comes back; the conflict still gets a resolution narrative.
		if !discarded[loser.ID] {
			discarded[loser.ID] = true
			loser.Status = schemas.RecommendationDiscarded
		}

		now := time.Now().UTC()
		c.Resolved = true
		c.ResolvedAt = &now
		c.Resolution = fmt.Sprintf("kept %s, discarded %s (decided by %s)", winner.ID, loser.ID, criterion)

		r.logger.Info("Conflict resolved",
			zap.String("conflict_id", c.ID),
			zap.String("kept", winner.ID),
			zap.String("discarded", loser.ID),
			zap.String("criterion", criterion))
	}

	kept := make([]*schemas.Recommendation, 0, len(recommendations))
	for _, rec := range recommendations {
		if !discarded[rec.ID] {
			kept = append(kept, rec)
		}
	}

	return kept, conflicts
}

// pickWinner applies the deterministic total order over a conflicting pair:
// priority, then estimated savings, then confidence, then lower risk, then
// scan order. The scan-order fallback is arbitrary but documented and stable:
// it guarantees the ordering is total even for identical twins.
func pickWinner(a, b *schemas.Recommendation, scanOrder map[string]int) (winner, loser *schemas.Recommendation, criterion string) {
	switch {
	case a.Priority != b.Priority:
		if a.Priority > b.Priority {
			return a, b, "priority"
		}
		return b, a, "priority"
	case a.EstimatedSavings != b.EstimatedSavings:
		if a.EstimatedSavings > b.EstimatedSavings {
			return a, b, "estimated savings"
		}
		return b, a, "estimated savings"
	case a.Confidence != b.Confidence:
		if a.Confidence > b.Confidence {
			return a, b, "confidence"
		}
		return b, a, "confidence"
	case a.Risk.Rank() != b.Risk.Rank():
		// All economics equal: prefer the safer recommendation.
		if a.Risk.Rank() < b.Risk.Rank() {
			return a, b, "risk level"
		}
		return b, a, "risk level"
	default:
		if scanOrder[a.ID] <= scanOrder[b.ID] {
			return a, b, "scan order"
		}
		return b, a, "scan order"
	}
}
