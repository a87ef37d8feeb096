// File: internal/conflict/detector.go
// Description: Pairwise conflict detection over one coordination batch.
// Detection is a pure function of the batch: no store access, no mutation.

package conflict

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// exclusiveActions is the symmetric table of mutually exclusive action pairs.
// Consulted in both directions; extend it when new contradictory action pairs
// ship with new agent types.
var exclusiveActions = map[string]string{
	"scale_up":           "scale_down",
	"migrate_to_spot":    "migrate_to_on_demand",
	"enable_caching":     "disable_caching",
	"rightsize_instance": "scale_up",
}

// actionsExclusive reports whether the two actions appear as an exclusive pair
// in either direction.
func actionsExclusive(a, b string) bool {
	return exclusiveActions[a] == b || exclusiveActions[b] == a
}

// Detector scans a recommendation batch for pairs that cannot both be applied.
type Detector struct {
	logger *zap.Logger
}

// NewDetector returns a detector that logs through the given logger.
func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{
		logger: logger.With(zap.String("component", "conflict_detector")),
	}
}

// Detect evaluates every unordered pair in the batch against the three
// independent checks (resource overlap, exclusive action, circular dependency)
// and returns the flat list of unresolved conflicts. A single pair may yield
// more than one conflict when several checks fire at once.
func (d *Detector) Detect(recommendations []*schemas.Recommendation) []*schemas.Conflict {
	var conflicts []*schemas.Conflict

	for i := 0; i < len(recommendations); i++ {
		for j := i + 1; j < len(recommendations); j++ {
			a, b := recommendations[i], recommendations[j]

			if c := d.checkResources(a, b); c != nil {
				conflicts = append(conflicts, c)
			}
			if c := d.checkActions(a, b); c != nil {
				conflicts = append(conflicts, c)
			}
			if c := d.checkDependencies(a, b); c != nil {
				conflicts = append(conflicts, c)
			}
		}
	}

	d.logger.Info("Conflict detection finished",
		zap.Int("recommendations", len(recommendations)),
		zap.Int("conflicts", len(conflicts)))

	return conflicts
}

// checkResources emits a resource conflict when the two recommendations touch
// at least one common resource. Severity scales with how many of the pair sit
// at high risk or above.
func (d *Detector) checkResources(a, b *schemas.Recommendation) *schemas.Conflict {
	shared := a.SharedResources(b)
	if len(shared) == 0 {
		return nil
	}

	severity := schemas.ConflictSeverityLow
	switch {
	case a.Risk.AtLeast(schemas.RiskHigh) && b.Risk.AtLeast(schemas.RiskHigh):
		severity = schemas.ConflictSeverityHigh
	case a.Risk.AtLeast(schemas.RiskHigh) || b.Risk.AtLeast(schemas.RiskHigh):
		severity = schemas.ConflictSeverityMedium
	}

	return d.newConflict(schemas.ConflictResource, severity, a, b, "resources",
		fmt.Sprintf("recommendations %s and %s both target resources [%s]",
			a.ID, b.ID, strings.Join(shared, ", ")))
}

// checkActions emits an action conflict when the two actions are mutually
// exclusive. Always high severity: applying both is contradictory by definition.
func (d *Detector) checkActions(a, b *schemas.Recommendation) *schemas.Conflict {
	if !actionsExclusive(a.Action, b.Action) {
		return nil
	}
	return d.newConflict(schemas.ConflictAction, schemas.ConflictSeverityHigh, a, b, "action",
		fmt.Sprintf("action %q of %s contradicts action %q of %s",
			a.Action, a.ID, b.Action, b.ID))
}

// checkDependencies emits a dependency conflict when each recommendation lists
// the other as a prerequisite, which is unsatisfiable.
func (d *Detector) checkDependencies(a, b *schemas.Recommendation) *schemas.Conflict {
	if !a.DependsOnID(b.ID) || !b.DependsOnID(a.ID) {
		return nil
	}
	return d.newConflict(schemas.ConflictDependency, schemas.ConflictSeverityHigh, a, b, "depends_on",
		fmt.Sprintf("recommendations %s and %s depend on each other", a.ID, b.ID))
}

func (d *Detector) newConflict(
	kind schemas.ConflictType,
	severity schemas.ConflictSeverity,
	a, b *schemas.Recommendation,
	field, description string,
) *schemas.Conflict {
	c := &schemas.Conflict{
		ID:                uuid.NewString(),
		Type:              kind,
		Severity:          severity,
		RecommendationIDs: []string{a.ID, b.ID},
		Description:       description,
		Field:             field,
		DetectedAt:        time.Now().UTC(),
	}

	d.logger.Debug("Conflict detected",
		zap.String("conflict_id", c.ID),
		zap.String("type", string(kind)),
		zap.String("severity", string(severity)),
		zap.Strings("recommendations", c.RecommendationIDs))

	return c
}
