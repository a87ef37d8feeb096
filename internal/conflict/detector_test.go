package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

func rec(id, action string, risk schemas.RiskLevel, resources ...string) *schemas.Recommendation {
	return &schemas.Recommendation{
		ID:         id,
		AgentID:    "agent-" + id,
		AgentType:  "cost",
		Type:       "test",
		Action:     action,
		Risk:       risk,
		Priority:   1,
		Confidence: 0.8,
		Resources:  resources,
		CreatedAt:  time.Now().UTC(),
		Status:     schemas.RecommendationProposed,
	}
}

func conflictsOfType(conflicts []*schemas.Conflict, kind schemas.ConflictType) []*schemas.Conflict {
	var out []*schemas.Conflict
	for _, c := range conflicts {
		if c.Type == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestDetectResourceOverlap(t *testing.T) {
	d := NewDetector(zap.NewNop())

	a := rec("rec-a", "scale_down", schemas.RiskLow, "i-123", "i-456")
	b := rec("rec-b", "rightsize_instance", schemas.RiskLow, "i-123")
	c := rec("rec-c", "rightsize_instance", schemas.RiskLow, "i-999")

	conflicts := d.Detect([]*schemas.Recommendation{a, b, c})

	resource := conflictsOfType(conflicts, schemas.ConflictResource)
	require.Len(t, resource, 1)
	assert.ElementsMatch(t, []string{"rec-a", "rec-b"}, resource[0].RecommendationIDs)
	assert.Equal(t, schemas.ConflictSeverityLow, resource[0].Severity)
	assert.Equal(t, "resources", resource[0].Field)
	assert.Contains(t, resource[0].Description, "i-123")
	assert.False(t, resource[0].Resolved)
}

func TestDetectResourceSeverityScalesWithRisk(t *testing.T) {
	d := NewDetector(zap.NewNop())

	testCases := []struct {
		name     string
		riskA    schemas.RiskLevel
		riskB    schemas.RiskLevel
		severity schemas.ConflictSeverity
	}{
		{"both high", schemas.RiskHigh, schemas.RiskCritical, schemas.ConflictSeverityHigh},
		{"one high", schemas.RiskHigh, schemas.RiskMedium, schemas.ConflictSeverityMedium},
		{"neither high", schemas.RiskMedium, schemas.RiskLow, schemas.ConflictSeverityLow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := rec("rec-a", "scale_down", tc.riskA, "i-1")
			b := rec("rec-b", "rightsize_instance", tc.riskB, "i-1")

			conflicts := conflictsOfType(d.Detect([]*schemas.Recommendation{a, b}), schemas.ConflictResource)
			require.Len(t, conflicts, 1)
			assert.Equal(t, tc.severity, conflicts[0].Severity)
		})
	}
}

func TestDetectExclusiveActions(t *testing.T) {
	d := NewDetector(zap.NewNop())

	// Scenario B of the coordination contract: contradictory actions on
	// disjoint resources still conflict, and always at high severity.
	a := rec("rec-a", "scale_up", schemas.RiskLow, "i-1")
	b := rec("rec-b", "scale_down", schemas.RiskLow, "i-2")

	conflicts := d.Detect([]*schemas.Recommendation{a, b})
	require.Len(t, conflicts, 1)
	assert.Equal(t, schemas.ConflictAction, conflicts[0].Type)
	assert.Equal(t, schemas.ConflictSeverityHigh, conflicts[0].Severity)
	assert.Equal(t, "action", conflicts[0].Field)

	// The table is symmetric: reversed order detects the same pair.
	reversed := d.Detect([]*schemas.Recommendation{b, a})
	require.Len(t, reversed, 1)
	assert.Equal(t, schemas.ConflictAction, reversed[0].Type)
}

func TestDetectCircularDependency(t *testing.T) {
	d := NewDetector(zap.NewNop())

	a := rec("rec-a", "enable_caching", schemas.RiskLow, "cache-1")
	b := rec("rec-b", "scale_up", schemas.RiskLow, "asg-1")
	a.DependsOn = []string{"rec-b"}
	b.DependsOn = []string{"rec-a"}

	conflicts := d.Detect([]*schemas.Recommendation{a, b})
	require.Len(t, conflicts, 1)
	assert.Equal(t, schemas.ConflictDependency, conflicts[0].Type)
	assert.Equal(t, schemas.ConflictSeverityHigh, conflicts[0].Severity)

	// A one-way dependency is fine.
	b.DependsOn = nil
	assert.Empty(t, d.Detect([]*schemas.Recommendation{a, b}))
}

func TestDetectMultipleConflictKindsForOnePair(t *testing.T) {
	d := NewDetector(zap.NewNop())

	// Same resource AND exclusive actions: both checks fire independently.
	a := rec("rec-a", "scale_up", schemas.RiskHigh, "i-1")
	b := rec("rec-b", "scale_down", schemas.RiskHigh, "i-1")

	conflicts := d.Detect([]*schemas.Recommendation{a, b})
	require.Len(t, conflicts, 2)
	assert.Len(t, conflictsOfType(conflicts, schemas.ConflictResource), 1)
	assert.Len(t, conflictsOfType(conflicts, schemas.ConflictAction), 1)
}

func TestDetectNoConflicts(t *testing.T) {
	d := NewDetector(zap.NewNop())

	a := rec("rec-a", "migrate_to_spot", schemas.RiskMedium, "i-1")
	b := rec("rec-b", "enable_caching", schemas.RiskMedium, "cache-1")

	assert.Empty(t, d.Detect([]*schemas.Recommendation{a, b}))
	assert.Empty(t, d.Detect(nil))
	assert.Empty(t, d.Detect([]*schemas.Recommendation{a}))
}
