package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

func detectAndResolve(t *testing.T, recs []*schemas.Recommendation) ([]*schemas.Recommendation, []*schemas.Conflict) {
	t.Helper()
	conflicts := NewDetector(zap.NewNop()).Detect(recs)
	return NewResolver(zap.NewNop()).Resolve(recs, conflicts)
}

func TestResolveByPriority(t *testing.T) {
	// Scenario A: shared resource "i-123", high vs medium risk, priority 10
	// vs 5. One medium-severity resource conflict; priority decides.
	a := rec("rec-a", "migrate_to_spot", schemas.RiskHigh, "i-123")
	a.Priority = 10
	b := rec("rec-b", "rightsize_instance", schemas.RiskMedium, "i-123")
	b.Priority = 5

	kept, resolved := detectAndResolve(t, []*schemas.Recommendation{a, b})

	require.Len(t, resolved, 1)
	assert.Equal(t, schemas.ConflictResource, resolved[0].Type)
	assert.Equal(t, schemas.ConflictSeverityMedium, resolved[0].Severity)
	assert.True(t, resolved[0].Resolved)
	assert.NotNil(t, resolved[0].ResolvedAt)
	assert.Contains(t, resolved[0].Resolution, "kept rec-a")
	assert.Contains(t, resolved[0].Resolution, "priority")

	require.Len(t, kept, 1)
	assert.Equal(t, "rec-a", kept[0].ID)
	assert.Equal(t, schemas.RecommendationDiscarded, b.Status)
}

func TestResolveTieBreakChain(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(a, b *schemas.Recommendation)
		winner    string
		criterion string
	}{
		{
			"savings decides when priority ties",
			func(a, b *schemas.Recommendation) {
				a.EstimatedSavings = 10
				b.EstimatedSavings = 200
			},
			"rec-b", "estimated savings",
		},
		{
			"confidence decides when savings ties",
			func(a, b *schemas.Recommendation) {
				a.Confidence = 0.95
				b.Confidence = 0.70
			},
			"rec-a", "confidence",
		},
		{
			"lower risk decides when confidence ties",
			func(a, b *schemas.Recommendation) {
				a.Risk = schemas.RiskHigh
				b.Risk = schemas.RiskMedium
			},
			"rec-b", "risk level",
		},
		{
			"scan order is the final fallback",
			func(a, b *schemas.Recommendation) {},
			"rec-a", "scan order",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := rec("rec-a", "scale_up", schemas.RiskLow, "i-1")
			b := rec("rec-b", "scale_down", schemas.RiskLow, "i-2")
			tc.mutate(a, b)

			kept, resolved := detectAndResolve(t, []*schemas.Recommendation{a, b})

			require.Len(t, kept, 1)
			assert.Equal(t, tc.winner, kept[0].ID)
			require.Len(t, resolved, 1)
			assert.Contains(t, resolved[0].Resolution, tc.criterion)
		})
	}
}

// TestResolveKeptNeverDominated checks the resolution invariant directly: the
// kept recommendation must never be strictly dominated by the discarded one.
func TestResolveKeptNeverDominated(t *testing.T) {
	pairs := [][2]*schemas.Recommendation{}
	priorities := []int{1, 5}
	savings := []float64{10, 300}
	confidences := []float64{0.2, 0.9}
	risks := []schemas.RiskLevel{schemas.RiskLow, schemas.RiskCritical}

	for _, pa := range priorities {
		for _, sa := range savings {
			for _, ca := range confidences {
				for _, ra := range risks {
					a := rec("rec-a", "scale_up", ra, "i-1")
					a.Priority, a.EstimatedSavings, a.Confidence = pa, sa, ca
					b := rec("rec-b", "scale_down", schemas.RiskMedium, "i-1")
					b.Priority, b.EstimatedSavings, b.Confidence = 3, 100, 0.5
					pairs = append(pairs, [2]*schemas.Recommendation{a, b})
				}
			}
		}
	}

	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		kept, _ := detectAndResolve(t, []*schemas.Recommendation{a, b})
		require.Len(t, kept, 1)

		winner := kept[0]
		loser := a
		if winner == a {
			loser = b
		}

		dominated := winner.Priority < loser.Priority &&
			winner.EstimatedSavings < loser.EstimatedSavings &&
			winner.Confidence < loser.Confidence &&
			winner.Risk.Rank() > loser.Risk.Rank()
		assert.False(t, dominated, "kept %s is strictly dominated by discarded %s", winner.ID, loser.ID)
	}
}

func TestResolveDiscardedStaysDiscarded(t *testing.T) {
	// rec-b loses to rec-a on resource i-1 and beats rec-c on resource i-2.
	// Every pairwise loser is discarded, regardless of whether its opponent
	// was itself discarded by another conflict: that keeps the kept set
	// independent of the order conflicts are processed in. rec-b never
	// resurfaces, and rec-c still falls to rec-b's higher priority.
	a := rec("rec-a", "rightsize_instance", schemas.RiskLow, "i-1")
	a.Priority = 10
	b := rec("rec-b", "scale_down", schemas.RiskLow, "i-1", "i-2")
	b.Priority = 5
	c := rec("rec-c", "enable_caching", schemas.RiskLow, "i-2")
	c.Priority = 1

	kept, resolved := detectAndResolve(t, []*schemas.Recommendation{a, b, c})

	require.Len(t, kept, 1)
	assert.Equal(t, "rec-a", kept[0].ID)
	assert.Equal(t, schemas.RecommendationDiscarded, b.Status)
	assert.Equal(t, schemas.RecommendationDiscarded, c.Status)

	require.Len(t, resolved, 2)
	for _, r := range resolved {
		assert.True(t, r.Resolved)
	}
}

func TestResolveOrderPreserved(t *testing.T) {
	a := rec("rec-a", "enable_caching", schemas.RiskLow, "c-1")
	b := rec("rec-b", "scale_up", schemas.RiskLow, "i-1")
	c := rec("rec-c", "migrate_to_spot", schemas.RiskLow, "i-2")

	kept, resolved := detectAndResolve(t, []*schemas.Recommendation{a, b, c})

	assert.Empty(t, resolved)
	require.Len(t, kept, 3)
	assert.Equal(t, "rec-a", kept[0].ID)
	assert.Equal(t, "rec-b", kept[1].ID)
	assert.Equal(t, "rec-c", kept[2].ID)
}

func TestResolveUnknownRecommendationSkipped(t *testing.T) {
	a := rec("rec-a", "scale_up", schemas.RiskLow, "i-1")
	stray := &schemas.Conflict{
		ID:                "conf-stray",
		Type:              schemas.ConflictResource,
		RecommendationIDs: []string{"rec-a", "rec-ghost"},
	}

	kept, resolved := NewResolver(zap.NewNop()).Resolve(
		[]*schemas.Recommendation{a}, []*schemas.Conflict{stray})

	require.Len(t, kept, 1)
	require.Len(t, resolved, 1)
	assert.False(t, resolved[0].Resolved)
}
