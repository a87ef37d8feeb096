package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyArg accepts any value (used for generated IDs, timestamps, and payloads).
var anyArg = ArgumentMatcherFunc(func(v interface{}) bool {
	return true
})

const sqlInsertRun = `
        INSERT INTO coordination_runs (id, customer_id, started_at, finished_at, total_recommendations, kept_recommendations, invalid, auto_approved)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `

var auditColumns = []string{"id", "customer_id", "event_type", "entity_id", "payload", "recorded_at"}

func newMockedStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return mockPool, s
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestAuditSinkEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert one row per recorded event", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		approval := &schemas.Approval{
			ID:               "apr-1",
			RecommendationID: "rec-1",
			CustomerID:       "cust-1",
			Risk:             schemas.RiskHigh,
			Status:           schemas.ApprovalApproved,
		}

		mockPool.ExpectExec(flexibleSQLMatcher(insertEventSQL)).
			WithArgs(anyArg, "cust-1", EventApprovalDecided, "apr-1", anyArg, anyArg).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		s.RecordApprovalDecision(ctx, approval)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("conflict events carry an empty customer id", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		mockPool.ExpectExec(flexibleSQLMatcher(insertEventSQL)).
			WithArgs(anyArg, "", EventConflictResolved, "conf-1", anyArg, anyArg).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		s.RecordConflictResolved(ctx, &schemas.Conflict{
			ID:                "conf-1",
			Type:              schemas.ConflictResource,
			RecommendationIDs: []string{"rec-a", "rec-b"},
		})
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should swallow insert failures and log them", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		mockPool.ExpectPing().WillReturnError(nil)
		s, err := New(context.Background(), mockPool, zap.New(observedZapCore))
		require.NoError(t, err)

		mockPool.ExpectExec(flexibleSQLMatcher(insertEventSQL)).
			WithArgs(anyArg, "cust-1", EventPlanFinished, "plan-1", anyArg, anyArg).
			WillReturnError(errors.New("connection reset"))

		// The sink contract is best-effort: no panic, no error propagation.
		s.RecordPlanFinished(ctx, &schemas.ExecutionPlan{
			ID:         "plan-1",
			CustomerID: "cust-1",
			Status:     schemas.PlanCompleted,
		})

		assert.NoError(t, mockPool.ExpectationsWereMet())
		require.Len(t, observedLogs.All(), 1)
		assert.Equal(t, "Failed to insert audit event", observedLogs.All()[0].Message)
	})
}

func TestPersistCoordinationResult(t *testing.T) {
	ctx := context.Background()

	result := &schemas.CoordinationResult{
		CustomerID:           "cust-1",
		StartedAt:            time.Now().UTC(),
		FinishedAt:           time.Now().UTC(),
		TotalRecommendations: 3,
		KeptRecommendations:  2,
		AutoApproved:         1,
		Conflicts: []*schemas.Conflict{
			{ID: "conf-1", Type: schemas.ConflictAction, RecommendationIDs: []string{"rec-a", "rec-b"}},
		},
		Approvals: []*schemas.Approval{
			{ID: "apr-1", CustomerID: "cust-1", Risk: schemas.RiskMedium, Status: schemas.ApprovalPending},
		},
		Plans: []*schemas.ExecutionPlan{
			{ID: "plan-1", CustomerID: "cust-1", Status: schemas.PlanCompleted},
		},
	}

	t.Run("should persist summary and events in one transaction", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArg, "cust-1", anyArg, anyArg, 3, 2, 0, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"audit_events"}, auditColumns).
			WillReturnResult(3)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.PersistCoordinationResult(ctx, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should skip the copy when the run produced no events", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		empty := &schemas.CoordinationResult{CustomerID: "cust-2", TotalRecommendations: 1, KeptRecommendations: 1}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArg, "cust-2", anyArg, anyArg, 1, 1, 0, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.PersistCoordinationResult(ctx, empty))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should handle transaction begin failure", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := s.PersistCoordinationResult(ctx, result)
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback if the event copy fails", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		copyErr := errors.New("copy from failed")
		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArg, "cust-1", anyArg, anyArg, 3, 2, 0, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"audit_events"}, auditColumns).
			WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.PersistCoordinationResult(ctx, result)
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should fail on a short copy count", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArg, "cust-1", anyArg, anyArg, 3, 2, 0, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"audit_events"}, auditColumns).
			WillReturnResult(1)
		mockPool.ExpectRollback()

		err := s.PersistCoordinationResult(ctx, result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied audit event count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestListEventsByCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("should retrieve events successfully", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		sqlList := `
        SELECT id, customer_id, event_type, entity_id, payload, recorded_at
        FROM audit_events
        WHERE customer_id = $1
        ORDER BY recorded_at ASC;
    `
		now := time.Now().UTC()
		payload := `{"id":"apr-1","status":"approved"}`

		rows := pgxmock.NewRows(auditColumns).
			AddRow("evt-1", "cust-1", EventApprovalDecided, "apr-1", []byte(payload), now)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlList)).
			WithArgs("cust-1").
			WillReturnRows(rows)

		events, err := s.ListEventsByCustomer(ctx, "cust-1")
		require.NoError(t, err)
		require.Len(t, events, 1)

		assert.Equal(t, "evt-1", events[0].ID)
		assert.Equal(t, EventApprovalDecided, events[0].EventType)
		assert.JSONEq(t, payload, string(events[0].Payload))
		assert.True(t, events[0].RecordedAt.Equal(now))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate query failures", func(t *testing.T) {
		mockPool, s := newMockedStore(t)

		queryErr := errors.New("relation does not exist")
		mockPool.ExpectQuery("SELECT").WithArgs("cust-1").WillReturnError(queryErr)

		_, err := s.ListEventsByCustomer(ctx, "cust-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, queryErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
