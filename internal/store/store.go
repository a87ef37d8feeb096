// File: internal/store/store.go
// Description: PostgreSQL-backed audit trail. The store implements
// schemas.AuditSink so it can be fanned out alongside the log sink, and it
// persists whole coordination runs for offline reporting.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event type discriminators for rows in audit_events.
const (
	EventConflictResolved = "conflict_resolved"
	EventApprovalDecided  = "approval_decided"
	EventPlanFinished     = "plan_finished"
)

// AuditEvent is one immutable row of the audit trail.
type AuditEvent struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	EventType  string    `json:"event_type"`
	EntityID   string    `json:"entity_id"`
	Payload    []byte    `json:"payload"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of the audit trail.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

const insertEventSQL = `
        INSERT INTO audit_events (id, customer_id, event_type, entity_id, payload, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6);
    `

// insertEvent writes one audit row. Audit persistence is best-effort: a
// failed insert is logged and swallowed so it never feeds back into engine
// control flow.
func (s *Store) insertEvent(ctx context.Context, customerID, eventType, entityID string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("Failed to marshal audit payload",
			zap.String("event_type", eventType),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return
	}

	if _, err := s.pool.Exec(ctx, insertEventSQL,
		uuid.NewString(), customerID, eventType, entityID, body, s.now()); err != nil {
		s.log.Error("Failed to insert audit event",
			zap.String("event_type", eventType),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

// RecordConflictResolved implements schemas.AuditSink. Conflicts are detected
// before customer scoping, so the customer column is left empty.
func (s *Store) RecordConflictResolved(ctx context.Context, c *schemas.Conflict) {
	s.insertEvent(ctx, "", EventConflictResolved, c.ID, c)
}

// RecordApprovalDecision implements schemas.AuditSink.
func (s *Store) RecordApprovalDecision(ctx context.Context, a *schemas.Approval) {
	s.insertEvent(ctx, a.CustomerID, EventApprovalDecided, a.ID, a)
}

// RecordPlanFinished implements schemas.AuditSink.
func (s *Store) RecordPlanFinished(ctx context.Context, p *schemas.ExecutionPlan) {
	s.insertEvent(ctx, p.CustomerID, EventPlanFinished, p.ID, p)
}

// PersistCoordinationResult stores one whole coordination run in a single
// transaction: the summary row plus an audit row per conflict, approval, and
// plan the run produced.
func (s *Store) PersistCoordinationResult(ctx context.Context, result *schemas.CoordinationResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback on an already committed transaction reports ErrTxClosed;
		// that is the normal success path, not an error worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	runID := uuid.NewString()
	if _, err := tx.Exec(ctx, `
        INSERT INTO coordination_runs (id, customer_id, started_at, finished_at, total_recommendations, kept_recommendations, invalid, auto_approved)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `,
		runID, result.CustomerID, result.StartedAt.UTC(), result.FinishedAt.UTC(),
		result.TotalRecommendations, result.KeptRecommendations, result.Invalid,
		result.AutoApproved); err != nil {
		return fmt.Errorf("failed to insert coordination run: %w", err)
	}

	if err := s.persistRunEvents(ctx, tx, result); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistRunEvents(ctx context.Context, tx pgx.Tx, result *schemas.CoordinationResult) error {
	type runEvent struct {
		customerID string
		eventType  string
		entityID   string
		payload    any
	}

	var events []runEvent
	for _, c := range result.Conflicts {
		events = append(events, runEvent{"", EventConflictResolved, c.ID, c})
	}
	for _, a := range result.Approvals {
		events = append(events, runEvent{a.CustomerID, EventApprovalDecided, a.ID, a})
	}
	for _, p := range result.Plans {
		events = append(events, runEvent{p.CustomerID, EventPlanFinished, p.ID, p})
	}
	if len(events) == 0 {
		return nil
	}

	now := s.now()
	rows := make([][]interface{}, len(events))
	for i, e := range events {
		body, err := json.Marshal(e.payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload for %s: %w", e.eventType, e.entityID, err)
		}
		rows[i] = []interface{}{uuid.NewString(), e.customerID, e.eventType, e.entityID, body, now}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"audit_events"},
		[]string{"id", "customer_id", "event_type", "entity_id", "payload", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy audit events: %w", err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch in copied audit event count: expected %d, got %d", len(rows), copyCount)
	}

	return nil
}

// ListEventsByCustomer returns the audit trail for one customer, oldest first.
func (s *Store) ListEventsByCustomer(ctx context.Context, customerID string) ([]AuditEvent, error) {
	query := `
        SELECT id, customer_id, event_type, entity_id, payload, recorded_at
        FROM audit_events
        WHERE customer_id = $1
        ORDER BY recorded_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.EventType, &e.EntityID, &e.Payload, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return events, nil
}
