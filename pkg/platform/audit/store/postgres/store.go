package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	audit "healthbff/pkg/platform/audit"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements audit.Store on an audit_events table.
type Store struct {
	db dbExecutor
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Migrate creates the audit table and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	content, err := migrationsFS.ReadFile("migrations/1_audit_events.sql")
	if err != nil {
		return fmt.Errorf("read audit migration: %w", err)
	}
	if _, err := s.db.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("apply audit migration: %w", err)
	}
	return nil
}

// Append inserts one event under a fresh id.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	return s.AppendWithID(ctx, uuid.New(), event)
}

// AppendWithID is idempotent on the event id.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	event = audit.Normalize(event, time.Now())
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action, subject_id, session_id, auth_type,
			target_id, partner_id, decision, reason, ip, device, request_id,
			actor_id, severity
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.Action,
		event.SubjectID,
		event.SessionID,
		event.AuthType,
		event.TargetID,
		event.PartnerID,
		event.Decision,
		event.Reason,
		event.IP,
		event.Device,
		event.RequestID,
		event.ActorID,
		string(event.Severity),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT category, timestamp, action, subject_id, session_id, auth_type,
	       target_id, partner_id, decision, reason, ip, device, request_id,
	       actor_id, severity
	FROM audit_events`

// ListBySubject returns a subject's events, newest first.
func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]audit.Event, error) {
	rows, err := s.db.Query(ctx, selectColumns+` WHERE subject_id = $1 ORDER BY timestamp DESC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.Query(ctx, selectColumns+` ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]audit.Event, error) {
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var (
			e        audit.Event
			category string
			severity string
		)
		err := row.Scan(&category, &e.Timestamp, &e.Action, &e.SubjectID, &e.SessionID,
			&e.AuthType, &e.TargetID, &e.PartnerID, &e.Decision, &e.Reason, &e.IP,
			&e.Device, &e.RequestID, &e.ActorID, &severity)
		e.Category = audit.EventCategory(category)
		e.Severity = audit.Severity(severity)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit events: %w", err)
	}
	return events, nil
}
