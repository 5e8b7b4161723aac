package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	id "rcaflow/pkg/domain"
	audit "rcaflow/pkg/platform/audit"
	txcontext "rcaflow/pkg/platform/tx"
)

// Store appends audit events to the audit_events table. It is the projection
// target of the Kafka audit consumer and the direct sink when Kafka is off.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	if event.Details == nil {
		details = []byte("{}")
	}
	_, err = txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO audit_events (id, action, company_id, user_id, subject, request_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		event.ID,
		event.Action,
		nullableID(event.CompanyID.IsNil(), event.CompanyID.String()),
		nullableID(event.ActorID.IsNil(), event.ActorID.String()),
		event.Subject,
		event.RequestID,
		details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByCompany(ctx context.Context, companyID id.CompanyID, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, `
		SELECT id, action, company_id, user_id, subject, request_id, payload, occurred_at
		FROM audit_events
		WHERE company_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, companyID.String(), limit)
}

func (s *Store) ListBySubject(ctx context.Context, companyID id.CompanyID, subject string) ([]audit.Event, error) {
	return s.query(ctx, `
		SELECT id, action, company_id, user_id, subject, request_id, payload, occurred_at
		FROM audit_events
		WHERE company_id = $1 AND subject = $2
		ORDER BY occurred_at ASC`, companyID.String(), subject)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]audit.Event, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e              audit.Event
			company, actor sql.NullString
			requestID      sql.NullString
			payload        []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &company, &actor, &e.Subject, &requestID, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if company.Valid {
			if e.CompanyID, err = id.ParseCompanyID(company.String); err != nil {
				return nil, err
			}
		}
		if actor.Valid {
			if e.ActorID, err = id.ParseUserID(actor.String); err != nil {
				return nil, err
			}
		}
		e.RequestID = requestID.String
		e.Category = audit.AuditEvent(e.Action).Category()
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullableID(isNil bool, v string) sql.NullString {
	return sql.NullString{String: v, Valid: !isNil}
}
