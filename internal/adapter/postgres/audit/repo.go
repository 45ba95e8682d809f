// Package audit implements the diff audit log repository using PostgreSQL.
// It provides append-only operations: there is no update or delete path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/zengin-sync/internal/adapter/postgres"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var columns = []string{
	"id", "created_at", "user_id", "team_id", "event_type", "diff_id", "details", "correlation_id",
}

// Repo provides audit log persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new audit repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Append inserts an audit entry. ID and Timestamp must be set by the caller.
func (r *Repo) Append(ctx context.Context, e domain.AuditEntry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("diff_audit_log marshal details: %w", err)
	}

	query, args, err := postgres.Builder.
		Insert("diff_audit_log").
		Columns(columns...).
		Values(e.ID, e.Timestamp, e.UserID, e.TeamID, string(e.EventType), e.DiffID, detailsJSON, e.CorrelationID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "diff_audit_log", e.ID.String())
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// List returns entries matching every non-empty filter field, newest first.
// Limit defaults to DefaultLimit and is capped at MaxLimit.
func (r *Repo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	b := postgres.Builder.
		Select(columns...).
		From("diff_audit_log").
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(max(f.Offset, 0)))

	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.EventType != "" {
		b = b.Where(sq.Eq{"event_type": string(f.EventType)})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit list: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diff_audit_log: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("list diff_audit_log: %w", err)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func scanEntries(rows pgx.Rows) ([]domain.AuditEntry, error) {
	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e           domain.AuditEntry
			eventType   string
			detailsJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserID, &e.TeamID, &eventType, &e.DiffID, &detailsJSON, &e.CorrelationID); err != nil {
			return nil, err
		}
		e.EventType = domain.AuditEventType(eventType)

		if len(detailsJSON) > 0 {
			details := make(map[string]any)
			if err := json.Unmarshal(detailsJSON, &details); err != nil {
				return nil, fmt.Errorf("audit entry %s unmarshal details: %w", e.ID, err)
			}
			e.Details = details
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
