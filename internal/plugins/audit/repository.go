package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditRepository defines the data access contract for audit log operations.
type AuditRepository interface {
	// Log inserts a new audit entry and sets its ID.
	Log(ctx context.Context, entry *AuditEntry) error

	// List returns entries most recent first, plus the total count.
	List(ctx context.Context, limit, offset int) ([]AuditEntry, int, error)

	// ListByTarget returns the most recent entries whose target is email.
	ListByTarget(ctx context.Context, email string, limit int) ([]AuditEntry, error)
}

// auditRepository implements AuditRepository with MariaDB queries.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log inserts a new audit entry. The details map is serialized to JSON;
// nil details are stored as SQL NULL.
func (r *auditRepository) Log(ctx context.Context, entry *AuditEntry) error {
	query := `INSERT INTO audit_log (actor_email, action, target_id, target_email, details, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var targetID sql.NullInt64
	if entry.TargetID != 0 {
		targetID = sql.NullInt64{Int64: entry.TargetID, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		entry.ActorEmail, entry.Action, targetID, entry.TargetEmail,
		detailsJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit entry id: %w", err)
	}
	entry.ID = id

	return nil
}

// List returns audit entries ordered by most recent first.
func (r *auditRepository) List(ctx context.Context, limit, offset int) ([]AuditEntry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT id, actor_email, action, target_id, target_email, details, created_at
	          FROM audit_log
	          ORDER BY created_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListByTarget returns the most recent audit entries for one account.
func (r *auditRepository) ListByTarget(ctx context.Context, email string, limit int) ([]AuditEntry, error) {
	query := `SELECT id, actor_email, action, target_id, target_email, details, created_at
	          FROM audit_log
	          WHERE target_email = ?
	          ORDER BY created_at DESC, id DESC
	          LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("listing account audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// scanAuditRows scans rows from an audit_log query. Expects columns: id,
// actor_email, action, target_id, target_email, details, created_at.
func scanAuditRows(rows *sql.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var targetID sql.NullInt64
		var detailsJSON sql.NullString
		if err := rows.Scan(
			&e.ID, &e.ActorEmail, &e.Action, &targetID, &e.TargetEmail,
			&detailsJSON, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.TargetID = targetID.Int64

		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				// Non-fatal: keep the entry, flag the details.
				e.Details = map[string]any{"_parse_error": "invalid JSON"}
			}
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	return entries, nil
}
