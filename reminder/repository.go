package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contractdesk/agreement"
)

// ErrLocked signals another sweep worker holds the agreement row.
var ErrLocked = errors.New("reminder: agreement locked by another worker")

// Repository is the sweep's persistence surface.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed reminder repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CandidateIDs lists agreements the sweep should look at: everything not
// terminated whose reminder window has opened. Draft agreements are filtered
// by Evaluate, not here, so a draft activated mid-sweep is picked up next
// round without special casing.
func (r *Repository) CandidateIDs(ctx context.Context, today time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM agreements
		WHERE status <> 'terminated' AND reminder_date <= $1
		ORDER BY expiry_date
	`, today)
	if err != nil {
		return nil, fmt.Errorf("reminder: list candidates: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("reminder: scan candidate: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminder: iterate candidates: %w", err)
	}
	return ids, nil
}

// LockAgreement claims the agreement row for this worker. ErrLocked means
// another worker already holds it and the caller should move on.
func (r *Repository) LockAgreement(ctx context.Context, tx pgx.Tx, id string) (agreement.Agreement, error) {
	var ag agreement.Agreement
	err := tx.QueryRow(ctx, `
		SELECT id, agreement_id, title, status, start_date, expiry_date, reminder_date, creator_id
		FROM agreements
		WHERE id = $1
		FOR UPDATE SKIP LOCKED
	`, id).Scan(
		&ag.ID, &ag.AgreementID, &ag.Title, &ag.Status,
		&ag.StartDate, &ag.ExpiryDate, &ag.ReminderDate, &ag.CreatorID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return agreement.Agreement{}, ErrLocked
		}
		return agreement.Agreement{}, fmt.Errorf("reminder: lock agreement: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT user_id FROM agreement_assignees WHERE agreement_id = $1
	`, ag.ID)
	if err != nil {
		return agreement.Agreement{}, fmt.Errorf("reminder: list assignees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return agreement.Agreement{}, fmt.Errorf("reminder: scan assignee: %w", err)
		}
		ag.AssignedUserIDs = append(ag.AssignedUserIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return agreement.Agreement{}, fmt.Errorf("reminder: iterate assignees: %w", err)
	}

	return ag, nil
}

// ListSent returns the reminder log for one agreement.
func (r *Repository) ListSent(ctx context.Context, tx pgx.Tx, agreementID string) ([]SentRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT kind, sent_on FROM reminder_log WHERE agreement_id = $1
	`, agreementID)
	if err != nil {
		return nil, fmt.Errorf("reminder: list sent: %w", err)
	}
	defer rows.Close()

	var records []SentRecord
	for rows.Next() {
		var rec SentRecord
		if err := rows.Scan(&rec.Kind, &rec.SentOn); err != nil {
			return nil, fmt.Errorf("reminder: scan sent: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminder: iterate sent: %w", err)
	}
	return records, nil
}

// RecordSent logs the reminder. The unique constraint on (agreement, kind,
// day) makes the log the idempotence barrier: false means another worker
// already recorded this exact reminder and no notification should go out.
func (r *Repository) RecordSent(ctx context.Context, tx pgx.Tx, agreementID string, kind Kind, sentOn time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO reminder_log (agreement_id, kind, sent_on)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, agreementID, kind, sentOn)
	if err != nil {
		return false, fmt.Errorf("reminder: record sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus persists a status correction discovered during the sweep.
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, agreementID string, status agreement.Status) error {
	if _, err := tx.Exec(ctx, `
		UPDATE agreements SET status = $2, updated_at = now() WHERE id = $1
	`, agreementID, status); err != nil {
		return fmt.Errorf("reminder: update status: %w", err)
	}
	return nil
}

// RecipientEmails resolves active users' addresses.
func (r *Repository) RecipientEmails(ctx context.Context, tx pgx.Tx, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := tx.Query(ctx, `
		SELECT email FROM users WHERE id = ANY($1) AND active ORDER BY email
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("reminder: resolve emails: %w", err)
	}
	defer rows.Close()

	emails := make([]string, 0, len(userIDs))
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("reminder: scan email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminder: iterate emails: %w", err)
	}
	return emails, nil
}
