package agreement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"contractdesk/access"
)

var (
	// ErrNotFound is returned when no agreement row exists for the identifier.
	ErrNotFound = errors.New("agreement: not found")
	// ErrDuplicateIdentifier signals the unique agreement_id constraint fired.
	ErrDuplicateIdentifier = errors.New("agreement: duplicate identifier")
)

// Repository handles agreement persistence. Methods that take a pgx.Tx are
// meant to compose inside a caller-owned transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed agreement repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const agreementColumns = `
	a.id, a.agreement_id, a.reference, a.type_id, a.title, a.remarks, a.status,
	a.start_date, a.expiry_date, a.reminder_date, a.department_id, a.vendor_id,
	a.creator_id, a.original_filename, a.attachment_key, a.created_at, a.updated_at`

// Insert writes the agreement and its assignee set inside the transaction.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, ag Agreement) (Agreement, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO agreements (
			agreement_id, reference, type_id, title, remarks, status,
			start_date, expiry_date, reminder_date, department_id, vendor_id, creator_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s
	`, columnsWithoutAlias())

	row := tx.QueryRow(ctx, insertSQL,
		ag.AgreementID, ag.Reference, ag.TypeID, ag.Title, ag.Remarks, ag.Status,
		ag.StartDate, ag.ExpiryDate, ag.ReminderDate, ag.DepartmentID, ag.VendorID, ag.CreatorID,
	)
	out, err := scanAgreement(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Agreement{}, ErrDuplicateIdentifier
		}
		return Agreement{}, fmt.Errorf("agreement: insert: %w", err)
	}

	for _, userID := range ag.AssignedUserIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO agreement_assignees (agreement_id, user_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, out.ID, userID); err != nil {
			return Agreement{}, fmt.Errorf("agreement: insert assignee: %w", err)
		}
	}
	out.AssignedUserIDs = append([]string(nil), ag.AssignedUserIDs...)

	return out, nil
}

// Update persists the mutable fields inside the transaction.
func (r *Repository) Update(ctx context.Context, tx pgx.Tx, ag Agreement) (Agreement, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE agreements
		SET reference = $2, type_id = $3, title = $4, remarks = $5, status = $6,
		    start_date = $7, expiry_date = $8, reminder_date = $9, vendor_id = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, columnsWithoutAlias())

	row := tx.QueryRow(ctx, updateSQL,
		ag.ID, ag.Reference, ag.TypeID, ag.Title, ag.Remarks, ag.Status,
		ag.StartDate, ag.ExpiryDate, ag.ReminderDate, ag.VendorID,
	)
	out, err := scanAgreement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: update: %w", err)
	}

	out.AssignedUserIDs, err = r.assigneesTx(ctx, tx, out.ID)
	if err != nil {
		return Agreement{}, err
	}
	return out, nil
}

// GetByID loads an agreement with its assignee set. The stored status is
// re-derived against today before being returned; a stale value is corrected
// in place so the displayed status never contradicts the expiry date.
func (r *Repository) GetByID(ctx context.Context, id string, today time.Time) (Agreement, error) {
	query := fmt.Sprintf(`SELECT %s FROM agreements a WHERE a.id = $1`, agreementColumns)

	ag, err := scanAgreement(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: query by id: %w", err)
	}

	ag.AssignedUserIDs, err = r.assignees(ctx, ag.ID)
	if err != nil {
		return Agreement{}, err
	}

	if derived := DeriveStatus(ag.Status, ag.ExpiryDate, today); derived != ag.Status {
		if err := r.persistStatus(ctx, ag.ID, ag.Status, derived); err != nil {
			return Agreement{}, err
		}
		ag.Status = derived
	}

	return ag, nil
}

// ListVisible returns the agreements the subject may see, newest first.
// Executives see everything; everyone else is limited to their own
// department plus departments they hold any grant in. Statuses are derived
// on materialization; persisting corrections is left to the reminder sweep.
func (r *Repository) ListVisible(ctx context.Context, subject access.Subject, today time.Time) ([]Agreement, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if subject.Executive {
		query := fmt.Sprintf(`SELECT %s FROM agreements a ORDER BY a.created_at DESC`, agreementColumns)
		rows, err = r.pool.Query(ctx, query)
	} else {
		depts := access.ViewableDepartments(subject)
		if len(depts) == 0 {
			return []Agreement{}, nil
		}
		query := fmt.Sprintf(`
			SELECT %s FROM agreements a
			WHERE a.department_id = ANY($1)
			ORDER BY a.created_at DESC
		`, agreementColumns)
		rows, err = r.pool.Query(ctx, query, depts)
	}
	if err != nil {
		return nil, fmt.Errorf("agreement: list visible: %w", err)
	}
	defer rows.Close()

	agreements := make([]Agreement, 0, 32)
	for rows.Next() {
		ag, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("agreement: scan: %w", err)
		}
		ag.Status = DeriveStatus(ag.Status, ag.ExpiryDate, today)
		agreements = append(agreements, ag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agreement: iterate: %w", err)
	}

	for i := range agreements {
		assigned, err := r.assignees(ctx, agreements[i].ID)
		if err != nil {
			return nil, err
		}
		agreements[i].AssignedUserIDs = assigned
	}

	return agreements, nil
}

// SetAssignee adds or removes one user from the assignee set.
func (r *Repository) SetAssignee(ctx context.Context, tx pgx.Tx, agreementID, userID string, allow bool) error {
	if allow {
		_, err := tx.Exec(ctx, `
			INSERT INTO agreement_assignees (agreement_id, user_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, agreementID, userID)
		if err != nil {
			return fmt.Errorf("agreement: add assignee: %w", err)
		}
		return nil
	}

	_, err := tx.Exec(ctx, `
		DELETE FROM agreement_assignees WHERE agreement_id = $1 AND user_id = $2
	`, agreementID, userID)
	if err != nil {
		return fmt.Errorf("agreement: remove assignee: %w", err)
	}
	return nil
}

// Delete removes the agreement. The attachment key is returned so the caller
// can drop the blob as a side effect.
func (r *Repository) Delete(ctx context.Context, id string) (attachmentKey *string, err error) {
	err = r.pool.QueryRow(ctx, `
		DELETE FROM agreements WHERE id = $1 RETURNING attachment_key
	`, id).Scan(&attachmentKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("agreement: delete: %w", err)
	}
	return attachmentKey, nil
}

// UserEmails resolves active users' email addresses for notification fan-out.
func (r *Repository) UserEmails(ctx context.Context, tx pgx.Tx, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := tx.Query(ctx, `
		SELECT email FROM users WHERE id = ANY($1) AND active ORDER BY email
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("agreement: resolve emails: %w", err)
	}
	defer rows.Close()

	emails := make([]string, 0, len(userIDs))
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("agreement: scan email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agreement: iterate emails: %w", err)
	}

	return emails, nil
}

// AppendTimeline records an immutable business event for the agreement
// inside the caller's transaction.
func (r *Repository) AppendTimeline(ctx context.Context, tx pgx.Tx, agreementID, eventType string, actorID *string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("agreement: marshal timeline payload: %w", err)
	}

	var actor any
	if actorID != nil && *actorID != "" {
		actor = *actorID
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO timeline_events (agreement_id, type, payload, actor_id)
		VALUES ($1, $2, $3::jsonb, $4)
	`, agreementID, eventType, body, actor); err != nil {
		return fmt.Errorf("agreement: insert timeline event: %w", err)
	}
	return nil
}

// Stats aggregates dashboard counts over the agreements the subject can see.
// Statuses are counted as stored; the sweep keeps them close to derived truth
// and ExpiringSoon is computed from dates, not status.
func (r *Repository) Stats(ctx context.Context, subject access.Subject, today time.Time, soonWindowDays int) (Stats, error) {
	horizon := today.AddDate(0, 0, soonWindowDays)

	query := `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'ongoing'),
			count(*) FILTER (WHERE status = 'expired'),
			count(*) FILTER (WHERE status = 'terminated'),
			count(*) FILTER (WHERE status = 'draft'),
			count(*) FILTER (WHERE status NOT IN ('terminated') AND expiry_date >= $1 AND expiry_date <= $2)
		FROM agreements`

	var (
		row   pgx.Row
		stats Stats
	)
	if subject.Executive {
		row = r.pool.QueryRow(ctx, query, today, horizon)
	} else {
		depts := access.ViewableDepartments(subject)
		if len(depts) == 0 {
			return Stats{}, nil
		}
		row = r.pool.QueryRow(ctx, query+` WHERE department_id = ANY($3)`, today, horizon, depts)
	}

	if err := row.Scan(&stats.Total, &stats.Ongoing, &stats.Expired, &stats.Terminated, &stats.Draft, &stats.ExpiringSoon); err != nil {
		return Stats{}, fmt.Errorf("agreement: stats: %w", err)
	}

	byDept, err := r.departmentDistribution(ctx, subject)
	if err != nil {
		return Stats{}, err
	}
	stats.ByDepartment = byDept

	return stats, nil
}

// departmentDistribution counts agreements per owning department within the
// subject's scope. Executive departments never own agreements and are
// excluded outright.
func (r *Repository) departmentDistribution(ctx context.Context, subject access.Subject) ([]DepartmentCount, error) {
	query := `
		SELECT d.id, d.name, count(a.id)
		FROM agreements a
		JOIN departments d ON d.id = a.department_id
		WHERE NOT d.executive`

	var (
		rows pgx.Rows
		err  error
	)
	if subject.Executive {
		rows, err = r.pool.Query(ctx, query+` GROUP BY d.id, d.name ORDER BY count(a.id) DESC, d.name`)
	} else {
		rows, err = r.pool.Query(ctx,
			query+` AND a.department_id = ANY($1) GROUP BY d.id, d.name ORDER BY count(a.id) DESC, d.name`,
			access.ViewableDepartments(subject))
	}
	if err != nil {
		return nil, fmt.Errorf("agreement: department distribution: %w", err)
	}
	defer rows.Close()

	counts := make([]DepartmentCount, 0, 8)
	for rows.Next() {
		var dc DepartmentCount
		if err := rows.Scan(&dc.DepartmentID, &dc.Name, &dc.Count); err != nil {
			return nil, fmt.Errorf("agreement: scan distribution: %w", err)
		}
		counts = append(counts, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agreement: iterate distribution: %w", err)
	}
	return counts, nil
}

// persistStatus corrects a stale stored status. The guard on the old value
// keeps concurrent corrections idempotent.
func (r *Repository) persistStatus(ctx context.Context, id string, from, to Status) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE agreements SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("agreement: persist status: %w", err)
	}
	return nil
}

func (r *Repository) assignees(ctx context.Context, agreementID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM agreement_assignees WHERE agreement_id = $1 ORDER BY added_at
	`, agreementID)
	if err != nil {
		return nil, fmt.Errorf("agreement: list assignees: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *Repository) assigneesTx(ctx context.Context, tx pgx.Tx, agreementID string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id FROM agreement_assignees WHERE agreement_id = $1 ORDER BY added_at
	`, agreementID)
	if err != nil {
		return nil, fmt.Errorf("agreement: list assignees: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("agreement: scan assignee: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agreement: iterate assignees: %w", err)
	}
	return ids, nil
}

func scanAgreement(row pgx.Row) (Agreement, error) {
	var ag Agreement
	err := row.Scan(
		&ag.ID, &ag.AgreementID, &ag.Reference, &ag.TypeID, &ag.Title, &ag.Remarks, &ag.Status,
		&ag.StartDate, &ag.ExpiryDate, &ag.ReminderDate, &ag.DepartmentID, &ag.VendorID,
		&ag.CreatorID, &ag.OriginalFilename, &ag.AttachmentKey, &ag.CreatedAt, &ag.UpdatedAt,
	)
	if err != nil {
		return Agreement{}, err
	}
	return ag, nil
}

func columnsWithoutAlias() string {
	return `id, agreement_id, reference, type_id, title, remarks, status,
		start_date, expiry_date, reminder_date, department_id, vendor_id,
		creator_id, original_filename, attachment_key, created_at, updated_at`
}
