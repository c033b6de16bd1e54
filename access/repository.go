package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrSubjectNotFound signals the user behind a subject lookup does not exist.
	ErrSubjectNotFound = errors.New("access: subject not found")
	// ErrGrantNotFound signals the referenced grant does not exist.
	ErrGrantNotFound = errors.New("access: grant not found")
	// ErrDuplicateGrant signals the (user, department, kind) tuple is already granted.
	ErrDuplicateGrant = errors.New("access: grant already exists")
)

// Repository loads subjects and persists grants.
type Repository interface {
	LoadSubject(ctx context.Context, userID string) (Subject, error)
	CreateGrant(ctx context.Context, grant Grant) (Grant, error)
	DeleteGrant(ctx context.Context, userID, departmentID string, kind Kind) error
	ListGrantsForDepartment(ctx context.Context, departmentID string) ([]Grant, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed access repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// LoadSubject assembles the full access picture for one user: home
// department, executive flag, superuser flag, and every grant held.
func (r *PGRepository) LoadSubject(ctx context.Context, userID string) (Subject, error) {
	const userSQL = `
		SELECT u.id, u.department_id, u.superuser, COALESCE(d.executive, false)
		FROM users u
		LEFT JOIN departments d ON d.id = u.department_id
		WHERE u.id = $1 AND u.active
	`

	var subject Subject
	err := r.pool.QueryRow(ctx, userSQL, userID).Scan(
		&subject.UserID,
		&subject.DepartmentID,
		&subject.Superuser,
		&subject.Executive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subject{}, ErrSubjectNotFound
		}
		return Subject{}, fmt.Errorf("access: load subject: %w", err)
	}

	const grantSQL = `
		SELECT id, user_id, department_id, kind, approved_by, granted_at
		FROM department_permissions
		WHERE user_id = $1
	`

	rows, err := r.pool.Query(ctx, grantSQL, userID)
	if err != nil {
		return Subject{}, fmt.Errorf("access: load grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.UserID, &g.DepartmentID, &g.Kind, &g.ApprovedBy, &g.GrantedAt); err != nil {
			return Subject{}, fmt.Errorf("access: scan grant: %w", err)
		}
		subject.Grants = append(subject.Grants, g)
	}
	if err := rows.Err(); err != nil {
		return Subject{}, fmt.Errorf("access: iterate grants: %w", err)
	}

	return subject, nil
}

// CreateGrant inserts a new grant. The uniqueness constraint on
// (user, department, kind) maps to ErrDuplicateGrant.
func (r *PGRepository) CreateGrant(ctx context.Context, grant Grant) (Grant, error) {
	const insertSQL = `
		INSERT INTO department_permissions (user_id, department_id, kind, approved_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, department_id, kind, approved_by, granted_at
	`

	var out Grant
	err := r.pool.QueryRow(ctx, insertSQL, grant.UserID, grant.DepartmentID, grant.Kind, grant.ApprovedBy).Scan(
		&out.ID, &out.UserID, &out.DepartmentID, &out.Kind, &out.ApprovedBy, &out.GrantedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Grant{}, ErrDuplicateGrant
		}
		return Grant{}, fmt.Errorf("access: create grant: %w", err)
	}
	return out, nil
}

// DeleteGrant removes the grant for the given tuple.
func (r *PGRepository) DeleteGrant(ctx context.Context, userID, departmentID string, kind Kind) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM department_permissions
		WHERE user_id = $1 AND department_id = $2 AND kind = $3
	`, userID, departmentID, kind)
	if err != nil {
		return fmt.Errorf("access: delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

// ListGrantsForDepartment returns every grant reaching into the department.
func (r *PGRepository) ListGrantsForDepartment(ctx context.Context, departmentID string) ([]Grant, error) {
	const query = `
		SELECT id, user_id, department_id, kind, approved_by, granted_at
		FROM department_permissions
		WHERE department_id = $1
		ORDER BY granted_at DESC
	`

	rows, err := r.pool.Query(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("access: list grants: %w", err)
	}
	defer rows.Close()

	grants := make([]Grant, 0, 8)
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.UserID, &g.DepartmentID, &g.Kind, &g.ApprovedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("access: scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("access: iterate grants: %w", err)
	}

	return grants, nil
}
