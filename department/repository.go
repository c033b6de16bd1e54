package department

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested department does not exist.
	ErrNotFound = errors.New("department: not found")
	// ErrDuplicateName signals a department with the same name already exists.
	ErrDuplicateName = errors.New("department: name already exists")
)

// Repository provides access to departments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, name, description, executive, created_at, updated_at`

// Create inserts a new department.
func (r *Repository) Create(ctx context.Context, name, description string, executive bool) (Department, error) {
	query := fmt.Sprintf(`
		INSERT INTO departments (name, description, executive)
		VALUES ($1, $2, $3)
		RETURNING %s
	`, columns)

	dept, err := scanDepartment(r.pool.QueryRow(ctx, query, name, description, executive))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Department{}, ErrDuplicateName
		}
		return Department{}, fmt.Errorf("department: create: %w", err)
	}
	return dept, nil
}

// GetByID fetches a department by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE id = $1`, columns)

	dept, err := scanDepartment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, ErrNotFound
		}
		return Department{}, fmt.Errorf("department: query by id: %w", err)
	}
	return dept, nil
}

// List fetches all departments ordered by name.
func (r *Repository) List(ctx context.Context) ([]Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments ORDER BY name ASC`, columns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("department: list: %w", err)
	}
	defer rows.Close()

	departments := make([]Department, 0, 16)
	for rows.Next() {
		var dept Department
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.Description, &dept.Executive, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return nil, fmt.Errorf("department: scan: %w", err)
		}
		departments = append(departments, dept)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("department: iterate: %w", err)
	}

	return departments, nil
}

func scanDepartment(row pgx.Row) (Department, error) {
	var dept Department
	err := row.Scan(&dept.ID, &dept.Name, &dept.Description, &dept.Executive, &dept.CreatedAt, &dept.UpdatedAt)
	if err != nil {
		return Department{}, err
	}
	return dept, nil
}
