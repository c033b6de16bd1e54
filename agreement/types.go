package agreement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrTypeNotFound signals the requested agreement type does not exist.
	ErrTypeNotFound = errors.New("agreement: type not found")
	// ErrDuplicateTypeName signals the type name is already taken.
	ErrDuplicateTypeName = errors.New("agreement: type name already exists")
)

// Type is a category agreements are filed under (lease, service, NDA, ...).
type Type struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedBy   *string   `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TypesRepository manages the agreement type catalogue.
type TypesRepository struct {
	pool *pgxpool.Pool
}

// NewTypesRepository creates a PostgreSQL-backed type repository.
func NewTypesRepository(pool *pgxpool.Pool) *TypesRepository {
	return &TypesRepository{pool: pool}
}

const typeColumns = `id, name, description, active, created_by, created_at, updated_at`

// CreateType registers a new agreement type.
func (r *TypesRepository) CreateType(ctx context.Context, name, description string, createdBy string) (Type, error) {
	if name == "" {
		return Type{}, fmt.Errorf("agreement: type name is required")
	}

	query := fmt.Sprintf(`
		INSERT INTO agreement_types (name, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING %s
	`, typeColumns)

	t, err := scanType(r.pool.QueryRow(ctx, query, name, description, createdBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Type{}, ErrDuplicateTypeName
		}
		return Type{}, fmt.Errorf("agreement: create type: %w", err)
	}
	return t, nil
}

// GetType fetches one type by id.
func (r *TypesRepository) GetType(ctx context.Context, id string) (Type, error) {
	query := fmt.Sprintf(`SELECT %s FROM agreement_types WHERE id = $1`, typeColumns)

	t, err := scanType(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Type{}, ErrTypeNotFound
		}
		return Type{}, fmt.Errorf("agreement: query type: %w", err)
	}
	return t, nil
}

// ListTypes returns active types ordered by name.
func (r *TypesRepository) ListTypes(ctx context.Context) ([]Type, error) {
	query := fmt.Sprintf(`SELECT %s FROM agreement_types WHERE active ORDER BY name ASC`, typeColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("agreement: list types: %w", err)
	}
	defer rows.Close()

	types := make([]Type, 0, 16)
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, fmt.Errorf("agreement: scan type: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agreement: iterate types: %w", err)
	}
	return types, nil
}

// DeactivateType retires a type without touching agreements already filed
// under it.
func (r *TypesRepository) DeactivateType(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE agreement_types SET active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("agreement: deactivate type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTypeNotFound
	}
	return nil
}

func scanType(row pgx.Row) (Type, error) {
	var t Type
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Active, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Type{}, err
	}
	return t, nil
}
