package vendors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested vendor does not exist.
	ErrNotFound = errors.New("vendors: not found")
	// ErrDuplicateEmail signals a vendor with the same email already exists.
	ErrDuplicateEmail = errors.New("vendors: email already exists")
)

// Repository provides access to the vendor directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, name, address, email, phone, contact_name, contact_designation, created_at, updated_at`

// Create registers a new vendor.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Vendor, error) {
	if params.Name == "" || params.Email == "" {
		return Vendor{}, fmt.Errorf("vendors: name and email are required")
	}

	query := fmt.Sprintf(`
		INSERT INTO vendors (name, address, email, phone, contact_name, contact_designation)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, columns)

	vendor, err := scanVendor(r.pool.QueryRow(ctx, query,
		params.Name, params.Address, params.Email, params.Phone,
		params.ContactName, params.ContactDesignation,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Vendor{}, ErrDuplicateEmail
		}
		return Vendor{}, fmt.Errorf("vendors: create: %w", err)
	}
	return vendor, nil
}

// GetByID fetches a vendor by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Vendor, error) {
	query := fmt.Sprintf(`SELECT %s FROM vendors WHERE id = $1`, columns)

	vendor, err := scanVendor(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrNotFound
		}
		return Vendor{}, fmt.Errorf("vendors: query by id: %w", err)
	}
	return vendor, nil
}

// List fetches all vendors ordered by name.
func (r *Repository) List(ctx context.Context) ([]Vendor, error) {
	query := fmt.Sprintf(`SELECT %s FROM vendors ORDER BY name ASC`, columns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vendors: list: %w", err)
	}
	defer rows.Close()

	out := make([]Vendor, 0, 32)
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Address, &v.Email, &v.Phone, &v.ContactName, &v.ContactDesignation, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("vendors: scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vendors: iterate: %w", err)
	}

	return out, nil
}

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.Address, &v.Email, &v.Phone, &v.ContactName, &v.ContactDesignation, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Vendor{}, err
	}
	return v, nil
}
