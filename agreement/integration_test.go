package agreement

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// TestAllocator_Integration connects to a real PostgreSQL via DATABASE_URL
// and verifies that concurrent allocation under the per-year advisory lock
// yields gapless, unique identifiers.
func TestAllocator_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "agreements") {
		t.Skip("database schema missing; apply migrations/001_init.sql first")
	}

	deptID, vendorID, userID := seedDirectory(ctx, t, pool)

	repo := NewRepository(pool)
	alloc := NewAllocator(nil)
	year := 2099 // out-of-band year so reruns against the same database stay clean

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(),
			`DELETE FROM agreements WHERE agreement_id LIKE $1`, fmt.Sprintf("A_%d_%%", year))
	})

	const n = 24
	ids := make(chan string, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			tx, err := pool.Begin(gctx)
			if err != nil {
				return err
			}
			defer tx.Rollback(gctx)

			id, err := alloc.Allocate(gctx, tx, year)
			if err != nil {
				return err
			}

			if _, err := repo.Insert(gctx, tx, Agreement{
				AgreementID:  id,
				Title:        "Concurrency probe",
				Status:       StatusOngoing,
				StartDate:    time.Now().AddDate(0, 0, -1),
				ExpiryDate:   time.Now().AddDate(1, 0, 0),
				ReminderDate: time.Now().AddDate(0, 6, 0),
				DepartmentID: &deptID,
				VendorID:     vendorID,
				CreatorID:    &userID,
			}); err != nil {
				return err
			}

			if err := tx.Commit(gctx); err != nil {
				return err
			}
			ids <- id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent allocation: %v", err)
	}
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate identifier allocated: %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d identifiers, got %d", n, len(seen))
	}

	// The sequence must be gapless 0001..n for a fresh year.
	for i := 1; i <= n; i++ {
		want := fmt.Sprintf("A_%d_%04d", year, i)
		if !seen[want] {
			t.Fatalf("missing identifier %s in %v", want, seen)
		}
	}
}

// TestRepository_LazyStatusCorrection verifies that reading an agreement whose
// stored status went stale corrects it in place.
func TestRepository_LazyStatusCorrection(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "agreements") {
		t.Skip("database schema missing; apply migrations/001_init.sql first")
	}

	deptID, vendorID, userID := seedDirectory(ctx, t, pool)
	repo := NewRepository(pool)

	// Insert with an already-passed expiry but a stored status of ongoing.
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	inserted, err := repo.Insert(ctx, tx, Agreement{
		AgreementID:  fmt.Sprintf("A_2098_%04d", time.Now().UnixNano()%10000),
		Title:        "Stale status probe",
		Status:       StatusOngoing,
		StartDate:    time.Now().AddDate(-1, 0, 0),
		ExpiryDate:   time.Now().AddDate(0, 0, -10),
		ReminderDate: time.Now().AddDate(0, -7, 0),
		DepartmentID: &deptID,
		VendorID:     vendorID,
		CreatorID:    &userID,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM agreements WHERE id = $1`, inserted.ID)
	})

	got, err := repo.GetByID(ctx, inserted.ID, time.Now())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("expected expired after lazy correction, got %s", got.Status)
	}

	var stored string
	if err := pool.QueryRow(ctx, `SELECT status FROM agreements WHERE id = $1`, inserted.ID).Scan(&stored); err != nil {
		t.Fatalf("read stored status: %v", err)
	}
	if stored != string(StatusExpired) {
		t.Fatalf("correction not persisted, stored status %s", stored)
	}
}

func seedDirectory(ctx context.Context, t *testing.T, pool *pgxpool.Pool) (deptID, vendorID, userID string) {
	t.Helper()
	nonce := time.Now().UnixNano()

	if err := pool.QueryRow(ctx, `
		INSERT INTO departments (name) VALUES ($1) RETURNING id
	`, fmt.Sprintf("Legal %d", nonce)).Scan(&deptID); err != nil {
		t.Fatalf("seed department: %v", err)
	}
	if err := pool.QueryRow(ctx, `
		INSERT INTO vendors (name, email) VALUES ($1, $2) RETURNING id
	`, "Acme Facilities", fmt.Sprintf("acme+%d@example.com", nonce)).Scan(&vendorID); err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	if err := pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash, department_id)
		VALUES ($1, $2, 'x', $3) RETURNING id
	`, fmt.Sprintf("clerk+%d@example.com", nonce), "Clerk", deptID).Scan(&userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM vendors WHERE id = $1`, vendorID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM departments WHERE id = $1`, deptID)
	})
	return deptID, vendorID, userID
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables WHERE table_name = $1
	)`, name).Scan(&exists); err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
