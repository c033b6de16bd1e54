package agreement

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"contractdesk/logging"
)

// allocatorLockClass namespaces the per-year advisory locks so they cannot
// collide with other advisory-lock users on the same database.
const allocatorLockClass = 0x41475245 // "AGRE"

// identifierPattern matches well-formed identifiers; malformed legacy rows
// are excluded from the max-sequence scan and handled by the fallback path.
const identifierPattern = `^A_\d{4}_\d{4}$`

// Allocator mints year-scoped, human-readable agreement identifiers of the
// form A_<year>_<4-digit-seq>. Allocation for the same year is serialized by
// a transaction-scoped advisory lock; different years never block each other.
type Allocator struct {
	logger *zap.SugaredLogger
}

// NewAllocator builds an Allocator. A nil logger falls back to a no-op one.
func NewAllocator(logger *zap.SugaredLogger) *Allocator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Allocator{logger: logger}
}

// Allocate returns the next free identifier for the year. It must run inside
// the caller's transaction: the advisory lock is released at commit or
// rollback, which makes the scan-then-insert sequence serializable per year.
// Collisions with malformed legacy identifiers degrade to a random suffix
// instead of failing the surrounding creation.
func (a *Allocator) Allocate(ctx context.Context, tx pgx.Tx, year int) (string, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, allocatorLockClass, year); err != nil {
		return "", fmt.Errorf("agreement: acquire year lock: %w", err)
	}

	prefix := fmt.Sprintf("A_%d_", year)

	var maxID *string
	err := tx.QueryRow(ctx, `
		SELECT max(agreement_id)
		FROM agreements
		WHERE agreement_id LIKE $1 || '%' AND agreement_id ~ $2
	`, prefix, identifierPattern).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("agreement: scan max identifier: %w", err)
	}

	next := 1
	if maxID != nil {
		parts := strings.Split(*maxID, "_")
		seq, perr := strconv.Atoi(parts[len(parts)-1])
		if perr != nil {
			a.logger.Errorw("parse agreement identifier", "identifier", *maxID, "error", perr)
			return a.fallback(ctx, tx, year)
		}
		next = seq + 1
	}

	candidate := fmt.Sprintf("%s%04d", prefix, next)

	exists, err := identifierExists(ctx, tx, candidate)
	if err != nil {
		return "", err
	}
	if exists {
		// A legacy or hand-entered row already holds the computed value.
		a.logger.Warnw("agreement identifier collision", "identifier", candidate)
		return a.fallback(ctx, tx, year)
	}

	return candidate, nil
}

// fallback derives a guaranteed-unique identifier from a random token. It is
// the degraded path: allocation must not abort agreement creation.
func (a *Allocator) fallback(ctx context.Context, tx pgx.Tx, year int) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id := uuid.New()
		suffix := hex.EncodeToString(id[:])[:4]
		candidate := fmt.Sprintf("A_%d_%s", year, suffix)

		exists, err := identifierExists(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			a.logger.Warnw("allocated fallback agreement identifier", "identifier", candidate)
			return candidate, nil
		}
	}
	return "", fmt.Errorf("agreement: exhausted fallback identifier attempts for year %d", year)
}

func identifierExists(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM agreements WHERE agreement_id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("agreement: check identifier existence: %w", err)
	}
	return exists, nil
}
