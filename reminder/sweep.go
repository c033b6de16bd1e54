package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contractdesk/agreement"
	"contractdesk/logging"
)

// Notifier enqueues a notification inside the sweep's transaction.
type Notifier interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, recipients []string, subject, body string) error
}

// Sweeper walks due agreements, corrects stale statuses and fires the
// reminders the policy says are due. Each agreement is handled in its own
// transaction under a row lock, so concurrent sweepers partition the work
// instead of duplicating it.
type Sweeper struct {
	pool    *pgxpool.Pool
	repo    *Repository
	notify  Notifier
	logger  *zap.SugaredLogger
	workers int

	now func() time.Time
}

// NewSweeper wires a sweeper. workers bounds per-sweep concurrency.
func NewSweeper(pool *pgxpool.Pool, repo *Repository, notify Notifier, workers int, logger *zap.SugaredLogger) *Sweeper {
	if logger == nil {
		logger = logging.Nop()
	}
	if workers < 1 {
		workers = 1
	}
	return &Sweeper{
		pool:    pool,
		repo:    repo,
		notify:  notify,
		logger:  logger,
		workers: workers,
		now:     time.Now,
	}
}

// Run sweeps on the given interval until the context is canceled. One sweep
// runs immediately on start so a restarted service catches up without
// waiting a full interval.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Errorw("reminder sweep", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Errorw("reminder sweep", "error", err)
			}
		}
	}
}

// Sweep processes every due agreement once and returns the number of
// reminders fired. A failure on one agreement is logged and does not abort
// the rest of the sweep; only context cancellation stops it early.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	today := s.now()

	ids, err := s.repo.CandidateIDs(ctx, today)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	fired := make(chan struct{}, len(ids))
	for _, id := range ids {
		g.Go(func() error {
			sent, err := s.sweepOne(gctx, id, today)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				s.logger.Errorw("sweep agreement", "id", id, "error", err)
				return nil
			}
			if sent {
				fired <- struct{}{}
			}
			return nil
		})
	}

	err = g.Wait()
	close(fired)
	return len(fired), err
}

// sweepOne handles a single agreement: lock, status correction, policy
// evaluation, log write and notification, all in one transaction. Reports
// whether a reminder went out.
func (s *Sweeper) sweepOne(ctx context.Context, id string, today time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("reminder: begin sweep tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ag, err := s.repo.LockAgreement(ctx, tx, id)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return false, nil
		}
		return false, err
	}

	if derived := agreement.DeriveStatus(ag.Status, ag.ExpiryDate, today); derived != ag.Status {
		if err := s.repo.UpdateStatus(ctx, tx, ag.ID, derived); err != nil {
			return false, err
		}
		ag.Status = derived
	}

	due := Evaluate(ag, today, nil)
	if due != nil {
		// Re-check against the log under the lock; Evaluate ran without it.
		sent, err := s.repo.ListSent(ctx, tx, ag.ID)
		if err != nil {
			return false, err
		}
		due = Evaluate(ag, today, sent)
	}
	if due == nil {
		return false, tx.Commit(ctx)
	}

	// Resolve recipients before touching the log: a reminder with nobody to
	// notify must not consume its once-only slot.
	emails, err := s.repo.RecipientEmails(ctx, tx, recipientIDs(ag))
	if err != nil {
		return false, err
	}
	if len(emails) == 0 {
		return false, tx.Commit(ctx)
	}

	recorded, err := s.repo.RecordSent(ctx, tx, ag.ID, due.Kind, dateOnly(today))
	if err != nil {
		return false, err
	}
	if !recorded {
		return false, tx.Commit(ctx)
	}

	subject, body := composeReminder(ag, due.Kind, today)
	if err := s.notify.Enqueue(ctx, tx, "agreement.reminder", emails, subject, body); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("reminder: commit sweep tx: %w", err)
	}

	s.logger.Infow("reminder fired",
		"agreement", ag.AgreementID, "kind", due.Kind, "recipients", len(emails))
	return true, nil
}

// composeReminder renders the subject and body for a reminder kind.
func composeReminder(ag agreement.Agreement, kind Kind, today time.Time) (subject, body string) {
	expiry := dateOnly(ag.ExpiryDate).Format("2006-01-02")

	switch kind {
	case KindBefore:
		days := int(dateOnly(ag.ExpiryDate).Sub(dateOnly(today)).Hours() / 24)
		subject = fmt.Sprintf("Agreement Expiring Soon: %s", ag.AgreementID)
		body = fmt.Sprintf("Agreement %s (%s) expires on %s, in %d day(s). Please review it for renewal.",
			ag.AgreementID, ag.Title, expiry, days)
	case KindOn:
		subject = fmt.Sprintf("Agreement Expires Today: %s", ag.AgreementID)
		body = fmt.Sprintf("Agreement %s (%s) expires today, %s.", ag.AgreementID, ag.Title, expiry)
	case KindAfter:
		subject = fmt.Sprintf("Expired Agreement Pending Action: %s", ag.AgreementID)
		body = fmt.Sprintf("Agreement %s (%s) expired on %s and has not been renewed or terminated.",
			ag.AgreementID, ag.Title, expiry)
	}
	return subject, body
}

// recipientIDs is the reminder audience: assigned users plus the creator.
func recipientIDs(ag agreement.Agreement) []string {
	seen := make(map[string]struct{}, len(ag.AssignedUserIDs)+1)
	out := make([]string, 0, len(ag.AssignedUserIDs)+1)
	for _, id := range ag.AssignedUserIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if ag.CreatorID != nil && *ag.CreatorID != "" {
		if _, ok := seen[*ag.CreatorID]; !ok {
			out = append(out, *ag.CreatorID)
		}
	}
	return out
}
