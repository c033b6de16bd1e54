package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"contractdesk/logging"
)

// maxAttempts is how often a message is retried before it is parked as
// failed.
const maxAttempts = 5

// Outbox enqueues messages transactionally. Enqueue participates in the
// caller's transaction, so a rolled-back business operation leaves no
// message behind.
type Outbox struct{}

// NewOutbox returns the outbox producer.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Enqueue stores one pending message under the given topic.
func (o *Outbox) Enqueue(ctx context.Context, tx pgx.Tx, topic string, recipients []string, subject, body string) error {
	payload, err := json.Marshal(Message{Recipients: recipients, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("notify: marshal outbox payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)
	`, topic, payload); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

// Dispatcher drains pending outbox rows and hands them to the sender.
// Multiple dispatchers can run against the same database: rows are claimed
// with FOR UPDATE SKIP LOCKED, so each message is delivered by one worker.
type Dispatcher struct {
	pool   *pgxpool.Pool
	sender Sender
	logger *zap.SugaredLogger
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(pool *pgxpool.Pool, sender Sender, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{pool: pool, sender: sender, logger: logger}
}

// Run drains the outbox on the given interval until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Drain(ctx, 100); err != nil {
				d.logger.Errorw("outbox drain", "error", err)
			}
		}
	}
}

// Drain claims up to limit pending messages and attempts delivery. A failed
// send increments the attempt counter; after maxAttempts the row is parked
// as failed. Returns the number of messages delivered.
func (d *Dispatcher) Drain(ctx context.Context, limit int) (int, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: begin drain tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload, attempts
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("notify: claim pending: %w", err)
	}

	type claimed struct {
		id       string
		topic    string
		payload  []byte
		attempts int
	}
	batch := make([]claimed, 0, limit)
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.id, &c.topic, &c.payload, &c.attempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("notify: scan pending: %w", err)
		}
		batch = append(batch, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("notify: iterate pending: %w", err)
	}

	sent := 0
	for _, c := range batch {
		var msg Message
		if err := json.Unmarshal(c.payload, &msg); err != nil {
			d.logger.Errorw("outbox payload corrupt", "id", c.id, "error", err)
			if _, err := tx.Exec(ctx, `UPDATE outbox SET status = 'failed', attempts = attempts + 1 WHERE id = $1`, c.id); err != nil {
				return sent, fmt.Errorf("notify: park corrupt message: %w", err)
			}
			continue
		}

		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Warnw("outbox delivery failed",
				"id", c.id, "topic", c.topic, "attempt", c.attempts+1, "error", err)
			status := "pending"
			if c.attempts+1 >= maxAttempts {
				status = "failed"
			}
			if _, err := tx.Exec(ctx, `UPDATE outbox SET status = $2, attempts = attempts + 1 WHERE id = $1`, c.id, status); err != nil {
				return sent, fmt.Errorf("notify: record failure: %w", err)
			}
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET status = 'sent', attempts = attempts + 1, sent_at = now() WHERE id = $1
		`, c.id); err != nil {
			return sent, fmt.Errorf("notify: mark sent: %w", err)
		}
		sent++
	}

	if err := tx.Commit(ctx); err != nil {
		return sent, fmt.Errorf("notify: commit drain tx: %w", err)
	}
	return sent, nil
}
