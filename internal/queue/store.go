package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediafactory/internal/db"
	"mediafactory/internal/jobs"
)

const (
	defaultVisibility   = 2 * time.Minute
	defaultPollInterval = time.Second
	maxLastError        = 1000
)

// Store is a durable work queue kept in the shared relational database.
// Delivery is at-least-once: a leased item that is neither acked nor nacked
// becomes visible again when its lease expires.
type Store struct {
	db           db.DB
	visibility   time.Duration
	pollInterval time.Duration
	now          func() time.Time
	newID        func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithVisibility sets how long a dequeued item stays invisible to other consumers.
func WithVisibility(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.visibility = d
		}
	}
}

// WithPollInterval sets how often a blocked Dequeue looks for work.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClock overrides the time source used for visibility bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps an opened database.
func NewStore(handle db.DB, opts ...Option) *Store {
	s := &Store{
		db:           handle,
		visibility:   defaultVisibility,
		pollInterval: defaultPollInterval,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Visibility returns the configured lease duration.
func (s *Store) Visibility() time.Duration {
	return s.visibility
}

// Enqueue adds item to the queue. While an item for the same job and stage is
// queued (ready, leased or delayed) the call is a no-op.
func (s *Store) Enqueue(ctx context.Context, item WorkItem) error {
	return s.EnqueueIn(ctx, s.db, item)
}

// EnqueueIn enqueues item through q, which may be a transaction of the
// database the queue lives in.
func (s *Store) EnqueueIn(ctx context.Context, q db.Querier, item WorkItem) error {
	if strings.TrimSpace(item.JobID) == "" {
		return errors.New("enqueue: job id is required")
	}
	if !item.Stage.Valid() {
		return fmt.Errorf("enqueue: unknown stage %q", item.Stage)
	}
	if item.Attempt <= 0 {
		item.Attempt = 1
	}
	now := db.Now(s.now())
	if _, err := q.Exec(ctx,
		`INSERT INTO work_items (id, job_id, stage, attempt, deliveries, enqueued_at, visible_at, lease_token, last_error)
		VALUES (?, ?, ?, ?, 0, ?, ?, '', '')
		ON CONFLICT (job_id, stage) DO NOTHING`,
		s.newID(), item.JobID, string(item.Stage), item.Attempt, now, now); err != nil {
		return fmt.Errorf("enqueue %s/%s: %w", item.JobID, item.Stage, err)
	}
	return nil
}

// Dequeue leases the oldest visible item. It polls until an item is available,
// wait elapses (nil, nil) or ctx is done.
func (s *Store) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	deadline := time.Now().Add(wait)
	for {
		delivery, err := s.lease(ctx)
		if err != nil || delivery != nil {
			return delivery, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(min(s.pollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Store) lease(ctx context.Context) (*Delivery, error) {
	lockClause := ""
	if s.db.Dialect() == db.Postgres {
		lockClause = " FOR UPDATE SKIP LOCKED"
	}
	now := s.now()
	until := now.Add(s.visibility)
	token := s.newID()

	var delivery *Delivery
	err := s.db.InTx(ctx, func(q db.Querier) error {
		var (
			d          Delivery
			stage      string
			attempt    int64
			deliveries int64
			enqueuedAt int64
		)
		err := q.QueryRow(ctx,
			`UPDATE work_items SET lease_token = ?, deliveries = deliveries + 1, visible_at = ?
			WHERE id = (SELECT id FROM work_items WHERE visible_at <= ? ORDER BY enqueued_at, id LIMIT 1`+lockClause+`)
			AND visible_at <= ?
			RETURNING id, job_id, stage, attempt, deliveries, enqueued_at, last_error`,
			token, db.Now(until), db.Now(now), db.Now(now)).
			Scan(&d.ID, &d.JobID, &stage, &attempt, &deliveries, &enqueuedAt, &d.LastError)
		if errors.Is(err, db.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		d.Stage = jobs.Stage(stage)
		d.Attempt = int(attempt)
		d.Deliveries = int(deliveries)
		d.EnqueuedAt = db.Time(enqueuedAt)
		d.Token = token
		d.LeasedUntil = db.Time(db.Now(until))
		delivery = &d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	return delivery, nil
}

// Ack removes the delivered item permanently.
func (s *Store) Ack(ctx context.Context, d *Delivery) error {
	n, err := s.db.Exec(ctx, "DELETE FROM work_items WHERE id = ? AND lease_token = ?", d.ID, d.Token)
	if err != nil {
		return fmt.Errorf("ack %s/%s: %w", d.JobID, d.Stage, err)
	}
	if n == 0 {
		return fmt.Errorf("ack %s/%s: %w", d.JobID, d.Stage, ErrLeaseLost)
	}
	return nil
}

// Nack returns the item for redelivery after delay and counts a failed attempt.
func (s *Store) Nack(ctx context.Context, d *Delivery, delay time.Duration, reason string) error {
	if len(reason) > maxLastError {
		reason = reason[:maxLastError]
	}
	visible := db.Now(s.now().Add(max(delay, 0)))
	n, err := s.db.Exec(ctx,
		"UPDATE work_items SET visible_at = ?, lease_token = '', attempt = attempt + 1, last_error = ? WHERE id = ? AND lease_token = ?",
		visible, reason, d.ID, d.Token)
	if err != nil {
		return fmt.Errorf("nack %s/%s: %w", d.JobID, d.Stage, err)
	}
	if n == 0 {
		return fmt.Errorf("nack %s/%s: %w", d.JobID, d.Stage, ErrLeaseLost)
	}
	return nil
}

// Release gives the item back after delay without counting an attempt. It is
// used when the consumer could not process the item for reasons unrelated to
// the stage itself (shutdown, store errors).
func (s *Store) Release(ctx context.Context, d *Delivery, delay time.Duration) error {
	visible := db.Now(s.now().Add(max(delay, 0)))
	n, err := s.db.Exec(ctx,
		"UPDATE work_items SET visible_at = ?, lease_token = '' WHERE id = ? AND lease_token = ?",
		visible, d.ID, d.Token)
	if err != nil {
		return fmt.Errorf("release %s/%s: %w", d.JobID, d.Stage, err)
	}
	if n == 0 {
		return fmt.Errorf("release %s/%s: %w", d.JobID, d.Stage, ErrLeaseLost)
	}
	return nil
}

// Extend pushes the lease deadline out by the visibility timeout.
func (s *Store) Extend(ctx context.Context, d *Delivery) error {
	until := s.now().Add(s.visibility)
	n, err := s.db.Exec(ctx,
		"UPDATE work_items SET visible_at = ? WHERE id = ? AND lease_token = ?",
		db.Now(until), d.ID, d.Token)
	if err != nil {
		return fmt.Errorf("extend %s/%s: %w", d.JobID, d.Stage, err)
	}
	if n == 0 {
		return fmt.Errorf("extend %s/%s: %w", d.JobID, d.Stage, ErrLeaseLost)
	}
	d.LeasedUntil = db.Time(db.Now(until))
	return nil
}
