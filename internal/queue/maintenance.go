package queue

import (
	"context"
	"fmt"

	"mediafactory/internal/db"
	"mediafactory/internal/jobs"
)

// Stats counts queued items by visibility.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	now := db.Now(s.now())
	var ready, leased, delayed int64
	err := s.db.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN visible_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN visible_at > ? AND lease_token <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN visible_at > ? AND lease_token = '' THEN 1 ELSE 0 END), 0)
		FROM work_items`,
		now, now, now).Scan(&ready, &leased, &delayed)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Ready: int(ready), Leased: int(leased), Delayed: int(delayed)}, nil
}

// List returns every queued item, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, job_id, stage, attempt, deliveries, enqueued_at, visible_at, lease_token, last_error
		FROM work_items ORDER BY enqueued_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	now := s.now()
	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			stage      string
			attempt    int64
			deliveries int64
			enqueuedAt int64
			visibleAt  int64
			token      string
		)
		if err := rows.Scan(&e.ID, &e.JobID, &stage, &attempt, &deliveries, &enqueuedAt, &visibleAt, &token, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		e.Stage = jobs.Stage(stage)
		e.Attempt = int(attempt)
		e.Deliveries = int(deliveries)
		e.EnqueuedAt = db.Time(enqueuedAt)
		e.VisibleAt = db.Time(visibleAt)
		e.Leased = token != "" && e.VisibleAt.After(now)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	return out, nil
}

// Purge removes every queued item for jobID, leased or not. Consumers holding
// a lease on a purged item get ErrLeaseLost when they ack.
func (s *Store) Purge(ctx context.Context, jobID string) (int64, error) {
	n, err := s.db.Exec(ctx, "DELETE FROM work_items WHERE job_id = ?", jobID)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", jobID, err)
	}
	return n, nil
}
