package jobs

import (
	"context"
	"errors"
	"fmt"

	"mediafactory/internal/db"
	"mediafactory/internal/services"
)

// LedgerEntry returns the publish ledger entry for (id, stage).
func (s *Store) LedgerEntry(ctx context.Context, id string, stage Stage) (*LedgerEntry, error) {
	return getLedger(ctx, s.db, id, stage)
}

// ReserveLedger inserts an in-flight entry for (id, stage). A pending_upload
// entry is claimed back to in_flight and also reports reserved=true. Any
// other existing entry is returned with reserved=false and nothing changes.
func (s *Store) ReserveLedger(ctx context.Context, id string, stage Stage) (*LedgerEntry, bool, error) {
	var (
		entry    *LedgerEntry
		reserved bool
	)
	err := s.db.InTx(ctx, func(q db.Querier) error {
		now := db.Now(s.now())
		n, err := q.Exec(ctx,
			`INSERT INTO publish_ledger (job_id, stage, state, external_id, created_at, updated_at)
			VALUES (?, ?, ?, '', ?, ?)
			ON CONFLICT (job_id, stage) DO NOTHING`,
			id, string(stage), string(LedgerInFlight), now, now)
		if err != nil {
			return fmt.Errorf("reserve ledger: %w", err)
		}
		if n == 0 {
			n, err = q.Exec(ctx,
				"UPDATE publish_ledger SET state = ?, updated_at = ? WHERE job_id = ? AND stage = ? AND state = ?",
				string(LedgerInFlight), now, id, string(stage), string(LedgerPendingUpload))
			if err != nil {
				return fmt.Errorf("claim pending ledger: %w", err)
			}
		}
		reserved = n == 1
		entry, err = getLedger(ctx, q, id, stage)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return entry, reserved, nil
}

// CompleteLedger records the outcome of a reserved publish.
func (s *Store) CompleteLedger(ctx context.Context, id string, stage Stage, state LedgerState, externalID string) error {
	if state == LedgerInFlight {
		return fmt.Errorf("%w: ledger completion requires a final state", services.ErrValidation)
	}
	n, err := s.db.Exec(ctx,
		"UPDATE publish_ledger SET state = ?, external_id = ?, updated_at = ? WHERE job_id = ? AND stage = ?",
		string(state), externalID, db.Now(s.now()), id, string(stage))
	if err != nil {
		return fmt.Errorf("complete ledger: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no ledger entry for job %s stage %s", services.ErrNotFound, id, stage)
	}
	return nil
}

func getLedger(ctx context.Context, q db.Querier, id string, stage Stage) (*LedgerEntry, error) {
	var (
		entry     LedgerEntry
		state     string
		stageName string
		createdAt int64
		updatedAt int64
	)
	err := q.QueryRow(ctx,
		"SELECT job_id, stage, state, external_id, created_at, updated_at FROM publish_ledger WHERE job_id = ? AND stage = ?",
		id, string(stage)).Scan(&entry.JobID, &stageName, &state, &entry.ExternalID, &createdAt, &updatedAt)
	if errors.Is(err, db.ErrNoRows) {
		return nil, fmt.Errorf("%w: no ledger entry for job %s stage %s", services.ErrNotFound, id, stage)
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	entry.Stage = Stage(stageName)
	entry.State = LedgerState(state)
	entry.CreatedAt = db.Time(createdAt)
	entry.UpdatedAt = db.Time(updatedAt)
	return &entry, nil
}
