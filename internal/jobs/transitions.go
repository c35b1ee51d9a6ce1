package jobs

import (
	"context"
	"fmt"
	"strings"

	"mediafactory/internal/db"
	"mediafactory/internal/services"
)

const maxErrorMessage = 2000

// BeginAttempt records the start of an execution of stage and returns the
// stage's new attempt number. A pending job becomes running.
func (s *Store) BeginAttempt(ctx context.Context, id string, stage Stage) (int, error) {
	var attempt int
	err := s.db.InTx(ctx, func(q db.Querier) error {
		job, err := getJob(ctx, q, id)
		if err != nil {
			return err
		}
		if err := requireActiveAt(job, stage); err != nil {
			return err
		}
		now := db.Now(s.now())
		n, err := q.Exec(ctx,
			"UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND current_stage = ? AND status IN (?, ?)",
			string(StatusRunning), now, id, string(stage), string(StatusPending), string(StatusRunning))
		if err != nil {
			return fmt.Errorf("begin attempt: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: job %s changed while starting %s", services.ErrConflict, id, stage)
		}
		var attempts int64
		if err := q.QueryRow(ctx,
			`INSERT INTO job_stages (job_id, stage, attempts) VALUES (?, ?, 1)
			ON CONFLICT (job_id, stage) DO UPDATE SET attempts = job_stages.attempts + 1
			RETURNING attempts`,
			id, string(stage)).Scan(&attempts); err != nil {
			return fmt.Errorf("count attempt: %w", err)
		}
		attempt = int(attempts)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return attempt, nil
}

// Advance records artifact as the output of fromStage and moves the job to
// toStage. The stored current stage acts as a compare-and-swap guard: a stale
// or duplicate caller receives services.ErrConflict and nothing is written.
func (s *Store) Advance(ctx context.Context, id string, fromStage, toStage Stage, artifact Artifact) error {
	return s.db.InTx(ctx, func(q db.Querier) error {
		job, err := getJob(ctx, q, id)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			return fmt.Errorf("%w: job %s is %s", services.ErrConflict, id, job.Status)
		}
		if job.CurrentStage != fromStage {
			return fmt.Errorf("%w: job %s is at %s, not %s", services.ErrConflict, id, job.CurrentStage, fromStage)
		}
		if want := Next(fromStage, job.FinalStage); want == "" || toStage != want {
			return fmt.Errorf("%w: %s cannot advance to %s (next is %q)", services.ErrValidation, fromStage, toStage, want)
		}
		if artifact.Attempt <= 0 || strings.TrimSpace(artifact.Path) == "" {
			return fmt.Errorf("%w: artifact requires an attempt and a path", services.ErrValidation)
		}

		now := db.Now(s.now())
		n, err := q.Exec(ctx,
			"UPDATE jobs SET current_stage = ?, status = ?, updated_at = ? WHERE id = ? AND current_stage = ? AND status IN (?, ?)",
			string(toStage), string(StatusRunning), now, id, string(fromStage), string(StatusPending), string(StatusRunning))
		if err != nil {
			return fmt.Errorf("advance job: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: job %s moved past %s concurrently", services.ErrConflict, id, fromStage)
		}

		artifactID := s.newID()
		n, err = q.Exec(ctx,
			`INSERT INTO artifacts (id, job_id, stage, attempt, path, sha256, size_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (job_id, stage, attempt) DO NOTHING`,
			artifactID, id, string(fromStage), artifact.Attempt, artifact.Path, artifact.SHA256, artifact.SizeBytes, now)
		if err != nil {
			return fmt.Errorf("record artifact: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: artifact for %s attempt %d already recorded", services.ErrConflict, fromStage, artifact.Attempt)
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO job_stages (job_id, stage, attempts, artifact_id) VALUES (?, ?, ?, ?)
			ON CONFLICT (job_id, stage) DO UPDATE SET artifact_id = excluded.artifact_id`,
			id, string(fromStage), artifact.Attempt, artifactID); err != nil {
			return fmt.Errorf("point stage at artifact: %w", err)
		}
		return nil
	})
}

// Fail records the stage that failed and why and moves the job to failed in
// a single statement.
func (s *Store) Fail(ctx context.Context, id string, stage Stage, reason string) error {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxErrorMessage {
		reason = reason[:maxErrorMessage]
	}
	now := db.Now(s.now())
	n, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = ?, last_failed_stage = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(StatusFailed), string(stage), reason, now, now, id, string(StatusPending), string(StatusRunning))
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if n == 0 {
		return s.missingOrTerminal(ctx, id)
	}
	return nil
}

// MarkTerminal moves an active job into a terminal status.
func (s *Store) MarkTerminal(ctx context.Context, id string, status Status) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %q is not a terminal status", services.ErrValidation, status)
	}
	now := db.Now(s.now())
	n, err := s.db.Exec(ctx,
		"UPDATE jobs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)",
		string(status), now, now, id, string(StatusPending), string(StatusRunning))
	if err != nil {
		return fmt.Errorf("mark terminal: %w", err)
	}
	if n == 0 {
		return s.missingOrTerminal(ctx, id)
	}
	return nil
}

// Reopen returns a failed job to running at the stage that failed and clears
// the failure fields. It returns that stage so the caller can enqueue it.
func (s *Store) Reopen(ctx context.Context, id string) (Stage, error) {
	return s.ReopenWith(ctx, id, nil)
}

// ReopenWith is Reopen with then run inside the same transaction; an error
// from then leaves the job failed.
func (s *Store) ReopenWith(ctx context.Context, id string, then func(q db.Querier, stage Stage) error) (Stage, error) {
	var stage Stage
	err := s.db.InTx(ctx, func(q db.Querier) error {
		job, err := getJob(ctx, q, id)
		if err != nil {
			return err
		}
		if job.Status != StatusFailed {
			return fmt.Errorf("%w: job %s is %s, only failed jobs can be retried", services.ErrConflict, id, job.Status)
		}
		n, err := q.Exec(ctx,
			`UPDATE jobs SET status = ?, last_failed_stage = '', error_message = '', completed_at = 0, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(StatusRunning), db.Now(s.now()), id, string(StatusFailed))
		if err != nil {
			return fmt.Errorf("reopen job: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: job %s changed while reopening", services.ErrConflict, id)
		}
		if then != nil {
			if err := then(q, job.CurrentStage); err != nil {
				return err
			}
		}
		stage = job.CurrentStage
		return nil
	})
	if err != nil {
		return "", err
	}
	return stage, nil
}

func requireActiveAt(job *Job, stage Stage) error {
	if job.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", services.ErrConflict, job.ID, job.Status)
	}
	if job.CurrentStage != stage {
		return fmt.Errorf("%w: job %s is at %s, not %s", services.ErrConflict, job.ID, job.CurrentStage, stage)
	}
	return nil
}

func (s *Store) missingOrTerminal(ctx context.Context, id string) error {
	job, err := getJob(ctx, s.db, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is already %s", services.ErrConflict, id, job.Status)
}
