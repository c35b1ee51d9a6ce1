package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/notifications"
	"mediafactory/internal/queue"
	"mediafactory/internal/services"
)

// afterFailure routes a stage error: conflicts are dropped, transient errors
// are retried with backoff until the ceiling, everything else fails the job.
func (w *Worker) afterFailure(ctx context.Context, d *queue.Delivery, job *jobs.Job, out *artifacts.Attempt, logger *slog.Logger, stageErr error) {
	if errors.Is(stageErr, services.ErrConflict) {
		failAttempt(out, stageErr.Error())
		logger.Info("stage conflict; dropping work item", logging.Error(stageErr),
			logging.String(logging.FieldEventType, "stage_conflict"))
		w.ack(ctx, d, logger)
		return
	}

	reason := failureReason(stageErr)
	if services.Retryable(stageErr) {
		if d.Attempt <= w.policy.MaxRetries {
			delay := w.policy.Backoff(d.Attempt)
			failAttempt(out, reason)
			logger.Warn("stage failed; retry scheduled",
				logging.Error(stageErr),
				logging.String("error_kind", services.Label(stageErr)),
				logging.Int("queue_attempt", d.Attempt),
				logging.Int("max_retries", w.policy.MaxRetries),
				logging.Duration("retry_in", delay),
				logging.String(logging.FieldEventType, "stage_retry"),
				logging.String(logging.FieldErrorHint, "transient collaborator failure; no action needed unless it persists"),
			)
			w.tracker.recordError(stageErr)
			if err := w.queue.Nack(ctx, d, delay, reason); err != nil {
				w.queueError(logger, "nack", err)
			}
			return
		}
		reason = fmt.Sprintf("%s (gave up after %d attempts)", reason, d.Attempt)
	}
	w.fail(ctx, d, job, out, logger, reason, stageErr)
}

// fail records the failure on the job, moves it to failed and acks the item.
func (w *Worker) fail(ctx context.Context, d *queue.Delivery, job *jobs.Job, out *artifacts.Attempt, logger *slog.Logger, reason string, cause error) {
	failAttempt(out, reason)

	if err := w.jobs.Fail(ctx, job.ID, d.Stage, reason); err != nil {
		if errors.Is(err, services.ErrConflict) {
			logger.Info("job finished before the failure was recorded", logging.Error(err))
			w.ack(ctx, d, logger)
			return
		}
		w.storeError(ctx, d, logger, "record failure", err)
		return
	}

	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.Error(cause),
		logging.String("error_kind", services.Label(cause)),
		logging.String("error_message", reason),
		logging.String(logging.FieldErrorHint, failureHint(cause)),
	)
	w.tracker.recordFailure(cause)
	w.notify(ctx, logger, notifications.EventJobFailed, notifications.Payload{
		"job_id": job.ID,
		"stage":  string(d.Stage),
		"error":  reason,
	})
	w.ack(ctx, d, logger)
}

// storeError leaves the item for redelivery after the error retry interval
// without counting an attempt.
func (w *Worker) storeError(ctx context.Context, d *queue.Delivery, logger *slog.Logger, op string, err error) {
	w.tracker.recordError(err)
	if ctx.Err() != nil {
		logger.Debug("shutting down during "+op, logging.Error(err))
		w.release(context.WithoutCancel(ctx), d, 0, logger)
		return
	}
	logger.Error("store operation failed; work item will be redelivered",
		logging.String("operation", op),
		logging.Error(err),
		logging.Duration("retry_in", w.policy.ErrorRetryInterval),
		logging.String(logging.FieldEventType, "store_error"),
		logging.String(logging.FieldErrorHint, "check database access"),
	)
	w.release(ctx, d, w.policy.ErrorRetryInterval, logger)
}

func (w *Worker) release(ctx context.Context, d *queue.Delivery, delay time.Duration, logger *slog.Logger) {
	if err := w.queue.Release(ctx, d, delay); err != nil {
		w.queueError(logger, "release", err)
	}
}

func (w *Worker) ack(ctx context.Context, d *queue.Delivery, logger *slog.Logger) {
	if err := w.queue.Ack(ctx, d); err != nil {
		w.queueError(logger, "ack", err)
	}
}

// queueError logs a failed ack, nack or release. The lease expiry makes the
// item visible again, so nothing else is needed.
func (w *Worker) queueError(logger *slog.Logger, op string, err error) {
	if errors.Is(err, queue.ErrLeaseLost) {
		logging.WarnWithContext(logger, "work item lease lost before "+op, "lease_lost",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise workflow.visibility_timeout if stages outlive their lease"),
		)
		return
	}
	w.tracker.recordError(err)
	logger.Error("queue "+op+" failed; item becomes visible when its lease expires",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_"+op+"_failed"),
		logging.String(logging.FieldErrorHint, "check database access"),
	)
}

func failAttempt(out *artifacts.Attempt, reason string) {
	if out != nil {
		_ = out.Fail(reason)
	}
}

func failureReason(err error) string {
	if err == nil {
		return "failed without error detail"
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		return "failed without error detail"
	}
	return message
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "check collaborator credentials and config.toml, then retry the job"
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrPermanent):
		return "inspect the job's error and artifacts, then retry or resubmit"
	default:
		return "retries exhausted; retry the job once the collaborator recovers"
	}
}
