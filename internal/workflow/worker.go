package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/notifications"
	"mediafactory/internal/queue"
	"mediafactory/internal/services"
	"mediafactory/internal/stage"
)

var errLeaseLost = errors.New("lease lost during execution")

// JobStore is the part of jobs.Store the worker reads and mutates.
type JobStore interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	Stats(ctx context.Context) (map[jobs.Status]int, error)
	BeginAttempt(ctx context.Context, id string, stage jobs.Stage) (int, error)
	Advance(ctx context.Context, id string, from, to jobs.Stage, artifact jobs.Artifact) error
	Fail(ctx context.Context, id string, stage jobs.Stage, reason string) error
	MarkTerminal(ctx context.Context, id string, status jobs.Status) error
}

// WorkQueue is the part of queue.Store the worker consumes.
type WorkQueue interface {
	Enqueue(ctx context.Context, item queue.WorkItem) error
	Dequeue(ctx context.Context, wait time.Duration) (*queue.Delivery, error)
	Ack(ctx context.Context, d *queue.Delivery) error
	Nack(ctx context.Context, d *queue.Delivery, delay time.Duration, reason string) error
	Release(ctx context.Context, d *queue.Delivery, delay time.Duration) error
	Extend(ctx context.Context, d *queue.Delivery) error
	Stats(ctx context.Context) (queue.Stats, error)
}

// Dependencies bundles the collaborators a worker is built from.
type Dependencies struct {
	Jobs      JobStore
	Queue     WorkQueue
	Artifacts *artifacts.Store
	Registry  *stage.Registry
	Notifier  notifications.Service
	JobLogs   *JobLogs
}

// Worker processes work items one at a time.
type Worker struct {
	name      string
	jobs      JobStore
	queue     WorkQueue
	artifacts *artifacts.Store
	registry  *stage.Registry
	notifier  notifications.Service
	jobLogs   *JobLogs
	policy    Policy
	logger    *slog.Logger
	heartbeat *HeartbeatMonitor
	tracker   *tracker
}

// NewWorker constructs a worker. name identifies it in logs and leases.
func NewWorker(name string, deps Dependencies, policy Policy, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow-worker").With(logging.String(logging.FieldWorker, name))
	return &Worker{
		name:      name,
		jobs:      deps.Jobs,
		queue:     deps.Queue,
		artifacts: deps.Artifacts,
		registry:  deps.Registry,
		notifier:  deps.Notifier,
		jobLogs:   deps.JobLogs,
		policy:    policy,
		logger:    logger,
		heartbeat: NewHeartbeatMonitor(deps.Queue, logger, policy.HeartbeatInterval),
	}
}

// Name returns the worker's name.
func (w *Worker) Name() string { return w.name }

// Run processes items until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", logging.String(logging.FieldEventType, "worker_start"))
	defer w.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stop"))
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.tracker.recordError(err)
			w.logger.Error("failed to fetch next work item",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			if !sleepContext(ctx, w.policy.ErrorRetryInterval) {
				return nil
			}
		}
	}
}

// ProcessNext leases at most one item, waiting up to the dequeue wait, and
// handles it. It reports whether an item was handled. Only queue failures
// are returned; stage outcomes are recorded in the stores.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	d, err := w.queue.Dequeue(ctx, w.policy.DequeueWait)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}
	w.Handle(ctx, d)
	return true, nil
}

// Handle runs one leased delivery to completion.
func (w *Worker) Handle(ctx context.Context, d *queue.Delivery) {
	ctx = services.WithWorker(ctx, w.name)
	ctx = services.WithJobID(ctx, d.JobID)
	ctx = services.WithStage(ctx, string(d.Stage))
	ctx = services.WithRequestID(ctx, uuid.NewString())

	base, closer, err := w.jobLogs.Attach(w.logger, d.JobID)
	if err != nil {
		w.logger.Warn("job log unavailable", logging.Error(err), logging.String(logging.FieldJobID, d.JobID))
	}
	defer closer.Close()
	logger := logging.WithContext(ctx, base)
	w.tracker.recordItem(d)

	job, err := w.jobs.Get(ctx, d.JobID)
	switch {
	case errors.Is(err, services.ErrNotFound):
		logger.Warn("dropping work item for unknown job", logging.String(logging.FieldEventType, "work_item_dropped"))
		w.ack(ctx, d, logger)
		return
	case err != nil:
		w.storeError(ctx, d, logger, "load job", err)
		return
	}
	if job.Status.Terminal() {
		logger.Info("dropping work item for finished job",
			logging.String("status", string(job.Status)),
			logging.String(logging.FieldEventType, "work_item_dropped"),
		)
		w.ack(ctx, d, logger)
		return
	}
	if job.CurrentStage != d.Stage {
		w.skipStale(ctx, d, job, logger)
		return
	}
	if w.policy.MaxDeliveries > 0 && d.Deliveries > w.policy.MaxDeliveries {
		err := services.Wrap(services.ErrPermanent, string(d.Stage), "deliver",
			fmt.Sprintf("delivered %d times, limit is %d", d.Deliveries, w.policy.MaxDeliveries), nil)
		w.fail(ctx, d, job, nil, logger, failureReason(err), err)
		return
	}
	executor, ok := w.registry.Lookup(d.Stage)
	if !ok {
		err := services.Wrap(services.ErrConfiguration, string(d.Stage), "dispatch", "no executor registered", nil)
		w.fail(ctx, d, job, nil, logger, failureReason(err), err)
		return
	}

	attempt, err := w.jobs.BeginAttempt(ctx, job.ID, d.Stage)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			logger.Info("job moved before the stage started", logging.Error(err),
				logging.String(logging.FieldEventType, "stage_conflict"))
			w.ack(ctx, d, logger)
			return
		}
		w.storeError(ctx, d, logger, "begin attempt", err)
		return
	}
	ctx = services.WithAttempt(ctx, attempt)
	logger = logging.WithContext(ctx, base)

	out, err := w.artifacts.Begin(ctx, job.ID, d.Stage, attempt)
	if err != nil {
		w.afterFailure(ctx, d, job, nil, logger, err)
		return
	}

	started := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("delivery", d.Deliveries),
		logging.Int("queue_attempt", d.Attempt),
		logging.String("output_dir", out.Dir()),
	)
	execErr := w.execute(ctx, d, executor, stage.Request{
		Job:     job,
		Attempt: attempt,
		Input:   job.Input(d.Stage),
		Output:  out,
	})

	if ctx.Err() != nil {
		_ = out.Fail("interrupted by shutdown")
		logger.Info("stage interrupted by shutdown; releasing work item",
			logging.String(logging.FieldEventType, "stage_interrupted"))
		w.release(context.WithoutCancel(ctx), d, 0, logger)
		return
	}
	if errors.Is(execErr, errLeaseLost) {
		_ = out.Fail(execErr.Error())
		return
	}
	if execErr != nil {
		w.afterFailure(ctx, d, job, out, logger, execErr)
		return
	}
	w.complete(ctx, d, job, out, logger, started)
}

// execute runs the executor under the stage timeout with a heartbeat
// extending the lease. Panics are converted into permanent failures.
func (w *Worker) execute(ctx context.Context, d *queue.Delivery, executor stage.Executor, req stage.Request) (err error) {
	leaseCtx, cancelLease := context.WithCancelCause(ctx)
	defer cancelLease(nil)

	timeout := w.policy.Timeout(d.Stage)
	stageCtx, cancel := leaseCtx, context.CancelFunc(func() {})
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(leaseCtx, timeout)
	}
	defer cancel()

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go w.heartbeat.StartLoop(hbCtx, &hbWG, d, func() { cancelLease(errLeaseLost) })
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrPermanent, string(d.Stage), "execute", fmt.Sprintf("executor panicked: %v", r), nil)
		}
	}()

	err = executor.Execute(stageCtx, req)
	switch {
	case ctx.Err() != nil:
		return err
	case errors.Is(context.Cause(leaseCtx), errLeaseLost):
		return errLeaseLost
	case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, string(d.Stage), "execute",
			fmt.Sprintf("exceeded stage timeout of %s", timeout), err)
	}
	return err
}

// complete commits the attempt, advances the job and hands the job to the
// next stage. The item is acked last.
func (w *Worker) complete(ctx context.Context, d *queue.Delivery, job *jobs.Job, out *artifacts.Attempt, logger *slog.Logger, started time.Time) {
	artifact, err := out.Commit(ctx)
	if err != nil {
		w.afterFailure(ctx, d, job, out, logger, err)
		return
	}

	current, err := w.jobs.Get(ctx, job.ID)
	if err != nil {
		w.storeError(ctx, d, logger, "reload job", err)
		return
	}
	if current.Status.Terminal() {
		logger.Info("job finished while the stage ran; artifact kept on disk",
			logging.String("status", string(current.Status)),
			logging.String("artifact", artifact.Path),
			logging.String(logging.FieldEventType, "stage_discarded"),
		)
		w.ack(ctx, d, logger)
		return
	}

	next := jobs.Next(d.Stage, job.FinalStage)
	if err := w.jobs.Advance(ctx, job.ID, d.Stage, next, artifact); err != nil {
		if errors.Is(err, services.ErrConflict) {
			logger.Info("another delivery already advanced the job", logging.Error(err),
				logging.String(logging.FieldEventType, "stage_conflict"))
			w.ack(ctx, d, logger)
			return
		}
		w.storeError(ctx, d, logger, "advance job", err)
		return
	}
	if !w.handOff(ctx, d, job, next, logger) {
		return
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_stage", string(next)),
		logging.String("artifact", artifact.Path),
		logging.Int64("artifact_bytes", artifact.SizeBytes),
		logging.Duration("stage_duration", time.Since(started)),
	)
	w.tracker.recordSuccess()
	w.ack(ctx, d, logger)
}

// handOff enqueues the successor stage, or finishes the job when next is done.
// It reports whether the caller may ack.
func (w *Worker) handOff(ctx context.Context, d *queue.Delivery, job *jobs.Job, next jobs.Stage, logger *slog.Logger) bool {
	if next == jobs.StageDone {
		if err := w.jobs.MarkTerminal(ctx, job.ID, jobs.StatusSucceeded); err != nil {
			if errors.Is(err, services.ErrConflict) {
				return true
			}
			w.storeError(ctx, d, logger, "finish job", err)
			return false
		}
		logger.Info("job succeeded", logging.String(logging.FieldEventType, "job_succeeded"))
		w.notify(ctx, logger, notifications.EventJobSucceeded, notifications.Payload{
			"job_id": job.ID,
			"topic":  job.Topic,
		})
		return true
	}
	if err := w.queue.Enqueue(ctx, queue.WorkItem{JobID: job.ID, Stage: next, Attempt: 1}); err != nil {
		w.storeError(ctx, d, logger, "enqueue next stage", err)
		return false
	}
	return true
}

// skipStale handles an item whose stage the job already left. The successor
// is re-enqueued in case the worker that advanced the job crashed before
// doing so.
func (w *Worker) skipStale(ctx context.Context, d *queue.Delivery, job *jobs.Job, logger *slog.Logger) {
	if job.CurrentStage.Before(d.Stage) {
		logging.WarnWithContext(logger, "dropping work item for a stage the job has not reached", "work_item_dropped",
			logging.String("current_stage", string(job.CurrentStage)),
			logging.String(logging.FieldErrorHint, "inspect the queue for items enqueued by hand"),
		)
		w.ack(ctx, d, logger)
		return
	}
	if !w.handOff(ctx, d, job, job.CurrentStage, logger) {
		return
	}
	logger.Info("duplicate delivery; stage already complete",
		logging.String("current_stage", string(job.CurrentStage)),
		logging.String(logging.FieldEventType, "duplicate_delivery"),
	)
	w.ack(ctx, d, logger)
}

func (w *Worker) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, notification skipped")
			return
		}
		logger.Debug("notification failed", logging.Error(err), logging.String("event", string(event)))
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
