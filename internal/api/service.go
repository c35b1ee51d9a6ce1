package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"mediafactory/internal/config"
	"mediafactory/internal/db"
	"mediafactory/internal/jobs"
	"mediafactory/internal/language"
	"mediafactory/internal/logging"
	"mediafactory/internal/queue"
	"mediafactory/internal/services"
	"mediafactory/internal/workflow"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	fallbackNiche    = "General"
	fallbackLength   = 480
)

// JobStore abstracts the job persistence the orchestrator needs.
type JobStore interface {
	CreateWith(ctx context.Context, req jobs.NewJob, then func(q db.Querier, job *jobs.Job) error) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, opts jobs.ListOptions) ([]*jobs.Job, error)
	Stats(ctx context.Context) (map[jobs.Status]int, error)
	MarkTerminal(ctx context.Context, id string, status jobs.Status) error
	ReopenWith(ctx context.Context, id string, then func(q db.Querier, stage jobs.Stage) error) (jobs.Stage, error)
}

// WorkQueue abstracts the queue operations the orchestrator needs. Enqueues
// run inside the job store's transactions, so both must share one database.
type WorkQueue interface {
	EnqueueIn(ctx context.Context, q db.Querier, item queue.WorkItem) error
	Purge(ctx context.Context, jobID string) (int64, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// SubmitRequest is a production request. Empty optional fields take the
// configured pipeline defaults.
type SubmitRequest struct {
	Topic         string `json:"topic" validate:"required,max=300"`
	Niche         string `json:"niche,omitempty" validate:"omitempty,max=100"`
	LengthSeconds int    `json:"lengthSeconds,omitempty" validate:"omitempty,min=10,max=14400"`
	Language      string `json:"language,omitempty" validate:"omitempty,min=2,max=16"`
	VoiceProfile  string `json:"voiceProfile,omitempty" validate:"omitempty,max=64"`
}

// ListRequest filters and pages List results.
type ListRequest struct {
	Statuses []string
	Offset   int
	Limit    int
}

// Service implements the orchestrator operations.
type Service struct {
	jobs      JobStore
	queue     WorkQueue
	validate  *validator.Validate
	defaults  config.Pipeline
	publishOn bool
	jobLogs   *workflow.JobLogs
	logger    *slog.Logger
}

// NewService constructs the orchestrator around the stores.
func NewService(cfg *config.Config, store JobStore, q WorkQueue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	svc := &Service{
		jobs:     store,
		queue:    q,
		validate: validator.New(),
		logger:   logging.NewComponentLogger(logger, "api"),
	}
	if cfg != nil {
		svc.defaults = cfg.Pipeline
		svc.publishOn = cfg.FinalStage() == string(jobs.StagePublish)
		svc.jobLogs = workflow.NewJobLogs(cfg)
	}
	return svc
}

// Submit validates req, then creates the job and enqueues its first stage in
// one transaction. It returns as soon as the job is durable; no stage runs
// synchronously.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if err := s.validate.Struct(req); err != nil {
		return "", validationError(err)
	}
	s.applyDefaults(&req)
	code, ok := language.Normalize(req.Language)
	if !ok {
		return "", fmt.Errorf("%w: language: unknown language %q", services.ErrValidation, req.Language)
	}
	req.Language = code

	final := jobs.StageThumbnail
	if s.publishOn {
		final = jobs.StagePublish
	}
	job, err := s.jobs.CreateWith(ctx, jobs.NewJob{
		Topic:         req.Topic,
		Niche:         req.Niche,
		LengthSeconds: req.LengthSeconds,
		Language:      req.Language,
		VoiceProfile:  req.VoiceProfile,
		FinalStage:    final,
	}, func(q db.Querier, job *jobs.Job) error {
		if err := s.queue.EnqueueIn(ctx, q, queue.WorkItem{JobID: job.ID, Stage: job.CurrentStage, Attempt: 1}); err != nil {
			return fmt.Errorf("enqueue job %s: %w", job.ID, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("topic", job.Topic),
		logging.String("niche", job.Niche),
		logging.Int("length_seconds", job.LengthSeconds),
		logging.String("final_stage", string(final)),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return job.ID, nil
}

func (s *Service) applyDefaults(req *SubmitRequest) {
	req.Niche = firstNonEmpty(req.Niche, s.defaults.DefaultNiche, fallbackNiche)
	if req.LengthSeconds == 0 {
		req.LengthSeconds = s.defaults.DefaultLength
	}
	if req.LengthSeconds <= 0 {
		req.LengthSeconds = fallbackLength
	}
	req.Language = firstNonEmpty(req.Language, s.defaults.DefaultLanguage, "en")
	req.VoiceProfile = firstNonEmpty(req.VoiceProfile, s.defaults.DefaultVoiceProfile, "alloy")
}

// Status returns the job record.
func (s *Service) Status(ctx context.Context, id string) (*jobs.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: job id is required", services.ErrValidation)
	}
	return s.jobs.Get(ctx, id)
}

// Describe returns the job as a DTO.
func (s *Service) Describe(ctx context.Context, id string) (*Job, error) {
	job, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// Cancel moves an active job to cancelled and purges its queued items. A
// stage already running finishes; its result is kept on disk but the job does
// not advance. Cancelling a finished job returns services.ErrConflict.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if _, err := s.Status(ctx, id); err != nil {
		return err
	}
	if err := s.jobs.MarkTerminal(ctx, id, jobs.StatusCancelled); err != nil {
		return err
	}
	purged, err := s.queue.Purge(ctx, id)
	if err != nil {
		// Workers drop items of cancelled jobs, so a failed purge only delays cleanup.
		logging.WarnWithContext(s.logger, "failed to purge queued items of cancelled job", "queue_purge_failed",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "workers will drop the items on delivery"),
		)
	}
	s.logger.Info("job cancelled",
		logging.String(logging.FieldJobID, id),
		logging.Int64("purged_items", purged),
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	return nil
}

// Retry re-opens a failed job at the stage that failed and enqueues it again
// in one transaction; when the enqueue fails the job stays failed.
// Earlier artifacts are reused; the retried stage gets a new attempt directory.
func (s *Service) Retry(ctx context.Context, id string) (jobs.Stage, error) {
	if _, err := s.Status(ctx, id); err != nil {
		return "", err
	}
	stage, err := s.jobs.ReopenWith(ctx, id, func(q db.Querier, stage jobs.Stage) error {
		if err := s.queue.EnqueueIn(ctx, q, queue.WorkItem{JobID: id, Stage: stage, Attempt: 1}); err != nil {
			return fmt.Errorf("enqueue retry of %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("job retried",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldStage, string(stage)),
		logging.String(logging.FieldEventType, "job_retried"),
	)
	return stage, nil
}

// List returns jobs filtered by status, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Job, error) {
	opts := jobs.ListOptions{Offset: max(req.Offset, 0), Limit: req.Limit}
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	opts.Limit = min(opts.Limit, maxListLimit)
	for _, raw := range req.Statuses {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		status, ok := jobs.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", services.ErrValidation, raw)
		}
		opts.Statuses = append(opts.Statuses, status)
	}
	list, err := s.jobs.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return FromJobs(list), nil
}

// Stats returns job counts by status and the queue depth.
func (s *Service) Stats(ctx context.Context) (StatsResponse, error) {
	jobStats, err := s.jobs.Stats(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	queueStats, err := s.queue.Stats(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	return StatsResponse{Jobs: MergeJobStats(jobStats), Queue: FromQueueStats(queueStats)}, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, describeField(fe))
		}
		return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(parts, "; "))
	}
	return fmt.Errorf("%w: %v", services.ErrValidation, err)
}

func describeField(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
