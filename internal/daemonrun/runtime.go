package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediafactory/internal/api"
	"mediafactory/internal/artifacts"
	"mediafactory/internal/config"
	"mediafactory/internal/db"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/notifications"
	"mediafactory/internal/queue"
	"mediafactory/internal/workflow"
)

// Runtime bundles the stores and the orchestrator service opened over one
// database handle. CLI commands use it directly; worker processes add a pool.
type Runtime struct {
	Config  *config.Config
	DB      db.DB
	Jobs    *jobs.Store
	Queue   *queue.Store
	Service *api.Service

	logger *slog.Logger
	stages *workflow.StageSet
}

// Open connects to the configured database and builds the stores.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	handle, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	jobStore := jobs.NewStore(handle)
	queueStore := queue.NewStore(handle, QueueOptions(cfg)...)
	return &Runtime{
		Config:  cfg,
		DB:      handle,
		Jobs:    jobStore,
		Queue:   queueStore,
		Service: api.NewService(cfg, jobStore, queueStore, logger),
		logger:  logger,
	}, nil
}

// QueueOptions maps the workflow section onto queue store options.
func QueueOptions(cfg *config.Config) []queue.Option {
	w := cfg.Workflow
	return []queue.Option{
		queue.WithVisibility(time.Duration(w.VisibilityTimeout) * time.Second),
		queue.WithPollInterval(time.Duration(w.QueuePollInterval) * time.Second),
	}
}

// NewPool builds the configured stage executors and a pool of count workers.
// A count below one uses cfg.Workflow.Workers.
func (r *Runtime) NewPool(ctx context.Context, count int) (*workflow.Pool, error) {
	if r.stages != nil {
		return nil, errors.New("worker pool already built for this runtime")
	}
	stages, err := workflow.BuildStages(ctx, r.Config, r.Jobs, r.logger)
	if err != nil {
		return nil, fmt.Errorf("build stages: %w", err)
	}
	r.stages = stages
	if count < 1 {
		count = r.Config.Workflow.Workers
	}
	deps := workflow.Dependencies{
		Jobs:      r.Jobs,
		Queue:     r.Queue,
		Artifacts: artifacts.NewStore(r.Config.Paths.MediaDir),
		Registry:  stages.Registry,
		Notifier:  notifications.NewService(r.Config),
		JobLogs:   workflow.NewJobLogs(r.Config),
	}
	return workflow.NewPoolWithPolicy(count, deps, workflow.PolicyFromConfig(r.Config), r.logger), nil
}

// Close releases stage collaborators and the database handle.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.stages.Close(), r.DB.Close())
}
