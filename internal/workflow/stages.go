package workflow

import (
	"context"
	"errors"
	"log/slog"

	"mediafactory/internal/assets"
	"mediafactory/internal/compose"
	"mediafactory/internal/config"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/publish"
	"mediafactory/internal/script"
	"mediafactory/internal/services"
	"mediafactory/internal/services/llm"
	"mediafactory/internal/stage"
	"mediafactory/internal/thumbnail"
	"mediafactory/internal/voice"
)

// StageSet is the registry of configured executors plus the resources to
// release on shutdown.
type StageSet struct {
	Registry *stage.Registry
	closers  []func() error
}

// Close releases collaborator clients held by the executors.
func (s *StageSet) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, closeFn := range s.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// BuildStages constructs one executor per pipeline stage the configuration
// enables. Collaborators without credentials are still registered; their
// health checks report the gap and their executors fall back or fail
// permanently at run time.
func BuildStages(ctx context.Context, cfg *config.Config, ledger publish.Ledger, logger *slog.Logger) (*StageSet, error) {
	logger = logging.NewComponentLogger(logger, "workflow-stages")
	set := &StageSet{}

	completer, err := llm.New(ctx, cfg.LLM)
	switch {
	case err == nil:
		set.closers = append(set.closers, completer.Close)
	case errors.Is(err, services.ErrConfiguration):
		logging.WarnWithContext(logger, "script generation unavailable", "llm_unconfigured",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set llm.api_key or OPENROUTER_API_KEY / GEMINI_API_KEY"),
		)
		completer = nil
	default:
		return nil, err
	}

	executors := []stage.Executor{
		script.NewGenerator(cfg, completer, logger),
		voice.NewNarrator(cfg, logger),
		assets.NewSourcer(cfg, logger),
		compose.NewComposer(cfg, logger),
		thumbnail.NewRenderer(cfg, logger),
	}
	if cfg.FinalStage() == string(jobs.StagePublish) {
		publisher, err := publish.NewPublisher(ctx, cfg, ledger, logger)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		executors = append(executors, publisher)
	}

	registry, err := stage.NewRegistry(executors...)
	if err != nil {
		_ = set.Close()
		return nil, err
	}
	if err := registry.Require(jobs.Stage(cfg.FinalStage())); err != nil {
		_ = set.Close()
		return nil, err
	}
	set.Registry = registry
	return set, nil
}
