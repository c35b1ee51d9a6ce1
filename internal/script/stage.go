package script

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"mediafactory/internal/config"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/services"
	"mediafactory/internal/services/llm"
	"mediafactory/internal/stage"
)

const (
	// PrimaryFile is the committed script document.
	PrimaryFile = "script.json"
	// NarrationFile holds the plain narration text.
	NarrationFile = "script.txt"
)

// Generator is the script stage executor.
type Generator struct {
	client         llm.Completer
	wordsPerMinute int
	logger         *slog.Logger
}

// NewGenerator constructs the script stage around an LLM completer.
func NewGenerator(cfg *config.Config, client llm.Completer, logger *slog.Logger) *Generator {
	wpm := 0
	if cfg != nil {
		wpm = cfg.Voice.WordsPerMinute
	}
	return &Generator{
		client:         client,
		wordsPerMinute: wpm,
		logger:         logging.NewComponentLogger(logger, "script"),
	}
}

// Stage implements stage.Executor.
func (g *Generator) Stage() jobs.Stage { return jobs.StageScript }

// Execute requests a script for the job topic and writes it to the attempt.
func (g *Generator) Execute(ctx context.Context, req stage.Request) error {
	logger := logging.WithContext(ctx, g.logger)
	if g.client == nil {
		return services.Wrap(services.ErrConfiguration, "script", "generate", "llm client not configured", nil)
	}
	if req.Job == nil || strings.TrimSpace(req.Job.Topic) == "" {
		return services.Wrap(services.ErrValidation, "script", "generate", "job topic is required", nil)
	}

	logger.Info("requesting script",
		logging.String("topic", req.Job.Topic),
		logging.String("provider", g.client.Provider()),
		logging.Int("length_seconds", req.Job.LengthSeconds),
	)
	raw, err := g.client.CompleteJSON(ctx, systemPrompt, userPrompt(req.Job, g.wordsPerMinute))
	if err != nil {
		return services.Wrap(nil, "script", "generate", "llm request failed", err)
	}

	doc, err := Parse(llm.ExtractJSON(raw))
	switch {
	case errors.Is(err, ErrRejected):
		return services.Wrap(services.ErrPermanent, "script", "generate", "topic rejected by model", err)
	case err != nil:
		return services.Wrap(services.ErrTransient, "script", "generate", "invalid script reply", err)
	}

	if err := stage.WriteJSON(req, PrimaryFile, doc); err != nil {
		return err
	}
	if err := req.Output.WriteFile(NarrationFile, []byte(doc.Narration()+"\n")); err != nil {
		return err
	}
	logger.Info("script generated",
		logging.String("title", doc.Title),
		logging.Int("sections", len(doc.Sections)),
		logging.Int("words", doc.WordCount()),
	)
	return req.Output.SetPrimary(PrimaryFile)
}

// HealthCheck reports whether the LLM collaborator is reachable.
func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	const name = "script"
	if g.client == nil {
		return stage.Unhealthy(name, "llm client not configured")
	}
	if err := g.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

// LoadFromJob reads the committed script of a job.
func LoadFromJob(job *jobs.Job) (Document, error) {
	var doc Document
	if err := stage.LoadJSON(job, jobs.StageScript, PrimaryFile, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
