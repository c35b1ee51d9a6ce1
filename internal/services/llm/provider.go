package llm

import (
	"context"
	"fmt"

	"mediafactory/internal/config"
	"mediafactory/internal/services"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"

	scriptTemperature = 0.7
)

// Completer produces a JSON document from a system and a user prompt.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
	Provider() string
	Close() error
}

// New builds the completer selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLM) (Completer, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: scriptTemperature,
		})
	case ProviderOpenRouter, "":
		return NewClient(Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			TimeoutSeconds: cfg.TimeoutSeconds,
			Temperature:    scriptTemperature,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unsupported llm provider %q", services.ErrConfiguration, cfg.Provider)
	}
}
