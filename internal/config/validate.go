package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownStages = []string{"script", "voice", "assets", "compose", "thumbnail", "publish"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateCompose(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required when database.driver is postgres (or set MEDIAFACTORY_DATABASE_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q (want sqlite or postgres)", c.Database.Driver)
	}
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.DefaultLength <= 0 {
		return errors.New("pipeline.default_length must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	w := c.Workflow
	if w.Workers < 1 {
		return errors.New("workflow.workers must be at least 1")
	}
	if w.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if w.DequeueWait <= 0 {
		return errors.New("workflow.dequeue_wait must be positive")
	}
	if w.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if w.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if w.VisibilityTimeout <= w.HeartbeatInterval {
		return errors.New("workflow.visibility_timeout must be greater than workflow.heartbeat_interval")
	}
	if w.MaxRetries < 0 {
		return errors.New("workflow.max_retries must not be negative")
	}
	if w.MaxDeliveries <= w.MaxRetries {
		return errors.New("workflow.max_deliveries must be greater than workflow.max_retries")
	}
	if w.BackoffBase <= 0 {
		return errors.New("workflow.backoff_base must be positive")
	}
	if w.BackoffMax < w.BackoffBase {
		return errors.New("workflow.backoff_max must be at least workflow.backoff_base")
	}
	if w.StageTimeout <= 0 {
		return errors.New("workflow.stage_timeout must be positive")
	}
	for stage, seconds := range w.StageTimeouts {
		if !isKnownStage(stage) {
			return fmt.Errorf("workflow.stage_timeouts: unknown stage %q", stage)
		}
		if seconds <= 0 {
			return fmt.Errorf("workflow.stage_timeouts.%s must be positive", stage)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case "openrouter", "gemini":
		return nil
	default:
		return fmt.Errorf("llm.provider: unsupported value %q (want openrouter or gemini)", c.LLM.Provider)
	}
}

func (c *Config) validateCompose() error {
	if c.Compose.Width <= 0 || c.Compose.Height <= 0 {
		return errors.New("compose.width and compose.height must be positive")
	}
	if c.Compose.Width%2 != 0 || c.Compose.Height%2 != 0 {
		return errors.New("compose.width and compose.height must be even")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func isKnownStage(name string) bool {
	name = strings.TrimSpace(name)
	for _, stage := range knownStages {
		if stage == name {
			return true
		}
	}
	return false
}
