package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	MediaDir string `toml:"media_dir"`
	LogDir   string `toml:"log_dir"`
}

// Database selects the relational backend shared by the job store and the queue.
type Database struct {
	Driver   string `toml:"driver"`
	DSN      string `toml:"dsn"`
	MaxConns int    `toml:"max_conns"`
}

// Pipeline contains submission defaults.
type Pipeline struct {
	DefaultNiche        string `toml:"default_niche"`
	DefaultLength       int    `toml:"default_length"`
	DefaultLanguage     string `toml:"default_language"`
	DefaultVoiceProfile string `toml:"default_voice_profile"`
}

// Workflow contains worker timing, retry and backoff policy. Durations are seconds.
type Workflow struct {
	Workers            int            `toml:"workers"`
	QueuePollInterval  int            `toml:"queue_poll_interval"`
	DequeueWait        int            `toml:"dequeue_wait"`
	ErrorRetryInterval int            `toml:"error_retry_interval"`
	VisibilityTimeout  int            `toml:"visibility_timeout"`
	HeartbeatInterval  int            `toml:"heartbeat_interval"`
	MaxRetries         int            `toml:"max_retries"`
	MaxDeliveries      int            `toml:"max_deliveries"`
	BackoffBase        int            `toml:"backoff_base"`
	BackoffMax         int            `toml:"backoff_max"`
	StageTimeout       int            `toml:"stage_timeout"`
	StageTimeouts      map[string]int `toml:"stage_timeouts"`
}

// API contains HTTP surface configuration.
type API struct {
	Enabled   bool   `toml:"enabled"`
	Bind      string `toml:"bind"`
	Token     string `toml:"token"`
	JWTSecret string `toml:"jwt_secret"`
}

// LLM contains script generation connection settings.
type LLM struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Voice contains text-to-speech settings.
type Voice struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	ModelID        string `toml:"model_id"`
	WordsPerMinute int    `toml:"words_per_minute"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Assets contains stock footage search settings.
type Assets struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	PerPage        int    `toml:"per_page"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Compose contains video rendering settings.
type Compose struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	FPS          int    `toml:"fps"`
	SubtitleWrap int    `toml:"subtitle_wrap"`
	EncodeAV1    bool   `toml:"encode_av1"`
}

// Thumbnail contains thumbnail rendering settings.
type Thumbnail struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Publish contains upload settings. Publishing is optional; when disabled new jobs end at the thumbnail stage.
type Publish struct {
	Enabled         bool   `toml:"enabled"`
	AutoPublish     bool   `toml:"auto_publish"`
	CredentialsFile string `toml:"credentials_file"`
	CategoryID      string `toml:"category_id"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobSucceeded   bool   `toml:"job_succeeded"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mediafactory.
//
// Configuration sections by subsystem:
//   - Paths: data, media (artifact) and log directories
//   - Database: sqlite or postgres backend for jobs and the queue
//   - Pipeline: submission defaults (niche, length, language, voice)
//   - Workflow: worker count, polling, leases, retry and backoff policy
//   - API: HTTP bind address and authentication
//   - LLM, Voice, Assets, Compose, Thumbnail, Publish: stage collaborators
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Workflow      Workflow      `toml:"workflow"`
	API           API           `toml:"api"`
	LLM           LLM           `toml:"llm"`
	Voice         Voice         `toml:"voice"`
	Assets        Assets        `toml:"assets"`
	Compose       Compose       `toml:"compose"`
	Thumbnail     Thumbnail     `toml:"thumbnail"`
	Publish       Publish       `toml:"publish"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediafactory.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.MediaDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SQLitePath returns the database file used by the sqlite driver.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Paths.DataDir, "mediafactory.db")
}

// StageTimeout returns the execution timeout for the named stage.
func (c *Config) StageTimeout(stage string) time.Duration {
	if seconds, ok := c.Workflow.StageTimeouts[stage]; ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Duration(c.Workflow.StageTimeout) * time.Second
}

// FinalStage reports the last stage new jobs should run.
func (c *Config) FinalStage() string {
	if c.Publish.Enabled {
		return "publish"
	}
	return "thumbnail"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
