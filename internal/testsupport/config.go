package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediafactory/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Collaborator keys are cleared so stages use their offline fallbacks unless
// an option says otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.LLM.APIKey = ""
	cfgVal.Voice.APIKey = ""
	cfgVal.Assets.APIKey = ""
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMKey sets the LLM API key on the test config.
func WithLLMKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithPublishing enables the publish stage, optionally with a credentials file.
func WithPublishing(credentialsFile string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Publish.Enabled = true
		b.cfg.Publish.CredentialsFile = credentialsFile
	}
}

// WithFastWorkflow shrinks retry and polling timings to whole seconds so
// worker tests finish quickly.
func WithFastWorkflow() ConfigOption {
	return func(b *configBuilder) {
		w := &b.cfg.Workflow
		w.Workers = 1
		w.QueuePollInterval = 1
		w.DequeueWait = 1
		w.ErrorRetryInterval = 1
		w.HeartbeatInterval = 1
		w.VisibilityTimeout = 5
		w.BackoffBase = 1
		w.BackoffMax = 1
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
		b.cfg.Compose.FFmpegBinary = filepath.Join(binDir, "ffmpeg")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.MediaDir)
}
