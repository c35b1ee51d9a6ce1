package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mediafactory/internal/config"
)

// JobLogs writes a dedicated log file per job next to the daemon log so an
// operator can read one job's history across workers and retries.
type JobLogs struct {
	baseDir string
	level   slog.Level
}

// NewJobLogs creates job logs under <log_dir>/jobs. A config without a log
// directory disables them.
func NewJobLogs(cfg *config.Config) *JobLogs {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return nil
	}
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return &JobLogs{baseDir: filepath.Join(cfg.Paths.LogDir, "jobs"), level: level}
}

// Path returns the log file of a job.
func (j *JobLogs) Path(jobID string) string {
	return filepath.Join(j.baseDir, jobID+".log")
}

// Attach returns a logger that writes to base and appends JSON lines to the
// job's file. Callers close the returned closer when the work item is done.
func (j *JobLogs) Attach(base *slog.Logger, jobID string) (*slog.Logger, io.Closer, error) {
	if j == nil || strings.TrimSpace(jobID) == "" {
		return base, nopCloser{}, nil
	}
	if err := os.MkdirAll(j.baseDir, 0o755); err != nil {
		return base, nopCloser{}, fmt.Errorf("ensure job log directory: %w", err)
	}
	file, err := os.OpenFile(j.Path(jobID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return base, nopCloser{}, fmt.Errorf("open job log: %w", err)
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: j.level})
	return slog.New(teeHandler{base.Handler(), fileHandler}), file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// teeHandler fans a record out to several handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
