package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/config"
	"mediafactory/internal/daemon"
	"mediafactory/internal/logging"
	"mediafactory/internal/preflight"
)

// Options configures process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Workers overrides workflow.workers when positive.
	Workers int
	// DisableAPI keeps the HTTP API off even when api.enabled is set.
	DisableAPI bool
}

// Run starts the mediafactory daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, logPath, err := newProcessLogger(cfg, "mediafactoryd", opts)
	if err != nil {
		return err
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, "mediafactoryd.log", logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update mediafactoryd.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "mediafactoryd-*.log", logPath)
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, filepath.Join(cfg.Paths.LogDir, "jobs"), "*.log", "")
	if cfg.Logging.RetentionDays > 0 {
		retention := time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour
		artifacts.NewStore(cfg.Paths.MediaDir).CleanStalePartials(cmdCtx, retention, logger)
	}
	pidPath := filepath.Join(cfg.Paths.DataDir, "mediafactoryd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	if opts.DisableAPI {
		cfg.API.Enabled = false
	}
	rt, err := Open(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open stores", logging.Error(err))
		return err
	}
	defer rt.Close()

	pool, err := rt.NewPool(signalCtx, opts.Workers)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, rt.Service, pool, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("mediafactory daemon shutting down")
	return nil
}

// RunWorkers runs a worker pool in the foreground without the HTTP API or
// the daemon lock. Several worker processes may share one database.
func RunWorkers(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, _, err := newProcessLogger(cfg, "worker", opts)
	if err != nil {
		return err
	}
	logPreflight(signalCtx, logger, cfg)

	rt, err := Open(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	pool, err := rt.NewPool(signalCtx, opts.Workers)
	if err != nil {
		return err
	}
	err = pool.Run(signalCtx)
	if signalCtx.Err() != nil {
		return nil
	}
	return err
}

func newProcessLogger(cfg *config.Config, prefix string, opts Options) (*slog.Logger, string, error) {
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("%s-%s.log", prefix, runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return nil, "", fmt.Errorf("init logger: %w", err)
	}
	return logger, logPath, nil
}

// logPreflight records every failed check as a warning. Failures do not stop
// startup: stages without collaborators fall back or fail their jobs.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run `mediafactory health` for a full report"),
		)
	}
	logger.Info("preflight complete",
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
		logging.String(logging.FieldEventType, "preflight_complete"),
	)
}

func ensureCurrentLogPointer(logDir, name, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, name)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
