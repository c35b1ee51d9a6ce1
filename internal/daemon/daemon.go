package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediafactory/internal/api"
	"mediafactory/internal/config"
	"mediafactory/internal/deps"
	"mediafactory/internal/logging"
	"mediafactory/internal/preflight"
	"mediafactory/internal/workflow"
)

// Daemon coordinates the worker pool and the HTTP API and enforces
// single-instance execution per data directory.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *api.Service
	pool    *workflow.Pool
	handler http.Handler
	server  *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Database     string
	LockFilePath string
	MediaDir     string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies. The API server is
// only created when cfg.API.Enabled is set.
func New(cfg *config.Config, service *api.Service, pool *workflow.Pool, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || service == nil || pool == nil {
		return nil, errors.New("daemon requires config, service, and worker pool")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "mediafactoryd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		service:  service,
		pool:     pool,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.handler = newRouter(d, newAuthenticator(cfg.API), d.logger)
	if cfg.API.Enabled {
		d.server = newAPIServer(cfg.API.Bind, d.handler, d.logger)
	}
	return d, nil
}

// Start acquires the daemon lock, launches the worker pool and, when
// enabled, the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediafactory daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pool.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		cancel()
		d.pool.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("mediafactory daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.Addr()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. In-flight
// stages are released back to the queue by the workers.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("mediafactory daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Handler returns the HTTP handler serving the API and dashboard.
func (d *Daemon) Handler() http.Handler {
	return d.handler
}

// Addr returns the address the API listens on, or "" when it is disabled or
// not started.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Service returns the orchestrator the daemon serves.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.pool.Status(ctx),
		Database:     databaseLabel(d.cfg),
		LockFilePath: d.lockPath,
		MediaDir:     d.cfg.Paths.MediaDir,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}

// databaseLabel never includes the DSN, which may carry credentials.
func databaseLabel(cfg *config.Config) string {
	if cfg.Database.Driver == "postgres" {
		return "postgres"
	}
	return "sqlite:" + cfg.SQLitePath()
}
