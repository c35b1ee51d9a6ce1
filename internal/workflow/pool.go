package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mediafactory/internal/config"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/queue"
	"mediafactory/internal/stage"
)

// Pool runs several workers in one process.
type Pool struct {
	deps    Dependencies
	workers []*Worker
	tracker *tracker
	logger  *slog.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPool builds cfg.Workflow.Workers workers sharing deps.
func NewPool(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Pool {
	return NewPoolWithPolicy(cfg.Workflow.Workers, deps, PolicyFromConfig(cfg), logger)
}

// NewPoolWithPolicy builds count workers with an explicit policy.
func NewPoolWithPolicy(count int, deps Dependencies, policy Policy, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	if count < 1 {
		count = 1
	}
	t := &tracker{}
	p := &Pool{deps: deps, tracker: t, logger: logging.NewComponentLogger(logger, "workflow-pool")}
	prefix := workerPrefix()
	for i := range count {
		w := NewWorker(fmt.Sprintf("%s-%d", prefix, i+1), deps, policy, logger)
		w.tracker = t
		p.workers = append(p.workers, w)
	}
	return p
}

// Workers returns the pool's workers.
func (p *Pool) Workers() []*Worker {
	return append([]*Worker(nil), p.workers...)
}

// Run blocks until ctx is cancelled and every worker has returned.
func (p *Pool) Run(ctx context.Context) error {
	if p.deps.Registry == nil {
		return errors.New("workflow stages not configured")
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		group.Go(func() error {
			return w.Run(groupCtx)
		})
	}
	p.logger.Info("worker pool started",
		logging.Int("workers", len(p.workers)),
		logging.String(logging.FieldEventType, "pool_start"),
	)
	err := group.Wait()
	p.logger.Info("worker pool stopped", logging.String(logging.FieldEventType, "pool_stop"))
	return err
}

// Start runs the pool in the background until Stop is called or ctx ends.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("workflow already running")
	}
	if p.deps.Registry == nil {
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.done = make(chan struct{})
	done := p.done
	go func() {
		if err := p.Run(runCtx); err != nil {
			p.tracker.recordError(err)
		}
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(done)
	}()
	return nil
}

// Stop cancels a started pool and waits for in-flight items to be released.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	Processed   int64
	Failed      int64
	LastError   string
	LastJobID   string
	LastStage   jobs.Stage
	LastSeen    time.Time
	QueueStats  queue.Stats
	JobStats    map[jobs.Status]int
	StageHealth []stage.Health
}

// Status returns the latest workflow information.
func (p *Pool) Status(ctx context.Context) StatusSummary {
	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()

	summary := StatusSummary{Running: running, Workers: len(p.workers)}
	p.tracker.fill(&summary)

	if p.deps.Queue != nil {
		stats, err := p.deps.Queue.Stats(ctx)
		if err != nil {
			p.logger.Warn("failed to read queue stats", logging.Error(err))
		}
		summary.QueueStats = stats
	}
	if p.deps.Jobs != nil {
		stats, err := p.deps.Jobs.Stats(ctx)
		if err != nil {
			p.logger.Warn("failed to read job stats", logging.Error(err))
		}
		summary.JobStats = stats
	}
	if p.deps.Registry != nil {
		summary.StageHealth = p.deps.Registry.Health(ctx)
	}
	return summary
}

// tracker aggregates worker outcomes for Status. A nil tracker ignores calls.
type tracker struct {
	mu        sync.Mutex
	processed int64
	failed    int64
	lastErr   error
	lastJobID string
	lastStage jobs.Stage
	lastSeen  time.Time
}

func (t *tracker) recordItem(d *queue.Delivery) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.lastJobID = d.JobID
	t.lastStage = d.Stage
	t.lastSeen = time.Now()
	t.mu.Unlock()
}

func (t *tracker) recordSuccess() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.processed++
	t.mu.Unlock()
}

func (t *tracker) recordFailure(err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.failed++
	t.lastErr = err
	t.mu.Unlock()
}

func (t *tracker) recordError(err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
}

func (t *tracker) fill(s *StatusSummary) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s.Processed = t.processed
	s.Failed = t.failed
	s.LastJobID = t.lastJobID
	s.LastStage = t.lastStage
	s.LastSeen = t.lastSeen
	if t.lastErr != nil {
		s.LastError = t.lastErr.Error()
	}
}

func workerPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
