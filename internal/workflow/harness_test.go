package workflow_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/config"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/queue"
	"mediafactory/internal/stage"
	"mediafactory/internal/testsupport"
	"mediafactory/internal/workflow"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeExecutor writes <stage>.txt as its primary file. failures[i] is
// returned from call i+1; after the list is exhausted calls succeed.
type fakeExecutor struct {
	stage    jobs.Stage
	failures []error
	always   error
	hook     func(ctx context.Context, req stage.Request) error
	health   stage.Health

	mu     sync.Mutex
	calls  int
	inputs []*jobs.Artifact
}

func newFakeExecutor(s jobs.Stage) *fakeExecutor {
	return &fakeExecutor{stage: s, health: stage.Healthy(string(s))}
}

func (f *fakeExecutor) Stage() jobs.Stage { return f.stage }

func (f *fakeExecutor) Execute(ctx context.Context, req stage.Request) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.inputs = append(f.inputs, req.Input)
	f.mu.Unlock()

	if f.hook != nil {
		if err := f.hook(ctx, req); err != nil {
			return err
		}
	}
	if f.always != nil {
		return f.always
	}
	if n <= len(f.failures) && f.failures[n-1] != nil {
		return f.failures[n-1]
	}
	name := string(f.stage) + ".txt"
	if err := req.Output.WriteFile(name, []byte(fmt.Sprintf("%s attempt %d\n", f.stage, req.Attempt))); err != nil {
		return err
	}
	return req.Output.SetPrimary(name)
}

func (f *fakeExecutor) HealthCheck(context.Context) stage.Health { return f.health }

func (f *fakeExecutor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	t         *testing.T
	cfg       *config.Config
	jobs      *jobs.Store
	queue     *queue.Store
	artifacts *artifacts.Store
	clock     *clock
	executors map[jobs.Stage]*fakeExecutor
	registry  *stage.Registry
	policy    workflow.Policy
	worker    *workflow.Worker
}

func testPolicy() workflow.Policy {
	return workflow.Policy{
		DequeueWait:        0,
		ErrorRetryInterval: time.Millisecond,
		HeartbeatInterval:  time.Hour,
		MaxRetries:         3,
		MaxDeliveries:      10,
		BackoffBase:        10 * time.Second,
		BackoffMax:         time.Minute,
		StageTimeout:       30 * time.Second,
	}
}

// newHarness wires real SQLite stores with fake executors for every stage up
// to final. The queue runs on a manual clock so nack delays can be skipped.
func newHarness(t *testing.T, final jobs.Stage) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	jobStore, queueStore := testsupport.MustOpenStores(t, cfg, queue.WithClock(c.Now), queue.WithVisibility(time.Minute))

	h := &harness{
		t:         t,
		cfg:       cfg,
		jobs:      jobStore,
		queue:     queueStore,
		artifacts: artifacts.NewStore(cfg.Paths.MediaDir),
		clock:     c,
		executors: map[jobs.Stage]*fakeExecutor{},
		policy:    testPolicy(),
	}
	var execs []stage.Executor
	for _, s := range jobs.StagesThrough(final) {
		exec := newFakeExecutor(s)
		h.executors[s] = exec
		execs = append(execs, exec)
	}
	registry, err := stage.NewRegistry(execs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	h.registry = registry
	h.rebuild()
	return h
}

// rebuild recreates the worker after the test changed the policy or stores.
func (h *harness) rebuild() {
	h.worker = workflow.NewWorker("test-worker", h.deps(), h.policy, logging.NewNop())
}

func (h *harness) deps() workflow.Dependencies {
	return workflow.Dependencies{
		Jobs:      h.jobs,
		Queue:     h.queue,
		Artifacts: h.artifacts,
		Registry:  h.registry,
	}
}

func (h *harness) submit(final jobs.Stage) *jobs.Job {
	h.t.Helper()
	ctx := context.Background()
	job, err := h.jobs.Create(ctx, jobs.NewJob{
		Topic:         "Test Video",
		Niche:         "General",
		LengthSeconds: 480,
		Language:      "en",
		VoiceProfile:  "alloy",
		FinalStage:    final,
	})
	if err != nil {
		h.t.Fatalf("Create: %v", err)
	}
	if err := h.queue.Enqueue(ctx, queue.WorkItem{JobID: job.ID, Stage: jobs.StageScript, Attempt: 1}); err != nil {
		h.t.Fatalf("Enqueue: %v", err)
	}
	return job
}

// drain processes items until the queue has nothing visible, moving the
// clock past any backoff between steps.
func (h *harness) drain(ctx context.Context) int {
	h.t.Helper()
	handled := 0
	for range 100 {
		h.clock.Advance(2 * time.Minute)
		ok, err := h.worker.ProcessNext(ctx)
		if err != nil {
			h.t.Fatalf("ProcessNext: %v", err)
		}
		if !ok {
			return handled
		}
		handled++
	}
	h.t.Fatal("queue did not drain after 100 items")
	return handled
}

func (h *harness) get(id string) *jobs.Job {
	h.t.Helper()
	job, err := h.jobs.Get(context.Background(), id)
	if err != nil {
		h.t.Fatalf("Get(%s): %v", id, err)
	}
	return job
}

func (h *harness) queued() queue.Stats {
	h.t.Helper()
	stats, err := h.queue.Stats(context.Background())
	if err != nil {
		h.t.Fatalf("queue Stats: %v", err)
	}
	return stats
}

func (h *harness) attemptDir(jobID string, s jobs.Stage, attempt int) string {
	return filepath.Join(h.artifacts.StageDir(jobID, s), fmt.Sprintf("attempt-%d", attempt))
}

func requireExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func requireMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected %s to be absent", path)
	}
}
