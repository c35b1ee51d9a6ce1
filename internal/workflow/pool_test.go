package workflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/assets"
	"mediafactory/internal/compose"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/queue"
	"mediafactory/internal/script"
	"mediafactory/internal/stage"
	"mediafactory/internal/testsupport"
	"mediafactory/internal/thumbnail"
	"mediafactory/internal/voice"
	"mediafactory/internal/workflow"
)

func TestPolicyBackoffDoublesUpToMax(t *testing.T) {
	p := workflow.Policy{BackoffBase: 10 * time.Second, BackoffMax: time.Minute}
	cases := map[int]time.Duration{
		0: 10 * time.Second,
		1: 10 * time.Second,
		2: 20 * time.Second,
		3: 40 * time.Second,
		4: time.Minute,
		9: time.Minute,
	}
	for attempt, want := range cases {
		if got := p.Backoff(attempt); got != want {
			t.Fatalf("Backoff(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestPolicyFromConfigAppliesStageOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StageTimeout = 60
	cfg.Workflow.StageTimeouts = map[string]int{"compose": 600}

	p := workflow.PolicyFromConfig(cfg)
	if got := p.Timeout(jobs.StageCompose); got != 10*time.Minute {
		t.Fatalf("compose timeout = %s, want 10m", got)
	}
	if got := p.Timeout(jobs.StageScript); got != time.Minute {
		t.Fatalf("script timeout = %s, want 1m", got)
	}
}

// waitFor polls until every job is terminal or the deadline passes.
func waitFor(t *testing.T, store *jobs.Store, ids []string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		done := 0
		for _, id := range ids {
			job, err := store.Get(context.Background(), id)
			if err != nil {
				t.Fatalf("Get(%s): %v", id, err)
			}
			if job.Status.Terminal() {
				done++
			}
		}
		if done == len(ids) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("jobs did not finish within %s", timeout)
}

func realtimePolicy() workflow.Policy {
	p := testPolicy()
	p.DequeueWait = 20 * time.Millisecond
	p.BackoffBase = time.Millisecond
	p.BackoffMax = 5 * time.Millisecond
	return p
}

func TestPoolProcessesJobsConcurrently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jobStore, queueStore := testsupport.MustOpenStores(t, cfg, queue.WithPollInterval(5*time.Millisecond))
	var execs []stage.Executor
	fakes := map[jobs.Stage]*fakeExecutor{}
	for _, s := range jobs.StagesThrough(jobs.StageThumbnail) {
		fakes[s] = newFakeExecutor(s)
		execs = append(execs, fakes[s])
	}
	registry, err := stage.NewRegistry(execs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	pool := workflow.NewPoolWithPolicy(3, workflow.Dependencies{
		Jobs:      jobStore,
		Queue:     queueStore,
		Artifacts: artifacts.NewStore(cfg.Paths.MediaDir),
		Registry:  registry,
	}, realtimePolicy(), logging.NewNop())
	if n := len(pool.Workers()); n != 3 {
		t.Fatalf("expected 3 workers, got %d", n)
	}

	ctx := context.Background()
	var ids []string
	for i := range 6 {
		job, err := jobStore.Create(ctx, jobs.NewJob{
			Topic:         fmt.Sprintf("Topic %d", i),
			Niche:         "General",
			LengthSeconds: 60,
			Language:      "en",
			VoiceProfile:  "alloy",
			FinalStage:    jobs.StageThumbnail,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := queueStore.Enqueue(ctx, queue.WorkItem{JobID: job.ID, Stage: jobs.StageScript}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, job.ID)
	}

	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pool.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail while running")
	}
	waitFor(t, jobStore, ids, 10*time.Second)

	status := pool.Status(ctx)
	if !status.Running || status.Workers != 3 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Processed != int64(len(ids)*5) {
		t.Fatalf("expected %d processed stages, got %d", len(ids)*5, status.Processed)
	}
	if status.JobStats[jobs.StatusSucceeded] != len(ids) {
		t.Fatalf("expected %d succeeded jobs, got %v", len(ids), status.JobStats)
	}
	if len(status.StageHealth) != 5 {
		t.Fatalf("expected health for 5 stages, got %d", len(status.StageHealth))
	}

	pool.Stop()
	if pool.Status(ctx).Running {
		t.Fatal("pool still running after Stop")
	}
	for s, exec := range fakes {
		if exec.Calls() != len(ids) {
			t.Fatalf("stage %s ran %d times, want %d", s, exec.Calls(), len(ids))
		}
	}
}

func TestPoolRequiresStages(t *testing.T) {
	pool := workflow.NewPoolWithPolicy(1, workflow.Dependencies{}, testPolicy(), nil)
	if err := pool.Start(context.Background()); err == nil {
		t.Fatal("expected Start without a registry to fail")
	}
}

type scriptCompleter struct{}

func (scriptCompleter) CompleteJSON(context.Context, string, string) (string, error) {
	return testsupport.SampleScript, nil
}
func (scriptCompleter) HealthCheck(context.Context) error { return nil }
func (scriptCompleter) Provider() string                  { return "fake" }
func (scriptCompleter) Close() error                      { return nil }

func TestPipelineWithStageExecutors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jobStore, queueStore := testsupport.MustOpenStores(t, cfg)
	runner := &testsupport.FakeFFmpeg{Length: 45 * time.Second}

	registry, err := stage.NewRegistry(
		script.NewGenerator(cfg, scriptCompleter{}, nil),
		voice.NewNarratorWithDependencies(cfg, nil, runner, nil),
		assets.NewSourcerWithDependencies(cfg, nil, nil),
		compose.NewComposerWithDependencies(cfg, runner, nil, nil),
		thumbnail.NewRenderer(cfg, nil),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	worker := workflow.NewWorker("e2e", workflow.Dependencies{
		Jobs:      jobStore,
		Queue:     queueStore,
		Artifacts: artifacts.NewStore(cfg.Paths.MediaDir),
		Registry:  registry,
		JobLogs:   workflow.NewJobLogs(cfg),
	}, testPolicy(), logging.NewNop())

	ctx := context.Background()
	job, err := jobStore.Create(ctx, jobs.NewJob{
		Topic:         "Test Video",
		Niche:         "General",
		LengthSeconds: 480,
		Language:      "en",
		VoiceProfile:  "alloy",
		FinalStage:    jobs.StageThumbnail,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := queueStore.Enqueue(ctx, queue.WorkItem{JobID: job.ID, Stage: jobs.StageScript}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	for range 5 {
		ok, err := worker.ProcessNext(ctx)
		if err != nil || !ok {
			t.Fatalf("ProcessNext: ok=%v err=%v", ok, err)
		}
	}

	got, err := jobStore.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s at %s (%s)", got.Status, got.LastFailedStage, got.ErrorMessage)
	}
	for _, s := range jobs.StagesThrough(jobs.StageThumbnail) {
		if got.Artifacts[s] == nil {
			t.Fatalf("missing %s artifact", s)
		}
		requireExists(t, got.Artifacts[s].Path)
	}
	requireExists(t, workflow.NewJobLogs(cfg).Path(job.ID))
}

func TestBuildStagesRegistersPipelineThroughThumbnail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set, err := workflow.BuildStages(context.Background(), cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("BuildStages: %v", err)
	}
	defer set.Close()

	got := set.Registry.Stages()
	want := jobs.StagesThrough(jobs.StageThumbnail)
	if len(got) != len(want) {
		t.Fatalf("registered stages %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("registered stages %v, want %v", got, want)
		}
	}
	if _, ok := set.Registry.Lookup(jobs.StagePublish); ok {
		t.Fatal("publish registered while publishing is disabled")
	}
}
