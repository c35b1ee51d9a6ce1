package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediafactory/internal/api"
	"mediafactory/internal/artifacts"
	"mediafactory/internal/config"
	"mediafactory/internal/daemon"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/queue"
	"mediafactory/internal/stage"
	"mediafactory/internal/testsupport"
	"mediafactory/internal/workflow"
)

type writeStage struct {
	stage jobs.Stage
}

func (w writeStage) Stage() jobs.Stage { return w.stage }

func (w writeStage) Execute(_ context.Context, req stage.Request) error {
	name := string(w.stage) + ".txt"
	if err := req.Output.WriteFile(name, []byte(req.Job.Topic)); err != nil {
		return err
	}
	return req.Output.SetPrimary(name)
}

func (w writeStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(w.stage))
}

type testDaemon struct {
	cfg    *config.Config
	jobs   *jobs.Store
	daemon *daemon.Daemon
	server *httptest.Server
}

func newTestDaemon(t *testing.T, configure func(*config.Config)) *testDaemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if configure != nil {
		configure(cfg)
	}
	jobStore, queueStore := testsupport.MustOpenStores(t, cfg, queue.WithPollInterval(5*time.Millisecond))

	var execs []stage.Executor
	for _, s := range jobs.StagesThrough(jobs.StageThumbnail) {
		execs = append(execs, writeStage{stage: s})
	}
	registry, err := stage.NewRegistry(execs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	policy := workflow.Policy{
		DequeueWait:        20 * time.Millisecond,
		ErrorRetryInterval: 10 * time.Millisecond,
		HeartbeatInterval:  time.Second,
		MaxRetries:         3,
		MaxDeliveries:      10,
		BackoffBase:        time.Millisecond,
		BackoffMax:         5 * time.Millisecond,
		StageTimeout:       10 * time.Second,
	}
	pool := workflow.NewPoolWithPolicy(1, workflow.Dependencies{
		Jobs:      jobStore,
		Queue:     queueStore,
		Artifacts: artifacts.NewStore(cfg.Paths.MediaDir),
		Registry:  registry,
	}, policy, logging.NewNop())

	svc := api.NewService(cfg, jobStore, queueStore, logging.NewNop())
	d, err := daemon.New(cfg, svc, pool, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)
	return &testDaemon{cfg: cfg, jobs: jobStore, daemon: d, server: srv}
}

func (td *testDaemon) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = strings.NewReader(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, td.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := td.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", string(data), err)
	}
	return out
}

func (td *testDaemon) waitForStatus(t *testing.T, id string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := td.jobs.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return nil
}

func TestDaemonStartStop(t *testing.T) {
	td := newTestDaemon(t, nil)
	ctx := context.Background()

	if err := td.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := td.daemon.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon and workflow to report running: %+v", status)
	}
	if !strings.HasPrefix(status.Database, "sqlite:") {
		t.Fatalf("unexpected database label %q", status.Database)
	}
	if td.daemon.Addr() != "" {
		t.Fatal("api is disabled, expected no listener")
	}

	// Second start should fail
	if err := td.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	td.daemon.Stop()
	if td.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := td.daemon.Start(ctx); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	td := newTestDaemon(t, nil)
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	other, err := daemon.New(td.cfg, td.daemon.Service(), workflow.NewPoolWithPolicy(1, workflow.Dependencies{}, workflow.Policy{}, nil), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestDaemonServesAPIWhenEnabled(t *testing.T) {
	td := newTestDaemon(t, func(cfg *config.Config) {
		cfg.API.Enabled = true
		cfg.API.Bind = "127.0.0.1:0"
	})
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := td.daemon.Addr()
	if addr == "" {
		t.Fatal("expected api listener address")
	}
	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSubmitRunsPipelineToCompletion(t *testing.T) {
	td := newTestDaemon(t, nil)
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	code, body := td.do(t, http.MethodPost, "/api/jobs", "", map[string]any{"topic": "Test Video"})
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", code, body)
	}
	submitted := decode[api.SubmitResponse](t, body)
	if submitted.ID == "" || submitted.Status != "pending" {
		t.Fatalf("unexpected submit response %+v", submitted)
	}

	td.waitForStatus(t, submitted.ID, jobs.StatusSucceeded)

	code, body = td.do(t, http.MethodGet, "/api/jobs/"+submitted.ID, "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	job := decode[api.JobResponse](t, body).Job
	if job.Niche != "General" || job.LengthSeconds != 480 {
		t.Fatalf("defaults not applied: %+v", job)
	}
	if len(job.Artifacts) != 5 || job.Progress.Percent != 100 {
		t.Fatalf("expected five artifacts and full progress, got %+v", job)
	}

	code, body = td.do(t, http.MethodPost, "/api/jobs/"+submitted.ID+"/cancel", "", nil)
	if code != http.StatusConflict {
		t.Fatalf("cancel of finished job: expected 409, got %d: %s", code, body)
	}
	if kind := decode[api.ErrorResponse](t, body).Kind; kind != "conflict" {
		t.Fatalf("expected conflict kind, got %q", kind)
	}

	code, body = td.do(t, http.MethodGet, "/api/jobs?status=succeeded&limit=10", "", nil)
	if code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", code, body)
	}
	if items := decode[api.JobListResponse](t, body).Items; len(items) != 1 {
		t.Fatalf("expected one succeeded job, got %d", len(items))
	}

	code, body = td.do(t, http.MethodGet, "/api/status", "", nil)
	if code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", code)
	}
	status := decode[api.DaemonStatus](t, body)
	if !status.Running || status.Workflow.JobStats["succeeded"] != 1 || len(status.Workflow.StageHealth) != 5 {
		t.Fatalf("unexpected daemon status %+v", status)
	}
}

func TestCancelAndRetryEndpoints(t *testing.T) {
	td := newTestDaemon(t, nil)

	code, body := td.do(t, http.MethodPost, "/api/jobs", "", map[string]any{"topic": "Cancel me", "lengthSeconds": 60})
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", code, body)
	}
	id := decode[api.SubmitResponse](t, body).ID

	code, body = td.do(t, http.MethodPost, "/api/jobs/"+id+"/cancel", "", nil)
	if code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", code, body)
	}
	if status := decode[api.JobResponse](t, body).Job.Status; status != "cancelled" {
		t.Fatalf("expected cancelled, got %q", status)
	}

	code, _ = td.do(t, http.MethodPost, "/api/jobs/"+id+"/retry", "", nil)
	if code != http.StatusConflict {
		t.Fatalf("retry of cancelled job: expected 409, got %d", code)
	}

	code, body = td.do(t, http.MethodPost, "/api/jobs/retry", "", api.JobIDsRequest{IDs: []string{id, "missing"}})
	if code != http.StatusOK {
		t.Fatalf("bulk retry: expected 200, got %d: %s", code, body)
	}
	bulk := decode[api.RetryJobsResult](t, body)
	if bulk.UpdatedCount != 0 || len(bulk.Items) != 2 || bulk.Items[1].Outcome != api.RetryNotFound {
		t.Fatalf("unexpected bulk retry result %+v", bulk)
	}

	code, body = td.do(t, http.MethodPost, "/api/jobs/cancel", "", api.JobIDsRequest{IDs: []string{id}})
	if code != http.StatusOK {
		t.Fatalf("bulk cancel: expected 200, got %d: %s", code, body)
	}
	if outcome := decode[api.CancelJobsResult](t, body).Items[0].Outcome; outcome != api.CancelAlreadyFinished {
		t.Fatalf("unexpected bulk cancel outcome %q", outcome)
	}
}

func TestRequestErrorsMapToStatusCodes(t *testing.T) {
	td := newTestDaemon(t, nil)
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing topic", http.MethodPost, "/api/jobs", map[string]any{"topic": " "}, http.StatusBadRequest},
		{"short length", http.MethodPost, "/api/jobs", map[string]any{"topic": "x", "lengthSeconds": 2}, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/jobs", "{not json", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/jobs", map[string]any{"topic": "x", "bogus": 1}, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/jobs", nil, http.StatusBadRequest},
		{"unknown job", http.MethodGet, "/api/jobs/does-not-exist", nil, http.StatusNotFound},
		{"cancel unknown", http.MethodPost, "/api/jobs/does-not-exist/cancel", nil, http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/api/jobs?status=queued", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/jobs?limit=abc", nil, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/api/jobs", nil, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := td.do(t, tc.method, tc.path, "", tc.body)
			if code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, code, body)
			}
		})
	}

	items, err := td.jobs.List(context.Background(), jobs.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rejected submissions must not create jobs, found %d", len(items))
	}
}

func TestAuthentication(t *testing.T) {
	const secret = "signing-secret"
	td := newTestDaemon(t, func(cfg *config.Config) {
		cfg.API.Token = "static-token"
		cfg.API.JWTSecret = secret
	})

	code, body := td.do(t, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("health must stay public: %d %s", code, body)
	}
	if code, _ := td.do(t, http.MethodGet, "/api/jobs", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", code)
	}
	if code, _ := td.do(t, http.MethodGet, "/api/jobs", "wrong", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", code)
	}
	if code, _ := td.do(t, http.MethodGet, "/api/jobs", "static-token", nil); code != http.StatusOK {
		t.Fatalf("expected 200 for static token, got %d", code)
	}

	token, err := daemon.IssueToken(secret, "ops", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if code, _ := td.do(t, http.MethodGet, "/api/jobs", token, nil); code != http.StatusOK {
		t.Fatalf("expected 200 for jwt, got %d", code)
	}

	forged, err := daemon.IssueToken("other-secret", "ops", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if code, _ := td.do(t, http.MethodGet, "/api/jobs", forged, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for jwt signed with another secret, got %d", code)
	}

	req, err := http.NewRequest(http.MethodGet, td.server.URL+"/api/status", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-API-Key", "static-token")
	resp, err := td.server.Client().Do(req)
	if err != nil {
		t.Fatalf("GET with api key: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for X-API-Key, got %d", resp.StatusCode)
	}
}

func TestTokenValidation(t *testing.T) {
	if _, err := daemon.IssueToken("", "ops", time.Hour); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := daemon.IssueToken("s", "ops", 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
	expired, err := daemon.IssueToken("s", "ops", time.Nanosecond)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := daemon.ValidateToken("s", expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
	valid, err := daemon.IssueToken("s", "ops", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	claims, err := daemon.ValidateToken("s", valid)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "ops" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}

func TestDashboardRendersJobs(t *testing.T) {
	td := newTestDaemon(t, nil)
	code, _ := td.do(t, http.MethodPost, "/api/jobs", "", map[string]any{"topic": "Deep <Sea> Facts"})
	if code != http.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d", code)
	}

	code, body := td.do(t, http.MethodGet, "/", "", nil)
	if code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", code)
	}
	html := string(body)
	if !strings.Contains(html, "Deep &lt;Sea&gt; Facts") {
		t.Fatalf("expected escaped topic in dashboard:\n%s", html)
	}
	if !strings.Contains(html, "pending: 1") {
		t.Fatalf("expected pending count in dashboard:\n%s", html)
	}
}

func TestJobLogEndpoint(t *testing.T) {
	td := newTestDaemon(t, nil)
	code, body := td.do(t, http.MethodPost, "/api/jobs", "", map[string]any{"topic": "Log me"})
	if code != http.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d", code)
	}
	id := decode[api.SubmitResponse](t, body).ID

	path := filepath.Join(td.cfg.Paths.LogDir, "jobs", id+".log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("script started\nscript finished\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	code, body = td.do(t, http.MethodGet, "/api/jobs/"+id+"/logs?lines=1", "", nil)
	if code != http.StatusOK {
		t.Fatalf("logs: expected 200, got %d: %s", code, body)
	}
	chunk := decode[struct {
		Lines  []string `json:"lines"`
		Offset int64    `json:"offset"`
	}](t, body)
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "script finished" || chunk.Offset == 0 {
		t.Fatalf("unexpected chunk %+v", chunk)
	}

	code, _ = td.do(t, http.MethodGet, "/api/jobs/"+id+"/logs?offset=-4", "", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("negative offset: expected 400, got %d", code)
	}
	code, _ = td.do(t, http.MethodGet, "/api/jobs/missing/logs", "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown job: expected 404, got %d", code)
	}
}
