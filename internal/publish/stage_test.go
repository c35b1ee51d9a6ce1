package publish

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/jobs"
	"mediafactory/internal/script"
	"mediafactory/internal/services"
	"mediafactory/internal/services/youtube"
	"mediafactory/internal/stage"
	"mediafactory/internal/testsupport"
)

type memoryLedger struct {
	mu      sync.Mutex
	entries map[string]*jobs.LedgerEntry
}

func newLedger() *memoryLedger {
	return &memoryLedger{entries: map[string]*jobs.LedgerEntry{}}
}

func (l *memoryLedger) ReserveLedger(_ context.Context, id string, st jobs.Stage) (*jobs.LedgerEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.entries[id]; ok {
		claimed := entry.State == jobs.LedgerPendingUpload
		if claimed {
			entry.State = jobs.LedgerInFlight
		}
		copied := *entry
		return &copied, claimed, nil
	}
	entry := &jobs.LedgerEntry{JobID: id, Stage: st, State: jobs.LedgerInFlight}
	l.entries[id] = entry
	copied := *entry
	return &copied, true, nil
}

func (l *memoryLedger) CompleteLedger(_ context.Context, id string, _ jobs.Stage, state jobs.LedgerState, externalID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[id]
	if !ok {
		return services.ErrNotFound
	}
	entry.State = state
	entry.ExternalID = externalID
	return nil
}

// crashingLedger loses every published outcome, as if the process died
// between the upload and the ledger write.
type crashingLedger struct {
	*memoryLedger
}

func (l crashingLedger) CompleteLedger(ctx context.Context, id string, st jobs.Stage, state jobs.LedgerState, externalID string) error {
	if state == jobs.LedgerPublished {
		return errors.New("process killed")
	}
	return l.memoryLedger.CompleteLedger(ctx, id, st, state, externalID)
}

type fakeUploader struct {
	calls []youtube.Video
	id    string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, video youtube.Video) (string, error) {
	f.calls = append(f.calls, video)
	return f.id, f.err
}

func setup(t *testing.T) (*artifacts.Store, *jobs.Job) {
	t.Helper()
	store := artifacts.NewStore(t.TempDir())
	job := testsupport.NewJob("job-publish")
	job.FinalStage = jobs.StagePublish
	testsupport.CommitArtifact(t, store, job, jobs.StageScript, script.PrimaryFile, map[string]string{
		script.PrimaryFile: testsupport.SampleScript,
	})
	testsupport.CommitArtifact(t, store, job, jobs.StageCompose, "video.mp4", map[string]string{"video.mp4": "mp4"})
	testsupport.CommitArtifact(t, store, job, jobs.StageThumbnail, "thumbnail.png", map[string]string{"thumbnail.png": "png"})
	return store, job
}

func request(t *testing.T, store *artifacts.Store, job *jobs.Job) stage.Request {
	t.Helper()
	out := testsupport.BeginAttempt(t, store, job, jobs.StagePublish)
	job.Attempts[jobs.StagePublish]++
	return stage.Request{Job: job, Attempt: job.Attempts[jobs.StagePublish], Output: out}
}

func readResult(t *testing.T, req stage.Request) string {
	t.Helper()
	data, err := os.ReadFile(req.Output.Path(PrimaryFile))
	require.NoError(t, err)
	return string(data)
}

func TestExecuteUploadsOnceAndReusesLedger(t *testing.T) {
	store, job := setup(t)
	ledger := newLedger()
	uploader := &fakeUploader{id: "vid-1"}
	cfg := testsupport.NewConfig(t, testsupport.WithPublishing(""))
	cfg.Publish.AutoPublish = true
	pub := NewPublisherWithDependencies(cfg, ledger, uploader, nil)

	req := request(t, store, job)
	require.NoError(t, pub.Execute(context.Background(), req))
	require.Len(t, uploader.calls, 1)
	call := uploader.calls[0]
	assert.Equal(t, youtube.PrivacyPublic, call.Privacy)
	assert.Equal(t, "Test Video", call.Title)
	assert.Equal(t, job.Artifacts[jobs.StageThumbnail].Path, call.ThumbnailPath)
	assert.Equal(t, "22", call.CategoryID)
	assert.Contains(t, readResult(t, req), `"video_id": "vid-1"`)
	assert.Equal(t, jobs.LedgerPublished, ledger.entries[job.ID].State)

	again := request(t, store, job)
	require.NoError(t, pub.Execute(context.Background(), again))
	assert.Len(t, uploader.calls, 1, "a published video must not be uploaded twice")
	assert.Contains(t, readResult(t, again), "watch?v=vid-1")
}

func TestExecuteWithoutCredentialsIsPendingUpload(t *testing.T) {
	store, job := setup(t)
	ledger := newLedger()
	pub := NewPublisherWithDependencies(testsupport.NewConfig(t), ledger, nil, nil)

	req := request(t, store, job)
	require.NoError(t, pub.Execute(context.Background(), req))
	assert.Contains(t, readResult(t, req), `"state": "pending_upload"`)
	assert.Equal(t, jobs.LedgerPendingUpload, ledger.entries[job.ID].State)
	assert.FileExists(t, req.Output.Path("test-video.txt"))
	thumb, err := os.ReadFile(req.Output.Path("test-video.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(thumb))

	uploader := &fakeUploader{id: "vid-2"}
	pub = NewPublisherWithDependencies(testsupport.NewConfig(t), ledger, uploader, nil)
	retry := request(t, store, job)
	require.NoError(t, pub.Execute(context.Background(), retry))
	assert.Len(t, uploader.calls, 1)
	assert.Equal(t, youtube.PrivacyPrivate, uploader.calls[0].Privacy)
}

func TestExecuteFailedUploadCanRetry(t *testing.T) {
	store, job := setup(t)
	ledger := newLedger()
	uploader := &fakeUploader{err: services.Wrap(services.ErrTransient, "publish", "upload", "http 503", nil)}
	pub := NewPublisherWithDependencies(testsupport.NewConfig(t), ledger, uploader, nil)

	err := pub.Execute(context.Background(), request(t, store, job))
	require.Error(t, err)
	assert.True(t, services.Retryable(err))
	assert.Equal(t, jobs.LedgerPendingUpload, ledger.entries[job.ID].State)

	uploader.err = nil
	uploader.id = "vid-3"
	require.NoError(t, pub.Execute(context.Background(), request(t, store, job)))
	assert.Equal(t, "vid-3", ledger.entries[job.ID].ExternalID)
}

func TestExecuteRetriedUploadIsNotRepeatedAfterCrash(t *testing.T) {
	store, job := setup(t)
	ledger := newLedger()
	uploader := &fakeUploader{err: services.Wrap(services.ErrTransient, "publish", "upload", "http 503", nil)}
	pub := NewPublisherWithDependencies(testsupport.NewConfig(t), crashingLedger{ledger}, uploader, nil)

	require.Error(t, pub.Execute(context.Background(), request(t, store, job)))
	require.Equal(t, jobs.LedgerPendingUpload, ledger.entries[job.ID].State)

	uploader.err = nil
	uploader.id = "vid-5"
	require.Error(t, pub.Execute(context.Background(), request(t, store, job)))
	require.Len(t, uploader.calls, 2)
	assert.Equal(t, jobs.LedgerInFlight, ledger.entries[job.ID].State, "the retried upload holds the reservation")

	err := pub.Execute(context.Background(), request(t, store, job))
	require.Error(t, err)
	assert.False(t, services.Retryable(err))
	assert.Len(t, uploader.calls, 2, "the video must be uploaded at most once after the crash")
}

func TestExecuteInFlightEntryIsPermanent(t *testing.T) {
	store, job := setup(t)
	ledger := newLedger()
	ledger.entries[job.ID] = &jobs.LedgerEntry{JobID: job.ID, Stage: jobs.StagePublish, State: jobs.LedgerInFlight}
	uploader := &fakeUploader{id: "dup"}
	pub := NewPublisherWithDependencies(testsupport.NewConfig(t), ledger, uploader, nil)

	err := pub.Execute(context.Background(), request(t, store, job))
	require.Error(t, err)
	assert.False(t, services.Retryable(err))
	assert.Empty(t, uploader.calls)
}

func TestExecuteThumbnailFailureStillPublishes(t *testing.T) {
	store, job := setup(t)
	ledger := newLedger()
	uploader := &fakeUploader{id: "vid-4", err: errors.Join(youtube.ErrThumbnail, errors.New("forbidden"))}
	pub := NewPublisherWithDependencies(testsupport.NewConfig(t), ledger, uploader, nil)

	req := request(t, store, job)
	require.NoError(t, pub.Execute(context.Background(), req))
	assert.Equal(t, jobs.LedgerPublished, ledger.entries[job.ID].State)
	assert.Contains(t, readResult(t, req), `"warning"`)
}

func TestDescription(t *testing.T) {
	doc := script.Document{
		Hook:     "Hook line.",
		Sections: []script.Section{{Heading: "Start"}, {Heading: "Finish"}},
		CTA:      "Subscribe.",
		Tags:     []string{"home cooking", "tips"},
	}
	want := "Hook line.\n\n- Start\n- Finish\n\nSubscribe.\n\n#homecooking #tips"
	assert.Equal(t, want, Description(doc))
}
