package jobs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafactory/internal/db"
	"mediafactory/internal/jobs"
	"mediafactory/internal/services"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// forEachBackend runs fn against SQLite and, when configured, Postgres.
func forEachBackend(t *testing.T, fn func(t *testing.T, store *jobs.Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		handle, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = handle.Close() })
		clock := &fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		fn(t, jobs.NewStore(handle, jobs.WithClock(clock.Now)))
	})
	t.Run("postgres", func(t *testing.T) {
		dsn := os.Getenv("MEDIAFACTORY_TEST_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("MEDIAFACTORY_TEST_POSTGRES_DSN not set")
		}
		ctx := context.Background()
		handle, err := db.OpenPostgres(ctx, dsn, 4)
		require.NoError(t, err)
		t.Cleanup(func() { _ = handle.Close() })
		_, err = handle.Exec(ctx, "TRUNCATE jobs, job_stages, artifacts, publish_ledger, work_items")
		require.NoError(t, err)
		fn(t, jobs.NewStore(handle))
	})
}

func newJob(t *testing.T, store *jobs.Store, final jobs.Stage) *jobs.Job {
	t.Helper()
	job, err := store.Create(context.Background(), jobs.NewJob{
		Topic:         "Test Video",
		Niche:         "General",
		LengthSeconds: 480,
		Language:      "en",
		VoiceProfile:  "alloy",
		FinalStage:    final,
	})
	require.NoError(t, err)
	return job
}

func artifactFor(stage jobs.Stage, attempt int) jobs.Artifact {
	return jobs.Artifact{
		Stage:     stage,
		Attempt:   attempt,
		Path:      filepath.Join("/media", string(stage), "out"),
		SHA256:    "abc",
		SizeBytes: 42,
	}
}

func TestCreateValidatesInput(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		_, err := store.Create(ctx, jobs.NewJob{Topic: "  ", LengthSeconds: 480})
		assert.ErrorIs(t, err, services.ErrValidation)

		_, err = store.Create(ctx, jobs.NewJob{Topic: "x", LengthSeconds: 0})
		assert.ErrorIs(t, err, services.ErrValidation)

		_, err = store.Create(ctx, jobs.NewJob{Topic: "x", LengthSeconds: 10, FinalStage: "render"})
		assert.ErrorIs(t, err, services.ErrValidation)
	})
}

func TestCreateAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		created := newJob(t, store, jobs.StageThumbnail)

		job, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Test Video", job.Topic)
		assert.Equal(t, "General", job.Niche)
		assert.Equal(t, 480, job.LengthSeconds)
		assert.Equal(t, jobs.StatusPending, job.Status)
		assert.Equal(t, jobs.StageScript, job.CurrentStage)
		assert.Equal(t, jobs.StageThumbnail, job.FinalStage)
		assert.False(t, job.CreatedAt.IsZero())
		assert.Empty(t, job.Artifacts)

		_, err = store.Get(ctx, "missing")
		assert.ErrorIs(t, err, services.ErrNotFound)
	})
}

func TestBeginAttemptCountsAndStartsJob(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		job := newJob(t, store, jobs.StagePublish)

		first, err := store.BeginAttempt(ctx, job.ID, jobs.StageScript)
		require.NoError(t, err)
		second, err := store.BeginAttempt(ctx, job.ID, jobs.StageScript)
		require.NoError(t, err)
		assert.Equal(t, 1, first)
		assert.Equal(t, 2, second)

		loaded, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusRunning, loaded.Status)
		assert.Equal(t, 2, loaded.Attempts[jobs.StageScript])

		_, err = store.BeginAttempt(ctx, job.ID, jobs.StageVoice)
		assert.ErrorIs(t, err, services.ErrConflict)
	})
}

func TestAdvanceTwiceWithSameFromStageConflicts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		job := newJob(t, store, jobs.StagePublish)

		require.NoError(t, store.Advance(ctx, job.ID, jobs.StageScript, jobs.StageVoice, artifactFor(jobs.StageScript, 1)))
		err := store.Advance(ctx, job.ID, jobs.StageScript, jobs.StageVoice, artifactFor(jobs.StageScript, 2))
		assert.ErrorIs(t, err, services.ErrConflict)

		loaded, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StageVoice, loaded.CurrentStage)
		require.NotNil(t, loaded.Artifacts[jobs.StageScript])
		assert.Equal(t, 1, loaded.Artifacts[jobs.StageScript].Attempt)
	})
}

func TestAdvanceRejectsSkippingStages(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		job := newJob(t, store, jobs.StagePublish)

		err := store.Advance(ctx, job.ID, jobs.StageScript, jobs.StageAssets, artifactFor(jobs.StageScript, 1))
		assert.ErrorIs(t, err, services.ErrValidation)

		err = store.Advance(ctx, job.ID, jobs.StageScript, jobs.StageVoice, jobs.Artifact{})
		assert.ErrorIs(t, err, services.ErrValidation)
	})
}

func TestStagesProgressMonotonicallyToDone(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		job := newJob(t, store, jobs.StageThumbnail)

		previous := -1
		for _, stage := range jobs.StagesThrough(jobs.StageThumbnail) {
			attempt, err := store.BeginAttempt(ctx, job.ID, stage)
			require.NoError(t, err)
			next := jobs.Next(stage, jobs.StageThumbnail)
			require.NoError(t, store.Advance(ctx, job.ID, stage, next, artifactFor(stage, attempt)))

			loaded, err := store.Get(ctx, job.ID)
			require.NoError(t, err)
			idx := loaded.CurrentStage.Index()
			assert.Greater(t, idx, previous, "stage regressed at %s", stage)
			previous = idx
		}

		loaded, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StageDone, loaded.CurrentStage)
		assert.Len(t, loaded.Artifacts, 5)
		assert.NotContains(t, loaded.Artifacts, jobs.StagePublish)

		require.NoError(t, store.MarkTerminal(ctx, job.ID, jobs.StatusSucceeded))
		loaded, err = store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusSucceeded, loaded.Status)
		assert.False(t, loaded.CompletedAt.IsZero())
	})
}

func TestTerminalJobsAreImmutable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		job := newJob(t, store, jobs.StagePublish)

		assert.ErrorIs(t, store.MarkTerminal(ctx, job.ID, jobs.StatusRunning), services.ErrValidation)
		require.NoError(t, store.MarkTerminal(ctx, job.ID, jobs.StatusCancelled))

		assert.ErrorIs(t, store.MarkTerminal(ctx, job.ID, jobs.StatusFailed), services.ErrConflict)
		assert.ErrorIs(t, store.Fail(ctx, job.ID, jobs.StageScript, "late"), services.ErrConflict)
		assert.ErrorIs(t, store.Advance(ctx, job.ID, jobs.StageScript, jobs.StageVoice, artifactFor(jobs.StageScript, 1)), services.ErrConflict)
		_, err := store.BeginAttempt(ctx, job.ID, jobs.StageScript)
		assert.ErrorIs(t, err, services.ErrConflict)
		assert.ErrorIs(t, store.MarkTerminal(ctx, "missing", jobs.StatusFailed), services.ErrNotFound)
	})
}

func TestFailAndReopen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		job := newJob(t, store, jobs.StagePublish)
		require.NoError(t, store.Advance(ctx, job.ID, jobs.StageScript, jobs.StageVoice, artifactFor(jobs.StageScript, 1)))

		_, err := store.Reopen(ctx, job.ID)
		assert.ErrorIs(t, err, services.ErrConflict)

		require.NoError(t, store.Fail(ctx, job.ID, jobs.StageVoice, "rate limited"))

		failed, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusFailed, failed.Status)
		assert.False(t, failed.CompletedAt.IsZero())
		assert.Equal(t, jobs.StageVoice, failed.LastFailedStage)
		assert.Equal(t, "rate limited", failed.ErrorMessage)

		stage, err := store.Reopen(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StageVoice, stage)

		reopened, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusRunning, reopened.Status)
		assert.Empty(t, reopened.ErrorMessage)
		assert.Empty(t, reopened.LastFailedStage)
		assert.True(t, reopened.CompletedAt.IsZero())
		assert.NotNil(t, reopened.Artifacts[jobs.StageScript], "earlier artifacts survive a retry")
	})
}

func TestListAndStats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		first := newJob(t, store, jobs.StagePublish)
		second := newJob(t, store, jobs.StagePublish)
		third := newJob(t, store, jobs.StagePublish)
		require.NoError(t, store.MarkTerminal(ctx, third.ID, jobs.StatusCancelled))

		all, err := store.List(ctx, jobs.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 3)

		pending, err := store.List(ctx, jobs.ListOptions{Statuses: []jobs.Status{jobs.StatusPending}})
		require.NoError(t, err)
		require.Len(t, pending, 2)
		ids := []string{pending[0].ID, pending[1].ID}
		assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

		page, err := store.List(ctx, jobs.ListOptions{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 1)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats[jobs.StatusPending])
		assert.Equal(t, 1, stats[jobs.StatusCancelled])
		assert.Equal(t, 0, stats[jobs.StatusFailed])
	})
}

func TestPublishLedger(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		job := newJob(t, store, jobs.StagePublish)

		_, err := store.LedgerEntry(ctx, job.ID, jobs.StagePublish)
		assert.ErrorIs(t, err, services.ErrNotFound)

		entry, reserved, err := store.ReserveLedger(ctx, job.ID, jobs.StagePublish)
		require.NoError(t, err)
		assert.True(t, reserved)
		assert.Equal(t, jobs.LedgerInFlight, entry.State)

		again, reserved, err := store.ReserveLedger(ctx, job.ID, jobs.StagePublish)
		require.NoError(t, err)
		assert.False(t, reserved)
		assert.Equal(t, jobs.LedgerInFlight, again.State)

		assert.ErrorIs(t, store.CompleteLedger(ctx, job.ID, jobs.StagePublish, jobs.LedgerInFlight, ""), services.ErrValidation)
		require.NoError(t, store.CompleteLedger(ctx, job.ID, jobs.StagePublish, jobs.LedgerPublished, "yt-123"))

		done, err := store.LedgerEntry(ctx, job.ID, jobs.StagePublish)
		require.NoError(t, err)
		assert.Equal(t, jobs.LedgerPublished, done.State)
		assert.Equal(t, "yt-123", done.ExternalID)
	})
}

func TestReserveLedgerClaimsPendingUpload(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		job := newJob(t, store, jobs.StagePublish)

		_, reserved, err := store.ReserveLedger(ctx, job.ID, jobs.StagePublish)
		require.NoError(t, err)
		require.True(t, reserved)
		require.NoError(t, store.CompleteLedger(ctx, job.ID, jobs.StagePublish, jobs.LedgerPendingUpload, ""))

		claimed, reserved, err := store.ReserveLedger(ctx, job.ID, jobs.StagePublish)
		require.NoError(t, err)
		assert.True(t, reserved, "a pending upload is claimed for another attempt")
		assert.Equal(t, jobs.LedgerInFlight, claimed.State)

		_, reserved, err = store.ReserveLedger(ctx, job.ID, jobs.StagePublish)
		require.NoError(t, err)
		assert.False(t, reserved, "only one caller wins the claim")

		require.NoError(t, store.CompleteLedger(ctx, job.ID, jobs.StagePublish, jobs.LedgerPublished, "yt-9"))
		published, reserved, err := store.ReserveLedger(ctx, job.ID, jobs.StagePublish)
		require.NoError(t, err)
		assert.False(t, reserved)
		assert.Equal(t, jobs.LedgerPublished, published.State)
	})
}
