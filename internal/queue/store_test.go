package queue_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafactory/internal/db"
	"mediafactory/internal/jobs"
	"mediafactory/internal/queue"
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

func forEachBackend(t *testing.T, fn func(t *testing.T, q *queue.Store, c *clock)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		handle, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = handle.Close() })
		c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		fn(t, queue.NewStore(handle,
			queue.WithClock(c.Now),
			queue.WithVisibility(time.Minute),
			queue.WithPollInterval(5*time.Millisecond)), c)
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
		_, err = handle.Exec(ctx, "TRUNCATE work_items")
		require.NoError(t, err)
		c := &clock{t: time.Now().UTC()}
		fn(t, queue.NewStore(handle,
			queue.WithClock(c.Now),
			queue.WithVisibility(time.Minute),
			queue.WithPollInterval(5*time.Millisecond)), c)
	})
}

func TestEnqueueIsIdempotentPerJobStage(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx := context.Background()
		item := queue.WorkItem{JobID: "job-1", Stage: jobs.StageScript}
		require.NoError(t, q.Enqueue(ctx, item))
		require.NoError(t, q.Enqueue(ctx, item))

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total())

		assert.Error(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-1", Stage: jobs.StageDone}))
		assert.Error(t, q.Enqueue(ctx, queue.WorkItem{Stage: jobs.StageScript}))
	})
}

func TestDequeueLeasesAndAckRemoves(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-1", Stage: jobs.StageScript}))

		d, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, "job-1", d.JobID)
		assert.Equal(t, jobs.StageScript, d.Stage)
		assert.Equal(t, 1, d.Attempt)
		assert.Equal(t, 1, d.Deliveries)
		assert.NotEmpty(t, d.Token)

		again, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		assert.Nil(t, again, "leased item must be invisible")

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Leased: 1}, stats)

		require.NoError(t, q.Ack(ctx, d))
		stats, err = q.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.Total())
	})
}

func TestDequeueTimesOutWithNilDelivery(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		start := time.Now()
		d, err := q.Dequeue(context.Background(), 30*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, d)
		assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	})
}

func TestDequeueHonoursContextCancellation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := q.Dequeue(ctx, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExpiredLeaseIsRedelivered(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-1", Stage: jobs.StageVoice}))

		first, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, first)

		c.Advance(2 * time.Minute)
		second, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, second, "crashed consumer's item must come back")
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 2, second.Deliveries)
		assert.NotEqual(t, first.Token, second.Token)

		assert.ErrorIs(t, q.Ack(ctx, first), queue.ErrLeaseLost)
		require.NoError(t, q.Ack(ctx, second))
	})
}

func TestExtendKeepsLease(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-1", Stage: jobs.StageCompose}))
		d, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, d)

		c.Advance(45 * time.Second)
		require.NoError(t, q.Extend(ctx, d))
		c.Advance(45 * time.Second)

		other, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		assert.Nil(t, other)
		require.NoError(t, q.Ack(ctx, d))
	})
}

func TestNackDelaysAndCountsAttempt(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-1", Stage: jobs.StageAssets}))
		d, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, d)

		require.NoError(t, q.Nack(ctx, d, 10*time.Second, "rate limited"))
		assert.ErrorIs(t, q.Nack(ctx, d, 0, "twice"), queue.ErrLeaseLost)

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Delayed: 1}, stats)

		none, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		assert.Nil(t, none)

		c.Advance(11 * time.Second)
		retry, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, retry)
		assert.Equal(t, 2, retry.Attempt)
		assert.Equal(t, "rate limited", retry.LastError)
	})
}

func TestReleaseDoesNotCountAttempt(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-1", Stage: jobs.StageThumbnail}))
		d, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, d)
		require.NoError(t, q.Release(ctx, d, 0))

		again, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.Equal(t, 1, again.Attempt)
		assert.Equal(t, 2, again.Deliveries)
	})
}

func TestDequeueIsFIFOAndPurgeRemovesJobItems(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-a", Stage: jobs.StageScript}))
		c.Advance(time.Millisecond)
		require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-b", Stage: jobs.StageScript}))
		c.Advance(time.Millisecond)
		require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-a", Stage: jobs.StageVoice}))

		entries, err := q.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "job-a", entries[0].JobID)

		removed, err := q.Purge(ctx, "job-a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, removed)

		d, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, "job-b", d.JobID)
	})
}

func TestConcurrentConsumersNeverShareALease(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q *queue.Store, c *clock) {
		ctx := context.Background()
		for i := 0; i < 20; i++ {
			require.NoError(t, q.Enqueue(ctx, queue.WorkItem{JobID: "job-" + string(rune('a'+i)), Stage: jobs.StageScript}))
		}

		var (
			mu   sync.Mutex
			seen = map[string]int{}
			wg   sync.WaitGroup
		)
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					d, err := q.Dequeue(ctx, 0)
					if err != nil {
						t.Errorf("dequeue: %v", err)
						return
					}
					if d == nil {
						return
					}
					mu.Lock()
					seen[d.ID]++
					mu.Unlock()
					if err := q.Ack(ctx, d); err != nil {
						t.Errorf("ack: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, 20)
		for id, count := range seen {
			assert.Equal(t, 1, count, "item %s delivered more than once", id)
		}
	})
}
