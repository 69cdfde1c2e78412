package async

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexatlas/toc-extractor/internal/storage"
)

func TestEvictorSweep(t *testing.T) {
	db, repo := openTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"stale-1", "stale-2", "fresh"} {
		require.NoError(t, repo.Create(ctx, &storage.JobRecord{ID: id}))
	}

	backdated := time.Now().UTC().Add(-48 * time.Hour).Format("2006-01-02T15:04:05.000000000Z07:00")
	for _, id := range []string{"stale-1", "stale-2"} {
		_, err := db.Exec(`UPDATE job_records SET created_at = ? WHERE id = ?`, backdated, id)
		require.NoError(t, err)
	}

	evictor := NewEvictor(repo, testLogger(), 24*time.Hour, time.Minute)
	deleted, err := evictor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = repo.GetByID(ctx, "fresh")
	assert.NoError(t, err)
}

func TestEvictorRunStopsOnCancel(t *testing.T) {
	_, repo := openTestRepo(t)

	evictor := NewEvictor(repo, testLogger(), time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		evictor.Run(ctx)
	}()

	// Let at least one tick fire, then cancel.
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("evictor did not stop after context cancellation")
	}
}

func TestEvictorDefaults(t *testing.T) {
	_, repo := openTestRepo(t)

	evictor := NewEvictor(repo, testLogger(), 0, 0)
	assert.Equal(t, 24*time.Hour, evictor.retention)
	assert.Equal(t, 10*time.Minute, evictor.interval)
}

func TestWorkerQueueShutdownDrains(t *testing.T) {
	processed := make(chan string, 10)
	handler := func(ctx context.Context, job Job) {
		time.Sleep(20 * time.Millisecond)
		processed <- job.TicketID
	}

	q := NewWorkerQueue(handler, testLogger(), WithWorkers(2), WithQueueSize(10))

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{TicketID: id}))
	}

	q.Shutdown(context.Background())
	assert.Len(t, processed, 4, "all queued jobs should finish before shutdown returns")

	// Intake is closed after shutdown.
	err := q.Enqueue(context.Background(), Job{TicketID: "late"})
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Repeated shutdown is a no-op.
	q.Shutdown(context.Background())
}
