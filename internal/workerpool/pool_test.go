package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/events"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/queue"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/state"
)

// ===================== JobRunner Mock =========================
type MockRunner struct {
	MockRun func(ctx context.Context, job *models.BuildJob)
}

func (m *MockRunner) Run(ctx context.Context, job *models.BuildJob) {
	m.MockRun(ctx, job)
}

func testQueue(maxConcurrent int) (*queue.BuildQueue, *events.Bus) {
	bus := events.NewBus()
	q := queue.New(queue.Config{
		MaxJobs:        100,
		MaxConcurrent:  maxConcurrent,
		MaxCompleted:   20,
		ProcessTimeout: time.Minute,
	}, bus)
	return q, bus
}

func enqueue(t *testing.T, q *queue.BuildQueue, id string) {
	t.Helper()
	_, err := q.Enqueue(&models.BuildJob{
		ID:         id,
		EntryPoint: "main.c",
		Files:      []models.SourceFile{{Path: "main.c", Content: "x"}},
	})
	require.NoError(t, err)
}

func TestPool_RunsEveryEnqueuedJob(t *testing.T) {
	q, bus := testQueue(4)

	var mu sync.Mutex
	ran := make(map[string]bool)
	done := make(chan struct{}, 16)

	runner := &MockRunner{MockRun: func(ctx context.Context, job *models.BuildJob) {
		mu.Lock()
		ran[job.ID] = true
		mu.Unlock()
		_, err := q.UpdateJob(job.ID, state.MarkDone{})
		require.NoError(t, err)
		done <- struct{}{}
	}}

	pool := New(2, q, bus, runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		enqueue(t, q, id)
	}

	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs to run")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, ran, 5)
}

func TestPool_RespectsSlotCount(t *testing.T) {
	q, bus := testQueue(8) // queue ceiling above pool size: pool bounds

	var concurrent atomic.Int64
	var peak atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{}, 16)

	runner := &MockRunner{MockRun: func(ctx context.Context, job *models.BuildJob) {
		cur := concurrent.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		started <- struct{}{}
		<-release
		concurrent.Add(-1)
		_, _ = q.UpdateJob(job.ID, state.MarkDone{})
	}}

	pool := New(2, q, bus, runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for _, id := range []string{"a", "b", "c", "d"} {
		enqueue(t, q, id)
	}

	// Exactly two starts; the rest wait for slots.
	<-started
	<-started
	select {
	case <-started:
		t.Fatal("third job started despite full pool")
	case <-time.After(100 * time.Millisecond):
	}

	stats := pool.Stats()
	assert.Equal(t, 2, stats.BusyWorkers)
	assert.Equal(t, 0, stats.IdleWorkers)

	close(release)
	<-started
	<-started
	pool.Stop()

	assert.EqualValues(t, 2, peak.Load())
}

func TestPool_QueueCeilingBelowPoolSize(t *testing.T) {
	q, bus := testQueue(1) // queue ceiling below pool size: ceiling bounds

	var peak atomic.Int64
	var concurrent atomic.Int64
	done := make(chan struct{}, 8)

	runner := &MockRunner{MockRun: func(ctx context.Context, job *models.BuildJob) {
		cur := concurrent.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		concurrent.Add(-1)
		_, _ = q.UpdateJob(job.ID, state.MarkDone{})
		done <- struct{}{}
	}}

	pool := New(4, q, bus, runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	for _, id := range []string{"a", "b", "c"} {
		enqueue(t, q, id)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("jobs did not complete")
		}
	}

	assert.EqualValues(t, 1, peak.Load(), "queue ceiling must bound concurrency")
}

func TestPool_Drain(t *testing.T) {
	q, bus := testQueue(4)

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	runner := &MockRunner{MockRun: func(ctx context.Context, job *models.BuildJob) {
		started <- struct{}{}
		<-release
		_, _ = q.UpdateJob(job.ID, state.MarkDone{})
	}}

	pool := New(2, q, bus, runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	enqueue(t, q, "a")
	enqueue(t, q, "b")
	<-started
	<-started

	// Drain must block while jobs are in flight.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer drainCancel()
	assert.Error(t, pool.Drain(drainCtx), "drain should time out while workers are busy")

	close(release)
	require.NoError(t, pool.Drain(context.Background()))
	pool.Stop()

	stats := pool.Stats()
	assert.Equal(t, 0, stats.BusyWorkers)
	assert.Equal(t, int64(2), stats.Queue.Metrics.TotalCompleted)
}
