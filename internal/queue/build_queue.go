package queue

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/custom_errors"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/events"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/heap"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/state"
)

// Config carries the queue's capacity knobs.
type Config struct {
	// MaxJobs caps the number of stored job records; enqueue runs eviction
	// when the cap is hit and rejects if the store is still full.
	MaxJobs int
	// MaxConcurrent caps the processing set. Note this is independent of the
	// worker pool size; if the pool is larger, the extra workers idle, and if
	// it is smaller, this ceiling goes unused.
	MaxConcurrent int
	// MaxCompleted is the number of terminal jobs retained by eviction.
	MaxCompleted int
	// ProcessTimeout is the deadline applied by the periodic timeout sweep.
	ProcessTimeout time.Duration
}

// BuildQueue composes the priority heap and job store behind one mutex.
// It is the single writer: workers never touch queue internals, they report
// through UpdateJob and CancelJob. All returned jobs are clones.
type BuildQueue struct {
	mu    sync.Mutex
	cfg   Config
	store *jobStore
	heap  *heap.PriorityHeap
	bus   *events.Bus

	totalEnqueued  int64
	totalCompleted int64
	totalFailed    int64
	totalCancelled int64
	totalTimeout   int64
	window         rollingWindow
}

func New(cfg Config, bus *events.Bus) *BuildQueue {
	return &BuildQueue{
		cfg:   cfg,
		store: newJobStore(cfg.MaxJobs, cfg.MaxCompleted),
		heap:  heap.New(),
		bus:   bus,
	}
}

// Enqueue assigns a priority tier (unless the caller supplied one), stores
// the job pending and makes it schedulable. Returns ErrQueueFull if eviction
// cannot free a slot.
func (q *BuildQueue) Enqueue(job *models.BuildJob) (*models.BuildJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.store.len() >= q.cfg.MaxJobs {
		q.store.evict()
	}
	if q.store.len() >= q.cfg.MaxJobs {
		return nil, custom_errors.ErrQueueFull
	}

	stored := job.Clone()
	if stored.Priority <= 0 {
		stored.Priority = stored.ComputePriority()
	}
	stored.Status = state.StatusPending
	stored.EnqueuedAt = time.Now()
	stored.StartedAt = nil
	stored.CompletedAt = nil
	stored.Error = nil

	q.store.put(stored)
	q.heap.Push(heap.Item{ID: stored.ID, Priority: stored.Priority})
	q.totalEnqueued++

	q.bus.Signal(events.Signal{Kind: events.SignalJobAdded, JobID: stored.ID})
	return stored.Clone(), nil
}

// Dequeue hands out the highest-priority pending job, or nil when the
// concurrency ceiling is reached or nothing is pending. Ids that raced with
// cancellation are skipped in an iterative loop bounded by the heap size.
func (q *BuildQueue) Dequeue() *models.BuildJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.store.processingCount() >= q.cfg.MaxConcurrent {
		return nil
	}

	for q.heap.Len() > 0 {
		it, ok := q.heap.PopMax()
		if !ok {
			return nil
		}
		job, found := q.store.get(it.ID)
		if !found || job.Status != state.StatusPending {
			// Raced with cancellation or eviction; keep popping.
			continue
		}

		now := time.Now()
		job.Status = state.StatusProcessing
		job.StartedAt = &now
		q.store.markProcessing(job.ID)
		q.bus.Signal(events.Signal{Kind: events.SignalJobStarted, JobID: job.ID})
		return job.Clone()
	}
	return nil
}

// UpdateJob applies one of the closed patch variants. Invalid transitions are
// rejected. Terminal patches stamp CompletedAt, free the concurrency slot and
// feed the metrics.
func (q *BuildQueue) UpdateJob(id string, patch state.Patch) (*models.BuildJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.store.get(id)
	if !ok {
		return nil, custom_errors.ErrJobNotFound
	}
	if !state.IsValidTransition(job.Status, patch.Status()) {
		return nil, fmt.Errorf("invalid transition %s -> %s for job %s", job.Status, patch.Status(), id)
	}

	job.Status = patch.Status()
	switch p := patch.(type) {
	case state.MarkProcessing:
		now := time.Now()
		job.StartedAt = &now
		q.store.markProcessing(id)
	case state.MarkDone:
		job.PreviewPath = p.PreviewPath
	case state.MarkError:
		msg := p.Message
		job.Error = &msg
	case state.MarkTimeout:
		msg := (&custom_errors.TimeoutError{Deadline: p.Deadline}).Error()
		job.Error = &msg
	case state.MarkCancelled:
		msg := (&custom_errors.CancelledError{Reason: p.Reason}).Error()
		job.Error = &msg
	}

	if job.Status.Terminal() {
		q.finishLocked(job)
	}

	q.bus.Signal(events.Signal{Kind: events.SignalJobUpdated, JobID: id})
	return job.Clone(), nil
}

// finishLocked does the terminal bookkeeping shared by UpdateJob, CancelJob
// and TimeoutSweep. Caller holds the mutex.
func (q *BuildQueue) finishLocked(job *models.BuildJob) {
	if job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}
	q.store.unmarkProcessing(job.ID)

	if job.StartedAt != nil {
		q.window.add(job.CompletedAt.Sub(*job.StartedAt))
	}

	switch job.Status {
	case state.StatusDone:
		q.totalCompleted++
	case state.StatusError:
		q.totalFailed++
	case state.StatusCancelled:
		q.totalCancelled++
	case state.StatusTimeout:
		q.totalTimeout++
	}
}

// CancelJob cancels a pending job. Returns false if the job is unknown or no
// longer pending; in-flight jobs cannot be cancelled.
func (q *BuildQueue) CancelJob(id, reason string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.store.get(id)
	if !ok || job.Status != state.StatusPending {
		return false
	}

	q.heap.RemoveFunc(func(it heap.Item) bool { return it.ID == id })
	job.Status = state.StatusCancelled
	msg := (&custom_errors.CancelledError{Reason: reason}).Error()
	job.Error = &msg
	q.finishLocked(job)

	q.bus.Publish(id, models.BuildEvent{
		Type:      models.EventError,
		JobID:     id,
		Message:   msg,
		Timestamp: time.Now().UnixMilli(),
	})
	q.bus.CloseJob(id)
	q.bus.Signal(events.Signal{Kind: events.SignalJobCancelled, JobID: id})
	return true
}

// Get returns a snapshot of one job.
func (q *BuildQueue) Get(id string) (*models.BuildJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.store.get(id)
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// HasPending reports whether a dequeue could currently succeed.
func (q *BuildQueue) HasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len() > 0 && q.store.processingCount() < q.cfg.MaxConcurrent
}

// Cleanup evicts old terminal jobs and reports how many were removed.
func (q *BuildQueue) Cleanup() int {
	q.mu.Lock()
	removed := q.store.evict()
	q.mu.Unlock()

	if removed > 0 {
		log.Printf("build queue cleanup removed %d jobs", removed)
		q.bus.Signal(events.Signal{Kind: events.SignalCleanup, Count: removed})
	}
	return removed
}

// TimeoutSweep moves processing jobs past the deadline to the timeout state
// and frees their concurrency slots. It deliberately does not signal the
// executing worker: the compiler subprocess keeps running until its own hard
// wall-clock guard fires. Returns the number of jobs timed out.
func (q *BuildQueue) TimeoutSweep(now time.Time) int {
	q.mu.Lock()

	var timedOut []string
	for _, id := range q.store.processingIDs() {
		job, ok := q.store.get(id)
		if !ok || job.StartedAt == nil {
			continue
		}
		if now.Sub(*job.StartedAt) <= q.cfg.ProcessTimeout {
			continue
		}

		job.Status = state.StatusTimeout
		msg := (&custom_errors.TimeoutError{Deadline: q.cfg.ProcessTimeout}).Error()
		job.Error = &msg
		q.finishLocked(job)
		timedOut = append(timedOut, id)
	}
	q.mu.Unlock()

	for _, id := range timedOut {
		log.Printf("job %s exceeded processing deadline", id)
		q.bus.Publish(id, models.BuildEvent{
			Type:      models.EventError,
			JobID:     id,
			Message:   (&custom_errors.TimeoutError{Deadline: q.cfg.ProcessTimeout}).Error(),
			Timestamp: now.UnixMilli(),
		})
		q.bus.CloseJob(id)
		q.bus.Signal(events.Signal{Kind: events.SignalJobUpdated, JobID: id})
	}
	return len(timedOut)
}

// Stats returns a point-in-time snapshot of depth, concurrency usage and
// lifetime counters.
func (q *BuildQueue) Stats() models.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return models.QueueStats{
		Pending:       q.heap.Len(),
		Processing:    q.store.processingCount(),
		MaxConcurrent: q.cfg.MaxConcurrent,
		StoredJobs:    q.store.len(),
		Metrics: models.Metrics{
			TotalEnqueued:  q.totalEnqueued,
			TotalCompleted: q.totalCompleted,
			TotalFailed:    q.totalFailed,
			TotalCancelled: q.totalCancelled,
			TotalTimeout:   q.totalTimeout,
			AvgBuildMillis: q.window.averageMillis(),
		},
	}
}
