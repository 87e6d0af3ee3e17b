package workerpool

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/events"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/queue"
)

// JobRunner executes one claimed job to completion. It must report the
// terminal state through the queue itself and must not panic.
type JobRunner interface {
	Run(ctx context.Context, job *models.BuildJob)
}

// Pool holds a fixed number of worker slots and keeps them saturated with
// the highest-priority pending jobs. The slot count is configured separately
// from the queue's concurrency ceiling; whichever is smaller effectively
// bounds parallelism.
type Pool struct {
	size   int64
	queue  *queue.BuildQueue
	bus    *events.Bus
	runner JobRunner

	sem    *semaphore.Weighted
	busy   atomic.Int64
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(size int, q *queue.BuildQueue, bus *events.Bus, runner JobRunner) *Pool {
	return &Pool{
		size:   int64(size),
		queue:  q,
		bus:    bus,
		runner: runner,
		sem:    semaphore.NewWeighted(int64(size)),
	}
}

// Start subscribes to queue signals and performs the initial dispatch pass.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	sigs, cancelSub := p.bus.SubscribeSignals()
	go func() {
		defer cancelSub()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-sigs:
				if !ok {
					return
				}
				// job-added fills fresh capacity; job-updated covers slots
				// freed by terminal transitions, including the timeout sweep.
				if sig.Kind == events.SignalJobAdded || sig.Kind == events.SignalJobUpdated {
					p.dispatch(ctx)
				}
			}
		}
	}()

	p.dispatch(ctx)
	log.Printf("worker pool started with %d slots", p.size)
}

// dispatch assigns pending jobs to idle slots until either runs out. A slot
// frees only when its pipeline fully returns, after which the completion
// handler dispatches again; that re-entry is what keeps the pool saturated.
func (p *Pool) dispatch(ctx context.Context) {
	for p.queue.HasPending() {
		if !p.sem.TryAcquire(1) {
			return
		}
		job := p.queue.Dequeue()
		if job == nil {
			p.sem.Release(1)
			return
		}

		p.busy.Add(1)
		p.wg.Add(1)
		go func(job *models.BuildJob) {
			defer func() {
				p.busy.Add(-1)
				p.sem.Release(1)
				p.wg.Done()
				p.dispatch(ctx)
			}()
			p.runner.Run(ctx, job)
		}(job)
	}
}

// Stats reports slot usage plus the queue's own snapshot.
func (p *Pool) Stats() models.PoolStats {
	busy := int(p.busy.Load())
	return models.PoolStats{
		BusyWorkers: busy,
		IdleWorkers: int(p.size) - busy,
		Queue:       p.queue.Stats(),
	}
}

// Drain blocks until every slot is idle or the context expires. Used for
// graceful shutdown; it does not prevent new dispatches on its own.
func (p *Pool) Drain(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return err
	}
	p.sem.Release(p.size)
	return nil
}

// Stop cancels the dispatch loop and waits for in-flight pipelines.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
