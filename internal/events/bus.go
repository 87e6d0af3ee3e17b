package events

import (
	"sync"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
)

// subscriberBuffer bounds every subscriber channel. Publishing never blocks
// the worker pipeline; a subscriber that falls this far behind loses events.
const subscriberBuffer = 64

// SignalKind identifies a queue lifecycle signal. The worker pool's dispatch
// loop is driven by these.
type SignalKind string

const (
	SignalJobAdded     SignalKind = "job-added"
	SignalJobStarted   SignalKind = "job-started"
	SignalJobUpdated   SignalKind = "job-updated"
	SignalJobCancelled SignalKind = "job-cancelled"
	SignalCleanup      SignalKind = "cleanup"
)

type Signal struct {
	Kind  SignalKind
	JobID string
	// Count carries the number of evicted jobs on a cleanup signal.
	Count int
}

type subscriber struct {
	id int
	ch chan models.BuildEvent
}

type signalSubscriber struct {
	id int
	ch chan Signal
}

// Bus is the in-process event distribution layer: per-job progress channels,
// a pool-wide hot-reload broadcast, and queue lifecycle signals. Per-job
// subscriber sets are torn down on the job's terminal event so listeners
// never accumulate.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	jobSubs   map[string][]subscriber
	broadcast []subscriber
	signals   []signalSubscriber
}

func NewBus() *Bus {
	return &Bus{
		jobSubs: make(map[string][]subscriber),
	}
}

// Subscribe registers a listener for one job's progress events. The returned
// cancel func is idempotent and must be called unless the channel was closed
// by a terminal event.
func (b *Bus) Subscribe(jobID string) (<-chan models.BuildEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscriber{id: b.nextID, ch: make(chan models.BuildEvent, subscriberBuffer)}
	b.jobSubs[jobID] = append(b.jobSubs[jobID], sub)

	id := sub.id
	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.jobSubs[jobID]
		for i, s := range subs {
			if s.id == id {
				b.jobSubs[jobID] = append(subs[:i], subs[i+1:]...)
				close(s.ch)
				break
			}
		}
		if len(b.jobSubs[jobID]) == 0 {
			delete(b.jobSubs, jobID)
		}
	}
}

// Publish delivers an event to every subscriber of the job. Sends are
// non-blocking; a full buffer drops the event for that subscriber only.
func (b *Bus) Publish(jobID string, ev models.BuildEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.jobSubs[jobID] {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// CloseJob unregisters and closes every subscriber of the job. Called after
// the terminal event has been published.
func (b *Bus) CloseJob(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.jobSubs[jobID] {
		close(s.ch)
	}
	delete(b.jobSubs, jobID)
}

// SubscribeBroadcast registers a listener for pool-wide events, currently
// only hot-reload notifications.
func (b *Bus) SubscribeBroadcast() (<-chan models.BuildEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscriber{id: b.nextID, ch: make(chan models.BuildEvent, subscriberBuffer)}
	b.broadcast = append(b.broadcast, sub)

	id := sub.id
	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.broadcast {
			if s.id == id {
				b.broadcast = append(b.broadcast[:i], b.broadcast[i+1:]...)
				close(s.ch)
				break
			}
		}
	}
}

// Broadcast delivers an event to every pool-wide subscriber.
func (b *Bus) Broadcast(ev models.BuildEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.broadcast {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// SubscribeSignals registers a listener for queue lifecycle signals.
func (b *Bus) SubscribeSignals() (<-chan Signal, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := signalSubscriber{id: b.nextID, ch: make(chan Signal, subscriberBuffer)}
	b.signals = append(b.signals, sub)

	id := sub.id
	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.signals {
			if s.id == id {
				b.signals = append(b.signals[:i], b.signals[i+1:]...)
				close(s.ch)
				break
			}
		}
	}
}

// Signal delivers a queue lifecycle signal to every signal subscriber.
func (b *Bus) Signal(sig Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.signals {
		select {
		case s.ch <- sig:
		default:
		}
	}
}
