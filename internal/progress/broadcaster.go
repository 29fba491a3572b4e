// Package progress fans extraction progress events out to observers.
package progress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/checklist-cli/internal/model"
)

// Sink receives progress events. Publish must not block.
type Sink interface {
	Publish(ev model.ProgressEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev model.ProgressEvent)

// Publish implements Sink.
func (f SinkFunc) Publish(ev model.ProgressEvent) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(model.ProgressEvent) {})

// DefaultBuffer is the channel capacity used when Subscribe gets a
// non-positive buffer.
const DefaultBuffer = 64

// Subscription is one registered observer. Channel observers read from C,
// which is closed when the observer is removed. C is nil for callback
// observers.
type Subscription struct {
	C <-chan model.ProgressEvent

	id    uint64
	jobID string
	ch    chan model.ProgressEvent
	fn    func(model.ProgressEvent) error
	done  chan struct{}
}

// JobID returns the job filter, or "" for all jobs.
func (s *Subscription) JobID() string { return s.jobID }

// Done is closed once the observer is removed and, for callback observers,
// every event queued before removal has been handed to the callback.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Broadcaster delivers every published event to all current observers.
// There is no replay and no backpressure: an observer that cannot keep up
// is removed and the publisher never waits.
type Broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a channel observer for every job.
func (b *Broadcaster) Subscribe(buffer int) *Subscription {
	return b.SubscribeJob("", buffer)
}

// SubscribeJob registers a channel observer that only receives events for
// jobID. An empty jobID receives everything.
func (b *Broadcaster) SubscribeJob(jobID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan model.ProgressEvent, buffer)
	sub := &Subscription{C: ch, ch: ch, jobID: jobID, done: make(chan struct{})}
	b.add(sub)
	return sub
}

// SubscribeFunc registers a callback observer. fn runs on its own goroutine
// fed by a DefaultBuffer queue, so a slow fn never stalls Publish; if the
// queue fills, the observer is dropped like a slow channel observer.
// Returning an error or panicking removes the observer.
func (b *Broadcaster) SubscribeFunc(fn func(model.ProgressEvent) error) *Subscription {
	ch := make(chan model.ProgressEvent, DefaultBuffer)
	sub := &Subscription{ch: ch, fn: fn, done: make(chan struct{})}
	b.add(sub)
	go b.runCallback(sub)
	return sub
}

func (b *Broadcaster) runCallback(sub *Subscription) {
	defer close(sub.done)
	for ev := range sub.ch {
		if invoke(sub.fn, ev) {
			continue
		}
		zap.L().Debug("progress: dropping callback observer", zap.Uint64("subscriber", sub.id))
		b.Unsubscribe(sub)
		for range sub.ch {
		}
		return
	}
}

func invoke(fn func(model.ProgressEvent) error, ev model.ProgressEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return fn(ev) == nil
}

func (b *Broadcaster) add(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
}

// Unsubscribe removes sub and closes its channel. Safe to call more than
// once and after the broadcaster already dropped it.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broadcaster) removeLocked(sub *Subscription) {
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
	if sub.fn == nil {
		close(sub.done)
	}
}

// Publish implements Sink. It never waits on an observer.
func (b *Broadcaster) Publish(ev model.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.jobID != "" && sub.jobID != ev.JobID {
			continue
		}
		if !deliver(sub, ev) {
			zap.L().Debug("progress: dropping observer",
				zap.Uint64("subscriber", sub.id),
				zap.String("job_id", ev.JobID),
			)
			b.removeLocked(sub)
		}
	}
}

func deliver(sub *Subscription, ev model.ProgressEvent) bool {
	select {
	case sub.ch <- ev:
		return true
	default:
		return false
	}
}

// Len returns the number of current observers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close removes every observer.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		b.removeLocked(sub)
	}
}

// Multi fans one event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ev model.ProgressEvent) {
		for _, s := range sinks {
			if s != nil {
				s.Publish(ev)
			}
		}
	})
}
