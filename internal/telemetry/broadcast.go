package telemetry

import (
	"sync"
	"sync/atomic"
)

// defaultSendBuffer is the per-subscriber event backlog.
const defaultSendBuffer = 256

// Broadcaster fans telemetry events out to realtime subscribers.
//
// Each subscriber gets its own buffered channel. Publish never blocks:
// when a subscriber's buffer is full the oldest queued event is dropped
// to make room, so a slow consumer observes gaps in the stream but is
// never disconnected and never stalls the producer or its peers.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

// Subscription is one subscriber's view of the event stream.
type Subscription struct {
	ch      chan Event
	dropped atomic.Uint64
}

// Events returns the channel events are delivered on. It is closed by
// Unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded because this
// subscriber fell behind.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// NewBroadcaster creates a Broadcaster. bufferSize <= 0 uses the default.
func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultSendBuffer
	}
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: bufferSize,
	}
}

// Subscribe registers a new subscriber.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		ch: make(chan Event, b.buffer),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
// Safe to call more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, exists := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	if exists {
		close(sub.ch)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers an event to every subscriber without blocking.
func (b *Broadcaster) Publish(event Event) {
	// Snapshot subscribers so delivery happens outside the lock.
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		b.send(sub, event)
	}
}

// send enqueues an event, evicting the oldest queued one when the
// subscriber's buffer is full.
func (b *Broadcaster) send(sub *Subscription, event Event) {
	// The channel may be closed by a concurrent Unsubscribe; dropping
	// the event for a departing subscriber is fine.
	defer func() {
		_ = recover()
	}()

	select {
	case sub.ch <- event:
		return
	default:
	}

	// Buffer full: make room by discarding the oldest event, then retry.
	select {
	case <-sub.ch:
		sub.dropped.Add(1)
	default:
	}

	select {
	case sub.ch <- event:
	default:
		sub.dropped.Add(1)
	}
}
