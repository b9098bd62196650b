package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mempoolScope/internal/observability"
)

// DefaultBusCapacity is the number of events retained for slow subscribers.
const DefaultBusCapacity = 512

var ErrBusClosed = errors.New("event bus closed")

// LaggedError reports that a subscriber fell behind and missed events.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d events skipped", e.Skipped)
}

// Bus is a bounded broadcast channel. Publishing never blocks; every
// subscriber sees each event published after it subscribed unless it falls
// more than the capacity behind.
type Bus struct {
	mu          sync.Mutex
	ring        []Event
	head        uint64
	subscribers int
	closed      bool
	wake        chan struct{}
	metrics     *observability.Metrics
}

func NewBus(capacity int, metrics *observability.Metrics) *Bus {
	if capacity <= 0 {
		capacity = DefaultBusCapacity
	}
	return &Bus{
		ring:    make([]Event, capacity),
		wake:    make(chan struct{}),
		metrics: metrics,
	}
}

func (b *Bus) Capacity() int {
	return len(b.ring)
}

// Publish appends ev for all current subscribers. With no subscribers, or
// after Close, the event is dropped.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	if b.closed || b.subscribers == 0 {
		b.mu.Unlock()
		return
	}
	b.ring[b.head%uint64(len(b.ring))] = ev
	b.head++
	close(b.wake)
	b.wake = make(chan struct{})
	b.mu.Unlock()

	b.metrics.ObservePublished(ev.Kind.String())
}

// Subscribe returns a subscriber positioned at the current head.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers++
	return &Subscriber{bus: b, cursor: b.head}
}

// Close wakes all subscribers. They drain retained events, then get ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.wake)
}

// Subscriber is a cursor into the bus. It is not safe for concurrent use.
type Subscriber struct {
	bus      *Bus
	cursor   uint64
	detached bool
}

// Recv blocks for the next event. It returns *LaggedError once when events
// were overwritten before being read, then continues from the oldest retained one.
func (s *Subscriber) Recv(ctx context.Context) (Event, error) {
	b := s.bus
	capacity := uint64(len(b.ring))
	for {
		b.mu.Lock()
		if b.head-s.cursor > capacity {
			oldest := b.head - capacity
			skipped := oldest - s.cursor
			s.cursor = oldest
			b.mu.Unlock()
			return Event{}, &LaggedError{Skipped: skipped}
		}
		if s.cursor < b.head {
			ev := b.ring[s.cursor%capacity]
			s.cursor++
			b.mu.Unlock()
			return ev, nil
		}
		if b.closed || s.detached {
			b.mu.Unlock()
			return Event{}, ErrBusClosed
		}
		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Close detaches the subscriber from the bus.
func (s *Subscriber) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.detached {
		return
	}
	s.detached = true
	s.bus.subscribers--
}
