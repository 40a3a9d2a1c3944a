package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// DefaultCapacity is the bus capacity when none is configured.
const DefaultCapacity = 1024

// ErrClosed is returned when publishing to or consuming from a closed bus.
var ErrClosed = errors.New("bus: closed")

// Bus is the bounded multi-producer, single-consumer update queue.
// All methods are safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	queue  []telemetry.TransportUpdate
	cap    int
	closed bool

	// dropped counts evictions per source, for diagnostics.
	dropped map[telemetry.TransportSource]uint64

	// notify wakes the consumer; capacity 1 so producers never block on it.
	notify chan struct{}
}

// New creates a bus with the given capacity. A capacity of 0 selects
// DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		cap:     capacity,
		dropped: make(map[telemetry.TransportSource]uint64),
		notify:  make(chan struct{}, 1),
	}
}

// Publish enqueues one update. It never blocks: under saturation the
// oldest queued update from the lowest-trust source present is evicted
// first, and an update whose own source is the lowest trust present is
// dropped outright rather than displacing better data.
//
// Returns:
//   - bool: whether the update was enqueued (false means it was the
//     cheapest data on offer and was dropped)
//   - error: ErrClosed after Close
func (b *Bus) Publish(update telemetry.TransportUpdate) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}

	if len(b.queue) >= b.cap {
		if !b.evictFor(update) {
			b.dropped[update.Source]++
			return false, nil
		}
	}

	b.queue = append(b.queue, update)
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true, nil
}

// evictFor makes room for the incoming update, honouring the trust
// ordering. It returns false when the incoming update itself is the
// lowest-trust data present and should be dropped instead.
func (b *Bus) evictFor(incoming telemetry.TransportUpdate) bool {
	minRank := incoming.Source.Rank()
	for _, queued := range b.queue {
		if r := queued.Source.Rank(); r < minRank {
			minRank = r
		}
	}

	// Oldest-first within the lowest-trust rank.
	for i, queued := range b.queue {
		if queued.Source.Rank() == minRank {
			b.dropped[queued.Source]++
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return true
		}
	}

	// Queue holds only higher-trust updates than the incoming one.
	return false
}

// Consume blocks until an update is available or the context is done.
// Exactly one consumer (the reconciliation engine task) may call Consume.
func (b *Bus) Consume(ctx context.Context) (telemetry.TransportUpdate, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			update := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return update, nil
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return telemetry.TransportUpdate{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return telemetry.TransportUpdate{}, ctx.Err()
		case <-b.notify:
		}
	}
}

// Len reports the number of queued updates.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dropped reports how many updates from the given source have been
// evicted or rejected under saturation.
func (b *Bus) Dropped(source telemetry.TransportSource) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped[source]
}

// Close stops the bus. Queued updates remain consumable until drained;
// afterwards Consume returns ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
