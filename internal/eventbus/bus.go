// Package eventbus provides a best-effort, in-process publish/subscribe bus
// connecting the broker adapter, device service, rule engine, and the
// conversational agent. It intentionally does not persist events: a
// subscriber that is not listening when an event is published simply misses
// it, the same way the teacher's agent event sinks drop low-priority events
// under backpressure rather than block the publisher.
package eventbus

import (
	"context"
	"sync"

	"github.com/neomind-iot/neomind/pkg/models"
)

// DefaultSubscriberBuffer is the channel depth given to each subscriber.
// Publishes beyond this depth are dropped for that subscriber rather than
// block the publisher or other subscribers.
const DefaultSubscriberBuffer = 256

// Bus fans out BusEvents to any number of subscribers, optionally filtered by
// event type. It is safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscription
	nextID      int
	dropped     uint64

	onDrop func(sub int, e models.BusEvent)
}

type subscription struct {
	ch     chan models.BusEvent
	filter map[models.BusEventType]struct{} // nil means "all types"
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]*subscription)}
}

// Subscription is a handle returned by Subscribe. Call Close to stop
// receiving events and release the subscriber's channel.
type Subscription struct {
	bus *Bus
	id  int
	ch  <-chan models.BusEvent
}

// C returns the channel this subscription delivers events on.
func (s *Subscription) C() <-chan models.BusEvent { return s.ch }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Subscribe registers a new subscriber. If types is non-empty, only events of
// those types are delivered; otherwise every event is delivered.
func (b *Bus) Subscribe(types ...models.BusEventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	var filter map[models.BusEventType]struct{}
	if len(types) > 0 {
		filter = make(map[models.BusEventType]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}

	id := b.nextID
	b.nextID++
	sub := &subscription{
		ch:     make(chan models.BusEvent, DefaultSubscriberBuffer),
		filter: filter,
	}
	b.subscribers[id] = sub

	return &Subscription{bus: b, id: id, ch: sub.ch}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(sub.ch)
}

// Publish delivers an event to every matching subscriber. It never blocks:
// a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(ctx context.Context, e models.BusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.filter != nil {
			if _, ok := sub.filter[e.Type]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- e:
		case <-ctx.Done():
			return
		default:
			b.recordDrop(sub, e)
		}
	}
}

func (b *Bus) recordDrop(sub *subscription, e models.BusEvent) {
	b.dropped++
	if b.onDrop != nil {
		b.onDrop(0, e)
	}
}

// DroppedCount returns the total number of deliveries dropped across all
// subscribers due to a full buffer. Intended for metrics, not correctness.
func (b *Bus) DroppedCount() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// SubscriberCount returns the current number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
