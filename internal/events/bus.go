package events

import (
	"log/slog"
	"sync"

	"github.com/pinmehq/toybox/internal/model"
)

// ToyChange carries the post-update toy row for a status change.
type ToyChange struct {
	Toy model.Toy
}

// Bus fans toy row updates out to subscribers. Each subscriber owns a
// buffered channel; events for one toy are delivered in publish order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscription is one subscriber's view of the bus. Close it when done.
type Subscription struct {
	bus *Bus
	ch  chan ToyChange
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{bus: b, ch: make(chan ToyChange, 128)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish delivers a toy update to all subscribers.
func (b *Bus) Publish(toy model.Toy) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		select {
		case s.ch <- ToyChange{Toy: toy}:
		default:
			// Subscriber buffer full; drop rather than block publishers
			b.logger.Warn("dropping toy change event", "toy_id", toy.ID)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Changes returns the subscriber's event channel.
func (s *Subscription) Changes() <-chan ToyChange {
	return s.ch
}

// Close removes the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.ch)
	}
}
