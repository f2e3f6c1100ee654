// Package eventbus publishes domain events to zero or more handlers.
// Both variants satisfy the same Publisher contract; the network engine
// is the only producer in this repository, and loggers/metrics collectors
// are typical consumers.
package eventbus

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/taisirhassan/cipherstream/internal/domain"
)

// Handler reacts to a published event. A handler error is logged and does
// not interrupt delivery to sibling handlers.
type Handler func(event domain.Event) error

// Publisher is the contract both event bus variants satisfy.
type Publisher interface {
	Publish(event domain.Event)
	Subscribe(handler Handler)
}

// Bus is an in-memory, synchronous fan-out publisher. Publish appends to an
// internal log (bounded to the most recent entries, mirroring the teacher's
// metrics ring-buffer style), snapshots the handler slice under lock, and
// dispatches to each handler concurrently, so a slow handler never blocks
// the caller of Publish beyond the WaitGroup it owns.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	log      []domain.Event
	logCap   int
}

// New creates an in-memory fan-out event bus retaining up to logCap recent
// events for inspection. A logCap of 0 disables retention.
func New(logCap int) *Bus {
	return &Bus{logCap: logCap}
}

// Subscribe registers a handler. Handlers are never removed; callers that
// need to stop listening should guard inside their own handler.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish dispatches event to a snapshot of the current handlers.
func (b *Bus) Publish(event domain.Event) {
	b.mu.Lock()
	if b.logCap > 0 {
		b.log = append(b.log, event)
		if len(b.log) > b.logCap {
			b.log = b.log[len(b.log)-b.logCap:]
		}
	}
	snapshot := make([]Handler, len(b.handlers))
	copy(snapshot, b.handlers)
	b.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(snapshot))
	for _, h := range snapshot {
		go func(h Handler) {
			defer wg.Done()
			if err := h(event); err != nil {
				log.Error().Err(err).Str("event_type", string(event.Type)).Msg("event handler failed")
			}
		}(h)
	}
	wg.Wait()
}

// RecentEvents returns a snapshot of the most recently retained events.
func (b *Bus) RecentEvents() []domain.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Event, len(b.log))
	copy(out, b.log)
	return out
}
