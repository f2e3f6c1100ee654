package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/taisirhassan/cipherstream/internal/domain"
)

// ChannelBus is the channel-buffered Publisher variant. Publish enqueues to
// an internal channel; a dedicated consumer goroutine drains it and fans
// out to handlers exactly like Bus. The queue is always finite: by default
// it holds 4096 events and Publish blocks while it is full; a bus built
// with a positive capacity sheds events with a logged warning instead.
type ChannelBus struct {
	mu       sync.RWMutex
	handlers []Handler

	queue   chan domain.Event
	dropped chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	bounded bool
}

// NewChannelBus starts a consumer goroutine draining a queue of the given
// capacity. A capacity of 0 or less selects a 4096-event queue on which
// Publish blocks when full; a positive capacity enables shedding with a
// logged warning when full.
func NewChannelBus(ctx context.Context, capacity int) *ChannelBus {
	ctx, cancel := context.WithCancel(ctx)
	bounded := capacity > 0
	if capacity <= 0 {
		capacity = 4096
	}
	cb := &ChannelBus{
		queue:   make(chan domain.Event, capacity),
		dropped: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		bounded: bounded,
	}
	cb.wg.Add(1)
	go cb.run()
	return cb
}

// Subscribe registers a handler that will see every event published after
// (and concurrently with) the call.
func (cb *ChannelBus) Subscribe(handler Handler) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.handlers = append(cb.handlers, handler)
}

// Publish enqueues event for asynchronous fan-out. If the bus was built with
// a bounded capacity and the queue is full, the event is shed and a warning
// is logged. Otherwise a full queue makes Publish block until the consumer
// makes room.
func (cb *ChannelBus) Publish(event domain.Event) {
	select {
	case cb.queue <- event:
	default:
		if cb.bounded {
			log.Warn().Str("event_type", string(event.Type)).Msg("event bus queue full, dropping event")
			return
		}
		// Default mode: wait for the consumer to make room rather than
		// silently drop.
		cb.queue <- event
	}
}

// Close stops the consumer goroutine and waits for it to exit. Events still
// queued when the consumer sees the cancellation are not delivered.
func (cb *ChannelBus) Close() {
	cb.cancel()
	cb.wg.Wait()
}

func (cb *ChannelBus) run() {
	defer cb.wg.Done()
	for {
		select {
		case <-cb.ctx.Done():
			return
		case event := <-cb.queue:
			cb.dispatch(event)
		}
	}
}

func (cb *ChannelBus) dispatch(event domain.Event) {
	cb.mu.RLock()
	snapshot := make([]Handler, len(cb.handlers))
	copy(snapshot, cb.handlers)
	cb.mu.RUnlock()

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
