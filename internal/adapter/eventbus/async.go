package eventbus

import (
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// AsyncEventBus delivers events on a single pump goroutine, in publish order.
// Publish never blocks, so handlers may call back into the publisher.
type AsyncEventBus struct {
	inner *SyncEventBus

	mu      sync.Mutex
	pending []domain.Event
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewAsyncEventBus creates an async bus and starts its pump goroutine.
// Close must be called to stop it.
func NewAsyncEventBus(logger *slog.Logger) *AsyncEventBus {
	bus := &AsyncEventBus{
		inner: NewSyncEventBus(logger),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go bus.pump()
	return bus
}

// Publish queues an event for delivery.
func (bus *AsyncEventBus) Publish(event domain.Event) {
	if event == nil {
		return
	}

	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		return
	}
	bus.pending = append(bus.pending, event)
	bus.mu.Unlock()

	select {
	case bus.wake <- struct{}{}:
	default:
	}
}

func (bus *AsyncEventBus) pump() {
	defer close(bus.done)

	for {
		bus.mu.Lock()
		batch := bus.pending
		bus.pending = nil
		closed := bus.closed
		bus.mu.Unlock()

		for _, event := range batch {
			bus.inner.Publish(event)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-bus.wake
	}
}

// Subscribe registers a handler for events of the specified type.
func (bus *AsyncEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	return bus.inner.Subscribe(eventType, handler)
}

// Unsubscribe removes a previously registered event handler.
func (bus *AsyncEventBus) Unsubscribe(id domain.SubscriptionID) {
	bus.inner.Unsubscribe(id)
}

// SubscribeAll registers a handler that receives all events regardless of type.
func (bus *AsyncEventBus) SubscribeAll(handler domain.EventHandler) domain.SubscriptionID {
	return bus.inner.SubscribeAll(handler)
}

// HasSubscribers returns true if there are any active subscriptions for the given event type.
func (bus *AsyncEventBus) HasSubscribers(eventType domain.EventType) bool {
	return bus.inner.HasSubscribers(eventType)
}

// Close delivers the events already queued, stops the pump and clears all subscriptions.
func (bus *AsyncEventBus) Close() error {
	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		return ErrClosed
	}
	bus.closed = true
	bus.mu.Unlock()

	select {
	case bus.wake <- struct{}{}:
	default:
	}
	<-bus.done

	return bus.inner.Close()
}

var _ ports.EventBus = (*AsyncEventBus)(nil)
