package service

import (
	"sync"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// recorder collects every event published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func newRecorder(bus ports.EventBus) *recorder {
	r := &recorder{}
	bus.SubscribeAll(func(e domain.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

// States returns the broadcast state notifications in order.
func (r *recorder) States() []domain.StateNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StateNotification, 0)
	for _, e := range r.events {
		if sc, ok := e.(domain.StateChangedEvent); ok {
			out = append(out, sc.Notification())
		}
	}
	return out
}

// Of returns the recorded events of one type.
func (r *recorder) Of(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

func playingN(t domain.Track) domain.StateNotification {
	return domain.StateNotification{State: "playing", File: t.URI}
}

func pausedN(t domain.Track) domain.StateNotification {
	return domain.StateNotification{State: "paused", File: t.URI}
}

func downloadingN(t domain.Track) domain.StateNotification {
	return domain.StateNotification{State: "downloading", File: t.URI}
}

var stoppedN = domain.StateNotification{State: "stopped"}
