package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tejashwikalptaru/dstream/internal/domain"
)

// eventBuffer is how many events a slow client may lag behind before events are dropped.
const eventBuffer = 64

type sseMessage struct {
	event string
	data  any
}

// events streams state and queue changes as Server-Sent Events.
func (api *API) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	ch := make(chan sseMessage, eventBuffer)
	send := func(msg sseMessage) {
		select {
		case ch <- msg:
		default:
			api.Logger.Warn("event client too slow, dropping event", slog.String("event", msg.event))
		}
	}

	stateSub := api.Bus.Subscribe(domain.EventStateChanged, func(event domain.Event) {
		if e, ok := event.(domain.StateChangedEvent); ok {
			send(sseMessage{event: "state", data: e.Notification()})
		}
	})
	defer api.Bus.Unsubscribe(stateSub)

	queueSub := api.Bus.Subscribe(domain.EventQueueChanged, func(event domain.Event) {
		if e, ok := event.(domain.QueueChangedEvent); ok {
			send(sseMessage{event: "queue", data: map[string]any{"tracks": e.Queue, "refresh": e.Refresh}})
		}
	})
	defer api.Bus.Unsubscribe(queueSub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Resolving is internal; clients learn about it from the next broadcast
	if snap := api.Playback.State(); snap.State != domain.StateResolving {
		initial := domain.StateNotification{State: snap.State.String()}
		if snap.Current != nil && snap.State != domain.StateStopped {
			initial.File = snap.Current.URI
		}
		writeEvent(w, 0, sseMessage{event: "state", data: initial})
	}
	flusher.Flush()

	id := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			id++
			if err := writeEvent(w, id, msg); err != nil {
				api.Logger.Debug("event client gone", slog.Any("error", err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, id int, msg sseMessage) error {
	data, err := json.Marshal(msg.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, msg.event, data)
	return err
}
