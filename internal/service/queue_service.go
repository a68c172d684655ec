package service

import (
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// QueueObserver receives the full queue after every mutation.
// refresh is false when the change only reflects the now-playing track.
type QueueObserver func(queue []domain.Track, refresh bool)

// QueueService maintains the user-facing play queue: FIFO, unique by track ID.
//
// Thread-safety: All operations are thread-safe via sync.Mutex. The observer
// and the bus are notified outside the lock. Refresh notifications hold
// notifyMu from snapshot to publish, so observers receive them in order and
// the last one carries the current queue.
type QueueService struct {
	logger *slog.Logger
	bus    ports.EventBus

	mu       sync.Mutex
	notifyMu sync.Mutex
	tracks   []domain.Track
	observer QueueObserver

	subscription domain.SubscriptionID
}

// NewQueueService creates a queue service. It removes a track from the queue
// as soon as the orchestrator reports it playing.
func NewQueueService(logger *slog.Logger, bus ports.EventBus) *QueueService {
	s := &QueueService{
		logger: logger,
		bus:    bus,
		tracks: make([]domain.Track, 0),
	}

	s.subscription = bus.Subscribe(domain.EventStateChanged, func(event domain.Event) {
		e, ok := event.(domain.StateChangedEvent)
		if !ok || e.State != domain.StatePlaying || e.File == "" {
			return
		}
		s.ConsumeNowPlaying(e.File)
	})

	return s
}

// SetObserver replaces the single queue observer; nil removes it.
func (s *QueueService) SetObserver(observer QueueObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

// Add appends a track unless one with the same ID is already queued.
// Observers are notified either way.
func (s *QueueService) Add(track domain.Track) {
	s.mu.Lock()
	if s.indexOf(track.ID) < 0 {
		s.tracks = append(s.tracks, track)
	} else {
		s.logger.Debug("track already queued", slog.Int("id", track.ID))
	}
	s.mu.Unlock()

	s.notify(true)
}

// AddAll appends tracks in order, skipping duplicates, with a single notification.
func (s *QueueService) AddAll(tracks []domain.Track) {
	s.mu.Lock()
	for _, track := range tracks {
		if s.indexOf(track.ID) < 0 {
			s.tracks = append(s.tracks, track)
		}
	}
	s.mu.Unlock()

	s.notify(true)
}

// Remove drops the track with the same ID, if queued.
func (s *QueueService) Remove(track domain.Track) {
	s.mu.Lock()
	if i := s.indexOf(track.ID); i >= 0 {
		s.tracks = append(s.tracks[:i:i], s.tracks[i+1:]...)
	}
	s.mu.Unlock()

	s.notify(true)
}

// Clear empties the queue.
func (s *QueueService) Clear() {
	s.mu.Lock()
	s.tracks = make([]domain.Track, 0)
	s.mu.Unlock()

	s.notify(true)
}

// ConsumeNowPlaying removes the track whose remote URI is now playing.
// The notification is not a refresh, so bound observers do not resend the queue.
func (s *QueueService) ConsumeNowPlaying(uri string) {
	s.mu.Lock()
	for i, track := range s.tracks {
		if track.URI == uri {
			s.tracks = append(s.tracks[:i:i], s.tracks[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify(false)
}

// Snapshot returns a copy of the queue in play order.
func (s *QueueService) Snapshot() []domain.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of queued tracks.
func (s *QueueService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

// Close stops following playback state.
func (s *QueueService) Close() {
	s.bus.Unsubscribe(s.subscription)
}

// notify delivers the current queue. Now-playing updates arrive from bus
// handlers that may run on the orchestrator loop, so they skip notifyMu.
func (s *QueueService) notify(refresh bool) {
	if refresh {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
	}

	s.mu.Lock()
	observer := s.observer
	queue := s.snapshotLocked()
	s.mu.Unlock()

	if observer != nil {
		observer(queue, refresh)
	}
	s.bus.Publish(domain.NewQueueChangedEvent(queue, refresh))
}

func (s *QueueService) snapshotLocked() []domain.Track {
	out := make([]domain.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *QueueService) indexOf(id int) int {
	for i, track := range s.tracks {
		if track.ID == id {
			return i
		}
	}
	return -1
}
