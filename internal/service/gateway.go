package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// Command names accepted by Gateway.Dispatch.
const (
	CommandSetQueue = "setQueue"
	CommandPause    = "pause"
	CommandResume   = "resume"
	CommandNext     = "next"
	CommandStop     = "stop"
)

// bindTimeout bounds a queue push triggered by a queue observer.
const bindTimeout = 10 * time.Second

// Command is a named request from a client.
type Command struct {
	Name      string            `json:"command"`
	Auth      string            `json:"auth,omitempty"`
	Tracks    []domain.TrackRef `json:"tracks,omitempty"`
	Download  bool              `json:"download,omitempty"`
	NumTracks int               `json:"numTracks,omitempty"`
}

// Gateway is the command and event surface of the orchestrator.
// Commands are translated into PlaybackService calls; state changes are
// delivered to observers as wire notifications.
type Gateway struct {
	logger   *slog.Logger
	playback *PlaybackService
	bus      ports.EventBus

	// known remembers full track metadata by ID so references resolve to it
	mu    sync.RWMutex
	known map[int]domain.Track
}

// NewGateway creates a gateway over the orchestrator.
func NewGateway(logger *slog.Logger, playback *PlaybackService, bus ports.EventBus) *Gateway {
	return &Gateway{
		logger:   logger,
		playback: playback,
		bus:      bus,
		known:    make(map[int]domain.Track),
	}
}

// Dispatch applies a named command. Unknown names return domain.ErrUnknownCommand.
func (g *Gateway) Dispatch(ctx context.Context, cmd Command) error {
	g.logger.Debug("command received", slog.String("command", cmd.Name), slog.Int("tracks", len(cmd.Tracks)))

	switch cmd.Name {
	case CommandSetQueue:
		tracks, err := g.tracksFor(cmd)
		if err != nil {
			return err
		}
		return g.playback.SetQueue(ctx, tracks, cmd.Auth, cmd.Download)
	case CommandPause:
		return g.playback.Pause(ctx)
	case CommandResume:
		return g.playback.Resume(ctx)
	case CommandNext:
		return g.playback.Next(ctx)
	case CommandStop:
		return g.playback.Stop(ctx)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Name)
	}
}

// Observe calls fn with every broadcast state notification.
func (g *Gateway) Observe(fn func(domain.StateNotification)) domain.SubscriptionID {
	return g.bus.Subscribe(domain.EventStateChanged, func(event domain.Event) {
		if e, ok := event.(domain.StateChangedEvent); ok {
			fn(e.Notification())
		}
	})
}

// Unobserve removes an observer registered with Observe.
func (g *Gateway) Unobserve(id domain.SubscriptionID) {
	g.bus.Unsubscribe(id)
}

// BindQueue makes the gateway the queue's observer: every structural change
// sends the queue to the orchestrator with a setQueue command.
func (g *Gateway) BindQueue(queue *QueueService, auth string, download bool) {
	queue.SetObserver(func(tracks []domain.Track, refresh bool) {
		if !refresh {
			return
		}
		g.Remember(tracks)

		cmd := Command{
			Name:      CommandSetQueue,
			Auth:      auth,
			Download:  download,
			NumTracks: len(tracks),
			Tracks:    make([]domain.TrackRef, len(tracks)),
		}
		for i, t := range tracks {
			cmd.Tracks[i] = t.Ref()
		}

		ctx, cancel := context.WithTimeout(context.Background(), bindTimeout)
		defer cancel()
		if err := g.Dispatch(ctx, cmd); err != nil {
			g.logger.Warn("failed to push queue", slog.Any("error", err))
		}
	})
}

func (g *Gateway) tracksFor(cmd Command) ([]domain.Track, error) {
	if cmd.NumTracks != 0 && cmd.NumTracks != len(cmd.Tracks) {
		return nil, domain.NewValidationError("numTracks", cmd.NumTracks,
			fmt.Sprintf("announced %d tracks, received %d", cmd.NumTracks, len(cmd.Tracks)))
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	tracks := make([]domain.Track, 0, len(cmd.Tracks))
	for _, ref := range cmd.Tracks {
		if ref.URI == "" {
			return nil, domain.NewValidationError("uri", ref.ID, "track reference without uri")
		}
		if t, ok := g.known[ref.ID]; ok && t.URI == ref.URI {
			tracks = append(tracks, t)
			continue
		}
		tracks = append(tracks, domain.Track{ID: ref.ID, URI: ref.URI})
	}
	return tracks, nil
}

// Remember records track metadata so later references by ID carry it.
func (g *Gateway) Remember(tracks []domain.Track) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range tracks {
		g.known[t.ID] = t
	}
}
