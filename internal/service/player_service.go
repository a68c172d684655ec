// Package service provides the business logic of the dstream daemon.
package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// DefaultProgressInterval is how often the player is polled while a track is loaded.
const DefaultProgressInterval = 333 * time.Millisecond

// DefaultLoadTimeout bounds a single player load. Loads run on the loop, so
// commands wait for them.
const DefaultLoadTimeout = 10 * time.Second

// TrackResolver maps a track to a playable location.
type TrackResolver interface {
	Resolve(ctx context.Context, track domain.Track, policy ResolvePolicy, onDownload func()) (domain.Resolution, error)
}

// PlaybackService orchestrates playback of a queue of remote tracks.
//
// All session state is owned by a single loop goroutine. Public methods post
// commands into the loop and wait until they are applied. Resolutions run on
// worker goroutines and post their result back; results carry the generation
// they were started under so that a stop or skip issued meanwhile wins.
type PlaybackService struct {
	// Dependencies (injected)
	logger   *slog.Logger
	player   ports.Player
	resolver TrackResolver
	bus      ports.EventBus

	updateInterval time.Duration
	loadTimeout    atomic.Int64

	// Loop plumbing
	ctx      context.Context
	cancel   context.CancelFunc
	commands chan command
	messages chan any
	done     chan struct{}
	workers  sync.WaitGroup
	shutdown sync.Once

	// snapshot is written by the loop only
	snapshot atomic.Pointer[domain.SessionSnapshot]

	// session is touched by the loop only
	session session
}

type session struct {
	state      domain.PlaybackState
	current    *domain.Track
	queue      []domain.Track
	auth       string
	download   bool
	generation uint64

	handle     domain.TrackHandle
	resolution domain.Resolution
	position   time.Duration
	duration   time.Duration
}

type command struct {
	apply func() error
	reply chan error
}

// downloadingMsg is posted by a resolution that started downloading.
type downloadingMsg struct {
	generation uint64
}

// resolvedMsg is posted by a finished resolution.
type resolvedMsg struct {
	generation uint64
	track      domain.Track
	resolution domain.Resolution
	err        error
}

// NewPlaybackService creates the orchestrator and starts its loop.
// A zero updateInterval selects DefaultProgressInterval. Shutdown must be called
// to stop the loop.
func NewPlaybackService(
	logger *slog.Logger,
	player ports.Player,
	resolver TrackResolver,
	bus ports.EventBus,
	updateInterval time.Duration,
) *PlaybackService {
	if updateInterval <= 0 {
		updateInterval = DefaultProgressInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &PlaybackService{
		logger:         logger,
		player:         player,
		resolver:       resolver,
		bus:            bus,
		updateInterval: updateInterval,
		ctx:            ctx,
		cancel:         cancel,
		commands:       make(chan command),
		messages:       make(chan any, 8),
		done:           make(chan struct{}),
		session:        session{handle: domain.InvalidTrackHandle},
	}
	s.loadTimeout.Store(int64(DefaultLoadTimeout))
	s.storeSnapshot()

	go s.run()

	logger.Debug("playback service initialized", slog.Duration("update_interval", updateInterval))
	return s
}

// SetQueue replaces the session credential, download policy and queue.
// Playback starts with the head of the queue when nothing is playing or resolving.
func (s *PlaybackService) SetQueue(ctx context.Context, tracks []domain.Track, auth string, download bool) error {
	queue := make([]domain.Track, len(tracks))
	copy(queue, tracks)

	return s.do(ctx, func() error {
		s.session.queue = queue
		s.session.auth = auth
		s.session.download = download
		s.storeSnapshot()

		if s.session.state == domain.StateStopped {
			s.advance()
		}
		return nil
	})
}

// Next skips to the next queued track. It is ignored while a resolution is in
// flight, and stops playback when the queue is empty.
func (s *PlaybackService) Next(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.advance()
		return nil
	})
}

// Pause pauses the playing track. Returns domain.ErrInvalidTransition unless playing.
func (s *PlaybackService) Pause(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.session.state != domain.StatePlaying {
			return domain.ErrInvalidTransition
		}
		if err := s.player.Pause(s.session.handle); err != nil {
			return err
		}
		s.setState(domain.StatePaused)
		return nil
	})
}

// Resume resumes the paused track. Returns domain.ErrInvalidTransition unless paused.
func (s *PlaybackService) Resume(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.session.state != domain.StatePaused {
			return domain.ErrInvalidTransition
		}
		if err := s.player.Play(s.session.handle); err != nil {
			return err
		}
		s.setState(domain.StatePlaying)
		return nil
	})
}

// Stop stops playback from any state. A resolution in flight is abandoned.
func (s *PlaybackService) Stop(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.stop()
		return nil
	})
}

// State returns a snapshot of the session. It never blocks on the loop.
func (s *PlaybackService) State() domain.SessionSnapshot {
	return *s.snapshot.Load()
}

// Shutdown stops the loop, releases the loaded track and waits for workers.
// It is safe to call more than once.
func (s *PlaybackService) Shutdown() {
	s.shutdown.Do(func() {
		s.cancel()
		<-s.done
		s.workers.Wait()
		s.logger.Debug("playback service stopped")
	})
}

// do runs fn on the loop and returns its error.
func (s *PlaybackService) do(ctx context.Context, fn func() error) error {
	cmd := command{apply: fn, reply: make(chan error, 1)}

	select {
	case s.commands <- cmd:
	case <-s.done:
		return domain.ErrServiceClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return domain.ErrServiceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PlaybackService) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.releasePlayer()
			return
		case cmd := <-s.commands:
			cmd.reply <- cmd.apply()
		case msg := <-s.messages:
			s.handleMessage(msg)
		case <-ticker.C:
			s.update()
		}
	}
}

// post hands a worker message to the loop unless the service is shutting down.
func (s *PlaybackService) post(msg any) {
	select {
	case s.messages <- msg:
	case <-s.ctx.Done():
	}
}

func (s *PlaybackService) handleMessage(msg any) {
	switch m := msg.(type) {
	case downloadingMsg:
		if m.generation != s.session.generation || s.session.state != domain.StateResolving {
			return
		}
		s.setState(domain.StateDownloading)

	case resolvedMsg:
		if m.generation != s.session.generation || !s.session.state.IsResolving() {
			s.logger.Debug("discarding stale resolution",
				slog.String("uri", m.track.URI),
				slog.Uint64("generation", m.generation))
			return
		}
		s.start(m)
	}
}

// advance stops the current track and begins resolving the head of the queue.
func (s *PlaybackService) advance() {
	if s.session.state.IsResolving() {
		s.logger.Debug("advance ignored while resolving")
		return
	}

	s.releasePlayer()

	if len(s.session.queue) == 0 {
		s.session.current = nil
		s.setState(domain.StateStopped)
		return
	}

	track := s.session.queue[0]
	s.session.queue = s.session.queue[1:]
	s.session.current = &track
	s.session.generation++
	s.session.state = domain.StateResolving
	s.storeSnapshot()

	generation := s.session.generation
	policy := ResolvePolicy{
		Download: s.session.download,
		Headers:  domain.AuthHeaders(s.session.auth),
	}

	s.logger.Debug("resolving track",
		slog.String("track", track.Label()),
		slog.Bool("download", policy.Download),
		slog.Uint64("generation", generation))

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()

		res, err := s.resolver.Resolve(s.ctx, track, policy, func() {
			s.post(downloadingMsg{generation: generation})
		})
		s.post(resolvedMsg{generation: generation, track: track, resolution: res, err: err})
	}()
}

// SetLoadTimeout bounds how long a player load may hold the loop.
// Non-positive values select DefaultLoadTimeout.
func (s *PlaybackService) SetLoadTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultLoadTimeout
	}
	s.loadTimeout.Store(int64(d))
}

// start loads and plays a resolved track, skipping forward on failure.
func (s *PlaybackService) start(m resolvedMsg) {
	if m.err != nil {
		s.fail(m.track, m.err)
		return
	}

	s.bus.Publish(domain.NewTrackResolvedEvent(m.track, m.resolution))

	ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.loadTimeout.Load()))
	handle, err := s.player.Load(ctx, m.resolution.Location, domain.AuthHeaders(s.session.auth))
	cancel()
	if err != nil {
		s.fail(m.track, err)
		return
	}

	if err := s.player.Play(handle); err != nil {
		if stopErr := s.player.Stop(handle); stopErr != nil {
			s.logger.Warn("failed to release track after play error", slog.Any("error", stopErr))
		}
		s.fail(m.track, err)
		return
	}

	s.session.handle = handle
	s.session.resolution = m.resolution
	s.session.position = 0
	s.session.duration = 0
	if d, err := s.player.Duration(handle); err == nil {
		s.session.duration = d
	}

	s.logger.Info("playing",
		slog.String("track", m.track.Label()),
		slog.String("source", m.resolution.Source.String()),
		slog.Bool("local", m.resolution.IsLocal()))
	s.setState(domain.StatePlaying)
}

// fail reports a track that could not be played and moves on.
func (s *PlaybackService) fail(track domain.Track, err error) {
	s.logger.Warn("cannot play track, skipping", slog.String("uri", track.URI), slog.Any("error", err))
	s.bus.Publish(domain.NewTrackErrorEvent(track, err))

	s.session.state = domain.StateStopped
	s.advance()
}

func (s *PlaybackService) stop() {
	s.session.generation++
	s.releasePlayer()
	s.session.current = nil
	s.setState(domain.StateStopped)
}

// update polls the player for progress and natural completion.
func (s *PlaybackService) update() {
	if s.session.handle == domain.InvalidTrackHandle {
		return
	}

	status, err := s.player.Status(s.session.handle)
	if err != nil {
		s.logger.Debug("status poll failed", slog.Any("error", err))
		return
	}

	if s.session.state == domain.StatePlaying && status == domain.StatusStopped {
		if s.session.current != nil {
			s.bus.Publish(domain.NewTrackCompletedEvent(*s.session.current))
		}
		s.session.state = domain.StateStopped
		s.advance()
		return
	}

	if position, err := s.player.Position(s.session.handle); err == nil {
		s.session.position = position
	}
	s.storeSnapshot()

	if s.session.state == domain.StatePlaying && s.bus.HasSubscribers(domain.EventTrackProgress) {
		s.bus.Publish(domain.NewTrackProgressEvent(s.session.position, s.session.duration))
	}
}

func (s *PlaybackService) releasePlayer() {
	if s.session.handle == domain.InvalidTrackHandle {
		return
	}
	if err := s.player.Stop(s.session.handle); err != nil {
		s.logger.Debug("failed to stop track", slog.Any("error", err))
	}
	s.session.handle = domain.InvalidTrackHandle
	s.session.resolution = domain.Resolution{}
	s.session.position = 0
	s.session.duration = 0
}

// setState records a broadcast state and publishes it.
func (s *PlaybackService) setState(state domain.PlaybackState) {
	s.session.state = state
	s.storeSnapshot()

	var track *domain.Track
	if s.session.current != nil && state != domain.StateStopped {
		t := *s.session.current
		track = &t
	}
	s.bus.Publish(domain.NewStateChangedEvent(state, track))
}

func (s *PlaybackService) storeSnapshot() {
	snap := domain.SessionSnapshot{
		State:       s.session.state,
		QueueLength: len(s.session.queue),
		Download:    s.session.download,
		Position:    s.session.position,
		Duration:    s.session.duration,
	}
	if s.session.current != nil {
		t := *s.session.current
		snap.Current = &t
	}
	if s.session.handle != domain.InvalidTrackHandle {
		snap.Location = s.session.resolution.Location
		snap.Source = s.session.resolution.Source.String()
	}
	s.snapshot.Store(&snap)
}
