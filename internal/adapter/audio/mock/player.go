// Package mock provides an in-memory implementation of the Player interface.
// It is used for testing services and as the default backend when no audio output is configured.
package mock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// DefaultDuration is the simulated length of every loaded source.
const DefaultDuration = 3 * time.Minute

// Player is a mock implementation of the Player interface.
// It simulates playback in memory without producing audio.
//
// Thread-safety: This implementation is thread-safe.
type Player struct {
	logger *slog.Logger

	sources    map[domain.TrackHandle]*mockSource
	nextHandle domain.TrackHandle
	closed     bool
	mu         sync.RWMutex

	// Behavior configuration (for testing error scenarios)
	failLoad  map[string]error
	failPlay  bool
	loadGate  chan struct{}
	held      int
	duration  time.Duration
	loads     []LoadCall
	autoClock bool
}

// LoadCall records a call to Load.
type LoadCall struct {
	Location string
	Headers  map[string]string
}

// mockSource represents a loaded source in the mock player.
type mockSource struct {
	location string
	duration time.Duration
	position time.Duration
	status   domain.PlayerStatus
	started  time.Time
}

// NewPlayer creates a new mock player.
// A nil logger is allowed.
func NewPlayer(logger *slog.Logger) *Player {
	return &Player{
		logger:     logger,
		sources:    make(map[domain.TrackHandle]*mockSource),
		nextHandle: 1,
		failLoad:   make(map[string]error),
		duration:   DefaultDuration,
	}
}

// NewRealtimePlayer creates a mock player whose position follows the wall clock,
// so sources complete on their own after their duration.
func NewRealtimePlayer(logger *slog.Logger, duration time.Duration) *Player {
	p := NewPlayer(logger)
	p.duration = duration
	p.autoClock = true
	return p
}

// SetDuration changes the simulated duration of sources loaded afterwards.
func (m *Player) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// FailLoad makes Load fail for a location (for testing).
func (m *Player) FailLoad(location string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = errors.New("mock load failed")
	}
	m.failLoad[location] = err
}

// SetFailPlay configures the mock to fail playback (for testing).
func (m *Player) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// HoldLoads makes subsequent Load calls block until ReleaseLoads is called
// or their context is canceled (for testing).
func (m *Player) HoldLoads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadGate = make(chan struct{})
}

// ReleaseLoads unblocks Load calls held by HoldLoads.
func (m *Player) ReleaseLoads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadGate != nil {
		close(m.loadGate)
		m.loadGate = nil
	}
}

// HeldLoads returns the number of Load calls currently blocked by HoldLoads.
func (m *Player) HeldLoads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.held
}

// Load simulates opening a source and returns a handle.
func (m *Player) Load(ctx context.Context, location string, headers map[string]string) (domain.TrackHandle, error) {
	m.mu.Lock()
	gate := m.loadGate
	if gate != nil {
		m.held++
	}
	m.mu.Unlock()

	if gate != nil {
		var err error
		select {
		case <-gate:
		case <-ctx.Done():
			err = ctx.Err()
		}
		m.mu.Lock()
		m.held--
		m.mu.Unlock()
		if err != nil {
			return domain.InvalidTrackHandle, domain.NewPlayerError("load", location, "canceled", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return domain.InvalidTrackHandle, domain.ErrNotInitialized
	}

	m.loads = append(m.loads, LoadCall{Location: location, Headers: copyHeaders(headers)})

	if location == "" {
		return domain.InvalidTrackHandle, domain.NewPlayerError("load", location, "empty location", nil)
	}
	if err, ok := m.failLoad[location]; ok {
		return domain.InvalidTrackHandle, domain.NewPlayerError("load", location, "mock load failed", err)
	}

	handle := m.nextHandle
	m.nextHandle++

	m.sources[handle] = &mockSource{
		location: location,
		duration: m.duration,
		status:   domain.StatusStopped,
	}

	if m.logger != nil {
		m.logger.Debug("mock source loaded", slog.String("location", location), slog.Int64("handle", int64(handle)))
	}

	return handle, nil
}

// Play starts or resumes playback.
func (m *Player) Play(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPlay {
		return domain.NewPlayerError("play", "", "mock play failed", domain.ErrPlaybackFailed)
	}

	src, exists := m.sources[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	if src.status == domain.StatusStopped {
		src.position = 0
	}
	src.status = domain.StatusPlaying
	src.started = time.Now().Add(-src.position)
	return nil
}

// Pause pauses playback.
func (m *Player) Pause(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, exists := m.sources[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	if src.status == domain.StatusPlaying {
		m.tick(src)
		src.status = domain.StatusPaused
	}

	return nil
}

// Stop stops playback and releases the source.
func (m *Player) Stop(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[handle]; !exists {
		return domain.ErrInvalidTrackHandle
	}

	delete(m.sources, handle)
	return nil
}

// Status returns the playback status.
func (m *Player) Status(handle domain.TrackHandle) (domain.PlayerStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, exists := m.sources[handle]
	if !exists {
		return domain.StatusStopped, domain.ErrInvalidTrackHandle
	}

	m.tick(src)
	return src.status, nil
}

// Position returns the current playback position.
func (m *Player) Position(handle domain.TrackHandle) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, exists := m.sources[handle]
	if !exists {
		return 0, domain.ErrInvalidTrackHandle
	}

	m.tick(src)
	return src.position, nil
}

// Duration returns the total source duration.
func (m *Player) Duration(handle domain.TrackHandle) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src, exists := m.sources[handle]
	if !exists {
		return 0, domain.ErrInvalidTrackHandle
	}

	return src.duration, nil
}

// Close releases all sources.
func (m *Player) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.sources = make(map[domain.TrackHandle]*mockSource)
	if m.loadGate != nil {
		close(m.loadGate)
		m.loadGate = nil
	}
	return nil
}

// tick advances a realtime source; callers hold mu.
func (m *Player) tick(src *mockSource) {
	if !m.autoClock || src.status != domain.StatusPlaying {
		return
	}
	src.position = time.Since(src.started)
	if src.position >= src.duration {
		src.position = src.duration
		src.status = domain.StatusStopped
	}
}

// SimulateProgress advances the position of a playing source (for testing).
// Reaching the end stops the source, like a natural end of track.
func (m *Player) SimulateProgress(handle domain.TrackHandle, delta time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, exists := m.sources[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	if src.status != domain.StatusPlaying {
		return errors.New("source is not playing")
	}

	src.position += delta
	if src.position >= src.duration {
		src.position = src.duration
		src.status = domain.StatusStopped
	}

	return nil
}

// FinishAll ends every playing source (for testing).
func (m *Player) FinishAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, src := range m.sources {
		if src.status == domain.StatusPlaying {
			src.position = src.duration
			src.status = domain.StatusStopped
		}
	}
}

// Loads returns every Load call in order (for testing).
func (m *Player) Loads() []LoadCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LoadCall, len(m.loads))
	copy(out, m.loads)
	return out
}

// Loaded returns the locations of currently loaded sources (for testing).
func (m *Player) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sources))
	for _, src := range m.sources {
		out = append(out, src.location)
	}
	return out
}

// Playing returns the location of the playing source, if any (for testing).
func (m *Player) Playing() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, src := range m.sources {
		if src.status == domain.StatusPlaying {
			return src.location, true
		}
	}
	return "", false
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Verify that Player implements the Player interface
var _ ports.Player = (*Player)(nil)
