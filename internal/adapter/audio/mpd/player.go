// Package mpd implements the Player interface on top of a Music Player Daemon.
// Every operation opens a short-lived authenticated connection.
package mpd

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// Config holds MPD connection settings.
type Config struct {
	Network  string // "tcp" or "unix"
	Address  string
	Password string
}

// Player drives an MPD instance. Each loaded source is an MPD queue entry and
// its handle is the MPD song id.
type Player struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	sources map[domain.TrackHandle]string
}

// NewPlayer checks that the daemon is reachable and returns a player for it.
func NewPlayer(ctx context.Context, cfg Config, logger *slog.Logger) (*Player, error) {
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{
		cfg:     cfg,
		logger:  logger,
		sources: make(map[domain.TrackHandle]string),
	}
	err := p.withMpd(ctx, func(c *mpd.Client) error {
		return c.Ping()
	})
	if err != nil {
		return nil, domain.NewPlayerError("connect", cfg.Address, "mpd unreachable", err)
	}
	return p, nil
}

func (p *Player) withMpd(ctx context.Context, fn func(*mpd.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := mpd.DialAuthenticated(p.cfg.Network, p.cfg.Address, p.cfg.Password)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// Load appends the location to the MPD queue.
func (p *Player) Load(ctx context.Context, location string, headers map[string]string) (domain.TrackHandle, error) {
	uri, err := StreamURL(location, headers)
	if err != nil {
		return domain.InvalidTrackHandle, domain.NewPlayerError("load", location, "unsupported location", err)
	}

	var id int
	err = p.withMpd(ctx, func(c *mpd.Client) error {
		id, err = c.AddID(uri, -1)
		return err
	})
	if err != nil {
		return domain.InvalidTrackHandle, domain.NewPlayerError("load", location, "addid failed", err)
	}

	handle := domain.TrackHandle(id)
	p.mu.Lock()
	p.sources[handle] = location
	p.mu.Unlock()

	p.logger.Debug("mpd source queued", slog.String("location", location), slog.Int("song_id", id))
	return handle, nil
}

func (p *Player) lookup(handle domain.TrackHandle) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	location, ok := p.sources[handle]
	if !ok {
		return "", domain.ErrInvalidTrackHandle
	}
	return location, nil
}

// Play starts the song, or unpauses it when it is the current paused song.
func (p *Player) Play(handle domain.TrackHandle) error {
	location, err := p.lookup(handle)
	if err != nil {
		return err
	}
	err = p.withMpd(context.Background(), func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		if status["state"] == "pause" && status["songid"] == strconv.Itoa(int(handle)) {
			return c.Pause(false)
		}
		return c.PlayID(int(handle))
	})
	if err != nil {
		return domain.NewPlayerError("play", location, "mpd play failed", err)
	}
	return nil
}

// Pause pauses the daemon.
func (p *Player) Pause(handle domain.TrackHandle) error {
	location, err := p.lookup(handle)
	if err != nil {
		return err
	}
	if err := p.withMpd(context.Background(), func(c *mpd.Client) error {
		return c.Pause(true)
	}); err != nil {
		return domain.NewPlayerError("pause", location, "mpd pause failed", err)
	}
	return nil
}

// Stop stops the daemon and removes the song from its queue.
func (p *Player) Stop(handle domain.TrackHandle) error {
	location, err := p.lookup(handle)
	if err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.sources, handle)
	p.mu.Unlock()

	err = p.withMpd(context.Background(), func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		if status["songid"] == strconv.Itoa(int(handle)) {
			if err := c.Stop(); err != nil {
				return err
			}
		}
		// The song may already have been consumed by MPD.
		_ = c.DeleteID(int(handle))
		return nil
	})
	if err != nil {
		return domain.NewPlayerError("stop", location, "mpd stop failed", err)
	}
	return nil
}

func (p *Player) status(handle domain.TrackHandle) (mpd.Attrs, error) {
	if _, err := p.lookup(handle); err != nil {
		return nil, err
	}
	var attrs mpd.Attrs
	err := p.withMpd(context.Background(), func(c *mpd.Client) error {
		var err error
		attrs, err = c.Status()
		return err
	})
	return attrs, err
}

// Status maps the MPD state of the song. A song that is no longer current has ended.
func (p *Player) Status(handle domain.TrackHandle) (domain.PlayerStatus, error) {
	attrs, err := p.status(handle)
	if err != nil {
		return domain.StatusStopped, err
	}
	if attrs["songid"] != strconv.Itoa(int(handle)) {
		return domain.StatusStopped, nil
	}
	switch attrs["state"] {
	case "play":
		return domain.StatusPlaying, nil
	case "pause":
		return domain.StatusPaused, nil
	default:
		return domain.StatusStopped, nil
	}
}

// Position returns the elapsed time of the current song.
func (p *Player) Position(handle domain.TrackHandle) (time.Duration, error) {
	attrs, err := p.status(handle)
	if err != nil {
		return 0, err
	}
	return seconds(attrs["elapsed"]), nil
}

// Duration returns the length of the current song, zero for streams.
func (p *Player) Duration(handle domain.TrackHandle) (time.Duration, error) {
	attrs, err := p.status(handle)
	if err != nil {
		return 0, err
	}
	return seconds(attrs["duration"]), nil
}

// Close forgets all sources. The daemon keeps running.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = make(map[domain.TrackHandle]string)
	return nil
}

func seconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// StreamURL converts a location into an MPD URI.
// MPD cannot send request headers, so Basic credentials move into the URL userinfo.
func StreamURL(location string, headers map[string]string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("empty location")
	}
	if filepath.IsAbs(location) {
		return (&url.URL{Scheme: "file", Path: location}).String(), nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme %q not supported", u.Scheme)
	}

	if auth, ok := headers["Authorization"]; ok && strings.HasPrefix(auth, "Basic ") {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		if err != nil {
			return "", fmt.Errorf("decode credential: %w", err)
		}
		user, pass, _ := strings.Cut(string(raw), ":")
		u.User = url.UserPassword(user, pass)
	}
	return u.String(), nil
}

var _ ports.Player = (*Player)(nil)
