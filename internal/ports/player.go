// Package ports define interfaces for dependency inversion.
// These interfaces allow the core business logic to remain independent of external frameworks.
package ports

import (
	"context"
	"time"

	"github.com/tejashwikalptaru/dstream/internal/domain"
)

// Player is the opaque media decode/render capability driven by the orchestrator.
// A location is either an absolute local path or a remote URI; remote URIs are
// opened with the supplied request headers.
//
// Implementations must be thread-safe as they may be called from multiple goroutines.
type Player interface {
	// Load prepares a source for playback and returns a handle to it.
	// The source remains loaded until Stop is called with the handle.
	//
	// Load runs on the orchestrator loop and blocks its commands until it
	// returns, so it must give up once ctx is done.
	//
	// Returns an error if the location cannot be opened.
	Load(ctx context.Context, location string, headers map[string]string) (domain.TrackHandle, error)

	// Play starts or resumes playback of the specified source.
	Play(handle domain.TrackHandle) error

	// Pause pauses playback, preserving the position.
	Pause(handle domain.TrackHandle) error

	// Stop stops playback of the specified source and releases it.
	// The handle is invalid afterwards.
	Stop(handle domain.TrackHandle) error

	// Status returns the current status of the specified source.
	// A source that reached its end reports StatusStopped.
	Status(handle domain.TrackHandle) (domain.PlayerStatus, error)

	// Position returns the current playback position.
	Position(handle domain.TrackHandle) (time.Duration, error)

	// Duration returns the total duration, zero when unknown (e.g. live streams).
	Duration(handle domain.TrackHandle) (time.Duration, error)

	// Close releases all player resources.
	Close() error
}
