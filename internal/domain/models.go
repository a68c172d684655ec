// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the dstream playback daemon.
package domain

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// placeholder titles the media server reports when a file carries no tags.
var placeholderTitles = map[string]struct{}{
	"Untitled": {},
	"null":     {},
}

// CatalogEntry is a raw track descriptor as returned by the media server catalog.
type CatalogEntry struct {
	ID         int     `json:"id"`
	File       string  `json:"file"`
	ArtistName string  `json:"artistName"`
	Title      string  `json:"title"`
	AlbumName  string  `json:"albumName"`
	Year       int     `json:"year"`
	Duration   float64 `json:"duration"`
	Codec      string  `json:"codec"`
}

// Track represents a single remote track with display metadata.
// Tracks are immutable values; every field is derived once by NewTrack.
type Track struct {
	// ID is unique within a catalog
	ID int `json:"id"`

	// File is the server-side path of the track
	File string `json:"file,omitempty"`

	// URI is the canonical remote resource identifier
	URI string `json:"uri"`

	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Year     string `json:"year,omitempty"`
	Duration string `json:"duration,omitempty"`
	Codec    string `json:"codec,omitempty"`
}

// NewTrack builds a Track from a catalog entry.
// When the server reports a placeholder title the metadata is derived from the file path.
func NewTrack(entry CatalogEntry, baseURL string) Track {
	track := Track{
		ID:       entry.ID,
		File:     entry.File,
		URI:      TrackURI(baseURL, entry.File),
		Title:    entry.Title,
		Artist:   entry.ArtistName,
		Album:    entry.AlbumName,
		Codec:    entry.Codec,
		Duration: FormatDuration(entry.Duration),
	}
	if entry.Year > -1 {
		track.Year = strconv.Itoa(entry.Year)
	}

	if _, ok := placeholderTitles[entry.Title]; ok {
		track.Title = fileStem(entry.File)
		track.Artist = artistFromPath(entry.File)
		track.Album = "-"
		track.Codec = fileExt(entry.File)
		track.Year = "-"
		track.Duration = "-"
	}

	return track
}

// TrackURI joins a server base (host and optional path, no scheme) with a file path.
func TrackURI(baseURL, file string) string {
	base := strings.TrimSuffix(baseURL, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	if file != "" && !strings.HasPrefix(file, "/") {
		file = "/" + file
	}
	return base + file
}

// TrackRef identifies a queued track on the command surface.
type TrackRef struct {
	ID  int    `json:"id"`
	URI string `json:"uri"`
}

// Ref returns the command-surface reference for the track.
func (t Track) Ref() TrackRef {
	return TrackRef{ID: t.ID, URI: t.URI}
}

// Label returns "Artist - Title" for logs and session metadata.
func (t Track) Label() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return t.URI
	}
}

// CacheRecord maps a remote track URI to a locally downloaded file.
type CacheRecord struct {
	// ID is assigned by the repository
	ID int64 `json:"id"`

	// RemoteURI is the unique key of the record
	RemoteURI string `json:"remote_uri"`

	// LocalURI is the absolute path of the downloaded file
	LocalURI string `json:"local_uri"`

	// PlayCount starts at 1 and is incremented on every cache hit
	PlayCount int `json:"play_count"`

	// Tag metadata read from the downloaded file, if any
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastPlayedAt time.Time `json:"last_played_at"`
}

// TrackTags is the subset of embedded file tags stored with cache records.
type TrackTags struct {
	Title  string
	Artist string
	Album  string
	Year   int
	Format string
}

// ResolveSource tells where a resolved location points to.
type ResolveSource int

const (
	// SourceStream is the original remote URI
	SourceStream ResolveSource = iota

	// SourceCache is a previously downloaded local file
	SourceCache

	// SourceDownloaded is a file downloaded during this resolution
	SourceDownloaded
)

// String returns a human-readable representation of the source.
func (s ResolveSource) String() string {
	switch s {
	case SourceStream:
		return "stream"
	case SourceCache:
		return "cache"
	case SourceDownloaded:
		return "downloaded"
	default:
		return "unknown"
	}
}

// Resolution is the playable location of a track.
type Resolution struct {
	Location string
	Source   ResolveSource
}

// IsLocal reports whether the location is a local file.
func (r Resolution) IsLocal() bool {
	return r.Source == SourceCache || r.Source == SourceDownloaded
}

// PlaybackState is the state of the orchestrator's state machine.
type PlaybackState int

const (
	// StateStopped indicates nothing is playing or resolving
	StateStopped PlaybackState = iota

	// StateResolving indicates the head track is being resolved
	StateResolving

	// StateDownloading indicates the resolution is downloading the track
	StateDownloading

	// StatePlaying indicates playback is active
	StatePlaying

	// StatePaused indicates playback is paused
	StatePaused
)

// String returns the wire name of the state.
func (s PlaybackState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateResolving:
		return "resolving"
	case StateDownloading:
		return "downloading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// IsResolving reports whether a resolution is in flight.
func (s PlaybackState) IsResolving() bool {
	return s == StateResolving || s == StateDownloading
}

// MarshalText encodes the state as its wire name.
func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParsePlaybackState parses a wire name.
func ParsePlaybackState(name string) (PlaybackState, bool) {
	for _, s := range []PlaybackState{StateStopped, StateResolving, StateDownloading, StatePlaying, StatePaused} {
		if s.String() == name {
			return s, true
		}
	}
	return StateStopped, false
}

// SessionSnapshot is a read-only view of the orchestrator session.
type SessionSnapshot struct {
	State       PlaybackState `json:"state"`
	Current     *Track        `json:"current,omitempty"`
	Location    string        `json:"location,omitempty"`
	Source      string        `json:"source,omitempty"`
	QueueLength int           `json:"queue_length"`
	Download    bool          `json:"download"`
	Position    time.Duration `json:"position"`
	Duration    time.Duration `json:"duration"`
}

// PlayerStatus is the status reported by the player capability.
type PlayerStatus int

const (
	// StatusStopped indicates the player is not producing audio
	StatusStopped PlayerStatus = iota

	// StatusPlaying indicates the player is producing audio
	StatusPlaying

	// StatusPaused indicates the player is paused
	StatusPaused

	// StatusStalled indicates the player is buffering
	StatusStalled
)

// String returns a human-readable representation of the player status.
func (s PlayerStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// TrackHandle is an opaque identifier for a source loaded into the player.
type TrackHandle int64

const (
	// InvalidTrackHandle represents an invalid or uninitialized track handle
	InvalidTrackHandle TrackHandle = 0
)

// BasicAuth builds an HTTP Basic credential from "user:pass".
// An empty pair yields an empty credential.
func BasicAuth(username, password string) string {
	if username == "" && password == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// RemoteFileName returns the final path segment of a remote URI, unescaped.
// It names the local copy of a downloaded track.
func RemoteFileName(remoteURI string) (string, error) {
	u, err := url.Parse(remoteURI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFileName, err)
	}
	name := path.Base(u.Path)
	switch name {
	case "", ".", "..", "/":
		return "", ErrInvalidFileName
	}
	return name, nil
}

// AuthHeaders returns the request headers carrying the credential.
func AuthHeaders(auth string) map[string]string {
	if auth == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": auth}
}

func fileStem(file string) string {
	name := file[strings.LastIndex(file, "/")+1:]
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

func fileExt(file string) string {
	if i := strings.LastIndex(file, "."); i >= 0 {
		return file[i+1:]
	}
	return file
}

// artistFromPath returns the third path segment of "/library/<artist>/<album>/file".
func artistFromPath(file string) string {
	rest := file
	for range 2 {
		i := strings.Index(rest, "/")
		if i < 0 {
			break
		}
		rest = rest[i+1:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i]
	}
	return rest
}
