package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// DefaultDownloadTimeout bounds a single track download.
const DefaultDownloadTimeout = 5 * time.Minute

// ResolvePolicy carries the session settings a resolution runs under.
type ResolvePolicy struct {
	// Download enables the local cache; disabled means always stream
	Download bool

	// Headers are sent with the download request
	Headers map[string]string
}

// ResolverService maps tracks to a playable location, downloading and
// caching them locally when the policy allows it.
//
// Thread-safety: Resolve may be called concurrently. Resolutions of the
// same remote URI share one lookup and at most one download, and every caller
// of a shared resolution is told when its download starts.
type ResolverService struct {
	logger     *slog.Logger
	repo       ports.CacheRepository
	downloader ports.Downloader
	tags       ports.TagReader
	timeout    time.Duration

	flights singleflight.Group

	// watchers and downloading are keyed by remote URI
	watchMu     sync.Mutex
	watchers    map[string][]*downloadWatcher
	downloading map[string]bool
}

// downloadWatcher is one caller waiting for a resolution's download to start.
type downloadWatcher struct {
	notify   func()
	notified bool
}

// NewResolverService creates a resolver. tags may be nil, and a zero
// timeout selects DefaultDownloadTimeout.
func NewResolverService(
	logger *slog.Logger,
	repo ports.CacheRepository,
	downloader ports.Downloader,
	tags ports.TagReader,
	timeout time.Duration,
) *ResolverService {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &ResolverService{
		logger:      logger,
		repo:        repo,
		downloader:  downloader,
		tags:        tags,
		timeout:     timeout,
		watchers:    make(map[string][]*downloadWatcher),
		downloading: make(map[string]bool),
	}
}

// Resolve returns the location the player should open for track.
//
// With downloads disabled the remote URI is returned without touching the cache.
// Otherwise a readable cached copy wins; a missing copy is purged and the track
// is downloaded again. onDownload is called once when the download serving this
// call starts, also when the call joined a resolution already downloading.
// Download failures fall back to streaming; only a canceled ctx is an error.
func (s *ResolverService) Resolve(
	ctx context.Context,
	track domain.Track,
	policy ResolvePolicy,
	onDownload func(),
) (domain.Resolution, error) {
	if track.URI == "" {
		return domain.Resolution{}, domain.NewValidationError("uri", track.URI, "track has no remote URI")
	}

	stream := domain.Resolution{Location: track.URI, Source: domain.SourceStream}
	if !policy.Download {
		return stream, nil
	}

	defer s.watch(track.URI, onDownload)()

	// The flight runs under the first caller's ctx and is bounded by the download timeout
	v, err, shared := s.flights.Do(track.URI, func() (any, error) {
		return s.resolveLocal(ctx, track, policy)
	})
	if err != nil {
		return domain.Resolution{}, err
	}
	if shared {
		s.logger.Debug("resolution shared", slog.String("uri", track.URI))
	}
	return v.(domain.Resolution), nil
}

func (s *ResolverService) resolveLocal(
	ctx context.Context,
	track domain.Track,
	policy ResolvePolicy,
) (domain.Resolution, error) {
	record, err := s.repo.Find(ctx, track.URI)
	switch {
	case err == nil:
		readErr := checkReadable(record.LocalURI)
		if readErr == nil {
			if err := s.repo.RecordPlay(ctx, track.URI); err != nil {
				s.logger.Warn("failed to record play", slog.String("uri", track.URI), slog.Any("error", err))
			}
			s.logger.Debug("cache hit", slog.String("uri", track.URI), slog.String("path", record.LocalURI))
			return domain.Resolution{Location: record.LocalURI, Source: domain.SourceCache}, nil
		}
		// Retried once as a miss below
		s.purge(ctx, record, readErr)
	case errors.Is(err, domain.ErrCacheMiss):
	default:
		s.logger.Warn("cache lookup failed, treating as miss", slog.String("uri", track.URI), slog.Any("error", err))
	}

	return s.download(ctx, track, policy)
}

// purge removes a record whose local file is gone.
func (s *ResolverService) purge(ctx context.Context, record *domain.CacheRecord, cause error) {
	stale := &domain.StaleCacheEntryError{RemoteURI: record.RemoteURI, LocalURI: record.LocalURI, Err: cause}
	s.logger.Warn("purging stale cache entry", slog.Any("error", stale))

	if err := s.repo.Delete(ctx, record.RemoteURI); err != nil {
		s.logger.Warn("failed to delete stale cache entry", slog.String("uri", record.RemoteURI), slog.Any("error", err))
	}
}

func (s *ResolverService) download(
	ctx context.Context,
	track domain.Track,
	policy ResolvePolicy,
) (domain.Resolution, error) {
	stream := domain.Resolution{Location: track.URI, Source: domain.SourceStream}

	name, err := domain.RemoteFileName(track.URI)
	if err != nil {
		s.logger.Warn("cannot name download, streaming instead", slog.String("uri", track.URI), slog.Any("error", err))
		return stream, nil
	}

	defer s.startDownload(track.URI)()

	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	local, err := s.downloader.Download(dctx, name, track.URI, policy.Headers)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Resolution{}, ctx.Err()
		}
		s.logger.Warn("download failed, streaming instead", slog.String("uri", track.URI), slog.Any("error", err))
		return stream, nil
	}

	record := domain.CacheRecord{
		RemoteURI: track.URI,
		LocalURI:  local,
		Title:     track.Title,
		Artist:    track.Artist,
		Album:     track.Album,
	}
	s.applyTags(&record)

	if _, err := s.repo.Insert(ctx, record); err != nil {
		s.logger.Warn("failed to cache download", slog.String("uri", track.URI), slog.Any("error", err))
	}

	return domain.Resolution{Location: local, Source: domain.SourceDownloaded}, nil
}

// watch registers onDownload for the resolution of uri and returns its
// unregister func. A download already running is reported right away.
func (s *ResolverService) watch(uri string, onDownload func()) func() {
	if onDownload == nil {
		return func() {}
	}

	w := &downloadWatcher{notify: onDownload}
	s.watchMu.Lock()
	s.watchers[uri] = append(s.watchers[uri], w)
	running := s.downloading[uri]
	w.notified = running
	s.watchMu.Unlock()

	if running {
		onDownload()
	}

	return func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		watchers := s.watchers[uri]
		for i, other := range watchers {
			if other == w {
				watchers = append(watchers[:i:i], watchers[i+1:]...)
				break
			}
		}
		if len(watchers) == 0 {
			delete(s.watchers, uri)
		} else {
			s.watchers[uri] = watchers
		}
	}
}

// startDownload marks uri as downloading and notifies its watchers. The
// returned func clears the mark.
func (s *ResolverService) startDownload(uri string) func() {
	s.watchMu.Lock()
	s.downloading[uri] = true
	var notify []func()
	for _, w := range s.watchers[uri] {
		if !w.notified {
			w.notified = true
			notify = append(notify, w.notify)
		}
	}
	s.watchMu.Unlock()

	for _, fn := range notify {
		fn()
	}

	return func() {
		s.watchMu.Lock()
		delete(s.downloading, uri)
		s.watchMu.Unlock()
	}
}

// applyTags prefers the downloaded file's own tags over catalog metadata.
func (s *ResolverService) applyTags(record *domain.CacheRecord) {
	if s.tags == nil {
		return
	}
	tags, err := s.tags.ReadTags(record.LocalURI)
	if err != nil {
		s.logger.Debug("no tags read", slog.String("path", record.LocalURI), slog.Any("error", err))
		return
	}
	if tags.Title != "" {
		record.Title = tags.Title
	}
	if tags.Artist != "" {
		record.Artist = tags.Artist
	}
	if tags.Album != "" {
		record.Album = tags.Album
	}
}

// Records lists the cache, most played first.
func (s *ResolverService) Records(ctx context.Context) ([]domain.CacheRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	return records, nil
}

// Prune keeps the keep most played records and removes the rest together with
// their local files. It returns the number of records removed.
func (s *ResolverService) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, domain.NewValidationError("keep", keep, "must not be negative")
	}

	records, err := s.Records(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) <= keep {
		return 0, nil
	}

	removed := 0
	for _, record := range records[keep:] {
		if err := s.repo.Delete(ctx, record.RemoteURI); err != nil {
			return removed, fmt.Errorf("prune %s: %w", record.RemoteURI, err)
		}
		if err := os.Remove(record.LocalURI); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove cached file", slog.String("path", record.LocalURI), slog.Any("error", err))
		}
		removed++
	}

	s.logger.Info("cache pruned", slog.Int("removed", removed), slog.Int("kept", keep))
	return removed, nil
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrFileNotFound
		}
		return err
	}
	return f.Close()
}
