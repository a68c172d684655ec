package ports

import (
	"context"

	"github.com/tejashwikalptaru/dstream/internal/domain"
)

// Downloader transfers a remote resource into the downloads directory.
type Downloader interface {
	// Download fetches remoteURI with the given headers into a file named fileName
	// and returns its absolute path. Failures are returned as *domain.NetworkError.
	Download(ctx context.Context, fileName, remoteURI string, headers map[string]string) (string, error)
}

// Catalog queries the media server for tracks.
type Catalog interface {
	// Search returns at most the configured number of tracks matching query.
	// An empty query returns a random selection.
	Search(ctx context.Context, query string) ([]domain.Track, error)
}

// TagReader extracts embedded metadata from a local audio file.
type TagReader interface {
	ReadTags(path string) (*domain.TrackTags, error)
}
