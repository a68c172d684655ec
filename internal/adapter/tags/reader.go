// Package tags reads embedded metadata from downloaded audio files.
package tags

import (
	"errors"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// Reader implements ports.TagReader with github.com/dhowden/tag.
type Reader struct{}

// NewReader creates a tag reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadTags extracts title, artist, album and year.
// Files without tags yield empty TrackTags and no error.
func (Reader) ReadTags(path string) (*domain.TrackTags, error) {
	if path == "" {
		return nil, domain.ErrFileNotFound
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return &domain.TrackTags{}, nil
	}
	if err != nil {
		return nil, err
	}

	tags := &domain.TrackTags{
		Title:  clean(metadata.Title()),
		Artist: clean(metadata.Artist()),
		Album:  clean(metadata.Album()),
		Year:   metadata.Year(),
	}
	if format := metadata.Format(); format != tag.UnknownFormat {
		tags.Format = string(format)
	}
	return tags, nil
}

func clean(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

var _ ports.TagReader = Reader{}
