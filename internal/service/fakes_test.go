package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/tejashwikalptaru/dstream/internal/domain"
)

// fakeDownloader writes a small file per download into dir.
type fakeDownloader struct {
	dir string

	mu      sync.Mutex
	calls   []string
	headers []map[string]string
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func newFakeDownloader(dir string) *fakeDownloader {
	return &fakeDownloader{dir: dir, entered: make(chan struct{}, 16)}
}

// hold makes downloads block until release or until their ctx ends.
func (d *fakeDownloader) hold() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate = make(chan struct{})
}

func (d *fakeDownloader) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gate != nil {
		close(d.gate)
		d.gate = nil
	}
}

func (d *fakeDownloader) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDownloader) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDownloader) Download(ctx context.Context, fileName, remoteURI string, headers map[string]string) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, remoteURI)
	d.headers = append(d.headers, headers)
	gate, err := d.gate, d.err
	d.mu.Unlock()

	select {
	case d.entered <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", domain.NewNetworkError("download", remoteURI, 0, ctx.Err())
		}
	}
	if err != nil {
		return "", domain.NewNetworkError("download", remoteURI, 0, err)
	}

	path := filepath.Join(d.dir, fileName)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeTags struct {
	tags *domain.TrackTags
	err  error
}

func (f fakeTags) ReadTags(string) (*domain.TrackTags, error) {
	return f.tags, f.err
}

func testTrack(id int, name string) domain.Track {
	return domain.Track{
		ID:     id,
		File:   "/music/Artist/Album/" + name,
		URI:    "https://media.test/music/Artist/Album/" + name,
		Title:  name,
		Artist: "Artist",
		Album:  "Album",
	}
}
