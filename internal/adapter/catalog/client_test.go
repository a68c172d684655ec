package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/dstream/internal/domain"
)

type fakeServer struct {
	*httptest.Server
	lastQuery string
	lastAuth  string
	lastPath  string
}

func newFakeServer(t *testing.T, entries []map[string]any) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastPath = r.URL.Path
		f.lastQuery = r.URL.Query().Get("q")
		f.lastAuth = r.Header.Get("Authorization")
		if f.lastAuth == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}))
	t.Cleanup(f.Close)
	return f
}

func TestClient_Search(t *testing.T) {
	srv := newFakeServer(t, []map[string]any{
		{"id": 1, "file": "/music/Can/Tago Mago/Halleluhwah.flac", "artistName": "Can", "title": "Halleluhwah", "albumName": "Tago Mago", "year": 1971, "duration": 1113.0, "codec": "flac"},
		{"id": 2, "file": "/music/Can/Ege Bamyasi/Vitamin C.mp3", "title": "Untitled", "year": nil, "duration": nil},
	})

	c := NewClient(Config{BaseURL: srv.URL, Auth: domain.BasicAuth("u", "p")}, srv.Client(), nil)
	tracks, err := c.Search(context.Background(), "can & friends")
	require.NoError(t, err)

	assert.Equal(t, "/tracks.json", srv.lastPath)
	assert.Equal(t, "can & friends", srv.lastQuery)
	assert.Equal(t, "Basic dTpw", srv.lastAuth)

	require.Len(t, tracks, 2)
	assert.Equal(t, srv.URL+"/music/Can/Tago Mago/Halleluhwah.flac", tracks[0].URI)
	assert.Equal(t, "18:33", tracks[0].Duration)
	assert.Equal(t, "1971", tracks[0].Year)

	assert.Equal(t, "Vitamin C", tracks[1].Title)
	assert.Equal(t, "Can", tracks[1].Artist)
	assert.Equal(t, "mp3", tracks[1].Codec)
}

func TestClient_NullTags(t *testing.T) {
	srv := newFakeServer(t, []map[string]any{
		{"id": 3, "file": "/music/Neu/Neu 75/Isi.flac", "artistName": nil, "title": nil, "albumName": nil, "codec": "flac"},
		{"id": 4, "file": "/music/Neu/Neu 2/Lila Engel.mp3", "artistName": nil, "title": "Lila Engel", "albumName": nil},
	})

	c := NewClient(Config{BaseURL: srv.URL, Auth: "Basic x"}, srv.Client(), nil)
	tracks, err := c.Search(context.Background(), "neu")
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	// a null title falls back to the file path
	assert.Equal(t, "Isi", tracks[0].Title)
	assert.Equal(t, "Neu", tracks[0].Artist)
	assert.Equal(t, "-", tracks[0].Album)
	assert.Equal(t, "flac", tracks[0].Codec)

	assert.Equal(t, "Lila Engel", tracks[1].Title)
	assert.Empty(t, tracks[1].Artist)
	assert.Empty(t, tracks[1].Album)
}

func TestClient_EmptyQueryListsRandom(t *testing.T) {
	srv := newFakeServer(t, []map[string]any{})
	c := NewClient(Config{BaseURL: srv.URL, Auth: "Basic x"}, srv.Client(), nil)

	tracks, err := c.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, tracks)
	assert.Equal(t, "/random.json", srv.lastPath)
}

func TestClient_MaxResults(t *testing.T) {
	entries := make([]map[string]any, 150)
	for i := range entries {
		entries[i] = map[string]any{"id": i, "file": fmt.Sprintf("/m/a/b/%d.mp3", i), "title": "t"}
	}
	srv := newFakeServer(t, entries)

	c := NewClient(Config{BaseURL: srv.URL, Auth: "Basic x"}, srv.Client(), nil)
	tracks, err := c.Search(context.Background(), "t")
	require.NoError(t, err)
	assert.Len(t, tracks, DefaultMaxResults)
}

func TestClient_HTTPError(t *testing.T) {
	srv := newFakeServer(t, nil)
	c := NewClient(Config{BaseURL: srv.URL}, srv.Client(), nil)

	_, err := c.Search(context.Background(), "x")
	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusUnauthorized, netErr.StatusCode)
	assert.Equal(t, "search", netErr.Op)
}

func TestClient_RateLimited(t *testing.T) {
	srv := newFakeServer(t, []map[string]any{})
	c := NewClient(Config{BaseURL: srv.URL, Auth: "Basic x", RateLimit: 1}, srv.Client(), nil)

	_, err := c.Search(context.Background(), "a")
	require.NoError(t, err)

	// The bucket is empty, so a second request cannot start before the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "b")
	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "a", srv.lastQuery)
}
