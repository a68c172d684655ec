package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/music/ok.mp3", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Basic dXNlcjpwYXNz" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ID3-audio-bytes"))
	})
	mux.HandleFunc("/music/truncated.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDownload_Success(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	d := NewHTTPDownloader(dir, srv.Client(), logger.NewTestLogger())

	local, err := d.Download(context.Background(), "ok.mp3", srv.URL+"/music/ok.mp3", domain.AuthHeaders(domain.BasicAuth("user", "pass")))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "ok.mp3"), local)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio-bytes", string(data))
	assert.Equal(t, []string{"ok.mp3"}, dirEntries(t, dir))
}

func TestDownload_HTTPErrorLeavesNoFile(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	d := NewHTTPDownloader(dir, srv.Client(), nil)

	_, err := d.Download(context.Background(), "ok.mp3", srv.URL+"/music/ok.mp3", nil)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusUnauthorized, netErr.StatusCode)
	assert.Empty(t, dirEntries(t, dir))
}

func TestDownload_TruncatedBodyRemovesPartialFile(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	d := NewHTTPDownloader(dir, srv.Client(), nil)

	_, err := d.Download(context.Background(), "truncated.mp3", srv.URL+"/music/truncated.mp3", nil)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Empty(t, dirEntries(t, dir))
}

func TestDownload_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	uri := srv.URL + "/a.mp3"
	srv.Close()

	d := NewHTTPDownloader(t.TempDir(), nil, nil)
	_, err := d.Download(context.Background(), "a.mp3", uri, nil)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
}

func TestDownload_NameCollisionKeepsExistingFile(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.mp3"), []byte("other album"), 0o644))

	d := NewHTTPDownloader(dir, srv.Client(), nil)
	local, err := d.Download(context.Background(), "ok.mp3", srv.URL+"/music/ok.mp3", domain.AuthHeaders(domain.BasicAuth("user", "pass")))
	require.NoError(t, err)

	assert.NotEqual(t, filepath.Join(dir, "ok.mp3"), local)
	assert.Equal(t, ".mp3", filepath.Ext(local))

	existing, _ := os.ReadFile(filepath.Join(dir, "ok.mp3"))
	assert.Equal(t, "other album", string(existing))
	assert.Len(t, dirEntries(t, dir), 2)
}

func TestDownload_CanceledContext(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	d := NewHTTPDownloader(dir, srv.Client(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Download(ctx, "ok.mp3", srv.URL+"/music/ok.mp3", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirEntries(t, dir))
}

func TestDownload_InvalidFileName(t *testing.T) {
	d := NewHTTPDownloader(t.TempDir(), nil, nil)
	for _, name := range []string{"", ".", "..", "a/b.mp3"} {
		_, err := d.Download(context.Background(), name, "https://h/x", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidFileName, name)
	}
}
