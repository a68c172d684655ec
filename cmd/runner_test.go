package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/tejashwikalptaru/dstream/internal/adapter/repository/sqlite"
	"github.com/tejashwikalptaru/dstream/internal/domain"
)

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: out, LogOutput: io.Discard})
	root := &cli.Command{Name: "dstream", Commands: runner.register()}
	err := root.Run(context.Background(), append([]string{"dstream"}, args...))
	return out.String(), err
}

// writeConfig writes a config file pointing at server with paths under a temp dir.
func writeConfig(t *testing.T, server string) (path, cachePath string) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "config.toml")
	cachePath = filepath.Join(dir, "cache.db")
	body := fmt.Sprintf(`
[server]
base_url = %q

[download]
dir = %q

[cache]
path = %q
`, server, filepath.Join(dir, "music"), cachePath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, cachePath
}

func TestRunner_NewRunnerDefaults(t *testing.T) {
	runner := NewRunner(RunnerOpts{})
	assert.Equal(t, os.Stdout, runner.output)
	assert.Equal(t, os.Stderr, runner.logOutput)
	assert.Len(t, runner.register(), 5)
}

func TestConfigInitAndCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dstream", "config.toml")

	out, err := run(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)
	assert.FileExists(t, path)

	out, err = run(t, "config", "check", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	// never overwrites
	_, err = run(t, "config", "init", "--config", path)
	assert.Error(t, err)
}

func TestConfigCheck_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[player]\nbackend = \"bogus\"\n"), 0o644))

	_, err := run(t, "config", "check", "--config", path)
	require.Error(t, err)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSearch(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":1,"file":"/music/Artist/Album/song.mp3","artistName":"Artist",`+
			`"title":"Song","albumName":"Album","year":2001,"duration":65,"codec":"mp3"}]`)
	}))
	defer server.Close()

	path, _ := writeConfig(t, server.URL)

	out, err := run(t, "search", "--config", path, "some", "song")
	require.NoError(t, err)
	assert.Equal(t, "some song", query)
	assert.Contains(t, out, "Song")
	assert.Contains(t, out, "Artist")
	assert.Contains(t, out, "1:05")

	out, err = run(t, "search", "--config", path, "--json", "song")
	require.NoError(t, err)
	assert.Contains(t, out, `"uri": "`+server.URL+`/music/Artist/Album/song.mp3"`)
}

func TestSearch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	path, _ := writeConfig(t, server.URL)

	_, err := run(t, "search", "--config", path, "x")
	require.Error(t, err)

	var nerr *domain.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusUnauthorized, nerr.StatusCode)
}

func TestCacheListAndPrune(t *testing.T) {
	path, cachePath := writeConfig(t, "media.test")

	out, err := run(t, "cache", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "cache is empty")

	db, err := sqlite.Open(cachePath)
	require.NoError(t, err)
	repo := sqlite.NewCacheRepository(db)

	ctx := context.Background()
	files := make([]string, 2)
	for i, name := range []string{"a.mp3", "b.mp3"} {
		files[i] = filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(files[i], make([]byte, 2048), 0o644))
		_, err := repo.Insert(ctx, domain.CacheRecord{
			RemoteURI: "https://media.test/music/" + name,
			LocalURI:  files[i],
			Title:     "Song " + name,
			Artist:    "Artist",
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.RecordPlay(ctx, "https://media.test/music/b.mp3"))
	require.NoError(t, repo.Close())

	out, err = run(t, "cache", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Artist - Song a.mp3")
	assert.Contains(t, out, "2.0 kB")

	out, err = run(t, "cache", "prune", "--config", path, "--keep", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 cached track")
	assert.NoFileExists(t, files[0])
	assert.FileExists(t, files[1])

	out, err = run(t, "cache", "list", "--config", path, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "https://media.test/music/b.mp3")
	assert.NotContains(t, out, "https://media.test/music/a.mp3")
}

func TestCachePrune_NegativeKeep(t *testing.T) {
	path, _ := writeConfig(t, "media.test")

	_, err := run(t, "cache", "prune", "--config", path, "--keep=-1")
	require.Error(t, err)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dstream dev")
}
