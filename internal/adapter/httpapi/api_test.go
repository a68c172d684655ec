package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/dstream/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/dstream/internal/adapter/download"
	"github.com/tejashwikalptaru/dstream/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/dstream/internal/adapter/repository/memory"
	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/logger"
	"github.com/tejashwikalptaru/dstream/internal/service"
)

type fakeCatalog struct {
	tracks []domain.Track
	err    error
	query  string
}

func (c *fakeCatalog) Search(_ context.Context, query string) ([]domain.Track, error) {
	c.query = query
	return c.tracks, c.err
}

type fixture struct {
	server   *httptest.Server
	player   *mock.Player
	playback *service.PlaybackService
	queue    *service.QueueService
	repo     *memory.CacheRepository
	catalog  *fakeCatalog
}

func track(id int, name string) domain.Track {
	return domain.NewTrack(domain.CatalogEntry{
		ID:         id,
		File:       "/music/Artist/Album/" + name,
		ArtistName: "Artist",
		Title:      strings.TrimSuffix(name, ".mp3"),
		AlbumName:  "Album",
		Year:       2001,
		Duration:   200,
	}, "media.test")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger()

	bus := eventbus.NewSyncEventBus(log)
	player := mock.NewPlayer(nil)
	repo := memory.NewCacheRepository()
	downloader := download.NewHTTPDownloader(t.TempDir(), nil, log)
	resolver := service.NewResolverService(log, repo, downloader, nil, time.Second)
	playback := service.NewPlaybackService(log, player, resolver, bus, 10*time.Millisecond)
	gateway := service.NewGateway(log, playback, bus)
	queue := service.NewQueueService(log, bus)
	gateway.BindQueue(queue, domain.BasicAuth("u", "p"), false)

	catalog := &fakeCatalog{tracks: []domain.Track{track(1, "a.mp3"), track(2, "b.mp3")}}

	api := New(Options{
		Logger:   log,
		Gateway:  gateway,
		Playback: playback,
		Queue:    queue,
		Resolver: resolver,
		Catalog:  catalog,
		Bus:      bus,
	})

	f := &fixture{
		server:   httptest.NewServer(NewRouter(api)),
		player:   player,
		playback: playback,
		queue:    queue,
		repo:     repo,
		catalog:  catalog,
	}
	t.Cleanup(func() {
		f.server.Close()
		queue.Close()
		playback.Shutdown()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func waitState(t *testing.T, f *fixture, state domain.PlaybackState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.playback.State().State == state
	}, time.Second, 5*time.Millisecond)
}

func TestCommands_SetQueue(t *testing.T) {
	f := newFixture(t)
	a := track(1, "a.mp3")

	status, _ := f.do(t, http.MethodPost, "/api/commands",
		`{"command":"setQueue","auth":"Basic dTpw","numTracks":1,"tracks":[{"id":1,"uri":"`+a.URI+`"}]}`)
	assert.Equal(t, http.StatusOK, status)
	waitState(t, f, domain.StatePlaying)

	status, body := f.do(t, http.MethodGet, "/api/player/state", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "playing", body["state"])
	assert.Equal(t, a.URI, body["location"])
	assert.Equal(t, "stream", body["source"])
	assert.Equal(t, "0 / 3:00", body["time"])
}

func TestCommands_Errors(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/commands", `{"command":"shuffle"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "unknown command")

	status, _ = f.do(t, http.MethodPost, "/api/commands", `{"command":"setQueue","numTracks":2,"tracks":[{"id":1,"uri":"https://h/a.mp3"}]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/commands", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/player/pause", "")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, http.MethodPost, "/api/player/setQueue", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestQueue_DrivesPlayback(t *testing.T) {
	f := newFixture(t)
	a, b := track(1, "a.mp3"), track(2, "b.mp3")

	payload, err := json.Marshal([]domain.Track{a, b})
	require.NoError(t, err)

	status, _ := f.do(t, http.MethodPost, "/api/queue", string(payload))
	assert.Equal(t, http.StatusOK, status)
	waitState(t, f, domain.StatePlaying)

	assert.Eventually(t, func() bool { return f.queue.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Basic dTpw", f.player.Loads()[0].Headers["Authorization"])

	status, body := f.do(t, http.MethodGet, "/api/player/state", "")
	assert.Equal(t, http.StatusOK, status)
	current := body["current"].(map[string]any)
	assert.Equal(t, "a", current["title"])
	assert.Equal(t, "3:20", current["duration"])

	status, body = f.do(t, http.MethodPost, "/api/player/next", "")
	assert.Equal(t, http.StatusOK, status)
	waitState(t, f, domain.StatePlaying)
	assert.Eventually(t, func() bool {
		loc, _ := f.player.Playing()
		return loc == b.URI
	}, time.Second, 5*time.Millisecond)

	status, body = f.do(t, http.MethodPost, "/api/player/stop", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stopped", body["state"])
}

func TestQueue_AddRemoveClear(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.playback.Stop(context.Background()))

	status, _ := f.do(t, http.MethodPost, "/api/queue/1", "")
	assert.Equal(t, http.StatusNotFound, status, "not searched yet")

	status, _ = f.do(t, http.MethodGet, "/api/search?q=artist", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "artist", f.catalog.query)

	// The track never starts, so it stays queued
	f.player.FailLoad(track(2, "b.mp3").URI, nil)

	status, body := f.do(t, http.MethodPost, "/api/queue/2", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["tracks"], 1)

	status, body = f.do(t, http.MethodDelete, "/api/queue/2", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["tracks"])

	status, _ = f.do(t, http.MethodDelete, "/api/queue/x", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodDelete, "/api/queue", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["tracks"])

	status, _ = f.do(t, http.MethodPost, "/api/queue", `{"id":9}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSearch_CatalogFailure(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = domain.NewNetworkError("search", "https://media.test/tracks.json", 401, nil)

	status, body := f.do(t, http.MethodGet, "/api/search?q=x", "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body["error"], "401")
}

func TestCache_List(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.Insert(context.Background(), domain.CacheRecord{RemoteURI: "https://h/a.mp3", LocalURI: "/tmp/a.mp3"})
	require.NoError(t, err)

	status, body := f.do(t, http.MethodGet, "/api/cache", "")
	assert.Equal(t, http.StatusOK, status)
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "https://h/a.mp3", records[0].(map[string]any)["remote_uri"])
}

func TestEvents_StreamsState(t *testing.T) {
	f := newFixture(t)
	a := track(1, "a.mp3")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan [2]string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		var name string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				events <- [2]string{name, strings.TrimPrefix(line, "data: ")}
			}
		}
	}()

	next := func(want string) string {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					t.Fatal("event stream closed")
				}
				if ev[0] == want {
					return ev[1]
				}
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for %s event", want)
			}
		}
	}

	assert.JSONEq(t, `{"state":"stopped"}`, next("state"))

	f.queue.Add(a)

	var sawPlaying, sawQueue bool
	deadline := time.After(time.Second)
	for !sawPlaying || !sawQueue {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event stream closed")
			switch ev[0] {
			case "state":
				assert.JSONEq(t, `{"state":"playing","file":"`+a.URI+`"}`, ev[1])
				sawPlaying = true
			case "queue":
				assert.Contains(t, ev[1], `"refresh":`)
				sawQueue = true
			}
		case <-deadline:
			t.Fatalf("timed out: playing=%v queue=%v", sawPlaying, sawQueue)
		}
	}

	cancel()
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(domain.ErrServiceClosed))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}
