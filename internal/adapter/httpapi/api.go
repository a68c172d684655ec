// Package httpapi exposes the command and event gateway over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
	"github.com/tejashwikalptaru/dstream/internal/service"
)

// Options holds the collaborators served by the API.
type Options struct {
	Logger   *slog.Logger
	Gateway  *service.Gateway
	Playback *service.PlaybackService
	Queue    *service.QueueService
	Resolver *service.ResolverService
	Catalog  ports.Catalog
	Bus      ports.EventBus
}

// API implements the HTTP handlers.
type API struct {
	Options

	// results holds the tracks of recent searches by ID
	mu      sync.RWMutex
	results map[int]domain.Track
}

// New creates the API. A nil logger uses slog.Default().
func New(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &API{Options: opts, results: make(map[int]domain.Track)}
}

// NewRouter returns a chi router with all routes mounted under /api.
func NewRouter(api *API) chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		InitRouter(r, api)
	})
	return r
}

// InitRouter attaches all API routes to the specified router.
func InitRouter(r chi.Router, api *API) {
	r.Get("/events", api.events)

	r.Group(func(r chi.Router) {
		r.Use(jsonCtx)
		r.Post("/commands", api.command)

		r.Route("/player", func(r chi.Router) {
			r.Get("/state", api.playerState)
			r.Post("/{action}", api.playerAction)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", api.queueContents)
			r.Post("/", api.queueAdd)
			r.Delete("/", api.queueClear)
			r.Post("/{id}", api.queueAddResult)
			r.Delete("/{id}", api.queueRemove)
		})

		r.Get("/search", api.search)
		r.Get("/cache", api.cacheList)
	})
}

func (api *API) command(w http.ResponseWriter, r *http.Request) {
	var cmd service.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		WriteError(w, r, domain.NewValidationError("body", nil, err.Error()))
		return
	}
	if err := api.Gateway.Dispatch(r.Context(), cmd); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerState(w, r)
}

func (api *API) playerAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if action == service.CommandSetQueue {
		WriteError(w, r, domain.ErrUnknownCommand)
		return
	}
	if err := api.Gateway.Dispatch(r.Context(), service.Command{Name: action}); err != nil {
		WriteError(w, r, err)
		return
	}
	api.playerState(w, r)
}

func (api *API) playerState(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(jsonSnapshot(api.Playback.State()))
}

func jsonSnapshot(s domain.SessionSnapshot) any {
	var struc struct {
		State       string        `json:"state"`
		Current     *domain.Track `json:"current,omitempty"`
		Location    string        `json:"location,omitempty"`
		Source      string        `json:"source,omitempty"`
		QueueLength int           `json:"queueLength"`
		Download    bool          `json:"download"`
		Position    int           `json:"position"`
		Duration    int           `json:"duration"`
		Time        string        `json:"time,omitempty"`
	}
	struc.State = s.State.String()
	struc.Current = s.Current
	struc.Location = s.Location
	struc.Source = s.Source
	struc.QueueLength = s.QueueLength
	struc.Download = s.Download
	struc.Position = int(s.Position / time.Second)
	struc.Duration = int(s.Duration / time.Second)
	if s.Duration > 0 {
		struc.Time = clock(s.Position) + " / " + clock(s.Duration)
	}
	return struc
}

func clock(d time.Duration) string {
	if s := domain.FormatDuration(d.Seconds()); s != "" {
		return s
	}
	return "0"
}

func (api *API) queueContents(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"tracks": api.Queue.Snapshot(),
	})
}

func (api *API) queueAdd(w http.ResponseWriter, r *http.Request) {
	var tracks []domain.Track
	body := json.NewDecoder(r.Body)
	var raw json.RawMessage
	if err := body.Decode(&raw); err != nil {
		WriteError(w, r, domain.NewValidationError("body", nil, err.Error()))
		return
	}
	// Accept a single track or a list
	if err := json.Unmarshal(raw, &tracks); err != nil {
		var track domain.Track
		if err := json.Unmarshal(raw, &track); err != nil {
			WriteError(w, r, domain.NewValidationError("body", nil, err.Error()))
			return
		}
		tracks = []domain.Track{track}
	}
	for _, t := range tracks {
		if t.URI == "" {
			WriteError(w, r, domain.NewValidationError("uri", t.ID, "track without uri"))
			return
		}
	}

	api.Gateway.Remember(tracks)
	api.Queue.AddAll(tracks)
	api.queueContents(w, r)
}

func (api *API) queueAddResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, domain.NewValidationError("id", chi.URLParam(r, "id"), "not a number"))
		return
	}

	api.mu.RLock()
	track, ok := api.results[id]
	api.mu.RUnlock()
	if !ok {
		WriteError(w, r, domain.ErrTrackNotFound)
		return
	}

	api.Queue.Add(track)
	api.queueContents(w, r)
}

func (api *API) queueRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, domain.NewValidationError("id", chi.URLParam(r, "id"), "not a number"))
		return
	}
	api.Queue.Remove(domain.Track{ID: id})
	api.queueContents(w, r)
}

func (api *API) queueClear(w http.ResponseWriter, r *http.Request) {
	api.Queue.Clear()
	api.queueContents(w, r)
}

func (api *API) search(w http.ResponseWriter, r *http.Request) {
	tracks, err := api.Catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	api.mu.Lock()
	api.results = make(map[int]domain.Track, len(tracks))
	for _, t := range tracks {
		api.results[t.ID] = t
	}
	api.mu.Unlock()
	api.Gateway.Remember(tracks)

	json.NewEncoder(w).Encode(map[string]any{
		"tracks": tracks,
	})
}

func (api *API) cacheList(w http.ResponseWriter, r *http.Request) {
	records, err := api.Resolver.Records(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"records": records,
	})
}

// WriteError writes an error to the client as {"error": message} with a
// status matching the error kind.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("error serving request", slog.String("remote", r.RemoteAddr), slog.String("path", r.URL.Path), slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Error(),
	})
}

func statusOf(err error) int {
	var (
		validation *domain.ValidationError
		network    *domain.NetworkError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownCommand), errors.Is(err, domain.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &network):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrServiceClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func jsonCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
