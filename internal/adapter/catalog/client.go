// Package catalog queries the media server's track catalog.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// DefaultMaxResults caps the number of tracks returned by a search.
const DefaultMaxResults = 100

// Config holds catalog client settings.
type Config struct {
	// BaseURL is the media server host and optional path; "https://" is implied.
	BaseURL string

	// Auth is the Authorization header value sent with every request.
	Auth string

	// MaxResults caps results; zero means DefaultMaxResults.
	MaxResults int

	// RateLimit is the number of requests allowed per second; zero disables limiting.
	RateLimit float64
}

// Client implements ports.Catalog over the server's JSON endpoints.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// nullTitle is what the server's untagged files report as title; a JSON null
// title is read as the same placeholder.
const nullTitle = "null"

// wireEntry mirrors the server JSON; tags, year and duration may be null.
type wireEntry struct {
	ID         int      `json:"id"`
	File       string   `json:"file"`
	ArtistName *string  `json:"artistName"`
	Title      *string  `json:"title"`
	AlbumName  *string  `json:"albumName"`
	Year       *int     `json:"year"`
	Duration   *float64 `json:"duration"`
	Codec      string   `json:"codec"`
}

// NewClient creates a catalog client. A nil httpClient uses http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Client{cfg: cfg, http: httpClient, limiter: limiter, logger: logger}
}

// Search returns tracks matching query; an empty query lists random tracks.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Track, error) {
	endpoint := domain.TrackURI(c.cfg.BaseURL, "/tracks.json")
	if query == "" {
		endpoint = domain.TrackURI(c.cfg.BaseURL, "/random.json")
	} else {
		endpoint += "?" + url.Values{"q": {query}}.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.NewNetworkError("search", endpoint, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewNetworkError("search", endpoint, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Auth != "" {
		req.Header.Set("Authorization", c.cfg.Auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("search", endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewNetworkError("search", endpoint, resp.StatusCode, nil)
	}

	var entries []wireEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, domain.NewNetworkError("search", endpoint, 0, err)
	}

	if len(entries) > c.cfg.MaxResults {
		entries = entries[:c.cfg.MaxResults]
	}

	tracks := make([]domain.Track, 0, len(entries))
	for _, e := range entries {
		tracks = append(tracks, domain.NewTrack(e.entry(), c.cfg.BaseURL))
	}

	if c.logger != nil {
		c.logger.Debug("catalog search", slog.String("query", query), slog.Int("results", len(tracks)))
	}
	return tracks, nil
}

func (e wireEntry) entry() domain.CatalogEntry {
	entry := domain.CatalogEntry{
		ID:         e.ID,
		File:       e.File,
		ArtistName: deref(e.ArtistName, ""),
		Title:      deref(e.Title, nullTitle),
		AlbumName:  deref(e.AlbumName, ""),
		Year:       -1,
		Codec:      e.Codec,
	}
	if e.Year != nil {
		entry.Year = *e.Year
	}
	if e.Duration != nil {
		entry.Duration = *e.Duration
	}
	return entry
}

var _ ports.Catalog = (*Client)(nil)

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
