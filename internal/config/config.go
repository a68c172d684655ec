// Package config loads the daemon configuration from TOML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tejashwikalptaru/dstream/internal/domain"
)

//go:embed config.example.toml
var exampleConf []byte

// Player backends.
const (
	BackendMock = "mock"
	BackendMPD  = "mpd"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Download DownloadConfig `toml:"download"`
	Cache    CacheConfig    `toml:"cache"`
	Player   PlayerConfig   `toml:"player"`
	HTTP     HTTPConfig     `toml:"http"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig identifies the media server.
type ServerConfig struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// DownloadConfig contains the download policy.
type DownloadConfig struct {
	Enabled bool          `toml:"enabled"`
	Dir     string        `toml:"dir"`
	Timeout time.Duration `toml:"timeout"`
}

// CacheConfig locates the cache database.
type CacheConfig struct {
	Path string `toml:"path"`
}

// PlayerConfig selects the playback backend.
type PlayerConfig struct {
	Backend          string        `toml:"backend"`
	MPDNetwork       string        `toml:"mpd_network"`
	MPDAddress       string        `toml:"mpd_address"`
	MPDPassword      string        `toml:"mpd_password"`
	ProgressInterval time.Duration `toml:"progress_interval"`
	LoadTimeout      time.Duration `toml:"load_timeout"`
}

// HTTPConfig contains gateway listener settings.
type HTTPConfig struct {
	Listen string `toml:"listen"`
}

// CatalogConfig tunes catalog searches.
type CatalogConfig struct {
	RateLimit  float64 `toml:"rate_limit"`
	MaxResults int     `toml:"max_results"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Auth returns the Basic credential for the media server, or "" without a username.
func (c *Config) Auth() string {
	return domain.BasicAuth(c.Server.Username, c.Server.Password)
}

// Load reads a TOML file over the defaults; keys missing from the file keep their default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.fillPaths()

	return config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.fillPaths()
	return &config
}

// CreateFile writes the embedded example config to path. It never overwrites.
func CreateFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultPath returns <user config dir>/dstream/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "dstream", "config.toml")
}

// fillPaths places unset directories under the user cache dir.
func (c *Config) fillPaths() {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	if c.Download.Dir == "" {
		c.Download.Dir = filepath.Join(base, "dstream", "music")
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(base, "dstream", "cache.db")
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field string, value any, msg string) {
		errs = append(errs, domain.NewValidationError(field, value, msg))
	}

	switch c.Player.Backend {
	case BackendMock:
	case BackendMPD:
		if c.Player.MPDAddress == "" {
			invalid("player.mpd_address", c.Player.MPDAddress, "required by the mpd backend")
		}
	default:
		invalid("player.backend", c.Player.Backend, `must be "mock" or "mpd"`)
	}
	if c.Player.ProgressInterval <= 0 {
		invalid("player.progress_interval", c.Player.ProgressInterval, "must be positive")
	}
	if c.Player.LoadTimeout <= 0 {
		invalid("player.load_timeout", c.Player.LoadTimeout, "must be positive")
	}
	if c.Download.Timeout <= 0 {
		invalid("download.timeout", c.Download.Timeout, "must be positive")
	}
	if c.Catalog.MaxResults < 1 || c.Catalog.MaxResults > 100 {
		invalid("catalog.max_results", c.Catalog.MaxResults, "must be between 1 and 100")
	}
	if c.Catalog.RateLimit < 0 {
		invalid("catalog.rate_limit", c.Catalog.RateLimit, "must not be negative")
	}
	if c.HTTP.Listen == "" {
		invalid("http.listen", c.HTTP.Listen, "must not be empty")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		invalid("log.format", c.Log.Format, `must be "text" or "json"`)
	}

	return errors.Join(errs...)
}
