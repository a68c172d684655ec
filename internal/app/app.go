// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the daemon lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tejashwikalptaru/dstream/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/dstream/internal/adapter/audio/mpd"
	"github.com/tejashwikalptaru/dstream/internal/adapter/catalog"
	"github.com/tejashwikalptaru/dstream/internal/adapter/download"
	"github.com/tejashwikalptaru/dstream/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/dstream/internal/adapter/httpapi"
	"github.com/tejashwikalptaru/dstream/internal/adapter/repository/memory"
	"github.com/tejashwikalptaru/dstream/internal/adapter/repository/sqlite"
	"github.com/tejashwikalptaru/dstream/internal/adapter/tags"
	"github.com/tejashwikalptaru/dstream/internal/config"
	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
	"github.com/tejashwikalptaru/dstream/internal/service"
)

// shutdownTimeout bounds the graceful stop of the HTTP listener.
const shutdownTimeout = 5 * time.Second

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
type Application struct {
	// Core dependencies
	logger *slog.Logger
	config *config.Config

	// Infrastructure
	eventBus  ports.EventBus
	player    ports.Player
	cacheRepo ports.CacheRepository
	catalog   *catalog.Client

	// Services
	resolverService *service.ResolverService
	playbackService *service.PlaybackService
	queueService    *service.QueueService
	gateway         *service.Gateway

	// Gateway transport
	handler http.Handler
	server  *http.Server

	logSubscription domain.SubscriptionID
	shutdownOnce    sync.Once
	shutdownErr     error
}

// Options holds what NewApplication needs besides the configuration.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Player overrides the configured backend when set
	Player ports.Player
}

// NewApplication creates the daemon with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(ctx context.Context, opts Options) (*Application, error) {
	if opts.Config == nil {
		return nil, domain.NewValidationError("config", nil, "configuration is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cfg := opts.Config
	app := &Application{
		logger: opts.Logger,
		config: cfg,
	}
	app.logger.Info("initializing daemon",
		slog.String("server", cfg.Server.BaseURL),
		slog.String("backend", cfg.Player.Backend),
		slog.Bool("download", cfg.Download.Enabled))

	// Step 1: Event bus. Delivery is asynchronous so that subscribers may call
	// back into the orchestrator.
	app.eventBus = eventbus.NewAsyncEventBus(app.logger.With(slog.String("component", "eventbus")))
	app.logSubscription = app.eventBus.SubscribeAll(app.logEvent)

	// Step 2: Player
	player := opts.Player
	if player == nil {
		var err error
		player, err = NewPlayer(ctx, cfg, app.logger)
		if err != nil {
			app.closeInfrastructure()
			return nil, err
		}
	}
	app.player = player

	// Step 3: Cache and resolver
	resolver, repo, err := OpenResolver(cfg, app.logger)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.cacheRepo = repo
	app.resolverService = resolver

	// Step 4: Services (with dependency injection)
	app.playbackService = service.NewPlaybackService(
		app.logger.With(slog.String("service", "playback")),
		app.player,
		app.resolverService,
		app.eventBus,
		cfg.Player.ProgressInterval,
	)
	app.playbackService.SetLoadTimeout(cfg.Player.LoadTimeout)

	app.queueService = service.NewQueueService(
		app.logger.With(slog.String("service", "queue")),
		app.eventBus,
	)

	app.gateway = service.NewGateway(
		app.logger.With(slog.String("service", "gateway")),
		app.playbackService,
		app.eventBus,
	)
	app.gateway.BindQueue(app.queueService, cfg.Auth(), cfg.Download.Enabled)

	// Step 5: Catalog and HTTP surface
	app.catalog = NewCatalog(cfg, app.logger)

	api := httpapi.New(httpapi.Options{
		Logger:   app.logger.With(slog.String("component", "httpapi")),
		Gateway:  app.gateway,
		Playback: app.playbackService,
		Queue:    app.queueService,
		Resolver: app.resolverService,
		Catalog:  app.catalog,
		Bus:      app.eventBus,
	})
	app.handler = httpapi.NewRouter(api)

	return app, nil
}

// NewPlayer creates the configured playback backend.
func NewPlayer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Player, error) {
	switch cfg.Player.Backend {
	case config.BackendMPD:
		player, err := mpd.NewPlayer(ctx, mpd.Config{
			Network:  cfg.Player.MPDNetwork,
			Address:  cfg.Player.MPDAddress,
			Password: cfg.Player.MPDPassword,
		}, logger.With(slog.String("player", "mpd")))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize player: %w", err)
		}
		return player, nil
	default:
		return mock.NewRealtimePlayer(logger.With(slog.String("player", "mock")), mock.DefaultDuration), nil
	}
}

// OpenResolver opens the cache store and builds a resolver over it. The
// repository must be closed by the caller.
func OpenResolver(cfg *config.Config, logger *slog.Logger) (*service.ResolverService, ports.CacheRepository, error) {
	var repo ports.CacheRepository
	if cfg.Cache.Path == sqlite.MemoryPath {
		repo = memory.NewCacheRepository()
	} else {
		db, err := sqlite.Open(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache: %w", err)
		}
		repo = sqlite.NewCacheRepository(db)
	}

	downloader := download.NewHTTPDownloader(
		cfg.Download.Dir,
		nil,
		logger.With(slog.String("component", "downloader")),
	)

	resolver := service.NewResolverService(
		logger.With(slog.String("service", "resolver")),
		repo,
		downloader,
		tags.NewReader(),
		cfg.Download.Timeout,
	)
	return resolver, repo, nil
}

// NewCatalog creates a catalog client for the configured server.
func NewCatalog(cfg *config.Config, logger *slog.Logger) *catalog.Client {
	return catalog.NewClient(catalog.Config{
		BaseURL:    cfg.Server.BaseURL,
		Auth:       cfg.Auth(),
		MaxResults: cfg.Catalog.MaxResults,
		RateLimit:  cfg.Catalog.RateLimit,
	}, nil, logger.With(slog.String("component", "catalog")))
}

// Handler returns the HTTP gateway.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Gateway returns the command gateway.
func (a *Application) Gateway() *service.Gateway {
	return a.gateway
}

// Queue returns the queue service.
func (a *Application) Queue() *service.QueueService {
	return a.queueService
}

// Playback returns the orchestrator.
func (a *Application) Playback() *service.PlaybackService {
	return a.playbackService
}

// EventBus returns the event bus.
func (a *Application) EventBus() ports.EventBus {
	return a.eventBus
}

// Run serves the HTTP gateway on the configured address until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.config.HTTP.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.HTTP.Listen, err)
	}
	return a.Serve(ctx, listener)
}

// Serve serves the HTTP gateway on listener until ctx is done, then stops
// the listener gracefully. It does not shut the services down.
func (a *Application) Serve(ctx context.Context, listener net.Listener) error {
	a.server = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(listener)
	}()
	a.logger.Info("dstream started", slog.String("listen", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown incomplete", slog.Any("error", err))
	}
	<-errCh
	return nil
}

// Shutdown gracefully shuts down the daemon. It is safe to call more than once.
func (a *Application) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down daemon")

		// Services in reverse order of creation
		if a.queueService != nil {
			a.queueService.SetObserver(nil)
			a.queueService.Close()
		}
		if a.playbackService != nil {
			a.playbackService.Shutdown()
		}

		a.shutdownErr = a.closeInfrastructure()
		a.logger.Info("daemon shutdown complete")
	})
	return a.shutdownErr
}

func (a *Application) closeInfrastructure() error {
	var errs []error
	if a.cacheRepo != nil {
		if err := a.cacheRepo.Close(); err != nil {
			errs = append(errs, domain.NewServiceError("cache", "close", "failed to close cache", err))
		}
	}
	if a.player != nil {
		if err := a.player.Close(); err != nil {
			errs = append(errs, domain.NewServiceError("player", "close", "failed to close player", err))
		}
	}
	if a.eventBus != nil {
		a.eventBus.Unsubscribe(a.logSubscription)
		if err := a.eventBus.Close(); err != nil {
			errs = append(errs, domain.NewServiceError("eventbus", "close", "failed to close event bus", err))
		}
	}
	return errors.Join(errs...)
}

// logEvent traces every published event except progress ticks.
func (a *Application) logEvent(event domain.Event) {
	switch e := event.(type) {
	case domain.TrackProgressEvent:
		return
	case domain.StateChangedEvent:
		a.logger.Debug("event", slog.String("type", string(e.Type())), slog.String("state", e.State.String()))
	case domain.TrackErrorEvent:
		a.logger.Debug("event", slog.String("type", string(e.Type())), slog.String("uri", e.Track.URI))
	default:
		a.logger.Debug("event", slog.String("type", string(event.Type())))
	}
}
