// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jobrunner/geoalgebra/internal/adapters/geopackage"
	httpAdapter "github.com/jobrunner/geoalgebra/internal/adapters/http"
	"github.com/jobrunner/geoalgebra/internal/adapters/metrics"
	"github.com/jobrunner/geoalgebra/internal/adapters/projection"
	"github.com/jobrunner/geoalgebra/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/geoalgebra/internal/adapters/tls"
	"github.com/jobrunner/geoalgebra/internal/adapters/watcher"
	"github.com/jobrunner/geoalgebra/internal/application"
	"github.com/jobrunner/geoalgebra/internal/config"
	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/geometry"
	"github.com/jobrunner/geoalgebra/internal/pipeline"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Metrics       *metrics.Collector
	Storage       output.ObjectStorage
	Repository    *geopackage.Repository
	Catalog       *application.LayerCatalog
	Dispatcher    *application.Dispatcher
	SyncService   *application.SyncService
	HealthService *application.HealthService
	HTTPServer    *httpAdapter.Server
	TLS           *tlsAdapter.Manager
	Watcher       *watcher.Watcher
}

// New creates and wires all components. Nothing is started yet.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var collector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("geoalgebra")
		collector = app.Metrics
	}

	transformer, err := projection.NewTransformer(domain.UTMZone{
		Zone:  cfg.Projection.UTMZone,
		South: cfg.Projection.South,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing projection: %w", err)
	}

	lib := geometry.NewLibrary(geometry.PolyclipKernel{}, func(op geometry.Op, reason geometry.Reason) {
		collector.IncPrimitiveFailures(op.String(), reason.String())
	})
	p := pipeline.New(lib, collector, logger, pipeline.Config{
		BufferSegments: cfg.Engine.BufferSegments,
	})
	executor := application.NewExecutor(p, transformer, collector, logger, application.ExecutorConfig{
		MaxVertices: cfg.Engine.MaxVertices,
	})
	app.Dispatcher = application.NewDispatcher(executor, collector, logger, application.DispatcherConfig{
		Workers:   cfg.Engine.Workers,
		QueueSize: cfg.Engine.QueueSize,
	})

	store, err := initStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	app.Repository = geopackage.NewRepository()
	app.Catalog = application.NewLayerCatalog(
		app.Repository,
		app.Storage,
		transformer,
		collector,
		logger,
		cfg.Storage.LocalPath,
	)

	if cfg.Layers.SyncInterval > 0 {
		app.SyncService = application.NewSyncService(app.Catalog, cfg.Layers.SyncInterval, logger)
	}

	if output.StorageType(cfg.Storage.Type) == output.StorageLocal && cfg.Layers.Watch {
		w, err := watcher.New(watcher.Config{Dir: cfg.Storage.LocalPath}, app.Catalog, logger)
		if err != nil {
			logger.Warn("failed to initialize layer watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	app.HealthService = application.NewHealthService(app.Catalog, app.Dispatcher)

	deps := httpAdapter.Dependencies{
		Jobs:    app.Dispatcher,
		Catalog: app.Catalog,
		Health:  app.HealthService,
		Sync:    app.SyncService,
	}
	if app.Metrics != nil {
		deps.Metrics = app.Metrics.Handler()
		deps.MetricsPath = cfg.Metrics.Path
		deps.MetricsMiddleware = app.Metrics.Middleware
	}
	app.HTTPServer = httpAdapter.NewServer(cfg.Server, deps, logger)

	app.TLS, err = tlsAdapter.NewManager(cfg.TLS, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing TLS: %w", err)
	}

	return app, nil
}

// StartEngine loads the layer catalog and starts the workers and the
// background services. It does not serve HTTP.
func (a *App) StartEngine(ctx context.Context) {
	if err := a.Catalog.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load layers", "error", err)
	}

	a.Dispatcher.Start()

	if a.SyncService != nil {
		a.SyncService.Start(ctx)
	}
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start layer watcher", "error", err)
			_ = a.Watcher.Stop()
			a.Watcher = nil
		}
	}
}

// Start starts the engine and serves HTTP until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	a.StartEngine(ctx)

	if a.TLS != nil {
		if err := a.TLS.Obtain(ctx); err != nil {
			return err
		}
		return a.TLS.Serve(a.HTTPServer.HTTPServer())
	}
	return a.HTTPServer.Start()
}

// Run resolves and executes a single job request without the HTTP server.
func (a *App) Run(ctx context.Context, req *domain.JobRequest) (domain.Response, error) {
	job, err := req.Resolve(a.Catalog.Resolve)
	if err != nil {
		return domain.NewErrorResponse(&domain.Job{ID: req.ID, Type: req.Type}, err), nil
	}
	return a.Dispatcher.Do(ctx, job)
}

// Shutdown gracefully shuts down all components. In-flight jobs finish
// before the dispatcher returns.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	var errs []error
	if err := a.HTTPServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	if a.Watcher != nil {
		if err := a.Watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("watcher: %w", err))
		}
	}
	if a.SyncService != nil {
		a.SyncService.Stop()
	}

	stopped := make(chan struct{})
	go func() {
		a.Dispatcher.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("dispatcher: %w", ctx.Err()))
	}

	if err := a.Repository.Close(); err != nil {
		errs = append(errs, fmt.Errorf("geopackage repository: %w", err))
	}

	return errors.Join(errs...)
}

// initStorage initializes the configured storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageLocal:
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case output.StorageS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:    cfg.HTTP.BaseURL,
			IndexFile:  cfg.HTTP.IndexFile,
			Timeout:    cfg.HTTP.Timeout,
			Username:   cfg.HTTP.Username,
			Password:   cfg.HTTP.Password,
			MaxRetries: cfg.HTTP.MaxRetries,
		}, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewLogger creates the process logger. Timestamps are RFC 3339 in UTC.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
