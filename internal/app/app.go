// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Corphon/BookRunner/internal/api"
	"github.com/Corphon/BookRunner/internal/client"
	"github.com/Corphon/BookRunner/internal/config"
	"github.com/Corphon/BookRunner/internal/di"
	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/render"
	"github.com/Corphon/BookRunner/internal/runner"
	"github.com/Corphon/BookRunner/internal/services"
	"github.com/Corphon/BookRunner/internal/storage"
	"github.com/Corphon/BookRunner/internal/utils"
)

const (
	// MetricsFile receives a metrics snapshot on shutdown, below DataDir.
	MetricsFile = "metrics.json"

	shutdownTimeout   = 30 * time.Second
	maintenanceTicker = 5 * time.Minute
)

// Container names used only by the application itself.
const (
	serviceStorage = "storage"
	serviceLocks   = "locks"
)

// App owns the services and the HTTP server.
type App struct {
	config    *config.Config
	container *di.Container
	logger    *utils.Logger

	server   *http.Server
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

var (
	instance   *App
	instanceMu sync.Mutex
)

// GetApp returns the process wide application, bound to the global container.
func GetApp() *App {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		instance = New(di.GetContainer())
	}
	return instance
}

// New creates an application that registers its services in container.
func New(container *di.Container) *App {
	return &App{
		container: container,
		logger:    utils.GetLogger(),
		stopChan:  make(chan struct{}),
	}
}

// Initialize prepares directories and logging, then builds the services.
func (a *App) Initialize(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("configuration is required")
	}
	a.config = cfg

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if cfg.LogDir != "" {
		if err := utils.InitLogger(filepath.Join(cfg.LogDir, "bookrunner.log"), cfg.DebugMode); err != nil {
			return fmt.Errorf("failed to initialise logger: %w", err)
		}
	}

	if err := a.InitServices(); err != nil {
		return err
	}

	a.logger.Info("Application initialised", map[string]interface{}{
		"book_source": cfg.BookSource,
		"data_dir":    cfg.DataDir,
		"services":    len(a.container.GetNames()),
	})
	return nil
}

// InitServices registers every service in dependency order.
func (a *App) InitServices() error {
	cfg := a.config

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create file storage: %w", err)
	}
	a.container.Register(serviceStorage, fileStorage)

	backend, err := a.newBackend(fileStorage)
	if err != nil {
		return err
	}

	locks := services.NewLockManager()
	a.container.Register(serviceLocks, locks)

	workspace := services.NewWorkspace(backend, backend, render.NewMarkdown(), locks)
	a.container.Register(api.ServiceWorkspace, workspace)

	apiMetrics := utils.NewAPIMetrics()
	a.container.Register(api.ServiceAPIMetrics, apiMetrics)

	editMetrics := services.NewEditMetrics()
	a.container.Register(api.ServiceEditMetrics, editMetrics)

	streams := api.NewWebSocketManager()
	a.container.Register(api.ServiceStreams, streams)

	projection := models.Projection{IncludeValues: cfg.SaveIncludesValues}
	a.container.Register(api.ServiceEdits, services.NewEditService(workspace, backend, projection, editMetrics))
	a.container.Register(api.ServiceRuns, services.NewRunService(workspace, runner.New(cfg.RunnerURL), streams, apiMetrics))

	a.container.Register(api.ServiceRateLimiter, api.NewRateLimiter())
	return nil
}

func (a *App) newBackend(fileStorage *storage.FileStorage) (services.BookBackend, error) {
	switch a.config.BookSource {
	case config.SourceLocal:
		store := storage.NewBookStore(fileStorage)
		a.container.Register(api.ServiceBookLister, store)
		return store, nil
	case config.SourceRemote:
		a.container.Remove(api.ServiceBookLister)
		bookClient, err := client.New(a.config.ServiceURL, a.config.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create book service client: %w", err)
		}
		return bookClient, nil
	default:
		return nil, fmt.Errorf("unknown book source %q", a.config.BookSource)
	}
}

// Run serves HTTP until Stop is called or the server fails.
func (a *App) Run() error {
	router, err := api.SetupRouter(a.container)
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.startMaintenance(ctx)

	server := &http.Server{
		Addr:     ":" + a.config.Port,
		Handler:  router,
		ErrorLog: zap.NewStdLog(a.logger.Zap()),
	}

	a.mu.Lock()
	a.server = server
	a.cancel = cancel
	a.mu.Unlock()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Server listening", map[string]interface{}{"port": a.config.Port})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-a.stopChan:
		return nil
	}
}

func (a *App) startMaintenance(ctx context.Context) {
	if streams, err := di.Resolve[*api.WebSocketManager](a.container, api.ServiceStreams); err == nil {
		go streams.Run(ctx)
	}
	if locks, err := di.Resolve[*services.LockManager](a.container, serviceLocks); err == nil {
		locks.StartCleanup(ctx, maintenanceTicker)
	}
	if fileStorage, err := di.Resolve[*storage.FileStorage](a.container, serviceStorage); err == nil {
		fileStorage.StartCacheCleanup(ctx)
	}
	if limiter, err := di.Resolve[*api.RateLimiter](a.container, api.ServiceRateLimiter); err == nil {
		limiter.StartCleanup(ctx, maintenanceTicker)
	}
	if metrics, err := di.Resolve[*utils.APIMetrics](a.container, api.ServiceAPIMetrics); err == nil && a.config.DebugMode {
		metrics.StartMetricsCollection(ctx, maintenanceTicker)
	}
}

// Stop makes Run return. It is safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
}

// Cleanup stops background work, shuts the server down, writes a metrics
// snapshot and empties the container. Every failure is reported.
func (a *App) Cleanup() error {
	a.mu.Lock()
	server, cancel := a.server, a.cancel
	a.server, a.cancel = nil, nil
	a.mu.Unlock()

	var err error
	if server != nil {
		ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		err = multierr.Append(err, server.Shutdown(ctx))
		done()
	}
	if cancel != nil {
		cancel()
	}
	err = multierr.Append(err, a.saveMetrics())
	a.container.Clear()

	if err != nil {
		a.logger.Error("Shutdown finished with errors", map[string]interface{}{"error": err})
	} else {
		a.logger.Info("Shutdown complete", nil)
	}
	return err
}

func (a *App) saveMetrics() error {
	fileStorage, err := di.Resolve[*storage.FileStorage](a.container, serviceStorage)
	if err != nil {
		return nil
	}

	snapshot := map[string]interface{}{"saved_at": time.Now()}
	if metrics, err := di.Resolve[*utils.APIMetrics](a.container, api.ServiceAPIMetrics); err == nil {
		snapshot["api"] = metrics.Snapshot()
	}
	if metrics, err := di.Resolve[*services.EditMetrics](a.container, api.ServiceEditMetrics); err == nil {
		snapshot["edits"] = metrics.GetMetrics()
	}

	if err := fileStorage.SaveJSONFile("", MetricsFile, snapshot); err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}
	return nil
}

func (a *App) GetConfig() *config.Config {
	return a.config
}

func (a *App) GetDIContainer() *di.Container {
	return a.container
}

func (a *App) IsDebugMode() bool {
	return a.config != nil && a.config.DebugMode
}
