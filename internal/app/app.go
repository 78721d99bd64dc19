// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Corphon/SceneNovel/internal/api"
	"github.com/Corphon/SceneNovel/internal/config"
	"github.com/Corphon/SceneNovel/internal/di"
	"github.com/Corphon/SceneNovel/internal/script"
	"github.com/Corphon/SceneNovel/internal/services"
	"github.com/Corphon/SceneNovel/internal/stories"
	"github.com/Corphon/SceneNovel/internal/story"
	"github.com/Corphon/SceneNovel/internal/utils"
)

const (
	shutdownTimeout          = 30 * time.Second
	rateLimitCleanupInterval = time.Minute
)

// server is the part of *http.Server the app drives.
type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App owns the story server's services and lifecycle.
type App struct {
	config   *config.Config
	server   server
	stopChan chan os.Signal

	sessions *services.SessionService
	ws       *api.WebSocketManager
	watcher  *script.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var (
	instance *App
	mu       sync.Mutex
)

// GetApp returns the process-wide app.
func GetApp() *App {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = &App{stopChan: make(chan os.Signal, 1)}
	}
	return instance
}

// Initialize sets up logging, services and the HTTP server from cfg.
func Initialize(cfg *config.Config) error {
	a := GetApp()
	a.config = cfg
	config.SetCurrentConfig(cfg)

	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.initServices(ctx); err != nil {
		cancel()
		return err
	}

	router, err := api.SetupRouter()
	if err != nil {
		cancel()
		return fmt.Errorf("setup router: %w", err)
	}
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func initLogger(cfg *config.Config) error {
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))
	if cfg.LogDir == "" {
		return nil
	}
	logFile := filepath.Join(cfg.LogDir, fmt.Sprintf("scenenovel_%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

// LoadGraph builds the story named by cfg: a YAML script when StoryFile is
// set, otherwise the built-in academy story.
func LoadGraph(cfg *config.Config) (*story.Graph, error) {
	if cfg.StoryFile == "" {
		g, err := stories.Academy(cfg.AssetBaseURL)
		if err != nil {
			return nil, fmt.Errorf("build academy story: %w", err)
		}
		return g, nil
	}

	s, err := script.Load(cfg.StoryFile)
	if err != nil {
		return nil, err
	}
	if s.Assets.BaseURL == "" {
		s.Assets.BaseURL = cfg.AssetBaseURL
	}
	g, err := s.Build(utils.GetLogger())
	if err != nil {
		return nil, fmt.Errorf("script: %s: %w", cfg.StoryFile, err)
	}
	return g, nil
}

// initServices builds the graph and registers every service in the container.
func (a *App) initServices(ctx context.Context) error {
	cfg := a.config
	graph, err := LoadGraph(cfg)
	if err != nil {
		return err
	}

	metrics := utils.GetMetricsCollector()
	a.sessions = services.NewSessionService(graph, services.SessionOptions{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
	})
	a.ws = api.NewWebSocketManager(cfg.OriginAllowed)
	a.sessions.SetDispatcher(a.ws)
	a.sessions.StartJanitor(ctx, cfg.JanitorInterval)

	limiter := api.NewDefaultRateLimiter()
	limiter.StartCleanup(ctx, rateLimitCleanupInterval)

	container := di.GetContainer()
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceGraph, graph)
	container.Register(di.ServiceMetrics, metrics)
	container.Register(di.ServiceSessions, a.sessions)
	container.Register(di.ServiceWebSocket, a.ws)
	container.Register(di.ServiceRateLimiter, limiter)

	utils.GetLogger().Info("services initialized", map[string]interface{}{
		"scenes":      graph.Len(),
		"paths":       graph.Paths(),
		"story_file":  cfg.StoryFile,
		"session_ttl": cfg.SessionTTL.String(),
	})

	if cfg.WatchStory && cfg.StoryFile != "" {
		w, err := script.NewWatcher(cfg.StoryFile)
		if err != nil {
			return fmt.Errorf("watch %s: %w", cfg.StoryFile, err)
		}
		a.watcher = w
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.reloadLoop(ctx, w)
		}()
	}
	return nil
}

// reloadLoop rebuilds the graph whenever the script changes. A script that
// fails to build leaves the current graph in place.
func (a *App) reloadLoop(ctx context.Context, w *script.Watcher) {
	logger := utils.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-w.Events:
			if !ok {
				return
			}
			graph, err := LoadGraph(a.config)
			if err != nil {
				logger.Error("story reload failed", map[string]interface{}{
					"file":  path,
					"error": err.Error(),
				})
				continue
			}
			a.sessions.SetGraph(graph)
			di.GetContainer().Register(di.ServiceGraph, graph)
			utils.GetMetricsCollector().IncrementCounter("story.reloads")
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("story watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Run serves until a stop signal arrives, then shuts down gracefully.
func Run() error {
	a := GetApp()
	if a.server == nil {
		return errors.New("app is not initialized")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	select {
	case err := <-errCh:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case <-a.stopChan:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Stop asks Run to shut down.
func (a *App) Stop() {
	select {
	case a.stopChan <- syscall.SIGTERM:
	default:
	}
}

// cleanup stops background work and closes connections and the log file.
func (a *App) cleanup() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.wg.Wait()
	if a.ws != nil {
		a.ws.Shutdown()
	}
	utils.GetLogger().Info("app stopped", nil)
	utils.GetLogger().Close()
}

// GetConfig returns the app's configuration.
func (a *App) GetConfig() *config.Config {
	return a.config
}

// Sessions returns the session service, nil before Initialize.
func (a *App) Sessions() *services.SessionService {
	return a.sessions
}

// GetDIContainer returns the process-wide service container.
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode reports whether the app runs with DEBUG_MODE set.
func IsDebugMode() bool {
	mu.Lock()
	a := instance
	mu.Unlock()
	return a != nil && a.config != nil && a.config.DebugMode
}
