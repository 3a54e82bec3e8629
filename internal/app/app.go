// Package app wires the gesture catalog, the recognition coordinator, result
// persistence and plugin actions into one running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/natya/internal/catalog"
	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/logger"
	"github.com/ayusman/natya/internal/metrics"
	"github.com/ayusman/natya/internal/plugin"
	"github.com/ayusman/natya/internal/recognition"
	"github.com/ayusman/natya/internal/store"
)

// ErrDisabled is returned by input operations while recognition is switched
// off. It wraps recognition.ErrClosed so callers treat it as unavailable.
var ErrDisabled = fmt.Errorf("%w: recognition is disabled", recognition.ErrClosed)

// Config holds configuration options for the application.
type Config struct {
	// Store persists gestures, bindings and results. It is also the catalog
	// source unless CatalogFile is set.
	Store       *store.Store
	CatalogFile string

	RestrictTo string
	Scale      map[gesture.Channel]float64

	Recognition recognition.Options

	PluginDir      string
	PluginTimeout  time.Duration
	EpisodeTimeout time.Duration

	Metrics *metrics.Manager
	Logger  logger.Logger
}

// App owns the coordinator and reacts to its events. It satisfies the
// recognizer surface the HTTP server drives.
type App struct {
	config      Config
	ctx         context.Context
	log         logger.Logger
	catalog     *catalog.Catalog
	coordinator *recognition.Coordinator
	pluginMgr   *plugin.Manager
	pluginExec  *plugin.Executor

	mu          sync.RWMutex
	enabled     bool
	lastGesture string
	callbacks   []func(name string)
	timer       *time.Timer

	actions sync.WaitGroup
}

// New builds the catalog, discovers plugins and starts the coordinator.
// Recognition starts enabled.
func New(ctx context.Context, config Config) (*App, error) {
	log := config.Logger
	if log == nil {
		log = logger.Named("app")
	}

	var source catalog.Source
	switch {
	case config.CatalogFile != "":
		source = catalog.NewFileSource(config.CatalogFile)
	case config.Store != nil:
		source = config.Store.Gestures()
	default:
		return nil, errors.New("app: a store or a catalog file is required")
	}

	a := &App{
		config:     config,
		ctx:        context.WithoutCancel(ctx),
		log:        log,
		pluginMgr:  plugin.NewManager(config.PluginDir),
		pluginExec: plugin.NewExecutor(config.PluginTimeout),
		enabled:    true,
	}

	a.catalog = catalog.New(source,
		catalog.WithRestrictTo(config.RestrictTo),
		catalog.WithScale(config.Scale),
		catalog.WithLogger(log.Named("catalog")),
	)

	if config.PluginDir != "" {
		if err := a.pluginMgr.Discover(ctx); err != nil {
			log.Warn(ctx, "plugin discovery failed", logger.Error(err))
		}
	}

	coordinator, err := recognition.New(ctx, a.catalog, config.Recognition,
		recognition.WithLogger(log.Named("recognition")),
		recognition.WithMetrics(config.Metrics),
	)
	if err != nil {
		return nil, err
	}
	a.coordinator = coordinator
	coordinator.OnEvent(a.handleEvent)

	log.Info(ctx, "application ready",
		logger.Int("gestures", len(a.catalog.Gestures())),
		logger.Int("plugins", len(a.pluginMgr.List())))
	return a, nil
}

// Close stops the coordinator and waits for running plugin actions.
func (a *App) Close() error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	err := a.coordinator.Close()
	a.actions.Wait()
	return err
}

// SetEnabled switches recognition on or off. Switching off abandons any
// active episode.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if !changed {
		return
	}
	a.log.Info(a.ctx, "recognition toggled", logger.Bool("enabled", enabled))
	if !enabled {
		a.coordinator.Reset(a.ctx)
	}
}

// IsEnabled returns whether recognition is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// LastGesture returns the name of the most recently recognized gesture.
func (a *App) LastGesture() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastGesture
}

// OnRecognized registers fn to be called with the name of every recognized
// gesture.
func (a *App) OnRecognized(fn func(name string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, fn)
}

// Coordinator returns the recognition coordinator.
func (a *App) Coordinator() *recognition.Coordinator {
	return a.coordinator
}

// Catalog returns the gesture catalog.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// SubmitSample forwards s to the coordinator while recognition is enabled.
func (a *App) SubmitSample(ctx context.Context, s recognition.Sample) error {
	if !a.IsEnabled() {
		return ErrDisabled
	}
	return a.coordinator.SubmitSample(ctx, s)
}

// MarkReady forwards channel readiness while recognition is enabled.
func (a *App) MarkReady(ctx context.Context, ch gesture.Channel, ready bool) error {
	if !a.IsEnabled() {
		return ErrDisabled
	}
	return a.coordinator.MarkReady(ctx, ch, ready)
}

// StartEpisode starts an episode while recognition is enabled.
func (a *App) StartEpisode(ctx context.Context) (string, error) {
	if !a.IsEnabled() {
		return "", ErrDisabled
	}
	return a.coordinator.StartEpisode(ctx)
}

// Reset abandons any active episode and reloads the catalog.
func (a *App) Reset(ctx context.Context) {
	a.coordinator.Reset(ctx)
}

// PlayerStopped forwards the stop signal to the coordinator.
func (a *App) PlayerStopped(ctx context.Context) {
	if !a.IsEnabled() {
		return
	}
	a.coordinator.PlayerStopped(ctx)
}

// Status returns the coordinator status.
func (a *App) Status() recognition.Status {
	return a.coordinator.Status()
}

// OnEvent subscribes fn to coordinator events.
func (a *App) OnEvent(fn recognition.EventHandler) {
	a.coordinator.OnEvent(fn)
}
