package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/najoast/runtimeapi/config"
	"github.com/najoast/runtimeapi/core"
	"github.com/najoast/runtimeapi/logging"
	"github.com/najoast/runtimeapi/monitor"
	"github.com/najoast/runtimeapi/primitives"
	"github.com/najoast/runtimeapi/provider/snapshot"
	"github.com/najoast/runtimeapi/runtimeapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ErrConcludeReserved is returned by Signal for Conclude, which only the
// application sends, on shutdown.
var ErrConcludeReserved = errors.New("conclude is sent by the application on shutdown")

// Application supervises the runtime API subsystem.
type Application struct {
	cfg        *config.Config
	configPath string

	logger    zerolog.Logger
	loggerSet bool
	ownLogger *logging.Logger

	registry  *prometheus.Registry
	metrics   runtimeapi.Metrics
	provider  runtimeapi.Provider
	mailbox   *core.Mailbox[runtimeapi.Message]
	subsystem *runtimeapi.Subsystem

	lifecycle       *DefaultLifecycleManager
	providerService *ProviderService
	runtimeService  *RuntimeAPIService
	monitor         *monitor.Server
	watcher         *config.Watcher

	mutex        sync.Mutex
	running      bool
	shutdownChan chan os.Signal
}

// Option customises an Application.
type Option func(*Application)

// WithLogger replaces the logger built from the log configuration.
func WithLogger(logger zerolog.Logger) Option {
	return func(app *Application) {
		app.logger = logger
		app.loggerSet = true
	}
}

// WithProvider answers queries from provider instead of the configured snapshot.
func WithProvider(provider runtimeapi.Provider) Option {
	return func(app *Application) {
		app.provider = provider
	}
}

// WithConfigFile enables hot reload of the file the configuration was loaded from.
func WithConfigFile(path string) Option {
	return func(app *Application) {
		app.configPath = path
	}
}

// NewApplication builds the application and registers its services.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ApplicationError{Operation: "configure", Err: err}
	}

	app := &Application{
		cfg:          cfg,
		shutdownChan: make(chan os.Signal, 1),
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.configure(); err != nil {
		app.closeLogger()
		return nil, &ApplicationError{Operation: "configure", Err: err}
	}

	return app, nil
}

func (app *Application) configure() error {
	cfg := app.cfg

	if !app.loggerSet {
		logger, err := logging.New(cfg.Log, cfg.App.Name)
		if err != nil {
			return err
		}
		app.ownLogger = logger
		app.logger = logger.Logger
	}

	app.lifecycle = NewLifecycleManager(app.logger)
	if cfg.Subsystem.ShutdownTimeout > 0 {
		app.lifecycle.SetTimeout(cfg.Subsystem.ShutdownTimeout.Std())
	}

	app.registry = prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		metrics, err := runtimeapi.RegisterMetrics(app.registry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		app.metrics = metrics
	} else {
		app.metrics = runtimeapi.NoopMetrics()
	}

	if app.provider == nil {
		provider, err := snapshot.New(nil)
		if err != nil {
			return err
		}
		app.provider = provider
		app.providerService = NewProviderService(provider, cfg.Provider.SnapshotPath,
			app.logger.With().Str("component", ServiceProvider).Logger())
		if err := app.lifecycle.Register(ServiceProvider, app.providerService); err != nil {
			return err
		}
	}

	app.mailbox = core.NewMailbox[runtimeapi.Message](core.MailboxOptions{
		Size: cfg.Subsystem.MailboxSize,
		Name: ServiceRuntimeAPI,
	})

	subsystem, err := runtimeapi.New(app.provider, app.metrics, runtimeapi.WithLogger(app.logger))
	if err != nil {
		return err
	}
	app.subsystem = subsystem
	app.runtimeService = NewRuntimeAPIService(subsystem, app.mailbox, app.logger)

	var deps []string
	if app.providerService != nil {
		deps = append(deps, ServiceProvider)
	}
	if err := app.lifecycle.Register(ServiceRuntimeAPI, app.runtimeService, deps...); err != nil {
		return err
	}

	if cfg.Metrics.HTTP.Enabled {
		app.monitor = monitor.New(cfg.Metrics.HTTP, app.registry, app.serviceHealth, app.logger)
		if err := app.lifecycle.Register(ServiceMonitor, NewMonitorService(app.monitor), ServiceRuntimeAPI); err != nil {
			return err
		}
	}

	return nil
}

// Run starts every service and blocks until SIGINT or SIGTERM, ctx is
// done, or the subsystem loop fails. A loop failure is returned.
func (app *Application) Run(ctx context.Context) error {
	app.mutex.Lock()
	if app.running {
		app.mutex.Unlock()
		return fmt.Errorf("application is already running")
	}
	app.running = true
	app.mutex.Unlock()

	signal.Notify(app.shutdownChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(app.shutdownChan)

	if err := app.lifecycle.Start(ctx); err != nil {
		app.mutex.Lock()
		app.running = false
		app.mutex.Unlock()
		return err
	}

	if err := app.startWatcher(); err != nil {
		app.logger.Warn().Err(err).Msg("configuration hot reload disabled")
	}

	app.logger.Info().
		Str("version", app.cfg.App.Version).
		Str("environment", app.cfg.App.Environment.String()).
		Msg("application started")

	var runErr error
	select {
	case sig := <-app.shutdownChan:
		app.logger.Info().Str("signal", sig.String()).Msg("received shutdown signal, starting graceful shutdown")
	case <-ctx.Done():
		app.logger.Info().Msg("context cancelled, starting graceful shutdown")
	case err := <-app.runtimeService.Exited():
		runErr = &ApplicationError{Operation: "run", Service: ServiceRuntimeAPI, Err: err}
	}

	if err := app.Shutdown(context.Background()); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// Shutdown stops every service in reverse start order.
func (app *Application) Shutdown(ctx context.Context) error {
	app.mutex.Lock()
	if !app.running {
		app.mutex.Unlock()
		return nil
	}
	app.running = false
	app.mutex.Unlock()

	if app.watcher != nil {
		if err := app.watcher.Stop(); err != nil {
			app.logger.Warn().Err(err).Msg("failed to stop config watcher")
		}
		app.watcher = nil
	}

	timeout := app.cfg.Subsystem.ShutdownTimeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := app.lifecycle.Stop(shutdownCtx)
	app.logger.Info().Uint64("dispatched", app.subsystem.Dispatched()).Msg("application stopped")
	app.closeLogger()
	return err
}

// Submit enqueues a runtime API request for the given relay parent. It
// blocks while the mailbox is full.
func (app *Application) Submit(ctx context.Context, relayParent primitives.Hash, request runtimeapi.Request) error {
	if request == nil {
		return fmt.Errorf("nil runtime API request")
	}
	msg := runtimeapi.NewMessage(relayParent, request)
	if err := app.mailbox.Send(ctx, core.MessageEnvelope(msg)); err != nil {
		return fmt.Errorf("failed to submit %s request: %w", request.Kind(), err)
	}
	return nil
}

// Signal forwards a status signal to the subsystem.
func (app *Application) Signal(ctx context.Context, sig core.Signal) error {
	if _, ok := sig.(core.Conclude); ok {
		return ErrConcludeReserved
	}
	return app.mailbox.Send(ctx, core.SignalEnvelope[runtimeapi.Message](sig))
}

// Health returns the health of every service.
func (app *Application) Health(ctx context.Context) (map[string]HealthStatus, error) {
	return app.lifecycle.Health(ctx)
}

// Lifecycle returns the lifecycle manager.
func (app *Application) Lifecycle() *DefaultLifecycleManager {
	return app.lifecycle
}

// Registry returns the Prometheus registry the subsystem records into.
func (app *Application) Registry() *prometheus.Registry {
	return app.registry
}

// Subsystem returns the runtime API subsystem.
func (app *Application) Subsystem() *runtimeapi.Subsystem {
	return app.subsystem
}

// MonitorAddr returns the bound monitor address, or "" when the monitor is disabled or stopped.
func (app *Application) MonitorAddr() string {
	if app.monitor == nil {
		return ""
	}
	return app.monitor.Addr()
}

// serviceHealth adapts lifecycle health to the monitor's report.
func (app *Application) serviceHealth(ctx context.Context) map[string]error {
	health, err := app.lifecycle.Health(ctx)
	if err != nil {
		return map[string]error{"lifecycle": err}
	}

	results := make(map[string]error, len(health))
	for name, status := range health {
		if status.State == HealthHealthy {
			results[name] = nil
			continue
		}
		msg := string(status.State)
		if status.Message != "" {
			msg += ": " + status.Message
		}
		results[name] = errors.New(msg)
	}
	return results
}

func (app *Application) startWatcher() error {
	if app.configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(app.configPath, config.NewLoader())
	if err != nil {
		return err
	}
	watcher.SetLogger(app.logger)
	watcher.OnConfigChange(app.onConfigChange)

	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return err
	}

	app.watcher = watcher
	return nil
}

// onConfigChange applies the settings that can change without a restart:
// the log level and the snapshot contents.
func (app *Application) onConfigChange(oldConfig, newConfig *config.Config) {
	if app.ownLogger != nil && oldConfig.Log.Level != newConfig.Log.Level {
		if err := app.ownLogger.SetLevel(newConfig.Log.Level); err != nil {
			app.logger.Warn().Err(err).Msg("log level not changed")
		} else {
			app.logger.Info().Str("level", newConfig.Log.Level.String()).Msg("log level changed")
		}
	}

	if app.providerService != nil && newConfig.Provider.SnapshotPath == app.cfg.Provider.SnapshotPath {
		if err := app.providerService.Reload(); err != nil {
			app.logger.Error().Err(err).Msg("snapshot reload failed; keeping previous snapshot")
		}
	} else if app.providerService != nil {
		app.logger.Warn().
			Str("configured", app.cfg.Provider.SnapshotPath).
			Str("requested", newConfig.Provider.SnapshotPath).
			Msg("snapshot path changes need a restart")
	}
}

func (app *Application) closeLogger() {
	if app.ownLogger != nil {
		_ = app.ownLogger.Close()
	}
}
