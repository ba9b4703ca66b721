package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/najoast/runtimeapi/core"
	"github.com/najoast/runtimeapi/monitor"
	"github.com/najoast/runtimeapi/provider/snapshot"
	"github.com/najoast/runtimeapi/runtimeapi"
	"github.com/rs/zerolog"
)

// Service names
const (
	ServiceProvider   = "state-provider"
	ServiceRuntimeAPI = "runtime-api"
	ServiceMonitor    = "monitor"
)

// ErrNotStarted is reported by services that have not been started.
var ErrNotStarted = errors.New("service not started")

// ProviderService loads the state snapshot the subsystem answers from.
type ProviderService struct {
	provider *snapshot.Provider
	path     string
	logger   zerolog.Logger
}

// NewProviderService creates a service that loads path into provider on start.
// An empty path leaves the provider empty.
func NewProviderService(provider *snapshot.Provider, path string, logger zerolog.Logger) *ProviderService {
	return &ProviderService{provider: provider, path: path, logger: logger}
}

func (s *ProviderService) Name() string {
	return ServiceProvider
}

func (s *ProviderService) Start(ctx context.Context) error {
	if s.path == "" {
		s.logger.Warn().Msg("no snapshot configured; every query will fail with unknown block")
		return nil
	}
	return s.Reload()
}

func (s *ProviderService) Stop(ctx context.Context) error {
	return nil
}

// Reload re-reads the snapshot file. The current snapshot is kept on error.
func (s *ProviderService) Reload() error {
	if s.path == "" {
		return nil
	}
	if err := s.provider.Reload(s.path); err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", s.path, err)
	}
	s.logger.Info().Str("path", s.path).Int("blocks", len(s.provider.Blocks())).Msg("state snapshot loaded")
	return nil
}

func (s *ProviderService) Health(ctx context.Context) (HealthStatus, error) {
	blocks := len(s.provider.Blocks())
	state := HealthHealthy
	if blocks == 0 {
		state = HealthUnhealthy
	}
	return HealthStatus{
		State:   state,
		Message: fmt.Sprintf("%d blocks in snapshot", blocks),
		Data:    map[string]interface{}{"blocks": blocks, "path": s.path},
	}, nil
}

// RuntimeAPIService runs the subsystem loop under the lifecycle manager.
type RuntimeAPIService struct {
	subsystem *runtimeapi.Subsystem
	mailbox   *core.Mailbox[runtimeapi.Message]
	logger    zerolog.Logger

	mu      sync.Mutex
	spawned *runtimeapi.Spawned
	stopped bool
	exited  chan error
}

// NewRuntimeAPIService wraps a subsystem and the mailbox it reads from.
func NewRuntimeAPIService(subsystem *runtimeapi.Subsystem, mailbox *core.Mailbox[runtimeapi.Message],
	logger zerolog.Logger) *RuntimeAPIService {
	return &RuntimeAPIService{
		subsystem: subsystem,
		mailbox:   mailbox,
		logger:    logger,
		exited:    make(chan error, 1),
	}
}

func (s *RuntimeAPIService) Name() string {
	return ServiceRuntimeAPI
}

// Start spawns the loop. The loop is not bound to ctx, which only covers startup.
func (s *RuntimeAPIService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spawned != nil {
		return fmt.Errorf("%s already started", ServiceRuntimeAPI)
	}

	sp := s.subsystem.Start(context.Background(), s.mailbox)
	s.spawned = sp

	go func() {
		<-sp.Done()
		err := sp.Err()

		s.mu.Lock()
		expected := s.stopped
		s.mu.Unlock()

		if !expected {
			if err == nil {
				err = errors.New("subsystem loop exited without being concluded")
			}
			s.logger.Error().Err(err).Msg("runtime API subsystem exited")
			s.exited <- err
		}
	}()

	return nil
}

// Exited delivers the loop error when the loop ends on its own, which only
// happens when the mailbox fails.
func (s *RuntimeAPIService) Exited() <-chan error {
	return s.exited
}

// Stop sends Conclude and waits for the loop to return.
func (s *RuntimeAPIService) Stop(ctx context.Context) error {
	s.mu.Lock()
	sp := s.spawned
	s.stopped = true
	s.mu.Unlock()

	if sp == nil {
		return nil
	}

	select {
	case <-sp.Done():
	default:
		if err := s.mailbox.Send(ctx, core.SignalEnvelope[runtimeapi.Message](core.Conclude{})); err != nil {
			if errors.Is(err, core.ErrMailboxClosed) {
				return sp.Wait(ctx)
			}
			return fmt.Errorf("failed to conclude subsystem: %w", err)
		}
	}

	err := sp.Wait(ctx)
	s.mailbox.Close()
	return err
}

func (s *RuntimeAPIService) Health(ctx context.Context) (HealthStatus, error) {
	s.mu.Lock()
	sp := s.spawned
	stopping := s.stopped
	s.mu.Unlock()

	stats := s.mailbox.Stats()
	data := map[string]interface{}{
		"dispatched": s.subsystem.Dispatched(),
		"pending":    stats.Pending,
		"capacity":   stats.Capacity,
	}

	if sp == nil {
		return HealthStatus{State: HealthStopped, Message: "subsystem not started", Data: data}, nil
	}

	select {
	case <-sp.Done():
		if err := sp.Err(); err != nil {
			return HealthStatus{State: HealthCritical, Message: err.Error(), Data: data}, nil
		}
		return HealthStatus{State: HealthStopped, Message: "subsystem concluded", Data: data}, nil
	default:
	}

	if stopping {
		return HealthStatus{State: HealthStopping, Message: "subsystem concluding", Data: data}, nil
	}
	// the loop goroutine has not reached its mailbox yet
	if s.subsystem.State() == core.StateIdle {
		return HealthStatus{State: HealthStarting, Message: "subsystem starting", Data: data}, nil
	}
	return HealthStatus{State: HealthHealthy, Message: "subsystem running", Data: data}, nil
}

// MonitorService runs the metrics and health HTTP server.
type MonitorService struct {
	server *monitor.Server
}

// NewMonitorService wraps a monitor server.
func NewMonitorService(server *monitor.Server) *MonitorService {
	return &MonitorService{server: server}
}

func (s *MonitorService) Name() string {
	return ServiceMonitor
}

func (s *MonitorService) Start(ctx context.Context) error {
	return s.server.Start(ctx)
}

func (s *MonitorService) Stop(ctx context.Context) error {
	return s.server.Stop(ctx)
}

func (s *MonitorService) Health(ctx context.Context) (HealthStatus, error) {
	if err := s.server.Health(ctx); err != nil {
		return HealthStatus{}, err
	}
	return HealthStatus{
		State:   HealthHealthy,
		Message: "serving",
		Data:    map[string]interface{}{"addr": s.server.Addr()},
	}, nil
}
