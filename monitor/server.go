// Package monitor serves the Prometheus metrics and health report over HTTP.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/najoast/runtimeapi/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ErrNotRunning is returned by Health when the server is not serving.
var ErrNotRunning = errors.New("monitor server not running")

// HealthFunc reports per-service health; a nil error means healthy.
type HealthFunc func(ctx context.Context) map[string]error

// Report is the JSON body of the health endpoint.
type Report struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Services map[string]string `json:"services"`
}

// Server exposes metrics and health over HTTP.
type Server struct {
	cfg      config.HTTPMonitorConfig
	gatherer prometheus.Gatherer
	health   HealthFunc
	logger   zerolog.Logger
	router   *gin.Engine
	started  time.Time

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a monitor server. gatherer may be nil when metrics are disabled;
// the metrics endpoint then reports an empty exposition.
func New(cfg config.HTTPMonitorConfig, gatherer prometheus.Gatherer, health HealthFunc, logger zerolog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		gatherer: gatherer,
		health:   health,
		logger:   logger.With().Str("component", "monitor").Logger(),
		router:   r,
		started:  time.Now(),
	}
	r.Use(RequestLogger(s.logger))

	r.GET(cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET(cfg.HealthPath, s.handleHealth)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	report := Report{
		Status:   "ok",
		Uptime:   time.Since(s.started).Truncate(time.Second).String(),
		Services: map[string]string{},
	}

	if s.health != nil {
		results := s.health(c.Request.Context())
		names := make([]string, 0, len(results))
		for name := range results {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := results[name]; err != nil {
				report.Status = "degraded"
				report.Services[name] = err.Error()
				continue
			}
			report.Services[name] = "ok"
		}
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return fmt.Errorf("monitor server already started")
	}

	addr := net.JoinHostPort(s.cfg.Address, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})

	s.srv = srv
	s.listener = ln
	s.done = done

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("monitor server failed")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("monitor server listening")
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

// Health reports whether the server is serving.
func (s *Server) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return ErrNotRunning
	}
	return nil
}

// Addr returns the bound address, or "" when not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
