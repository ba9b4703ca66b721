package runtimeapi

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/najoast/runtimeapi/core"
	"github.com/rs/zerolog"
)

// Name identifies the subsystem in logs and to its supervisor.
const Name = "runtime-api-subsystem"

// Subsystem is the runtime API subsystem. See the package docs.
type Subsystem struct {
	provider Provider
	metrics  Metrics
	logger   zerolog.Logger

	state      int32 // core.State
	dispatched uint64
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithLogger sets the logger used by the loop.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Subsystem) {
		s.logger = logger
	}
}

// New creates a Subsystem wrapping the given provider and metrics. A nil
// metrics value is the same as NoopMetrics().
func New(provider Provider, metrics Metrics, opts ...Option) (*Subsystem, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}

	s := &Subsystem{
		provider: provider,
		metrics:  metrics,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("subsystem", Name).Logger()

	return s, nil
}

// State returns the loop state.
func (s *Subsystem) State() core.State {
	return core.State(atomic.LoadInt32(&s.state))
}

// Dispatched returns the number of requests handed to the provider so far.
func (s *Subsystem) Dispatched() uint64 {
	return atomic.LoadUint64(&s.dispatched)
}

// Run receives from rx until it gets Conclude, which makes it return nil.
// Other signals are ignored. A failure to receive ends the loop and is
// returned to the caller.
func (s *Subsystem) Run(ctx context.Context, rx core.Receiver[Message]) error {
	if !atomic.CompareAndSwapInt32(&s.state, int32(core.StateIdle), int32(core.StateRunning)) {
		return ErrAlreadyStarted
	}
	defer atomic.StoreInt32(&s.state, int32(core.StateStopped))

	s.logger.Info().Msg("runtime API subsystem started")

	for {
		env, err := rx.Recv(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("mailbox receive failed")
			return fmt.Errorf("%s: receive: %w", Name, err)
		}

		if env.IsSignal() {
			if _, ok := env.Signal.(core.Conclude); ok {
				s.logger.Info().Uint64("dispatched", s.Dispatched()).Msg("runtime API subsystem concluded")
				return nil
			}
			s.logger.Trace().Str("signal", env.Signal.SignalName()).Msg("signal ignored")
			continue
		}

		s.handle(ctx, env.Message)
	}
}

func (s *Subsystem) handle(ctx context.Context, msg Message) {
	if msg.Request == nil {
		s.logger.Warn().Str("id", msg.ID.String()).Msg("message without request dropped")
		return
	}

	start := time.Now()
	outcome := MakeRequest(ctx, s.provider, s.metrics, msg.RelayParent, msg.Request)
	atomic.AddUint64(&s.dispatched, 1)

	event := s.logger.Debug()
	if !outcome.Succeeded {
		event = s.logger.Warn()
	}
	event.
		Str("id", msg.ID.String()).
		Str("request", outcome.Kind).
		Str("relay_parent", msg.RelayParent.Short()).
		Bool("succeeded", outcome.Succeeded).
		Bool("delivered", outcome.Delivered).
		Dur("duration", time.Since(start)).
		Msg("runtime API request served")
}

// Spawned is a subsystem loop running in its own goroutine.
type Spawned struct {
	Name string

	done chan struct{}
	err  error
}

// Start runs the loop in a new goroutine.
func (s *Subsystem) Start(ctx context.Context, rx core.Receiver[Message]) *Spawned {
	sp := &Spawned{
		Name: Name,
		done: make(chan struct{}),
	}

	go func() {
		defer close(sp.done)
		sp.err = s.Run(ctx, rx)
	}()

	return sp
}

// Done is closed when the loop has exited.
func (sp *Spawned) Done() <-chan struct{} {
	return sp.done
}

// Err returns the loop's exit error. It is only meaningful after Done is closed.
func (sp *Spawned) Err() error {
	select {
	case <-sp.done:
		return sp.err
	default:
		return nil
	}
}

// Wait blocks until the loop exits or ctx is done.
func (sp *Spawned) Wait(ctx context.Context) error {
	select {
	case <-sp.done:
		return sp.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
