package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/najoast/runtimeapi/config"
	"github.com/najoast/runtimeapi/core"
	"github.com/najoast/runtimeapi/primitives"
	"github.com/najoast/runtimeapi/provider/snapshot"
	"github.com/najoast/runtimeapi/runtimeapi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingService records start and stop calls into a shared journal.
type recordingService struct {
	name     string
	journal  *journal
	startErr error
	stopErr  error
	started  bool
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	s.journal.add("start " + s.name)
	return nil
}

func (s *recordingService) Stop(ctx context.Context) error {
	s.started = false
	s.journal.add("stop " + s.name)
	return s.stopErr
}

func (s *recordingService) Health(ctx context.Context) (HealthStatus, error) {
	if !s.started {
		return HealthStatus{State: HealthStopped}, nil
	}
	return HealthStatus{State: HealthHealthy}, nil
}

func TestLifecycleManager_DependencyOrder(t *testing.T) {
	j := &journal{}
	lm := NewLifecycleManager(zerolog.Nop())

	require.NoError(t, lm.Register("monitor", &recordingService{name: "monitor", journal: j}, "runtime-api"))
	require.NoError(t, lm.Register("runtime-api", &recordingService{name: "runtime-api", journal: j}, "provider"))
	require.NoError(t, lm.Register("provider", &recordingService{name: "provider", journal: j}))

	ctx := context.Background()
	require.NoError(t, lm.Start(ctx))
	assert.True(t, lm.IsStarted())

	health, err := lm.Health(ctx)
	require.NoError(t, err)
	for name, status := range health {
		assert.Equal(t, HealthHealthy, status.State, name)
		assert.False(t, status.LastCheck.IsZero())
	}

	require.NoError(t, lm.Stop(ctx))
	assert.False(t, lm.IsStarted())

	assert.Equal(t, []string{
		"start provider", "start runtime-api", "start monitor",
		"stop monitor", "stop runtime-api", "stop provider",
	}, j.list())

	deps, ok := lm.GetDependencies("runtime-api")
	require.True(t, ok)
	assert.Equal(t, []string{"provider"}, deps)
	assert.Equal(t, []string{"monitor", "provider", "runtime-api"}, lm.Services())
}

func TestLifecycleManager_RegisterErrors(t *testing.T) {
	lm := NewLifecycleManager(zerolog.Nop())
	svc := &recordingService{name: "a", journal: &journal{}}

	assert.Error(t, lm.Register("", svc))
	assert.Error(t, lm.Register("a", nil))
	require.NoError(t, lm.Register("a", svc))
	assert.Error(t, lm.Register("a", svc), "duplicate")

	require.NoError(t, lm.Start(context.Background()))
	assert.Error(t, lm.Register("b", svc), "register after start")
	require.NoError(t, lm.Stop(context.Background()))
}

func TestLifecycleManager_InvalidGraph(t *testing.T) {
	t.Run("missing dependency", func(t *testing.T) {
		lm := NewLifecycleManager(zerolog.Nop())
		require.NoError(t, lm.Register("a", &recordingService{name: "a", journal: &journal{}}, "ghost"))

		err := lm.Start(context.Background())
		var appErr *ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "start", appErr.Operation)
	})

	t.Run("circular dependency", func(t *testing.T) {
		lm := NewLifecycleManager(zerolog.Nop())
		require.NoError(t, lm.Register("a", &recordingService{name: "a", journal: &journal{}}, "b"))
		require.NoError(t, lm.Register("b", &recordingService{name: "b", journal: &journal{}}, "a"))

		assert.ErrorContains(t, lm.Start(context.Background()), "circular dependency")
	})
}

func TestLifecycleManager_StartFailureRollsBack(t *testing.T) {
	j := &journal{}
	boom := errors.New("boom")
	lm := NewLifecycleManager(zerolog.Nop())

	require.NoError(t, lm.Register("first", &recordingService{name: "first", journal: j}))
	require.NoError(t, lm.Register("second", &recordingService{name: "second", journal: j, startErr: boom}, "first"))

	err := lm.Start(context.Background())
	require.ErrorIs(t, err, boom)

	var appErr *ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "second", appErr.Service)
	assert.Equal(t, "start failed for service second: boom", appErr.Error())

	assert.Equal(t, []string{"start first", "stop first"}, j.list())
	assert.False(t, lm.IsStarted())
}

func TestLifecycleManager_StopReportsFirstError(t *testing.T) {
	j := &journal{}
	lm := NewLifecycleManager(zerolog.Nop())

	require.NoError(t, lm.Register("a", &recordingService{name: "a", journal: j, stopErr: errors.New("a failed")}))
	require.NoError(t, lm.Register("b", &recordingService{name: "b", journal: j, stopErr: errors.New("b failed")}, "a"))

	require.NoError(t, lm.Start(context.Background()))
	err := lm.Stop(context.Background())
	assert.EqualError(t, err, "stop failed for service b: b failed")
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, j.list())
}

func TestLifecycleManager_Events(t *testing.T) {
	lm := NewLifecycleManager(zerolog.Nop())
	require.NoError(t, lm.Register("a", &recordingService{name: "a", journal: &journal{}}))

	heard := make(chan string, 32)
	lm.AddListener(func(e LifecycleEvent) { heard <- e.Type })

	require.NoError(t, lm.Start(context.Background()))

	var types []string
	for len(lm.Events()) > 0 {
		types = append(types, (<-lm.Events()).Type)
	}
	assert.Equal(t, []string{
		EventServiceRegistered, EventLifecycleStarting, EventServiceStarting,
		EventServiceStarted, EventLifecycleStarted,
	}, types)

	require.Eventually(t, func() bool { return len(heard) == 4 }, time.Second, 5*time.Millisecond)
	require.NoError(t, lm.Stop(context.Background()))
}

func TestApplicationError(t *testing.T) {
	inner := errors.New("inner")

	assert.Equal(t, "run failed: inner", (&ApplicationError{Operation: "run", Err: inner}).Error())
	assert.ErrorIs(t, &ApplicationError{Operation: "run", Service: "x", Err: inner}, inner)
}

var (
	testBlock     = primitives.HashFromByte(0x01)
	testValidator = primitives.ValidatorID(primitives.HashFromByte(0xaa))
)

func testSnapshot(t *testing.T) *snapshot.Provider {
	t.Helper()

	p, err := snapshot.New(&snapshot.Document{Blocks: map[string]snapshot.BlockState{
		testBlock.String(): {
			Validators:           []primitives.ValidatorID{testValidator},
			SessionIndexForChild: 4,
		},
	}})
	require.NoError(t, err)
	return p
}

func testAppConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Metrics.HTTP.Enabled = false
	cfg.Subsystem.MailboxSize = 8
	cfg.Subsystem.ShutdownTimeout = config.Duration(5 * time.Second)
	return cfg
}

// runApp runs app in the background and returns a stop function that
// cancels it and returns Run's error.
func runApp(t *testing.T, app *Application) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return app.Subsystem().State() == core.StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("application did not stop")
			return nil
		}
	}
}

func queryValidators(t *testing.T, app *Application, block primitives.Hash) runtimeapi.Result[[]primitives.ValidatorID] {
	t.Helper()

	tx, rx := runtimeapi.NewReply[[]primitives.ValidatorID]()
	require.NoError(t, app.Submit(context.Background(), block, runtimeapi.Validators{Reply: tx}))

	select {
	case res := <-rx:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return runtimeapi.Result[[]primitives.ValidatorID]{}
	}
}

func TestApplication_ServesRequests(t *testing.T) {
	app, err := NewApplication(testAppConfig(), WithLogger(zerolog.Nop()), WithProvider(testSnapshot(t)))
	require.NoError(t, err)
	assert.Equal(t, []string{ServiceRuntimeAPI}, app.Lifecycle().Services())

	stop := runApp(t, app)

	res := queryValidators(t, app, testBlock)
	require.NoError(t, res.Err)
	assert.Equal(t, []primitives.ValidatorID{testValidator}, res.Value)

	res = queryValidators(t, app, primitives.HashFromByte(0x02))
	var apiErr *runtimeapi.Error
	require.ErrorAs(t, res.Err, &apiErr)
	assert.Contains(t, apiErr.Error(), "unknown block")

	require.NoError(t, app.Signal(context.Background(), core.ActiveLeaves{Activated: []primitives.Hash{testBlock}}))
	assert.ErrorIs(t, app.Signal(context.Background(), core.Conclude{}), ErrConcludeReserved)
	assert.Error(t, app.Submit(context.Background(), testBlock, nil))

	health, err := app.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HealthHealthy, health[ServiceRuntimeAPI].State)

	require.NoError(t, stop())
	assert.Equal(t, core.StateStopped, app.Subsystem().State())

	expected := `
# HELP parachain_runtime_api_requests_total Number of Runtime API requests served.
# TYPE parachain_runtime_api_requests_total counter
parachain_runtime_api_requests_total{success="failed"} 1
parachain_runtime_api_requests_total{success="succeeded"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(app.Registry(), strings.NewReader(expected), runtimeapi.RequestsMetricName))
}

func TestApplication_MetricsDisabled(t *testing.T) {
	cfg := testAppConfig()
	cfg.Metrics.Enabled = false

	app, err := NewApplication(cfg, WithLogger(zerolog.Nop()), WithProvider(testSnapshot(t)))
	require.NoError(t, err)

	stop := runApp(t, app)
	require.NoError(t, queryValidators(t, app, testBlock).Err)
	require.NoError(t, stop())

	mfs, err := app.Registry().Gather()
	require.NoError(t, err)
	assert.Empty(t, mfs)
}

func TestApplication_MailboxFailureIsFatal(t *testing.T) {
	app, err := NewApplication(testAppConfig(), WithLogger(zerolog.Nop()), WithProvider(testSnapshot(t)))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return app.Subsystem().State() == core.StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	app.mailbox.Close()

	select {
	case err := <-errCh:
		var appErr *ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "run", appErr.Operation)
		assert.Equal(t, ServiceRuntimeAPI, appErr.Service)
		assert.ErrorIs(t, err, core.ErrMailboxClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not report the loop failure")
	}
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	cfg := testAppConfig()
	cfg.Subsystem.MailboxSize = 0

	_, err := NewApplication(cfg, WithLogger(zerolog.Nop()))
	var appErr *ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.ErrorIs(t, err, config.ErrInvalidMailboxSize)
}

const snapshotYAML = `blocks:
  "%s":
    validators: ["%s"]
`

func TestApplication_SnapshotMonitorAndHotReload(t *testing.T) {
	dir := t.TempDir()

	snapshotPath := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(snapshotPath,
		[]byte(fmt.Sprintf(snapshotYAML, testBlock, testValidator)), 0o644))

	configBody := func(level string) []byte {
		return []byte(fmt.Sprintf(`
app:
  name: hot-reload
log:
  level: %s
  format: json
  output: %s
subsystem:
  mailbox_size: 8
  shutdown_timeout: 5s
metrics:
  enabled: true
  http:
    enabled: true
    address: 127.0.0.1
    port: 0
provider:
  snapshot_path: %s
`, level, filepath.Join(dir, "app.log"), snapshotPath))
	}

	configPath := filepath.Join(dir, "runtimeapi.yaml")
	require.NoError(t, os.WriteFile(configPath, configBody("info"), 0o644))

	cfg, err := config.NewLoader().SetEnvFiles().LoadFromFile(configPath)
	require.NoError(t, err)

	app, err := NewApplication(cfg, WithConfigFile(configPath))
	require.NoError(t, err)
	assert.Equal(t, []string{ServiceMonitor, ServiceRuntimeAPI, ServiceProvider}, app.Lifecycle().Services())

	stop := runApp(t, app)

	require.NoError(t, queryValidators(t, app, testBlock).Err)

	resp, err := http.Get("http://" + app.MonitorAddr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `parachain_runtime_api_requests_total{success="succeeded"} 1`)

	resp, err = http.Get("http://" + app.MonitorAddr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	newBlock := primitives.HashFromByte(0x02)
	require.NoError(t, os.WriteFile(snapshotPath,
		[]byte(fmt.Sprintf(snapshotYAML, newBlock, testValidator)), 0o644))
	require.NoError(t, os.WriteFile(configPath, configBody("debug"), 0o644))

	require.Eventually(t, func() bool {
		return queryValidators(t, app, newBlock).Err == nil
	}, 5*time.Second, 100*time.Millisecond)
	assert.Equal(t, zerolog.DebugLevel, app.ownLogger.CurrentLevel())

	require.NoError(t, stop())
	assert.Empty(t, app.MonitorAddr())
}

// gatedProvider holds Validators calls until release is closed.
type gatedProvider struct {
	runtimeapi.Provider
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) Validators(ctx context.Context, at primitives.Hash) ([]primitives.ValidatorID, error) {
	close(p.entered)
	<-p.release
	return p.Provider.Validators(ctx, at)
}

func TestRuntimeAPIService_HealthFollowsLifecycle(t *testing.T) {
	api := &gatedProvider{
		Provider: testSnapshot(t),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	sub, err := runtimeapi.New(api, nil)
	require.NoError(t, err)
	mailbox := core.NewMailbox[runtimeapi.Message](core.MailboxOptions{Size: 8, Name: "runtime-api"})
	svc := NewRuntimeAPIService(sub, mailbox, zerolog.Nop())

	health := func() HealthState {
		status, err := svc.Health(context.Background())
		assert.NoError(t, err)
		return status.State
	}

	assert.Equal(t, HealthStopped, health())

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return health() == HealthHealthy }, 2*time.Second, 5*time.Millisecond)

	tx, rx := runtimeapi.NewReply[[]primitives.ValidatorID]()
	require.NoError(t, mailbox.Send(context.Background(),
		core.MessageEnvelope(runtimeapi.NewMessage(testBlock, runtimeapi.Validators{Reply: tx}))))
	<-api.entered

	stopErr := make(chan error, 1)
	go func() { stopErr <- svc.Stop(context.Background()) }()

	require.Eventually(t, func() bool { return health() == HealthStopping }, 2*time.Second, 5*time.Millisecond)

	close(api.release)
	require.NoError(t, (<-rx).Err)
	require.NoError(t, <-stopErr)

	status, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HealthStopped, status.State)
	assert.Equal(t, "subsystem concluded", status.Message)
}

func TestRuntimeAPIService_HealthStartingBeforeLoopRuns(t *testing.T) {
	sub, err := runtimeapi.New(testSnapshot(t), nil)
	require.NoError(t, err)
	svc := NewRuntimeAPIService(sub,
		core.NewMailbox[runtimeapi.Message](core.MailboxOptions{Size: 8, Name: "runtime-api"}), zerolog.Nop())

	// spawned but the loop goroutine has not been scheduled
	svc.spawned = &runtimeapi.Spawned{Name: runtimeapi.Name}

	status, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HealthStarting, status.State)
}
