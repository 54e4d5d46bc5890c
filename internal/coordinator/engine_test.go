package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name     string
	priority int
	started  atomic.Bool

	mu     sync.Mutex
	health ComponentHealth
}

func newFakeComponent(name string, priority int) *fakeComponent {
	return &fakeComponent{name: name, priority: priority, health: ComponentHealth{State: ComponentRunning}}
}

func (f *fakeComponent) Name() string                         { return f.name }
func (f *fakeComponent) Priority() int                        { return f.priority }
func (f *fakeComponent) Initialize(ctx context.Context) error { return nil }
func (f *fakeComponent) Start(ctx context.Context) error {
	f.started.Store(true)
	return nil
}
func (f *fakeComponent) Stop(ctx context.Context) error {
	f.started.Store(false)
	return nil
}
func (f *fakeComponent) HealthCheck(ctx context.Context) (ComponentHealth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health, nil
}

func (f *fakeComponent) setHealth(h ComponentHealth) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health = h
}

func testConfig() Config {
	return Config{
		MonitoringInterval:         10 * time.Millisecond,
		HeartbeatInterval:          10 * time.Millisecond,
		HealthCheckTimeout:         time.Second,
		MaxRecoveryAttempts:        3,
		ShutdownTimeout:            time.Second,
		MetricsPersistenceInterval: time.Hour,
		EmergencyStopOnCritical:    true,
		ComponentStartupTimeout:    time.Second,
	}
}

func TestEngineStartsAndStopsRegisteredComponents(t *testing.T) {
	engine := New(testConfig(), nil, nil)
	c := newFakeComponent("worker", 10)
	require.NoError(t, engine.Register(c))

	ctx := context.Background()
	require.NoError(t, engine.Start(ctx))
	require.Eventually(t, func() bool { return c.started.Load() }, time.Second, 5*time.Millisecond)
	require.Equal(t, StateRunning, engine.State())

	engine.Stop(ctx)
	require.False(t, c.started.Load())
	require.Equal(t, StateStopped, engine.State())
}

func TestEngineRejectsDuplicateComponentNames(t *testing.T) {
	engine := New(testConfig(), nil, nil)
	require.NoError(t, engine.Register(newFakeComponent("dup", 1)))
	require.Error(t, engine.Register(newFakeComponent("dup", 2)))
}

func TestEngineDegradesOnCriticalComponentHealth(t *testing.T) {
	engine := New(testConfig(), nil, nil)
	c := newFakeComponent("flaky", 1)
	require.NoError(t, engine.Register(c))

	ctx := context.Background()
	require.NoError(t, engine.Start(ctx))
	require.Eventually(t, func() bool { return engine.State() == StateRunning }, time.Second, 5*time.Millisecond)

	c.setHealth(ComponentHealth{State: ComponentError})
	require.Eventually(t, func() bool { return engine.State() == StateDegraded }, time.Second, 5*time.Millisecond)

	engine.Stop(ctx)
}
