package main

import (
	"context"
	"sync"
	"time"

	"github.com/ict-core/enginecore/internal/analytics"
	"github.com/ict-core/enginecore/internal/coordinator"
	"github.com/ict-core/enginecore/internal/persistence"
	"github.com/ict-core/enginecore/internal/recovery"
)

// busComponent adapts *analytics.Bus to coordinator.Component so its
// consumer loop is supervised like every other subsystem.
type busComponent struct {
	bus      *analytics.Bus
	priority int

	mu    sync.Mutex
	state coordinator.ComponentState
}

func newBusComponent(bus *analytics.Bus, priority int) *busComponent {
	return &busComponent{bus: bus, priority: priority, state: coordinator.ComponentOffline}
}

func (c *busComponent) Name() string  { return "analytics_bus" }
func (c *busComponent) Priority() int { return c.priority }

func (c *busComponent) Initialize(ctx context.Context) error {
	c.setState(coordinator.ComponentInitializing)
	return nil
}

func (c *busComponent) Start(ctx context.Context) error {
	c.bus.Start(context.Background())
	c.setState(coordinator.ComponentRunning)
	return nil
}

func (c *busComponent) Stop(ctx context.Context) error {
	c.bus.Stop()
	c.setState(coordinator.ComponentOffline)
	return nil
}

func (c *busComponent) HealthCheck(ctx context.Context) (coordinator.ComponentHealth, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	return coordinator.ComponentHealth{
		State:     state,
		UpdatedAt: time.Now().UTC(),
		Metrics:   map[string]any{"dropped_events": c.bus.DroppedCount()},
	}, nil
}

func (c *busComponent) setState(s coordinator.ComponentState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// recoveryComponent adapts *recovery.Engine to coordinator.Component. When
// autoRecoveryEnabled is false the component still registers (so its health
// shows up in Status) but Start never launches the detection loop.
type recoveryComponent struct {
	engine              *recovery.Engine
	priority            int
	autoRecoveryEnabled bool

	mu    sync.Mutex
	state coordinator.ComponentState
}

func newRecoveryComponent(engine *recovery.Engine, priority int, autoRecoveryEnabled bool) *recoveryComponent {
	return &recoveryComponent{engine: engine, priority: priority, autoRecoveryEnabled: autoRecoveryEnabled, state: coordinator.ComponentOffline}
}

func (c *recoveryComponent) Name() string  { return "auto_recovery" }
func (c *recoveryComponent) Priority() int { return c.priority }

func (c *recoveryComponent) Initialize(ctx context.Context) error {
	c.setState(coordinator.ComponentInitializing)
	return nil
}

func (c *recoveryComponent) Start(ctx context.Context) error {
	if c.autoRecoveryEnabled {
		c.engine.Start(context.Background())
	}
	c.setState(coordinator.ComponentRunning)
	return nil
}

func (c *recoveryComponent) Stop(ctx context.Context) error {
	c.engine.Stop()
	c.setState(coordinator.ComponentOffline)
	return nil
}

func (c *recoveryComponent) HealthCheck(ctx context.Context) (coordinator.ComponentHealth, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	return coordinator.ComponentHealth{
		State:     state,
		UpdatedAt: time.Now().UTC(),
		Metrics:   map[string]any{"history_len": len(c.engine.History())},
	}, nil
}

func (c *recoveryComponent) setState(s coordinator.ComponentState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// backupComponent adapts *persistence.Scheduler to coordinator.Component.
type backupComponent struct {
	scheduler *persistence.Scheduler
	priority  int

	mu    sync.Mutex
	state coordinator.ComponentState
}

func newBackupComponent(scheduler *persistence.Scheduler, priority int) *backupComponent {
	return &backupComponent{scheduler: scheduler, priority: priority, state: coordinator.ComponentOffline}
}

func (c *backupComponent) Name() string  { return "persistence_backup" }
func (c *backupComponent) Priority() int { return c.priority }

func (c *backupComponent) Initialize(ctx context.Context) error {
	c.setState(coordinator.ComponentInitializing)
	return nil
}

func (c *backupComponent) Start(ctx context.Context) error {
	c.scheduler.Start()
	c.setState(coordinator.ComponentRunning)
	return nil
}

func (c *backupComponent) Stop(ctx context.Context) error {
	c.scheduler.Stop()
	c.setState(coordinator.ComponentOffline)
	return nil
}

func (c *backupComponent) HealthCheck(ctx context.Context) (coordinator.ComponentHealth, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	return coordinator.ComponentHealth{State: state, UpdatedAt: time.Now().UTC()}, nil
}

func (c *backupComponent) setState(s coordinator.ComponentState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
