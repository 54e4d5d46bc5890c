package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ict-core/enginecore/pkg/metrics"
)

// SnapshotWriter persists coordinator state/metrics snapshots. Satisfied by
// *persistence.Store; declared here (rather than importing internal/persistence
// directly) to keep the coordinator package a leaf the way system/core/health.go
// and lifecycle.go are leaves with injected collaborators.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, category, id string, v any) error
}

// Config holds the coordinator's own tunables (defaults).
type Config struct {
	MonitoringInterval         time.Duration
	HeartbeatInterval          time.Duration
	HealthCheckTimeout         time.Duration
	MaxRecoveryAttempts        int
	ShutdownTimeout            time.Duration
	MetricsPersistenceInterval time.Duration
	EmergencyStopOnCritical    bool
	ComponentStartupTimeout    time.Duration
	CriticalErrorThreshold     int
}

// Engine is the Production Coordinator: it composes a Registry, a
// LifecycleManager and a HealthMonitor and drives the overall system state
// machine. It omits the blockchain-domain accessor methods (AccountEngines,
// StoreEngines, etc.) that have no equivalent in a trading core.
type Engine struct {
	mu       sync.RWMutex
	cfg      Config
	registry *Registry
	health   *HealthMonitor
	life     *LifecycleManager
	snapshot SnapshotWriter
	log      *logrus.Entry

	state     SystemState
	startedAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Engine. snapshot may be nil, in which case periodic state
// persistence is skipped.
func New(cfg Config, snapshot SnapshotWriter, log *logrus.Entry) *Engine {
	health := NewHealthMonitor()
	registry := NewRegistry()
	life := NewLifecycleManager(registry, health, log, cfg.ComponentStartupTimeout)
	return &Engine{
		cfg:      cfg,
		registry: registry,
		health:   health,
		life:     life,
		snapshot: snapshot,
		log:      log,
		state:    StateStopped,
	}
}

// Register adds a component to the engine prior to Start.
func (e *Engine) Register(c Component) error {
	return e.registry.Register(c)
}

// Status returns a point-in-time snapshot of system health.
func (e *Engine) Status() SystemHealth {
	e.mu.RLock()
	state := e.state
	startedAt := e.startedAt
	e.mu.RUnlock()

	var uptime time.Duration
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt)
	}

	return SystemHealth{
		OverallState:    state,
		ComponentHealth: e.health.All(),
		Uptime:          uptime,
		UpdatedAt:       time.Now().UTC(),
	}
}

// Start transitions Stopped -> Initializing -> Starting -> Running (or
// Error on failure), then launches the health and heartbeat loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.state = StateInitializing
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.state = StateStarting
	e.mu.Unlock()

	if err := e.life.Start(ctx); err != nil {
		e.mu.Lock()
		e.state = StateError
		e.mu.Unlock()
		cancel()
		return err
	}

	e.mu.Lock()
	e.state = StateRunning
	e.startedAt = time.Now().UTC()
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.healthLoop(runCtx)
	e.wg.Add(1)
	go e.heartbeatLoop(runCtx)
	if e.snapshot != nil {
		e.wg.Add(1)
		go e.persistenceLoop(runCtx)
	}

	return nil
}

// Stop transitions to ShuttingDown, stops every component in reverse
// priority order, then settles in Stopped.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	e.state = StateShuttingDown
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	shutdownCtx, done := context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
	defer done()
	e.life.Stop(shutdownCtx)

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()
}

// EmergencyStop performs a synchronous, best-effort shutdown of every
// component regardless of outstanding errors, then latches the engine in
// StateEmergencyStop until a fresh Start (emergency_stop_on_critical_failure).
func (e *Engine) EmergencyStop(ctx context.Context) {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	shutdownCtx, done := context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
	defer done()
	e.life.Stop(shutdownCtx)

	e.mu.Lock()
	e.state = StateEmergencyStop
	e.mu.Unlock()

	if e.log != nil {
		e.log.Error("coordinator: emergency stop engaged")
	}
}

// State returns the current overall system state.
func (e *Engine) State() SystemState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// healthLoop recomputes overall_state from component health on
// MonitoringInterval, applying these transition guards:
// Running -> Degraded when critical>0 or unavailable > half of components;
// Running|Degraded -> EmergencyStop when EmergencyStopOnCritical and
// critical > CriticalErrorThreshold (a threshold of 0 or less counts as 1);
// Degraded -> Running once no component reports critical/unavailable.
func (e *Engine) healthLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.MonitoringInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluateHealth(ctx)
		}
	}
}

func (e *Engine) evaluateHealth(ctx context.Context) {
	critical, unavailable, total := e.health.Counts()

	e.mu.Lock()
	current := e.state
	e.mu.Unlock()
	if current != StateRunning && current != StateDegraded {
		return
	}

	threshold := e.cfg.CriticalErrorThreshold
	if threshold <= 0 {
		threshold = 1
	}
	if e.cfg.EmergencyStopOnCritical && critical > threshold {
		e.EmergencyStop(ctx)
		return
	}

	next := current
	if critical > 0 || (total > 0 && unavailable > total/2) {
		next = StateDegraded
	} else if current == StateDegraded {
		next = StateRunning
	}

	if next != current {
		e.mu.Lock()
		e.state = next
		e.mu.Unlock()
		if e.log != nil {
			e.log.WithField("from", current.String()).WithField("to", next.String()).Info("coordinator: overall state transition")
		}
	}
}

// heartbeatLoop calls HealthCheck on every registered component on
// HeartbeatInterval and records the resulting ComponentHealth, publishing a
// Prometheus gauge per component.
func (e *Engine) heartbeatLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()
	allStates := []string{
		ComponentOffline.String(), ComponentInitializing.String(), ComponentReady.String(),
		ComponentRunning.String(), ComponentError.String(), ComponentDegraded.String(),
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range e.registry.Ordered() {
				hctx, cancel := context.WithTimeout(ctx, e.cfg.HealthCheckTimeout)
				h, err := c.HealthCheck(hctx)
				cancel()
				if err != nil {
					e.health.MarkError(c.Name(), err)
					metrics.RecordComponentState(c.Name(), ComponentError.String(), allStates)
					continue
				}
				h.Name = c.Name()
				h.Priority = c.Priority()
				h.LastHeartbeat = time.Now().UTC()
				e.health.Set(h)
				metrics.RecordComponentState(c.Name(), h.State.String(), allStates)
				metrics.RecordHeartbeatAge(c.Name(), 0)
			}
		}
	}
}

// persistenceLoop writes a SystemHealth + metrics snapshot through the
// injected SnapshotWriter every MetricsPersistenceInterval
// (metrics_persistence_interval), persisted via atomic tmp-file-rename in
// internal/persistence.
func (e *Engine) persistenceLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.MetricsPersistenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := e.Status()
			if err := e.snapshot.WriteSnapshot(ctx, "system", "system_status", status); err != nil && e.log != nil {
				e.log.WithError(err).Warn("coordinator: failed to persist system_status snapshot")
			}
		}
	}
}
