package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// LifecycleManager drives ordered component start/stop. Grounded on
// system/core/lifecycle.go: Start walks components in priority order and
// rolls back (stops what already started, in reverse) on first failure or
// context cancellation; Stop always walks in reverse priority order and
// logs-and-continues on error rather than aborting shutdown.
type LifecycleManager struct {
	registry *Registry
	health   *HealthMonitor
	log      *logrus.Entry
	timeout  time.Duration
}

// NewLifecycleManager builds a manager bound to registry/health, using
// perComponentTimeout for each component's Initialize/Start/Stop call
// (component_startup_timeout_seconds default 120s).
func NewLifecycleManager(registry *Registry, health *HealthMonitor, log *logrus.Entry, perComponentTimeout time.Duration) *LifecycleManager {
	return &LifecycleManager{registry: registry, health: health, log: log, timeout: perComponentTimeout}
}

// Start initializes and starts every registered component in ascending
// priority order. On failure it stops the components that already started,
// in reverse order, then returns the original error.
func (l *LifecycleManager) Start(ctx context.Context) error {
	ordered := l.registry.Ordered()
	started := make([]Component, 0, len(ordered))

	for _, c := range ordered {
		select {
		case <-ctx.Done():
			l.stopReverse(context.Background(), started)
			return ctx.Err()
		default:
		}

		l.health.Set(ComponentHealth{Name: c.Name(), Priority: c.Priority(), State: ComponentInitializing})

		cctx, cancel := context.WithTimeout(ctx, l.timeout)
		err := c.Initialize(cctx)
		cancel()
		if err != nil {
			l.health.MarkError(c.Name(), err)
			l.stopReverse(context.Background(), started)
			return fmt.Errorf("coordinator: initialize %q: %w", c.Name(), err)
		}

		sctx, scancel := context.WithTimeout(ctx, l.timeout)
		err = c.Start(sctx)
		scancel()
		if err != nil {
			l.health.MarkError(c.Name(), err)
			l.stopReverse(context.Background(), started)
			return fmt.Errorf("coordinator: start %q: %w", c.Name(), err)
		}

		l.health.Set(ComponentHealth{
			Name:          c.Name(),
			Priority:      c.Priority(),
			State:         ComponentRunning,
			LastHeartbeat: time.Now().UTC(),
		})
		started = append(started, c)
	}

	return nil
}

// Stop stops every registered component in descending priority order,
// logging and continuing on error so one failing component never blocks
// shutdown of the rest.
func (l *LifecycleManager) Stop(ctx context.Context) {
	l.stopReverse(ctx, l.registry.Ordered())
}

func (l *LifecycleManager) stopReverse(ctx context.Context, components []Component) {
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		cctx, cancel := context.WithTimeout(ctx, l.timeout)
		err := c.Stop(cctx)
		cancel()
		if err != nil {
			if l.log != nil {
				l.log.WithError(err).WithField("component", c.Name()).Warn("coordinator: component stop returned error, continuing shutdown")
			}
			l.health.MarkError(c.Name(), err)
			continue
		}
		l.health.Set(ComponentHealth{Name: c.Name(), Priority: c.Priority(), State: ComponentOffline})
	}
}
