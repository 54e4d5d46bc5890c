package recovery

import (
	"context"
	"time"
)

// Hooks bundles the side-effecting callbacks the default action catalogue
// invokes; callers supply concrete implementations (broker reconnect,
// process restart, emergency position close, etc.) since those are outside
// this package's scope (Non-goals: brokerage protocol details).
type Hooks struct {
	ReconnectBroker         func(ctx context.Context) error
	FreeMemory              func(ctx context.Context) error
	RestoreNetwork          func(ctx context.Context) error
	RestartProcess          func(ctx context.Context) error
	EmergencyClosePositions func(ctx context.Context) error
	DiskCleanup             func(ctx context.Context) error
}

// DefaultCatalogue returns the default recovery action table, adapted from
// original_source/01-CORE/emergency/auto_recovery_system.py's catalogue.
func DefaultCatalogue(h Hooks) []*Action {
	return []*Action{
		{
			ID:           "reconnect_broker",
			Name:         "Reconnect broker",
			Severity:     Soft,
			FailureKinds: kinds(BrokerConnectionLost),
			MaxAttempts:  3,
			Cooldown:     30 * time.Second,
			Timeout:      15 * time.Second,
			Run:          noopIfNil(h.ReconnectBroker),
		},
		{
			ID:           "free_memory",
			Name:         "Free memory",
			Severity:     Soft,
			FailureKinds: kinds(HighMemoryUsage),
			MaxAttempts:  3,
			Cooldown:     time.Minute,
			Timeout:      10 * time.Second,
			Run:          noopIfNil(h.FreeMemory),
		},
		{
			ID:           "disk_cleanup",
			Name:         "Disk cleanup",
			Severity:     Soft,
			FailureKinds: kinds(DiskFull),
			MaxAttempts:  3,
			Cooldown:     5 * time.Minute,
			Timeout:      30 * time.Second,
			Run:          noopIfNil(h.DiskCleanup),
		},
		{
			ID:           "restore_network",
			Name:         "Restore network",
			Severity:     Medium,
			FailureKinds: kinds(InternetDisconnected),
			MaxAttempts:  3,
			Cooldown:     time.Minute,
			Timeout:      20 * time.Second,
			Run:          noopIfNil(h.RestoreNetwork),
		},
		{
			ID:            "restart_process",
			Name:          "Restart process",
			Severity:      Medium,
			FailureKinds:  kinds(SystemFreeze, TradingEngineStuck, DatabaseError),
			MaxAttempts:   2,
			Cooldown:      5 * time.Minute,
			Timeout:       60 * time.Second,
			Prerequisites: []string{"restore_network"},
			Run:           noopIfNil(h.RestartProcess),
		},
		{
			ID:           "emergency_close_positions",
			Name:         "Emergency close positions",
			Severity:     Hard,
			FailureKinds: kinds(LowMarginLevel),
			MaxAttempts:  1,
			Cooldown:     0,
			Timeout:      10 * time.Second,
			Run:          noopIfNil(h.EmergencyClosePositions),
		},
	}
}

func kinds(ks ...FailureKind) map[FailureKind]bool {
	m := make(map[FailureKind]bool, len(ks))
	for _, k := range ks {
		m[k] = true
	}
	return m
}

func noopIfNil(fn func(ctx context.Context) error) func(ctx context.Context) error {
	if fn != nil {
		return fn
	}
	return func(ctx context.Context) error { return nil }
}
