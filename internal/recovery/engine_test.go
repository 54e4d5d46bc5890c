package recovery

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEngineDispatchesEligibleAction(t *testing.T) {
	var calls int32
	engine := NewEngine(Config{MonitoringInterval: 20 * time.Millisecond, MaxConcurrentRecoveries: 2, HistorySize: 10}, nil, nil)
	engine.RegisterAction(&Action{
		ID:           "reconnect_broker",
		Severity:     Soft,
		FailureKinds: kinds(BrokerConnectionLost),
		MaxAttempts:  3,
		Cooldown:     time.Hour,
		Timeout:      time.Second,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})
	engine.RegisterProbe(BrokerConnectionLost, func(ctx context.Context) bool { return true })

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, time.Second, 10*time.Millisecond)
	cancel()
	engine.Stop()
}

func TestEligibilityRespectsMaxAttemptsAndCooldown(t *testing.T) {
	engine := NewEngine(Config{MonitoringInterval: time.Hour, MaxConcurrentRecoveries: 2, HistorySize: 10}, nil, nil)
	action := &Action{
		ID:           "free_memory",
		Severity:     Soft,
		FailureKinds: kinds(HighMemoryUsage),
		MaxAttempts:  1,
		Cooldown:     time.Hour,
		Timeout:      time.Second,
		Run:          func(ctx context.Context) error { return nil },
	}
	engine.RegisterAction(action)

	engine.mu.Lock()
	eligible := engine.eligibleActionsLocked(HighMemoryUsage)
	engine.mu.Unlock()
	require.Len(t, eligible, 1)

	engine.dispatch(context.Background(), HighMemoryUsage)
	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return engine.attemptCounts[action.ID] == 1
	}, time.Second, 10*time.Millisecond)

	engine.mu.Lock()
	eligible = engine.eligibleActionsLocked(HighMemoryUsage)
	engine.mu.Unlock()
	require.Len(t, eligible, 0, "action should be ineligible after hitting MaxAttempts")
}

func TestCriticalFailureKindBypassSet(t *testing.T) {
	require.True(t, IsCritical(LowMarginLevel))
	require.True(t, IsCritical(SystemFreeze))
	require.False(t, IsCritical(HighCPUUsage))
}
