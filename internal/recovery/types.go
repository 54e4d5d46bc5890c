// Package recovery implements the Auto-Recovery Engine: failure detection
// and bounded recovery action orchestration. Grounded on
// infrastructure/resilience/circuit_breaker.go's
// cooldown/state-timer shape and
// original_source/01-CORE/emergency/auto_recovery_system.py for exact
// eligibility ordering, severity ordering and the critical-failure bypass
// set.
package recovery

import (
	"context"
	"time"
)

// FailureKind is the closed enum of detectable failure conditions.
type FailureKind string

const (
	BrokerConnectionLost FailureKind = "broker_connection_lost"
	InternetDisconnected FailureKind = "internet_disconnected"
	HighMemoryUsage      FailureKind = "high_memory_usage"
	HighCPUUsage         FailureKind = "high_cpu_usage"
	DiskFull             FailureKind = "disk_full"
	TradingEngineStuck   FailureKind = "trading_engine_stuck"
	MarketDataStale      FailureKind = "market_data_stale"
	OrderExecutionFailed FailureKind = "order_execution_failed"
	LowMarginLevel       FailureKind = "low_margin_level"
	SystemFreeze         FailureKind = "system_freeze"
	LoggingFailure       FailureKind = "logging_failure"
	DatabaseError        FailureKind = "database_error"
)

// criticalFailureKinds bypass normal dispatch ordering and trigger
// immediately (supplement, from auto_recovery_system.py).
var criticalFailureKinds = map[FailureKind]bool{
	LowMarginLevel:       true,
	InternetDisconnected: true,
	SystemFreeze:         true,
	TradingEngineStuck:   true,
}

// IsCritical reports whether kind is in the critical-bypass set.
func IsCritical(kind FailureKind) bool { return criticalFailureKinds[kind] }

// Severity orders recovery actions for dispatch ("Recovery action").
type Severity int

const (
	Soft Severity = iota
	Medium
	Hard
	Emergency
)

func (s Severity) String() string {
	switch s {
	case Soft:
		return "soft"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	case Emergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Action describes one recovery action.
type Action struct {
	ID            string
	Name          string
	Severity      Severity
	FailureKinds  map[FailureKind]bool
	MaxAttempts   int
	Cooldown      time.Duration
	Timeout       time.Duration
	Prerequisites []string
	Run           func(ctx context.Context) error
}

// Attempt is a single recorded dispatch of an action ("Recovery attempt").
type Attempt struct {
	ID         string
	ActionID   string
	Failure    FailureKind
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Error      string
}
