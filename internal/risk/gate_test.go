package risk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateApprovesWithinLimits(t *testing.T) {
	gate := NewGate(DefaultConfig(), nil)
	decision := gate.Evaluate(
		SignalRequest{Symbol: "EURUSD", Volume: 0.1, RiskAmount: 50},
		AccountState{Equity: 10000, PeakEquity: 10000},
	)
	require.True(t, decision.Approved)
	require.Equal(t, RiskLow, decision.RiskLevel)
}

func TestGateRejectsExcessiveTradeRisk(t *testing.T) {
	gate := NewGate(DefaultConfig(), nil)
	decision := gate.Evaluate(
		SignalRequest{Symbol: "EURUSD", Volume: 1.0, RiskAmount: 500},
		AccountState{Equity: 10000, PeakEquity: 10000},
	)
	require.False(t, decision.Approved)
	require.Contains(t, decision.Reason, "max_risk_per_trade_pct")
	require.Greater(t, decision.MaxSafeVolume, 0.0)
}

func TestGateRejectsAtConcurrentPositionCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPositions = 2
	gate := NewGate(cfg, nil)
	decision := gate.Evaluate(
		SignalRequest{Symbol: "GBPUSD", Volume: 0.1, RiskAmount: 50},
		AccountState{Equity: 10000, PeakEquity: 10000, OpenPositions: []OpenPosition{
			{Symbol: "EURUSD", Volume: 0.1}, {Symbol: "USDJPY", Volume: 0.1},
		}},
	)
	require.False(t, decision.Approved)
	require.Contains(t, decision.Reason, "position cap")
}

func TestGateRejectsOnDrawdownCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDrawdownPct = 10
	gate := NewGate(cfg, nil)
	decision := gate.Evaluate(
		SignalRequest{Symbol: "EURUSD", Volume: 0.1, RiskAmount: 50},
		AccountState{Equity: 8500, PeakEquity: 10000},
	)
	require.False(t, decision.Approved)
	require.Contains(t, decision.Reason, "drawdown")
}

func TestGateRejectsOnCorrelationBreach(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CorrelationThreshold = 0.5
	gate := NewGate(cfg, SharedCurrencyOracle{})
	decision := gate.Evaluate(
		SignalRequest{Symbol: "EURUSD", Volume: 0.1, RiskAmount: 50},
		AccountState{Equity: 10000, PeakEquity: 10000, OpenPositions: []OpenPosition{
			{Symbol: "EURGBP", Volume: 0.1},
		}},
	)
	require.False(t, decision.Approved)
	require.Contains(t, decision.Reason, "correlation")
}

func TestZeroCorrelationOracleNeverRejects(t *testing.T) {
	gate := NewGate(DefaultConfig(), nil)
	decision := gate.Evaluate(
		SignalRequest{Symbol: "EURUSD", Volume: 0.1, RiskAmount: 50},
		AccountState{Equity: 10000, PeakEquity: 10000, OpenPositions: []OpenPosition{
			{Symbol: "EURGBP", Volume: 0.1},
		}},
	)
	require.True(t, decision.Approved)
}

func TestSharedCurrencyOracleCorrelation(t *testing.T) {
	o := SharedCurrencyOracle{}
	require.Equal(t, 1.0, o.Correlation("EURUSD", "EURUSD"))
	require.Equal(t, 0.6, o.Correlation("EURUSD", "EURGBP"))
	require.Equal(t, -1.0, o.Correlation("EURUSD", "USDEUR"))
	require.Equal(t, 0.0, o.Correlation("EURUSD", "GBPJPY"))
}
