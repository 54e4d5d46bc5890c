// Package risk implements the pre-execution risk gate: a pure filter applied
// to every synthesized Buy/Sell signal before it reaches execution.
package risk

import "time"

// RiskLevel grades a gate decision.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskRejected RiskLevel = "rejected"
)

// Config holds the gate's parametric thresholds (the `risk` config block).
type Config struct {
	MaxRiskPerTradePct   float64
	MaxPositions         int
	MaxVolumePerSymbol   map[string]float64
	MaxDrawdownPct       float64
	DailyLossCap         float64
	WeeklyLossCap        float64
	MonthlyLossCap       float64
	CorrelationThreshold float64
}

// DefaultConfig returns a baseline Config: 1.5% per-trade risk, 3 positions,
// 20% max drawdown, 0.7 correlation threshold, and daily/weekly/monthly loss
// caps disabled (zero). It differs from the process defaults in
// internal/config, which main.go passes to NewGate.
func DefaultConfig() Config {
	return Config{
		MaxRiskPerTradePct:   1.5,
		MaxPositions:         3,
		MaxVolumePerSymbol:   map[string]float64{},
		MaxDrawdownPct:       20,
		CorrelationThreshold: 0.7,
	}
}

// OpenPosition is the subset of an open position the gate needs.
type OpenPosition struct {
	Symbol string
	Volume float64
}

// AccountState is the subset of account/equity state the gate needs.
type AccountState struct {
	Equity        float64
	PeakEquity    float64
	DailyLoss     float64
	WeeklyLoss    float64
	MonthlyLoss   float64
	OpenPositions []OpenPosition
}

// SignalRequest is the candidate trade the gate evaluates.
type SignalRequest struct {
	Symbol      string
	Volume      float64
	RiskAmount  float64 // account-currency amount at risk if SL is hit
	RequestedAt time.Time
}

// Decision is the gate's verdict: approved, reason, max_safe_volume and
// risk_level.
type Decision struct {
	Approved      bool
	Reason        string
	MaxSafeVolume float64
	RiskLevel     RiskLevel
}

// CorrelationOracle reports the correlation coefficient in [-1,1] between
// two symbols. The oracle implementation is pluggable.
type CorrelationOracle interface {
	Correlation(symbolA, symbolB string) float64
}

// Gate evaluates SignalRequests against Config and AccountState.
type Gate struct {
	cfg         Config
	correlation CorrelationOracle
}

// NewGate builds a Gate. A nil correlation oracle defaults to
// ZeroCorrelationOracle (no position is ever rejected on correlation
// grounds).
func NewGate(cfg Config, correlation CorrelationOracle) *Gate {
	if correlation == nil {
		correlation = ZeroCorrelationOracle{}
	}
	return &Gate{cfg: cfg, correlation: correlation}
}

// Evaluate runs the gate's ordered checks: per-trade risk% -> per-symbol
// volume cap -> concurrent-position cap -> correlation cap -> drawdown cap
// -> daily/weekly/monthly loss caps.
func (g *Gate) Evaluate(req SignalRequest, account AccountState) Decision {
	if account.Equity <= 0 {
		return reject("account equity must be positive")
	}

	riskPct := 0.0
	if account.Equity > 0 {
		riskPct = req.RiskAmount / account.Equity * 100
	}
	if riskPct > g.cfg.MaxRiskPerTradePct {
		safe := req.Volume * (g.cfg.MaxRiskPerTradePct / riskPct)
		return Decision{Approved: false, Reason: "per-trade risk exceeds max_risk_per_trade_pct", MaxSafeVolume: safe, RiskLevel: RiskRejected}
	}

	if maxVol, ok := g.cfg.MaxVolumePerSymbol[req.Symbol]; ok && req.Volume > maxVol {
		return Decision{Approved: false, Reason: "volume exceeds per-symbol cap", MaxSafeVolume: maxVol, RiskLevel: RiskRejected}
	}

	if len(account.OpenPositions) >= g.cfg.MaxPositions {
		return reject("concurrent position cap reached")
	}

	for _, pos := range account.OpenPositions {
		if pos.Symbol == req.Symbol {
			continue
		}
		if corr := g.correlation.Correlation(req.Symbol, pos.Symbol); corr >= g.cfg.CorrelationThreshold {
			return reject("correlation with open position exceeds threshold")
		}
	}

	if account.PeakEquity > 0 {
		drawdownPct := (account.PeakEquity - account.Equity) / account.PeakEquity * 100
		if drawdownPct > g.cfg.MaxDrawdownPct {
			return reject("current drawdown exceeds max_drawdown_pct")
		}
	}

	if g.cfg.DailyLossCap > 0 && account.DailyLoss >= g.cfg.DailyLossCap {
		return reject("daily loss cap reached")
	}
	if g.cfg.WeeklyLossCap > 0 && account.WeeklyLoss >= g.cfg.WeeklyLossCap {
		return reject("weekly loss cap reached")
	}
	if g.cfg.MonthlyLossCap > 0 && account.MonthlyLoss >= g.cfg.MonthlyLossCap {
		return reject("monthly loss cap reached")
	}

	return Decision{Approved: true, MaxSafeVolume: req.Volume, RiskLevel: levelFor(riskPct, g.cfg.MaxRiskPerTradePct)}
}

func reject(reason string) Decision {
	return Decision{Approved: false, Reason: reason, RiskLevel: RiskRejected}
}

func levelFor(riskPct, maxRiskPct float64) RiskLevel {
	if maxRiskPct == 0 {
		return RiskModerate
	}
	ratio := riskPct / maxRiskPct
	switch {
	case ratio < 0.5:
		return RiskLow
	case ratio < 0.85:
		return RiskModerate
	default:
		return RiskHigh
	}
}
