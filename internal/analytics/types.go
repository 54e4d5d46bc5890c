// Package analytics implements the pipeline core: a bounded, priority-aware
// event bus plus the confluence, market-structure, signal-synthesis and
// pattern-learning stages that ride on top of it.
package analytics

import "time"

// EventKind enumerates the analytics event taxonomy.
type EventKind string

const (
	EventPatternDetected   EventKind = "pattern_detected"
	EventConfluenceUpdated EventKind = "confluence_updated"
	EventSignalGenerated   EventKind = "signal_generated"
	EventTradeOutcome      EventKind = "trade_outcome"
	EventPerformanceUpdate EventKind = "performance_update"
	EventLearningInsight   EventKind = "learning_insight"
	EventStructureChange   EventKind = "structure_change"
	EventSystemStatus      EventKind = "system_status"
)

// Event is one item on the analytics bus.
// Priority ranges 1-10; Priority >= HighPriorityThreshold bypasses the queue.
type Event struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Component string         `json:"component"`
	Priority  int            `json:"priority"`
	Payload   map[string]any `json:"payload,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
}

// HighPriorityThreshold is the priority at and above which an event is
// dispatched synchronously on Publish instead of being queued.
const HighPriorityThreshold = 8

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PatternConfluence is one scored ICT pattern contributing to a
// ConfluenceAnalysis.
type PatternConfluence struct {
	PatternKind string  `json:"pattern_kind"`
	Strength    float64 `json:"strength"`
	Aligned     bool    `json:"aligned"`
}

// MarketBias classifies directional market bias.
type MarketBias string

const (
	BiasBullish MarketBias = "bullish"
	BiasBearish MarketBias = "bearish"
	BiasNeutral MarketBias = "neutral"
)

// ConfluenceAnalysis is the confluence engine's output.
type ConfluenceAnalysis struct {
	ID                 string              `json:"id"`
	Symbol             string              `json:"symbol"`
	Timeframe          string              `json:"timeframe"`
	OverallStrength    float64             `json:"overall_strength"`
	PatternConfluences []PatternConfluence `json:"pattern_confluences"`
	MarketBias         MarketBias          `json:"market_bias"`
	Timestamp          time.Time           `json:"timestamp"`
}

// StructurePointKind classifies a swing point relative to its predecessor
// of the same type.
type StructurePointKind string

const (
	HigherHigh StructurePointKind = "HH"
	HigherLow  StructurePointKind = "HL"
	LowerHigh  StructurePointKind = "LH"
	LowerLow   StructurePointKind = "LL"
	EqualHigh  StructurePointKind = "EQH"
	EqualLow   StructurePointKind = "EQL"
)

// StructurePoint is one classified swing point.
type StructurePoint struct {
	Kind  StructurePointKind `json:"kind"`
	Index int                `json:"index"`
	Price float64            `json:"price"`
	Time  time.Time          `json:"time"`
}

// TrendDirection is the structure engine's trend classification.
type TrendDirection string

const (
	TrendBullish       TrendDirection = "bullish"
	TrendBearish       TrendDirection = "bearish"
	TrendSideways      TrendDirection = "sideways"
	TrendTransitioning TrendDirection = "transitioning"
)

// MarketPhase is the structure engine's phase classification.
type MarketPhase string

const (
	PhaseAccumulation MarketPhase = "accumulation"
	PhaseManipulation MarketPhase = "manipulation"
	PhaseDistribution MarketPhase = "distribution"
	PhaseRebalance    MarketPhase = "rebalance"
	PhaseUnknown      MarketPhase = "unknown"
)

// SRSide distinguishes a support from a resistance level.
type SRSide string

const (
	Support    SRSide = "support"
	Resistance SRSide = "resistance"
)

// SRLevel is a clustered support/resistance level.
type SRLevel struct {
	Side     SRSide  `json:"side"`
	Price    float64 `json:"price"`
	Touches  int     `json:"touches"`
	Strength float64 `json:"strength"`
}

// KeyLevel is the nearest S/R level to the current close.
type KeyLevel struct {
	Side              SRSide  `json:"side"`
	Price             float64 `json:"price"`
	ExpectedDirection string  `json:"expected_direction"`
}

// StructureAnalysis is the market-structure engine's output.
type StructureAnalysis struct {
	ID               string           `json:"id"`
	Symbol           string           `json:"symbol"`
	Timeframe        string           `json:"timeframe"`
	CurrentPhase     MarketPhase      `json:"current_phase"`
	TrendDirection   TrendDirection   `json:"trend_direction"`
	StructurePoints  []StructurePoint `json:"structure_points"`
	SupportLevels    []SRLevel        `json:"support_levels"`
	ResistanceLevels []SRLevel        `json:"resistance_levels"`
	RecentBreaks     []StructurePoint `json:"recent_breaks,omitempty"`
	PhaseConfidence  float64          `json:"phase_confidence"`
	TrendStrength    float64          `json:"trend_strength"`
	NextKeyLevel     *KeyLevel        `json:"next_key_level,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
}

// TradeAction is the primary signal the synthesizer may emit.
type TradeAction string

const (
	ActionBuy   TradeAction = "buy"
	ActionSell  TradeAction = "sell"
	ActionWait  TradeAction = "wait"
	ActionAvoid TradeAction = "avoid"
)

// SetupQuality grades a TradeSetup.
type SetupQuality string

const (
	QualityA SetupQuality = "A"
	QualityB SetupQuality = "B"
	QualityC SetupQuality = "C"
)

// TradeSetup is the signal synthesizer's output.
type TradeSetup struct {
	ID            string       `json:"id"`
	Symbol        string       `json:"symbol"`
	PrimarySignal TradeAction  `json:"primary_signal"`
	SetupQuality  SetupQuality `json:"setup_quality"`
	Entry         float64      `json:"entry"`
	StopLoss      float64      `json:"stop_loss"`
	TakeProfit    float64      `json:"take_profit"`
	RewardRisk    float64      `json:"reward_risk"`
	PatternKind   string       `json:"pattern_kind"`
	Timestamp     time.Time    `json:"timestamp"`
}

// TradeSignal is the externally emitted, risk-gate-approved trading signal.
type TradeSignal struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Action      TradeAction `json:"action"`
	Entry       float64     `json:"entry"`
	StopLoss    float64     `json:"stop_loss"`
	TakeProfit  float64     `json:"take_profit"`
	Confidence  float64     `json:"confidence"`
	PatternKind string      `json:"pattern_kind"`
	Session     string      `json:"session"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PatternOutcome is the realized result of a pattern detection, set exactly
// once.
type PatternOutcome string

const (
	OutcomeWin       PatternOutcome = "win"
	OutcomeLoss      PatternOutcome = "loss"
	OutcomeBreakEven PatternOutcome = "break_even"
)

// PatternRecord is one pattern-learning detection snapshot.
type PatternRecord struct {
	ID                  string          `json:"id"`
	PatternKind         string          `json:"pattern_kind"`
	Symbol              string          `json:"symbol"`
	Timeframe           string          `json:"timeframe"`
	DetectedAt          time.Time       `json:"detected_at"`
	Strength            float64         `json:"strength"`
	ConfluenceScore     float64         `json:"confluence_score"`
	MarketContext       MarketContext   `json:"market_context"`
	PredictedOutcome    PatternOutcome  `json:"predicted_outcome"`
	PredictedConfidence float64         `json:"predicted_confidence"`
	ActualOutcome       *PatternOutcome `json:"actual_outcome,omitempty"`
	ActualProfitR       *float64        `json:"actual_profit_r,omitempty"`
	OutcomeAt           *time.Time      `json:"outcome_at,omitempty"`
}

// PatternPerformance is the rolling performance aggregate per pattern_kind.
type PatternPerformance struct {
	PatternKind     string  `json:"pattern_kind"`
	Occurrences     int     `json:"occurrences"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	TotalProfitR    float64 `json:"total_profit_r"`
	TotalLossR      float64 `json:"total_loss_r"`
	WinRate         float64 `json:"win_rate"`
	ProfitFactor    float64 `json:"profit_factor"`
	Expectancy      float64 `json:"expectancy"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Killzone classifies the active trading session.
type Killzone string

const (
	KillzoneAsian   Killzone = "asian"
	KillzoneLondon  Killzone = "london"
	KillzoneNewYork Killzone = "new_york"
	KillzoneOverlap Killzone = "overlap"
	KillzoneOff     Killzone = "off"
)

// SwingPoints is the swing-point half of MarketContext.
type SwingPoints struct {
	Highs    []StructurePoint `json:"highs"`
	Lows     []StructurePoint `json:"lows"`
	LastHigh *StructurePoint  `json:"last_high,omitempty"`
	LastLow  *StructurePoint  `json:"last_low,omitempty"`
}

// MarketContext is the shared directional/session snapshot.
type MarketContext struct {
	Bias            MarketBias            `json:"bias"`
	Phase           MarketPhase           `json:"phase"`
	TimeframeBiases map[string]MarketBias `json:"timeframe_biases,omitempty"`
	SwingPoints     SwingPoints           `json:"swing_points"`
	Killzone        Killzone              `json:"killzone"`
	SessionStats    map[string]float64    `json:"session_stats,omitempty"`
}
