package analytics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// SwingWindow is the number of neighbouring candles on each side required to
// confirm a swing point (step 1, default k=2).
const SwingWindow = 2

// TrendLookback is the number of most recent swings considered for trend
// direction (step 3, default N=6).
const TrendLookback = 6

// TrendDominanceRatio is the bullish/bearish vote ratio required to call a
// clear trend rather than Sideways/Transitioning.
const TrendDominanceRatio = 1.5

// EqualLevelBand is the relative price band within which two swings of the
// same type are considered equal (EQH/EQL) rather than higher/lower, and the
// band used for S/R clustering (steps 2 and 5, both "0.1% band").
const EqualLevelBand = 0.001

// SRMinTouches is the minimum touch count for a cluster to become an S/R
// level.
const SRMinTouches = 2

// SRMaxLevelsPerSide caps retained support/resistance levels per side
// (step 5, "retain top 5 of each").
const SRMaxLevelsPerSide = 5

// StructureEngine is the second pipeline stage.
type StructureEngine struct {
	keyLocksMu sync.Mutex
	keyLocks   map[string]*sync.Mutex
}

// NewStructureEngine builds a StructureEngine.
func NewStructureEngine() *StructureEngine {
	return &StructureEngine{keyLocks: make(map[string]*sync.Mutex)}
}

func (e *StructureEngine) lockFor(key string) *sync.Mutex {
	e.keyLocksMu.Lock()
	defer e.keyLocksMu.Unlock()
	l, ok := e.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		e.keyLocks[key] = l
	}
	return l
}

// Analyze runs the full structure pipeline: identifyStructurePoints ->
// determineTrendDirection -> detectMarketPhase -> identifySRLevels ->
// detectStructureBreaks -> calculateTrendStrength -> predictNextMove, from
// market_structure_intelligence.py's function chain. Serialized per
// (symbol, timeframe).
func (e *StructureEngine) Analyze(symbol, timeframe string, candles []Candle) StructureAnalysis {
	lock := e.lockFor(cacheKey(symbol, timeframe))
	lock.Lock()
	defer lock.Unlock()

	analysis := StructureAnalysis{
		ID:        confluenceID(symbol, timeframe, candles),
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: time.Now().UTC(),
	}

	points := identifyStructurePoints(candles)
	analysis.StructurePoints = points
	analysis.TrendDirection = determineTrendDirection(points)
	analysis.CurrentPhase, analysis.PhaseConfidence = detectMarketPhase(candles, points)

	support, resistance := identifySRLevels(points)
	analysis.SupportLevels = support
	analysis.ResistanceLevels = resistance

	analysis.RecentBreaks = detectStructureBreaks(points)
	analysis.TrendStrength = calculateTrendStrength(points, analysis.TrendDirection)

	if len(candles) > 0 {
		analysis.NextKeyLevel = predictNextMove(candles[len(candles)-1].Close, support, resistance)
	}

	return analysis
}

// identifyStructurePoints finds swing highs/lows (raw, unclassified) and
// classifies each against the previous swing of the same type.
func identifyStructurePoints(candles []Candle) []StructurePoint {
	k := SwingWindow
	if len(candles) < 2*k+1 {
		return nil
	}

	type rawSwing struct {
		index  int
		isHigh bool
		price  float64
		time   time.Time
	}

	var raw []rawSwing
	for i := k; i < len(candles)-k; i++ {
		isSwingHigh := true
		isSwingLow := true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isSwingHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isSwingLow = false
			}
		}
		if isSwingHigh {
			raw = append(raw, rawSwing{index: i, isHigh: true, price: candles[i].High, time: candles[i].Time})
		}
		if isSwingLow {
			raw = append(raw, rawSwing{index: i, isHigh: false, price: candles[i].Low, time: candles[i].Time})
		}
	}

	var points []StructurePoint
	var lastHighPrice, lastLowPrice float64
	haveLastHigh, haveLastLow := false, false

	for _, s := range raw {
		if s.isHigh {
			kind := classifySwing(s.price, lastHighPrice, haveLastHigh, HigherHigh, LowerHigh, EqualHigh)
			points = append(points, StructurePoint{Kind: kind, Index: s.index, Price: s.price, Time: s.time})
			lastHighPrice = s.price
			haveLastHigh = true
		} else {
			kind := classifySwing(s.price, lastLowPrice, haveLastLow, HigherLow, LowerLow, EqualLow)
			points = append(points, StructurePoint{Kind: kind, Index: s.index, Price: s.price, Time: s.time})
			lastLowPrice = s.price
			haveLastLow = true
		}
	}

	return points
}

func classifySwing(price, prev float64, havePrev bool, higher, lower, equal StructurePointKind) StructurePointKind {
	if !havePrev {
		return higher
	}
	if withinBand(price, prev, EqualLevelBand) {
		return equal
	}
	if price > prev {
		return higher
	}
	return lower
}

func withinBand(a, b, band float64) bool {
	if b == 0 {
		return a == 0
	}
	return math.Abs(a-b)/math.Abs(b) <= band
}

// determineTrendDirection compares bullish (HH+HL) vs bearish (LH+LL) votes
// across the last TrendLookback swings.
func determineTrendDirection(points []StructurePoint) TrendDirection {
	if len(points) == 0 {
		return TrendSideways
	}
	window := points
	if len(window) > TrendLookback {
		window = window[len(window)-TrendLookback:]
	}

	var bullish, bearish int
	for _, p := range window {
		switch p.Kind {
		case HigherHigh, HigherLow:
			bullish++
		case LowerHigh, LowerLow:
			bearish++
		}
	}

	switch {
	case bullish == 0 && bearish == 0:
		return TrendSideways
	case float64(bullish) >= float64(bearish)*TrendDominanceRatio:
		return TrendBullish
	case float64(bearish) >= float64(bullish)*TrendDominanceRatio:
		return TrendBearish
	case bullish == bearish:
		return TrendSideways
	default:
		return TrendTransitioning
	}
}

// detectMarketPhase classifies Accumulation/Manipulation/Distribution/
// Rebalance/Unknown from recent range-vs-average and swing density.
func detectMarketPhase(candles []Candle, points []StructurePoint) (MarketPhase, float64) {
	if len(candles) < 10 {
		return PhaseUnknown, 0
	}

	recent := candles[len(candles)-10:]
	recentRange := rangeOf(recent)
	avgRange := averageRange(candles)

	swingDensity := 0.0
	if len(recent) > 0 {
		swingDensity = float64(countInWindow(points, len(candles)-10)) / float64(len(recent))
	}

	var phase MarketPhase
	var confidence float64
	switch {
	case avgRange == 0:
		phase, confidence = PhaseUnknown, 0
	case recentRange < avgRange*0.6 && swingDensity < 0.3:
		phase, confidence = PhaseAccumulation, 70
	case recentRange > avgRange*1.8:
		phase, confidence = PhaseManipulation, 65
	case recentRange > avgRange*1.2 && swingDensity >= 0.3:
		phase, confidence = PhaseDistribution, 60
	case recentRange >= avgRange*0.6 && recentRange <= avgRange*1.2:
		phase, confidence = PhaseRebalance, 55
	default:
		phase, confidence = PhaseUnknown, 30
	}

	return phase, confidence
}

func rangeOf(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	hi, lo := candles[0].High, candles[0].Low
	for _, c := range candles {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	return hi - lo
}

func averageRange(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var total float64
	for _, c := range candles {
		total += c.High - c.Low
	}
	return total / float64(len(candles))
}

func countInWindow(points []StructurePoint, fromIndex int) int {
	count := 0
	for _, p := range points {
		if p.Index >= fromIndex {
			count++
		}
	}
	return count
}

// identifySRLevels clusters swing highs/lows into support/resistance levels
// with >= SRMinTouches within EqualLevelBand, strength = min(100,
// touches*25), retaining the top SRMaxLevelsPerSide of each.
func identifySRLevels(points []StructurePoint) (support, resistance []SRLevel) {
	var highs, lows []float64
	for _, p := range points {
		switch p.Kind {
		case HigherHigh, LowerHigh, EqualHigh:
			highs = append(highs, p.Price)
		case HigherLow, LowerLow, EqualLow:
			lows = append(lows, p.Price)
		}
	}

	resistance = clusterLevels(highs, Resistance)
	support = clusterLevels(lows, Support)
	return support, resistance
}

func clusterLevels(prices []float64, side SRSide) []SRLevel {
	if len(prices) == 0 {
		return nil
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	var clusters [][]float64
	current := []float64{sorted[0]}
	for _, p := range sorted[1:] {
		if withinBand(p, current[len(current)-1], EqualLevelBand) {
			current = append(current, p)
		} else {
			clusters = append(clusters, current)
			current = []float64{p}
		}
	}
	clusters = append(clusters, current)

	var levels []SRLevel
	for _, cluster := range clusters {
		touches := len(cluster)
		if touches < SRMinTouches {
			continue
		}
		var sum float64
		for _, p := range cluster {
			sum += p
		}
		strength := math.Min(100, float64(touches)*25)
		levels = append(levels, SRLevel{Side: side, Price: sum / float64(len(cluster)), Touches: touches, Strength: strength})
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].Strength > levels[j].Strength })
	if len(levels) > SRMaxLevelsPerSide {
		levels = levels[:SRMaxLevelsPerSide]
	}
	return levels
}

// detectStructureBreaks returns every HH and LL point, i.e. swings that went
// beyond the previous swing of the same type by more than the equal-level
// band, as a coarse proxy for a break-of-structure event. The first swing
// high of a series has no predecessor, is classified HH, and is included.
func detectStructureBreaks(points []StructurePoint) []StructurePoint {
	var breaks []StructurePoint
	for _, p := range points {
		if p.Kind == HigherHigh || p.Kind == LowerLow {
			breaks = append(breaks, p)
		}
	}
	return breaks
}

// calculateTrendStrength scores 0-100 from the vote margin behind the
// determined trend direction.
func calculateTrendStrength(points []StructurePoint, trend TrendDirection) float64 {
	if len(points) == 0 || trend == TrendSideways {
		return 0
	}
	window := points
	if len(window) > TrendLookback {
		window = window[len(window)-TrendLookback:]
	}
	var bullish, bearish int
	for _, p := range window {
		switch p.Kind {
		case HigherHigh, HigherLow:
			bullish++
		case LowerHigh, LowerLow:
			bearish++
		}
	}
	total := bullish + bearish
	if total == 0 {
		return 0
	}
	switch trend {
	case TrendBullish:
		return math.Min(100, float64(bullish)/float64(total)*100)
	case TrendBearish:
		return math.Min(100, float64(bearish)/float64(total)*100)
	default:
		return math.Min(100, math.Abs(float64(bullish-bearish))/float64(total)*100)
	}
}

// predictNextMove finds the nearest support/resistance to the current close
// and derives the expected direction from which side it sits on (spec
// §4.4.2 step 6).
func predictNextMove(close float64, support, resistance []SRLevel) *KeyLevel {
	var nearest *SRLevel
	var nearestDist float64

	consider := func(levels []SRLevel) {
		for i := range levels {
			d := math.Abs(levels[i].Price - close)
			if nearest == nil || d < nearestDist {
				nearest = &levels[i]
				nearestDist = d
			}
		}
	}
	consider(support)
	consider(resistance)

	if nearest == nil {
		return nil
	}

	direction := "range"
	if nearest.Side == Resistance && nearest.Price > close {
		direction = "up"
	} else if nearest.Side == Support && nearest.Price < close {
		direction = "down"
	}

	return &KeyLevel{Side: nearest.Side, Price: nearest.Price, ExpectedDirection: direction}
}
