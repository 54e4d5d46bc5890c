package analytics

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PatternScorer abstracts the ICT pattern-recognition heuristic so the
// confluence engine stays agnostic of how FVG/OrderBlock/BOS/LiquiditySweep
// presence is actually detected ("scoring heuristic is
// abstracted behind a PatternScorer capability").
type PatternScorer interface {
	Score(candles []Candle) []PatternConfluence
}

// cachedConfluence pairs an analysis with the time it was computed, since
// golang-lru/v2 evicts by size, not time; TTL is enforced explicitly on read.
type cachedConfluence struct {
	analysis   ConfluenceAnalysis
	computedAt time.Time
}

// ConfluenceEngine is the first pipeline stage.
type ConfluenceEngine struct {
	scorer PatternScorer
	ttl    time.Duration

	cache *lru.Cache[string, cachedConfluence]

	statsMu       sync.Mutex
	totalAnalyses int64
	totalTime     time.Duration

	// per-key serialization: no two analyses for the same (symbol,timeframe)
	// run concurrently (ordering guarantees).
	keyLocksMu sync.Mutex
	keyLocks   map[string]*sync.Mutex
}

// NewConfluenceEngine builds a ConfluenceEngine with a bounded TTL cache of
// the given size and time-to-live ("analyses are short-lived
// (~5 min)").
func NewConfluenceEngine(scorer PatternScorer, cacheSize int, ttl time.Duration) *ConfluenceEngine {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cache, _ := lru.New[string, cachedConfluence](cacheSize)
	return &ConfluenceEngine{
		scorer:   scorer,
		ttl:      ttl,
		cache:    cache,
		keyLocks: make(map[string]*sync.Mutex),
	}
}

func cacheKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

func (e *ConfluenceEngine) lockFor(key string) *sync.Mutex {
	e.keyLocksMu.Lock()
	defer e.keyLocksMu.Unlock()
	l, ok := e.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		e.keyLocks[key] = l
	}
	return l
}

// Analyze scores a candle window for pattern confluence, serving a cached
// result when one is younger than the configured TTL.
func (e *ConfluenceEngine) Analyze(symbol, timeframe string, candles []Candle) ConfluenceAnalysis {
	key := cacheKey(symbol, timeframe)
	lock := e.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if cached, ok := e.cache.Get(key); ok {
		if time.Since(cached.computedAt) < e.ttl {
			return cached.analysis
		}
		e.cache.Remove(key)
	}

	start := time.Now()
	analysis := e.compute(symbol, timeframe, candles)
	elapsed := time.Since(start)

	e.statsMu.Lock()
	e.totalAnalyses++
	e.totalTime += elapsed
	e.statsMu.Unlock()

	e.cache.Add(key, cachedConfluence{analysis: analysis, computedAt: time.Now()})
	return analysis
}

func (e *ConfluenceEngine) compute(symbol, timeframe string, candles []Candle) ConfluenceAnalysis {
	analysis := ConfluenceAnalysis{
		ID:        confluenceID(symbol, timeframe, candles),
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: time.Now().UTC(),
	}

	if len(candles) == 0 || e.scorer == nil {
		analysis.MarketBias = BiasNeutral
		return analysis
	}

	confluences := e.scorer.Score(candles)
	analysis.PatternConfluences = confluences

	var aligned, total float64
	var bullishVotes, bearishVotes int
	for _, c := range confluences {
		total += c.Strength
		if c.Aligned {
			aligned += c.Strength
		}
		last := candles[len(candles)-1]
		if last.Close >= last.Open {
			bullishVotes++
		} else {
			bearishVotes++
		}
	}
	if total > 0 {
		analysis.OverallStrength = (aligned / total) * 100
	}

	switch {
	case bullishVotes > bearishVotes:
		analysis.MarketBias = BiasBullish
	case bearishVotes > bullishVotes:
		analysis.MarketBias = BiasBearish
	default:
		analysis.MarketBias = BiasNeutral
	}

	return analysis
}

// SessionStats returns (total_analyses, avg_time) for the engine's lifetime
// ("Records session stats").
func (e *ConfluenceEngine) SessionStats() (int64, time.Duration) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	if e.totalAnalyses == 0 {
		return 0, 0
	}
	return e.totalAnalyses, e.totalTime / time.Duration(e.totalAnalyses)
}

func confluenceID(symbol, timeframe string, candles []Candle) string {
	var last time.Time
	if len(candles) > 0 {
		last = candles[len(candles)-1].Time
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%d", symbol, timeframe, last.UnixNano())))
	return fmt.Sprintf("%x", sum)[:16]
}
