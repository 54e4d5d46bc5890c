package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	confluences []PatternConfluence
	calls       int
}

func (s *stubScorer) Score(candles []Candle) []PatternConfluence {
	s.calls++
	return s.confluences
}

func TestConfluenceEngineCachesWithinTTL(t *testing.T) {
	scorer := &stubScorer{confluences: []PatternConfluence{{PatternKind: "fvg", Strength: 80, Aligned: true}}}
	engine := NewConfluenceEngine(scorer, 16, time.Minute)

	candles := []Candle{{Time: time.Now(), Open: 1, High: 2, Low: 0.5, Close: 1.5}}

	first := engine.Analyze("EURUSD", "H1", candles)
	second := engine.Analyze("EURUSD", "H1", candles)

	require.Equal(t, 1, scorer.calls, "second Analyze within TTL must hit cache")
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, BiasBullish, first.MarketBias)
}

func TestConfluenceEngineRecomputesAfterTTL(t *testing.T) {
	scorer := &stubScorer{confluences: []PatternConfluence{{PatternKind: "fvg", Strength: 80, Aligned: true}}}
	engine := NewConfluenceEngine(scorer, 16, time.Millisecond)

	candles := []Candle{{Time: time.Now(), Open: 1, High: 2, Low: 0.5, Close: 1.5}}
	engine.Analyze("EURUSD", "H1", candles)
	time.Sleep(5 * time.Millisecond)
	engine.Analyze("EURUSD", "H1", candles)

	require.Equal(t, 2, scorer.calls)
}

func TestConfluenceEngineEmptyCandlesIsNeutral(t *testing.T) {
	engine := NewConfluenceEngine(&stubScorer{}, 16, time.Minute)
	analysis := engine.Analyze("EURUSD", "H1", nil)
	require.Equal(t, BiasNeutral, analysis.MarketBias)
}
