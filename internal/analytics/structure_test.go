package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func zigzagCandles(n int, base time.Time) []Candle {
	candles := make([]Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		swing := float64(i%10) - 5
		high := price + swing + 2
		low := price + swing - 2
		candles[i] = Candle{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Open:  price + swing,
			High:  high,
			Low:   low,
			Close: price + swing + 0.5,
		}
		price += 0.2
	}
	return candles
}

func TestStructureEngineIdentifiesSwingPoints(t *testing.T) {
	engine := NewStructureEngine()
	candles := zigzagCandles(60, time.Now())
	analysis := engine.Analyze("EURUSD", "H1", candles)
	require.NotEmpty(t, analysis.StructurePoints, "expected at least one swing point in a zigzag series")
}

func TestStructureEngineEmptyCandlesYieldsNeutral(t *testing.T) {
	engine := NewStructureEngine()
	analysis := engine.Analyze("EURUSD", "H1", nil)
	require.Empty(t, analysis.StructurePoints)
	require.Nil(t, analysis.NextKeyLevel)
}

func TestSRLevelStrengthFormula(t *testing.T) {
	levels := clusterLevels([]float64{1.1000, 1.1001, 1.1000, 1.0999}, Support)
	require.Len(t, levels, 1)
	require.Equal(t, 4, levels[0].Touches)
	require.Equal(t, 100.0, levels[0].Strength)
}

func TestTrendDirectionDominanceRule(t *testing.T) {
	bullish := []StructurePoint{
		{Kind: HigherHigh}, {Kind: HigherLow}, {Kind: HigherHigh},
		{Kind: LowerLow}, {Kind: HigherLow}, {Kind: HigherHigh},
	}
	require.Equal(t, TrendBullish, determineTrendDirection(bullish))

	balanced := []StructurePoint{
		{Kind: HigherHigh}, {Kind: LowerLow}, {Kind: HigherLow}, {Kind: LowerHigh},
	}
	require.Equal(t, TrendSideways, determineTrendDirection(balanced))
}
