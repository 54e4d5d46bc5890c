package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLearningSystemAggregatesOutcomes(t *testing.T) {
	learning := NewLearningSystem(nil, nil)

	var ids []string
	for i := 0; i < 25; i++ {
		id := learning.RecordDetection("fvg_bullish", "EURUSD", "H1", 70, 65, MarketContext{})
		ids = append(ids, id)
	}

	for i, id := range ids {
		if i < 20 {
			require.NoError(t, learning.UpdateOutcome(id, OutcomeWin, 2.0))
		} else {
			require.NoError(t, learning.UpdateOutcome(id, OutcomeLoss, 1.0))
		}
	}

	perf := learning.Performance("fvg_bullish")
	require.Equal(t, 25, perf.Occurrences)
	require.Equal(t, 20, perf.Wins)
	require.Equal(t, 5, perf.Losses)
	require.InDelta(t, 80.0, perf.WinRate, 0.001)
	require.InDelta(t, 8.0, perf.ProfitFactor, 0.001)
}

func TestLearningSystemOutcomeWriteOnce(t *testing.T) {
	learning := NewLearningSystem(nil, nil)
	id := learning.RecordDetection("ob_bearish", "GBPUSD", "M15", 60, 55, MarketContext{})
	require.NoError(t, learning.UpdateOutcome(id, OutcomeWin, 1.5))
	require.Error(t, learning.UpdateOutcome(id, OutcomeLoss, 1.0), "second UpdateOutcome on the same record must fail")
}

func TestLearningSystemConfidenceBelowSampleFloorIsNeutral(t *testing.T) {
	learning := NewLearningSystem(nil, nil)
	require.Equal(t, NeutralConfidence, learning.GetConfidence("never_seen"))

	id := learning.RecordDetection("bos_bullish", "EURUSD", "H4", 80, 70, MarketContext{})
	require.NoError(t, learning.UpdateOutcome(id, OutcomeWin, 3.0))
	require.Equal(t, NeutralConfidence, learning.GetConfidence("bos_bullish"), "fewer than MinSamplesForConfidence samples must stay neutral")
}
