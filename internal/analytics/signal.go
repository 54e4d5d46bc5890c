package analytics

import "time"

// SynthesizerThresholds gates when the synthesizer may emit Buy/Sell instead
// of Wait.
type SynthesizerThresholds struct {
	MinOverallStrength    float64
	MinPhaseConfidence    float64
	MinLearningConfidence float64
}

// LearningConfidenceSource is satisfied by the learning system's GetConfidence.
type LearningConfidenceSource interface {
	GetConfidence(patternKind string) float64
}

// SignalSynthesizer is the third pipeline stage.
type SignalSynthesizer struct {
	thresholds SynthesizerThresholds
	learning   LearningConfidenceSource
}

// NewSignalSynthesizer builds a SignalSynthesizer.
func NewSignalSynthesizer(thresholds SynthesizerThresholds, learning LearningConfidenceSource) *SignalSynthesizer {
	return &SignalSynthesizer{thresholds: thresholds, learning: learning}
}

// Synthesize combines a ConfluenceAnalysis, a StructureAnalysis and the
// pattern-learning confidence for the dominant pattern into a TradeSetup.
// primary_signal is Buy/Sell only when every gate threshold is met;
// otherwise Wait.
func (s *SignalSynthesizer) Synthesize(confluence ConfluenceAnalysis, structure StructureAnalysis, dominantPattern string) TradeSetup {
	setup := TradeSetup{
		ID:          confluence.ID,
		Symbol:      confluence.Symbol,
		PatternKind: dominantPattern,
		Timestamp:   time.Now().UTC(),
	}

	learningConfidence := 0.0
	if s.learning != nil && dominantPattern != "" {
		learningConfidence = s.learning.GetConfidence(dominantPattern)
	}

	gated := confluence.OverallStrength >= s.thresholds.MinOverallStrength &&
		structure.PhaseConfidence >= s.thresholds.MinPhaseConfidence &&
		learningConfidence >= s.thresholds.MinLearningConfidence

	if !gated {
		setup.PrimarySignal = ActionWait
		return setup
	}

	switch {
	case confluence.MarketBias == BiasBullish && structure.TrendDirection != TrendBearish:
		setup.PrimarySignal = ActionBuy
	case confluence.MarketBias == BiasBearish && structure.TrendDirection != TrendBullish:
		setup.PrimarySignal = ActionSell
	default:
		setup.PrimarySignal = ActionWait
		return setup
	}

	setup.SetupQuality = qualityFor(confluence.OverallStrength, structure.PhaseConfidence)
	if structure.NextKeyLevel != nil {
		setup.TakeProfit = structure.NextKeyLevel.Price
	}

	return setup
}

func qualityFor(overallStrength, phaseConfidence float64) SetupQuality {
	avg := (overallStrength + phaseConfidence) / 2
	switch {
	case avg >= 80:
		return QualityA
	case avg >= 60:
		return QualityB
	default:
		return QualityC
	}
}
