package analytics

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sync"
	"time"
)

// MinSamplesForConfidence is the sample floor below which a pattern uses a
// neutral default prediction instead of its own track record.
const MinSamplesForConfidence = 20

// InsightGenerationInterval is the number of processed outcomes between
// performance scans for outlier patterns.
const InsightGenerationInterval = 100

// NeutralConfidence is the default confidence returned for patterns below
// MinSamplesForConfidence.
const NeutralConfidence = 50.0

// InsightBus is satisfied by the analytics Bus's Publish for learning-insight
// emission; kept narrow so the learning system does not depend on the whole
// Bus type.
type InsightBus interface {
	Publish(ctx context.Context, evt Event)
}

// SnapshotWriter persists pattern-learning records/performance, satisfied by
// *persistence.Store (same seam as coordinator.SnapshotWriter).
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, category, id string, v any) error
}

// LearningSystem is the fourth pipeline stage.
type LearningSystem struct {
	mu           sync.Mutex
	records      map[string]*PatternRecord
	performance  map[string]*PatternPerformance
	sinceInsight int

	bus      InsightBus
	snapshot SnapshotWriter
}

// NewLearningSystem builds a LearningSystem.
func NewLearningSystem(bus InsightBus, snapshot SnapshotWriter) *LearningSystem {
	return &LearningSystem{
		records:     make(map[string]*PatternRecord),
		performance: make(map[string]*PatternPerformance),
		bus:         bus,
		snapshot:    snapshot,
	}
}

// RecordDetection snapshots a prediction and returns its record id.
func (l *LearningSystem) RecordDetection(patternKind, symbol, timeframe string, strength, confluence float64, marketCtx MarketContext) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := detectionID(patternKind, symbol, timeframe)
	perf := l.performanceLocked(patternKind)

	predictedOutcome := OutcomeBreakEven
	predictedConfidence := NeutralConfidence
	if perf.Occurrences >= MinSamplesForConfidence {
		predictedConfidence = perf.ConfidenceScore
		if perf.WinRate >= 50 {
			predictedOutcome = OutcomeWin
		} else {
			predictedOutcome = OutcomeLoss
		}
	}

	rec := &PatternRecord{
		ID:                  id,
		PatternKind:         patternKind,
		Symbol:              symbol,
		Timeframe:           timeframe,
		DetectedAt:          time.Now().UTC(),
		Strength:            strength,
		ConfluenceScore:     confluence,
		MarketContext:       marketCtx,
		PredictedOutcome:    predictedOutcome,
		PredictedConfidence: predictedConfidence,
	}
	l.records[id] = rec

	if l.snapshot != nil {
		_ = l.snapshot.WriteSnapshot(context.Background(), "pattern_learning", id, rec)
	}
	if l.bus != nil {
		l.bus.Publish(context.Background(), Event{
			Kind:      EventPatternDetected,
			Symbol:    symbol,
			Timeframe: timeframe,
			Priority:  3,
			Payload:   map[string]any{"pattern_kind": patternKind, "record_id": id},
		})
	}

	return id
}

// UpdateOutcome finalizes a record (write-once) and transactionally updates
// the pattern's rolling performance aggregate.
func (l *LearningSystem) UpdateOutcome(recordID string, outcome PatternOutcome, profitR float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[recordID]
	if !ok {
		return fmt.Errorf("analytics: unknown pattern record %q", recordID)
	}
	if rec.ActualOutcome != nil {
		return fmt.Errorf("analytics: outcome for %q already recorded", recordID)
	}

	now := time.Now().UTC()
	rec.ActualOutcome = &outcome
	rec.ActualProfitR = &profitR
	rec.OutcomeAt = &now

	perf := l.performanceLocked(rec.PatternKind)
	perf.Occurrences++
	switch outcome {
	case OutcomeWin:
		perf.Wins++
		perf.TotalProfitR += profitR
	case OutcomeLoss:
		perf.Losses++
		perf.TotalLossR += math.Abs(profitR)
	}
	recalculate(perf)

	l.sinceInsight++
	emitInsight := l.sinceInsight >= InsightGenerationInterval
	if emitInsight {
		l.sinceInsight = 0
	}

	if l.snapshot != nil {
		_ = l.snapshot.WriteSnapshot(context.Background(), "pattern_learning", rec.ID, rec)
		_ = l.snapshot.WriteSnapshot(context.Background(), "pattern_performance", rec.PatternKind, perf)
	}
	if l.bus != nil {
		l.bus.Publish(context.Background(), Event{
			Kind:      EventPerformanceUpdate,
			Symbol:    rec.Symbol,
			Timeframe: rec.Timeframe,
			Priority:  3,
			Payload:   map[string]any{"pattern_kind": rec.PatternKind, "confidence_score": perf.ConfidenceScore},
		})
		if emitInsight {
			l.emitInsightsLocked()
		}
	}

	return nil
}

// GetConfidence returns 0-100 confidence for patternKind, used by the
// synthesizer.
func (l *LearningSystem) GetConfidence(patternKind string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	perf, ok := l.performance[patternKind]
	if !ok || perf.Occurrences < MinSamplesForConfidence {
		return NeutralConfidence
	}
	return perf.ConfidenceScore
}

// Performance returns a copy of the current rolling aggregate for patternKind.
func (l *LearningSystem) Performance(patternKind string) PatternPerformance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if perf, ok := l.performance[patternKind]; ok {
		return *perf
	}
	return PatternPerformance{PatternKind: patternKind}
}

func (l *LearningSystem) performanceLocked(patternKind string) *PatternPerformance {
	perf, ok := l.performance[patternKind]
	if !ok {
		perf = &PatternPerformance{PatternKind: patternKind}
		l.performance[patternKind] = perf
	}
	return perf
}

// recalculate derives win_rate, profit_factor (divide-by-zero guarded),
// expectancy and a confidence_score weighted combination of win_rate,
// profit_factor and sample size.
func recalculate(p *PatternPerformance) {
	if p.Occurrences == 0 {
		return
	}
	p.WinRate = float64(p.Wins) / float64(p.Occurrences) * 100

	const profitFactorCap = 1000.0
	if p.TotalLossR == 0 {
		if p.TotalProfitR > 0 {
			p.ProfitFactor = profitFactorCap
		} else {
			p.ProfitFactor = 0
		}
	} else {
		p.ProfitFactor = p.TotalProfitR / p.TotalLossR
	}

	p.Expectancy = (p.TotalProfitR - p.TotalLossR) / float64(p.Occurrences)

	sampleWeight := math.Min(1, float64(p.Occurrences)/float64(MinSamplesForConfidence*5))
	pfScore := math.Min(100, p.ProfitFactor*20)
	p.ConfidenceScore = p.WinRate*0.4 + pfScore*0.3 + sampleWeight*100*0.3
	if p.ConfidenceScore > 100 {
		p.ConfidenceScore = 100
	}
}

// emitInsightsLocked scans performance for outliers and emits
// LearningInsight events for patterns with at least MinSamplesForConfidence
// outcomes: "increase" when confidence_score >= 75, "decrease" when it is
// <= 30. Patterns in between emit nothing, and no "review" recommendation is
// ever emitted. Runs once every InsightGenerationInterval processed outcomes.
// Caller must hold l.mu.
func (l *LearningSystem) emitInsightsLocked() {
	for kind, perf := range l.performance {
		if perf.Occurrences < MinSamplesForConfidence {
			continue
		}
		recommendation := "review"
		switch {
		case perf.ConfidenceScore >= 75:
			recommendation = "increase"
		case perf.ConfidenceScore <= 30:
			recommendation = "decrease"
		default:
			continue
		}
		l.bus.Publish(context.Background(), Event{
			Kind:     EventLearningInsight,
			Priority: 5,
			Payload: map[string]any{
				"pattern_kind":   kind,
				"recommendation": recommendation,
				"confidence":     perf.ConfidenceScore,
			},
		})
	}
}

func detectionID(patternKind, symbol, timeframe string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%s_%d", patternKind, symbol, timeframe, time.Now().UnixNano())))
	return fmt.Sprintf("%x", sum)[:16]
}
