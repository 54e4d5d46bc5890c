// Package pipeline wires the analytics stages (confluence, structure,
// synthesis), the risk gate and a broker adapter into the coordinator's
// component contract: one in-flight analysis per (symbol, timeframe).
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ict-core/enginecore/internal/analytics"
	"github.com/ict-core/enginecore/internal/broker"
	"github.com/ict-core/enginecore/internal/coordinator"
	"github.com/ict-core/enginecore/internal/risk"
	"github.com/ict-core/enginecore/pkg/metrics"
)

// Watchlist entry: one (symbol, timeframe) the worker periodically analyzes.
type Watchlist struct {
	Symbol    string
	Timeframe string
	Candles   int
}

// Worker is a coordinator.Component that runs the analysis pipeline for its
// watchlist on a fixed interval, synthesizes trade setups, filters them
// through the risk gate, and publishes SignalGenerated events.
type Worker struct {
	name      string
	priority  int
	interval  time.Duration
	watchlist []Watchlist

	brokerAdapter broker.Adapter
	execAdapter   broker.ExecutionAdapter
	confluence    *analytics.ConfluenceEngine
	structure     *analytics.StructureEngine
	synthesizer   *analytics.SignalSynthesizer
	gate          *risk.Gate
	bus           *analytics.Bus
	log           *logrus.Entry

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	state coordinator.ComponentState
}

// NewWorker builds a pipeline Worker.
func NewWorker(
	name string,
	priority int,
	interval time.Duration,
	watchlist []Watchlist,
	brokerAdapter broker.Adapter,
	execAdapter broker.ExecutionAdapter,
	confluence *analytics.ConfluenceEngine,
	structure *analytics.StructureEngine,
	synthesizer *analytics.SignalSynthesizer,
	gate *risk.Gate,
	bus *analytics.Bus,
	log *logrus.Entry,
) *Worker {
	return &Worker{
		name:          name,
		priority:      priority,
		interval:      interval,
		watchlist:     watchlist,
		brokerAdapter: brokerAdapter,
		execAdapter:   execAdapter,
		confluence:    confluence,
		structure:     structure,
		synthesizer:   synthesizer,
		gate:          gate,
		bus:           bus,
		log:           log,
		state:         coordinator.ComponentOffline,
	}
}

func (w *Worker) Name() string  { return w.name }
func (w *Worker) Priority() int { return w.priority }

func (w *Worker) Initialize(ctx context.Context) error {
	w.setState(coordinator.ComponentInitializing)
	return nil
}

func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(runCtx)
	w.setState(coordinator.ComponentRunning)
	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.setState(coordinator.ComponentOffline)
	return nil
}

func (w *Worker) HealthCheck(ctx context.Context) (coordinator.ComponentHealth, error) {
	w.mu.Lock()
	state := w.state
	w.mu.Unlock()
	return coordinator.ComponentHealth{State: state, UpdatedAt: time.Now().UTC()}, nil
}

func (w *Worker) setState(s coordinator.ComponentState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce analyzes every watchlist entry; within an entry, the confluence
// and structure engines already serialize per (symbol,timeframe) via their
// own key locks, guaranteeing in-order processing.
func (w *Worker) runOnce(ctx context.Context) {
	for _, entry := range w.watchlist {
		w.analyzeOne(ctx, entry)
	}
}

func (w *Worker) analyzeOne(ctx context.Context, entry Watchlist) {
	brokerCandles, err := w.brokerAdapter.Candles(ctx, entry.Symbol, entry.Timeframe, entry.Candles)
	if err != nil {
		if w.log != nil {
			w.log.WithError(err).WithField("symbol", entry.Symbol).Warn("pipeline: failed to fetch candles")
		}
		return
	}

	candles := make([]analytics.Candle, len(brokerCandles))
	for i, c := range brokerCandles {
		candles[i] = analytics.Candle{Time: c.Time, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}

	confluenceAnalysis := w.confluence.Analyze(entry.Symbol, entry.Timeframe, candles)
	structureAnalysis := w.structure.Analyze(entry.Symbol, entry.Timeframe, candles)

	w.bus.Publish(ctx, analytics.Event{
		Kind:      analytics.EventConfluenceUpdated,
		Symbol:    entry.Symbol,
		Timeframe: entry.Timeframe,
		Priority:  2,
		Payload:   map[string]any{"overall_strength": confluenceAnalysis.OverallStrength, "bias": confluenceAnalysis.MarketBias},
	})
	w.bus.Publish(ctx, analytics.Event{
		Kind:      analytics.EventStructureChange,
		Symbol:    entry.Symbol,
		Timeframe: entry.Timeframe,
		Priority:  2,
		Payload:   map[string]any{"phase": structureAnalysis.CurrentPhase, "trend": structureAnalysis.TrendDirection},
	})

	dominantPattern := ""
	if len(confluenceAnalysis.PatternConfluences) > 0 {
		dominantPattern = confluenceAnalysis.PatternConfluences[0].PatternKind
	}
	setup := w.synthesizer.Synthesize(confluenceAnalysis, structureAnalysis, dominantPattern)
	if setup.PrimarySignal != analytics.ActionBuy && setup.PrimarySignal != analytics.ActionSell {
		return
	}

	account, err := w.brokerAdapter.AccountInfo(ctx)
	if err != nil {
		return
	}
	positions, err := w.brokerAdapter.OpenPositions(ctx)
	if err != nil {
		return
	}

	var openPositions []risk.OpenPosition
	for _, p := range positions {
		openPositions = append(openPositions, risk.OpenPosition{Symbol: p.Symbol, Volume: p.Volume})
	}

	decision := w.gate.Evaluate(
		risk.SignalRequest{Symbol: entry.Symbol, Volume: 0.1, RiskAmount: account.Equity * 0.01, RequestedAt: time.Now().UTC()},
		risk.AccountState{Equity: account.Equity, PeakEquity: account.Equity, OpenPositions: openPositions},
	)

	priority := 3
	action := string(setup.PrimarySignal)
	payload := map[string]any{"action": action, "reason": decision.Reason, "setup_quality": setup.SetupQuality}

	if !decision.Approved {
		action = "rejected"
		priority = 4
		metrics.RecordRiskRejection(decision.Reason)
		payload["action"] = action
	} else {
		metrics.RecordSignalGenerated(entry.Symbol)
		volume := decision.MaxSafeVolume
		if volume <= 0 {
			volume = 0.1
		}
		side := "buy"
		if setup.PrimarySignal == analytics.ActionSell {
			side = "sell"
		}
		if w.execAdapter != nil {
			result, err := w.execAdapter.ExecuteOrder(ctx, broker.ExecutionRequest{
				Symbol:     entry.Symbol,
				Side:       side,
				Volume:     volume,
				StopLoss:   setup.StopLoss,
				TakeProfit: setup.TakeProfit,
				Comment:    "pipeline_worker:" + dominantPattern,
			})
			if err != nil {
				payload["execution_error"] = err.Error()
			} else {
				payload["ticket"] = result.Ticket
				payload["executed_price"] = result.ExecutedPrice
			}
		}
	}

	w.bus.Publish(ctx, analytics.Event{
		Kind:      analytics.EventSignalGenerated,
		Symbol:    entry.Symbol,
		Timeframe: entry.Timeframe,
		Priority:  priority,
		Payload:   payload,
	})
}
