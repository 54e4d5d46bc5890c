// Command enginecore runs the trading platform core: the production
// coordinator supervising the auto-recovery engine, the persistence layer,
// the analytics pipeline and the risk gate, behind a local HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ict-core/enginecore/internal/analytics"
	"github.com/ict-core/enginecore/internal/broker"
	"github.com/ict-core/enginecore/internal/config"
	"github.com/ict-core/enginecore/internal/coordinator"
	"github.com/ict-core/enginecore/internal/httpapi"
	"github.com/ict-core/enginecore/internal/persistence"
	"github.com/ict-core/enginecore/internal/pipeline"
	"github.com/ict-core/enginecore/internal/recovery"
	"github.com/ict-core/enginecore/internal/risk"
	"github.com/ict-core/enginecore/pkg/logging"
	"github.com/ict-core/enginecore/pkg/version"
)

// defaultWatchlist is the pipeline worker's default (symbol, timeframe)
// coverage; a production deployment would source this from config or a
// watchlist file, but the default gives the core something to analyze out
// of the box.
func defaultWatchlist() []pipeline.Watchlist {
	return []pipeline.Watchlist{
		{Symbol: "EURUSD", Timeframe: "H1", Candles: 200},
		{Symbol: "GBPUSD", Timeframe: "H1", Candles: 200},
		{Symbol: "XAUUSD", Timeframe: "H1", Candles: 200},
	}
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address for health/status/dashboard")
	dataDir := flag.String("data-dir", "", "override the persistence base directory")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.FullVersion())
		return
	}

	cfg := config.FromEnv()
	if *dataDir != "" {
		cfg.Persistence.BaseDir = *dataDir
	}

	logger := logging.New(cfg.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithField("component", "main")
	log.WithField("version", version.FullVersion()).Info("starting")

	store, index, err := buildPersistence(cfg.Persistence)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize persistence layer")
	}
	if index != nil {
		defer index.Close()
	}

	backupScheduler := persistence.NewScheduler(store, sqlitePathFor(cfg.Persistence), cfg.Persistence.BackupInterval, cfg.Persistence.RetentionDays, log)

	brokerAdapter := broker.NewNop()
	execAdapter := &broker.NopExecution{}

	riskGate := risk.NewGate(risk.Config{
		MaxRiskPerTradePct:   cfg.Risk.MaxRiskPerTradePercent,
		MaxPositions:         cfg.Risk.MaxConcurrentPositions,
		MaxVolumePerSymbol:   cfg.Risk.MaxVolumePerSymbol,
		MaxDrawdownPct:       cfg.Risk.MaxDrawdownPercent,
		DailyLossCap:         cfg.Risk.DailyLossCapPercent,
		WeeklyLossCap:        cfg.Risk.WeeklyLossCapPercent,
		MonthlyLossCap:       cfg.Risk.MonthlyLossCapPercent,
		CorrelationThreshold: cfg.Risk.MaxCorrelation,
	}, nil)

	bus := analytics.NewBus(cfg.Analytics.EventDrainInterval, logger.WithField("component", "analytics_bus"))
	learning := analytics.NewLearningSystem(bus, store)
	confluence := analytics.NewConfluenceEngine(nil, 256, cfg.Analytics.ConfluenceCacheTTL)
	structureEngine := analytics.NewStructureEngine()
	synthesizer := analytics.NewSignalSynthesizer(analytics.SynthesizerThresholds{
		MinOverallStrength:    60,
		MinPhaseConfidence:    50,
		MinLearningConfidence: 40,
	}, learning)

	recoveryEngine := recovery.NewEngine(recovery.Config{
		MonitoringInterval:      cfg.Recovery.MonitoringInterval,
		MaxConcurrentRecoveries: cfg.Recovery.MaxConcurrentRecoveries,
		HistorySize:             cfg.Recovery.RecoveryHistorySize,
	}, store, logger.WithField("component", "recovery"))
	registerRecoveryActionsAndProbes(recoveryEngine, brokerAdapter, bus, cfg)

	coord := coordinator.New(coordinator.Config{
		MonitoringInterval:         cfg.Monitoring.MonitoringInterval,
		HeartbeatInterval:          cfg.Monitoring.HeartbeatInterval,
		HealthCheckTimeout:         cfg.Monitoring.HealthCheckTimeout,
		MaxRecoveryAttempts:        cfg.Monitoring.MaxRecoveryAttempts,
		ShutdownTimeout:            cfg.Monitoring.ShutdownTimeout,
		MetricsPersistenceInterval: cfg.Monitoring.MetricsPersistenceInterval,
		EmergencyStopOnCritical:    cfg.Monitoring.EmergencyStopOnCritical,
		ComponentStartupTimeout:    cfg.Monitoring.ComponentStartupTimeout,
		CriticalErrorThreshold:     cfg.Monitoring.CriticalErrorThreshold,
	}, store, logger.WithField("component", "coordinator"))

	analysisWorker := pipeline.NewWorker(
		"pipeline_worker",
		40,
		cfg.Analytics.EventDrainInterval*10,
		defaultWatchlist(),
		brokerAdapter,
		execAdapter,
		confluence,
		structureEngine,
		synthesizer,
		riskGate,
		bus,
		logger.WithField("component", "pipeline_worker"),
	)

	components := []coordinator.Component{
		newBusComponent(bus, 10),
		newRecoveryComponent(recoveryEngine, 20, cfg.Monitoring.AutoRecoveryEnabled),
		newBackupComponent(backupScheduler, 30),
		analysisWorker,
	}
	for _, c := range components {
		if err := coord.Register(c); err != nil {
			log.WithError(err).Fatalf("failed to register component %s", c.Name())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := coord.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start coordinator")
	}
	log.Info("enginecore started")

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: httpapi.NewServer(coord, bus, logger.WithField("component", "httpapi")),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	log.WithField("addr", *addr).Info("http surface listening")

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Monitoring.ShutdownTimeout)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)
	coord.Stop(shutdownCtx)
	log.Info("enginecore stopped")
}

func buildPersistence(cfg config.Persistence) (*persistence.Store, *persistence.Index, error) {
	var index *persistence.Index
	if cfg.EnableSQLite {
		idx, err := persistence.OpenIndex(sqlitePathFor(cfg), cfg.SQLiteTimeout)
		if err != nil {
			return nil, nil, err
		}
		index = idx
	}
	store, err := persistence.NewStore(cfg.BaseDir, cfg.CompressionEnabled, cfg.SyncToDisk, cfg.MaxFileSizeMB, index)
	if err != nil {
		return nil, nil, err
	}
	return store, index, nil
}

func sqlitePathFor(cfg config.Persistence) string {
	return cfg.BaseDir + "/index.sqlite3"
}

// registerRecoveryActionsAndProbes wires the default recovery action
// catalogue to the broker adapter, then registers the probe set
// that drives detection for each FailureKind.
func registerRecoveryActionsAndProbes(engine *recovery.Engine, brokerAdapter broker.Adapter, bus *analytics.Bus, cfg config.Config) {
	hooks := recovery.Hooks{
		ReconnectBroker: func(ctx context.Context) error {
			_ = brokerAdapter.Disconnect(ctx)
			return brokerAdapter.Connect(ctx)
		},
		FreeMemory: func(ctx context.Context) error { return nil },
		RestoreNetwork: func(ctx context.Context) error {
			return brokerAdapter.Connect(ctx)
		},
		RestartProcess: func(ctx context.Context) error { return nil },
		EmergencyClosePositions: func(ctx context.Context) error {
			positions, err := brokerAdapter.OpenPositions(ctx)
			if err != nil {
				return err
			}
			for _, p := range positions {
				if _, err := brokerAdapter.ClosePosition(ctx, p.Ticket); err != nil {
					return err
				}
			}
			return nil
		},
		DiskCleanup: func(ctx context.Context) error { return nil },
	}

	for _, action := range recovery.DefaultCatalogue(hooks) {
		engine.RegisterAction(action)
	}

	marginLevel := func() float64 {
		info, err := brokerAdapter.AccountInfo(context.Background())
		if err != nil {
			return cfg.Recovery.MarginCriticalThreshold + 1
		}
		return info.MarginLevel
	}

	engine.RegisterProbe(recovery.HighMemoryUsage, recovery.MemoryProbe(cfg.Recovery.MemoryCriticalThreshold))
	engine.RegisterProbe(recovery.HighCPUUsage, recovery.CPUProbe(cfg.Recovery.CPUCriticalThreshold))
	engine.RegisterProbe(recovery.DiskFull, recovery.DiskProbe(cfg.Persistence.BaseDir, cfg.Recovery.DiskCriticalThreshold))
	engine.RegisterProbe(recovery.BrokerConnectionLost, recovery.BrokerConnectionLostProbe(brokerAdapter.IsConnected))
	engine.RegisterProbe(recovery.InternetDisconnected, recovery.NetworkProbe(cfg.Recovery.NetworkCheckAddr, cfg.Recovery.NetworkCheckTimeout))
	engine.RegisterProbe(recovery.LowMarginLevel, recovery.LowMarginLevelProbe(marginLevel, cfg.Recovery.MarginCriticalThreshold))
	engine.RegisterProbe(recovery.MarketDataStale, recovery.MarketDataStaleProbe(bus.LastEventAt, cfg.Recovery.MarketDataStaleThreshold))
	engine.RegisterProbe(recovery.TradingEngineStuck, recovery.TradingEngineStuckProbe(bus.LastEventAt, cfg.Monitoring.HeartbeatInterval))
}
