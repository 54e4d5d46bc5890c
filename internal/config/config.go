package config

import (
	"os"
	"time"
)

// Monitoring holds Production Coordinator tunables.
type Monitoring struct {
	MonitoringInterval         time.Duration
	HeartbeatInterval          time.Duration
	HealthCheckTimeout         time.Duration
	MaxRecoveryAttempts        int
	ShutdownTimeout            time.Duration
	MetricsPersistenceInterval time.Duration
	EmergencyStopOnCritical    bool
	ComponentStartupTimeout    time.Duration
	CriticalErrorThreshold     int
	AutoRecoveryEnabled        bool
}

// Recovery holds Auto-Recovery Engine tunables.
type Recovery struct {
	MonitoringInterval       time.Duration
	MaxConcurrentRecoveries  int
	RecoveryHistorySize      int
	HealthHistorySize        int
	MemoryCriticalThreshold  float64 // percent
	CPUCriticalThreshold     float64 // percent
	DiskCriticalThreshold    float64 // percent
	MarginCriticalThreshold  float64 // percent
	MarketDataStaleThreshold time.Duration
	NetworkCheckAddr         string
	NetworkCheckTimeout      time.Duration
}

// Persistence holds Data Persistence Layer tunables.
type Persistence struct {
	BaseDir            string
	BackupInterval     time.Duration
	RetentionDays      int
	MaxFileSizeMB      int64
	EnableSQLite       bool
	SQLiteTimeout      time.Duration
	AtomicWrites       bool
	SyncToDisk         bool
	CompressionEnabled bool
}

// Risk holds Risk Gate tunables.
type Risk struct {
	MaxRiskPerTradePercent float64
	MaxConcurrentPositions int
	MaxVolumePerSymbol     map[string]float64
	MaxCorrelation         float64
	MaxDrawdownPercent     float64
	DailyLossCapPercent    float64
	WeeklyLossCapPercent   float64
	MonthlyLossCapPercent  float64
}

// Analytics holds Analytics Pipeline Core tunables.
type Analytics struct {
	ConfluenceCacheTTL        time.Duration
	SwingWindow               int     // k
	TrendWindow               int     // N
	TrendDominanceRatio       float64 // 1.5x
	SRBandPercent             float64 // 0.1%
	SRMaxLevels               int     // top 5
	MinSamplesForConfidence   int     // 20
	InsightGenerationInterval int     // 100
	EventQueueCapacity        int     // 1000
	EventDrainBatchSize       int     // 50
	EventDrainInterval        time.Duration
	EventPriorityBypass       int // priority >= this value bypasses the queue
	RecentEventsRingSize      int // 100
}

// Logging holds ambient logging configuration.
type Logging struct {
	Level  string
	Format string
}

// Config is the full typed configuration tree for the trading core.
type Config struct {
	ServiceName string
	Monitoring  Monitoring
	Recovery    Recovery
	Persistence Persistence
	Risk        Risk
	Analytics   Analytics
	Logging     Logging
}

// Default returns the documented production defaults.
func Default() Config {
	return Config{
		ServiceName: "ict-core",
		Monitoring: Monitoring{
			MonitoringInterval:         10 * time.Second,
			HeartbeatInterval:          5 * time.Second,
			HealthCheckTimeout:         30 * time.Second,
			MaxRecoveryAttempts:        3,
			ShutdownTimeout:            30 * time.Second,
			MetricsPersistenceInterval: 60 * time.Second,
			EmergencyStopOnCritical:    true,
			ComponentStartupTimeout:    120 * time.Second,
			CriticalErrorThreshold:     10,
			AutoRecoveryEnabled:        true,
		},
		Recovery: Recovery{
			MonitoringInterval:       10 * time.Second,
			MaxConcurrentRecoveries:  2,
			RecoveryHistorySize:      1000,
			HealthHistorySize:        500,
			MemoryCriticalThreshold:  90,
			CPUCriticalThreshold:     95,
			DiskCriticalThreshold:    95,
			MarginCriticalThreshold:  120,
			MarketDataStaleThreshold: 5 * time.Minute,
			NetworkCheckAddr:         "8.8.8.8:53",
			NetworkCheckTimeout:      3 * time.Second,
		},
		Persistence: Persistence{
			BaseDir:        "./data",
			BackupInterval: 6 * time.Hour,
			RetentionDays:  30,
			MaxFileSizeMB:  100,
			EnableSQLite:   true,
			SQLiteTimeout:  30 * time.Second,
			AtomicWrites:   true,
			SyncToDisk:     true,
		},
		Risk: Risk{
			MaxRiskPerTradePercent: 1.5,
			MaxConcurrentPositions: 3,
			MaxVolumePerSymbol:     map[string]float64{},
			MaxCorrelation:         0.7,
			MaxDrawdownPercent:     10,
			DailyLossCapPercent:    3,
			WeeklyLossCapPercent:   6,
			MonthlyLossCapPercent:  10,
		},
		Analytics: Analytics{
			ConfluenceCacheTTL:        5 * time.Minute,
			SwingWindow:               2,
			TrendWindow:               6,
			TrendDominanceRatio:       1.5,
			SRBandPercent:             0.1,
			SRMaxLevels:               5,
			MinSamplesForConfidence:   20,
			InsightGenerationInterval: 100,
			EventQueueCapacity:        1000,
			EventDrainBatchSize:       50,
			EventDrainInterval:        time.Second,
			EventPriorityBypass:       8,
			RecentEventsRingSize:      100,
		},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// FromEnv overlays environment variables onto the documented defaults.
func FromEnv() Config {
	cfg := Default()
	getenv := os.Getenv

	cfg.ServiceName = GetEnv(getenv, "ICT_SERVICE_NAME", cfg.ServiceName)

	m := &cfg.Monitoring
	m.MonitoringInterval = GetEnvDuration(getenv, "ICT_MONITORING_INTERVAL", m.MonitoringInterval)
	m.HeartbeatInterval = GetEnvDuration(getenv, "ICT_HEARTBEAT_INTERVAL", m.HeartbeatInterval)
	m.HealthCheckTimeout = GetEnvDuration(getenv, "ICT_HEALTH_CHECK_TIMEOUT", m.HealthCheckTimeout)
	m.MaxRecoveryAttempts = GetEnvInt(getenv, "ICT_MAX_RECOVERY_ATTEMPTS", m.MaxRecoveryAttempts)
	m.ShutdownTimeout = GetEnvDuration(getenv, "ICT_SHUTDOWN_TIMEOUT", m.ShutdownTimeout)
	m.MetricsPersistenceInterval = GetEnvDuration(getenv, "ICT_METRICS_PERSISTENCE_INTERVAL", m.MetricsPersistenceInterval)
	m.EmergencyStopOnCritical = GetEnvBool(getenv, "ICT_EMERGENCY_STOP_ON_CRITICAL", m.EmergencyStopOnCritical)
	m.ComponentStartupTimeout = GetEnvDuration(getenv, "ICT_COMPONENT_STARTUP_TIMEOUT", m.ComponentStartupTimeout)
	m.CriticalErrorThreshold = GetEnvInt(getenv, "ICT_CRITICAL_ERROR_THRESHOLD", m.CriticalErrorThreshold)
	m.AutoRecoveryEnabled = GetEnvBool(getenv, "ICT_AUTO_RECOVERY_ENABLED", m.AutoRecoveryEnabled)

	r := &cfg.Recovery
	r.MonitoringInterval = GetEnvDuration(getenv, "ICT_RECOVERY_MONITORING_INTERVAL", r.MonitoringInterval)
	r.MaxConcurrentRecoveries = GetEnvInt(getenv, "ICT_MAX_CONCURRENT_RECOVERIES", r.MaxConcurrentRecoveries)
	r.MemoryCriticalThreshold = GetEnvFloat(getenv, "ICT_MEMORY_CRITICAL_THRESHOLD", r.MemoryCriticalThreshold)
	r.CPUCriticalThreshold = GetEnvFloat(getenv, "ICT_CPU_CRITICAL_THRESHOLD", r.CPUCriticalThreshold)
	r.DiskCriticalThreshold = GetEnvFloat(getenv, "ICT_DISK_CRITICAL_THRESHOLD", r.DiskCriticalThreshold)
	r.MarginCriticalThreshold = GetEnvFloat(getenv, "ICT_MARGIN_CRITICAL_THRESHOLD", r.MarginCriticalThreshold)
	r.MarketDataStaleThreshold = GetEnvDuration(getenv, "ICT_MARKET_DATA_STALE_THRESHOLD", r.MarketDataStaleThreshold)
	r.NetworkCheckAddr = GetEnv(getenv, "ICT_NETWORK_CHECK_ADDR", r.NetworkCheckAddr)
	r.NetworkCheckTimeout = GetEnvDuration(getenv, "ICT_NETWORK_CHECK_TIMEOUT", r.NetworkCheckTimeout)

	p := &cfg.Persistence
	p.BaseDir = GetEnv(getenv, "ICT_DATA_DIR", p.BaseDir)
	p.BackupInterval = GetEnvDuration(getenv, "ICT_BACKUP_INTERVAL", p.BackupInterval)
	p.RetentionDays = GetEnvInt(getenv, "ICT_RETENTION_DAYS", p.RetentionDays)
	p.MaxFileSizeMB = int64(GetEnvInt(getenv, "ICT_MAX_FILE_SIZE_MB", int(p.MaxFileSizeMB)))
	p.EnableSQLite = GetEnvBool(getenv, "ICT_ENABLE_SQLITE", p.EnableSQLite)
	p.SQLiteTimeout = GetEnvDuration(getenv, "ICT_SQLITE_TIMEOUT", p.SQLiteTimeout)

	cfg.Logging.Level = GetEnv(getenv, "LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = GetEnv(getenv, "LOG_FORMAT", cfg.Logging.Format)

	return cfg
}
