package recovery

import (
	"context"
	"net"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryProbe returns a Probe that reports HighMemoryUsage once used memory
// exceeds thresholdPercent. Uses github.com/shirou/gopsutil/v3.
func MemoryProbe(thresholdPercent float64) Probe {
	return func(ctx context.Context) bool {
		v, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return false
		}
		return v.UsedPercent >= thresholdPercent
	}
}

// CPUProbe returns a Probe that reports HighCPUUsage once CPU utilization
// (sampled over a short window) exceeds thresholdPercent.
func CPUProbe(thresholdPercent float64) Probe {
	return func(ctx context.Context) bool {
		percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
		if err != nil || len(percents) == 0 {
			return false
		}
		return percents[0] >= thresholdPercent
	}
}

// DiskProbe returns a Probe that reports DiskFull once disk usage of path
// exceeds thresholdPercent.
func DiskProbe(path string, thresholdPercent float64) Probe {
	return func(ctx context.Context) bool {
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return false
		}
		return usage.UsedPercent >= thresholdPercent
	}
}

// MarketDataStaleProbe reports MarketDataStale once lastTickAt() is older
// than staleAfter.
func MarketDataStaleProbe(lastTickAt func() time.Time, staleAfter time.Duration) Probe {
	return func(ctx context.Context) bool {
		last := lastTickAt()
		if last.IsZero() {
			return false
		}
		return time.Since(last) > staleAfter
	}
}

// TradingEngineStuckProbe reports TradingEngineStuck once no analytics event
// has been observed for more than 2x heartbeatInterval (Open
// Question resolution: last-event-age against the event bus's last-publish
// timestamp).
func TradingEngineStuckProbe(lastEventAt func() time.Time, heartbeatInterval time.Duration) Probe {
	threshold := 2 * heartbeatInterval
	return func(ctx context.Context) bool {
		last := lastEventAt()
		if last.IsZero() {
			return false
		}
		return time.Since(last) > threshold
	}
}

// NetworkProbe returns a Probe that reports InternetDisconnected once a TCP
// connect to knownAddr (e.g. "8.8.8.8:53") fails to complete within timeout.
func NetworkProbe(knownAddr string, timeout time.Duration) Probe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", knownAddr)
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}
}

// BrokerConnectionLostProbe wraps a caller-supplied broker liveness check.
func BrokerConnectionLostProbe(isConnected func() bool) Probe {
	return func(ctx context.Context) bool { return !isConnected() }
}

// LowMarginLevelProbe reports LowMarginLevel once marginLevel() falls below
// thresholdPercent.
func LowMarginLevelProbe(marginLevel func() float64, thresholdPercent float64) Probe {
	return func(ctx context.Context) bool { return marginLevel() < thresholdPercent }
}
