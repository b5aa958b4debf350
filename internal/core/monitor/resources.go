package monitor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// SourceResources marks alerts raised by the resource check
const SourceResources = "resource_monitor"

// ResourceStats is the host snapshot reported by the health endpoint
type ResourceStats struct {
	CPUPercent    float64      `json:"cpu_percent"`
	MemoryPercent float64      `json:"memory_percent"`
	MemoryUsed    uint64       `json:"memory_used"`
	MemoryTotal   uint64       `json:"memory_total"`
	Hostname      string       `json:"hostname,omitempty"`
	UptimeSeconds uint64       `json:"uptime_seconds"`
	Runtime       RuntimeStats `json:"runtime"`
	Timestamp     time.Time    `json:"timestamp"`
}

// RuntimeStats represents Go runtime statistics
type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	MemAllocBytes uint64 `json:"mem_alloc_bytes"`
	MemSysBytes   uint64 `json:"mem_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// ResourceThresholds trigger warning alerts when exceeded. Zero disables a check.
type ResourceThresholds struct {
	CPUPercent    float64 `mapstructure:"cpu_percent"`
	MemoryPercent float64 `mapstructure:"memory_percent"`
}

// ResourceMonitor samples host and process resources
type ResourceMonitor struct {
	logger *logrus.Logger
}

// NewResourceMonitor creates a new resource monitor
func NewResourceMonitor(logger *logrus.Logger) *ResourceMonitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &ResourceMonitor{logger: logger}
}

// GetResourceStats collects a snapshot. Individual collector failures are logged and
// leave the corresponding fields zero.
func (r *ResourceMonitor) GetResourceStats(ctx context.Context) *ResourceStats {
	stats := &ResourceStats{
		Timestamp: time.Now(),
		Runtime:   runtimeStats(),
	}

	// interval 0 compares against the previous call instead of blocking
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		r.logger.WithError(err).Warn("Failed to get CPU stats")
	} else if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		r.logger.WithError(err).Warn("Failed to get memory stats")
	} else {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsed = vm.Used
		stats.MemoryTotal = vm.Total
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		r.logger.WithError(err).Warn("Failed to get host stats")
	} else {
		stats.Hostname = info.Hostname
		stats.UptimeSeconds = info.Uptime
	}

	return stats
}

// Check samples resources and raises a warning alert for each exceeded threshold
func (r *ResourceMonitor) Check(ctx context.Context, thresholds ResourceThresholds, alerts *AlertManager) *ResourceStats {
	stats := r.GetResourceStats(ctx)
	if alerts == nil {
		return stats
	}

	raise := func(metric string, value, limit float64) {
		_, err := alerts.CreateAlert(Alert{
			Severity: AlertSeverityWarning,
			Source:   SourceResources,
			Message:  fmt.Sprintf("%s usage %.1f%% exceeds %.1f%%", metric, value, limit),
			Details: map[string]interface{}{
				"metric":    metric,
				"value":     value,
				"threshold": limit,
			},
		})
		if err != nil {
			r.logger.WithError(err).Warn("Failed to raise resource alert")
		}
	}

	if thresholds.CPUPercent > 0 && stats.CPUPercent > thresholds.CPUPercent {
		raise("cpu", stats.CPUPercent, thresholds.CPUPercent)
	}
	if thresholds.MemoryPercent > 0 && stats.MemoryPercent > thresholds.MemoryPercent {
		raise("memory", stats.MemoryPercent, thresholds.MemoryPercent)
	}
	return stats
}

func runtimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		Goroutines:    runtime.NumGoroutine(),
		MemAllocBytes: m.Alloc,
		MemSysBytes:   m.Sys,
		GCCycles:      m.NumGC,
	}
}
