package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryProbe checks host memory usage against the degraded/unhealthy
// thresholds (percent).
func MemoryProbe(degradedPct, unhealthyPct float64) ProbeFunc {
	return func(ctx context.Context) Check {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return Check{
				Status:  StatusDegraded,
				Message: "memory stats unavailable: " + err.Error(),
			}
		}

		status := StatusHealthy
		message := fmt.Sprintf("%.1f%% used", vm.UsedPercent)
		switch {
		case unhealthyPct > 0 && vm.UsedPercent >= unhealthyPct:
			status = StatusUnhealthy
		case degradedPct > 0 && vm.UsedPercent >= degradedPct:
			status = StatusDegraded
		}

		return Check{
			Status:  status,
			Message: message,
			Metadata: map[string]interface{}{
				"used_percent": vm.UsedPercent,
				"total_bytes":  vm.Total,
			},
		}
	}
}

// CPUProbe checks host CPU usage over a short sampling window.
func CPUProbe(degradedPct, unhealthyPct float64) ProbeFunc {
	return func(ctx context.Context) Check {
		percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
		if err != nil || len(percents) == 0 {
			return Check{
				Status:  StatusDegraded,
				Message: "cpu stats unavailable",
			}
		}
		usage := percents[0]

		status := StatusHealthy
		switch {
		case unhealthyPct > 0 && usage >= unhealthyPct:
			status = StatusUnhealthy
		case degradedPct > 0 && usage >= degradedPct:
			status = StatusDegraded
		}

		return Check{
			Status:   status,
			Message:  fmt.Sprintf("%.1f%% busy", usage),
			Metadata: map[string]interface{}{"cpu_percent": usage},
		}
	}
}

// GoroutineProbe flags runaway goroutine counts.
func GoroutineProbe(degradedAt, unhealthyAt int) ProbeFunc {
	return func(_ context.Context) Check {
		count := runtime.NumGoroutine()

		status := StatusHealthy
		switch {
		case unhealthyAt > 0 && count >= unhealthyAt:
			status = StatusUnhealthy
		case degradedAt > 0 && count >= degradedAt:
			status = StatusDegraded
		}

		return Check{
			Status:   status,
			Message:  fmt.Sprintf("%d goroutines", count),
			Metadata: map[string]interface{}{"goroutines": count},
		}
	}
}

// SystemMetricsCollector builds the monitor's metrics function from
// gopsutil plus caller-supplied error rate and throughput readers.
func SystemMetricsCollector(errorRate func() float64, throughput func() float64) func(ctx context.Context) SystemMetrics {
	return func(ctx context.Context) SystemMetrics {
		snapshot := SystemMetrics{Goroutines: runtime.NumGoroutine()}

		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
			snapshot.MemoryUsedPercent = vm.UsedPercent
		}
		if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
			snapshot.CPUPercent = percents[0]
		}
		if errorRate != nil {
			snapshot.ErrorRate = errorRate()
		}
		if throughput != nil {
			snapshot.Throughput = throughput()
		}
		return snapshot
	}
}
