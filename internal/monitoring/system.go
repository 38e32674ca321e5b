package monitoring

import (
	"context"
	"fmt"
	"runtime"

	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSampler reads host metrics with gopsutil.
type SystemSampler struct{}

// NewSystemSampler creates a new SystemSampler.
func NewSystemSampler() *SystemSampler {
	return &SystemSampler{}
}

// Sample returns the current CPU, memory and uptime of the host.
func (s *SystemSampler) Sample(ctx context.Context) (*models.SystemSnapshot, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("uptime: %w", err)
	}

	snap := &models.SystemSnapshot{
		MemoryPercent: vm.UsedPercent,
		MemoryUsedMB:  vm.Used / (1024 * 1024),
		UptimeSeconds: uptime,
		Goroutines:    runtime.NumGoroutine(),
	}
	if len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	return snap, nil
}
