// Package host samples host resource usage and talks to the service manager.
package host

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Usage is a point-in-time view of host resources.
type Usage struct {
	CPUPercent float64
	MemPercent float64
}

// Sampler reads CPU and memory usage.
// CPU usage is measured since the previous call, so the first sample after
// startup covers the time since boot.
type Sampler struct {
	cpuPercent func(ctx context.Context) ([]float64, error)
	memPercent func(ctx context.Context) (float64, error)
}

// NewSampler creates a Sampler backed by gopsutil.
func NewSampler() *Sampler {
	return &Sampler{
		cpuPercent: func(ctx context.Context) ([]float64, error) {
			// zero interval: compare against the previous call, do not block
			return cpu.PercentWithContext(ctx, 0, false)
		},
		memPercent: func(ctx context.Context) (float64, error) {
			v, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return v.UsedPercent, nil
		},
	}
}

// Sample returns current CPU and memory usage.
func (s *Sampler) Sample(ctx context.Context) (Usage, error) {
	percentages, err := s.cpuPercent(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("cpu usage: %w", err)
	}
	if len(percentages) == 0 {
		return Usage{}, fmt.Errorf("cpu usage: no data")
	}

	memUsed, err := s.memPercent(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("memory usage: %w", err)
	}

	return Usage{CPUPercent: percentages[0], MemPercent: memUsed}, nil
}
