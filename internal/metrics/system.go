package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Resource names used in samples and gauge labels
const (
	ResourceCPU    = "cpu"
	ResourceMemory = "memory"
	ResourceDisk   = "disk"
)

// cpuSampleWindow is how long CPU usage is measured for one sample
const cpuSampleWindow = time.Second

// SampleSystem reads cpu, memory and disk utilization percent for the volume holding diskPath
func SampleSystem(ctx context.Context, diskPath string) (map[string]float64, error) {
	if diskPath == "" {
		diskPath = "/"
	}

	cpuPercent, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(cpuPercent) == 0 {
		return nil, fmt.Errorf("failed to read cpu usage: no samples")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory usage: %w", err)
	}

	usage, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read disk usage for %s: %w", diskPath, err)
	}

	return map[string]float64{
		ResourceCPU:    cpuPercent[0],
		ResourceMemory: vm.UsedPercent,
		ResourceDisk:   usage.UsedPercent,
	}, nil
}

// RecordSystemSample publishes a sample to the SystemUsage gauges
func RecordSystemSample(sample map[string]float64) {
	for resource, value := range sample {
		SystemUsage.WithLabelValues(resource).Set(value)
	}
}
