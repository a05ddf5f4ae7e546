package sizing

import (
	"context"
	"log/slog"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tinyorch/tinyorch/internal/model"
)

// HostCapacity is the raw host measurement the heuristic works from.
type HostCapacity struct {
	CPUs     int
	MemBytes int64
	FreeKB   int64
}

// Prober measures host capacity.
type Prober interface {
	Probe(ctx context.Context) HostCapacity
}

// HostProbe measures the local machine with gopsutil. Each value that
// cannot be read falls back independently to FallbackCPUs,
// FallbackMemBytes or FallbackFreeKB.
type HostProbe struct {
	// DiskPath is the filesystem whose free space is measured.
	DiskPath string

	Logger *slog.Logger

	cpuCount func(ctx context.Context) (int, error)
	memTotal func(ctx context.Context) (uint64, error)
	diskFree func(ctx context.Context, path string) (uint64, error)
}

// NewHostProbe returns a probe of the root filesystem.
func NewHostProbe(logger *slog.Logger) *HostProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &HostProbe{
		DiskPath: "/",
		Logger:   logger,
		cpuCount: func(ctx context.Context) (int, error) {
			return cpu.CountsWithContext(ctx, true)
		},
		memTotal: func(ctx context.Context) (uint64, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return vm.Total, nil
		},
		diskFree: func(ctx context.Context, path string) (uint64, error) {
			usage, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return 0, err
			}
			return usage.Free, nil
		},
	}
}

// Probe implements Prober.
func (p *HostProbe) Probe(ctx context.Context) HostCapacity {
	capacity := HostCapacity{
		CPUs:     FallbackCPUs,
		MemBytes: FallbackMemBytes,
		FreeKB:   FallbackFreeKB,
	}

	if n, err := p.cpuCount(ctx); err == nil && n > 0 {
		capacity.CPUs = n
	} else {
		p.Logger.Warn("cpu count unavailable, using fallback", "fallback", FallbackCPUs, "error", err)
	}

	if total, err := p.memTotal(ctx); err == nil {
		capacity.MemBytes = int64(total)
	} else {
		p.Logger.Warn("memory size unavailable, using fallback", "error", err)
	}

	if free, err := p.diskFree(ctx, p.DiskPath); err == nil {
		capacity.FreeKB = int64(free / 1024)
	} else {
		p.Logger.Warn("disk usage unavailable, using fallback", "path", p.DiskPath, "error", err)
	}

	return capacity
}

// ForHost probes the host and applies Compute.
func ForHost(ctx context.Context, p Prober) model.Sizing {
	c := p.Probe(ctx)
	return Compute(c.CPUs, c.MemBytes, c.FreeKB)
}
