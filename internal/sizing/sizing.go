// Package sizing derives podman machine resources from host capacity.
//
// The heuristic gives the VM 80% of host memory and 80% of the free disk
// space on the root filesystem, with floors of 512 MB and 10 GB, and as
// many CPUs as the host has.
package sizing

import (
	"github.com/tinyorch/tinyorch/internal/model"
)

const (
	// MinMemoryMB is the smallest memory allocation handed to a VM.
	MinMemoryMB = 512

	// MinDiskGB is the smallest disk allocation handed to a VM.
	MinDiskGB = 10

	// sharePercent is the share of host memory and free disk given to the VM.
	sharePercent = 80
)

// Fallbacks used when a host probe cannot be read.
const (
	FallbackCPUs     = 1
	FallbackMemBytes = 0
	FallbackFreeKB   = 0
)

// Compute derives the VM sizing from host CPU count, total memory in
// bytes, and free disk space in kilobytes. All divisions truncate.
func Compute(cpus int, memBytes, freeKB int64) model.Sizing {
	if cpus < 1 {
		cpus = FallbackCPUs
	}

	memoryMB := memBytes / 1024 / 1024 * sharePercent / 100
	if memoryMB < MinMemoryMB {
		memoryMB = MinMemoryMB
	}

	diskGB := freeKB * sharePercent / 100 / 1024 / 1024
	if diskGB < MinDiskGB {
		diskGB = MinDiskGB
	}

	return model.Sizing{CPUs: cpus, MemoryMB: memoryMB, DiskGB: diskGB}
}
