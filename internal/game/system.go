package game

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// System holds host resource usage in percent.
type System struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// SystemInfo samples CPU over 100ms and reads memory and root disk usage.
func SystemInfo(ctx context.Context) (System, error) {
	var sys System

	cpus, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		return sys, err
	}
	if len(cpus) > 0 {
		sys.CPUPercent = cpus[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sys, err
	}
	sys.MemoryPercent = vm.UsedPercent

	usage, err := disk.UsageWithContext(ctx, rootPath())
	if err != nil {
		return sys, err
	}
	sys.DiskPercent = usage.UsedPercent
	return sys, nil
}

func rootPath() string {
	if runtime.GOOS != "windows" {
		return "/"
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.VolumeName(wd) + `\`
	}
	return `C:\`
}
