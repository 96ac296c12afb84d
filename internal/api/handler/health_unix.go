//go:build linux || darwin

package handler

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// CPU time observed at the previous stats call.
var (
	cpuMu          sync.Mutex
	lastCPUTime    time.Duration
	lastWallTime   time.Time
	cpuInitialized bool
)

// getDiskStats returns disk usage for the filesystem holding path.
func getDiskStats(path string) (total, free, used int64, usedPct float64) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, 0, 0
	}
	total = int64(st.Blocks) * int64(st.Bsize)
	free = int64(st.Bavail) * int64(st.Bsize)
	used = total - free
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100
	}
	return total, free, used, usedPct
}

// getCPUUsage returns the process CPU share since the previous call,
// capped at one core. The first call returns 0.
func getCPUUsage() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	cpu := time.Duration(ru.Utime.Nano()) + time.Duration(ru.Stime.Nano())
	now := time.Now()

	cpuMu.Lock()
	defer cpuMu.Unlock()

	if !cpuInitialized {
		lastCPUTime, lastWallTime, cpuInitialized = cpu, now, true
		return 0
	}

	cpuDelta := cpu - lastCPUTime
	wallDelta := now.Sub(lastWallTime)
	lastCPUTime, lastWallTime = cpu, now

	if wallDelta <= 0 {
		return 0
	}
	pct := float64(cpuDelta) / float64(wallDelta) * 100
	return min(max(pct, 0), 100)
}
