package infrastructure

import (
	"runtime"
	"time"
)

// RuntimeStats is a point-in-time view of the process, reported by the health endpoint.
type RuntimeStats struct {
	GoRoutines    int       `json:"goroutines"`
	MemoryAllocMB uint64    `json:"memory_alloc_mb"`
	MemorySysMB   uint64    `json:"memory_system_mb"`
	GCCount       uint32    `json:"gc_count"`
	CPUCount      int       `json:"cpu_count"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// CollectRuntimeStats reads the Go runtime counters.
func CollectRuntimeStats(startTime time.Time) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoRoutines:    runtime.NumGoroutine(),
		MemoryAllocMB: mem.Alloc / 1024 / 1024,
		MemorySysMB:   mem.Sys / 1024 / 1024,
		GCCount:       mem.NumGC,
		CPUCount:      runtime.NumCPU(),
		UptimeSeconds: time.Since(startTime).Seconds(),
		Timestamp:     time.Now(),
	}
}
