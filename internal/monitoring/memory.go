package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// MemoryStats is one runtime memory sample.
type MemoryStats struct {
	HeapAlloc    uint64    `json:"heap_alloc_bytes"`
	HeapInuse    uint64    `json:"heap_inuse_bytes"`
	HeapObjects  uint64    `json:"heap_objects"`
	Sys          uint64    `json:"sys_bytes"`
	NumGC        uint32    `json:"num_gc"`
	NumGoroutine int       `json:"num_goroutine"`
	Timestamp    time.Time `json:"timestamp"`
}

// MemoryMonitor samples runtime memory on an interval. Training holds the
// whole corpus and the perturbation matrices in memory, so heap growth is
// worth watching.
type MemoryMonitor struct {
	interval  time.Duration
	warnBytes uint64
	logger    *Logger

	mu         sync.RWMutex
	latest     MemoryStats
	history    []MemoryStats
	maxHistory int
}

// NewMemoryMonitor creates a monitor that logs a warning whenever the heap
// exceeds warnBytes. A zero warnBytes disables the warning.
func NewMemoryMonitor(interval time.Duration, warnBytes uint64, logger *Logger) *MemoryMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &MemoryMonitor{
		interval:   interval,
		warnBytes:  warnBytes,
		logger:     logger,
		maxHistory: 120,
	}
}

// Start samples until ctx is cancelled.
func (mm *MemoryMonitor) Start(ctx context.Context) {
	mm.Sample()
	go func() {
		ticker := time.NewTicker(mm.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.Sample()
			}
		}
	}()
}

// Sample reads runtime memory statistics and records them.
func (mm *MemoryMonitor) Sample() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := MemoryStats{
		HeapAlloc:    m.HeapAlloc,
		HeapInuse:    m.HeapInuse,
		HeapObjects:  m.HeapObjects,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
		Timestamp:    time.Now(),
	}

	mm.mu.Lock()
	mm.latest = s
	mm.history = append(mm.history, s)
	if len(mm.history) > mm.maxHistory {
		mm.history = mm.history[1:]
	}
	mm.mu.Unlock()

	if mm.warnBytes > 0 && s.HeapAlloc > mm.warnBytes && mm.logger != nil {
		mm.logger.SystemLogger("memory_pressure", fmt.Sprintf(
			"heap %.1f MB above %.1f MB", toMB(s.HeapAlloc), toMB(mm.warnBytes)))
	}
	return s
}

// GetStats returns the latest sample and the peak heap seen.
func (mm *MemoryMonitor) GetStats() map[string]interface{} {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	var peak uint64
	for _, s := range mm.history {
		if s.HeapAlloc > peak {
			peak = s.HeapAlloc
		}
	}
	return map[string]interface{}{
		"heap_alloc_mb":  toMB(mm.latest.HeapAlloc),
		"heap_inuse_mb":  toMB(mm.latest.HeapInuse),
		"sys_mb":         toMB(mm.latest.Sys),
		"peak_heap_mb":   toMB(peak),
		"num_gc":         mm.latest.NumGC,
		"num_goroutine":  mm.latest.NumGoroutine,
		"samples":        len(mm.history),
		"last_sample_at": mm.latest.Timestamp,
	}
}

// GetHistory returns a copy of the recorded samples.
func (mm *MemoryMonitor) GetHistory() []MemoryStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return append([]MemoryStats(nil), mm.history...)
}

func toMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
