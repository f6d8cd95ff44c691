package internal

import (
	"log/slog"
	"runtime"
	"sync"
)

// LevelTrace is used for per-frame and per-layer events. Handlers set to
// [slog.LevelDebug] do not print it.
const LevelTrace slog.Level = slog.LevelDebug - 2

var heap struct {
	mu      sync.Mutex
	stats   runtime.MemStats
	total   uint64
	mallocs uint64
}

// HeapDelta returns the octets and the number of objects allocated on the
// heap since the previous call. The first call reports totals since start.
func HeapDelta() (octets, objects uint64) {
	heap.mu.Lock()
	defer heap.mu.Unlock()
	runtime.ReadMemStats(&heap.stats)
	octets = heap.stats.TotalAlloc - heap.total
	objects = heap.stats.Mallocs - heap.mallocs
	heap.total = heap.stats.TotalAlloc
	heap.mallocs = heap.stats.Mallocs
	return octets, objects
}
