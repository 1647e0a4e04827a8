package bufferpool

import "sync/atomic"

// Metrics counts buffer pool activity: in-process counters rather than a
// metrics server.
type Metrics struct {
	Hits      atomic.Int64
	Misses    atomic.Int64
	Evictions atomic.Int64
	Flushes   atomic.Int64
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics for
// inspection by callers and tests.
type MetricsSnapshot struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Flushes   int64
}

// Snapshot reads all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:      m.Hits.Load(),
		Misses:    m.Misses.Load(),
		Evictions: m.Evictions.Load(),
		Flushes:   m.Flushes.Load(),
	}
}
