package metrics

import (
	"sync/atomic"
	"time"
)

// Collector accumulates request counters lock-free so the logging
// middleware can record on the hot path.
type Collector struct {
	requests   atomic.Uint64
	clientErrs atomic.Uint64
	serverErrs atomic.Uint64
	durationMs atomic.Uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, d time.Duration) {
	c.requests.Add(1)
	switch {
	case status >= 500:
		c.serverErrs.Add(1)
	case status >= 400:
		c.clientErrs.Add(1)
	}
	c.durationMs.Add(uint64(d.Milliseconds()))
}

func (c *Collector) Snapshot() map[string]any {
	total := c.requests.Load()
	ms := c.durationMs.Load()
	avg := float64(0)
	if total > 0 {
		avg = float64(ms) / float64(total)
	}
	return map[string]any{
		"requestsTotal":   total,
		"clientErrors":    c.clientErrs.Load(),
		"serverErrors":    c.serverErrs.Load(),
		"avgDurationMs":   avg,
		"totalDurationMs": ms,
	}
}
