package report

import (
	"context"
	"sync"
)

// Collector keeps runs in memory for quick inspection.
type Collector struct {
	mu   sync.Mutex
	runs []Run
}

// NewCollector creates an empty collector optionally pre-sizing storage.
func NewCollector(capacity int) *Collector {
	if capacity < 0 {
		capacity = 0
	}
	return &Collector{runs: make([]Run, 0, capacity)}
}

// Name returns the sink identifier.
func (c *Collector) Name() string { return "collector" }

// Publish appends a run.
func (c *Collector) Publish(_ context.Context, run Run) error {
	c.mu.Lock()
	c.runs = append(c.runs, run)
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the collected runs.
func (c *Collector) Snapshot() []Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Run, len(c.runs))
	copy(out, c.runs)
	return out
}

// Summary counts the collected runs by status.
func (c *Collector) Summary() (ok, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, run := range c.runs {
		if run.Status == StatusError {
			failed++
			continue
		}
		ok++
	}
	return ok, failed
}
