package orchestrator

import (
	"sync"
	"time"
)

const defaultTrackerCapacity = 100

// UsageEvent is one plugin execution, successful or not.
type UsageEvent struct {
	PluginID string        `json:"plugin_id"`
	Reason   string        `json:"reason"`
	Success  bool          `json:"success"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	At       time.Time     `json:"at"`
}

// UsageTracker keeps a bounded, process-wide history of plugin
// executions across requests, newest last. Shared by concurrent
// loops.
type UsageTracker struct {
	mu     sync.Mutex
	events []UsageEvent
	counts map[string]int
	cap    int
}

func NewUsageTracker(capacity int) *UsageTracker {
	if capacity <= 0 {
		capacity = defaultTrackerCapacity
	}
	return &UsageTracker{
		counts: make(map[string]int),
		cap:    capacity,
	}
}

func (t *UsageTracker) Record(ev UsageEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[ev.PluginID]++
	t.events = append(t.events, ev)
	if len(t.events) > t.cap {
		t.events = t.events[len(t.events)-t.cap:]
	}
}

// Recent returns up to n events, newest first.
func (t *UsageTracker) Recent(n int) []UsageEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > len(t.events) {
		n = len(t.events)
	}
	out := make([]UsageEvent, n)
	for i := 0; i < n; i++ {
		out[i] = t.events[len(t.events)-1-i]
	}
	return out
}

// Counts returns total executions per plugin id since process start.
func (t *UsageTracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}
