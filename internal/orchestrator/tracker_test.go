package orchestrator

import (
	"fmt"
	"testing"
	"time"
)

func TestTrackerRecentNewestFirst(t *testing.T) {
	tr := NewUsageTracker(10)
	for i := 0; i < 3; i++ {
		tr.Record(UsageEvent{PluginID: fmt.Sprintf("p%d", i), Success: true, At: time.Now()})
	}

	recent := tr.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}
	if recent[0].PluginID != "p2" || recent[1].PluginID != "p1" {
		t.Errorf("order = %s, %s", recent[0].PluginID, recent[1].PluginID)
	}
}

func TestTrackerBoundedHistory(t *testing.T) {
	tr := NewUsageTracker(5)
	for i := 0; i < 20; i++ {
		tr.Record(UsageEvent{PluginID: "search"})
	}

	if got := len(tr.Recent(0)); got != 5 {
		t.Errorf("history = %d, want 5", got)
	}
	if tr.Counts()["search"] != 20 {
		t.Errorf("count = %d, want 20 (counts survive trimming)", tr.Counts()["search"])
	}
}

func TestTrackerCountsPerPlugin(t *testing.T) {
	tr := NewUsageTracker(0)
	tr.Record(UsageEvent{PluginID: "a"})
	tr.Record(UsageEvent{PluginID: "a"})
	tr.Record(UsageEvent{PluginID: "b", Success: true})

	counts := tr.Counts()
	if counts["a"] != 2 || counts["b"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
