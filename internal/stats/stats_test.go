package stats

import (
	"testing"
	"time"

	"github.com/haskel/agupredict/internal/invoker"
	"github.com/haskel/agupredict/internal/monitor"
)

func TestNewTracker_DefaultAlpha(t *testing.T) {
	for _, alpha := range []float64{0, -1, 1.5} {
		tr := NewTracker(alpha)
		if tr.alpha != 0.2 {
			t.Errorf("alpha %f: expected default 0.2, got %f", alpha, tr.alpha)
		}
	}
}

func TestTracker_RecordAndAverage(t *testing.T) {
	tr := NewTracker(0.5) // Use 0.5 for easier math

	tr.Record(invoker.Outcome{
		Operation: "train",
		Duration:  100 * time.Millisecond,
		Usage:     monitor.ProcessUsage{PeakRSSBytes: 1000, Samples: 1},
	})

	s := tr.GetOperationStats("train")
	if s == nil {
		t.Fatal("expected stats, got nil")
	}
	if s.AvgDurationMS != 100 {
		t.Errorf("expected avg duration 100, got %f", s.AvgDurationMS)
	}
	if s.AvgPeakRSSBytes != 1000 {
		t.Errorf("expected avg rss 1000, got %f", s.AvgPeakRSSBytes)
	}

	tr.Record(invoker.Outcome{
		Operation: "train",
		Duration:  300 * time.Millisecond,
		Kind:      invoker.KindExit,
		Usage:     monitor.ProcessUsage{PeakRSSBytes: 3000, Samples: 2},
	})

	// With alpha=0.5: new_avg = 0.5 * 300 + 0.5 * 100 = 200
	s = tr.GetOperationStats("train")
	if s.AvgDurationMS != 200 {
		t.Errorf("expected avg duration 200, got %f", s.AvgDurationMS)
	}
	if s.AvgPeakRSSBytes != 2000 {
		t.Errorf("expected avg rss 2000, got %f", s.AvgPeakRSSBytes)
	}
	if s.Count != 2 || s.Succeeded != 1 {
		t.Errorf("expected count 2 succeeded 1, got %d/%d", s.Count, s.Succeeded)
	}
	if s.Failed["exit"] != 1 {
		t.Errorf("expected one exit failure, got %v", s.Failed)
	}
	if s.LastFailureKind != "exit" {
		t.Errorf("expected last failure kind exit, got %s", s.LastFailureKind)
	}
}

func TestTracker_UnsampledRunKeepsRSSAverage(t *testing.T) {
	tr := NewTracker(0.5)

	tr.Record(invoker.Outcome{Operation: "predict", Usage: monitor.ProcessUsage{PeakRSSBytes: 1000, Samples: 1}})
	tr.Record(invoker.Outcome{Operation: "predict", Kind: invoker.KindLaunch})

	if got := tr.GetOperationStats("predict").AvgPeakRSSBytes; got != 1000 {
		t.Errorf("expected rss average untouched by unsampled run, got %f", got)
	}
}

func TestTracker_UnknownOperation(t *testing.T) {
	tr := NewTracker(0.2)
	if tr.GetOperationStats("unknown") != nil {
		t.Error("expected nil for unknown operation")
	}
}

func TestTracker_GetStats(t *testing.T) {
	tr := NewTracker(0.2)

	tr.Record(invoker.Outcome{Operation: "train"})
	tr.Record(invoker.Outcome{Operation: "train"})
	tr.Record(invoker.Outcome{Operation: "predict", Kind: invoker.KindValidation})

	all := tr.GetStats()
	if all.Invocations != 3 {
		t.Errorf("expected 3 invocations, got %d", all.Invocations)
	}
	if len(all.Operations) != 2 {
		t.Errorf("expected 2 operations, got %d", len(all.Operations))
	}

	// Snapshots are copies.
	all.Operations["predict"].Failed["validation"] = 99
	if tr.GetOperationStats("predict").Failed["validation"] != 1 {
		t.Error("mutating a snapshot must not change tracked state")
	}
}

func TestTracker_ObserverAndLoad(t *testing.T) {
	tr := NewTracker(0.2)

	var seen []*OperationStats
	tr.SetObserver(func(s *OperationStats) { seen = append(seen, s) })

	tr.Record(invoker.Outcome{Operation: "train"})
	if len(seen) != 1 || seen[0].Count != 1 {
		t.Fatalf("expected observer call with count 1, got %+v", seen)
	}

	restored := NewTracker(0.2)
	restored.LoadStats(tr.GetStats())

	if s := restored.GetOperationStats("train"); s == nil || s.Count != 1 {
		t.Errorf("expected loaded stats, got %+v", s)
	}
}
