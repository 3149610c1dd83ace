package stats

import (
	"sync"
	"time"

	"github.com/haskel/agupredict/internal/invoker"
)

// OperationStats holds aggregated statistics for one operation.
type OperationStats struct {
	Operation        string           `json:"operation"`
	Count            int64            `json:"count"`
	Succeeded        int64            `json:"succeeded"`
	Failed           map[string]int64 `json:"failed"`
	AvgDurationMS    float64          `json:"avg_duration_ms"`
	AvgPeakRSSBytes  float64          `json:"avg_peak_rss_bytes"`
	LastInvocationAt time.Time        `json:"last_invocation_at"`
	LastFailureKind  string           `json:"last_failure_kind,omitempty"`
}

// AllStats holds statistics for all operations.
type AllStats struct {
	Operations  map[string]*OperationStats `json:"operations"`
	Invocations int64                      `json:"invocations"`
}

// Observer is notified after each recorded outcome.
type Observer func(stats *OperationStats)

// Tracker aggregates invocation outcomes with an exponential moving
// average over duration and peak memory.
type Tracker struct {
	mu       sync.RWMutex
	ops      map[string]*OperationStats
	alpha    float64 // smoothing factor (0 < alpha <= 1)
	observer Observer
	now      func() time.Time
}

// NewTracker creates a Tracker. Alpha outside (0, 1] falls back to 0.2.
func NewTracker(alpha float64) *Tracker {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &Tracker{
		ops:   make(map[string]*OperationStats),
		alpha: alpha,
		now:   time.Now,
	}
}

// Record folds one outcome in. It has the shape of an invoker.Observer.
func (t *Tracker) Record(o invoker.Outcome) {
	durationMS := float64(o.Duration) / float64(time.Millisecond)
	rss := float64(o.Usage.PeakRSSBytes)

	t.mu.Lock()

	s, exists := t.ops[o.Operation]
	if !exists {
		s = &OperationStats{
			Operation:       o.Operation,
			Failed:          make(map[string]int64),
			AvgDurationMS:   durationMS,
			AvgPeakRSSBytes: rss,
		}
		t.ops[o.Operation] = s
	} else {
		// new_avg = alpha * value + (1 - alpha) * old_avg
		s.AvgDurationMS = t.alpha*durationMS + (1-t.alpha)*s.AvgDurationMS
		if o.Usage.Samples > 0 {
			s.AvgPeakRSSBytes = t.alpha*rss + (1-t.alpha)*s.AvgPeakRSSBytes
		}
	}

	s.Count++
	s.LastInvocationAt = t.now()
	if o.Kind == "" {
		s.Succeeded++
	} else {
		s.Failed[string(o.Kind)]++
		s.LastFailureKind = string(o.Kind)
	}

	snapshot := s.clone()
	observer := t.observer

	t.mu.Unlock()

	// Notify observer outside of lock
	if observer != nil {
		observer(snapshot)
	}
}

func (t *Tracker) GetStats() *AllStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := &AllStats{
		Operations: make(map[string]*OperationStats, len(t.ops)),
	}
	for op, s := range t.ops {
		result.Operations[op] = s.clone()
		result.Invocations += s.Count
	}
	return result
}

// GetOperationStats returns nil for an operation never invoked.
func (t *Tracker) GetOperationStats(operation string) *OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, exists := t.ops[operation]
	if !exists {
		return nil
	}
	return s.clone()
}

// LoadStats replaces the tracked state, typically with persisted data.
func (t *Tracker) LoadStats(all *AllStats) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops = make(map[string]*OperationStats, len(all.Operations))
	for op, s := range all.Operations {
		c := s.clone()
		c.Operation = op
		t.ops[op] = c
	}
}

func (t *Tracker) SetObserver(observer Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = observer
}

func (s *OperationStats) clone() *OperationStats {
	c := *s
	c.Failed = make(map[string]int64, len(s.Failed))
	for k, v := range s.Failed {
		c.Failed[k] = v
	}
	return &c
}
