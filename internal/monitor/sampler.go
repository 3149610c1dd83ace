package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessUsage is the peak resource usage observed for one child process.
type ProcessUsage struct {
	PeakRSSBytes   uint64  `json:"peak_rss_bytes"`
	PeakCPUPercent float64 `json:"peak_cpu_percent"`
	Samples        int     `json:"samples"`
}

// Sampler polls a running process until stopped. A nil Sampler is valid
// and reports zero usage.
type Sampler struct {
	proc     *process.Process
	interval time.Duration

	mu     sync.Mutex
	usage  ProcessUsage
	cancel context.CancelFunc
	done   chan struct{}
}

// StartSampler begins sampling pid every interval. It returns nil when
// interval is not positive or the process cannot be attached to, which
// is the case when it has already exited.
func StartSampler(ctx context.Context, pid int, interval time.Duration) *Sampler {
	if interval <= 0 || pid <= 0 {
		return nil
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Sampler{
		proc:     proc,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.loop(ctx)

	return s
}

// Stop ends sampling and returns the peaks seen so far.
func (s *Sampler) Stop() ProcessUsage {
	if s == nil {
		return ProcessUsage{}
	}

	s.cancel()
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func (s *Sampler) loop(ctx context.Context) {
	defer close(s.done)

	s.sample(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *Sampler) sample(ctx context.Context) {
	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		// Process is gone or not readable; keep what we have.
		return
	}

	cpuPercent, err := s.proc.PercentWithContext(ctx, 0)
	if err != nil {
		cpuPercent = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage.Samples++
	if mem.RSS > s.usage.PeakRSSBytes {
		s.usage.PeakRSSBytes = mem.RSS
	}
	if cpuPercent > s.usage.PeakCPUPercent {
		s.usage.PeakCPUPercent = cpuPercent
	}
}
