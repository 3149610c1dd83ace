package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// perIPMaxAge is how long an idle client keeps its limiter.
	perIPMaxAge = 10 * time.Minute
	// perIPMaxEntries caps the table; the least recently seen client is
	// evicted first.
	perIPMaxEntries      = 10000
	perIPCleanupInterval = time.Minute
)

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// RateLimiter is a token bucket per client IP. Script invocations are
// expensive, so one noisy client must not starve the others.
type RateLimiter struct {
	limiter *perIPLimiter
}

// NewRateLimiter returns nil when rate limiting is disabled. A nil
// *RateLimiter passes every request through.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if !config.Enabled {
		return nil
	}
	return &RateLimiter{limiter: newPerIPLimiter(config.RequestsPerSecond, config.Burst)}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.limiter.getLimiter(getClientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeMessage(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Close stops the background cleanup.
func (rl *RateLimiter) Close() {
	if rl == nil {
		return
	}
	rl.limiter.stop()
}

type ipLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type perIPLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiterEntry
	rps      rate.Limit
	burst    int

	done     chan struct{}
	stopOnce sync.Once
}

func newPerIPLimiter(rps float64, burst int) *perIPLimiter {
	l := &perIPLimiter{
		limiters: make(map[string]*ipLimiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		done:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *perIPLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.limiters[ip]
	if !exists {
		if len(l.limiters) >= perIPMaxEntries {
			l.evictOldest()
		}
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

func (l *perIPLimiter) cleanupLoop() {
	ticker := time.NewTicker(perIPCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *perIPLimiter) cleanup() {
	cutoff := time.Now().Add(-perIPMaxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// evictOldest must be called with l.mu held.
func (l *perIPLimiter) evictOldest() {
	var oldestIP string
	var oldest time.Time

	for ip, entry := range l.limiters {
		if oldestIP == "" || entry.lastAccess.Before(oldest) {
			oldestIP = ip
			oldest = entry.lastAccess
		}
	}
	if oldestIP != "" {
		delete(l.limiters, oldestIP)
	}
}

func (l *perIPLimiter) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// getClientIP prefers proxy headers, then the connection address without
// its port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
