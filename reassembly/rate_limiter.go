package reassembly

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// RateLimiter caps the fragments accepted per source address inside a
// sliding window. Counts reset when the window rotates.
type RateLimiter struct {
	mu           sync.Mutex
	current      map[netip.Addr]*atomic.Int64
	windowStart  time.Time
	window       time.Duration
	maxPerWindow int64

	rejected atomic.Int64
}

// RateLimiterConfig configures per-source fragment limiting.
type RateLimiterConfig struct {
	MaxPerSource int           // allowance per source per window (0 = disabled)
	Window       time.Duration // window size (default 10s)
}

// NewRateLimiter returns a limiter, or nil when MaxPerSource is not positive.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.MaxPerSource <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Second
	}
	return &RateLimiter{
		current:      make(map[netip.Addr]*atomic.Int64),
		windowStart:  time.Now(),
		window:       cfg.Window,
		maxPerWindow: int64(cfg.MaxPerSource),
	}
}

// Allow reports whether a fragment from src fits the current window.
func (l *RateLimiter) Allow(src netip.Addr, now time.Time) bool {
	l.mu.Lock()

	if now.Sub(l.windowStart) >= l.window {
		l.current = make(map[netip.Addr]*atomic.Int64)
		l.windowStart = now
	}

	counter, ok := l.current[src]
	if !ok {
		counter = &atomic.Int64{}
		l.current[src] = counter
	}
	l.mu.Unlock()

	if counter.Add(1) > l.maxPerWindow {
		l.rejected.Add(1)
		return false
	}
	return true
}

// Rejected returns the total fragments turned away so far.
func (l *RateLimiter) Rejected() int64 {
	return l.rejected.Load()
}

// ActiveSources returns the distinct sources seen in the current window.
func (l *RateLimiter) ActiveSources() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.current)
}
