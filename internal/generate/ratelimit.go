package generate

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds backend calls per identity inside a rolling window.
// Exceeded only peeks; Acquire consumes one slot and reports whether it got one.
type RateLimiter interface {
	Exceeded(ctx context.Context, identity string) (bool, error)
	Acquire(ctx context.Context, identity string) (bool, error)
}

type rateWindow struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// MemoryRateLimiter keeps one window per identity. Identities never share a
// lock.
type MemoryRateLimiter struct {
	Limit  int
	Window time.Duration
	Now    func() time.Time

	windows sync.Map
}

func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryRateLimiter{Limit: limit, Window: window, Now: time.Now}
}

func (l *MemoryRateLimiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *MemoryRateLimiter) window(identity string) *rateWindow {
	if w, ok := l.windows.Load(identity); ok {
		return w.(*rateWindow)
	}
	w, _ := l.windows.LoadOrStore(identity, &rateWindow{})
	return w.(*rateWindow)
}

// roll resets the window when it has expired. Caller holds w.mu.
func (l *MemoryRateLimiter) roll(w *rateWindow, now time.Time) {
	if w.windowStart.IsZero() || now.Sub(w.windowStart) >= l.Window || now.Before(w.windowStart) {
		w.windowStart = now
		w.count = 0
	}
}

func (l *MemoryRateLimiter) Exceeded(ctx context.Context, identity string) (bool, error) {
	w := l.window(identity)
	w.mu.Lock()
	defer w.mu.Unlock()
	l.roll(w, l.now())
	return w.count >= l.Limit, nil
}

func (l *MemoryRateLimiter) Acquire(ctx context.Context, identity string) (bool, error) {
	w := l.window(identity)
	w.mu.Lock()
	defer w.mu.Unlock()
	l.roll(w, l.now())
	if w.count >= l.Limit {
		return false, nil
	}
	w.count++
	return true, nil
}
