package explorer

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between requests across every adapter
// sharing it. A single next-allowed timestamp is advanced under a mutex, so
// concurrent workers queue up and each gets its own slot.
type Limiter struct {
	mu       sync.Mutex
	next     time.Time
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewLimiter builds a limiter with the given minimum inter-request interval.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval, sleep: sleepCtx}
}

// Wait blocks until the caller's slot arrives or ctx is done. The slot is
// reserved before sleeping, so other callers line up behind it.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	return l.sleep(ctx, time.Until(slot))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
