package fetcher

import (
	"context"
	"sync"
	"time"
)

// hostLimiter enforces politeness per host authority: at most one request
// in flight, and consecutive request starts separated by at least
// minInterval. The slot is held for the whole request including body read,
// so retries of the same host also queue here.
type hostLimiter struct {
	minInterval time.Duration

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	slot      chan struct{} // capacity 1; holder owns lastStart
	lastStart time.Time
}

func newHostLimiter(minInterval time.Duration) *hostLimiter {
	return &hostLimiter{
		minInterval: minInterval,
		hosts:       make(map[string]*hostSlot),
	}
}

// acquire blocks until the host's slot is free and the spacing since the
// previous request start has elapsed. The returned release func must be
// called exactly once, after the response body has been consumed.
func (l *hostLimiter) acquire(ctx context.Context, host string) (func(), error) {
	l.mu.Lock()
	hs, ok := l.hosts[host]
	if !ok {
		hs = &hostSlot{slot: make(chan struct{}, 1)}
		l.hosts[host] = hs
	}
	l.mu.Unlock()

	select {
	case hs.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if wait := l.minInterval - time.Since(hs.lastStart); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			<-hs.slot
			return nil, ctx.Err()
		}
	}
	hs.lastStart = time.Now()

	return func() { <-hs.slot }, nil
}
