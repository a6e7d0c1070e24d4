package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one x/time/rate limiter per client in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	policy  Policy
	now     func() time.Time
}

func NewMemoryLimiter(policy Policy, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		clients: make(map[string]*clientBucket),
		policy:  policy,
		now:     now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (*Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}

	now := l.now()

	l.mu.Lock()
	bucket, ok := l.clients[key]
	if !ok {
		bucket = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(l.policy.rate()), l.policy.Requests),
		}
		l.clients[key] = bucket
	}
	bucket.lastSeen = now
	allowed := bucket.limiter.AllowN(now, 1)
	remaining := bucket.limiter.TokensAt(now)
	l.mu.Unlock()

	return bucketResult(allowed, remaining, l.policy.rate(), l.policy.Requests, now), nil
}

// Sweep drops clients not seen for longer than idle.
func (l *MemoryLimiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, bucket := range l.clients {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// RunCleanup sweeps idle clients every interval until stop is closed.
func (l *MemoryLimiter) RunCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep(interval)
		case <-stop:
			return
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
