package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one x/time/rate bucket per key and forgets keys idle
// for longer than ttl.
type MemoryLimiter struct {
	mu      sync.Mutex
	m       map[string]*memEntry
	ttl     time.Duration
	cleanup time.Duration
	stopCh  chan struct{}
	once    sync.Once
	now     func() time.Time
}

func NewMemoryLimiter(ttl time.Duration, cleanupEvery time.Duration) *MemoryLimiter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if cleanupEvery <= 0 {
		cleanupEvery = time.Minute
	}
	ml := &MemoryLimiter{
		m:       make(map[string]*memEntry),
		ttl:     ttl,
		cleanup: cleanupEvery,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go ml.gcLoop()
	return ml
}

func (m *MemoryLimiter) gcLoop() {
	t := time.NewTicker(m.cleanup)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryLimiter) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.m {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.m, k)
		}
	}
}

// Len reports how many keys are currently tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, p Policy) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	e := m.m[key]
	if e == nil {
		e = &memEntry{lim: rate.NewLimiter(rate.Limit(p.RPS), p.Burst)}
		m.m[key] = e
	} else {
		// Config reloads may change the policy under an existing key.
		if e.lim.Limit() != rate.Limit(p.RPS) {
			e.lim.SetLimitAt(now, rate.Limit(p.RPS))
		}
		if e.lim.Burst() != p.Burst {
			e.lim.SetBurstAt(now, p.Burst)
		}
	}
	e.lastSeen = now
	lim := e.lim
	m.mu.Unlock()

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return Decision{RetryAfter: time.Second}, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return Decision{RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: max(lim.TokensAt(now), 0)}, nil
}

func (m *MemoryLimiter) Close() error {
	m.once.Do(func() { close(m.stopCh) })
	return nil
}
