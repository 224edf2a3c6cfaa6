// Package ratelimit implements token bucket limiters keyed by an arbitrary
// string, in process or shared through Redis.
package ratelimit

import (
	"context"
	"time"
)

// Policy is a token bucket refilled at RPS tokens per second holding at
// most Burst tokens.
type Policy struct {
	RPS   float64
	Burst int
}

type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the wait up to whole seconds for Retry-After.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed || d.RetryAfter <= 0 {
		return 0
	}
	return int((d.RetryAfter + time.Second - 1) / time.Second)
}

type Limiter interface {
	// Allow takes one token from the bucket named key.
	Allow(ctx context.Context, key string, p Policy) (Decision, error)
	Close() error
}
