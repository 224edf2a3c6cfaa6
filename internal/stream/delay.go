package stream

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDelay is returned for delays that are not finite numbers.
var ErrInvalidDelay = errors.New("invalid delay")

// ParseDelay reads a delay in seconds, clamped to [0, limit].
func ParseDelay(raw string, limit time.Duration) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, ErrInvalidDelay
	}
	secs = min(max(secs, 0), limit.Seconds())
	return time.Duration(secs * float64(time.Second)), nil
}

// Sleep blocks for d or until ctx is done, whichever comes first. Only the
// calling goroutine waits.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
