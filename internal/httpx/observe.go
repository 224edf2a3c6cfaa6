// Package httpx holds small response helpers shared by middleware and
// handlers.
package httpx

import (
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
)

// Result describes a served response.
type Result struct {
	Status   int
	Bytes    int64
	Duration time.Duration
}

// Observe serves r through next and reports what was written. The writer
// handed to next keeps every optional interface of w, so streaming handlers
// can still flush.
func Observe(next http.Handler, w http.ResponseWriter, r *http.Request) Result {
	m := httpsnoop.CaptureMetrics(next, w, r)
	return Result{Status: m.Code, Bytes: m.Written, Duration: m.Duration}
}
