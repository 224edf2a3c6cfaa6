package mw

import (
	"net/http"

	"github.com/3xpluto/go-reqbin/internal/httpx"
)

// MaxBodyBytes rejects declared oversize bodies up front and caps the rest.
// Handlers see *http.MaxBytesError from the body reader when a chunked
// upload crosses the limit.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				httpx.TooLarge(w, limit)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
