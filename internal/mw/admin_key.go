package mw

import (
	"crypto/subtle"
	"net/http"

	"github.com/3xpluto/go-reqbin/internal/httpx"
)

const AdminKeyHeader = "X-Admin-Key"

func RequireAdminKey(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// If no key configured, do not expose admin endpoints at all.
		if adminKey == "" {
			return http.NotFoundHandler()
		}
		want := []byte(adminKey)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(AdminKeyHeader))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				httpx.Error(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
