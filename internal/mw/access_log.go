package mw

import (
	"log/slog"
	"net/http"

	"github.com/3xpluto/go-reqbin/internal/httpx"
)

// AccessLog writes one http_request line per request. Server errors are
// logged at warn so they stand out from client traffic.
func AccessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := httpx.Observe(next, w, r)

			level := slog.LevelInfo
			if res.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			log.LogAttrs(r.Context(), level, "http_request",
				slog.String("rid", RID(r.Context())),
				slog.String("route", RouteName(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr),
				slog.Int("status", res.Status),
				slog.Int64("bytes", res.Bytes),
				slog.String("duration", res.Duration.String()),
			)
		})
	}
}
