package mw

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/3xpluto/go-reqbin/internal/httpx"
)

// Recover turns a handler panic into a 500. Panics mark broken internal
// contracts, so the value and stack are logged at error level.
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic",
					slog.String("rid", RID(r.Context())),
					slog.String("route", RouteName(r.Context())),
					slog.Any("value", rec),
					slog.String("stack", string(debug.Stack())),
				)
				httpx.Error(w, http.StatusInternalServerError, "internal_error", nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
