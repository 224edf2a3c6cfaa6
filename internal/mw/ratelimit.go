package mw

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/3xpluto/go-reqbin/internal/httpx"
	"github.com/3xpluto/go-reqbin/internal/netx"
	"github.com/3xpluto/go-reqbin/internal/ratelimit"
)

type RateLimitConfig struct {
	Enabled   bool
	Policy    ratelimit.Policy
	Scope     string // "user" | "ip"
	RouteName string
}

// IPResolver finds the client address for limiter keys. Forwarded headers
// are only believed when the peer is a trusted proxy. This is separate from
// the echoed origin, which always reports X-Forwarded-For verbatim.
type IPResolver struct {
	Trusted *netx.CIDRSet
}

func (r IPResolver) ClientIP(req *http.Request) string {
	remoteIP, ok := netx.RemoteAddr(req.RemoteAddr)
	if ok && r.Trusted.Contains(remoteIP) {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			// first IP is original client (left-most)
			first, _, _ := strings.Cut(xff, ",")
			if ip, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return ip.Unmap().String()
			}
		}
		if xrip, err := netip.ParseAddr(strings.TrimSpace(req.Header.Get("X-Real-Ip"))); err == nil {
			return xrip.Unmap().String()
		}
	}
	if ok {
		return remoteIP.String()
	}
	return req.RemoteAddr
}

func RateLimit(limiter ratelimit.Limiter, ipr IPResolver, cfg RateLimitConfig, m *Metrics, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || limiter == nil {
			return next
		}
		scope := strings.ToLower(cfg.Scope)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "rl:" + cfg.RouteName + ":"
			actor := "ip"
			if sub, ok := Subject(r.Context()); ok && scope == "user" {
				key += "u:" + sub
				actor = "user"
			} else {
				key += "ip:" + ipr.ClientIP(r)
			}

			dec, err := limiter.Allow(r.Context(), key, cfg.Policy)
			if err != nil {
				// Fail open: a limiter outage must not take the service down.
				log.Warn("rate limiter error", slog.String("route", cfg.RouteName), slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Route", cfg.RouteName)
			h.Set("X-RateLimit-Scope", actor)
			h.Set("X-RateLimit-Limit-RPS", trimFloat(cfg.Policy.RPS))
			h.Set("X-RateLimit-Burst", strconv.Itoa(cfg.Policy.Burst))
			if dec.Allowed {
				h.Set("X-RateLimit-Remaining", trimFloat(dec.Remaining))
				next.ServeHTTP(w, r)
				return
			}

			retry := dec.RetryAfterSeconds()
			m.reject(r.Context(), "rate_limit")
			h.Set("Retry-After", strconv.Itoa(retry))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(dec.RetryAfter).Unix(), 10))
			httpx.Error(w, http.StatusTooManyRequests, "rate_limited", map[string]any{
				"route":               cfg.RouteName,
				"scope":               actor,
				"retry_after_seconds": retry,
			})
		})
	}
}

func trimFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" {
		s = "0"
	}
	return s
}
