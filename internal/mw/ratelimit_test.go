package mw

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/3xpluto/go-reqbin/internal/netx"
	"github.com/3xpluto/go-reqbin/internal/ratelimit"
)

func TestIPResolverTrustedProxyUsesXFF(t *testing.T) {
	set, err := netx.ParseCIDRSet([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}
	r := IPResolver{Trusted: set}

	req, _ := http.NewRequest("GET", "http://example.com/", nil)
	req.RemoteAddr = "10.1.2.3:1234" // trusted proxy
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")

	if got := r.ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected client ip from xff, got %q", got)
	}
}

func TestIPResolverTrustedProxyFallsBackToRealIP(t *testing.T) {
	set, _ := netx.ParseCIDRSet([]string{"10.0.0.0/8"})
	r := IPResolver{Trusted: set}

	req, _ := http.NewRequest("GET", "http://example.com/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Real-Ip", "198.51.100.4")

	if got := r.ClientIP(req); got != "198.51.100.4" {
		t.Fatalf("expected client ip from x-real-ip, got %q", got)
	}
}

func TestIPResolverUntrustedIgnoresXFF(t *testing.T) {
	set, err := netx.ParseCIDRSet([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}
	r := IPResolver{Trusted: set}

	req, _ := http.NewRequest("GET", "http://example.com/", nil)
	req.RemoteAddr = "192.168.1.5:1234" // not trusted
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	if got := r.ClientIP(req); got != "192.168.1.5" {
		t.Fatalf("expected remote ip, got %q", got)
	}
}

type stubLimiter struct {
	dec  ratelimit.Decision
	err  error
	keys []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ ratelimit.Policy) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return s.dec, s.err
}

func (s *stubLimiter) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitRejects(t *testing.T) {
	lim := &stubLimiter{dec: ratelimit.Decision{RetryAfter: 1500 * time.Millisecond}}
	cfg := RateLimitConfig{Enabled: true, Policy: ratelimit.Policy{RPS: 1, Burst: 1}, Scope: "ip", RouteName: "get"}
	h := RateLimit(lim, IPResolver{}, cfg, nil, discardLogger())(okHandler())

	req := httptest.NewRequest("GET", "/get", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
	if len(lim.keys) != 1 || lim.keys[0] != "rl:get:ip:192.0.2.1" {
		t.Fatalf("unexpected limiter keys %v", lim.keys)
	}
}

func TestRateLimitUserScopeUsesSubject(t *testing.T) {
	lim := &stubLimiter{dec: ratelimit.Decision{Allowed: true, Remaining: 4}}
	cfg := RateLimitConfig{Enabled: true, Policy: ratelimit.Policy{RPS: 5, Burst: 5}, Scope: "user", RouteName: "anything"}
	h := RateLimit(lim, IPResolver{}, cfg, nil, discardLogger())(okHandler())

	req := httptest.NewRequest("GET", "/anything", nil)
	req = withSubject(req, "user_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lim.keys[0] != "rl:anything:u:user_123" {
		t.Fatalf("unexpected key %q", lim.keys[0])
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Fatalf("expected remaining 4, got %q", got)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	lim := &stubLimiter{err: errors.New("redis down")}
	cfg := RateLimitConfig{Enabled: true, Policy: ratelimit.Policy{RPS: 1, Burst: 1}, RouteName: "get"}
	h := RateLimit(lim, IPResolver{}, cfg, nil, discardLogger())(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/get", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", rec.Code)
	}
}

func TestRateLimitDisabledIsPassthrough(t *testing.T) {
	lim := &stubLimiter{}
	h := RateLimit(lim, IPResolver{}, RateLimitConfig{}, nil, discardLogger())(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/get", nil))
	if len(lim.keys) != 0 {
		t.Fatalf("limiter should not be consulted, got %v", lim.keys)
	}
}
