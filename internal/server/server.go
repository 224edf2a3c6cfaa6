// Package server assembles the reqbin HTTP handler: the httpbin routes
// behind the ambient middleware, plus health, metrics and admin endpoints.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/3xpluto/go-reqbin/internal/config"
	"github.com/3xpluto/go-reqbin/internal/httpbin"
	"github.com/3xpluto/go-reqbin/internal/mw"
	"github.com/3xpluto/go-reqbin/internal/netx"
	"github.com/3xpluto/go-reqbin/internal/ratelimit"
)

// Deps are the process level collaborators the handler needs.
type Deps struct {
	Log      *slog.Logger
	Registry *prometheus.Registry
	// Nil disables rate limiting regardless of config.
	Limiter ratelimit.Limiter
	// Backend names the limiter actually in use, for /-/status.
	Backend  string
	AdminKey string
	// Rand overrides the weighted status draw; nil uses math/rand/v2.
	Rand func() float64
}

// routePolicy is the effective limit set for one route after overrides.
type routePolicy struct {
	rateLimit mw.RateLimitConfig
	sem       *mw.Semaphore
}

// Server is the assembled handler and the state its admin endpoints report.
type Server struct {
	cfg      *config.Config
	deps     Deps
	app      *httpbin.Server
	metrics  *mw.Metrics
	policies map[string]routePolicy
	started  time.Time
	handler  http.Handler
}

// New builds the handler tree from cfg. cfg must already be validated.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("server: logger is required")
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	trusted, err := netx.ParseCIDRSet(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("server.trusted_proxies: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		deps:     deps,
		metrics:  mw.NewMetrics(deps.Registry),
		policies: map[string]routePolicy{},
		started:  time.Now(),
	}
	s.app = httpbin.New(httpbin.Options{
		MaxDelay:       time.Duration(cfg.Limits.MaxDelaySeconds * float64(time.Second)),
		MaxStreamLines: cfg.Limits.MaxStreamLines,
		MaxRedirects:   cfg.Limits.MaxRedirects,
		Rand:           deps.Rand,
		OnStreamLines: func(n int) {
			s.metrics.StreamLines.Add(float64(n))
		},
	})

	if err := s.buildPolicies(); err != nil {
		return nil, err
	}

	var auth mw.AuthHandler
	if cfg.Auth.HMACSecret != "" {
		auth = mw.Authenticator{HMACSecret: []byte(cfg.Auth.HMACSecret)}
	}
	ipr := mw.IPResolver{Trusted: trusted}

	// Outermost to innermost. Recover sits inside the access log so a
	// panic is still logged as a 500.
	base := func(route string) alice.Chain {
		return alice.New(
			mw.RequestID,
			mw.WithRoute(route),
			mw.Instrument(s.metrics),
			mw.AccessLog(deps.Log),
			mw.Recover(deps.Log),
		)
	}

	r := mux.NewRouter()
	r.Handle("/healthz", base("healthz").ThenFunc(healthz)).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	admin := func(route string, h http.HandlerFunc) http.Handler {
		return base(route).Append(mw.RequireAdminKey(deps.AdminKey)).ThenFunc(h)
	}
	r.Handle("/-/status", admin("admin_status", s.adminStatus)).Methods(http.MethodGet)
	r.Handle("/-/routes", admin("admin_routes", s.adminRoutes)).Methods(http.MethodGet)

	s.app.Mount(r, func(name string, h http.Handler) http.Handler {
		p := s.policies[name]
		c := base(name)
		if auth != nil {
			c = c.Append(mw.OptionalAuth(auth))
		}
		c = c.Append(
			mw.RateLimit(deps.Limiter, ipr, p.rateLimit, s.metrics, deps.Log),
			mw.ConcurrencyLimit(p.sem, s.metrics),
		)
		return c.Then(h)
	})

	r.NotFoundHandler = base("not_found").Then(http.NotFoundHandler())
	r.MethodNotAllowedHandler = base("method_not_allowed").ThenFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	s.handler = alice.New(
		mw.CORS(mw.CORSConfig{
			Enabled:        cfg.CORS.IsEnabled(),
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			MaxAgeSeconds:  cfg.CORS.MaxAgeSeconds,
		}),
		mw.MaxBodyBytes(cfg.Server.MaxBodyBytes),
	).Then(r)
	return s, nil
}

// buildPolicies merges per-route overrides into the global rate limit and
// creates the route semaphores. Overrides naming unknown routes are
// rejected so typos do not silently disable a limit.
func (s *Server) buildPolicies() error {
	known := map[string]bool{}
	for _, rt := range s.app.Routes() {
		known[rt.Name] = true
	}
	overrides := map[string]config.RouteConfig{}
	for _, rc := range s.cfg.Routes {
		if !known[rc.Name] {
			return fmt.Errorf("routes: unknown route %q", rc.Name)
		}
		overrides[rc.Name] = rc
	}

	global := s.cfg.RateLimit
	for name := range known {
		rl := mw.RateLimitConfig{
			Enabled:   global.Enabled,
			Policy:    ratelimit.Policy{RPS: global.RPS, Burst: global.Burst},
			Scope:     global.Scope,
			RouteName: name,
		}
		var maxInFlight int
		if rc, ok := overrides[name]; ok {
			if rc.RateLimit.Enabled != nil {
				rl.Enabled = *rc.RateLimit.Enabled
			}
			if rc.RateLimit.RPS > 0 {
				rl.Policy.RPS = rc.RateLimit.RPS
			}
			if rc.RateLimit.Burst > 0 {
				rl.Policy.Burst = rc.RateLimit.Burst
			}
			if rc.RateLimit.Scope != "" {
				rl.Scope = strings.ToLower(rc.RateLimit.Scope)
			}
			maxInFlight = rc.Concurrency.MaxInFlight
		}
		s.policies[name] = routePolicy{rateLimit: rl, sem: mw.NewSemaphore(maxInFlight)}
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Metrics exposes the collectors, mainly for tests.
func (s *Server) Metrics() *mw.Metrics { return s.metrics }

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
