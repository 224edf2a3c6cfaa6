package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/3xpluto/go-reqbin/internal/httpx"
)

func (s *Server) adminStatus(w http.ResponseWriter, _ *http.Request) {
	goVer := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		goVer = info.GoVersion
	}
	backend := s.deps.Backend
	if s.deps.Limiter == nil {
		backend = "none"
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"time_utc":          time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds":    int(time.Since(s.started).Seconds()),
		"listen_addr":       s.cfg.Server.Addr,
		"go_version":        goVer,
		"rate_backend":      backend,
		"rate_limit":        s.cfg.RateLimit.Enabled,
		"auth_enabled":      s.cfg.Auth.HMACSecret != "",
		"routes_configured": len(s.cfg.Routes),
		"routes_served":     len(s.app.Routes()),
	})
}

func (s *Server) adminRoutes(w http.ResponseWriter, _ *http.Request) {
	type outRoute struct {
		Name        string         `json:"name"`
		Path        string         `json:"path"`
		Methods     []string       `json:"methods"`
		RateLimit   map[string]any `json:"rate_limit"`
		Concurrency map[string]any `json:"concurrency,omitempty"`
	}

	routes := s.app.Routes()
	out := make([]outRoute, 0, len(routes))
	for _, rt := range routes {
		p := s.policies[rt.Name]
		row := outRoute{
			Name:    rt.Name,
			Path:    rt.Path,
			Methods: rt.Methods,
			RateLimit: map[string]any{
				"enabled": p.rateLimit.Enabled && s.deps.Limiter != nil,
				"rps":     p.rateLimit.Policy.RPS,
				"burst":   p.rateLimit.Policy.Burst,
				"scope":   p.rateLimit.Scope,
			},
		}
		if p.sem.Enabled() {
			row.Concurrency = map[string]any{
				"max_in_flight": p.sem.Cap(),
				"in_flight":     p.sem.InUse(),
			}
		}
		out = append(out, row)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
