package mw

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/3xpluto/go-reqbin/internal/httpx"
)

type Metrics struct {
	Requests    *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	InFlight    *prometheus.GaugeVec
	StreamLines prometheus.Counter
	Rejected    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reqbin_http_requests_total",
			Help: "Total HTTP requests served",
		}, []string{"route", "method", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reqbin_http_request_duration_seconds",
			Help:    "HTTP request latency, including simulated delays",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 15},
		}, []string{"route", "method"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reqbin_http_in_flight_requests",
			Help: "Requests currently being served",
		}, []string{"route"}),
		StreamLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reqbin_stream_lines_total",
			Help: "JSON lines written by streaming endpoints",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reqbin_rejected_requests_total",
			Help: "Requests rejected by rate or concurrency limits",
		}, []string{"route", "reason"}),
	}
	reg.MustRegister(m.Requests, m.Latency, m.InFlight, m.StreamLines, m.Rejected)
	return m
}

type routeKeyType string

const routeKey routeKeyType = "route"

// WithRoute tags the request context with the route name used for logs,
// metrics and limiter keys.
func WithRoute(routeName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(context.WithValue(r.Context(), routeKey, routeName))
			next.ServeHTTP(w, r)
		})
	}
}

func RouteName(ctx context.Context) string {
	if v, ok := ctx.Value(routeKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func Instrument(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := RouteName(r.Context())
			inFlight := m.InFlight.WithLabelValues(route)
			inFlight.Inc()
			defer inFlight.Dec()

			res := httpx.Observe(next, w, r)
			m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(res.Status)).Inc()
			m.Latency.WithLabelValues(route, r.Method).Observe(res.Duration.Seconds())
		})
	}
}

func (m *Metrics) reject(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(RouteName(ctx), reason).Inc()
}
