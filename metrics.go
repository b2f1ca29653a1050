package liftoff

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tfkr-ae/liftoff/domain"
)

const namespace = "liftoff"

// Metrics tracks upstream fetches, served requests and live sessions.
type Metrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	sessions      prometheus.GaugeFunc
}

// NewMetrics creates the metrics and registers them on registry.
// sessions is sampled on every scrape.
func NewMetrics(registry *prometheus.Registry, sessions func() float64) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetches_total",
			Help:      "Total number of upstream fetches by source and outcome",
		}, []string{"source", "outcome"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of served requests by route and status code",
		}, []string{"method", "route", "code"}),
		sessions: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "sessions",
			Help:      "Number of live dashboard sessions",
		}, sessions),
	}
}

// ObserveFetch records the outcome and duration of one upstream fetch.
func (m *Metrics) ObserveFetch(source domain.FetchSource, outcome domain.FetchOutcome, duration time.Duration) {
	m.fetches.WithLabelValues(string(source), string(outcome)).Inc()
	m.fetchDuration.WithLabelValues(string(source)).Observe(duration.Seconds())
}

// Middleware counts requests by their chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
	})
}
