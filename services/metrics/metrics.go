package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

const namespace = "school"

// Prometheus exposes domain counters and request metrics on its own registry.
type Prometheus struct {
	registry      *prometheus.Registry
	notifications *prometheus.CounterVec
	scores        *prometheus.CounterVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

var _ core.Metrics = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications created, by type.",
		}, []string{"type"}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_submitted_total",
			Help:      "Scores written, by kind.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	p.registry.MustRegister(
		p.notifications, p.scores, p.requests, p.latency,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) NotificationsCreated(typ string, n int) {
	p.notifications.WithLabelValues(typ).Add(float64(n))
}

func (p *Prometheus) ScoresSubmitted(kind string, n int) {
	p.scores.WithLabelValues(kind).Add(float64(n))
}

// Gatherer is used by tests to inspect collected values.
func (p *Prometheus) Gatherer() prometheus.Gatherer { return p.registry }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Middleware records every request under its route pattern.
func (p *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := ctx.Path()
			method := ctx.Request().Method
			p.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			p.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
