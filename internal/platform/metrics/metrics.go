package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	inFlight        prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	auditDropped    prometheus.Counter
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leave_transitions_total",
			Help: "Leave workflow transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "role_resolutions_total",
			Help: "Role resolutions by the field the level came from.",
		}, []string{"source"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_failed_total",
			Help: "Audit events that could not be written.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.inFlight,
		c.requestsTotal,
		c.requestDuration,
		c.transitions,
		c.resolutions,
		c.auditDropped,
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record tracks one finished HTTP request. Route should be the router pattern,
// not the raw path, to keep label cardinality bounded.
func (c *Collector) Record(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	code := strconv.Itoa(status)
	c.requestsTotal.WithLabelValues(method, route, code).Inc()
	c.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}

func (c *Collector) InFlight(delta float64) {
	if c == nil {
		return
	}
	c.inFlight.Add(delta)
}

func (c *Collector) Transition(action, outcome string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) RoleResolved(source string) {
	if c == nil {
		return
	}
	c.resolutions.WithLabelValues(source).Inc()
}

func (c *Collector) AuditFailed() {
	if c == nil {
		return
	}
	c.auditDropped.Inc()
}
