package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the Prometheus metrics for the relay.
type Collectors struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	webhookTotal     *prometheus.CounterVec
	retained         prometheus.GaugeFunc
}

// NewCollectors creates collectors on a private registry. retainedFn, if
// non-nil, reports the current number of retained webhook updates.
func NewCollectors(retainedFn func() int) *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "instagram_relay",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "instagram_relay",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		requestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "instagram_relay",
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		webhookTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "instagram_relay",
				Name:      "webhook_notifications_total",
				Help:      "Webhook requests by outcome",
			},
			[]string{"outcome"},
		),
	}

	c.registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.requestsInFlight,
		c.webhookTotal,
		collectors.NewGoCollector(),
	)

	if retainedFn != nil {
		c.retained = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "instagram_relay",
				Name:      "webhook_retained_updates",
				Help:      "Number of webhook updates currently retained in memory",
			},
			func() float64 { return float64(retainedFn()) },
		)
		c.registry.MustRegister(c.retained)
	}

	return c
}

// ObserveWebhook counts one webhook request outcome.
func (c *Collectors) ObserveWebhook(outcome string) {
	c.webhookTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one completed HTTP request.
func (c *Collectors) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	c.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// InFlight tracks concurrently served requests. Call the returned func when done.
func (c *Collectors) InFlight() func() {
	c.requestsInFlight.Inc()
	return c.requestsInFlight.Dec
}

// Handler returns the Prometheus exposition handler for this registry.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
