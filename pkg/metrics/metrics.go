// Package metrics records Prometheus metrics for SOnion applications and
// exposes them over HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Suhaibinator/SOnion/pkg/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config defines how a Collector names and registers its metrics.
type Config struct {
	Namespace string
	Subsystem string

	// Buckets for the duration histogram; prometheus.DefBuckets when nil.
	Buckets []float64

	// Registry to register with; a fresh registry when nil.
	Registry *prometheus.Registry

	// IncludeRuntime also registers the Go runtime and process collectors.
	IncludeRuntime bool

	// Filter decides per request whether it is measured. All requests are
	// measured when nil.
	Filter func(c *app.Context) bool
}

// Collector holds the request metrics of one App.
type Collector struct {
	registry *prometheus.Registry
	filter   func(c *app.Context) bool

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

// New creates a Collector and registers its metrics.
func New(config Config) (*Collector, error) {
	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	buckets := config.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	c := &Collector{
		registry: registry,
		filter:   config.Filter,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "requests_total",
				Help:      "Total requests by method and status code.",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Time spent in the middleware pipeline.",
				Buckets:   buckets,
			},
			[]string{"method"},
		),
		responseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "response_size_bytes",
				Help:      "Response body size, for bodies with a known length.",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"method"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "errors_total",
				Help:      "Requests whose pipeline failed, by resulting status code.",
			},
			[]string{"status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "requests_in_flight",
				Help:      "Requests currently in the pipeline.",
			},
		),
	}

	toRegister := []prometheus.Collector{c.requestsTotal, c.requestDuration, c.responseSize, c.errorsTotal, c.inFlight}
	if config.IncludeRuntime {
		toRegister = append(toRegister,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, collector := range toRegister {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Registry returns the registry the Collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the registry in the Prometheus
// text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware returns an onion middleware that measures every request passing
// through it. Failed pipelines are counted with the status their error
// response will carry.
func (c *Collector) Middleware() app.Middleware {
	return func(ctx *app.Context, next app.Next) error {
		if c.filter != nil && !c.filter(ctx) {
			return next()
		}

		c.inFlight.Inc()
		defer c.inFlight.Dec()

		start := time.Now()
		err := next()
		duration := time.Since(start)

		method := ctx.Method()
		status := ctx.Status()
		if err != nil {
			status, _ = app.ErrorStatus(err)
			c.errorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		} else if n, ok := ctx.Length(); ok {
			c.responseSize.WithLabelValues(method).Observe(float64(n))
		}

		c.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
		c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())

		return err
	}
}
