package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not camera-specific)
type Metrics struct {
	// HTTP engine metrics
	RequestsTotal   *prometheus.CounterVec
	RequestFailures *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	BytesRead       *prometheus.CounterVec

	// Event tap metrics
	TapConnected  prometheus.Gauge
	TapReconnects prometheus.Counter
	TapEvents     *prometheus.CounterVec

	// Camera model metrics
	Refreshes prometheus.Counter
	Cameras   prometheus.Gauge
	Callouts  *prometheus.CounterVec

	// Cross-cutting error counter
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests started",
			},
			[]string{"component", "action"},
		),

		RequestFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "http",
				Name:      "request_failures_total",
				Help:      "Total number of HTTP requests that ended in error",
			},
			[]string{"component", "reason"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "camstream",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration from connect to completion in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "action"},
		),

		BytesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "http",
				Name:      "bytes_read_total",
				Help:      "Total reply bytes read off the wire",
			},
			[]string{"component"},
		),

		TapConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "camstream",
				Subsystem: "tap",
				Name:      "connected",
				Help:      "Event tap connection status (0=disconnected, 1=connected)",
			},
		),

		TapReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "tap",
				Name:      "reconnects_total",
				Help:      "Total number of event tap reconnections",
			},
		),

		TapEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "tap",
				Name:      "events_total",
				Help:      "Total number of event tap records by label",
			},
			[]string{"label"},
		),

		Refreshes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "model",
				Name:      "refreshes_total",
				Help:      "Total number of full-state snapshot fetches",
			},
		),

		Cameras: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "camstream",
				Subsystem: "model",
				Name:      "cameras",
				Help:      "Number of cameras currently known to the model",
			},
		),

		Callouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "model",
				Name:      "callouts_total",
				Help:      "Total number of change notifications emitted by kind",
			},
			[]string{"kind"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),
	}
}

// RecordRequest increments the started-request counter
func (c *Metrics) RecordRequest(component, action string) {
	c.RequestsTotal.WithLabelValues(component, action).Inc()
}

// RecordRequestFailure increments the failed-request counter
func (c *Metrics) RecordRequestFailure(component, reason string) {
	c.RequestFailures.WithLabelValues(component, reason).Inc()
}

// RecordRequestDuration records a completed request's duration
func (c *Metrics) RecordRequestDuration(component, action string, duration time.Duration) {
	c.RequestDuration.WithLabelValues(component, action).Observe(duration.Seconds())
}

// RecordBytesRead adds to the wire-bytes counter
func (c *Metrics) RecordBytesRead(component string, n int) {
	c.BytesRead.WithLabelValues(component).Add(float64(n))
}

// RecordTapConnected updates the tap connection gauge
func (c *Metrics) RecordTapConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.TapConnected.Set(value)
}

// RecordTapReconnect increments the tap reconnection counter
func (c *Metrics) RecordTapReconnect() {
	c.TapReconnects.Inc()
}

// RecordTapEvent increments the per-label tap record counter
func (c *Metrics) RecordTapEvent(label string) {
	c.TapEvents.WithLabelValues(label).Inc()
}

// RecordRefresh increments the snapshot fetch counter
func (c *Metrics) RecordRefresh() {
	c.Refreshes.Inc()
}

// RecordCameras updates the known-camera gauge
func (c *Metrics) RecordCameras(n int) {
	c.Cameras.Set(float64(n))
}

// RecordCallout increments the notification counter for a callout kind
func (c *Metrics) RecordCallout(kind string) {
	c.Callouts.WithLabelValues(kind).Inc()
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
