package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "csbridge"

var (
	// Intake
	IntakeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "intake_events_total", Help: "Inbound events by gate verdict."},
		[]string{"reason"}, // accepted | self_sent | excluded | too_long | no_keyword
	)
	IntakeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "intake_failures_total", Help: "Pipeline stages that failed."},
		[]string{"stage"}, // persist_inbound | persist_media | dispatch
	)

	// Auto-reply
	AutoReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "auto_replies_total", Help: "Auto-reply text source."},
		[]string{"source"}, // generated | fallback
	)
	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of generative-text calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms..~25s
		},
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "circuit_breaker_state", Help: "0 closed, 1 open, 2 half-open."},
		[]string{"name"},
	)

	// Transport
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "dispatch_total", Help: "Outbound sends."},
		[]string{"kind", "origin", "outcome"}, // text|media, operator|auto_reply, sent|failed
	)
	ListenerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "listener_connected", Help: "1 while the event stream is connected."},
	)
	ListenerReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "listener_reconnects_total", Help: "Event stream reconnect attempts."},
	)

	// Dashboard
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Count of HTTP requests."},
		[]string{"route", "method", "code"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"route", "method"},
	)
)

// Registry holds every collector of the process. Handler serves it.
var Registry = newRegistry()

func newRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		IntakeEvents, IntakeFailures,
		AutoReplies, GenerationDuration, BreakerState,
		Dispatches, ListenerConnected, ListenerReconnects,
		HTTPRequests, HTTPDuration,
	)
	return r
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Timer observes the time since its creation into a histogram.
type Timer struct {
	start time.Time
	obs   prometheus.Observer
}

func NewTimer(obs prometheus.Observer) Timer {
	return Timer{start: time.Now(), obs: obs}
}

func (t Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.obs.Observe(d.Seconds())
	return d
}
