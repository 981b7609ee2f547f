package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codenow"

// Event outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeForbidden = "forbidden"
	OutcomeInvalid   = "invalid"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests, including open websockets",
	})

	connections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Live connections by role",
	}, []string{"role"})

	editorSlots = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "editor_slots_max",
		Help:      "Configured editor cap",
	})

	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Inbound client events by type and outcome",
	}, []string{"event", "outcome"})

	cursorExpiries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cursor_expiries_total",
		Help:      "Cursor/selection entries removed by the inactivity timer",
	})

	mirrorDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirror_dropped_total",
		Help:      "Presence events dropped because the mirror queue was full or publishing failed",
	})
)

// SetOccupancy refreshes the connection gauges.
func SetOccupancy(editors, viewers, maxEditors int) {
	connections.WithLabelValues("editor").Set(float64(editors))
	connections.WithLabelValues("viewer").Set(float64(viewers))
	editorSlots.Set(float64(maxEditors))
}

func ObserveEvent(event, outcome string) {
	events.WithLabelValues(event, outcome).Inc()
}

func CursorExpired() { cursorExpiries.Inc() }

func MirrorDropped() { mirrorDropped.Inc() }

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("codenow metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
