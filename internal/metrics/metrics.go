package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	turnsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supportrelay_turns_total",
		Help: "User turns relayed, by whether the provider answered or the fallback was used",
	}, []string{"outcome"})

	providerLatencyMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "supportrelay_provider_latency_seconds",
		Help:    "Seconds spent waiting for the completion provider",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"provider"})

	assignmentMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supportrelay_assignments_total",
		Help: "Conversation assignment attempts by outcome and source",
	}, []string{"outcome", "assigned_by"})

	eventsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supportrelay_events_total",
		Help: "Domain events delivered to observers, by event type",
	}, []string{"type"})

	eventsDroppedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supportrelay_events_dropped_total",
		Help: "Events dropped because the fan-out buffer was full",
	})

	requestMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "supportrelay_http_request_duration_seconds",
		Help:    "HTTP request latency by route template, method and status code",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)

const (
	OutcomeAI       = "ai"
	OutcomeFallback = "fallback"
)

func ObserveTurn(outcome string) {
	turnsMetric.WithLabelValues(outcome).Inc()
}

func ObserveProviderLatency(provider string, d time.Duration) {
	providerLatencyMetric.WithLabelValues(provider).Observe(d.Seconds())
}

func ObserveAssignment(outcome, assignedBy string) {
	assignmentMetric.WithLabelValues(outcome, assignedBy).Inc()
}

func ObserveEvent(eventType string) {
	eventsMetric.WithLabelValues(eventType).Inc()
}

func EventDropped() {
	eventsDroppedMetric.Inc()
}

// Handler serves the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency labelled with the mux route template,
// so ids in paths do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		requestMetric.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
