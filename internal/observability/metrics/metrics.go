package metrics

import "github.com/prometheus/client_golang/prometheus"

// AssistantMetrics exposes counters/histograms for assistant turns.
type AssistantMetrics struct {
	turnsTotal      *prometheus.CounterVec
	intentsTotal    *prometheus.CounterVec
	confidence      *prometheus.HistogramVec
	turnLatency     *prometheus.HistogramVec
	bookingsTotal   *prometheus.CounterVec
	queueJobsTotal  *prometheus.CounterVec
	lockWaitTimeout prometheus.Counter
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffline",
			Subsystem: "assistant",
			Name:      "turns_total",
			Help:      "Total processed inbound messages",
		}, []string{"route", "response_type"}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffline",
			Subsystem: "assistant",
			Name:      "intent_selected_total",
			Help:      "Selected intent per classified message",
		}, []string{"intent"}),
		confidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "staffline",
			Subsystem: "assistant",
			Name:      "intent_confidence",
			Help:      "Final confidence of the selected intent",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"intent"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "staffline",
			Subsystem: "assistant",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one assistant turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffline",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking commits by outcome",
		}, []string{"status"}),
		queueJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffline",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Queued messages handled by the worker",
		}, []string{"status"}),
		lockWaitTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "staffline",
			Subsystem: "assistant",
			Name:      "lock_timeouts_total",
			Help:      "Turns answered without the per-candidate lock",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.intentsTotal, m.confidence, m.turnLatency, m.bookingsTotal, m.queueJobsTotal, m.lockWaitTimeout)
	return m
}

func (m *AssistantMetrics) ObserveTurn(route, responseType string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(route, responseType).Inc()
	m.turnLatency.WithLabelValues(route).Observe(seconds)
}

func (m *AssistantMetrics) ObserveIntent(intent string, confidence float64) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent).Inc()
	m.confidence.WithLabelValues(intent).Observe(confidence)
}

func (m *AssistantMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *AssistantMetrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.queueJobsTotal.WithLabelValues(status).Inc()
}

func (m *AssistantMetrics) ObserveLockTimeout() {
	if m == nil {
		return
	}
	m.lockWaitTimeout.Inc()
}
