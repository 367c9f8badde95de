package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	evaluationsTotal          *prometheus.CounterVec
	evaluationLatencySeconds  prometheus.Histogram
	alertsGeneratedTotal      *prometheus.CounterVec
	notificationsIngested     *prometheus.CounterVec
	notificationsAcknowledged prometheus.Counter
	emailDeliveriesTotal      *prometheus.CounterVec
	cohortEscalationsTotal    prometheus.Counter
	alertStreamClients        prometheus.Gauge
	activeSessions            prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the risk API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "risk_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Cohort evaluations by outcome.",
		}, []string{"outcome"})

		evaluationLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evaluation_latency_seconds",
			Help:    "Time spent synthesizing, scoring and alerting a cohort.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		alertsGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_alerts_generated_total",
			Help: "Alerts raised by the rule engine, by severity.",
		}, []string{"severity"})

		notificationsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_ingested_total",
			Help: "Alerts offered to session stores, by result.",
		}, []string{"result"})

		notificationsAcknowledged = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_acknowledged_total",
			Help: "Pending notifications acknowledged by advisors.",
		})

		emailDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "email_deliveries_total",
			Help: "Outbound notification emails, by result.",
		}, []string{"result"})

		cohortEscalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cohort_escalations_total",
			Help: "Students escalated to High by the cohort floor.",
		})

		alertStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alert_stream_clients_active",
			Help: "Number of connected alert stream clients.",
		})

		activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "advisor_sessions_active",
			Help: "Number of live advisor sessions.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			evaluationsTotal, evaluationLatencySeconds, alertsGeneratedTotal,
			notificationsIngested, notificationsAcknowledged, emailDeliveriesTotal,
			cohortEscalationsTotal, alertStreamClients, activeSessions,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Evaluations counts cohort evaluations labelled by outcome.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationLatency observes evaluation duration.
func EvaluationLatency() prometheus.Histogram {
	RegisterMetrics()
	return evaluationLatencySeconds
}

// AlertsGenerated counts raised alerts labelled by severity.
func AlertsGenerated() *prometheus.CounterVec {
	RegisterMetrics()
	return alertsGeneratedTotal
}

// NotificationsIngested counts ingestion results (added or deduplicated).
func NotificationsIngested() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsIngested
}

// NotificationsAcknowledged counts acknowledgments.
func NotificationsAcknowledged() prometheus.Counter {
	RegisterMetrics()
	return notificationsAcknowledged
}

// EmailDeliveries counts outbound emails labelled by result.
func EmailDeliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return emailDeliveriesTotal
}

// CohortEscalations counts floor escalations.
func CohortEscalations() prometheus.Counter {
	RegisterMetrics()
	return cohortEscalationsTotal
}

// AlertStreamClients tracks connected stream clients.
func AlertStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return alertStreamClients
}

// ActiveSessions tracks live advisor sessions.
func ActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return activeSessions
}
