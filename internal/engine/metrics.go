package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

type Metrics struct {
	// Latency: полный цикл операции (резолвинг + доказательство + платеж)
	RequestDuration *prometheus.HistogramVec

	// Traffic: запросы по операциям и исходам
	TotalRequests *prometheus.CounterVec

	// Proofs: сколько доказательств каждого вида выдано и сколько шел Prove
	ProofsTotal   *prometheus.CounterVec
	ProofDuration *prometheus.HistogramVec

	// Errors: классификация отказов (policy, resolution_*, compliance_*, prover, executor)
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zkgate_request_duration_seconds",
			Help:    "Histogram of gateway operation latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "status"}),

		TotalRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "zkgate_requests_total",
			Help: "Total number of gateway operations.",
		}, []string{"operation", "status"}),

		ProofsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "zkgate_proofs_total",
			Help: "Generated proofs by kind (real/mock).",
		}, []string{"kind"}),

		ProofDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zkgate_proof_generation_seconds",
			Help:    "Proof generation latency by kind.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "zkgate_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "zkgate_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"breaker"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "zkgate_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}

// ObserveBreaker: колбэк для gobreaker.Settings.OnStateChange
func (m *Metrics) ObserveBreaker(name string, _, to gobreaker.State) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
}

// ObserveAuditBuffer: колбэк для audit.Options.OnBufferFill
func (m *Metrics) ObserveAuditBuffer(n int) {
	m.AuditBufferFill.Set(float64(n))
}
