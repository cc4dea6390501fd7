package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	bookings      *prometheus.CounterVec
	slotWrites    *prometheus.CounterVec
	compensations *prometheus.CounterVec
	released      prometheus.Counter
	httpDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"result"}),
		slotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "slot_writes_total",
			Help:      "Slot mutations by operation and outcome.",
		}, []string{"op", "result"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "booking_compensations_total",
			Help:      "Un-booking attempts after a failed ledger write.",
		}, []string{"result"}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "reconciled_slots_total",
			Help:      "Orphaned bookings released by the reconciler.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.bookings, m.slotWrites, m.compensations, m.released, m.httpDuration)
	return m
}

func (m *Metrics) Booking(result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(result).Inc()
}

func (m *Metrics) SlotWrite(op, result string) {
	if m == nil {
		return
	}
	m.slotWrites.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Compensation(result string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(result).Inc()
}

func (m *Metrics) Released(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.released.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}
