package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Booking("success")
	m.Booking("success")
	m.Booking("unavailable")
	m.Released(3)
	m.Released(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("unavailable")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.released))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Booking("success")
		m.SlotWrite("add", "ok")
		m.Compensation("ok")
		m.Released(1)
		m.ObserveHTTP("GET", "/", "200", 0.1)
	})
}
