package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePurchase(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePurchase(ResultAccepted, 3)
	m.ObservePurchase("invalid_code", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Purchases.WithLabelValues(ResultAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Purchases.WithLabelValues("invalid_code")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TicketsSold))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRegistration(ResultAccepted)
		m.ObservePurchase(ResultAccepted, 1)
	})
}
