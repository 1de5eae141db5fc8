// Package metrics holds the Prometheus collectors for the presale API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels.
const (
	ResultAccepted = "accepted"
	ResultInternal = "internal"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Registrations   *prometheus.CounterVec
	Purchases       *prometheus.CounterVec
	TicketsSold     prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. Passing a fresh registry keeps
// tests isolated from the global default.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presale_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"result"}),
		Purchases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presale_purchases_total",
			Help: "Purchase attempts by outcome",
		}, []string{"result"}),
		TicketsSold: factory.NewCounter(prometheus.CounterOpts{
			Name: "presale_tickets_sold_total",
			Help: "Tickets admitted across all completed orders",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "presale_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveRegistration counts one registration attempt.
func (m *Metrics) ObserveRegistration(result string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result).Inc()
}

// ObservePurchase counts one purchase attempt and, when accepted, its tickets.
func (m *Metrics) ObservePurchase(result string, quantity int) {
	if m == nil {
		return
	}
	m.Purchases.WithLabelValues(result).Inc()
	if result == ResultAccepted {
		m.TicketsSold.Add(float64(quantity))
	}
}
