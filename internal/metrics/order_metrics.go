package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics counts what the order subsystem does. A nil *OrderMetrics is a no-op.
type OrderMetrics struct {
	ordersPlaced    *prometheus.CounterVec
	stockConflicts  prometheus.Counter
	statusChanges   *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	invoices        *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewOrderMetrics registers the collectors on registerer (default registry when nil).
func NewOrderMetrics(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersPlaced: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Orders committed, by payment method.",
		}, []string{"payment_method"}),
		stockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_stock_conflicts_total",
			Help: "Order placements or edits rolled back for insufficient stock.",
		}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_status_changes_total",
			Help: "Order status transitions, by target status.",
		}, []string{"status"}),
		callbacks: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payment_callbacks_total",
			Help: "Provider callbacks received, by outcome.",
		}, []string{"outcome"}),
		invoices: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_invoice_dispatch_total",
			Help: "Invoice dispatch attempts, by result.",
		}, []string{"result"}),
		gatewayDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_payment_gateway_duration_seconds",
			Help:    "Latency of payment-creation calls to the provider.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
	}
}

func (m *OrderMetrics) OrderPlaced(method string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(method).Inc()
}

func (m *OrderMetrics) StockConflict() {
	if m == nil {
		return
	}
	m.stockConflicts.Inc()
}

func (m *OrderMetrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// outcome: confirmed, duplicate, ignored, invalid_signature, error
func (m *OrderMetrics) CallbackReceived(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

func (m *OrderMetrics) InvoiceDispatched(ok bool) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *OrderMetrics) GatewayCall(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(resultLabel(ok)).Observe(d.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// registration reuses an already registered collector so tests and restarts
// inside one process do not panic
func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	if err := registerer.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return c
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
}
