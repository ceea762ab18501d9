package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics tracks the order lifecycle counters exposed on /metrics.
// A nil registerer yields a no-op instance, which keeps tests quiet.
type CommerceMetrics struct {
	ordersPlaced      *prometheus.CounterVec
	paymentsProcessed *prometheus.CounterVec
	returnsDecided    *prometheus.CounterVec
	stockRejections   prometheus.Counter
	requestDuration   *prometheus.HistogramVec
}

// NewCommerceMetrics registers the lifecycle metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders created, by outcome.",
	}, []string{"outcome"})
	paymentsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_processed_total",
		Help: "Payment attempts, by resulting status.",
	}, []string{"status"})
	returnsDecided := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_decided_total",
		Help: "Return adjudications, by resulting status.",
	}, []string{"status"})
	stockRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_rejections_total",
		Help: "Order attempts rejected for insufficient stock.",
	})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(ordersPlaced, paymentsProcessed, returnsDecided, stockRejections, requestDuration)
	return &CommerceMetrics{
		ordersPlaced:      ordersPlaced,
		paymentsProcessed: paymentsProcessed,
		returnsDecided:    returnsDecided,
		stockRejections:   stockRejections,
		requestDuration:   requestDuration,
	}
}

// IncOrderPlaced records an order creation attempt with its outcome.
func (m *CommerceMetrics) IncOrderPlaced(outcome string) {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncPaymentProcessed records a payment attempt with its resulting status.
func (m *CommerceMetrics) IncPaymentProcessed(status string) {
	if m == nil || m.paymentsProcessed == nil {
		return
	}
	m.paymentsProcessed.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncReturnDecided records a return adjudication with its resulting status.
func (m *CommerceMetrics) IncReturnDecided(status string) {
	if m == nil || m.returnsDecided == nil {
		return
	}
	m.returnsDecided.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncStockRejection records an order rejected for insufficient stock.
func (m *CommerceMetrics) IncStockRejection() {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.Inc()
}

// ObserveRequest records the duration for a handled HTTP request.
func (m *CommerceMetrics) ObserveRequest(method, route, status string, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(normalizeLabel(method), normalizeLabel(route), normalizeLabel(status)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
