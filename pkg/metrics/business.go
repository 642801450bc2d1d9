package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Business holds the payment-domain collectors. All methods are nil-safe so
// components can be constructed without metrics in tests.
type Business struct {
	reconcile   *prometheus.CounterVec
	gateway     *prometheus.HistogramVec
	notify      *prometheus.CounterVec
	orderCreate *prometheus.CounterVec
}

func NewBusiness(reg prometheus.Registerer) (*Business, error) {
	b := &Business{
		reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "payment",
			Name:      "reconcile_total",
			Help:      "Reconciliation runs partitioned by observation source and outcome.",
		}, []string{"source", "outcome"}),
		gateway: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: "payment",
			Name:      "gateway_request_ms",
			Help:      "Processor API latency in milliseconds.",
			Buckets:   HistogramBuckets,
		}, []string{"operation", "result"}),
		notify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "payment",
			Name:      "notify_total",
			Help:      "Terminal confirmation attempts partitioned by result.",
		}, []string{"result"}),
		orderCreate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "payment",
			Name:      "order_create_total",
			Help:      "Downstream order creation attempts partitioned by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{b.reconcile, b.gateway, b.notify, b.orderCreate} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Business) ObserveReconcile(source, outcome string) {
	if b == nil {
		return
	}
	b.reconcile.WithLabelValues(source, outcome).Inc()
}

func (b *Business) ObserveGateway(operation, result string, start time.Time) {
	if b == nil {
		return
	}
	b.gateway.WithLabelValues(operation, result).Observe(MillisecondsSince(start))
}

func (b *Business) ObserveNotify(result string) {
	if b == nil {
		return
	}
	b.notify.WithLabelValues(result).Inc()
}

func (b *Business) ObserveOrderCreate(result string) {
	if b == nil {
		return
	}
	b.orderCreate.WithLabelValues(result).Inc()
}

var Module = fx.Options(
	fx.Provide(func() prometheus.Registerer { return prometheus.DefaultRegisterer }),
	fx.Provide(NewBusiness),
)
