package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics は決済まわりのPrometheusメトリクスをまとめる。
type PaymentMetrics struct {
	paymentsInitiated *prometheus.CounterVec
	paymentsCompleted *prometheus.CounterVec
	paymentsFailed    *prometheus.CounterVec
	paymentsRefunded  *prometheus.CounterVec

	webhookEvents *prometheus.CounterVec

	initiateDuration *prometheus.HistogramVec
}

func NewPaymentMetrics() *PaymentMetrics {
	return newPaymentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPaymentMetricsWithRegisterer(registerer prometheus.Registerer) *PaymentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PaymentMetrics{
		paymentsInitiated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Total number of payment initiations",
		}, []string{"gateway"}),
		paymentsCompleted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "payments_completed_total",
			Help: "Total number of payments completed",
		}, []string{"gateway"}),
		paymentsFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "payments_failed_total",
			Help: "Total number of payments failed",
		}, []string{"gateway"}),
		paymentsRefunded: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "payments_refunded_total",
			Help: "Total number of payments refunded",
		}, []string{"gateway"}),
		webhookEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Total number of webhook events received",
		}, []string{"gateway", "result"}),
		initiateDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "payment_initiate_duration_seconds",
			Help:    "Duration of payment initiation including the provider call",
			Buckets: prometheus.DefBuckets,
		}, []string{"gateway"}),
	}
}

func (m *PaymentMetrics) PaymentInitiated(gw string)       { m.paymentsInitiated.WithLabelValues(gw).Inc() }
func (m *PaymentMetrics) PaymentCompleted(gw string)       { m.paymentsCompleted.WithLabelValues(gw).Inc() }
func (m *PaymentMetrics) PaymentFailed(gw string)          { m.paymentsFailed.WithLabelValues(gw).Inc() }
func (m *PaymentMetrics) PaymentRefunded(gw string)        { m.paymentsRefunded.WithLabelValues(gw).Inc() }
func (m *PaymentMetrics) WebhookEvent(gw, result string)   { m.webhookEvents.WithLabelValues(gw, result).Inc() }
func (m *PaymentMetrics) ObserveInitiate(gw string, d time.Duration) {
	m.initiateDuration.WithLabelValues(gw).Observe(d.Seconds())
}

// 再登録済みのcollectorはそのまま使い回す（テストで複数回初期化されるため）。
func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
