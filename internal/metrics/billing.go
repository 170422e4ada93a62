package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingRecorder receives billing engine events. The payment processor, the
// provider adapters and the expiration sweep record through it so that tests
// can inject a fresh collector or NopRecorder.
type BillingRecorder interface {
	PaymentProcessed(provider, outcome, reason string)
	ProviderCall(provider, operation string, elapsed time.Duration, err error)
	WebhookReceived(provider, eventType string)
	SweepAction(action string)
}

// Billing is the Prometheus-backed BillingRecorder.
type Billing struct {
	payments         *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	webhooks         *prometheus.CounterVec
	sweepActions     *prometheus.CounterVec
}

// NewBilling creates the billing collectors and registers them on reg.
func NewBilling(reg prometheus.Registerer) *Billing {
	factory := promauto.With(reg)
	return &Billing{
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "payments_processed_total",
			Help:      "Payment notifications processed by provider, outcome and reason.",
		}, []string{"provider", "outcome", "reason"}),
		providerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "provider_calls_total",
			Help:      "Outbound payment provider calls by operation and result.",
		}, []string{"provider", "operation", "result"}),
		providerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billing",
			Name:      "provider_call_duration_seconds",
			Help:      "Outbound payment provider call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "webhooks_received_total",
			Help:      "Provider webhooks received by event type.",
		}, []string{"provider", "event_type"}),
		sweepActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "sweep_actions_total",
			Help:      "Expiration sweep actions by kind.",
		}, []string{"action"}),
	}
}

func (b *Billing) PaymentProcessed(provider, outcome, reason string) {
	b.payments.WithLabelValues(provider, outcome, reason).Inc()
}

func (b *Billing) ProviderCall(provider, operation string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	b.providerCalls.WithLabelValues(provider, operation, result).Inc()
	b.providerDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

func (b *Billing) WebhookReceived(provider, eventType string) {
	b.webhooks.WithLabelValues(provider, eventType).Inc()
}

func (b *Billing) SweepAction(action string) {
	b.sweepActions.WithLabelValues(action).Inc()
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) PaymentProcessed(string, string, string)           {}
func (NopRecorder) ProviderCall(string, string, time.Duration, error) {}
func (NopRecorder) WebhookReceived(string, string)                    {}
func (NopRecorder) SweepAction(string)                                {}
