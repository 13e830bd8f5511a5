package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	TelegramUpdates   *prometheus.CounterVec
	TelegramOutgoing  *prometheus.CounterVec
	WebhookEvents     *prometheus.CounterVec
	Confirmations     *prometheus.CounterVec
	CryptoPayRequests *prometheus.CounterVec
	CryptoPayLatency  *prometheus.HistogramVec
	ReferralRewards   prometheus.Counter
	PromoRedemptions  prometheus.Counter
	Errors            *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			TelegramUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_updates_total",
				Help:      "Total incoming Telegram updates by kind.",
			}, []string{"kind"}),
			TelegramOutgoing: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_outgoing_messages_total",
				Help:      "Total outgoing Telegram messages by kind.",
			}, []string{"kind"}),
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total payment webhook events by type and outcome.",
			}, []string{"type", "outcome"}),
			Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_confirmations_total",
				Help:      "Order payment confirmations by origin and result.",
			}, []string{"origin", "result"}),
			CryptoPayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cryptopay_requests_total",
				Help:      "Total Crypto Pay API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			CryptoPayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cryptopay_request_duration_seconds",
				Help:      "Latency distribution for Crypto Pay API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			ReferralRewards: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "referral_rewards_total",
				Help:      "Total referral rewards credited.",
			}),
			PromoRedemptions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "promo_redemptions_total",
				Help:      "Total promo code redemptions.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.TelegramUpdates,
			metricsInstance.TelegramOutgoing,
			metricsInstance.WebhookEvents,
			metricsInstance.Confirmations,
			metricsInstance.CryptoPayRequests,
			metricsInstance.CryptoPayLatency,
			metricsInstance.ReferralRewards,
			metricsInstance.PromoRedemptions,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
