package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webservice call metrics. The errorcode label carries the gateway's
	// own response code ("0" approved, "70000" declined, etc); transport
	// failures are recorded with errorcode "transport".
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total Webservices requests sent to the payment gateway",
	}, []string{
		"request_type", // AUTH, REFUND, TRANSACTIONQUERY, TRANSACTIONUPDATE
		"errorcode",
	})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Round-trip time of gateway Webservices requests",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"request_type",
	})

	// Settlement metrics, split by which channel won the race
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Orders settled or declined, by reconciliation channel",
	}, []string{
		"channel", // callback, notification
		"status",  // paid, on_hold, failed, declined
	})

	settlementAmountMinorUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_amount_minor_units_total",
		Help: "Settled order value in currency minor units",
	}, []string{
		"currency",
	})

	// Notification channel metrics
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Gateway notifications received, by authentication outcome",
	}, []string{
		"outcome", // accepted, bad_signature, disallowed_ip, disabled, unknown_order
	})

	// Renewal billing metrics
	renewalChargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renewal_charges_total",
		Help: "Recurring renewal charge attempts",
	}, []string{
		"status", // charged, failed, skipped
	})

	renewalBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "renewal_batch_duration_seconds",
		Help:    "Wall time of one renewal cron batch",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})

	// Vault metrics
	savedCardsVaultedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saved_cards_vaulted_total",
		Help: "Card references stored in the vault after settlement",
	})

	refundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Refund attempts against settled orders",
	}, []string{
		"status", // accepted, declined, error
	})
)

// RecordGatewayRequest records one Webservices round trip
func RecordGatewayRequest(requestType, errorCode string, duration float64) {
	gatewayRequestsTotal.WithLabelValues(requestType, errorCode).Inc()
	gatewayRequestDuration.WithLabelValues(requestType).Observe(duration)
}

// RecordSettlement records a settlement decision for one order
func RecordSettlement(channel, status, currency string, amountMinorUnits int64) {
	settlementsTotal.WithLabelValues(channel, status).Inc()
	if status == "paid" || status == "on_hold" {
		settlementAmountMinorUnits.WithLabelValues(currency).Add(float64(amountMinorUnits))
	}
}

// RecordNotification records a notification authentication outcome
func RecordNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordRenewalCharges records the per-status attempt counts of a batch
func RecordRenewalCharges(status string, count int) {
	if count > 0 {
		renewalChargesTotal.WithLabelValues(status).Add(float64(count))
	}
}

// RecordRenewalBatch records the duration of a full cron batch
func RecordRenewalBatch(duration float64) {
	renewalBatchDuration.Observe(duration)
}

// RecordCardVaulted records a card reference saved to the vault
func RecordCardVaulted() {
	savedCardsVaultedTotal.Inc()
}

// RecordRefund records a refund attempt
func RecordRefund(status string) {
	refundsTotal.WithLabelValues(status).Inc()
}
