package billing

import (
	"log"
	"strings"

	"github.com/edumax-app/edumax/app/models"
)

// MapPaymentStatus translates the gateway's transaction vocabulary into the
// local payment status. Unmapped values fall back to pending and are logged
// so a vocabulary change on the gateway side shows up in operations instead
// of being silently dropped.
func MapPaymentStatus(gatewayStatus string) models.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "approved":
		return models.PaymentStatusConfirmed
	case "pending", "processing":
		return models.PaymentStatusPending
	case "rejected", "refunded", "chargeback":
		return models.PaymentStatusFailed
	default:
		log.Printf("billing: unmapped gateway payment status %q, defaulting to pending", gatewayStatus)
		return models.PaymentStatusPending
	}
}

// MapSubscriptionStatus translates the gateway's subscription vocabulary into
// the local subscription status. Same fallback rule as MapPaymentStatus.
func MapSubscriptionStatus(gatewayStatus string) models.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "cancelled", "canceled":
		return models.SubscriptionStatusCancelled
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "expired":
		return models.SubscriptionStatusExpired
	case "pending_payment", "pending":
		return models.SubscriptionStatusPending
	default:
		log.Printf("billing: unmapped gateway subscription status %q, defaulting to pending", gatewayStatus)
		return models.SubscriptionStatusPending
	}
}
