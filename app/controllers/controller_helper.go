package controllers

import (
	"time"

	"github.com/edumax-app/edumax/app/models"
	"github.com/edumax-app/edumax/internal/pkg/billing"
	"github.com/edumax-app/edumax/internal/pkg/database"
	"github.com/edumax-app/edumax/internal/pkg/jobqueue"
	"github.com/gofiber/fiber/v2"
)

// billingService builds the billing service on the request DB handle with the
// queue-backed notifier.
func billingService() *billing.Service {
	return billing.NewServiceFromDB(database.GetDB(), jobqueue.NewNotifier())
}

// gatewayErrorBody maps a gateway failure onto a response body. An uncertain
// failure (timeout, transport error) means the gateway may have acted on the
// request, so the client must not blindly retry; a certain one is a plain
// rejection and retrying with corrected input is safe.
func gatewayErrorBody(gwErr *billing.GatewayError) fiber.Map {
	if gwErr.Uncertain {
		return fiber.Map{
			"error":   "gateway_uncertain",
			"message": "Payment provider did not answer; the request may have been processed, do not retry blindly",
		}
	}
	return fiber.Map{
		"error":   "gateway_rejected",
		"message": "Payment provider rejected the request",
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// paymentJSON shapes a payment for API responses
func paymentJSON(p *models.Payment) fiber.Map {
	return fiber.Map{
		"id":                      p.ID,
		"plan_id":                 p.PlanID,
		"subscription_id":         p.SubscriptionID,
		"external_transaction_id": p.ExternalTransactionID,
		"status":                  p.Status,
		"method":                  p.Method,
		"amount":                  p.Amount.StringFixed(2),
		"created_at":              p.CreatedAt.UTC().Format(time.RFC3339),
		"confirmed_at":            formatTimePtr(p.ConfirmedAt),
		"expires_at":              formatTimePtr(p.ExpiresAt),
	}
}

// subscriptionJSON shapes a subscription for API responses
func subscriptionJSON(s *models.Subscription) fiber.Map {
	return fiber.Map{
		"id":                       s.ID,
		"plan_id":                  s.PlanID,
		"external_subscription_id": s.ExternalSubscriptionID,
		"status":                   s.Status,
		"started_at":               s.StartedAt.UTC().Format(time.RFC3339),
		"cancelled_at":             formatTimePtr(s.CancelledAt),
		"expires_at":               formatTimePtr(s.ExpiresAt),
	}
}
