package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/edumax-app/edumax/internal/pkg/billing"
	"github.com/edumax-app/edumax/internal/pkg/env"
)

// Gateway delivery headers
const (
	HeaderAppmaxSignature = "X-Appmax-Signature"
	HeaderAppmaxEventID   = "X-Appmax-Event-ID"
)

// HandleAppmaxWebhook ingests one gateway delivery. Signature verification
// happens before anything is parsed or persisted; a bad signature leaves no
// trace. A 2xx tells the gateway to stop redelivering, a 5xx asks for a
// redelivery after the transaction rolled back.
func HandleAppmaxWebhook(c *fiber.Ctx) error {
	raw := c.Body()

	// The verifier fails closed on an empty secret, so a missing
	// APPMAX_WEBHOOK_SECRET rejects every delivery instead of trusting them.
	secret := env.GetEnv("APPMAX_WEBHOOK_SECRET", "")
	if !billing.VerifyWebhookSignature(raw, c.Get(HeaderAppmaxSignature), secret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook signature"})
	}

	outcome, err := billingService().ProcessEvent(c.Context(), raw, c.Get(HeaderAppmaxEventID))
	if err != nil {
		if errors.Is(err, billing.ErrMalformedPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed webhook payload"})
		}
		log.Errorf("Webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Webhook processing failed, please redeliver"})
	}

	switch {
	case outcome.Duplicate:
		return c.JSON(fiber.Map{"status": "duplicate"})
	case outcome.Quarantined:
		return c.JSON(fiber.Map{"status": "quarantined"})
	case outcome.NoOp:
		return c.JSON(fiber.Map{"status": "ignored"})
	default:
		return c.JSON(fiber.Map{"status": "processed"})
	}
}
