package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/edumax-app/edumax/internal/pkg/billing"
	"github.com/edumax-app/edumax/internal/pkg/usercontext"
)

// HandleGetMySubscription returns the authenticated user's current open
// subscription, if any.
func HandleGetMySubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	sub, err := billingService().CurrentSubscription(c.Context(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No open subscription"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}

	return c.JSON(fiber.Map{"subscription": subscriptionJSON(sub)})
}

// HandleCancelSubscription cancels the authenticated user's open subscription
// at the gateway and locally.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	sub, err := billingService().Cancel(c.Context(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No cancelable subscription"})
		}
		var gwErr *billing.GatewayError
		if errors.As(err, &gwErr) {
			log.Errorf("Subscription cancel gateway error for user %d: %v", userCtx.UserID, err)
			return c.Status(fiber.StatusBadGateway).JSON(gatewayErrorBody(gwErr))
		}
		log.Errorf("Subscription cancel failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to cancel subscription"})
	}

	return c.JSON(fiber.Map{"subscription": subscriptionJSON(sub)})
}
