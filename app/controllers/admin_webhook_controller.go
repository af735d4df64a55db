package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/edumax-app/edumax/app/models"
	"github.com/edumax-app/edumax/app/repository"
	"github.com/edumax-app/edumax/internal/pkg/usercontext"
)

// HandleAdminListWebhookEvents lists recent ledger entries for manual
// reconciliation. With ?quarantined=1 only events acknowledged without a
// matching local record are returned.
func HandleAdminListWebhookEvents(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if !userCtx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin access required"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	repo := repository.GetGlobalFactory().GetWebhookEventRepository()
	var (
		events []models.WebhookEvent
		err    error
	)
	if c.Query("quarantined") == "1" {
		events, err = repo.ListQuarantined(limit)
	} else {
		events, err = repo.ListRecent(limit)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load webhook events"})
	}

	items := make([]fiber.Map, 0, len(events))
	for i := range events {
		e := &events[i]
		items = append(items, fiber.Map{
			"id":               e.ID,
			"event_key":        e.EventKey,
			"event_type":       e.EventType,
			"transaction_id":   e.TransactionID,
			"subscription_id":  e.SubscriptionID,
			"processed_at":     formatTimePtr(e.ProcessedAt),
			"processing_error": e.ProcessingError,
			"created_at":       e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"webhook_events": items})
}
