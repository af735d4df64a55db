package controllers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/edumax-app/edumax/app/models"
	"github.com/edumax-app/edumax/app/repository"
	"github.com/edumax-app/edumax/internal/pkg/cache"
)

const (
	planCatalogCacheKey = "plan_catalog"
	planCatalogCacheTTL = 5 * time.Minute
)

// HandleListPlans returns the public plan catalog. The catalog is immutable
// at runtime, so it is served from Redis when possible.
func HandleListPlans(c *fiber.Ctx) error {
	if cached, err := cache.Get(planCatalogCacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	repo := repository.GetGlobalFactory().GetPlanRepository()
	plans, err := repo.GetAll()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plans"})
	}

	response := fiber.Map{"plans": planListJSON(plans)}
	if data, err := json.Marshal(response); err == nil {
		if err := cache.Set(planCatalogCacheKey, string(data), planCatalogCacheTTL); err != nil {
			log.Warnf("Failed to cache plan catalog: %v", err)
		}
	}

	return c.JSON(response)
}

func planListJSON(plans []models.Plan) []fiber.Map {
	out := make([]fiber.Map, 0, len(plans))
	for i := range plans {
		p := &plans[i]
		out = append(out, fiber.Map{
			"id":          p.ID,
			"name":        p.Name,
			"price_cents": p.PriceCents,
			"description": p.Description,
		})
	}
	return out
}
