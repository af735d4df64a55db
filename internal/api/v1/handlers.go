package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/edumax-app/edumax/app/controllers"
	"github.com/edumax-app/edumax/internal/pkg/constants"
	"github.com/edumax-app/edumax/internal/pkg/middleware"
)

// APIServer implements the public v1 API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// Pong is the ping response body
type Pong struct {
	Ping string `json:"ping"`
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetPlans returns the public plan catalog
func (s *APIServer) GetPlans(c *fiber.Ctx) error {
	return controllers.HandleListPlans(c)
}

// PostInitiatePayment starts a checkout for the authenticated user.
// Security is enforced via API key middleware attached in RegisterHandlers.
func (s *APIServer) PostInitiatePayment(c *fiber.Ctx) error {
	return controllers.HandleInitiatePayment(c)
}

// GetMyPayments returns the authenticated user's payment history
func (s *APIServer) GetMyPayments(c *fiber.Ctx) error {
	return controllers.HandleGetMyPayments(c)
}

// GetMySubscription returns the authenticated user's open subscription
func (s *APIServer) GetMySubscription(c *fiber.Ctx) error {
	return controllers.HandleGetMySubscription(c)
}

// PostCancelSubscription cancels the authenticated user's open subscription
func (s *APIServer) PostCancelSubscription(c *fiber.Ctx) error {
	return controllers.HandleCancelSubscription(c)
}

// PostAppmaxWebhook ingests a gateway delivery. Authenticated by HMAC
// signature over the raw body, not by API key.
func (s *APIServer) PostAppmaxWebhook(c *fiber.Ctx) error {
	return controllers.HandleAppmaxWebhook(c)
}

// GetAdminWebhookEvents lists ledger entries for manual reconciliation
// (admin only)
func (s *APIServer) GetAdminWebhookEvents(c *fiber.Ctx) error {
	return controllers.HandleAdminListWebhookEvents(c)
}

// RegisterHandlers attaches the v1 routes to the given router group
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get(constants.PingRoute, s.GetPing)
	router.Get(constants.PlansRoute, s.GetPlans)
	router.Post(constants.AppmaxWebhookRoute, s.PostAppmaxWebhook)

	apiKey := middleware.APIKeyAuthMiddleware()
	router.Post(constants.InitiatePaymentRoute, apiKey, s.PostInitiatePayment)
	router.Get(constants.MyPaymentsRoute, apiKey, s.GetMyPayments)
	router.Get(constants.MySubscriptionRoute, apiKey, s.GetMySubscription)
	router.Post(constants.CancelSubscriptionRoute, apiKey, s.PostCancelSubscription)
	router.Get(constants.AdminWebhookEventsRoute, apiKey, s.GetAdminWebhookEvents)
}
