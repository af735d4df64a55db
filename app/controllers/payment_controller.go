package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/edumax-app/edumax/app/models"
	"github.com/edumax-app/edumax/app/repository"
	"github.com/edumax-app/edumax/internal/pkg/billing"
	"github.com/edumax-app/edumax/internal/pkg/usercontext"
)

// InitiatePaymentRequest is the body for POST /api/v1/payments/initiate
type InitiatePaymentRequest struct {
	PlanID         uint              `json:"plan_id"`
	Method         string            `json:"method"`
	IsSubscription bool              `json:"is_subscription"`
	PaymentDetails map[string]string `json:"payment_details"`
}

// HandleInitiatePayment opens a gateway transaction for the authenticated user
// and persists the local pending records.
func HandleInitiatePayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req InitiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if req.PlanID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "plan_id is required"})
	}

	result, err := billingService().Initiate(c.Context(), billing.InitiateInput{
		UserID:         userCtx.UserID,
		PlanID:         req.PlanID,
		Method:         models.PaymentMethod(req.Method),
		IsSubscription: req.IsSubscription,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnsupportedMethod):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unsupported payment method"})
		case errors.Is(err, billing.ErrPlanNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Plan not found"})
		case errors.Is(err, billing.ErrDuplicateSubscription):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "An open subscription already exists"})
		}
		var gwErr *billing.GatewayError
		if errors.As(err, &gwErr) {
			log.Errorf("Payment initiation gateway error for user %d: %v", userCtx.UserID, err)
			return c.Status(fiber.StatusBadGateway).JSON(gatewayErrorBody(gwErr))
		}
		log.Errorf("Payment initiation failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to initiate payment"})
	}

	response := fiber.Map{
		"payment":      paymentJSON(result.Payment),
		"checkout_url": result.CheckoutURL,
	}
	if result.Subscription != nil {
		response["subscription"] = subscriptionJSON(result.Subscription)
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

// HandleGetMyPayments returns the authenticated user's payment history
func HandleGetMyPayments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	repo := repository.GetGlobalFactory().GetPaymentRepository()
	payments, err := repo.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}

	items := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		items = append(items, paymentJSON(&payments[i]))
	}
	return c.JSON(fiber.Map{"payments": items, "offset": offset, "limit": limit})
}
