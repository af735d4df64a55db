package constants

// API v1 route constants
const (
	PingRoute               = "/ping"
	PlansRoute              = "/plans"
	AppmaxWebhookRoute      = "/webhooks/appmax"
	InitiatePaymentRoute    = "/payments/initiate"
	MyPaymentsRoute         = "/users/me/payments"
	MySubscriptionRoute     = "/users/me/subscription"
	CancelSubscriptionRoute = "/users/me/subscription/cancel"
	AdminWebhookEventsRoute = "/admin/webhook-events"
)
