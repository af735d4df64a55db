package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/edumax-app/edumax/app/models"
)

// Event kinds delivered by the gateway.
const (
	EventPaymentUpdate      = "payment_update"
	EventSubscriptionUpdate = "subscription_update"
	EventChargeSuccess      = "charge_success"
	EventChargeFailed       = "charge_failed"
	EventRefund             = "refund"
)

// WebhookPayload is the decoded gateway notification body.
type WebhookPayload struct {
	Event          string `json:"event"`
	TransactionID  string `json:"transaction_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Status         string `json:"status,omitempty"`
	Method         string `json:"method,omitempty"`
	OccurredAt     string `json:"occurred_at,omitempty"`
}

// ParseWebhookPayload decodes and validates a raw webhook body. Any failure
// here is a malformed payload: the caller rejects the delivery without
// writing a ledger entry, so a corrected resend is processed normally.
func ParseWebhookPayload(raw []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	p.Event = strings.ToLower(strings.TrimSpace(p.Event))
	p.TransactionID = strings.TrimSpace(p.TransactionID)
	p.SubscriptionID = strings.TrimSpace(p.SubscriptionID)

	switch p.Event {
	case EventPaymentUpdate, EventRefund:
		if p.TransactionID == "" {
			return nil, fmt.Errorf("%w: %s without transaction_id", ErrMalformedPayload, p.Event)
		}
	case EventSubscriptionUpdate:
		if p.SubscriptionID == "" {
			return nil, fmt.Errorf("%w: %s without subscription_id", ErrMalformedPayload, p.Event)
		}
	case EventChargeSuccess, EventChargeFailed:
		if p.TransactionID == "" || p.SubscriptionID == "" {
			return nil, fmt.Errorf("%w: %s requires transaction_id and subscription_id", ErrMalformedPayload, p.Event)
		}
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformedPayload, p.Event)
	}

	return &p, nil
}

// EventTime returns the gateway timestamp of the event, falling back to now
// when the payload carries none.
func (p *WebhookPayload) EventTime() time.Time {
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(p.OccurredAt)); err == nil {
		return ts
	}
	return time.Now()
}

// InitiateInput carries a validated billing attempt request.
type InitiateInput struct {
	UserID         uint
	PlanID         uint
	Method         models.PaymentMethod
	IsSubscription bool
	PaymentDetails map[string]string
}

// InitiateResult is returned to the caller after the gateway accepted the
// transaction and the local pending records were persisted.
type InitiateResult struct {
	Payment      *models.Payment
	Subscription *models.Subscription
	CheckoutURL  string
}

// ProcessOutcome describes how a webhook delivery was handled.
type ProcessOutcome struct {
	// Duplicate is set when the event key was already in the ledger.
	Duplicate bool
	// Quarantined is set when no local record matched the event; the ledger
	// row is kept with an error note for manual reconciliation and the
	// delivery is acknowledged to stop gateway retries.
	Quarantined bool
	// NoOp is set when the event resolved but the transition table rejected
	// the move (already applied or terminal state).
	NoOp bool
}
