package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the closed set of local payment states.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether no further payment_update transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusFailed
}

// CanTransitionTo reports whether a payment_update may move a payment from s
// to next. Transitions are forward-only: pending is the only state with an
// exit, and self-transitions are treated as already applied.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s != PaymentStatusPending {
		return false
	}
	return next == PaymentStatusConfirmed || next == PaymentStatusFailed
}

// PaymentMethod is the set of supported checkout methods.
type PaymentMethod string

const (
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodBoleto PaymentMethod = "boleto"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodCard, PaymentMethodBoleto:
		return true
	default:
		return false
	}
}

// Payment is one billing attempt. Rows are created pending by the initiator
// (or by the reconciler for recurring charges) and are mutated only by the
// reconciler afterwards. Payments are financial records and are never deleted.
type Payment struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	UserID                uint            `gorm:"not null;index" json:"user_id"`
	PlanID                uint            `gorm:"not null;index" json:"plan_id"`
	SubscriptionID        *uint           `gorm:"index" json:"subscription_id,omitempty"`
	Amount                decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Method                PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Status                PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	ExternalTransactionID string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"external_transaction_id"`
	ReminderCount         int             `gorm:"not null;default:0" json:"reminder_count"`
	CreatedAt             time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	ConfirmedAt           *time.Time      `gorm:"type:timestamp;default:null" json:"confirmed_at,omitempty"`
	ExpiresAt             *time.Time      `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
}

// PaymentAmountFromCents converts a plan price in minor currency units into
// the fixed decimal amount stored on a payment (price_cents / 100).
func PaymentAmountFromCents(priceCents int) decimal.Decimal {
	return decimal.New(int64(priceCents), -2)
}
