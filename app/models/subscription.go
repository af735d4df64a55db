package models

import "time"

// SubscriptionStatus is the closed set of local subscription states.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// IsTerminal reports whether s is an absorbing state. Terminal subscriptions
// reject every further non-idempotent mutation, including late or racing
// webhook events.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

// Blocks reports whether a subscription in state s prevents the same
// (user, plan) pair from opening another one.
func (s SubscriptionStatus) Blocks() bool {
	return s == SubscriptionStatusPending || s == SubscriptionStatusActive || s == SubscriptionStatusPastDue
}

// CanTransitionTo is the exhaustive transition table for subscriptions.
// Terminal states have no exits and nothing may move back to pending.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	if s.IsTerminal() || next == SubscriptionStatusPending {
		return false
	}
	switch s {
	case SubscriptionStatusPending:
		return next == SubscriptionStatusActive || next == SubscriptionStatusPastDue ||
			next == SubscriptionStatusCancelled || next == SubscriptionStatusExpired
	case SubscriptionStatusActive:
		return next == SubscriptionStatusPastDue || next == SubscriptionStatusCancelled ||
			next == SubscriptionStatusExpired
	case SubscriptionStatusPastDue:
		return next == SubscriptionStatusActive || next == SubscriptionStatusCancelled ||
			next == SubscriptionStatusExpired
	default:
		return false
	}
}

// Subscription is a recurring billing relationship with the gateway. It is
// created pending by the initiator; afterwards its status moves only through
// the transition table above, driven by the reconciler and the user-facing
// cancellation path.
type Subscription struct {
	ID                     uint               `gorm:"primaryKey" json:"id"`
	UserID                 uint               `gorm:"not null;index:idx_subscriptions_user_status,priority:1" json:"user_id"`
	PlanID                 uint               `gorm:"not null;index" json:"plan_id"`
	ExternalSubscriptionID string             `gorm:"type:varchar(100);not null;uniqueIndex" json:"external_subscription_id"`
	Status                 SubscriptionStatus `gorm:"type:varchar(20);not null;index:idx_subscriptions_user_status,priority:2" json:"status"`
	StartedAt              time.Time          `gorm:"autoCreateTime" json:"started_at"`
	UpdatedAt              time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	CancelledAt            *time.Time         `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	ExpiresAt              *time.Time         `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
}
