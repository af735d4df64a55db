package models

import "time"

// Plan is an immutable catalog entry. Plans are created by operators and never
// mutated by the billing flow; a Payment derives its amount from PriceCents
// exactly once at creation time.
type Plan struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(50);not null" json:"name" validate:"required,max=50"`
	PriceCents  int       `gorm:"not null" json:"price_cents" validate:"gte=0"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
