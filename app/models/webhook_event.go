package models

import "time"

// WebhookEvent is the reconciliation ledger for gateway notifications. Each
// row records one applied (or quarantined) event; the unique event key makes
// redelivered payloads a no-op. Rows are written in the same transaction as
// the entity transition they caused, so a crash between the two cannot leave
// a half-applied event behind.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EventKey        string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_key"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	TransactionID   string     `gorm:"type:varchar(100);index" json:"transaction_id,omitempty"`
	SubscriptionID  string     `gorm:"type:varchar(100);index" json:"subscription_id,omitempty"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
