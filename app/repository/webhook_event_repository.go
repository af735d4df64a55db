package repository

import (
	"github.com/edumax-app/edumax/app/models"
	"gorm.io/gorm"
)

// webhookEventRepository implements the WebhookEventRepository interface.
// Writes to the ledger happen inside the billing service transaction; this
// repository exposes read access for the admin surfaces.
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook ledger repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// GetByEventKey retrieves a ledger entry by its dedup key
func (r *webhookEventRepository) GetByEventKey(eventKey string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.Where("event_key = ?", eventKey).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListRecent retrieves the newest ledger entries
func (r *webhookEventRepository) ListRecent(limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

// ListQuarantined retrieves ledger entries that were acknowledged without a
// matching local record
func (r *webhookEventRepository) ListQuarantined(limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("processing_error <> ''").Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

// Count returns the total number of ledger entries
func (r *webhookEventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookEvent{}).Count(&count).Error
	return count, err
}
