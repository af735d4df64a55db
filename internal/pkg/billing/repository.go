package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edumax-app/edumax/app/models"
)

// Repository provides the DB operations used by the billing service. The
// ForUpdate variants take a row-level lock and are only meaningful inside
// Transaction, which hands the callback a repository bound to the open
// transaction: together they form the per-entity critical section that makes
// read-status-decide-write atomic under concurrent webhook delivery.
type Repository interface {
	GetPlan(id uint) (*models.Plan, error)
	GetUser(id uint) (*models.User, error)

	FindBlockingSubscription(userID, planID uint) (*models.Subscription, error)
	FindBlockingSubscriptionForUpdate(userID, planID uint) (*models.Subscription, error)
	FindCurrentSubscription(userID uint) (*models.Subscription, error)
	FindCancelableSubscription(userID uint) (*models.Subscription, error)

	CreatePayment(p *models.Payment) error
	CreatePaymentIfNotExists(p *models.Payment) (bool, error)
	CreateSubscription(s *models.Subscription) error
	SavePayment(p *models.Payment) error
	SaveSubscription(s *models.Subscription) error

	GetPaymentByExternalIDForUpdate(externalTransactionID string) (*models.Payment, error)
	GetSubscriptionByExternalIDForUpdate(externalSubscriptionID string) (*models.Subscription, error)
	GetSubscriptionByIDForUpdate(id uint) (*models.Subscription, error)

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, error)
	MarkWebhookProcessed(id uint, processingError string) error

	Transaction(fn func(tx Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetPlan(id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) FindBlockingSubscription(userID, planID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("user_id = ? AND plan_id = ? AND status IN ?", userID, planID, blockingStatuses()).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindBlockingSubscriptionForUpdate is the locked variant used to re-validate
// the uniqueness check inside the insert transaction: two racing initiations
// serialize on the existing row instead of both inserting.
func (r *gormRepository) FindBlockingSubscriptionForUpdate(userID, planID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND plan_id = ? AND status IN ?", userID, planID, blockingStatuses()).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindCurrentSubscription(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("user_id = ? AND status IN ?", userID, blockingStatuses()).
		Order("started_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindCancelableSubscription(userID uint) (*models.Subscription, error) {
	// Cancelable and blocking are the same set: pending, active, past_due.
	return r.FindCurrentSubscription(userID)
}

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

// CreatePaymentIfNotExists inserts a payment unless its external transaction
// id is already present. A lost insert means a concurrent or earlier delivery
// already recorded this charge; callers treat that as already-processed
// rather than an error.
func (r *gormRepository) CreatePaymentIfNotExists(p *models.Payment) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_transaction_id"}},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) CreateSubscription(s *models.Subscription) error {
	return r.db.Create(s).Error
}

func (r *gormRepository) SavePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) SaveSubscription(s *models.Subscription) error {
	return r.db.Save(s).Error
}

func (r *gormRepository) GetPaymentByExternalIDForUpdate(externalTransactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_transaction_id = ?", externalTransactionID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) GetSubscriptionByExternalIDForUpdate(externalSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_subscription_id = ?", externalSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByIDForUpdate(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_key"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) Transaction(fn func(tx Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func blockingStatuses() []models.SubscriptionStatus {
	return []models.SubscriptionStatus{
		models.SubscriptionStatusPending,
		models.SubscriptionStatusActive,
		models.SubscriptionStatusPastDue,
	}
}
