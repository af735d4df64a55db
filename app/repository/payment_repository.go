package repository

import (
	"time"

	"github.com/edumax-app/edumax/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create creates a new payment in the database
func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByID retrieves a payment by its ID
func (r *paymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByExternalID retrieves a payment by its gateway transaction ID
func (r *paymentRepository) GetByExternalID(externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("external_transaction_id = ?", externalID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByUserID retrieves a paginated payment history for a user, newest first
func (r *paymentRepository) GetByUserID(userID uint, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	return payments, err
}

// GetPendingDueForReminder returns pending payments that have not expired yet
// and have received fewer than maxReminders reminder emails.
func (r *paymentRepository) GetPendingDueForReminder(maxReminders int, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("status = ? AND reminder_count < ? AND expires_at IS NOT NULL AND expires_at > ?",
		models.PaymentStatusPending, maxReminders, time.Now()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// IncrementReminderCount bumps the reminder counter of a payment in a single
// guarded UPDATE. The status predicate keeps the write from clobbering a
// payment that a webhook confirmed or expired concurrently; it reports whether
// a row was actually updated.
func (r *paymentRepository) IncrementReminderCount(id uint) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		UpdateColumn("reminder_count", gorm.Expr("reminder_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Update updates an existing payment in the database
func (r *paymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// Count returns the total number of payments
func (r *paymentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of payments in the given status
func (r *paymentRepository) CountByStatus(status models.PaymentStatus) (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
