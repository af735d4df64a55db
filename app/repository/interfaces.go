package repository

import (
	"github.com/edumax-app/edumax/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByCPF(cpf string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// PlanRepository defines the interface for plan catalog operations
type PlanRepository interface {
	GetByID(id uint) (*models.Plan, error)
	GetAll() ([]models.Plan, error)
	Create(plan *models.Plan) error
	Count() (int64, error)
}

// PaymentRepository defines the interface for payment-related database operations
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByExternalID(externalID string) (*models.Payment, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Payment, error)
	GetPendingDueForReminder(maxReminders int, limit int) ([]models.Payment, error)
	IncrementReminderCount(id uint) (bool, error)
	Update(payment *models.Payment) error
	Count() (int64, error)
	CountByStatus(status models.PaymentStatus) (int64, error)
}

// SubscriptionRepository defines the interface for subscription-related database operations
type SubscriptionRepository interface {
	Create(subscription *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByExternalID(externalID string) (*models.Subscription, error)
	GetCurrentByUserID(userID uint) (*models.Subscription, error)
	GetByUserID(userID uint) ([]models.Subscription, error)
	Update(subscription *models.Subscription) error
	Count() (int64, error)
	CountByStatus(status models.SubscriptionStatus) (int64, error)
}

// WebhookEventRepository defines the interface for the webhook ledger
type WebhookEventRepository interface {
	GetByEventKey(eventKey string) (*models.WebhookEvent, error)
	ListRecent(limit int) ([]models.WebhookEvent, error)
	ListQuarantined(limit int) ([]models.WebhookEvent, error)
	Count() (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Plan         PlanRepository
	Payment      PaymentRepository
	Subscription SubscriptionRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Plan:         NewPlanRepository(db),
		Payment:      NewPaymentRepository(db),
		Subscription: NewSubscriptionRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
