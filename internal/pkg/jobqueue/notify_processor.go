package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/edumax-app/edumax/app/repository"
	"github.com/edumax-app/edumax/internal/pkg/mail"
)

// EnqueueEmailNotificationJob enqueues a transactional email for a lifecycle event
func (q *Queue) EnqueueEmailNotificationJob(payload EmailNotificationJobPayload) (*Job, error) {
	return q.EnqueueJob(JobTypeEmailNotification, payload.ToMap())
}

// processEmailNotificationJob sends the email for a lifecycle notification job
func (q *Queue) processEmailNotificationJob(ctx context.Context, job *Job) error {
	payload, err := EmailNotificationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid email notification payload: %w", err)
	}

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByID(payload.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", payload.UserID, err)
	}

	var subject, body string
	switch payload.Kind {
	case NotificationPaymentConfirmed:
		payment, err := repos.Payment.GetByID(payload.PaymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment %d: %w", payload.PaymentID, err)
		}
		subject = "Pagamento confirmado"
		body = fmt.Sprintf(
			"<p>Olá %s,</p><p>Seu pagamento de R$ %s foi confirmado. Bons estudos!</p>",
			user.FullName, payment.Amount.StringFixed(2),
		)
	case NotificationSubscriptionCancelled:
		subject = "Assinatura cancelada"
		body = fmt.Sprintf(
			"<p>Olá %s,</p><p>Sua assinatura foi cancelada. Você pode assinar novamente a qualquer momento.</p>",
			user.FullName,
		)
	default:
		return fmt.Errorf("unknown notification kind: %s", payload.Kind)
	}

	return mail.SendMail(user.Email, subject, body)
}

// Notifier enqueues lifecycle notification emails on the job queue. It is the
// async delivery half of the billing service's post-commit callbacks.
type Notifier struct{}

// NewNotifier creates a queue-backed notifier
func NewNotifier() *Notifier {
	return &Notifier{}
}

// NotifyPaymentConfirmed enqueues the payment confirmation email
func (n *Notifier) NotifyPaymentConfirmed(userID, paymentID uint) {
	_, err := GetManager().GetQueue().EnqueueEmailNotificationJob(EmailNotificationJobPayload{
		UserID:    userID,
		Kind:      NotificationPaymentConfirmed,
		PaymentID: paymentID,
	})
	if err != nil {
		log.Errorf("[JobQueue] Failed to enqueue payment confirmation for user %d: %v", userID, err)
	}
}

// NotifySubscriptionCancelled enqueues the cancellation email
func (n *Notifier) NotifySubscriptionCancelled(userID, subscriptionID uint) {
	_, err := GetManager().GetQueue().EnqueueEmailNotificationJob(EmailNotificationJobPayload{
		UserID:         userID,
		Kind:           NotificationSubscriptionCancelled,
		SubscriptionID: subscriptionID,
	})
	if err != nil {
		log.Errorf("[JobQueue] Failed to enqueue cancellation notice for user %d: %v", userID, err)
	}
}
