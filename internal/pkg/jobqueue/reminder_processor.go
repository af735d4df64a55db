package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/edumax-app/edumax/app/models"
	"github.com/edumax-app/edumax/app/repository"
	"github.com/edumax-app/edumax/internal/pkg/mail"
)

// Reminder settings
const (
	MaxPaymentReminders  = 3
	ReminderScanBatchLen = 100
)

// EnqueuePaymentReminderJob enqueues a reminder email for a pending payment
func (q *Queue) EnqueuePaymentReminderJob(paymentID uint) (*Job, error) {
	return q.EnqueueJob(JobTypePaymentReminder, PaymentReminderJobPayload{PaymentID: paymentID}.ToMap())
}

// EnqueueDueReminders scans for pending payments awaiting a reminder and
// enqueues one job per payment. Called periodically by the manager.
func (q *Queue) EnqueueDueReminders() error {
	repos := repository.GetGlobalRepositories()
	payments, err := repos.Payment.GetPendingDueForReminder(MaxPaymentReminders, ReminderScanBatchLen)
	if err != nil {
		return fmt.Errorf("reminder scan failed: %w", err)
	}

	for _, payment := range payments {
		if _, err := q.EnqueuePaymentReminderJob(payment.ID); err != nil {
			log.Errorf("[JobQueue] Failed to enqueue reminder for payment %d: %v", payment.ID, err)
		}
	}
	return nil
}

// processPaymentReminderJob sends a reminder email for a still-pending payment
// and bumps its reminder counter.
func (q *Queue) processPaymentReminderJob(ctx context.Context, job *Job) error {
	payload, err := PaymentReminderJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payment reminder payload: %w", err)
	}

	repos := repository.GetGlobalRepositories()
	return sendPaymentReminder(repos.Payment, repos.User, payload.PaymentID, mail.SendMail)
}

func sendPaymentReminder(payments repository.PaymentRepository, users repository.UserRepository, paymentID uint, send func(to, subject, body string) error) error {
	payment, err := payments.GetByID(paymentID)
	if err != nil {
		return fmt.Errorf("failed to load payment %d: %w", paymentID, err)
	}

	// The webhook may have resolved the payment between scan and send.
	if payment.Status != models.PaymentStatusPending {
		log.Infof("[JobQueue] Payment %d no longer pending, skipping reminder", payment.ID)
		return nil
	}
	if payment.ReminderCount >= MaxPaymentReminders {
		return nil
	}

	user, err := users.GetByID(payment.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", payment.UserID, err)
	}

	subject := "Seu pagamento está pendente"
	body := fmt.Sprintf(
		"<p>Olá %s,</p><p>Seu pagamento de R$ %s ainda está pendente. Conclua o pagamento para liberar o acesso.</p>",
		user.FullName, payment.Amount.StringFixed(2),
	)
	if err := send(user.Email, subject, body); err != nil {
		return err
	}

	// Guarded single-column update: a webhook that confirmed the payment
	// during the send must not be reverted by a stale full-row save.
	bumped, err := payments.IncrementReminderCount(payment.ID)
	if err != nil {
		return fmt.Errorf("failed to bump reminder count for payment %d: %w", payment.ID, err)
	}
	if !bumped {
		log.Infof("[JobQueue] Payment %d resolved during reminder send, counter untouched", payment.ID)
	}
	return nil
}
