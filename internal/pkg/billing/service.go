package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/edumax-app/edumax/app/models"
)

// Notifier dispatches user-facing follow-up notifications. Implementations
// must not block: the reconciler calls these after commit and moves on.
type Notifier interface {
	NotifyPaymentConfirmed(userID, paymentID uint)
	NotifySubscriptionCancelled(userID, subscriptionID uint)
}

// Service implements the payment/subscription lifecycle: initiation of
// billing attempts, idempotent reconciliation of gateway webhooks, and the
// user-facing cancellation path.
type Service struct {
	repo     Repository
	gateway  Gateway
	notifier Notifier
}

// NewService creates a billing service from injected collaborators. notifier
// may be nil when no follow-up notifications are wanted (tests, migrations).
func NewService(repo Repository, gateway Gateway, notifier Notifier) *Service {
	return &Service{repo: repo, gateway: gateway, notifier: notifier}
}

// NewServiceFromDB creates a billing service from a GORM DB handle and the
// environment-configured gateway client.
func NewServiceFromDB(db *gorm.DB, notifier Notifier) *Service {
	return NewService(NewRepository(db), NewAppmaxClientFromEnv(), notifier)
}

// errNoLocalRecord marks an event whose referenced entity does not exist
// locally. Only the initial lookup of an apply raises it: a not-found that
// turns up after rows were already mutated is a data fault that must roll the
// delivery back, not park it in quarantine half-applied.
var errNoLocalRecord = errors.New("no matching local record")

func noLocalRecord(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errNoLocalRecord
	}
	return err
}

// Method-specific checkout expiry used when the gateway returns none.
func defaultExpiry(method models.PaymentMethod, from time.Time) *time.Time {
	var ttl time.Duration
	switch method {
	case models.PaymentMethodPix:
		ttl = time.Hour
	case models.PaymentMethodBoleto:
		ttl = 3 * 24 * time.Hour
	default:
		return nil
	}
	t := from.Add(ttl)
	return &t
}

// Initiate starts a new billing attempt: it validates the plan and method,
// opens a transaction with the gateway, and persists the pending Payment
// (plus the pending Subscription for recurring requests). The gateway call is
// not idempotent and is never retried here; on any gateway failure no local
// records exist.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	if !in.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, in.Method)
	}

	plan, err := s.repo.GetPlan(in.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	if in.IsSubscription {
		if _, err := s.repo.FindBlockingSubscription(in.UserID, in.PlanID); err == nil {
			return nil, ErrDuplicateSubscription
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user, err := s.repo.GetUser(in.UserID)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateway.OpenTransaction(ctx, OpenTransactionInput{
		AmountCents:    plan.PriceCents,
		Method:         in.Method,
		Recurring:      in.IsSubscription,
		CustomerName:   user.FullName,
		CustomerEmail:  user.Email,
		CustomerCPF:    user.CPF,
		PaymentDetails: in.PaymentDetails,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := gw.ExpiresAt
	if expiresAt == nil {
		expiresAt = defaultExpiry(in.Method, now)
	}

	result := &InitiateResult{CheckoutURL: gw.CheckoutURL}
	err = s.repo.Transaction(func(tx Repository) error {
		if in.IsSubscription {
			// Re-validate under lock: another initiation may have committed a
			// blocking subscription since the optimistic check above.
			if _, err := tx.FindBlockingSubscriptionForUpdate(in.UserID, in.PlanID); err == nil {
				return ErrDuplicateSubscription
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			sub := &models.Subscription{
				UserID:                 in.UserID,
				PlanID:                 in.PlanID,
				ExternalSubscriptionID: gw.SubscriptionID,
				Status:                 models.SubscriptionStatusPending,
			}
			if err := tx.CreateSubscription(sub); err != nil {
				return err
			}
			result.Subscription = sub
		}

		payment := &models.Payment{
			UserID:                in.UserID,
			PlanID:                in.PlanID,
			Amount:                models.PaymentAmountFromCents(plan.PriceCents),
			Method:                in.Method,
			Status:                models.PaymentStatusPending,
			ExternalTransactionID: gw.TransactionID,
			ExpiresAt:             expiresAt,
		}
		if result.Subscription != nil {
			payment.SubscriptionID = &result.Subscription.ID
		}
		if err := tx.CreatePayment(payment); err != nil {
			return err
		}
		result.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessEvent reconciles one gateway webhook delivery against local state.
// The ledger insert and the entity transition commit in a single transaction
// with the entity row locked, so replayed, duplicated, and racing deliveries
// converge: the first commit wins and every later delivery is a no-op.
//
// eventID is the gateway's delivery identifier when the transport provides
// one; otherwise the dedup key is derived from the payload itself.
func (s *Service) ProcessEvent(ctx context.Context, raw []byte, eventID string) (*ProcessOutcome, error) {
	_ = ctx
	payload, err := ParseWebhookPayload(raw)
	if err != nil {
		return nil, err
	}

	outcome := &ProcessOutcome{}
	var pending []func()

	err = s.repo.Transaction(func(tx Repository) error {
		event := &models.WebhookEvent{
			EventKey:       eventKey(eventID, raw),
			EventType:      payload.Event,
			TransactionID:  payload.TransactionID,
			SubscriptionID: payload.SubscriptionID,
			PayloadJSON:    string(raw),
		}
		created, err := tx.CreateWebhookEventIfNotExists(event)
		if err != nil {
			return err
		}
		if !created {
			outcome.Duplicate = true
			return nil
		}

		var notify []func()
		var applyErr error
		switch payload.Event {
		case EventPaymentUpdate:
			notify, applyErr = s.applyPaymentUpdate(tx, payload, outcome)
		case EventSubscriptionUpdate:
			applyErr = s.applySubscriptionUpdate(tx, payload, outcome)
		case EventChargeSuccess, EventChargeFailed:
			notify, applyErr = s.applyRecurringCharge(tx, payload, outcome)
		case EventRefund:
			applyErr = s.applyRefund(tx, payload, outcome)
		}

		if applyErr != nil {
			if errors.Is(applyErr, errNoLocalRecord) {
				// No local record matches the event. Keep the ledger row with
				// an error note for manual reconciliation and acknowledge the
				// delivery so the gateway stops retrying.
				outcome.Quarantined = true
				log.Printf("billing: quarantined %s event (txn=%q sub=%q): no matching local record",
					payload.Event, payload.TransactionID, payload.SubscriptionID)
				return tx.MarkWebhookProcessed(event.ID, "no matching local record")
			}
			// Transient local fault: roll everything back, including the
			// ledger row, so the gateway redelivers.
			return applyErr
		}

		pending = notify
		return tx.MarkWebhookProcessed(event.ID, "")
	})
	if err != nil {
		return nil, err
	}

	for _, fn := range pending {
		fn()
	}
	return outcome, nil
}

func (s *Service) applyPaymentUpdate(tx Repository, p *WebhookPayload, outcome *ProcessOutcome) ([]func(), error) {
	payment, err := tx.GetPaymentByExternalIDForUpdate(p.TransactionID)
	if err != nil {
		return nil, noLocalRecord(err)
	}

	next := MapPaymentStatus(p.Status)
	if !payment.Status.CanTransitionTo(next) {
		outcome.NoOp = true
		log.Printf("billing: payment_update on payment %d ignored (%s -> %s)", payment.ID, payment.Status, next)
		return nil, nil
	}

	payment.Status = next
	var notify []func()
	if next == models.PaymentStatusConfirmed {
		ts := p.EventTime()
		payment.ConfirmedAt = &ts
		if s.notifier != nil {
			userID, paymentID := payment.UserID, payment.ID
			notify = append(notify, func() { s.notifier.NotifyPaymentConfirmed(userID, paymentID) })
		}
	}
	if err := tx.SavePayment(payment); err != nil {
		return nil, err
	}

	// The first confirmed charge of a pending subscription activates it.
	if next == models.PaymentStatusConfirmed && payment.SubscriptionID != nil {
		sub, err := tx.GetSubscriptionByIDForUpdate(*payment.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.Status == models.SubscriptionStatusPending {
			sub.Status = models.SubscriptionStatusActive
			if err := tx.SaveSubscription(sub); err != nil {
				return nil, err
			}
		}
	}
	return notify, nil
}

func (s *Service) applySubscriptionUpdate(tx Repository, p *WebhookPayload, outcome *ProcessOutcome) error {
	sub, err := tx.GetSubscriptionByExternalIDForUpdate(p.SubscriptionID)
	if err != nil {
		return noLocalRecord(err)
	}

	next := MapSubscriptionStatus(p.Status)
	if !sub.Status.CanTransitionTo(next) {
		outcome.NoOp = true
		log.Printf("billing: subscription_update on subscription %d ignored (%s -> %s)", sub.ID, sub.Status, next)
		return nil
	}

	sub.Status = next
	switch next {
	case models.SubscriptionStatusCancelled:
		if sub.CancelledAt == nil {
			ts := p.EventTime()
			sub.CancelledAt = &ts
		}
	case models.SubscriptionStatusExpired:
		if sub.ExpiresAt == nil {
			ts := p.EventTime()
			sub.ExpiresAt = &ts
		}
	}
	return tx.SaveSubscription(sub)
}

// applyRecurringCharge records one billing-cycle charge as a new Payment row
// and adjusts the subscription. The payment's unique external transaction id
// absorbs duplicate deliveries that arrive under distinct event keys.
func (s *Service) applyRecurringCharge(tx Repository, p *WebhookPayload, outcome *ProcessOutcome) ([]func(), error) {
	sub, err := tx.GetSubscriptionByExternalIDForUpdate(p.SubscriptionID)
	if err != nil {
		return nil, noLocalRecord(err)
	}

	plan, err := tx.GetPlan(sub.PlanID)
	if err != nil {
		return nil, err
	}

	success := p.Event == EventChargeSuccess
	payment := &models.Payment{
		UserID:                sub.UserID,
		PlanID:                sub.PlanID,
		SubscriptionID:        &sub.ID,
		Amount:                models.PaymentAmountFromCents(plan.PriceCents),
		Method:                chargeMethod(p.Method),
		Status:                models.PaymentStatusFailed,
		ExternalTransactionID: p.TransactionID,
	}
	if success {
		ts := p.EventTime()
		payment.Status = models.PaymentStatusConfirmed
		payment.ConfirmedAt = &ts
	}

	created, err := tx.CreatePaymentIfNotExists(payment)
	if err != nil {
		return nil, err
	}
	if !created {
		outcome.NoOp = true
		log.Printf("billing: %s for transaction %q already recorded", p.Event, p.TransactionID)
		return nil, nil
	}

	var notify []func()
	if success {
		if s.notifier != nil {
			userID, paymentID := sub.UserID, payment.ID
			notify = append(notify, func() { s.notifier.NotifyPaymentConfirmed(userID, paymentID) })
		}
		if sub.Status.CanTransitionTo(models.SubscriptionStatusActive) {
			sub.Status = models.SubscriptionStatusActive
			if err := tx.SaveSubscription(sub); err != nil {
				return nil, err
			}
		}
	} else if sub.Status == models.SubscriptionStatusActive {
		sub.Status = models.SubscriptionStatusPastDue
		if err := tx.SaveSubscription(sub); err != nil {
			return nil, err
		}
	}
	return notify, nil
}

// applyRefund marks the referenced payment failed post-hoc. It is the one
// sanctioned exit from confirmed and never resurrects or alters the linked
// subscription; subscription state changes arrive solely as subscription or
// charge events.
func (s *Service) applyRefund(tx Repository, p *WebhookPayload, outcome *ProcessOutcome) error {
	payment, err := tx.GetPaymentByExternalIDForUpdate(p.TransactionID)
	if err != nil {
		return noLocalRecord(err)
	}

	if payment.Status == models.PaymentStatusFailed {
		outcome.NoOp = true
		return nil
	}
	payment.Status = models.PaymentStatusFailed
	return tx.SavePayment(payment)
}

// Cancel requests cancellation of the caller's subscription at the gateway,
// then applies a provisional local transition to cancelled. The confirming
// subscription_update webhook is a safe no-op because cancelled is sticky; a
// conflicting event that raced in first loses to the same rule.
func (s *Service) Cancel(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.repo.FindCancelableSubscription(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	if err := s.gateway.CancelSubscription(ctx, sub.ExternalSubscriptionID); err != nil {
		return nil, err
	}

	var cancelled bool
	err = s.repo.Transaction(func(tx Repository) error {
		locked, err := tx.GetSubscriptionByIDForUpdate(sub.ID)
		if err != nil {
			return err
		}
		sub = locked
		if locked.Status.IsTerminal() {
			// A webhook committed first; converge without touching the row.
			return nil
		}
		now := time.Now()
		locked.Status = models.SubscriptionStatusCancelled
		if locked.CancelledAt == nil {
			locked.CancelledAt = &now
		}
		cancelled = true
		return tx.SaveSubscription(locked)
	})
	if err != nil {
		return nil, err
	}

	if cancelled && s.notifier != nil {
		s.notifier.NotifySubscriptionCancelled(sub.UserID, sub.ID)
	}
	return sub, nil
}

// CurrentSubscription returns the caller's currently relevant subscription
// (pending, active or past_due), hiding historical terminal rows.
func (s *Service) CurrentSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	_ = ctx
	sub, err := s.repo.FindCurrentSubscription(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func eventKey(eventID string, raw []byte) string {
	if id := strings.TrimSpace(eventID); id != "" {
		return "evt:" + id
	}
	sum := sha256.Sum256(raw)
	return "hash:" + hex.EncodeToString(sum[:])
}

func chargeMethod(method string) models.PaymentMethod {
	m := models.PaymentMethod(strings.ToLower(strings.TrimSpace(method)))
	if m.Valid() {
		return m
	}
	// Recurring cycles without an explicit method are card charges.
	return models.PaymentMethodCard
}
