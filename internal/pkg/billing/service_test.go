package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/edumax-app/edumax/app/models"
)

// fakeRepo is an in-memory Repository with snapshot-based transaction
// rollback, so the atomicity of ledger insert + entity transition can be
// exercised without a database.
type fakeRepo struct {
	plans    map[uint]*models.Plan
	users    map[uint]*models.User
	payments []*models.Payment
	subs     []*models.Subscription
	events   []*models.WebhookEvent
	nextID   uint

	failSavePayment error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		plans:  map[uint]*models.Plan{},
		users:  map[uint]*models.User{},
		nextID: 1,
	}
}

func (f *fakeRepo) id() uint {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeRepo) GetPlan(id uint) (*models.Plan, error) {
	if p, ok := f.plans[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetUser(id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindBlockingSubscription(userID, planID uint) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.UserID == userID && s.PlanID == planID && s.Status.Blocks() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindBlockingSubscriptionForUpdate(userID, planID uint) (*models.Subscription, error) {
	return f.FindBlockingSubscription(userID, planID)
}

func (f *fakeRepo) FindCurrentSubscription(userID uint) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.UserID == userID && s.Status.Blocks() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindCancelableSubscription(userID uint) (*models.Subscription, error) {
	return f.FindCurrentSubscription(userID)
}

func (f *fakeRepo) CreatePayment(p *models.Payment) error {
	p.ID = f.id()
	cp := *p
	f.payments = append(f.payments, &cp)
	return nil
}

func (f *fakeRepo) CreatePaymentIfNotExists(p *models.Payment) (bool, error) {
	for _, existing := range f.payments {
		if existing.ExternalTransactionID == p.ExternalTransactionID {
			return false, nil
		}
	}
	return true, f.CreatePayment(p)
}

func (f *fakeRepo) CreateSubscription(s *models.Subscription) error {
	s.ID = f.id()
	cp := *s
	f.subs = append(f.subs, &cp)
	return nil
}

func (f *fakeRepo) SavePayment(p *models.Payment) error {
	if f.failSavePayment != nil {
		err := f.failSavePayment
		f.failSavePayment = nil
		return err
	}
	for i, existing := range f.payments {
		if existing.ID == p.ID {
			cp := *p
			f.payments[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveSubscription(s *models.Subscription) error {
	for i, existing := range f.subs {
		if existing.ID == s.ID {
			cp := *s
			f.subs[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetPaymentByExternalIDForUpdate(extID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.ExternalTransactionID == extID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetSubscriptionByExternalIDForUpdate(extID string) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.ExternalSubscriptionID == extID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetSubscriptionByIDForUpdate(id uint) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, error) {
	for _, e := range f.events {
		if e.EventKey == event.EventKey {
			return false, nil
		}
	}
	event.ID = f.id()
	cp := *event
	f.events = append(f.events, &cp)
	return true, nil
}

func (f *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range f.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) Transaction(fn func(tx Repository) error) error {
	payments := clonePayments(f.payments)
	subs := cloneSubs(f.subs)
	events := cloneEvents(f.events)
	nextID := f.nextID

	if err := fn(f); err != nil {
		f.payments = payments
		f.subs = subs
		f.events = events
		f.nextID = nextID
		return err
	}
	return nil
}

func clonePayments(in []*models.Payment) []*models.Payment {
	out := make([]*models.Payment, len(in))
	for i, p := range in {
		cp := *p
		out[i] = &cp
	}
	return out
}

func cloneSubs(in []*models.Subscription) []*models.Subscription {
	out := make([]*models.Subscription, len(in))
	for i, s := range in {
		cp := *s
		out[i] = &cp
	}
	return out
}

func cloneEvents(in []*models.WebhookEvent) []*models.WebhookEvent {
	out := make([]*models.WebhookEvent, len(in))
	for i, e := range in {
		cp := *e
		out[i] = &cp
	}
	return out
}

type fakeGateway struct {
	openResult *OpenTransactionResult
	openErr    error
	openFn     func()
	cancelErr  error
	cancelFn   func(subscriptionID string)

	openCalls   int
	cancelCalls []string
}

func (g *fakeGateway) OpenTransaction(_ context.Context, _ OpenTransactionInput) (*OpenTransactionResult, error) {
	g.openCalls++
	if g.openFn != nil {
		g.openFn()
	}
	if g.openErr != nil {
		return nil, g.openErr
	}
	return g.openResult, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, subscriptionID string) error {
	g.cancelCalls = append(g.cancelCalls, subscriptionID)
	if g.cancelFn != nil {
		g.cancelFn(subscriptionID)
	}
	return g.cancelErr
}

type fakeNotifier struct {
	confirmed []uint
	cancelled []uint
}

func (n *fakeNotifier) NotifyPaymentConfirmed(_, paymentID uint) {
	n.confirmed = append(n.confirmed, paymentID)
}

func (n *fakeNotifier) NotifySubscriptionCancelled(_, subID uint) {
	n.cancelled = append(n.cancelled, subID)
}

func seedRepo() *fakeRepo {
	repo := newFakeRepo()
	repo.plans[1] = &models.Plan{ID: 1, Name: "Premium", PriceCents: 1000}
	repo.users[7] = &models.User{ID: 7, FullName: "Maria Silva", Email: "maria@example.com", CPF: "12345678901"}
	return repo
}

func webhookBody(t *testing.T, fields map[string]string) []byte {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

// Full lifecycle: initiate -> confirm -> failed cycle -> user cancel ->
// late conflicting webhook, exercising every component together.
func TestSubscriptionLifecycle(t *testing.T) {
	repo := seedRepo()
	gateway := &fakeGateway{openResult: &OpenTransactionResult{
		TransactionID:  "txn_1",
		SubscriptionID: "sub_1",
		Status:         "pending",
		CheckoutURL:    "https://checkout.example/txn_1",
	}}
	notifier := &fakeNotifier{}
	svc := NewService(repo, gateway, notifier)
	ctx := context.Background()

	result, err := svc.Initiate(ctx, InitiateInput{UserID: 7, PlanID: 1, Method: models.PaymentMethodPix, IsSubscription: true})
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	require.NotNil(t, result.Subscription)
	assert.Equal(t, models.PaymentStatusPending, result.Payment.Status)
	assert.Equal(t, "10", result.Payment.Amount.String())
	assert.Equal(t, models.SubscriptionStatusPending, result.Subscription.Status)
	assert.Equal(t, "https://checkout.example/txn_1", result.CheckoutURL)
	require.NotNil(t, result.Payment.ExpiresAt, "pix checkout gets a default expiry")

	// First charge approved: payment confirmed, subscription activated.
	outcome, err := svc.ProcessEvent(ctx, webhookBody(t, map[string]string{
		"event": "payment_update", "transaction_id": "txn_1", "status": "approved",
	}), "evt-1")
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.False(t, outcome.NoOp)

	payment, err := repo.GetPaymentByExternalIDForUpdate("txn_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, payment.Status)
	require.NotNil(t, payment.ConfirmedAt)

	sub, err := repo.GetSubscriptionByExternalIDForUpdate("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, []uint{payment.ID}, notifier.confirmed)

	// Next cycle fails: new failed payment row, subscription past_due.
	outcome, err = svc.ProcessEvent(ctx, webhookBody(t, map[string]string{
		"event": "charge_failed", "transaction_id": "txn_2", "subscription_id": "sub_1", "status": "rejected",
	}), "evt-2")
	require.NoError(t, err)
	assert.False(t, outcome.NoOp)

	cycle, err := repo.GetPaymentByExternalIDForUpdate("txn_2")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, cycle.Status)
	require.NotNil(t, cycle.SubscriptionID)

	sub, err = repo.GetSubscriptionByExternalIDForUpdate("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)

	// User cancels.
	cancelledSub, err := svc.Cancel(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub_1"}, gateway.cancelCalls)
	assert.Equal(t, models.SubscriptionStatusCancelled, cancelledSub.Status)
	require.NotNil(t, cancelledSub.CancelledAt)
	firstCancelledAt := *cancelledSub.CancelledAt
	assert.Equal(t, []uint{sub.ID}, notifier.cancelled)

	// A stale subscription_update cannot leave the terminal state.
	outcome, err = svc.ProcessEvent(ctx, webhookBody(t, map[string]string{
		"event": "subscription_update", "subscription_id": "sub_1", "status": "past_due",
	}), "evt-3")
	require.NoError(t, err)
	assert.True(t, outcome.NoOp)

	sub, err = repo.GetSubscriptionByExternalIDForUpdate("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	require.NotNil(t, sub.CancelledAt)
	assert.Equal(t, firstCancelledAt, *sub.CancelledAt)
}

func TestInitiateValidation(t *testing.T) {
	repo := seedRepo()
	gateway := &fakeGateway{}
	svc := NewService(repo, gateway, nil)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, InitiateInput{UserID: 7, PlanID: 99, Method: models.PaymentMethodPix})
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = svc.Initiate(ctx, InitiateInput{UserID: 7, PlanID: 1, Method: "paypal"})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	assert.Zero(t, gateway.openCalls, "validation failures must not reach the gateway")
}

func TestInitiateDuplicateSubscription(t *testing.T) {
	for _, blocking := range []models.SubscriptionStatus{
		models.SubscriptionStatusPending,
		models.SubscriptionStatusActive,
		models.SubscriptionStatusPastDue,
	} {
		repo := seedRepo()
		repo.subs = append(repo.subs, &models.Subscription{
			ID: 50, UserID: 7, PlanID: 1, ExternalSubscriptionID: "sub_old", Status: blocking,
		})
		gateway := &fakeGateway{}
		svc := NewService(repo, gateway, nil)

		_, err := svc.Initiate(context.Background(), InitiateInput{
			UserID: 7, PlanID: 1, Method: models.PaymentMethodCard, IsSubscription: true,
		})
		assert.ErrorIs(t, err, ErrDuplicateSubscription, "status %s must block", blocking)
		assert.Zero(t, gateway.openCalls)
	}

	// Terminal subscriptions do not block a new one.
	repo := seedRepo()
	repo.subs = append(repo.subs, &models.Subscription{
		ID: 50, UserID: 7, PlanID: 1, ExternalSubscriptionID: "sub_old", Status: models.SubscriptionStatusCancelled,
	})
	gateway := &fakeGateway{openResult: &OpenTransactionResult{
		TransactionID: "txn_9", SubscriptionID: "sub_9", CheckoutURL: "https://checkout.example/txn_9",
	}}
	svc := NewService(repo, gateway, nil)
	_, err := svc.Initiate(context.Background(), InitiateInput{
		UserID: 7, PlanID: 1, Method: models.PaymentMethodCard, IsSubscription: true,
	})
	require.NoError(t, err)
}

// A second initiation that commits its blocking subscription between the
// optimistic pre-check and the local insert must be caught by the re-check
// under lock inside the transaction.
func TestInitiateDuplicateSubscriptionRace(t *testing.T) {
	repo := seedRepo()
	gateway := &fakeGateway{openResult: &OpenTransactionResult{
		TransactionID: "txn_late", SubscriptionID: "sub_late", CheckoutURL: "https://checkout.example/txn_late",
	}}
	// The rival initiation wins while this one is talking to the gateway.
	gateway.openFn = func() {
		repo.subs = append(repo.subs, &models.Subscription{
			ID: 60, UserID: 7, PlanID: 1, ExternalSubscriptionID: "sub_rival", Status: models.SubscriptionStatusPending,
		})
	}
	svc := NewService(repo, gateway, nil)

	_, err := svc.Initiate(context.Background(), InitiateInput{
		UserID: 7, PlanID: 1, Method: models.PaymentMethodCard, IsSubscription: true,
	})
	assert.ErrorIs(t, err, ErrDuplicateSubscription)

	require.Len(t, repo.subs, 1, "the losing initiation must not insert a second subscription")
	assert.Equal(t, "sub_rival", repo.subs[0].ExternalSubscriptionID)
	assert.Empty(t, repo.payments, "the losing initiation rolls back entirely")
}

func TestInitiateGatewayFailureLeavesNoRecords(t *testing.T) {
	repo := seedRepo()
	gateway := &fakeGateway{openErr: &GatewayError{Op: "open_transaction", Uncertain: true, Err: errors.New("timeout")}}
	svc := NewService(repo, gateway, nil)

	_, err := svc.Initiate(context.Background(), InitiateInput{UserID: 7, PlanID: 1, Method: models.PaymentMethodBoleto})
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Uncertain)
	assert.Empty(t, repo.payments)
	assert.Empty(t, repo.subs)
	assert.Equal(t, 1, gateway.openCalls, "ambiguous failures are never auto-retried")
}

func TestProcessEventDuplicateDelivery(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, &fakeGateway{}, nil)
	ctx := context.Background()

	repo.payments = append(repo.payments, &models.Payment{
		ID: 10, UserID: 7, PlanID: 1, Status: models.PaymentStatusPending, ExternalTransactionID: "txn_1",
	})

	body := webhookBody(t, map[string]string{
		"event": "payment_update", "transaction_id": "txn_1", "status": "approved",
	})

	first, err := svc.ProcessEvent(ctx, body, "")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	confirmedAt := repo.payments[0].ConfirmedAt
	require.NotNil(t, confirmedAt)

	// Identical body, no delivery id: dedup key comes from the payload hash.
	for i := 0; i < 3; i++ {
		again, err := svc.ProcessEvent(ctx, body, "")
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
	}

	assert.Len(t, repo.events, 1, "replays must not grow the ledger")
	assert.Equal(t, confirmedAt, repo.payments[0].ConfirmedAt, "confirmed_at is set exactly once")
}

func TestProcessEventChargeSuccessReplayedUnderNewKey(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, &fakeGateway{}, nil)
	ctx := context.Background()

	repo.subs = append(repo.subs, &models.Subscription{
		ID: 20, UserID: 7, PlanID: 1, ExternalSubscriptionID: "sub_1", Status: models.SubscriptionStatusPastDue,
	})

	body := webhookBody(t, map[string]string{
		"event": "charge_success", "transaction_id": "txn_5", "subscription_id": "sub_1", "status": "approved",
	})

	first, err := svc.ProcessEvent(ctx, body, "evt-a")
	require.NoError(t, err)
	assert.False(t, first.NoOp)
	assert.Len(t, repo.payments, 1)
	assert.Equal(t, models.SubscriptionStatusActive, repo.subs[0].Status)

	// Redelivered under a fresh delivery id: the unique external transaction
	// id catches it.
	second, err := svc.ProcessEvent(ctx, body, "evt-b")
	require.NoError(t, err)
	assert.True(t, second.NoOp)
	assert.Len(t, repo.payments, 1, "exactly one payment row per billing cycle")
}

func TestProcessEventQuarantinesUnknownRecords(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, &fakeGateway{}, nil)

	outcome, err := svc.ProcessEvent(context.Background(), webhookBody(t, map[string]string{
		"event": "payment_update", "transaction_id": "txn_ghost", "status": "approved",
	}), "evt-1")
	require.NoError(t, err, "quarantined events are acknowledged to stop gateway retries")
	assert.True(t, outcome.Quarantined)

	require.Len(t, repo.events, 1)
	assert.Equal(t, "no matching local record", repo.events[0].ProcessingError)
	require.NotNil(t, repo.events[0].ProcessedAt)
	assert.Empty(t, repo.payments, "quarantine must not create orphan records")
}

// Quarantine is reserved for events whose referenced entity is missing up
// front. A not-found that surfaces after the payment was already mutated (here
// a dangling subscription link) is a data fault: the delivery rolls back and
// the gateway redelivers, instead of committing a half-applied event.
func TestProcessEventDanglingSubscriptionLinkRollsBack(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, &fakeGateway{}, nil)
	ctx := context.Background()

	missingSubID := uint(99)
	repo.payments = append(repo.payments, &models.Payment{
		ID: 10, UserID: 7, PlanID: 1, SubscriptionID: &missingSubID,
		Status: models.PaymentStatusPending, ExternalTransactionID: "txn_1",
	})

	outcome, err := svc.ProcessEvent(ctx, webhookBody(t, map[string]string{
		"event": "payment_update", "transaction_id": "txn_1", "status": "approved",
	}), "evt-1")
	require.Error(t, err)
	assert.Nil(t, outcome)

	assert.Empty(t, repo.events, "the ledger row rolls back with the payment")
	assert.Equal(t, models.PaymentStatusPending, repo.payments[0].Status)
	assert.Nil(t, repo.payments[0].ConfirmedAt)
}

func TestProcessEventMalformedPayload(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, &fakeGateway{}, nil)
	ctx := context.Background()

	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"event":"payment_update","status":"approved"}`),            // missing transaction_id
		[]byte(`{"event":"subscription_update","status":"cancelled"}`),      // missing subscription_id
		[]byte(`{"event":"charge_success","transaction_id":"txn_1"}`),       // missing subscription_id
		[]byte(`{"event":"mystery","transaction_id":"txn_1","status":"x"}`), // unknown kind
	}

	for _, raw := range cases {
		_, err := svc.ProcessEvent(ctx, raw, "evt-x")
		assert.ErrorIs(t, err, ErrMalformedPayload)
	}
	assert.Empty(t, repo.events, "rejected payloads must not enter the ledger")
}

func TestProcessEventTransientFaultRollsBackLedger(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, &fakeGateway{}, nil)
	ctx := context.Background()

	repo.payments = append(repo.payments, &models.Payment{
		ID: 10, UserID: 7, PlanID: 1, Status: models.PaymentStatusPending, ExternalTransactionID: "txn_1",
	})
	repo.failSavePayment = errors.New("deadlock found when trying to get lock")

	body := webhookBody(t, map[string]string{
		"event": "payment_update", "transaction_id": "txn_1", "status": "approved",
	})

	_, err := svc.ProcessEvent(ctx, body, "evt-1")
	require.Error(t, err)
	assert.Empty(t, repo.events, "failed application must roll the ledger row back")
	assert.Equal(t, models.PaymentStatusPending, repo.payments[0].Status)

	// The gateway redelivers; this time it applies.
	outcome, err := svc.ProcessEvent(ctx, body, "evt-1")
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.Equal(t, models.PaymentStatusConfirmed, repo.payments[0].Status)
	assert.Len(t, repo.events, 1)
}

func TestRefundMarksPaymentFailedOnly(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, &fakeGateway{}, nil)
	ctx := context.Background()

	subID := uint(20)
	now := time.Now()
	repo.subs = append(repo.subs, &models.Subscription{
		ID: subID, UserID: 7, PlanID: 1, ExternalSubscriptionID: "sub_1", Status: models.SubscriptionStatusActive,
	})
	repo.payments = append(repo.payments, &models.Payment{
		ID: 10, UserID: 7, PlanID: 1, SubscriptionID: &subID,
		Status: models.PaymentStatusConfirmed, ConfirmedAt: &now, ExternalTransactionID: "txn_1",
	})

	outcome, err := svc.ProcessEvent(ctx, webhookBody(t, map[string]string{
		"event": "refund", "transaction_id": "txn_1", "status": "refunded",
	}), "evt-1")
	require.NoError(t, err)
	assert.False(t, outcome.NoOp)

	assert.Equal(t, models.PaymentStatusFailed, repo.payments[0].Status)
	assert.Equal(t, models.SubscriptionStatusActive, repo.subs[0].Status,
		"a refund never touches the subscription")

	// Refund replayed against an already failed payment is a no-op.
	again, err := svc.ProcessEvent(ctx, webhookBody(t, map[string]string{
		"event": "refund", "transaction_id": "txn_1", "status": "chargeback",
	}), "evt-2")
	require.NoError(t, err)
	assert.True(t, again.NoOp)
}

func TestCancelWithoutSubscription(t *testing.T) {
	repo := seedRepo()
	gateway := &fakeGateway{}
	svc := NewService(repo, gateway, nil)

	_, err := svc.Cancel(context.Background(), 7)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	assert.Empty(t, gateway.cancelCalls)
}

func TestCancelGatewayRejectionLeavesStateUntouched(t *testing.T) {
	repo := seedRepo()
	repo.subs = append(repo.subs, &models.Subscription{
		ID: 20, UserID: 7, PlanID: 1, ExternalSubscriptionID: "sub_1", Status: models.SubscriptionStatusActive,
	})
	gateway := &fakeGateway{cancelErr: &GatewayError{Op: "cancel_subscription", Err: errors.New("rejected")}}
	svc := NewService(repo, gateway, nil)

	_, err := svc.Cancel(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, repo.subs[0].Status)
	assert.Nil(t, repo.subs[0].CancelledAt)
}

func TestCancelConvergesWithRacingWebhook(t *testing.T) {
	repo := seedRepo()
	webhookStamp := time.Now().Add(-time.Minute)
	repo.subs = append(repo.subs, &models.Subscription{
		ID: 20, UserID: 7, PlanID: 1, ExternalSubscriptionID: "sub_1", Status: models.SubscriptionStatusActive,
	})

	// The confirming webhook commits between lookup and the local write.
	gateway := &fakeGateway{cancelFn: func(string) {
		repo.subs[0].Status = models.SubscriptionStatusCancelled
		repo.subs[0].CancelledAt = &webhookStamp
	}}
	notifier := &fakeNotifier{}
	svc := NewService(repo, gateway, notifier)

	sub, err := svc.Cancel(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	require.NotNil(t, sub.CancelledAt)
	assert.Equal(t, webhookStamp, *sub.CancelledAt, "whoever committed first owns cancelled_at")
	assert.Empty(t, notifier.cancelled, "the losing side must not notify again")
}
