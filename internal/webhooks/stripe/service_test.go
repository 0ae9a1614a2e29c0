package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/internal/cart"
	"github.com/coursehub/coursehub-backend/internal/courses"
	"github.com/coursehub/coursehub-backend/internal/entitlements"
	"github.com/coursehub/coursehub-backend/internal/orders"
	"github.com/coursehub/coursehub-backend/internal/payments"
	"github.com/coursehub/coursehub-backend/internal/paymentmethods"
	"github.com/coursehub/coursehub-backend/internal/stripecustomers"
	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/dbtest"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
	pkgstripe "github.com/coursehub/coursehub-backend/pkg/stripe"
)

type memoryGuard struct {
	seen map[string]bool
	err  error
}

func (g *memoryGuard) CheckAndMarkProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	key := consumer + ":" + eventID
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, consumer, eventID string) error {
	delete(g.seen, consumer+":"+eventID)
	return nil
}

type stubSettler struct {
	calls []payments.SettleInput
	err   error
}

func (s *stubSettler) Settle(_ context.Context, in payments.SettleInput) (bool, error) {
	s.calls = append(s.calls, in)
	return s.err == nil, s.err
}

type stubOwners map[string]uuid.UUID

func (o stubOwners) OwnerOf(_ context.Context, customerID string) (uuid.UUID, error) {
	id, ok := o[customerID]
	if !ok {
		return uuid.Nil, errors.New("stripe customer not mapped")
	}
	return id, nil
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	guard   *memoryGuard
	settler *stubSettler
	owner   uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	stub := &stubSettler{}
	f := buildFixture(t, db, stub)
	f.settler = stub
	return f
}

func buildFixture(t *testing.T, db *gorm.DB, settler settler) fixture {
	t.Helper()
	guard := &memoryGuard{seen: map[string]bool{}}
	owner := uuid.New()
	methods, err := paymentmethods.NewService(paymentmethods.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:           NewRepository(db),
		Guard:          guard,
		Payments:       settler,
		Entitlements:   entitlements.NewRepository(db),
		Customers:      stubOwners{"cus_1": owner},
		PaymentMethods: methods,
		Tx:             dbpkg.Wrap(db),
		Outbox:         outbox.NewService(outbox.NewRepository(db), logger.Nop()),
	})
	require.NoError(t, err)
	return fixture{db: db, svc: svc, guard: guard, owner: owner}
}

func event(t *testing.T, id string, typ stripe.EventType, obj any) (stripe.Event, []byte) {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	ev := stripe.Event{ID: id, Type: typ, Data: &stripe.EventData{Raw: raw}}
	payload, err := json.Marshal(map[string]any{"id": id, "type": string(typ), "data": map[string]json.RawMessage{"object": raw}})
	require.NoError(t, err)
	return ev, payload
}

func deliveries(t *testing.T, db *gorm.DB) []models.WebhookEvent {
	t.Helper()
	var rows []models.WebhookEvent
	require.NoError(t, db.Order("received_at ASC").Find(&rows).Error)
	return rows
}

func succeededIntent(orderID, userID uuid.UUID) map[string]any {
	return map[string]any{
		"id":            "pi_1",
		"object":        "payment_intent",
		"status":        "succeeded",
		"customer":      "cus_1",
		"latest_charge": "ch_1",
		"metadata":      map[string]string{"order_id": orderID.String(), "user_id": userID.String()},
	}
}

func TestProcessPaymentSucceeded(t *testing.T) {
	f := newFixture(t)
	orderID, userID := uuid.New(), uuid.New()
	ev, payload := event(t, "evt_1", stripe.EventTypePaymentIntentSucceeded, succeededIntent(orderID, userID))

	outcome := f.svc.Process(context.Background(), ev, payload)
	assert.Equal(t, OutcomeProcessed, outcome)

	require.Len(t, f.settler.calls, 1)
	call := f.settler.calls[0]
	assert.Equal(t, orderID, call.OrderID)
	assert.Equal(t, userID, call.UserID)
	assert.Equal(t, "pi_1", call.PaymentIntentID)
	assert.Equal(t, "ch_1", call.ChargeID)
	assert.Equal(t, "cus_1", call.StripeCustomerID)

	rows := deliveries(t, f.db)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Processed)
	assert.Nil(t, rows[0].Error)
	require.NotNil(t, rows[0].ProcessedAt)

	var events []models.OutboxEvent
	require.NoError(t, f.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPaymentSettled, events[0].EventType)
}

func TestProcessDuplicateDeliveryIsLoggedButSkipped(t *testing.T) {
	f := newFixture(t)
	ev, payload := event(t, "evt_dup", stripe.EventTypePaymentIntentSucceeded, succeededIntent(uuid.New(), uuid.New()))

	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))
	assert.Equal(t, OutcomeDuplicate, f.svc.Process(context.Background(), ev, payload))

	assert.Len(t, f.settler.calls, 1)
	rows := deliveries(t, f.db)
	require.Len(t, rows, 2)
	var dup int
	for _, r := range rows {
		if r.Duplicate {
			dup++
		}
	}
	assert.Equal(t, 1, dup)
}

func TestProcessFailureIsRecordedAndRetryable(t *testing.T) {
	f := newFixture(t)
	f.settler.err = errors.New("database unavailable")
	ev, payload := event(t, "evt_fail", stripe.EventTypePaymentIntentSucceeded, succeededIntent(uuid.New(), uuid.New()))

	assert.Equal(t, OutcomeFailed, f.svc.Process(context.Background(), ev, payload))
	rows := deliveries(t, f.db)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Processed)
	require.NotNil(t, rows[0].Error)
	assert.Contains(t, *rows[0].Error, "database unavailable")

	f.settler.err = nil
	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))
}

func TestProcessMissingMetadataFails(t *testing.T) {
	f := newFixture(t)
	ev, payload := event(t, "evt_meta", stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_2", "object": "payment_intent"})

	assert.Equal(t, OutcomeFailed, f.svc.Process(context.Background(), ev, payload))
	assert.Empty(t, f.settler.calls)
	rows := deliveries(t, f.db)
	require.NotNil(t, rows[0].Error)
	assert.Contains(t, *rows[0].Error, "order_id")
}

func TestProcessIgnoresUnknownTypes(t *testing.T) {
	f := newFixture(t)
	ev, payload := event(t, "evt_x", stripe.EventType("customer.created"), map[string]any{"id": "cus_9"})

	assert.Equal(t, OutcomeIgnored, f.svc.Process(context.Background(), ev, payload))
	rows := deliveries(t, f.db)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Processed)
}

func TestProcessContinuesWhenGuardUnavailable(t *testing.T) {
	f := newFixture(t)
	f.guard.err = errors.New("redis down")
	ev, payload := event(t, "evt_g", stripe.EventTypePaymentIntentSucceeded, succeededIntent(uuid.New(), uuid.New()))

	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))
	assert.Len(t, f.settler.calls, 1)
}

func TestPaymentFailedMarksPendingPurchases(t *testing.T) {
	f := newFixture(t)
	orderID, userID := uuid.New(), uuid.New()
	require.NoError(t, f.db.Create(&models.Purchase{
		UserID: userID, CourseID: uuid.New(), OrderID: &orderID, AmountPaid: 100, Currency: "usd", Status: enums.PurchaseStatusPending,
	}).Error)
	intent := map[string]any{
		"id":       "pi_f",
		"object":   "payment_intent",
		"metadata": map[string]string{"order_id": orderID.String(), "user_id": userID.String()},
	}
	ev, payload := event(t, "evt_pf", stripe.EventTypePaymentIntentPaymentFailed, intent)

	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))
	var purchase models.Purchase
	require.NoError(t, f.db.First(&purchase).Error)
	assert.Equal(t, enums.PurchaseStatusFailed, purchase.Status)
}

func TestChargeRefundedRevokesPurchasedAccess(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	orderID := uuid.New()
	courseID := uuid.New()
	intentID := "pi_r"
	require.NoError(t, f.db.Create(&models.Purchase{
		UserID: userID, CourseID: courseID, OrderID: &orderID, AmountPaid: 100, Currency: "usd",
		Status: enums.PurchaseStatusCompleted, StripePaymentIntentID: &intentID,
	}).Error)
	require.NoError(t, f.db.Create(&models.CourseAccess{UserID: userID, CourseID: courseID, AccessType: enums.AccessTypePurchased}).Error)

	charge := map[string]any{"id": "ch_r", "object": "charge", "payment_intent": intentID, "refunded": true}
	ev, payload := event(t, "evt_ref", stripe.EventTypeChargeRefunded, charge)

	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))

	var purchase models.Purchase
	require.NoError(t, f.db.First(&purchase).Error)
	assert.Equal(t, enums.PurchaseStatusRefunded, purchase.Status)

	var grants int64
	require.NoError(t, f.db.Model(&models.CourseAccess{}).Count(&grants).Error)
	assert.Zero(t, grants)

	var events []models.OutboxEvent
	require.NoError(t, f.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPaymentRefunded, events[0].EventType)
	assert.Equal(t, orderID, events[0].AggregateID)
}

func TestPaymentMethodAttached(t *testing.T) {
	f := newFixture(t)
	pm := map[string]any{
		"id":       "pm_9",
		"object":   "payment_method",
		"type":     "card",
		"customer": "cus_1",
		"card":     map[string]any{"brand": "visa", "last4": "4242", "exp_month": 4, "exp_year": 2031},
	}
	ev, payload := event(t, "evt_pm", stripe.EventTypePaymentMethodAttached, pm)

	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))

	var stored models.PaymentMethod
	require.NoError(t, f.db.First(&stored).Error)
	assert.Equal(t, f.owner, stored.UserID)
	assert.Equal(t, "cus_1", stored.StripeCustomerID)
	require.NotNil(t, stored.CardLast4)
	assert.Equal(t, "4242", *stored.CardLast4)

	unknown := map[string]any{"id": "pm_10", "object": "payment_method", "type": "card", "customer": "cus_unknown"}
	ev, payload = event(t, "evt_pm2", stripe.EventTypePaymentMethodAttached, unknown)
	assert.Equal(t, OutcomeFailed, f.svc.Process(context.Background(), ev, payload))
}

func TestRepositoryListAndPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, payload := event(t, "evt_a", stripe.EventType("customer.created"), map[string]any{"id": "cus"})
	f.svc.Process(ctx, ev, payload)
	f.settler.err = errors.New("boom")
	ev, payload = event(t, "evt_b", stripe.EventTypePaymentIntentSucceeded, succeededIntent(uuid.New(), uuid.New()))
	f.svc.Process(ctx, ev, payload)

	failed, err := f.svc.List(ctx, ListFilters{Failed: true}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, failed.Events, 1)
	assert.Equal(t, "evt_b", failed.Events[0].StripeEventID)

	all, err := f.svc.List(ctx, ListFilters{}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all.Events, 1)
	assert.NotEmpty(t, all.NextCursor)

	for _, row := range deliveries(t, f.db) {
		dbtest.Backdate(t, f.db, "webhook_events", "received_at", row.ID, time.Now().UTC().Add(-48*time.Hour))
	}
	deleted, err := NewRepository(f.db).DeleteProcessedBefore(ctx, time.Now().UTC().Add(-24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, deliveries(t, f.db), 1)
}

type offlineGateway struct{}

func (offlineGateway) CreatePaymentIntent(context.Context, pkgstripe.IntentInput) (*stripe.PaymentIntent, error) {
	return nil, errors.New("processor not reachable in tests")
}

func (offlineGateway) ConfirmPaymentIntent(context.Context, string, string, string) (*stripe.PaymentIntent, error) {
	return nil, errors.New("processor not reachable in tests")
}

type offlineCustomers struct{}

func (offlineCustomers) Resolve(context.Context, stripecustomers.Input) (string, error) {
	return "", errors.New("processor not reachable in tests")
}

func (offlineCustomers) OwnerOf(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, errors.New("processor not reachable in tests")
}

type noSigner struct{}

func (noSigner) SignedReadURL(string) (string, time.Time, error) { return "", time.Time{}, nil }

type settledFixture struct {
	fixture
	ent     entitlements.Service
	userID  uuid.UUID
	courses []models.Course
	order   models.Order
}

// newSettledFixture wires the webhook reconciler to the real payment settler
// over one pending two-course order.
func newSettledFixture(t *testing.T) settledFixture {
	t.Helper()
	db := dbtest.Open(t)
	tx := dbpkg.Wrap(db)
	box := outbox.NewService(outbox.NewRepository(db), logger.Nop())
	courseRepo := courses.NewRepository(db)
	cartRepo := cart.NewRepository(db)

	ent, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:    entitlements.NewRepository(db),
		Courses: courseRepo,
		Cart:    cartRepo,
		Signer:  noSigner{},
		Tx:      tx,
		Outbox:  box,
	})
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cartRepo, courseRepo, ent, "usd")
	require.NoError(t, err)
	orderRepo := orders.NewRepository(db)
	orderSvc, err := orders.NewService(orders.ServiceParams{Repo: orderRepo, Cart: cartSvc, Tx: tx, Outbox: box})
	require.NoError(t, err)
	settler, err := payments.NewService(payments.ServiceParams{
		Orders:       orderRepo,
		OrderService: orderSvc,
		Customers:    offlineCustomers{},
		Gateway:      offlineGateway{},
		Entitlements: ent,
		Tx:           tx,
		Outbox:       box,
		ReturnURL:    "https://app.example.com/checkout/success",
	})
	require.NoError(t, err)

	userID := uuid.New()
	catalog := []models.Course{
		dbtest.SeedCourse(t, db, "Go Fundamentals", 1500),
		dbtest.SeedCourse(t, db, "SQL Basics", 1000),
	}
	order := dbtest.SeedPendingOrder(t, db, userID, catalog...)
	return settledFixture{
		fixture: buildFixture(t, db, settler),
		ent:     ent,
		userID:  userID,
		courses: catalog,
		order:   order,
	}
}

// recordProcessing mirrors a confirm that came back "processing".
func (f settledFixture) recordProcessing(t *testing.T, intentID string) {
	t.Helper()
	require.NoError(t, f.ent.RecordPending(context.Background(), nil, entitlements.GrantInput{
		UserID:          f.userID,
		OrderID:         &f.order.ID,
		CourseIDs:       f.order.CourseIDs(),
		Currency:        "usd",
		PaymentIntentID: intentID,
	}))
}

func (f settledFixture) purchaseStatuses(t *testing.T) []enums.PurchaseStatus {
	t.Helper()
	var rows []models.Purchase
	require.NoError(t, f.db.Where("user_id = ?", f.userID).Find(&rows).Error)
	out := make([]enums.PurchaseStatus, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Status)
	}
	return out
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestPaymentFailedAfterProcessingFailsPurchasesWithoutAccess(t *testing.T) {
	f := newSettledFixture(t)
	f.recordProcessing(t, "pi_proc")
	assert.Equal(t, []enums.PurchaseStatus{enums.PurchaseStatusPending, enums.PurchaseStatusPending}, f.purchaseStatuses(t))

	intent := map[string]any{
		"id":       "pi_proc",
		"object":   "payment_intent",
		"status":   "requires_payment_method",
		"metadata": map[string]string{"order_id": f.order.ID.String(), "user_id": f.userID.String()},
	}
	ev, payload := event(t, "evt_proc_failed", stripe.EventTypePaymentIntentPaymentFailed, intent)
	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))

	assert.Equal(t, []enums.PurchaseStatus{enums.PurchaseStatusFailed, enums.PurchaseStatusFailed}, f.purchaseStatuses(t))
	assert.Zero(t, countRows(t, f.db, &models.CourseAccess{}))

	var order models.Order
	require.NoError(t, f.db.First(&order, "id = ?", f.order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
}

func TestPaymentSucceededAfterProcessingCompletesPurchases(t *testing.T) {
	f := newSettledFixture(t)
	f.recordProcessing(t, "pi_1")
	assert.Zero(t, countRows(t, f.db, &models.CourseAccess{}))

	ev, payload := event(t, "evt_proc_ok", stripe.EventTypePaymentIntentSucceeded, succeededIntent(f.order.ID, f.userID))
	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))

	assert.Equal(t, []enums.PurchaseStatus{enums.PurchaseStatusCompleted, enums.PurchaseStatusCompleted}, f.purchaseStatuses(t))
	assert.Equal(t, int64(2), countRows(t, f.db, &models.CourseAccess{}))

	var order models.Order
	require.NoError(t, f.db.First(&order, "id = ?", f.order.ID).Error)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.StripeChargeID)
	assert.Equal(t, "ch_1", *order.StripeChargeID)
}

func TestRedeliveredSuccessWithoutGuardDoesNotDuplicateGrants(t *testing.T) {
	f := newSettledFixture(t)
	f.guard.err = errors.New("redis down")
	ev, payload := event(t, "evt_redelivered", stripe.EventTypePaymentIntentSucceeded, succeededIntent(f.order.ID, f.userID))

	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))
	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))

	assert.Len(t, deliveries(t, f.db), 2)
	assert.Equal(t, int64(2), countRows(t, f.db, &models.Purchase{}))
	assert.Equal(t, int64(2), countRows(t, f.db, &models.CourseAccess{}))
	for _, c := range f.courses {
		var n int64
		require.NoError(t, f.db.Model(&models.CourseAccess{}).Where("user_id = ? AND course_id = ?", f.userID, c.ID).Count(&n).Error)
		assert.Equal(t, int64(1), n, c.Title)
	}

	var completed int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCompleted).Count(&completed).Error)
	assert.Equal(t, int64(1), completed)
}

func TestPartialRefundKeepsPurchaseAndAccess(t *testing.T) {
	f := newFixture(t)
	userID, orderID, courseID := uuid.New(), uuid.New(), uuid.New()
	intentID := "pi_partial"
	require.NoError(t, f.db.Create(&models.Purchase{
		UserID: userID, CourseID: courseID, OrderID: &orderID, AmountPaid: 1000, Currency: "usd",
		Status: enums.PurchaseStatusCompleted, StripePaymentIntentID: &intentID,
	}).Error)
	require.NoError(t, f.db.Create(&models.CourseAccess{UserID: userID, CourseID: courseID, AccessType: enums.AccessTypePurchased}).Error)

	charge := map[string]any{
		"id":              "ch_partial",
		"object":          "charge",
		"payment_intent":  intentID,
		"amount":          1000,
		"amount_refunded": 300,
		"refunded":        false,
	}
	ev, payload := event(t, "evt_partial", stripe.EventTypeChargeRefunded, charge)
	assert.Equal(t, OutcomeProcessed, f.svc.Process(context.Background(), ev, payload))

	var purchase models.Purchase
	require.NoError(t, f.db.First(&purchase).Error)
	assert.Equal(t, enums.PurchaseStatusCompleted, purchase.Status)
	assert.Equal(t, int64(1), countRows(t, f.db, &models.CourseAccess{}))
	assert.Zero(t, countRows(t, f.db, &models.OutboxEvent{}))
}
