package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/internal/entitlements"
	"github.com/coursehub/coursehub-backend/internal/payments"
	"github.com/coursehub/coursehub-backend/internal/paymentmethods"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/metrics"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
	"github.com/coursehub/coursehub-backend/pkg/outbox/payloads"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
	pkgstripe "github.com/coursehub/coursehub-backend/pkg/stripe"
)

// Consumer names the idempotency scope for processor deliveries.
const Consumer = "stripe-webhook"

// Outcome labels how one delivery was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

type guard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type settler interface {
	Settle(ctx context.Context, in payments.SettleInput) (bool, error)
}

type customerOwners interface {
	OwnerOf(ctx context.Context, customerID string) (uuid.UUID, error)
}

type methodStore interface {
	Attach(ctx context.Context, userID uuid.UUID, pm *stripe.PaymentMethod) (*paymentmethods.DTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups the reconciler dependencies.
type ServiceParams struct {
	Repo           *Repository
	Guard          guard
	Payments       settler
	Entitlements   *entitlements.Repository
	Customers      customerOwners
	PaymentMethods methodStore
	Tx             txRunner
	Outbox         outboxPublisher
	Metrics        *metrics.PaymentMetrics
	Logger         *logger.Logger
	Now            func() time.Time
}

// Service reconciles local state with verified processor events.
type Service struct {
	repo         *Repository
	guard        guard
	payments     settler
	entitlements *entitlements.Repository
	customers    customerOwners
	methods      methodStore
	tx           txRunner
	outbox       outboxPublisher
	metrics      *metrics.PaymentMetrics
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repository required")
	case p.Guard == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	case p.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment settler required")
	case p.Entitlements == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlements repository required")
	case p.Customers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customer lookup required")
	case p.PaymentMethods == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method store required")
	case p.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		repo:         p.Repo,
		guard:        p.Guard,
		payments:     p.Payments,
		entitlements: p.Entitlements,
		customers:    p.Customers,
		methods:      p.PaymentMethods,
		tx:           p.Tx,
		outbox:       p.Outbox,
		metrics:      p.Metrics,
		logg:         p.Logger,
		now:          p.Now,
	}, nil
}

// Process logs the delivery, skips event ids already handled, dispatches the
// rest, and stores any processing error on the delivery row. It never fails:
// the processor must see success once the signature was verified.
func (s *Service) Process(ctx context.Context, event stripe.Event, payload []byte) Outcome {
	ctx = s.logg.WithStripeEvent(ctx, event.ID, string(event.Type))

	row := &models.WebhookEvent{
		StripeEventID: event.ID,
		EventType:     string(event.Type),
		Payload:       json.RawMessage(payload),
	}
	logged := true
	if err := s.repo.Insert(ctx, row); err != nil {
		logged = false
		s.logg.Error(ctx, "failed to log webhook delivery", err)
	}

	seen, err := s.guard.CheckAndMarkProcessed(ctx, Consumer, event.ID)
	if err != nil {
		s.logg.Warn(ctx, "webhook idempotency check unavailable: "+err.Error())
	}
	if seen {
		s.finish(ctx, row.ID, logged, false, true, nil)
		s.metrics.WebhookEvent(string(event.Type), string(OutcomeDuplicate))
		s.logg.Info(ctx, "duplicate webhook delivery skipped")
		return OutcomeDuplicate
	}

	handled, err := s.HandleEvent(ctx, &event)
	if err != nil {
		if delErr := s.guard.Delete(ctx, Consumer, event.ID); delErr != nil {
			s.logg.Warn(ctx, "failed to release webhook idempotency key: "+delErr.Error())
		}
		msg := err.Error()
		s.finish(ctx, row.ID, logged, false, false, &msg)
		s.metrics.WebhookEvent(string(event.Type), string(OutcomeFailed))
		s.logg.Error(ctx, "webhook processing failed", err)
		return OutcomeFailed
	}

	s.finish(ctx, row.ID, logged, true, false, nil)
	outcome := OutcomeProcessed
	if !handled {
		outcome = OutcomeIgnored
	}
	s.metrics.WebhookEvent(string(event.Type), string(outcome))
	s.logg.Info(ctx, "webhook delivery "+string(outcome))
	return outcome
}

// HandleEvent dispatches on event type. It reports false for types it does not handle.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (bool, error) {
	if event == nil || event.Data == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return true, fmt.Errorf("decode payment intent: %w", err)
		}
		return true, s.paymentSucceeded(ctx, event.ID, &intent)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return true, fmt.Errorf("decode payment intent: %w", err)
		}
		return true, s.paymentFailed(ctx, event.ID, &intent)
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return true, fmt.Errorf("decode charge: %w", err)
		}
		return true, s.chargeRefunded(ctx, event.ID, &charge)
	case stripe.EventTypePaymentMethodAttached:
		var pm stripe.PaymentMethod
		if err := json.Unmarshal(event.Data.Raw, &pm); err != nil {
			return true, fmt.Errorf("decode payment method: %w", err)
		}
		return true, s.paymentMethodAttached(ctx, &pm)
	default:
		return false, nil
	}
}

// List returns the delivery log, newest first.
func (s *Service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*EventList, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		if strings.Contains(err.Error(), "cursor") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list webhook events")
	}
	out := &EventList{Events: make([]EventDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		out.Events = append(out.Events, eventFromModel(row))
	}
	return out, nil
}

func (s *Service) paymentSucceeded(ctx context.Context, eventID string, intent *stripe.PaymentIntent) error {
	orderID, userID, err := metadataIDs(intent.Metadata)
	if err != nil {
		return err
	}
	in := payments.SettleInput{
		OrderID:         orderID,
		UserID:          userID,
		PaymentIntentID: intent.ID,
		ChargeID:        pkgstripe.ChargeID(intent),
	}
	if intent.Customer != nil {
		in.StripeCustomerID = intent.Customer.ID
	}
	moved, err := s.payments.Settle(ctx, in)
	if err != nil {
		return fmt.Errorf("settle order %s: %w", orderID, err)
	}
	if moved {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order completed from webhook")
	}
	return s.emitPayment(ctx, enums.EventPaymentSettled, orderID, payloads.PaymentEvent{
		OrderID:         &orderID,
		UserID:          optionalUser(userID),
		PaymentIntentID: intent.ID,
		ChargeID:        in.ChargeID,
		ProcessorEvent:  eventID,
		Status:          string(enums.PurchaseStatusCompleted),
	})
}

func (s *Service) paymentFailed(ctx context.Context, eventID string, intent *stripe.PaymentIntent) error {
	orderID, userID, err := metadataIDs(intent.Metadata)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.entitlements.WithTx(tx).SetPurchaseStatusByOrder(ctx, orderID, enums.PurchaseStatusPending, enums.PurchaseStatusFailed); err != nil {
			return fmt.Errorf("mark purchases failed: %w", err)
		}
		return s.emitPaymentTx(ctx, tx, enums.EventPaymentFailed, orderID, payloads.PaymentEvent{
			OrderID:         &orderID,
			UserID:          optionalUser(userID),
			PaymentIntentID: intent.ID,
			ProcessorEvent:  eventID,
			Status:          string(enums.PurchaseStatusFailed),
		})
	})
}

// chargeRefunded marks the intent's purchases refunded and withdraws the
// purchased grants they unlocked. Admin grants are kept.
func (s *Service) chargeRefunded(ctx context.Context, eventID string, charge *stripe.Charge) error {
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return errors.New("refunded charge has no payment intent")
	}
	intentID := charge.PaymentIntent.ID
	// charge.refunded also fires for partial refunds; only a full refund
	// withdraws the purchase.
	if !charge.Refunded {
		s.logg.Info(ctx, fmt.Sprintf("partial refund on %s (%d of %d), access kept", intentID, charge.AmountRefunded, charge.Amount))
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.entitlements.WithTx(tx)
		refunded, err := repo.SetPurchaseStatusByIntent(ctx, intentID, enums.PurchaseStatusRefunded)
		if err != nil {
			return fmt.Errorf("mark purchases refunded: %w", err)
		}
		if len(refunded) == 0 {
			s.logg.Warn(ctx, "refund for unknown payment intent "+intentID)
			return nil
		}

		byUser := map[uuid.UUID][]uuid.UUID{}
		for _, p := range refunded {
			byUser[p.UserID] = append(byUser[p.UserID], p.CourseID)
		}
		for userID, courseIDs := range byUser {
			if _, err := repo.DeleteAccessOfType(ctx, userID, courseIDs, enums.AccessTypePurchased); err != nil {
				return fmt.Errorf("revoke refunded access: %w", err)
			}
		}

		first := refunded[0]
		aggregate := first.ID
		if first.OrderID != nil {
			aggregate = *first.OrderID
		}
		return s.emitPaymentTx(ctx, tx, enums.EventPaymentRefunded, aggregate, payloads.PaymentEvent{
			OrderID:         first.OrderID,
			UserID:          &first.UserID,
			PaymentIntentID: intentID,
			ChargeID:        charge.ID,
			ProcessorEvent:  eventID,
			Status:          string(enums.PurchaseStatusRefunded),
		})
	})
}

func (s *Service) paymentMethodAttached(ctx context.Context, pm *stripe.PaymentMethod) error {
	if pm.Customer == nil || pm.Customer.ID == "" {
		return errors.New("payment method has no customer")
	}
	userID, err := s.customers.OwnerOf(ctx, pm.Customer.ID)
	if err != nil {
		return fmt.Errorf("resolve customer %s: %w", pm.Customer.ID, err)
	}
	if _, err := s.methods.Attach(ctx, userID, pm); err != nil {
		return fmt.Errorf("store payment method: %w", err)
	}
	return nil
}

func (s *Service) emitPayment(ctx context.Context, event enums.OutboxEventType, id uuid.UUID, data payloads.PaymentEvent) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.emitPaymentTx(ctx, tx, event, id, data)
	})
}

func (s *Service) emitPaymentTx(ctx context.Context, tx *gorm.DB, event enums.OutboxEventType, id uuid.UUID, data payloads.PaymentEvent) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   id,
		Data:          data,
	})
}

func (s *Service) finish(ctx context.Context, id uuid.UUID, logged, processed, duplicate bool, errMsg *string) {
	if !logged {
		return
	}
	if err := s.repo.Finish(ctx, id, processed, duplicate, errMsg, s.now().UTC()); err != nil {
		s.logg.Error(ctx, "failed to record webhook outcome", err)
	}
}

func metadataIDs(meta map[string]string) (uuid.UUID, uuid.UUID, error) {
	rawOrder := strings.TrimSpace(meta[pkgstripe.MetadataOrderID])
	if rawOrder == "" {
		return uuid.Nil, uuid.Nil, errors.New("payment intent has no order_id metadata")
	}
	orderID, err := uuid.Parse(rawOrder)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid order_id metadata: %w", err)
	}
	var userID uuid.UUID
	if rawUser := strings.TrimSpace(meta[pkgstripe.MetadataUserID]); rawUser != "" {
		userID, err = uuid.Parse(rawUser)
		if err != nil {
			return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user_id metadata: %w", err)
		}
	}
	return orderID, userID, nil
}

func optionalUser(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
