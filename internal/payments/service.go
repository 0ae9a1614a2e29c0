package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/internal/entitlements"
	"github.com/coursehub/coursehub-backend/internal/orders"
	"github.com/coursehub/coursehub-backend/internal/stripecustomers"
	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/metrics"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
	"github.com/coursehub/coursehub-backend/pkg/outbox/payloads"
	pkgstripe "github.com/coursehub/coursehub-backend/pkg/stripe"
)

// Service charges pending orders and settles them.
type Service interface {
	PayOrder(ctx context.Context, in PayInput) (*Result, error)
	Checkout(ctx context.Context, in CheckoutInput) (*Result, error)
	Settle(ctx context.Context, in SettleInput) (bool, error)
}

type intentGateway interface {
	CreatePaymentIntent(ctx context.Context, in pkgstripe.IntentInput) (*stripe.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethodID, returnURL string) (*stripe.PaymentIntent, error)
}

type orderCreator interface {
	CreateFromCart(ctx context.Context, userID uuid.UUID) (*orders.OrderDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups the payment orchestrator dependencies.
type ServiceParams struct {
	Orders        orders.Repository
	OrderService  orderCreator
	Customers     stripecustomers.Service
	Gateway       intentGateway
	Entitlements  entitlements.Service
	Tx            txRunner
	Outbox        outboxPublisher
	Metrics       *metrics.PaymentMetrics
	Logger        *logger.Logger
	ReturnURL     string
	DefaultMethod string
	TestMode      bool
	Now           func() time.Time
}

type service struct {
	orders        orders.Repository
	orderService  orderCreator
	customers     stripecustomers.Service
	gateway       intentGateway
	entitlements  entitlements.Service
	tx            txRunner
	outbox        outboxPublisher
	metrics       *metrics.PaymentMetrics
	logg          *logger.Logger
	returnURL     string
	defaultMethod string
	testMode      bool
	now           func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.OrderService == nil:
		return nil, fmt.Errorf("order service required")
	case p.Customers == nil:
		return nil, fmt.Errorf("stripe customer service required")
	case p.Gateway == nil:
		return nil, fmt.Errorf("stripe gateway required")
	case p.Entitlements == nil:
		return nil, fmt.Errorf("entitlements service required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case strings.TrimSpace(p.ReturnURL) == "":
		return nil, fmt.Errorf("return url required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		orders:        p.Orders,
		orderService:  p.OrderService,
		customers:     p.Customers,
		gateway:       p.Gateway,
		entitlements:  p.Entitlements,
		tx:            p.Tx,
		outbox:        p.Outbox,
		metrics:       p.Metrics,
		logg:          p.Logger,
		returnURL:     p.ReturnURL,
		defaultMethod: strings.TrimSpace(p.DefaultMethod),
		testMode:      p.TestMode,
		now:           p.Now,
	}, nil
}

func (s *service) Checkout(ctx context.Context, in CheckoutInput) (*Result, error) {
	order, err := s.orderService.CreateFromCart(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	return s.PayOrder(ctx, PayInput{
		UserID:          in.UserID,
		Email:           in.Email,
		FullName:        in.FullName,
		OrderID:         order.ID,
		PaymentMethodID: in.PaymentMethodID,
	})
}

// PayOrder runs customer resolution, intent creation, confirmation and
// settlement in order. A failed step leaves earlier side effects in place.
func (s *service) PayOrder(ctx context.Context, in PayInput) (*Result, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id": in.OrderID.String(),
		"user_id":  in.UserID.String(),
	})

	order, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != in.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status))
	}

	if order.TotalAmount == 0 {
		return s.settleFree(ctx, order)
	}

	method, err := s.paymentMethod(in.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.customers.Resolve(ctx, stripecustomers.Input{
		UserID:   in.UserID,
		Email:    in.Email,
		FullName: in.FullName,
	})
	if err != nil {
		return nil, s.fail(ctx, pkgerrors.CodeCustomerCreateFailed, err, "resolve stripe customer")
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, pkgstripe.IntentInput{
		OrderID:    order.ID.String(),
		UserID:     in.UserID.String(),
		CustomerID: customerID,
		Amount:     order.TotalAmount,
		Currency:   order.Currency,
	})
	if err != nil {
		return nil, s.fail(ctx, pkgerrors.CodeIntentCreateFailed, err, "create payment intent")
	}

	confirmed, err := s.gateway.ConfirmPaymentIntent(ctx, intent.ID, method, s.returnURL)
	if err != nil {
		return nil, s.fail(ctx, pkgerrors.CodeConfirmFailed, err, "confirm payment intent")
	}

	switch confirmed.Status {
	case stripe.PaymentIntentStatusSucceeded:
	case stripe.PaymentIntentStatusProcessing:
		return s.awaitProcessing(ctx, order, customerID, confirmed)
	case stripe.PaymentIntentStatusRequiresAction:
		return s.awaitAction(ctx, order, customerID, confirmed)
	default:
		err := fmt.Errorf("payment intent %s is %s", confirmed.ID, confirmed.Status)
		return nil, s.fail(ctx, pkgerrors.CodeConfirmFailed, err, "payment not completed")
	}

	if _, err := s.settle(ctx, order, SettleInput{
		OrderID:          order.ID,
		UserID:           order.UserID,
		PaymentIntentID:  confirmed.ID,
		ChargeID:         pkgstripe.ChargeID(confirmed),
		StripeCustomerID: customerID,
	}); err != nil {
		return nil, s.fail(ctx, pkgerrors.CodeOrderUpdateFailed, err, "complete order")
	}

	s.metrics.CheckoutOutcome("succeeded")
	s.metrics.AddRevenue(order.Currency, order.TotalAmount)
	s.logg.Info(ctx, "order paid")

	return s.result(ctx, order.ID, confirmed)
}

// Settle completes a pending order and grants its courses. It reports whether
// this call moved the order to completed; grants are written either way.
func (s *service) Settle(ctx context.Context, in SettleInput) (bool, error) {
	order, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return false, err
	}
	if in.UserID != uuid.Nil && order.UserID != in.UserID {
		return false, fmt.Errorf("order %s does not belong to user %s", order.ID, in.UserID)
	}
	return s.settle(ctx, order, in)
}

func (s *service) settle(ctx context.Context, order *models.Order, in SettleInput) (bool, error) {
	completedAt := s.now().UTC()
	courseIDs := order.CourseIDs()
	var moved bool

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]any{"completed_at": completedAt}
		if in.PaymentIntentID != "" {
			updates["stripe_payment_intent_id"] = in.PaymentIntentID
		}
		if in.ChargeID != "" {
			updates["stripe_charge_id"] = in.ChargeID
		}
		if in.StripeCustomerID != "" {
			updates["stripe_customer_id"] = in.StripeCustomerID
		}
		ok, err := s.orders.WithTx(tx).Transition(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCompleted, updates)
		if err != nil {
			return err
		}
		moved = ok

		if err := s.entitlements.Grant(ctx, tx, entitlements.GrantInput{
			UserID:          order.UserID,
			OrderID:         &order.ID,
			CourseIDs:       courseIDs,
			Currency:        order.Currency,
			PaymentIntentID: in.PaymentIntentID,
			ChargeID:        in.ChargeID,
		}); err != nil {
			return err
		}
		if !moved {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Role: string(enums.ProfileRoleUser)},
			Data: payloads.OrderCompletedEvent{
				OrderID:         order.ID,
				UserID:          order.UserID,
				CourseIDs:       courseIDs,
				TotalAmount:     order.TotalAmount,
				Currency:        order.Currency,
				PaymentIntentID: in.PaymentIntentID,
				CompletedAt:     completedAt,
			},
		})
	})
	if err != nil {
		return false, err
	}

	s.entitlements.PurgeCart(ctx, order.UserID, courseIDs)
	return moved, nil
}

// settleFree completes a zero-total order without a processor round trip.
func (s *service) settleFree(ctx context.Context, order *models.Order) (*Result, error) {
	if _, err := s.settle(ctx, order, SettleInput{OrderID: order.ID, UserID: order.UserID}); err != nil {
		return nil, s.fail(ctx, pkgerrors.CodeOrderUpdateFailed, err, "complete free order")
	}
	s.metrics.CheckoutOutcome("free")
	s.logg.Info(ctx, "free order completed")

	reloaded, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return &Result{
		Order:         orders.FromModel(reloaded),
		PaymentStatus: string(stripe.PaymentIntentStatusSucceeded),
	}, nil
}

// awaitProcessing keeps the order pending while the processor settles funds.
// Purchases are recorded as pending and grant nothing until the
// payment_intent.succeeded webhook completes them.
func (s *service) awaitProcessing(ctx context.Context, order *models.Order, customerID string, intent *stripe.PaymentIntent) (*Result, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.orders.WithTx(tx).Transition(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPending, map[string]any{
			"stripe_payment_intent_id": intent.ID,
			"stripe_customer_id":       customerID,
		})
		if err != nil {
			return err
		}
		return s.entitlements.RecordPending(ctx, tx, entitlements.GrantInput{
			UserID:          order.UserID,
			OrderID:         &order.ID,
			CourseIDs:       order.CourseIDs(),
			Currency:        order.Currency,
			PaymentIntentID: intent.ID,
		})
	})
	if err != nil {
		return nil, s.fail(ctx, pkgerrors.CodeOrderUpdateFailed, err, "record processing payment")
	}
	s.metrics.CheckoutOutcome("processing")
	s.logg.Info(ctx, "payment processing")
	return s.result(ctx, order.ID, intent)
}

// awaitAction stores the intent on the still-pending order so the webhook can
// settle it once the customer finishes authentication.
func (s *service) awaitAction(ctx context.Context, order *models.Order, customerID string, intent *stripe.PaymentIntent) (*Result, error) {
	_, err := s.orders.Transition(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPending, map[string]any{
		"stripe_payment_intent_id": intent.ID,
		"stripe_customer_id":       customerID,
	})
	if err != nil {
		return nil, s.fail(ctx, pkgerrors.CodeOrderUpdateFailed, err, "store payment intent")
	}
	s.metrics.CheckoutOutcome("requires_action")
	s.logg.Info(ctx, "payment requires customer action")

	res, err := s.result(ctx, order.ID, intent)
	if err != nil {
		return nil, err
	}
	res.ClientSecret = intent.ClientSecret
	if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil {
		res.NextActionURL = intent.NextAction.RedirectToURL.URL
	}
	return res, nil
}

func (s *service) result(ctx context.Context, orderID uuid.UUID, intent *stripe.PaymentIntent) (*Result, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return &Result{
		Order:           orders.FromModel(order),
		PaymentIntentID: intent.ID,
		PaymentStatus:   string(intent.Status),
	}, nil
}

// paymentMethod prefers the caller's method. The configured fallback is a
// processor test card and is refused outside test mode.
func (s *service) paymentMethod(requested string) (string, error) {
	if method := strings.TrimSpace(requested); method != "" {
		return method, nil
	}
	if s.testMode && s.defaultMethod != "" {
		return s.defaultMethod, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "payment_method_id is required")
}

func (s *service) fail(ctx context.Context, code pkgerrors.Code, err error, msg string) error {
	s.metrics.CheckoutOutcome(string(code))
	s.logg.Error(ctx, msg, err)
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == code {
		return typed
	}
	return pkgerrors.Wrap(code, err, msg)
}
