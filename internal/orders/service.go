package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/money"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
	"github.com/coursehub/coursehub-backend/pkg/outbox/payloads"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
)

// Service builds orders from cart snapshots and manages their lifecycle.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, lines []Line) (*OrderDTO, error)
	CreateFromCart(ctx context.Context, userID uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (*OrderList, error)
	AdminList(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Repo     Repository
	Cart     CartReader
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Currency string
	Now      func() time.Time
}

type service struct {
	repo     Repository
	cart     CartReader
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	currency string
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Cart == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Currency == "" {
		p.Currency = "usd"
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		repo:     p.Repo,
		cart:     p.Cart,
		tx:       p.Tx,
		outbox:   p.Outbox,
		logg:     p.Logger,
		currency: strings.ToLower(p.Currency),
		now:      p.Now,
	}, nil
}

// CreateOrder writes a pending order and then its items. If the items cannot
// be written the order row is deleted again; a crash in between can leave an
// orphaned pending order, which the expiry job later cancels.
func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, lines []Line) (*OrderDTO, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	prices := make([]int64, 0, len(lines))
	for _, line := range lines {
		prices = append(prices, line.Price)
	}
	order := &models.Order{
		UserID:      userID,
		TotalAmount: money.Sum(prices...),
		Currency:    s.currency,
		Status:      enums.OrderStatusPending,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}

	items := make([]models.OrderItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, models.OrderItem{
			OrderID:     order.ID,
			CourseID:    line.CourseID,
			Price:       line.Price,
			CourseTitle: line.Title,
			Position:    i,
		})
	}
	if err := s.repo.CreateItems(ctx, items); err != nil {
		if delErr := s.repo.DeleteOrder(ctx, order.ID); delErr != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Error(logCtx, "failed to remove order after item insert failure", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}

	order.Items = items
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"user_id":      userID.String(),
		"total_amount": order.TotalAmount,
		"item_count":   len(items),
	})
	s.logg.Info(logCtx, "order created")
	return FromModel(order), nil
}

func (s *service) CreateFromCart(ctx context.Context, userID uuid.UUID) (*OrderDTO, error) {
	items, err := s.cart.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.CreateOrder(ctx, userID, LinesFromCart(items))
}

func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).Transition(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": s.now().UTC(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer pending")
		}
		return s.emitStatus(ctx, tx, order, enums.EventOrderCancelled, enums.OrderStatusCancelled, "user_cancelled", &outbox.ActorRef{UserID: userID, Role: string(enums.ProfileRoleUser)})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	return s.Get(ctx, userID, orderID)
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, ListFilters{UserID: &userID, Status: status}, params)
}

func (s *service) AdminList(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, filters, params)
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// ExpireStale cancels pending orders created before cutoff and returns how many moved.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range stale {
		order := stale[i]
		var moved bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repo.WithTx(tx).Transition(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, map[string]any{
				"cancelled_at": s.now().UTC(),
			})
			if err != nil || !ok {
				return err
			}
			if err := s.emitStatus(ctx, tx, &order, enums.EventOrderExpired, enums.OrderStatusCancelled, "pending_ttl_elapsed", nil); err != nil {
				return err
			}
			moved = true
			return nil
		})
		if err != nil {
			return expired, fmt.Errorf("expire order %s: %w", order.ID, err)
		}
		// counted only once the transaction committed
		if moved {
			expired++
		}
	}
	return expired, nil
}

func (s *service) list(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		if strings.Contains(err.Error(), "cursor") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		out.Orders = append(out.Orders, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, order *models.Order, event enums.OutboxEventType, status enums.OrderStatus, reason string, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusEvent{
			OrderID: order.ID,
			UserID:  order.UserID,
			Status:  string(status),
			Reason:  reason,
		},
	})
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// loadOwned hides other users' orders behind NOT_FOUND.
func (s *service) loadOwned(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
