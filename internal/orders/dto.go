package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	"github.com/coursehub/coursehub-backend/pkg/money"
)

// Line is one cart snapshot line handed to the order builder.
type Line struct {
	CourseID uuid.UUID
	Price    int64
	Title    string
}

// LinesFromCart converts cart rows into builder lines.
func LinesFromCart(items []models.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{CourseID: item.CourseID, Price: item.Price, Title: item.Title})
	}
	return lines
}

type OrderItemDTO struct {
	ID          uuid.UUID `json:"id"`
	CourseID    uuid.UUID `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	Price       int64     `json:"price"`
}

type OrderDTO struct {
	ID                    uuid.UUID         `json:"id"`
	UserID                uuid.UUID         `json:"user_id"`
	Status                enums.OrderStatus `json:"status"`
	TotalAmount           int64             `json:"total_amount"`
	TotalDisplay          string            `json:"total_display"`
	TaxAmount             int64             `json:"tax_amount"`
	Currency              string            `json:"currency"`
	StripePaymentIntentID *string           `json:"stripe_payment_intent_id,omitempty"`
	StripeChargeID        *string           `json:"stripe_charge_id,omitempty"`
	Items                 []OrderItemDTO    `json:"items"`
	CreatedAt             time.Time         `json:"created_at"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	CancelledAt           *time.Time        `json:"cancelled_at,omitempty"`
}

type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FromModel maps an order (with loaded items) into a DTO. Tax is always zero.
func FromModel(m *models.Order) *OrderDTO {
	if m == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:                    m.ID,
		UserID:                m.UserID,
		Status:                m.Status,
		TotalAmount:           m.TotalAmount,
		TotalDisplay:          money.FormatMajor(m.TotalAmount),
		Currency:              m.Currency,
		StripePaymentIntentID: m.StripePaymentIntentID,
		StripeChargeID:        m.StripeChargeID,
		Items:                 make([]OrderItemDTO, 0, len(m.Items)),
		CreatedAt:             m.CreatedAt,
		CompletedAt:           m.CompletedAt,
		CancelledAt:           m.CancelledAt,
	}
	for _, item := range m.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			CourseID:    item.CourseID,
			CourseTitle: item.CourseTitle,
			Price:       item.Price,
		})
	}
	return dto
}
