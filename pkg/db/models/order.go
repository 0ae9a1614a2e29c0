package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/pkg/enums"
)

// Order is created pending from a cart snapshot; TotalAmount is the sum of its items.
type Order struct {
	ID                    uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	TotalAmount           int64             `gorm:"column:total_amount;not null"`
	Currency              string            `gorm:"column:currency;not null;default:'usd'"`
	Status                enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	StripePaymentIntentID *string           `gorm:"column:stripe_payment_intent_id"`
	StripeCustomerID      *string           `gorm:"column:stripe_customer_id"`
	StripeChargeID        *string           `gorm:"column:stripe_charge_id"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt           *time.Time        `gorm:"column:completed_at"`
	CancelledAt           *time.Time        `gorm:"column:cancelled_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// CourseIDs lists the courses referenced by the loaded items.
func (o Order) CourseIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.CourseID)
	}
	return ids
}

// OrderItem is an immutable line snapshot. Position keeps the cart order.
type OrderItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	CourseID    uuid.UUID `gorm:"column:course_id;type:uuid;not null"`
	Price       int64     `gorm:"column:price;not null"`
	CourseTitle string    `gorm:"column:course_title;not null"`
	Position    int       `gorm:"column:position;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
