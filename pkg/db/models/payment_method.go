package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/pkg/enums"
)

// PaymentMethod mirrors a processor payment method attached to a user's customer.
type PaymentMethod struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	StripePaymentMethodID string                  `gorm:"column:stripe_payment_method_id;not null;uniqueIndex"`
	StripeCustomerID      string                  `gorm:"column:stripe_customer_id;not null"`
	Type                  enums.PaymentMethodType `gorm:"column:type;not null;default:'card'"`
	CardBrand             *string                 `gorm:"column:card_brand"`
	CardLast4             *string                 `gorm:"column:card_last4"`
	CardExpMonth          *int                    `gorm:"column:card_exp_month"`
	CardExpYear           *int                    `gorm:"column:card_exp_year"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *PaymentMethod) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
