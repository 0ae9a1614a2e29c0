package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StripeCustomer caches the processor customer created for a user.
type StripeCustomer struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StripeCustomerID string    `gorm:"column:stripe_customer_id;not null;uniqueIndex"`
	Email            string    `gorm:"column:email;not null;default:''"`
	Name             string    `gorm:"column:name;not null;default:''"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *StripeCustomer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
