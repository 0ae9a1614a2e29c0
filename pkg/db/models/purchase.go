package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/pkg/enums"
)

// Purchase records settlement of a course for a user; one row per (user_id, course_id).
type Purchase struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID            `gorm:"column:user_id;type:uuid;not null;uniqueIndex:purchases_user_course_key"`
	CourseID              uuid.UUID            `gorm:"column:course_id;type:uuid;not null;uniqueIndex:purchases_user_course_key"`
	OrderID               *uuid.UUID           `gorm:"column:order_id;type:uuid;index"`
	AmountPaid            int64                `gorm:"column:amount_paid;not null"`
	Currency              string               `gorm:"column:currency;not null;default:'usd'"`
	Status                enums.PurchaseStatus `gorm:"column:status;type:purchase_status;not null;default:'pending'"`
	StripePaymentIntentID *string              `gorm:"column:stripe_payment_intent_id;index"`
	StripeChargeID        *string              `gorm:"column:stripe_charge_id"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
