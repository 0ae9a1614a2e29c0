package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent logs one processor delivery. Redeliveries of the same event id
// produce additional rows.
type WebhookEvent struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	StripeEventID string          `gorm:"column:stripe_event_id;not null;index"`
	EventType     string          `gorm:"column:event_type;not null"`
	Payload       json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	Processed     bool            `gorm:"column:processed;not null;default:false"`
	Duplicate     bool            `gorm:"column:duplicate;not null;default:false"`
	Error         *string         `gorm:"column:error"`
	ReceivedAt    time.Time       `gorm:"column:received_at;autoCreateTime"`
	ProcessedAt   *time.Time      `gorm:"column:processed_at"`
}

func (e *WebhookEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
