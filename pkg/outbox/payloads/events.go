package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCompletedEvent is emitted once a payment intent is confirmed for an order.
type OrderCompletedEvent struct {
	OrderID         uuid.UUID   `json:"order_id"`
	UserID          uuid.UUID   `json:"user_id"`
	CourseIDs       []uuid.UUID `json:"course_ids"`
	TotalAmount     int64       `json:"total_amount"`
	Currency        string      `json:"currency"`
	PaymentIntentID string      `json:"payment_intent_id"`
	CompletedAt     time.Time   `json:"completed_at"`
}

// OrderStatusEvent covers cancellation and expiry of pending orders.
type OrderStatusEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
	Status  string    `json:"status"`
	Reason  string    `json:"reason,omitempty"`
}

// PaymentEvent reports a settlement change observed by the webhook reconciler.
type PaymentEvent struct {
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id"`
	ChargeID        string     `json:"charge_id,omitempty"`
	ProcessorEvent  string     `json:"processor_event_id"`
	Status          string     `json:"status"`
}

// AccessEvent is emitted when an admin grants or revokes course access.
type AccessEvent struct {
	UserID     uuid.UUID  `json:"user_id"`
	CourseID   uuid.UUID  `json:"course_id"`
	AccessType string     `json:"access_type,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}
