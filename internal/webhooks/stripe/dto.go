package stripewebhook

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/db/models"
)

type EventDTO struct {
	ID            uuid.UUID       `json:"id"`
	StripeEventID string          `json:"stripe_event_id"`
	EventType     string          `json:"event_type"`
	Processed     bool            `json:"processed"`
	Duplicate     bool            `json:"duplicate"`
	Error         *string         `json:"error,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	ReceivedAt    time.Time       `json:"received_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

type EventList struct {
	Events     []EventDTO `json:"events"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func eventFromModel(m models.WebhookEvent) EventDTO {
	return EventDTO{
		ID:            m.ID,
		StripeEventID: m.StripeEventID,
		EventType:     m.EventType,
		Processed:     m.Processed,
		Duplicate:     m.Duplicate,
		Error:         m.Error,
		Payload:       m.Payload,
		ReceivedAt:    m.ReceivedAt,
		ProcessedAt:   m.ProcessedAt,
	}
}
