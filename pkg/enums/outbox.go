package enums

import "fmt"

// OutboxAggregateType maps to the outbox_aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregatePurchase OutboxAggregateType = "purchase"
	AggregateAccess   OutboxAggregateType = "course_access"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePurchase,
	AggregateAccess,
}

// IsValid reports whether the value matches the canonical aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the outbox_event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCompleted  OutboxEventType = "order_completed"
	EventOrderCancelled  OutboxEventType = "order_cancelled"
	EventOrderExpired    OutboxEventType = "order_expired"
	EventPaymentSettled  OutboxEventType = "payment_settled"
	EventPaymentFailed   OutboxEventType = "payment_failed"
	EventPaymentRefunded OutboxEventType = "payment_refunded"
	EventAccessGranted   OutboxEventType = "access_granted"
	EventAccessRevoked   OutboxEventType = "access_revoked"
)

var validEventTypes = []OutboxEventType{
	EventOrderCompleted,
	EventOrderCancelled,
	EventOrderExpired,
	EventPaymentSettled,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventAccessGranted,
	EventAccessRevoked,
}

// IsValid reports whether the value matches the canonical event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
