package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the caller left it empty so inserts behave the
// same on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, used for SQLite schema bootstrapping.
func All() []any {
	return []any{
		&Course{},
		&CourseVideo{},
		&Profile{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&CourseAccess{},
		&Purchase{},
		&StripeCustomer{},
		&PaymentMethod{},
		&WebhookEvent{},
		&OutboxEvent{},
	}
}
