package payments

import (
	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/internal/orders"
)

// PayInput identifies the caller, the order, and an optional payment method.
type PayInput struct {
	UserID          uuid.UUID
	Email           string
	FullName        string
	OrderID         uuid.UUID
	PaymentMethodID string
}

// CheckoutInput builds an order from the cart and pays it in one call.
type CheckoutInput struct {
	UserID          uuid.UUID
	Email           string
	FullName        string
	PaymentMethodID string
}

// SettleInput carries the processor ids of a succeeded payment.
type SettleInput struct {
	OrderID          uuid.UUID
	UserID           uuid.UUID
	PaymentIntentID  string
	ChargeID         string
	StripeCustomerID string
}

// Result reports the order after a payment attempt. When the processor asks
// for customer action the order stays pending and NextActionURL is set.
type Result struct {
	Order           *orders.OrderDTO `json:"order"`
	PaymentIntentID string           `json:"payment_intent_id"`
	PaymentStatus   string           `json:"payment_status"`
	ClientSecret    string           `json:"client_secret,omitempty"`
	NextActionURL   string           `json:"next_action_url,omitempty"`
}
