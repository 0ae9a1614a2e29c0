package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
)

// CustomerInput describes the processor customer created for a user.
type CustomerInput struct {
	UserID string
	Email  string
	Name   string
}

// IntentInput describes a payment intent for one order.
type IntentInput struct {
	OrderID    string
	UserID     string
	CustomerID string
	Amount     int64
	Currency   string
}

// Gateway performs the customer and payment-intent calls used at checkout
// through the client's configured API backends.
type Gateway struct {
	client *Client
}

func NewGateway(client *Client) (*Gateway, error) {
	if client == nil || client.api == nil {
		return nil, fmt.Errorf("stripe client is required")
	}
	return &Gateway{client: client}, nil
}

func (g *Gateway) CreateCustomer(ctx context.Context, in CustomerInput) (*stripe.Customer, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(in.Email),
	}
	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}
	params.AddMetadata(MetadataUserID, in.UserID)
	params.SetIdempotencyKey("customer-" + in.UserID)
	return g.client.api.V1Customers.Create(ctx, params)
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, in IntentInput) (*stripe.PaymentIntent, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}
	currency := in.Currency
	if currency == "" {
		currency = g.client.Currency()
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(currency),
		Customer: stripe.String(in.CustomerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(MetadataOrderID, in.OrderID)
	params.AddMetadata(MetadataUserID, in.UserID)
	params.SetIdempotencyKey("order-intent-" + in.OrderID)
	return g.client.api.V1PaymentIntents.Create(ctx, params)
}

func (g *Gateway) ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethodID, returnURL string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
		ReturnURL:     stripe.String(returnURL),
	}
	params.AddExpand("latest_charge")
	return g.client.api.V1PaymentIntents.Confirm(ctx, intentID, params)
}

// Metadata keys stamped on processor objects so webhooks can map them back.
const (
	MetadataOrderID = "order_id"
	MetadataUserID  = "user_id"
)

// ChargeID extracts the latest charge id from an intent, if any.
func ChargeID(intent *stripe.PaymentIntent) string {
	if intent == nil || intent.LatestCharge == nil {
		return ""
	}
	return intent.LatestCharge.ID
}
