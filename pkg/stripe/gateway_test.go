package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-backend/pkg/config"
)

type recordedCall struct {
	path           string
	authorization  string
	idempotencyKey string
	form           map[string]string
}

type fakeStripeAPI struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeStripeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	form := map[string]string{}
	for key := range r.PostForm {
		form[key] = r.PostForm.Get(key)
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{
		path:           r.URL.Path,
		authorization:  r.Header.Get("Authorization"),
		idempotencyKey: r.Header.Get("Idempotency-Key"),
		form:           form,
	})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/customers":
		_, _ = w.Write([]byte(`{"id":"cus_123","object":"customer","email":"ada@example.com"}`))
	case "/v1/payment_intents":
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":2500,"status":"requires_confirmation"}`))
	case "/v1/payment_intents/pi_123/confirm":
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"succeeded","latest_charge":{"id":"ch_123","object":"charge"}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"unknown path"}}`))
	}
}

func newTestGateway(t *testing.T) (*Gateway, *fakeStripeAPI) {
	t.Helper()
	api := &fakeStripeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey:        "sk_test_gateway",
		WebhookSecret: "whsec_123",
		APIURL:        srv.URL,
	}, nil)
	require.NoError(t, err)

	gw, err := NewGateway(client)
	require.NoError(t, err)
	return gw, api
}

func TestGatewayCreateCustomerUsesConfiguredKeyAndBackend(t *testing.T) {
	gw, api := newTestGateway(t)

	cust, err := gw.CreateCustomer(context.Background(), CustomerInput{UserID: "user-1", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", cust.ID)

	require.Len(t, api.calls, 1)
	call := api.calls[0]
	assert.Equal(t, "Bearer sk_test_gateway", call.authorization)
	assert.Equal(t, "customer-user-1", call.idempotencyKey)
	assert.Equal(t, "ada@example.com", call.form["email"])
	assert.Equal(t, "user-1", call.form["metadata[user_id]"])
}

func TestGatewayCreatesAndConfirmsIntent(t *testing.T) {
	gw, api := newTestGateway(t)
	ctx := context.Background()

	intent, err := gw.CreatePaymentIntent(ctx, IntentInput{OrderID: "order-1", UserID: "user-1", CustomerID: "cus_123", Amount: 2500})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)

	confirmed, err := gw.ConfirmPaymentIntent(ctx, intent.ID, "pm_card_visa", "https://courses.example.com/checkout/success")
	require.NoError(t, err)
	assert.Equal(t, "ch_123", ChargeID(confirmed))

	require.Len(t, api.calls, 2)
	create := api.calls[0]
	assert.Equal(t, "Bearer sk_test_gateway", create.authorization)
	assert.Equal(t, "order-intent-order-1", create.idempotencyKey)
	assert.Equal(t, "2500", create.form["amount"])
	assert.Equal(t, "usd", create.form["currency"])
	assert.Equal(t, "order-1", create.form["metadata[order_id]"])

	confirm := api.calls[1]
	assert.Equal(t, "/v1/payment_intents/pi_123/confirm", confirm.path)
	assert.Equal(t, "Bearer sk_test_gateway", confirm.authorization)
	assert.Equal(t, "pm_card_visa", confirm.form["payment_method"])
}

func TestGatewayRejectsNonPositiveAmount(t *testing.T) {
	gw, api := newTestGateway(t)

	_, err := gw.CreatePaymentIntent(context.Background(), IntentInput{OrderID: "order-1", Amount: 0})
	require.Error(t, err)
	assert.Empty(t, api.calls)
}

func TestNewGatewayRequiresClient(t *testing.T) {
	_, err := NewGateway(nil)
	assert.Error(t, err)
}
