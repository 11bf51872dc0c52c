package payment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/your-org/coursekit-backend/internal/config"
	"github.com/your-org/coursekit-backend/internal/domain/payment"
)

const webhookSecret = "whsec_test_secret"

const completedEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_1",
      "object": "checkout.session",
      "payment_status": "paid",
      "amount_total": 10000,
      "currency": "usd",
      "metadata": {"user_id": "1", "shipping_address": "12 Harbour Road, Springfield"}
    }
  }
}`

func newStripeProvider(t *testing.T, handler http.HandlerFunc) *payment.StripeProvider {
	cfg := &config.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: webhookSecret, Timeout: time.Second}
	if handler == nil {
		return payment.NewStripeProvider(cfg)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		HTTPClient:        server.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return payment.NewStripeProviderWithBackends(cfg, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeParseWebhook(t *testing.T) {
	provider := newStripeProvider(t, nil)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(completedEvent),
		Secret:  webhookSecret,
	})

	event, err := provider.ParseWebhook(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, payment.EventCheckoutSessionCompleted, event.Type)
	require.NotNil(t, event.Session)
	assert.Equal(t, "cs_1", event.Session.ID)
	assert.Equal(t, payment.PaymentStatusPaid, event.Session.PaymentStatus)
	assert.Equal(t, int64(10000), event.Session.AmountTotal)
	assert.Equal(t, "1", event.Session.Metadata[payment.MetadataUserID])
}

func TestStripeParseWebhook_RejectsBadSignatures(t *testing.T) {
	provider := newStripeProvider(t, nil)

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(completedEvent),
		Secret:  "whsec_someone_else",
	})
	_, err := provider.ParseWebhook(forged.Payload, forged.Header)
	assert.ErrorIs(t, err, payment.ErrAuthenticationFailure)

	_, err = provider.ParseWebhook([]byte(completedEvent), "")
	assert.ErrorIs(t, err, payment.ErrAuthenticationFailure)

	// A valid signature over different bytes
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(completedEvent),
		Secret:  webhookSecret,
	})
	_, err = provider.ParseWebhook([]byte(`{"id":"evt_2"}`), signed.Header)
	assert.ErrorIs(t, err, payment.ErrAuthenticationFailure)
}

func TestStripeParseWebhook_NoSecretConfigured(t *testing.T) {
	provider := payment.NewStripeProvider(&config.StripeConfig{SecretKey: "sk_test_123"})

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(completedEvent),
		Secret:  webhookSecret,
	})
	_, err := provider.ParseWebhook(signed.Payload, signed.Header)
	assert.ErrorIs(t, err, payment.ErrAuthenticationFailure)
}

func TestStripeGetSession(t *testing.T) {
	provider := newStripeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","payment_status":"paid","amount_total":4250,"currency":"usd","metadata":{"user_id":"7"}}`))
	})

	session, err := provider.GetSession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, int64(4250), session.AmountTotal)
	assert.Equal(t, "7", session.Metadata[payment.MetadataUserID])
}

func TestStripeGetSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "missing session",
			status: http.StatusNotFound,
			body:   `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session: 'cs_x'"}}`,
			want:   payment.ErrSessionNotFound,
		},
		{
			name:   "provider outage",
			status: http.StatusServiceUnavailable,
			body:   `{"error":{"type":"api_error","message":"Service unavailable"}}`,
			want:   payment.ErrProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newStripeProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := provider.GetSession(context.Background(), "cs_x")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStripeCreateCheckoutSession(t *testing.T) {
	provider := newStripeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "7", r.PostForm.Get("metadata[user_id]"))
		assert.Equal(t, "7", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "5000", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "2", r.PostForm.Get("line_items[0][quantity]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_new","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_new","payment_status":"unpaid"}`))
	})

	session, err := provider.CreateCheckoutSession(context.Background(), &payment.CreateSessionParams{
		LineItems:         []payment.LineItem{{Name: "Robotics Starter Kit", UnitAmount: 5000, Quantity: 2}},
		Currency:          "usd",
		SuccessURL:        "http://localhost/success",
		CancelURL:         "http://localhost/cancel",
		ClientReferenceID: "7",
		Metadata:          map[string]string{payment.MetadataUserID: "7"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_new", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_new", session.URL)
}
