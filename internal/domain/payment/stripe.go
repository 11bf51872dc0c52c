// internal/domain/payment/stripe.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/your-org/coursekit-backend/internal/config"
)

// StripeProvider implements Provider with Stripe Checkout
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe client from configuration
func NewStripeProvider(cfg *config.StripeConfig) *StripeProvider {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return NewStripeProviderWithBackends(cfg, stripe.NewBackends(httpClient))
}

// NewStripeProviderWithBackends creates a Stripe client on explicit backends
func NewStripeProviderWithBackends(cfg *config.StripeConfig, backends *stripe.Backends) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateCheckoutSession creates a hosted payment page
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params *CreateSessionParams) (*Session, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sessionParams.Context = ctx
	if params.ClientReferenceID != "" {
		sessionParams.ClientReferenceID = stripe.String(params.ClientReferenceID)
	}
	for key, value := range params.Metadata {
		sessionParams.AddMetadata(key, value)
	}
	for _, line := range params.LineItems {
		sessionParams.LineItems = append(sessionParams.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(params.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
				UnitAmount: stripe.Int64(line.UnitAmount),
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	cs, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return toSession(cs), nil
}

// GetSession fetches a checkout session by id
func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return toSession(cs), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event
func (p *StripeProvider) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if p.webhookSecret == "" || signatureHeader == "" {
		return nil, ErrAuthenticationFailure
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}

	result := &Event{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if strings.HasPrefix(result.Type, "checkout.session.") && event.Data != nil {
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		result.Session = toSession(&cs)
	}
	return result, nil
}

func toSession(cs *stripe.CheckoutSession) *Session {
	metadata := make(map[string]string, len(cs.Metadata))
	for key, value := range cs.Metadata {
		metadata[key] = value
	}
	return &Session{
		ID:            cs.ID,
		URL:           cs.URL,
		PaymentStatus: string(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
		Metadata:      metadata,
	}
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, stripeErr.Msg)
		}
		if stripeErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %s", ErrProviderUnavailable, stripeErr.Msg)
		}
		return fmt.Errorf("stripe request failed: %w", err)
	}
	// Transport failures and deadlines
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
