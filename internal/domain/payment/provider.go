// internal/domain/payment/provider.go
package payment

import "context"

// PaymentStatusPaid is the only session status that settles an order
const PaymentStatusPaid = "paid"

// Event types that carry a completed checkout session
const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// Metadata keys written at session creation and read back at reconciliation
const (
	MetadataUserID          = "user_id"
	MetadataShippingAddress = "shipping_address"
)

// Session is a provider checkout session as seen by this service
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   int64 // minor currency units
	Currency      string
	Metadata      map[string]string
}

// Event is a verified webhook event
type Event struct {
	ID      string
	Type    string
	Session *Session // set for checkout session events
}

// LineItem is one priced line sent to the provider
type LineItem struct {
	Name       string
	UnitAmount int64 // minor currency units
	Quantity   int64
}

// CreateSessionParams describes a hosted checkout session
type CreateSessionParams struct {
	LineItems         []LineItem
	Currency          string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// Provider is the external payment processor
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params *CreateSessionParams) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
}
