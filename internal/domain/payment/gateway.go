// internal/domain/payment/gateway.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/coursekit-backend/internal/config"
	"github.com/your-org/coursekit-backend/internal/domain/checkout"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
	"github.com/your-org/coursekit-backend/internal/domain/order"
	"github.com/your-org/coursekit-backend/internal/pkg/metrics"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Source names what triggered a reconciliation
type Source string

const (
	SourceWebhook Source = "webhook"
	SourceVerify  Source = "verify"
)

// maxMetadataValue is the provider's limit on a metadata value
const maxMetadataValue = 500

// Locker serializes settlement for one user across replicas
type Locker interface {
	Lock(ctx context.Context, key string, ttl, wait time.Duration) (unlock func(context.Context) error, err error)
}

// SettleResult describes the order a paid session maps to
type SettleResult struct {
	Order     *order.Order
	Duplicate bool // an order already existed for the payment
	Degraded  bool // recorded from session metadata instead of the cart
}

// VerifyResult is returned to the buyer's browser after redirect
type VerifyResult struct {
	Success       bool   `json:"success"`
	PaymentStatus string `json:"payment_status"`
	OrderID       uint   `json:"order_id,omitempty"`
	OrderNumber   string `json:"order_number,omitempty"`
	Duplicate     bool   `json:"already_processed,omitempty"`
}

// CheckoutSessionResult carries the hosted payment page for the client
type CheckoutSessionResult struct {
	SessionID  string `json:"session_id"`
	SessionURL string `json:"session_url"`
}

// CreateSessionRequest represents a request for a hosted payment page
type CreateSessionRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

// Gateway reconciles provider payment confirmations with orders.
// The webhook and the client verify poll both end in settle.
type Gateway struct {
	db        *gorm.DB
	txManager *checkout.TxManager
	provider  Provider
	locker    Locker
	config    *config.Config
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
	flight    singleflight.Group
	now       func() time.Time
}

// NewGateway creates a new payment gateway. locker may be nil.
func NewGateway(db *gorm.DB, txManager *checkout.TxManager, provider Provider, locker Locker,
	cfg *config.Config, logger logrus.FieldLogger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		db:        db,
		txManager: txManager,
		provider:  provider,
		locker:    locker,
		config:    cfg,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// CreateCheckoutSession opens a hosted payment page for the user's cart
func (g *Gateway) CreateCheckoutSession(ctx context.Context, userID uint, shippingAddress string) (*CheckoutSessionResult, error) {
	if userID == 0 {
		return nil, checkout.ErrUnauthenticated
	}

	address, err := checkout.ValidateAddress(shippingAddress, g.config.Checkout.MinAddressLength)
	if err != nil {
		return nil, err
	}

	var lineItems []LineItem
	err = g.txManager.WithUnitOfWork(ctx, func(uow *checkout.UnitOfWork) error {
		lines, err := uow.LockCart(userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return checkout.ErrEmptyCart
		}

		items, err := uow.LockItems(lines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			item := items[line.ItemID]
			lineItems = append(lineItems, LineItem{
				Name:       item.Name,
				UnitAmount: item.Price.Shift(2).Round(0).IntPart(),
				Quantity:   int64(line.Quantity),
			})
		}
		return nil
	})
	if err != nil {
		var stockErr *inventory.InsufficientStockError
		if errors.Is(err, checkout.ErrEmptyCart) || errors.As(err, &stockErr) || errors.Is(err, inventory.ErrItemNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", checkout.ErrStorageFailure, err)
	}

	userRef := strconv.FormatUint(uint64(userID), 10)
	pctx, cancel := context.WithTimeout(ctx, g.config.Stripe.Timeout)
	defer cancel()

	session, err := g.provider.CreateCheckoutSession(pctx, &CreateSessionParams{
		LineItems:         lineItems,
		Currency:          g.config.Stripe.Currency,
		SuccessURL:        g.config.Stripe.SuccessURL,
		CancelURL:         g.config.Stripe.CancelURL,
		ClientReferenceID: userRef,
		Metadata: map[string]string{
			MetadataUserID:          userRef,
			MetadataShippingAddress: truncate(address, maxMetadataValue),
		},
	})
	if err != nil {
		g.logger.WithError(err).WithField("user_id", userID).Error("Failed to create checkout session")
		return nil, g.providerError(err)
	}

	g.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": session.ID,
		"lines":      len(lineItems),
	}).Info("Checkout session created")

	return &CheckoutSessionResult{
		SessionID:  session.ID,
		SessionURL: session.URL,
	}, nil
}

// HandleWebhook verifies and processes a provider event
func (g *Gateway) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := g.provider.ParseWebhook(payload, signatureHeader)
	if err != nil {
		g.logger.WithError(err).Warn("Rejected webhook")
		g.metrics.ReconciliationOutcome(string(SourceWebhook), "rejected")
		if errors.Is(err, ErrAuthenticationFailure) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}

	log := g.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	switch event.Type {
	case EventCheckoutSessionCompleted, EventCheckoutSessionAsyncPaymentSucceeded:
		if event.Session == nil {
			return fmt.Errorf("%w: event has no checkout session", ErrMissingMetadata)
		}
		if event.Session.PaymentStatus != PaymentStatusPaid {
			log.WithField("payment_status", event.Session.PaymentStatus).Info("Checkout session not paid yet")
			g.metrics.ReconciliationOutcome(string(SourceWebhook), "unpaid")
			return nil
		}
		_, err := g.settle(ctx, event.Session, SourceWebhook)
		return err
	default:
		log.Debug("Ignoring webhook event")
		return nil
	}
}

// VerifySession reconciles a session the buyer was redirected back with.
// Concurrent calls for the same user and session share one execution.
func (g *Gateway) VerifySession(ctx context.Context, userID uint, sessionID string) (*VerifyResult, error) {
	if userID == 0 {
		return nil, checkout.ErrUnauthenticated
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	key := sessionID + ":" + strconv.FormatUint(uint64(userID), 10)
	v, err, _ := g.flight.Do(key, func() (interface{}, error) {
		return g.verify(context.WithoutCancel(ctx), userID, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*VerifyResult), nil
}

func (g *Gateway) verify(ctx context.Context, userID uint, sessionID string) (*VerifyResult, error) {
	pctx, cancel := context.WithTimeout(ctx, g.config.Stripe.Timeout)
	session, err := g.provider.GetSession(pctx, sessionID)
	cancel()
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		g.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to fetch payment session")
		return nil, g.providerError(err)
	}

	owner, err := metadataUserID(session.Metadata)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		// Do not reveal sessions that belong to someone else
		return nil, ErrSessionNotFound
	}

	if session.PaymentStatus != PaymentStatusPaid {
		g.metrics.ReconciliationOutcome(string(SourceVerify), "unpaid")
		return &VerifyResult{Success: false, PaymentStatus: session.PaymentStatus}, nil
	}

	result, err := g.settle(ctx, session, SourceVerify)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		Success:       true,
		PaymentStatus: session.PaymentStatus,
		OrderID:       result.Order.ID,
		OrderNumber:   result.Order.OrderNumber,
		Duplicate:     result.Duplicate,
	}, nil
}

// settle records the order for a paid session exactly once
func (g *Gateway) settle(ctx context.Context, session *Session, source Source) (*SettleResult, error) {
	userID, err := metadataUserID(session.Metadata)
	if err != nil {
		g.metrics.ReconciliationOutcome(string(source), "missing_metadata")
		g.logger.WithField("session_id", session.ID).Error("Paid session has no user metadata")
		return nil, err
	}

	log := g.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"user_id":    userID,
		"source":     source,
	})

	unlock := g.lock(ctx, userID, log)
	defer unlock()

	var result *SettleResult
	err = g.txManager.WithUnitOfWork(ctx, func(uow *checkout.UnitOfWork) error {
		existing, err := g.findDuplicate(uow.Tx(), userID, session)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &SettleResult{Order: existing, Duplicate: true}
			return nil
		}

		result, err = g.placeFromCart(uow, userID, session, source, log)
		return err
	})
	if err != nil {
		// A concurrent settle may have won the unique session index
		if existing, lookupErr := order.FindBySessionID(g.db.WithContext(ctx), session.ID); lookupErr == nil && existing != nil {
			log.WithField("order_id", existing.ID).Info("Payment already reconciled by a concurrent request")
			g.metrics.ReconciliationOutcome(string(source), "duplicate")
			return &SettleResult{Order: existing, Duplicate: true}, nil
		}
		log.WithError(err).Error("Payment reconciliation failed")
		g.metrics.ReconciliationOutcome(string(source), "failed")
		return nil, fmt.Errorf("%w: %w", checkout.ErrStorageFailure, err)
	}

	switch {
	case result.Duplicate:
		log.WithField("order_id", result.Order.ID).Info("Payment already reconciled")
		g.metrics.ReconciliationOutcome(string(source), "duplicate")
	case result.Degraded:
		g.metrics.ReconciliationOutcome(string(source), "degraded")
	default:
		log.WithFields(logrus.Fields{
			"order_id": result.Order.ID,
			"total":    result.Order.TotalAmount.StringFixed(2),
		}).Info("Order created from paid session")
		g.metrics.ReconciliationOutcome(string(source), "created")
	}

	return result, nil
}

func (g *Gateway) findDuplicate(tx *gorm.DB, userID uint, session *Session) (*order.Order, error) {
	existing, err := order.FindBySessionID(tx, session.ID)
	if err != nil || existing != nil {
		return existing, err
	}
	if !g.config.Payment.LegacyAmountMatch {
		return nil, nil
	}
	since := g.now().UTC().Add(-g.config.Payment.LegacyMatchWindow)
	return order.FindLegacyPaidOrder(tx, userID, session.AmountTotal, since)
}

func (g *Gateway) placeFromCart(uow *checkout.UnitOfWork, userID uint, session *Session, source Source, log logrus.FieldLogger) (*SettleResult, error) {
	sessionID := session.ID
	address := strings.TrimSpace(session.Metadata[MetadataShippingAddress])
	currency := session.Currency
	if currency == "" {
		currency = g.config.Stripe.Currency
	}

	var placed *order.Order
	err := uow.Nested(func(inner *checkout.UnitOfWork) error {
		var err error
		placed, err = checkout.PlaceOrder(inner, checkout.PlaceOrderParams{
			UserID:           userID,
			ShippingAddress:  address,
			Status:           order.StatusCompleted,
			Currency:         currency,
			PaymentSessionID: &sessionID,
			Comment:          fmt.Sprintf("Payment confirmed (%s)", source),
		})
		return err
	})
	if err == nil {
		return &SettleResult{Order: placed}, nil
	}

	var stockErr *inventory.InsufficientStockError
	var note string
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		note = "Recorded from payment session: cart was empty at reconciliation"
		log.Warn("Paid session has no cart to fulfil, recording order from session metadata")
	case errors.As(err, &stockErr):
		note = fmt.Sprintf("Recorded from payment session: %s", stockErr.Error())
		log.WithFields(logrus.Fields{
			"item_id":   stockErr.ItemID,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		}).Error("Paid session cannot be fulfilled from stock, recording order from session metadata")
	default:
		return nil, err
	}

	degraded := &order.Order{
		UserID:           userID,
		Status:           order.StatusCompleted,
		TotalAmount:      decimal.New(session.AmountTotal, -2),
		Currency:         currency,
		ShippingAddress:  address,
		PaymentSessionID: &sessionID,
		Notes:            note,
	}
	if err := order.Insert(uow.Tx(), degraded, note, userID); err != nil {
		return nil, err
	}
	if err := uow.ClearCart(userID); err != nil {
		return nil, err
	}

	return &SettleResult{Order: degraded, Degraded: true}, nil
}

// lock takes the per-user settle lock. Without it the unique session index
// still prevents duplicates, so failures only log.
func (g *Gateway) lock(ctx context.Context, userID uint, log logrus.FieldLogger) func() {
	if g.locker == nil {
		return func() {}
	}

	key := fmt.Sprintf("payment:settle:user:%d", userID)
	unlock, err := g.locker.Lock(ctx, key, g.config.Payment.SettleLockTTL, g.config.Payment.SettleLockWait)
	if err != nil {
		log.WithError(err).Warn("Settle lock unavailable, relying on session uniqueness")
		return func() {}
	}

	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Failed to release settle lock")
		}
	}
}

func (g *Gateway) providerError(err error) error {
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

func metadataUserID(metadata map[string]string) (uint, error) {
	raw := strings.TrimSpace(metadata[MetadataUserID])
	if raw == "" {
		return 0, ErrMissingMetadata
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid user_id %q", ErrMissingMetadata, raw)
	}
	return uint(id), nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
