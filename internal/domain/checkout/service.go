// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/coursekit-backend/internal/config"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
	"github.com/your-org/coursekit-backend/internal/domain/order"
	"github.com/your-org/coursekit-backend/internal/pkg/metrics"
)

// Service converts carts into pending orders
type Service struct {
	txManager *TxManager
	config    *config.Config
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
}

// NewService creates a new checkout service
func NewService(txManager *TxManager, cfg *config.Config, logger logrus.FieldLogger, m *metrics.Metrics) *Service {
	return &Service{
		txManager: txManager,
		config:    cfg,
		logger:    logger,
		metrics:   m,
	}
}

// CheckoutRequest represents checkout request
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

// Checkout places a pending order for everything in the user's cart
func (s *Service) Checkout(ctx context.Context, userID uint, shippingAddress string) (*order.Order, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	address, err := ValidateAddress(shippingAddress, s.config.Checkout.MinAddressLength)
	if err != nil {
		s.metrics.CheckoutOutcome("invalid_address")
		return nil, err
	}

	var placed *order.Order
	err = s.txManager.WithUnitOfWork(ctx, func(uow *UnitOfWork) error {
		var err error
		placed, err = PlaceOrder(uow, PlaceOrderParams{
			UserID:          userID,
			ShippingAddress: address,
			Status:          order.StatusPending,
			Currency:        s.config.Stripe.Currency,
			Comment:         "Order placed",
		})
		return err
	})
	if err != nil {
		return nil, s.classify(userID, err)
	}

	s.metrics.CheckoutOutcome("placed")
	s.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"order_id":     placed.ID,
		"order_number": placed.OrderNumber,
		"total":        placed.TotalAmount.StringFixed(2),
		"lines":        len(placed.Items),
	}).Info("Checkout completed")

	return placed, nil
}

func (s *Service) classify(userID uint, err error) error {
	var stockErr *inventory.InsufficientStockError
	switch {
	case errors.Is(err, ErrEmptyCart):
		s.metrics.CheckoutOutcome("empty_cart")
		return err
	case errors.As(err, &stockErr):
		s.metrics.CheckoutOutcome("insufficient_stock")
		s.logger.WithFields(logrus.Fields{
			"user_id":   userID,
			"item_id":   stockErr.ItemID,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		}).Info("Checkout rejected for insufficient stock")
		return err
	case errors.Is(err, inventory.ErrItemNotFound):
		s.metrics.CheckoutOutcome("unknown_item")
		return err
	default:
		s.metrics.CheckoutOutcome("storage_failure")
		s.logger.WithError(err).WithField("user_id", userID).Error("Checkout failed")
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
}
