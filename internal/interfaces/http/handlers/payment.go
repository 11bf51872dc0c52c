// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/coursekit-backend/internal/domain/checkout"
	"github.com/your-org/coursekit-backend/internal/domain/payment"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	supportMessage        = "We could not confirm your payment. If you were charged, please contact support."
)

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	gateway *payment.Gateway
	logger  logrus.FieldLogger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(gateway *payment.Gateway, logger logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// CreateCheckoutSession handles POST /payment/create-checkout-session
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req payment.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.gateway.CreateCheckoutSession(c.Request.Context(), userID, req.ShippingAddress)
	if err != nil {
		if errors.Is(err, payment.ErrProviderUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Payment provider unavailable, please retry",
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// VerifySession handles GET /payment/verify-session/:sessionId
func (h *PaymentHandler) VerifySession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.gateway.VerifySession(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Payment session not found"})
		case errors.Is(err, payment.ErrProviderUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": supportMessage})
		default:
			h.logger.WithError(err).WithField("user_id", userID).Error("Payment verification failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": supportMessage})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// Webhook handles POST /payment/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	err = h.gateway.HandleWebhook(c.Request.Context(), body, c.GetHeader(stripeSignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, payment.ErrAuthenticationFailure):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook"})
	case errors.Is(err, payment.ErrMissingMetadata):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event missing required metadata"})
	case errors.Is(err, checkout.ErrStorageFailure):
		// Non-2xx lets the provider redeliver
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Temporary failure"})
	default:
		h.logger.WithError(err).Error("Webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
	}
}
