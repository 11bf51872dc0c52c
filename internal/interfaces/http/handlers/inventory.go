// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
)

// InventoryHandler handles admin stock endpoints
type InventoryHandler struct {
	ledger *inventory.Ledger
	logger logrus.FieldLogger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(ledger *inventory.Ledger, logger logrus.FieldLogger) *InventoryHandler {
	return &InventoryHandler{
		ledger: ledger,
		logger: logger,
	}
}

// RestockRequest represents a stock increase
type RestockRequest struct {
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Notes    string `json:"notes"`
}

// Restock handles POST /admin/items/:id/restock
func (h *InventoryHandler) Restock(c *gin.Context) {
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	movement, err := h.ledger.Restock(c.Request.Context(), itemID, req.Quantity, req.Notes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Stock updated successfully",
		"data":    movement,
	})
}

// GetMovements handles GET /admin/items/:id/movements
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	movements, err := h.ledger.Movements(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock movements retrieved successfully",
		"data":    movements,
	})
}
