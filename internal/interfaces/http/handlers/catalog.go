// internal/interfaces/http/handlers/catalog.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/coursekit-backend/internal/domain/catalog"
)

// CatalogHandler serves the public catalog
type CatalogHandler struct {
	catalogService *catalog.Service
	logger         logrus.FieldLogger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *catalog.Service, logger logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// ListItems handles GET /catalog/items
func (h *CatalogHandler) ListItems(c *gin.Context) {
	kind := catalog.ItemKind(c.Query("kind"))
	if kind != "" && kind != catalog.ItemKindCourse && kind != catalog.ItemKindKit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item kind"})
		return
	}

	items, err := h.catalogService.ListItems(c.Request.Context(), kind)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Items retrieved successfully",
		"data":    items,
	})
}

// GetItem handles GET /catalog/items/:id
func (h *CatalogHandler) GetItem(c *gin.Context) {
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	item, err := h.catalogService.GetItem(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item retrieved successfully",
		"data":    item,
	})
}
