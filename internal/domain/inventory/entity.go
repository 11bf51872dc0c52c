// internal/domain/inventory/entity.go
package inventory

import (
	"errors"
	"fmt"
	"time"
)

// MovementType represents the direction of a stock movement
type MovementType string

const (
	MovementTypeInbound  MovementType = "inbound"  // Restock, adjustment increase
	MovementTypeOutbound MovementType = "outbound" // Sale
)

// MovementReason represents the reason for a stock movement
type MovementReason string

const (
	ReasonSale       MovementReason = "sale"
	ReasonRestock    MovementReason = "restock"
	ReasonAdjustment MovementReason = "adjustment"
)

// ReferenceTypeOrder marks movements caused by an order
const ReferenceTypeOrder = "order"

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("inventory item not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// InsufficientStockError names the item that could not cover the requested quantity
type InsufficientStockError struct {
	ItemID    uint
	ItemName  string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ItemName, e.Available, e.Requested)
}

// Is lets errors.Is(err, ErrInsufficientStock) match
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StockMovement is the audit record written for every stock change
type StockMovement struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ItemID           uint           `gorm:"not null;index" json:"item_id"`
	MovementType     MovementType   `gorm:"not null;size:20" json:"movement_type"`
	Reason           MovementReason `gorm:"not null;size:30" json:"reason"`
	Quantity         int            `gorm:"not null" json:"quantity"`
	PreviousQuantity int            `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int            `gorm:"not null" json:"new_quantity"`
	ReferenceType    string         `gorm:"size:50" json:"reference_type"`
	ReferenceID      uint           `gorm:"index" json:"reference_id"`
	Notes            string         `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time      `json:"created_at"`
}

// TableName override
func (StockMovement) TableName() string { return "stock_movements" }
