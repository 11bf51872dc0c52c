// internal/domain/inventory/ledger.go
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/coursekit-backend/internal/domain/catalog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger owns every change to item stock levels.
// Methods taking a *gorm.DB expect to run inside the caller's transaction.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a new inventory ledger
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// LockItem reads an item and holds a row lock on it until tx ends
func (l *Ledger) LockItem(tx *gorm.DB, itemID uint) (*catalog.Item, error) {
	var item catalog.Item
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to lock item: %w", err)
	}
	return &item, nil
}

// EnsureAvailable checks a locked item against a requested quantity
func EnsureAvailable(item *catalog.Item, quantity int) error {
	if !item.HasStock(quantity) {
		return &InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: item.StockQuantity,
			Requested: quantity,
		}
	}
	return nil
}

// Decrement removes quantity units of an item for an order.
// Stock never goes negative: the update only applies while enough stock remains.
func (l *Ledger) Decrement(tx *gorm.DB, itemID uint, quantity int, orderID uint) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	item, err := l.LockItem(tx, itemID)
	if err != nil {
		return err
	}
	if err := EnsureAvailable(item, quantity); err != nil {
		return err
	}

	result := tx.Model(&catalog.Item{}).
		Where("id = ? AND stock_quantity >= ?", itemID, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost a race with another writer between read and update
		var current catalog.Item
		if err := tx.Select("stock_quantity").Where("id = ?", itemID).First(&current).Error; err != nil {
			return fmt.Errorf("failed to re-read stock: %w", err)
		}
		return &InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: current.StockQuantity,
			Requested: quantity,
		}
	}

	movement := &StockMovement{
		ItemID:           itemID,
		MovementType:     MovementTypeOutbound,
		Reason:           ReasonSale,
		Quantity:         quantity,
		PreviousQuantity: item.StockQuantity,
		NewQuantity:      item.StockQuantity - quantity,
		ReferenceType:    ReferenceTypeOrder,
		ReferenceID:      orderID,
	}
	if err := tx.Create(movement).Error; err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}

	return nil
}

// Restock adds stock to an item and records the movement
func (l *Ledger) Restock(ctx context.Context, itemID uint, quantity int, notes string) (*StockMovement, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var movement *StockMovement
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := l.LockItem(tx, itemID)
		if err != nil {
			return err
		}

		if err := tx.Model(&catalog.Item{}).Where("id = ?", itemID).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity)).Error; err != nil {
			return fmt.Errorf("failed to restock item: %w", err)
		}

		movement = &StockMovement{
			ItemID:           itemID,
			MovementType:     MovementTypeInbound,
			Reason:           ReasonRestock,
			Quantity:         quantity,
			PreviousQuantity: item.StockQuantity,
			NewQuantity:      item.StockQuantity + quantity,
			Notes:            notes,
		}
		if err := tx.Create(movement).Error; err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return movement, nil
}

// Movements lists the audit trail of an item, newest first
func (l *Ledger) Movements(ctx context.Context, itemID uint) ([]StockMovement, error) {
	var movements []StockMovement
	err := l.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("id DESC").
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return movements, nil
}
