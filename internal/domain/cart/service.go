// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/your-org/coursekit-backend/internal/domain/catalog"
	"github.com/your-org/coursekit-backend/internal/domain/inventory"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("quantity cannot be negative")
)

// Service handles cart business logic
type Service struct {
	db      *gorm.DB
	catalog *catalog.Service
}

// NewService creates a new cart service
func NewService(db *gorm.DB, catalogService *catalog.Service) *Service {
	return &Service{
		db:      db,
		catalog: catalogService,
	}
}

// GetCart retrieves the user's cart priced at current catalog prices
func (s *Service) GetCart(ctx context.Context, userID uint) (*CartResponse, error) {
	var rows []CartItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve user cart: %w", err)
	}

	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.ItemID
	}
	items, err := s.catalog.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]CartLineResponse, 0, len(rows))
	for _, row := range rows {
		line := CartLineResponse{
			ItemID:   row.ItemID,
			Quantity: row.Quantity,
			AddedAt:  row.CreatedAt,
		}
		if item, ok := items[row.ItemID]; ok {
			line.Item = &item
			line.UnitPrice = item.Price
			line.LineTotal = item.Price.Mul(decimal.NewFromInt(int64(row.Quantity)))
		}
		lines = append(lines, line)
	}

	return &CartResponse{
		UserID: userID,
		Items:  lines,
		Totals: calculateTotals(lines),
	}, nil
}

// AddItem adds an item to the cart, merging with an existing line
func (s *Service) AddItem(ctx context.Context, userID uint, req *AddItemRequest) (*CartResponse, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing CartItem
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND item_id = ?", userID, req.ItemID).
			First(&existing)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if err := inventory.EnsureAvailable(item, req.Quantity); err != nil {
				return err
			}
			return tx.Create(&CartItem{
				UserID:   userID,
				ItemID:   req.ItemID,
				Quantity: req.Quantity,
			}).Error
		}
		if result.Error != nil {
			return fmt.Errorf("failed to read cart line: %w", result.Error)
		}

		newQuantity := existing.Quantity + req.Quantity
		if err := inventory.EnsureAvailable(item, newQuantity); err != nil {
			return err
		}
		return tx.Model(&existing).Update("quantity", newQuantity).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

// UpdateItem sets the quantity of a cart line. Zero removes the line.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID uint, req *UpdateItemRequest) (*CartResponse, error) {
	if req.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if req.Quantity == 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}

	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := inventory.EnsureAvailable(item, req.Quantity); err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&CartItem{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Update("quantity", req.Quantity)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}

	return s.GetCart(ctx, userID)
}

// RemoveItem removes a line from the cart
func (s *Service) RemoveItem(ctx context.Context, userID, itemID uint) (*CartResponse, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Delete(&CartItem{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}

	return s.GetCart(ctx, userID)
}

// ClearCart removes every line of the user's cart
func (s *Service) ClearCart(ctx context.Context, userID uint) error {
	return ClearLines(s.db.WithContext(ctx), userID)
}

// LockLines reads the user's cart lines and locks them until tx ends
func LockLines(tx *gorm.DB, userID uint) ([]CartItem, error) {
	var lines []CartItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	return lines, nil
}

// ClearLines deletes the user's cart lines. Clearing an empty cart is a no-op.
func ClearLines(tx *gorm.DB, userID uint) error {
	if err := tx.Where("user_id = ?", userID).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func calculateTotals(lines []CartLineResponse) CartTotals {
	totals := CartTotals{SubTotal: decimal.Zero}

	totals.ItemCount = len(lines)
	for _, line := range lines {
		totals.TotalQuantity += line.Quantity
		totals.SubTotal = totals.SubTotal.Add(line.LineTotal)
	}

	return totals
}
