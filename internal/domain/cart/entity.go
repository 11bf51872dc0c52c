// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/coursekit-backend/internal/domain/catalog"
)

// CartItem is one line of a user's cart. The set of a user's rows is the cart.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_user_item" json:"user_id"`
	ItemID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_user_item" json:"item_id"`
	Quantity  int       `gorm:"not null;default:1;check:quantity >= 1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// CartLineResponse is a cart line priced at the item's current price
type CartLineResponse struct {
	ItemID    uint            `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Item      *catalog.Item   `json:"item,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

// CartResponse represents a user's cart with items and summary
type CartResponse struct {
	UserID uint               `json:"user_id"`
	Items  []CartLineResponse `json:"items"`
	Totals CartTotals         `json:"totals"`
}

// CartTotals represents calculated cart totals
type CartTotals struct {
	ItemCount     int             `json:"item_count"`     // Number of unique items
	TotalQuantity int             `json:"total_quantity"` // Sum of all quantities
	SubTotal      decimal.Decimal `json:"sub_total"`
}

// AddItemRequest represents add to cart request
type AddItemRequest struct {
	ItemID   uint `json:"item_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required,min=1"`
}

// UpdateItemRequest represents update cart item request
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}
