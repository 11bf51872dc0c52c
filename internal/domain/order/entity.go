// internal/domain/order/entity.go
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status represents the order status
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed" // Paid through the payment provider
)

// ParseStatus converts free text into a known status
func ParseStatus(s string) (Status, error) {
	switch status := Status(strings.ToLower(strings.TrimSpace(s))); status {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusCancelled
	case StatusCompleted:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusDelivered
	case StatusDelivered, StatusCancelled:
		return false
	default:
		return false
	}
}

// Order is the record of a committed purchase. Orders are never deleted.
type Order struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OrderNumber      string          `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID           uint            `gorm:"not null;index" json:"user_id"`
	Status           Status          `gorm:"not null;size:20;default:'pending';index" json:"status"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency         string          `gorm:"size:3;default:'usd'" json:"currency"`
	ShippingAddress  string          `gorm:"type:text;not null" json:"shipping_address"`
	PaymentSessionID *string         `gorm:"uniqueIndex;size:255" json:"payment_session_id,omitempty"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	OrderDate        time.Time       `gorm:"not null" json:"order_date"`

	// Timestamps
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID" json:"items"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"status_history,omitempty"`
}

// OrderItem is an order line. Its price is captured at purchase time.
type OrderItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"not null;index" json:"order_id"`
	ItemID          uint            `gorm:"not null;index" json:"item_id"`
	SKU             string          `gorm:"not null;size:100" json:"sku"`
	Name            string          `gorm:"not null;size:255" json:"name"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_at_purchase"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	Status    Status    `gorm:"not null;size:20" json:"status"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedBy uint      `gorm:"index" json:"created_by"` // User ID who made the change
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }

// BeforeCreate assigns the order number and order date
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderDate.IsZero() {
		o.OrderDate = time.Now().UTC()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = GenerateOrderNumber(o.OrderDate)
	}
	return nil
}

// BeforeUpdate rejects changes to order lines
func (OrderItem) BeforeUpdate(tx *gorm.DB) error {
	return ErrLineImmutable
}

// GenerateOrderNumber generates a unique order number
func GenerateOrderNumber(at time.Time) string {
	// Format: ORD-YYYYMMDD-XXXXXXXX
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("ORD-%s-%s", at.Format("20060102"), id[:8])
}

// NewLine builds an order line priced at unitPrice
func NewLine(itemID uint, sku, name string, quantity int, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		ItemID:          itemID,
		SKU:             sku,
		Name:            name,
		Quantity:        quantity,
		PriceAtPurchase: unitPrice,
		LineTotal:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// SumLines returns Σ quantity × price at purchase
func SumLines(lines []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return total
}

// TotalInMinorUnits converts the total to minor currency units
func (o *Order) TotalInMinorUnits() int64 {
	return o.TotalAmount.Shift(2).Round(0).IntPart()
}

// IsFinal reports whether the order can no longer change status
func (o *Order) IsFinal() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}

// AddStatusHistory adds a new status change to history
func (o *Order) AddStatusHistory(status Status, comment string, createdBy uint) {
	history := OrderStatusHistory{
		OrderID:   o.ID,
		Status:    status,
		Comment:   comment,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	o.StatusHistory = append(o.StatusHistory, history)
}
