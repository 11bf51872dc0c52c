// internal/domain/checkout/placement.go
package checkout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/your-org/coursekit-backend/internal/domain/order"
)

// PlaceOrderParams describes the order to build from a user's cart
type PlaceOrderParams struct {
	UserID           uint
	ShippingAddress  string
	Status           order.Status
	Currency         string
	PaymentSessionID *string
	Comment          string
}

// ValidateAddress trims the address and enforces the minimum length
func ValidateAddress(address string, minLength int) (string, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" || utf8.RuneCountInString(trimmed) < minLength {
		return "", fmt.Errorf("%w: at least %d characters required", ErrInvalidAddress, minLength)
	}
	return trimmed, nil
}

// PlaceOrder converts the user's current cart into an order inside uow:
// stock is taken per line at the current item price, course items grant an
// enrollment and the cart is cleared. Nothing is written when the cart is
// empty or any line is short of stock.
func PlaceOrder(uow *UnitOfWork, params PlaceOrderParams) (*order.Order, error) {
	lines, err := uow.LockCart(params.UserID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items, err := uow.LockItems(lines)
	if err != nil {
		return nil, err
	}

	orderLines := make([]order.OrderItem, 0, len(lines))
	for _, line := range lines {
		item := items[line.ItemID]
		orderLines = append(orderLines, order.NewLine(item.ID, item.SKU, item.Name, line.Quantity, item.Price))
	}

	placed := &order.Order{
		UserID:           params.UserID,
		Status:           params.Status,
		TotalAmount:      order.SumLines(orderLines),
		Currency:         params.Currency,
		ShippingAddress:  params.ShippingAddress,
		PaymentSessionID: params.PaymentSessionID,
	}
	if err := order.Insert(uow.Tx(), placed, params.Comment, params.UserID); err != nil {
		return nil, err
	}

	for i := range orderLines {
		line := &orderLines[i]
		if err := uow.Decrement(line.ItemID, line.Quantity, placed.ID); err != nil {
			return nil, err
		}
		if err := order.InsertLine(uow.Tx(), placed.ID, line); err != nil {
			return nil, err
		}
		if item := items[line.ItemID]; item.IsCourseLinked() {
			if _, err := uow.Enroll(params.UserID, *item.CourseID); err != nil {
				return nil, err
			}
		}
	}

	if err := uow.ClearCart(params.UserID); err != nil {
		return nil, err
	}

	placed.Items = orderLines
	return placed, nil
}
