// internal/domain/order/errors.go
package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrLineImmutable     = errors.New("order lines cannot be modified")
)
