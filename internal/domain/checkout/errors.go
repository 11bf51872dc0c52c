// internal/domain/checkout/errors.go
package checkout

import "errors"

var (
	ErrInvalidAddress  = errors.New("shipping address is too short")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrStorageFailure  = errors.New("storage failure")
	ErrUnauthenticated = errors.New("authentication required")
)
