// internal/domain/payment/errors.go
package payment

import "errors"

var (
	ErrMissingMetadata       = errors.New("payment session is missing required metadata")
	ErrAuthenticationFailure = errors.New("webhook signature verification failed")
	ErrSessionNotFound       = errors.New("payment session not found")
	ErrProviderUnavailable   = errors.New("payment provider unavailable")
)
