package auth

import "errors"

// Rejection taxonomy shared by every resource-scoped operation. Handlers
// map these to 401/403/404/400; services never convert them to HTTP
// concerns themselves.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
)
