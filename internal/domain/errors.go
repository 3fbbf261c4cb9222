package domain

import "errors"

// Error taxonomy shared by the managers. Callers match with errors.Is; every
// returned error wraps at most one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrValidation       = errors.New("validation failed")
	ErrUpstream         = errors.New("upstream failure")
)
