package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrQuotaExceeded       = errors.New("free usage limit reached")
	ErrPlanRequired        = errors.New("premium plan required")
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderRateLimited = errors.New("provider rate limited")
	ErrProviderUnavailable = errors.New("provider unavailable")
)
