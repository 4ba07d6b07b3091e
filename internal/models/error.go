package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Sign-in gating errors
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrAccountLockedBySystem = errors.New("account temporarily locked after repeated failures")
	ErrAccountDisabled       = errors.New("account is disabled")

	// Booking errors
	ErrBookingConflict = errors.New("requested dates overlap an existing booking")
	ErrCarUnavailable  = errors.New("car is not available for booking")
	ErrNoDataToExport  = errors.New("no bookings to export")

	// CSRF errors
	ErrCSRFInvalid = errors.New("csrf token invalid")
)
