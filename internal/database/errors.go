package database

import "errors"

// Sentinel errors returned by the stores. Callers distinguish them with
// errors.Is; everything else is an unexpected storage failure.
var (
	// ErrDuplicateEmail is returned when a signup collides with an existing
	// user, whether or not that user has verified.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidToken is returned when a verification token does not match
	// any pending user. It deliberately does not reveal whether the email exists.
	ErrInvalidToken = errors.New("invalid verification token")

	// ErrUserNotVerified is returned when an operation requires a verified user.
	ErrUserNotVerified = errors.New("user not verified")

	// ErrInvalidThreshold is returned for negative subscription thresholds.
	ErrInvalidThreshold = errors.New("threshold must be non-negative")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner is returned when a caller tries to modify a subscription
	// owned by a different user.
	ErrNotOwner = errors.New("subscription not owned by user")

	// ErrUnavailable is returned when the store itself cannot be reached.
	// The alert engine fails fast on it: dedup cannot be trusted without the store.
	ErrUnavailable = errors.New("storage unavailable")
)
