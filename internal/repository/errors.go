package repository

import "errors"

var (
	// ErrNavigationTimeout is returned when a page did not load in time.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrNavigationFailed covers transport-level navigation failures.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrCertificate is returned when the target presents an invalid certificate.
	// Listings hitting it are still recorded, with an empty body.
	ErrCertificate = errors.New("invalid certificate")
	// ErrExtractionFailed is returned when a site adapter could not read a page.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrConnectionLost is returned for a query interrupted by a lost store connection.
	ErrConnectionLost = errors.New("store connection lost")
	// ErrStoreUnavailable means the store could not be reached within its retry budget.
	ErrStoreUnavailable = errors.New("store unavailable")
)
