package entity

import "time"

// FailedListing mirrors the `failed_listings` table.
type FailedListing struct {
	ID                   int64
	URL                  string
	Fingerprint          string
	FailureReason        string
	Attempts             int
	LastAttemptTimestamp time.Time
}
