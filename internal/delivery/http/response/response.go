package response

import "time"

// HealthResponse reports the state of each dependency.
type HealthResponse struct {
	Status string            `json:"status"` // "ok" or "degraded"
	Checks map[string]string `json:"checks"`
}

// FailedListingResponse is a DTO for a listing that could not be extracted.
type FailedListingResponse struct {
	URL                  string    `json:"url"`
	Fingerprint          string    `json:"fingerprint"`
	FailureReason        string    `json:"failure_reason"`
	Attempts             int       `json:"attempts"`
	LastAttemptTimestamp time.Time `json:"last_attempt_timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
