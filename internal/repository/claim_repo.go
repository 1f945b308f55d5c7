package repository

import (
	"context"
	"time"
)

// ClaimRepository coordinates crawler processes so that one fingerprint is
// extracted by at most one of them at a time.
type ClaimRepository interface {
	// Claim takes the fingerprint for ttl. It returns false if another process holds it.
	Claim(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
	// Release drops a claim taken by Claim.
	Release(ctx context.Context, fingerprint string) error
}
