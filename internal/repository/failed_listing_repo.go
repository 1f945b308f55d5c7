package repository

import (
	"context"

	"github.com/user/jobcrawler/internal/entity"
)

// FailedListingRepository defines the interface for listings that could not be extracted.
type FailedListingRepository interface {
	// SaveOrUpdate creates or updates a record for a failed listing.
	SaveOrUpdate(ctx context.Context, failed *entity.FailedListing) error
	// FindRecent returns the most recently failed listings.
	FindRecent(ctx context.Context, limit int) ([]*entity.FailedListing, error)
	// Delete removes a failed listing record, typically after a successful crawl.
	Delete(ctx context.Context, url string) error
}
