package repository

import (
	"context"

	"github.com/user/jobcrawler/internal/entity"
)

// ChecksumRepository answers fingerprint lookups for the checksum cache.
type ChecksumRepository interface {
	// ChecksumExists reports whether a listing with this fingerprint is stored.
	ChecksumExists(ctx context.Context, fingerprint string) (bool, error)
	// ListAllChecksums returns every stored fingerprint.
	ListAllChecksums(ctx context.Context) (map[string]struct{}, error)
}

// ListingRepository defines the durable store the crawler writes into.
type ListingRepository interface {
	ChecksumRepository

	// EnsureSchema creates the regions and listings tables if absent.
	EnsureSchema(ctx context.Context) error
	// ResolveRegionID returns the id of the named region, creating it if needed.
	// Concurrent calls for the same name return the same id.
	ResolveRegionID(ctx context.Context, name string) (int64, error)
	// InsertRecord stores a listing unless its fingerprint already exists.
	// It reports whether a row was written; an existing fingerprint is not an error.
	InsertRecord(ctx context.Context, listing *entity.Listing) (bool, error)
}

// DuplicateMarker flags listings whose content duplicates an earlier one.
type DuplicateMarker interface {
	MarkContentDuplicates(ctx context.Context) (int64, error)
}
