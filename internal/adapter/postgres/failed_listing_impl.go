package postgres

import (
	"context"

	"github.com/user/jobcrawler/internal/entity"
)

// FailedListingRepoImpl provides a concrete implementation for the FailedListingRepository interface using PostgreSQL.
type FailedListingRepoImpl struct {
	c *Connector
}

// NewFailedListingRepo creates a new instance of FailedListingRepoImpl.
func NewFailedListingRepo(c *Connector) *FailedListingRepoImpl {
	return &FailedListingRepoImpl{c: c}
}

// SaveOrUpdate creates or updates a record for a failed listing.
// It increments the attempt counter on conflict.
func (r *FailedListingRepoImpl) SaveOrUpdate(ctx context.Context, f *entity.FailedListing) error {
	query := `
		INSERT INTO failed_listings (url, fingerprint, failure_reason, attempts, last_attempt_timestamp)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (url) DO UPDATE SET
			failure_reason = EXCLUDED.failure_reason,
			last_attempt_timestamp = EXCLUDED.last_attempt_timestamp,
			attempts = failed_listings.attempts + 1;
	`
	return r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
		_, err := conn.Exec(ctx, query, f.URL, f.Fingerprint, f.FailureReason, f.LastAttemptTimestamp)
		return err
	})
}

// FindRecent retrieves the most recently failed listings.
func (r *FailedListingRepoImpl) FindRecent(ctx context.Context, limit int) ([]*entity.FailedListing, error) {
	query := `
		SELECT id, url, fingerprint, failure_reason, attempts, last_attempt_timestamp
		FROM failed_listings
		ORDER BY last_attempt_timestamp DESC
		LIMIT $1;
	`
	var failed []*entity.FailedListing
	err := r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
		rows, err := conn.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var f entity.FailedListing
			if err := rows.Scan(
				&f.ID,
				&f.URL,
				&f.Fingerprint,
				&f.FailureReason,
				&f.Attempts,
				&f.LastAttemptTimestamp,
			); err != nil {
				return err
			}
			failed = append(failed, &f)
		}
		return rows.Err()
	})
	return failed, err
}

// Delete removes a failed listing record, typically after a successful crawl.
func (r *FailedListingRepoImpl) Delete(ctx context.Context, url string) error {
	return r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
		_, err := conn.Exec(ctx, `DELETE FROM failed_listings WHERE url = $1;`, url)
		return err
	})
}
