package sqlite

import (
	"context"
	"database/sql"

	"github.com/user/jobcrawler/internal/entity"
)

// FailedListingRepoImpl implements repository.FailedListingRepository on SQLite.
type FailedListingRepoImpl struct {
	db *sql.DB
}

func NewFailedListingRepo(db *sql.DB) *FailedListingRepoImpl {
	return &FailedListingRepoImpl{db: db}
}

func (r *FailedListingRepoImpl) SaveOrUpdate(ctx context.Context, f *entity.FailedListing) error {
	query := `
		INSERT INTO failed_listings (url, fingerprint, failure_reason, attempts, last_attempt_timestamp)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (url) DO UPDATE SET
			failure_reason = excluded.failure_reason,
			last_attempt_timestamp = excluded.last_attempt_timestamp,
			attempts = failed_listings.attempts + 1;
	`
	_, err := r.db.ExecContext(ctx, query, f.URL, f.Fingerprint, f.FailureReason, f.LastAttemptTimestamp.UTC())
	return err
}

func (r *FailedListingRepoImpl) FindRecent(ctx context.Context, limit int) ([]*entity.FailedListing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, fingerprint, failure_reason, attempts, last_attempt_timestamp
		FROM failed_listings
		ORDER BY last_attempt_timestamp DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failed []*entity.FailedListing
	for rows.Next() {
		var f entity.FailedListing
		if err := rows.Scan(&f.ID, &f.URL, &f.Fingerprint, &f.FailureReason, &f.Attempts, &f.LastAttemptTimestamp); err != nil {
			return nil, err
		}
		failed = append(failed, &f)
	}
	return failed, rows.Err()
}

func (r *FailedListingRepoImpl) Delete(ctx context.Context, url string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_listings WHERE url = ?;`, url)
	return err
}
