package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/user/jobcrawler/internal/entity"
)

// ListingRepoImpl implements repository.ListingRepository on SQLite.
type ListingRepoImpl struct {
	db *sql.DB
}

func NewListingRepo(db *sql.DB) *ListingRepoImpl {
	return &ListingRepoImpl{db: db}
}

func (r *ListingRepoImpl) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *ListingRepoImpl) ResolveRegionID(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO regions (name) VALUES (?)
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING id;
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve region %q: %w", name, err)
	}
	return id, nil
}

func (r *ListingRepoImpl) ChecksumExists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE fingerprint = ?);`, fingerprint,
	).Scan(&exists)
	return exists, err
}

func (r *ListingRepoImpl) ListAllChecksums(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT fingerprint FROM listings;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		set[fp] = struct{}{}
	}
	return set, rows.Err()
}

func (r *ListingRepoImpl) InsertRecord(ctx context.Context, l *entity.Listing) (bool, error) {
	query := `
		INSERT INTO listings (title, body, region_id, discovered_at, fingerprint, url, business_id, source, company_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query,
		l.Title,
		l.Body,
		l.RegionID,
		l.DiscoveredAt.UTC(),
		l.Fingerprint,
		l.URL,
		nullable(l.BusinessID),
		nullable(l.Source),
		nullable(l.CompanyURL),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkContentDuplicates flags listings repeating the title, body and
// discovery day of an older listing.
func (r *ListingRepoImpl) MarkContentDuplicates(ctx context.Context) (int64, error) {
	query := `
		UPDATE listings SET is_duplicate = 1
		WHERE is_duplicate = 0 AND id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY title, body, substr(discovered_at, 1, 10)
					ORDER BY id
				) AS rn
				FROM listings
				WHERE body <> ''
			) WHERE rn > 1
		);
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
