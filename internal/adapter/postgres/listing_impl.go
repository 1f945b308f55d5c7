package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/jobcrawler/internal/entity"
)

// ListingRepoImpl provides a concrete implementation for the ListingRepository interface using PostgreSQL.
type ListingRepoImpl struct {
	c *Connector
}

// NewListingRepo creates a new instance of ListingRepoImpl.
func NewListingRepo(c *Connector) *ListingRepoImpl {
	return &ListingRepoImpl{c: c}
}

// EnsureSchema creates the crawler tables if they do not exist.
func (r *ListingRepoImpl) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		err := r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
			_, err := conn.Exec(ctx, stmt)
			return err
		})
		if err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ResolveRegionID returns the id of the named region, inserting it first if needed.
// The no-op update makes RETURNING yield the existing row on conflict.
func (r *ListingRepoImpl) ResolveRegionID(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO regions (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id;
	`
	var id int64
	err := r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
		return conn.QueryRow(ctx, query, name).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("resolve region %q: %w", name, err)
	}
	return id, nil
}

// ChecksumExists reports whether a listing with the fingerprint is stored.
func (r *ListingRepoImpl) ChecksumExists(ctx context.Context, fingerprint string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM listings WHERE fingerprint = $1);`
	var exists bool
	err := r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
		return conn.QueryRow(ctx, query, fingerprint).Scan(&exists)
	})
	return exists, err
}

// ListAllChecksums returns every stored fingerprint.
func (r *ListingRepoImpl) ListAllChecksums(ctx context.Context) (map[string]struct{}, error) {
	var fingerprints []string
	err := r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
		rows, err := conn.Query(ctx, `SELECT fingerprint FROM listings;`)
		if err != nil {
			return err
		}
		fingerprints, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		set[fp] = struct{}{}
	}
	return set, nil
}

// InsertRecord stores a listing unless its fingerprint is already present.
func (r *ListingRepoImpl) InsertRecord(ctx context.Context, l *entity.Listing) (bool, error) {
	query := `
		INSERT INTO listings (title, body, region_id, discovered_at, fingerprint, url, business_id, source, company_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (fingerprint) DO NOTHING;
	`
	var inserted bool
	err := r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
		tag, err := conn.Exec(ctx, query,
			l.Title,
			l.Body,
			l.RegionID,
			l.DiscoveredAt,
			l.Fingerprint,
			l.URL,
			nullable(l.BusinessID),
			nullable(l.Source),
			nullable(l.CompanyURL),
		)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	return inserted, err
}

// MarkContentDuplicates flags every listing that repeats the title, body and
// discovery date of an older one. Listings without a body are left alone.
func (r *ListingRepoImpl) MarkContentDuplicates(ctx context.Context) (int64, error) {
	query := `
		UPDATE listings l SET is_duplicate = TRUE
		FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY title, md5(body), discovered_at::date
				ORDER BY id
			) AS rn
			FROM listings
			WHERE body <> ''
		) d
		WHERE l.id = d.id AND d.rn > 1 AND NOT l.is_duplicate;
	`
	var flagged int64
	err := r.c.Do(ctx, func(ctx context.Context, conn Conn) error {
		tag, err := conn.Exec(ctx, query)
		if err != nil {
			return err
		}
		flagged = tag.RowsAffected()
		return nil
	})
	return flagged, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
