package repository

import (
	"context"

	"github.com/user/jobcrawler/internal/entity"
)

// SiteAdapter isolates everything specific to one job site. The crawl
// orchestrator navigates tabs and calls these methods; it never branches on
// the site itself.
type SiteAdapter interface {
	// Name identifies the adapter in logs and metrics.
	Name() string
	// Source is the label stored on every listing, may be empty.
	Source() string
	// Regions returns the ordered list of regions to crawl.
	Regions() []entity.Region
	// PageURL formats the URL of result page pageIndex (1-based) of a region.
	PageURL(region entity.Region, pageIndex int) string
	// PageCount reads the number of result pages from a tab showing page 1.
	PageCount(ctx context.Context, tab Tab) (int, error)
	// Entries lists the listings shown on the result page loaded in tab.
	Entries(ctx context.Context, tab Tab) ([]entity.ListingEntry, error)
	// Extract reads a listing page loaded in tab.
	Extract(ctx context.Context, tab Tab, entry entity.ListingEntry) (entity.Extraction, error)
}
