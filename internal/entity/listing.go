package entity

import "time"

// Listing mirrors the `listings` table. A listing is written once and never
// updated by the crawler; IsDuplicate is only set by the content dedup pass.
type Listing struct {
	ID           int64
	Title        string
	Body         string
	RegionID     int64
	DiscoveredAt time.Time
	Fingerprint  string
	URL          string
	BusinessID   string // optional external business identifier
	Source       string // optional source-site label
	CompanyURL   string // optional origin company URL
	IsDuplicate  bool
}

// ListingEntry is one row of a result page, as reported by a site adapter.
type ListingEntry struct {
	Title      string
	URL        string
	CompanyURL string
}

// Extraction is what a site adapter pulls out of a listing page.
type Extraction struct {
	Body       string
	BusinessID string
	Fields     map[string]string
}
