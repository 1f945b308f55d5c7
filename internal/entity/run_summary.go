package entity

import "time"

// RunSummary is reported at the end of a crawl run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Site         string        `json:"site"`
	Inserted     int64         `json:"inserted"`
	Existing     int64         `json:"existing"`
	Errors       int64         `json:"errors"`
	Skipped      int64         `json:"skipped"`
	PageErrors   int64         `json:"page_errors"`
	RegionErrors int64         `json:"region_errors"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Running      bool          `json:"running"`
}
