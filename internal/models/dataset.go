// internal/models/dataset.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// SearchQuery identifies one dataset: the search parameters a scrape run was
// keyed on. It is the Parameter Cache key.
type SearchQuery struct {
	Destination  string `json:"destination"`
	Adults       int    `json:"adults"`
	Rooms        int    `json:"rooms"`
	ListingLimit int    `json:"listing_limit"`
	DetailLimit  int    `json:"detail_limit"`
}

// Key returns the deterministic string form used as the cache key.
func (q SearchQuery) Key() string {
	dest := strings.ToLower(strings.TrimSpace(q.Destination))
	return fmt.Sprintf("%s_%d_%d_%d_%d", dest, q.Adults, q.Rooms, q.ListingLimit, q.DetailLimit)
}

// Dataset is one scraped batch: the listings from the results page plus the
// per-property details fetched concurrently. An empty dataset is a valid,
// cacheable outcome.
type Dataset struct {
	Query     SearchQuery       `json:"query"`
	Listings  []PropertyListing `json:"listings"`
	Details   []PropertyDetails `json:"details"`
	ScrapedAt time.Time         `json:"scraped_at"`
}

// Empty reports whether the dataset carries no samples at all.
func (d *Dataset) Empty() bool {
	return len(d.Listings) == 0 && len(d.Details) == 0
}
