// internal/scrape/fetcher.go
package scrape

import (
	"context"

	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/models"
)

// PageFetcher retrieves pages from a booking site and returns them as raw
// models. Implementations own transport details; callers only see parsed
// structures or an error.
type PageFetcher interface {
	// SearchListings runs a destination search and returns the result cards.
	SearchListings(ctx context.Context, query models.SearchQuery) ([]models.PropertyListing, error)
	// FetchDetails retrieves one property detail page.
	FetchDetails(ctx context.Context, url string) (*models.PropertyDetails, error)
}

// SessionPool bounds how many scrape sessions exist at once. Every fetch
// holds a slot for its whole duration; release is the holder's job on all
// paths.
type SessionPool struct {
	slots chan struct{}
}

// NewSessionPool creates a pool of the given size.
func NewSessionPool(size int) *SessionPool {
	if size < 1 {
		size = 1
	}
	return &SessionPool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or the context ends.
func (p *SessionPool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return commonerrors.NewSessionExhaustedError(ctx.Err())
	}
}

// Release returns a slot to the pool.
func (p *SessionPool) Release() {
	select {
	case <-p.slots:
	default:
	}
}

// InUse reports how many slots are currently held.
func (p *SessionPool) InUse() int {
	return len(p.slots)
}
