// internal/scrape/service.go
package scrape

import (
	"context"
	"time"

	"stayprice/internal/cache"
	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"
	"stayprice/internal/match"
	"stayprice/internal/models"
)

// Service is the scrape front door: dataset retrieval through the
// Parameter Cache and single-property resolution through the Entity
// Cache. Both tiers degrade to a fresh scrape on any cache trouble.
type Service struct {
	datasets     *cache.DatasetStore
	entities     *cache.EntityCache
	fetcher      PageFetcher
	orchestrator *Orchestrator
	resolver     *match.Resolver
	datasetTTL   time.Duration
	listingLimit int
	detailLimit  int
	logger       logger.Logger
	now          func() time.Time
}

// NewService wires the scrape service. datasetTTL is the default freshness
// window for cached datasets; listingLimit and detailLimit cap how much of
// a results page is kept and how many detail pages are fetched.
func NewService(
	datasets *cache.DatasetStore,
	entities *cache.EntityCache,
	fetcher PageFetcher,
	orchestrator *Orchestrator,
	resolver *match.Resolver,
	datasetTTL time.Duration,
	listingLimit, detailLimit int,
	log logger.Logger,
) *Service {
	return &Service{
		datasets:     datasets,
		entities:     entities,
		fetcher:      fetcher,
		orchestrator: orchestrator,
		resolver:     resolver,
		datasetTTL:   datasetTTL,
		listingLimit: listingLimit,
		detailLimit:  detailLimit,
		logger:       log.WithFields(map[string]interface{}{"component": "scrape-service"}),
		now:          time.Now,
	}
}

// GetDataset returns the dataset for the query, from cache when fresh
// enough, otherwise from a new scrape. Uses the service's default TTL.
func (s *Service) GetDataset(ctx context.Context, query models.SearchQuery) (*models.Dataset, error) {
	return s.GetDatasetWithTTL(ctx, query, s.datasetTTL)
}

// GetDatasetWithTTL is GetDataset with a caller-chosen freshness window.
// The dataset API's force-refetch path passes the configured refetch
// delay, a wider window than the pipeline's default.
func (s *Service) GetDatasetWithTTL(ctx context.Context, query models.SearchQuery, ttl time.Duration) (*models.Dataset, error) {
	query = s.normalizeQuery(query)

	if dataset, ok := s.datasets.Lookup(ctx, query, ttl); ok {
		s.logger.Info("dataset served from cache", map[string]interface{}{
			"query_key": query.Key(),
			"listings":  len(dataset.Listings),
		})
		return dataset, nil
	}

	dataset, err := s.scrape(ctx, query)
	if err != nil {
		return nil, err
	}

	// An empty result is cached like any other so the next run inside the
	// window does not repeat a search already known to be empty.
	if err := s.datasets.Store(ctx, dataset); err != nil {
		s.logger.Warn("dataset cache write failed, continuing uncached", map[string]interface{}{
			"query_key": query.Key(),
			"error":     err.Error(),
		})
	}
	return dataset, nil
}

// ResolveProperty finds one property by fuzzy name within the query's
// destination. A fresh Entity Cache hit skips scraping entirely; otherwise
// the dataset is fetched, the name resolved against its listings, and the
// winning pair cached for next time.
func (s *Service) ResolveProperty(ctx context.Context, name string, query models.SearchQuery) (*cache.EntityPayload, error) {
	query = s.normalizeQuery(query)
	identity := cache.EntityIdentity{Name: name, Adults: query.Adults, Rooms: query.Rooms}

	if payload, ok := s.entities.Lookup(ctx, identity); ok {
		return payload, nil
	}

	dataset, err := s.GetDataset(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(dataset.Listings) == 0 {
		return nil, commonerrors.NewNoCandidatesError(name)
	}

	names := make([]string, len(dataset.Listings))
	for i, l := range dataset.Listings {
		names[i] = l.Name
	}

	result := s.resolver.Resolve(name, names)
	if result.Best == nil {
		best := 0.0
		for _, c := range result.Scores {
			if c.Score > best {
				best = c.Score
			}
		}
		return nil, commonerrors.NewNoAcceptableMatchError(name, best)
	}

	listing := dataset.Listings[result.Best.Index]
	details := s.detailsFor(dataset, listing)
	if details == nil && listing.HotelLink != "" {
		fetched, err := s.fetcher.FetchDetails(ctx, listing.HotelLink)
		if err != nil {
			s.logger.Warn("detail fetch for resolved property failed", map[string]interface{}{
				"name":  listing.Name,
				"error": err.Error(),
			})
		} else {
			details = fetched
		}
	}

	payload := &cache.EntityPayload{Listing: listing}
	if details != nil {
		payload.Details = *details
	}

	if err := s.entities.Store(ctx, identity, payload.Listing, payload.Details); err != nil {
		s.logger.Warn("entity cache write failed, continuing uncached", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
	}
	return payload, nil
}

func (s *Service) scrape(ctx context.Context, query models.SearchQuery) (*models.Dataset, error) {
	listings, err := s.fetcher.SearchListings(ctx, query)
	if err != nil {
		return nil, err
	}
	if query.ListingLimit > 0 && len(listings) > query.ListingLimit {
		listings = listings[:query.ListingLimit]
	}

	urls := make([]string, 0, len(listings))
	for _, l := range listings {
		if l.HotelLink == "" {
			continue
		}
		urls = append(urls, l.HotelLink)
		if query.DetailLimit > 0 && len(urls) >= query.DetailLimit {
			break
		}
	}

	details := s.orchestrator.FetchDetails(ctx, urls)

	return &models.Dataset{
		Query:     query,
		Listings:  listings,
		Details:   details,
		ScrapedAt: s.now().UTC(),
	}, nil
}

// detailsFor returns the already-fetched details matching a listing, if the
// dataset batch happened to include them.
func (s *Service) detailsFor(dataset *models.Dataset, listing models.PropertyListing) *models.PropertyDetails {
	for i := range dataset.Details {
		if dataset.Details[i].URL == listing.HotelLink && listing.HotelLink != "" {
			return &dataset.Details[i]
		}
	}
	return nil
}

func (s *Service) normalizeQuery(query models.SearchQuery) models.SearchQuery {
	if query.ListingLimit <= 0 {
		query.ListingLimit = s.listingLimit
	}
	if query.DetailLimit <= 0 {
		query.DetailLimit = s.detailLimit
	}
	return query
}
