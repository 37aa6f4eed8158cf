// internal/scrape/service_test.go
package scrape

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stayprice/internal/cache"
	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"
	"stayprice/internal/match"
	"stayprice/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureFetcher serves a canned search result and detail pages keyed by URL.
type fixtureFetcher struct {
	listings      []models.PropertyListing
	details       map[string]*models.PropertyDetails
	searchErr     error
	searchCalls   int
	detailCalls   int
}

func (f *fixtureFetcher) SearchListings(ctx context.Context, query models.SearchQuery) ([]models.PropertyListing, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.listings, nil
}

func (f *fixtureFetcher) FetchDetails(ctx context.Context, url string) (*models.PropertyDetails, error) {
	f.detailCalls++
	if d, ok := f.details[url]; ok {
		return d, nil
	}
	return nil, commonerrors.NewFetchFailedError(url, errors.New("no fixture"))
}

func newTestResolver(t *testing.T) *match.Resolver {
	t.Helper()
	return match.NewResolver(0.5, 5, logger.NewNoOpLogger())
}

type serviceFixture struct {
	service *Service
	fetcher *fixtureFetcher
	mock    sqlmock.Sqlmock
	redis   *miniredis.Miniredis
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.NewNoOpLogger()
	fetcher := &fixtureFetcher{
		listings: []models.PropertyListing{
			{Name: "Ocean View Hotel", HotelLink: "https://x/ocean", DiscountedPrice: "$120"},
			{Name: "City Center Inn", HotelLink: "https://x/city", DiscountedPrice: "$85"},
		},
		details: map[string]*models.PropertyDetails{
			"https://x/ocean": {URL: "https://x/ocean", Name: "Ocean View Hotel", Description: "By the sea."},
			"https://x/city":  {URL: "https://x/city", Name: "City Center Inn"},
		},
	}

	service := NewService(
		cache.NewDatasetStore(db, log),
		cache.NewEntityCache(rdb, 24*time.Hour, log),
		fetcher,
		NewOrchestrator(fetcher, 2, "test", log),
		newTestResolver(t),
		24*time.Hour,
		25, 10,
		log,
	)

	return &serviceFixture{service: service, fetcher: fetcher, mock: mock, redis: mr}
}

func (fx *serviceFixture) expectDatasetMiss() {
	fx.mock.ExpectQuery("SELECT payload, stored_at FROM datasets").
		WillReturnError(sql.ErrNoRows)
}

func (fx *serviceFixture) expectDatasetStore() {
	fx.mock.ExpectExec("INSERT INTO datasets").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func (fx *serviceFixture) expectDatasetHit(t *testing.T, dataset *models.Dataset) {
	payload, err := json.Marshal(dataset)
	require.NoError(t, err)
	fx.mock.ExpectQuery("SELECT payload, stored_at FROM datasets").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "stored_at"}).
			AddRow(payload, time.Now().Add(-time.Hour)))
}

func TestService_GetDataset_MissScrapesAndStores(t *testing.T) {
	fx := newServiceFixture(t)
	fx.expectDatasetMiss()
	fx.expectDatasetStore()

	dataset, err := fx.service.GetDataset(context.Background(), models.SearchQuery{Destination: "Colombo", Adults: 2, Rooms: 1})
	require.NoError(t, err)

	assert.Len(t, dataset.Listings, 2)
	assert.Len(t, dataset.Details, 2)
	assert.Equal(t, 1, fx.fetcher.searchCalls)
	require.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestService_GetDataset_HitSkipsScrape(t *testing.T) {
	fx := newServiceFixture(t)
	cached := &models.Dataset{
		Query:    models.SearchQuery{Destination: "Colombo", Adults: 2, Rooms: 1, ListingLimit: 25, DetailLimit: 10},
		Listings: []models.PropertyListing{{Name: "Cached Hotel"}},
	}
	fx.expectDatasetHit(t, cached)

	dataset, err := fx.service.GetDataset(context.Background(), models.SearchQuery{Destination: "Colombo", Adults: 2, Rooms: 1})
	require.NoError(t, err)

	assert.Equal(t, "Cached Hotel", dataset.Listings[0].Name)
	assert.Equal(t, 0, fx.fetcher.searchCalls)
	require.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestService_GetDataset_SearchFailureSurfaces(t *testing.T) {
	fx := newServiceFixture(t)
	fx.fetcher.searchErr = commonerrors.NewFetchFailedError("https://x/search", errors.New("timeout"))
	fx.expectDatasetMiss()

	_, err := fx.service.GetDataset(context.Background(), models.SearchQuery{Destination: "Colombo", Adults: 2, Rooms: 1})
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeFetchFailed, commonerrors.CodeOf(err))
}

func TestService_GetDataset_StoreFailureIsNonFatal(t *testing.T) {
	fx := newServiceFixture(t)
	fx.expectDatasetMiss()
	fx.mock.ExpectExec("INSERT INTO datasets").WillReturnError(errors.New("disk full"))

	dataset, err := fx.service.GetDataset(context.Background(), models.SearchQuery{Destination: "Colombo", Adults: 2, Rooms: 1})
	require.NoError(t, err, "a cache write failure must not sink the scrape")
	assert.Len(t, dataset.Listings, 2)
}

func TestService_GetDataset_EmptyResultIsCached(t *testing.T) {
	fx := newServiceFixture(t)
	fx.fetcher.listings = nil
	fx.expectDatasetMiss()
	fx.expectDatasetStore()

	dataset, err := fx.service.GetDataset(context.Background(), models.SearchQuery{Destination: "Nowhere", Adults: 2, Rooms: 1})
	require.NoError(t, err)
	assert.True(t, dataset.Empty())
	require.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestService_ResolveProperty_MatchesAndCaches(t *testing.T) {
	fx := newServiceFixture(t)
	fx.expectDatasetMiss()
	fx.expectDatasetStore()
	ctx := context.Background()
	query := models.SearchQuery{Destination: "Colombo", Adults: 2, Rooms: 1}

	payload, err := fx.service.ResolveProperty(ctx, "ocean view", query)
	require.NoError(t, err)
	assert.Equal(t, "Ocean View Hotel", payload.Listing.Name)
	assert.Equal(t, "By the sea.", payload.Details.Description)

	// Second resolution hits the entity cache: no new scrape traffic.
	searchCalls := fx.fetcher.searchCalls
	payload2, err := fx.service.ResolveProperty(ctx, "ocean view", query)
	require.NoError(t, err)
	assert.Equal(t, payload.Listing.Name, payload2.Listing.Name)
	assert.Equal(t, searchCalls, fx.fetcher.searchCalls)
}

func TestService_ResolveProperty_NoAcceptableMatch(t *testing.T) {
	fx := newServiceFixture(t)
	fx.expectDatasetMiss()
	fx.expectDatasetStore()

	_, err := fx.service.ResolveProperty(context.Background(), "Zzzzz Qqqqq", models.SearchQuery{Destination: "Colombo", Adults: 2, Rooms: 1})
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeNoAcceptableMatch, commonerrors.CodeOf(err))
}

func TestService_ResolveProperty_NoCandidates(t *testing.T) {
	fx := newServiceFixture(t)
	fx.fetcher.listings = nil
	fx.expectDatasetMiss()
	fx.expectDatasetStore()

	_, err := fx.service.ResolveProperty(context.Background(), "anything", models.SearchQuery{Destination: "Nowhere", Adults: 2, Rooms: 1})
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeNoCandidates, commonerrors.CodeOf(err))
}
