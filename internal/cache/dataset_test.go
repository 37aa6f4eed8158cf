// internal/cache/dataset_test.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stayprice/internal/common/logger"
	"stayprice/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatasetStore(t *testing.T) (*DatasetStore, sqlmock.Sqlmock, *time.Time) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewDatasetStore(db, logger.NewNoOpLogger())
	store.now = func() time.Time { return now }

	return store, mock, &now
}

func testDataset() *models.Dataset {
	return &models.Dataset{
		Query: models.SearchQuery{Destination: "Colombo", Adults: 2, Rooms: 1, ListingLimit: 25, DetailLimit: 10},
		Listings: []models.PropertyListing{
			{Name: "Ocean View Hotel", DiscountedPrice: "$120"},
		},
		ScrapedAt: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestDatasetStore_LookupHit(t *testing.T) {
	store, mock, now := newTestDatasetStore(t)
	dataset := testDataset()
	payload, err := json.Marshal(dataset)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload, stored_at FROM datasets").
		WithArgs(dataset.Query.Key()).
		WillReturnRows(sqlmock.NewRows([]string{"payload", "stored_at"}).
			AddRow(payload, now.Add(-1*time.Hour)))

	got, ok := store.Lookup(context.Background(), dataset.Query, 24*time.Hour)
	require.True(t, ok)
	assert.Equal(t, dataset.Listings, got.Listings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_LookupStale(t *testing.T) {
	store, mock, now := newTestDatasetStore(t)
	dataset := testDataset()
	payload, err := json.Marshal(dataset)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload, stored_at FROM datasets").
		WithArgs(dataset.Query.Key()).
		WillReturnRows(sqlmock.NewRows([]string{"payload", "stored_at"}).
			AddRow(payload, now.Add(-25*time.Hour)))

	got, ok := store.Lookup(context.Background(), dataset.Query, 24*time.Hour)
	assert.False(t, ok)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_LookupMissOnNoRows(t *testing.T) {
	store, mock, _ := newTestDatasetStore(t)
	query := testDataset().Query

	mock.ExpectQuery("SELECT payload, stored_at FROM datasets").
		WithArgs(query.Key()).
		WillReturnRows(sqlmock.NewRows([]string{"payload", "stored_at"}))

	got, ok := store.Lookup(context.Background(), query, 24*time.Hour)
	assert.False(t, ok)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_LookupDegradesOnQueryError(t *testing.T) {
	store, mock, _ := newTestDatasetStore(t)
	query := testDataset().Query

	mock.ExpectQuery("SELECT payload, stored_at FROM datasets").
		WithArgs(query.Key()).
		WillReturnError(errors.New("connection refused"))

	got, ok := store.Lookup(context.Background(), query, 24*time.Hour)
	assert.False(t, ok)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_LookupDegradesOnCorruptPayload(t *testing.T) {
	store, mock, now := newTestDatasetStore(t)
	query := testDataset().Query

	mock.ExpectQuery("SELECT payload, stored_at FROM datasets").
		WithArgs(query.Key()).
		WillReturnRows(sqlmock.NewRows([]string{"payload", "stored_at"}).
			AddRow([]byte("{not json"), now.Add(-1*time.Hour)))

	got, ok := store.Lookup(context.Background(), query, 24*time.Hour)
	assert.False(t, ok)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_StoreUpserts(t *testing.T) {
	store, mock, now := newTestDatasetStore(t)
	dataset := testDataset()
	payload, err := json.Marshal(dataset)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO datasets").
		WithArgs(dataset.Query.Key(), payload, *now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Store(context.Background(), dataset))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_StoreEmptyDataset(t *testing.T) {
	store, mock, now := newTestDatasetStore(t)
	dataset := &models.Dataset{
		Query:     models.SearchQuery{Destination: "Nowhere", Adults: 2, Rooms: 1},
		ScrapedAt: *now,
	}
	payload, err := json.Marshal(dataset)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO datasets").
		WithArgs(dataset.Query.Key(), payload, *now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Store(context.Background(), dataset))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_StoreSurfacesWriteError(t *testing.T) {
	store, mock, _ := newTestDatasetStore(t)
	dataset := testDataset()

	mock.ExpectExec("INSERT INTO datasets").
		WillReturnError(errors.New("disk full"))

	err := store.Store(context.Background(), dataset)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_ListConfigs(t *testing.T) {
	store, mock, now := newTestDatasetStore(t)

	mock.ExpectQuery("SELECT query_key, stored_at FROM datasets ORDER BY stored_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"query_key", "stored_at"}).
			AddRow("colombo_2_1_25_10", *now).
			AddRow("galle_2_1_25_10", now.Add(-2*time.Hour)))

	configs, err := store.ListConfigs(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "colombo_2_1_25_10", configs[0].QueryKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_EnsureSchema(t *testing.T) {
	store, mock, _ := newTestDatasetStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS datasets").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
