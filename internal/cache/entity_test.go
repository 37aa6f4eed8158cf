// internal/cache/entity_test.go
package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"stayprice/internal/common/logger"
	"stayprice/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntityCache(t *testing.T, maxAge time.Duration) (*EntityCache, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := NewEntityCache(rdb, maxAge, logger.NewNoOpLogger())
	cache.now = func() time.Time { return now }

	return cache, mr, &now
}

func TestEntityIdentity_KeyNormalizesName(t *testing.T) {
	a := EntityIdentity{Name: "  Ocean View Hotel ", Adults: 2, Rooms: 1}
	b := EntityIdentity{Name: "ocean view hotel", Adults: 2, Rooms: 1}
	c := EntityIdentity{Name: "ocean view hotel", Adults: 3, Rooms: 1}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestEntityCache_StoreAndLookup(t *testing.T) {
	cache, _, _ := newTestEntityCache(t, 24*time.Hour)
	ctx := context.Background()

	id := EntityIdentity{Name: "Ocean View Hotel", Adults: 2, Rooms: 1}
	listing := models.PropertyListing{Name: "Ocean View Hotel", DiscountedPrice: "$120"}
	details := models.PropertyDetails{Name: "Ocean View Hotel", Description: "By the sea."}

	require.NoError(t, cache.Store(ctx, id, listing, details))

	got, ok := cache.Lookup(ctx, id)
	require.True(t, ok)
	assert.Equal(t, listing, got.Listing)
	assert.Equal(t, details, got.Details)
}

func TestEntityCache_MissOnUnknownIdentity(t *testing.T) {
	cache, _, _ := newTestEntityCache(t, 24*time.Hour)

	got, ok := cache.Lookup(context.Background(), EntityIdentity{Name: "nowhere", Adults: 2, Rooms: 1})
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestEntityCache_StaleEntryIsDeletedOnRead(t *testing.T) {
	cache, mr, now := newTestEntityCache(t, 24*time.Hour)
	ctx := context.Background()

	id := EntityIdentity{Name: "Ocean View Hotel", Adults: 2, Rooms: 1}
	require.NoError(t, cache.Store(ctx, id, models.PropertyListing{Name: "Ocean View Hotel"}, models.PropertyDetails{}))

	*now = now.Add(25 * time.Hour)

	got, ok := cache.Lookup(ctx, id)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(id.Key()), "stale entry must be pruned on read")
}

func TestEntityCache_RefreshOverwritesTimestamp(t *testing.T) {
	cache, _, now := newTestEntityCache(t, 24*time.Hour)
	ctx := context.Background()

	id := EntityIdentity{Name: "Ocean View Hotel", Adults: 2, Rooms: 1}
	require.NoError(t, cache.Store(ctx, id, models.PropertyListing{Name: "v1"}, models.PropertyDetails{}))

	*now = now.Add(23 * time.Hour)
	require.NoError(t, cache.Store(ctx, id, models.PropertyListing{Name: "v2"}, models.PropertyDetails{}))

	*now = now.Add(23 * time.Hour)

	got, ok := cache.Lookup(ctx, id)
	require.True(t, ok, "refreshed entry must be fresh relative to its new timestamp")
	assert.Equal(t, "v2", got.Listing.Name)
}

func TestEntityCache_CorruptEntryIsMiss(t *testing.T) {
	cache, mr, _ := newTestEntityCache(t, 24*time.Hour)

	id := EntityIdentity{Name: "Ocean View Hotel", Adults: 2, Rooms: 1}
	require.NoError(t, mr.Set(id.Key(), "{not json"))

	got, ok := cache.Lookup(context.Background(), id)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestEntityCache_ClearExpired(t *testing.T) {
	cache, mr, now := newTestEntityCache(t, 24*time.Hour)
	ctx := context.Background()

	fresh := EntityIdentity{Name: "fresh", Adults: 2, Rooms: 1}
	old1 := EntityIdentity{Name: "old one", Adults: 2, Rooms: 1}
	old2 := EntityIdentity{Name: "old two", Adults: 2, Rooms: 1}

	require.NoError(t, cache.Store(ctx, old1, models.PropertyListing{Name: "old one"}, models.PropertyDetails{}))
	require.NoError(t, cache.Store(ctx, old2, models.PropertyListing{Name: "old two"}, models.PropertyDetails{}))

	*now = now.Add(48 * time.Hour)
	require.NoError(t, cache.Store(ctx, fresh, models.PropertyListing{Name: "fresh"}, models.PropertyDetails{}))

	// Corrupt entries are skipped, never counted, never deleted.
	require.NoError(t, mr.Set(entityKeyPrefix+"corrupt", "{not json"))

	removed, err := cache.ClearExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.False(t, mr.Exists(old1.Key()))
	assert.False(t, mr.Exists(old2.Key()))
	assert.True(t, mr.Exists(fresh.Key()))
	assert.True(t, mr.Exists(entityKeyPrefix+"corrupt"))
}

func TestEntityCache_ReadErrorDegradesToMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache := NewEntityCache(rdb, 24*time.Hour, logger.NewNoOpLogger())

	id := EntityIdentity{Name: "Ocean View Hotel", Adults: 2, Rooms: 1}
	mock.ExpectGet(id.Key()).SetErr(errors.New("connection reset"))

	got, ok := cache.Lookup(context.Background(), id)
	assert.False(t, ok)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityCache_ClearExpired_EmptyCache(t *testing.T) {
	cache, _, _ := newTestEntityCache(t, 24*time.Hour)

	removed, err := cache.ClearExpired(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
