// internal/cache/entity.go
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stayprice/internal/common/logger"
	"stayprice/internal/common/metrics"
	"stayprice/internal/models"

	"github.com/redis/go-redis/v9"
)

const entityKeyPrefix = "entity:"

// safetyTTL is a generous redis-level expiry so entries abandoned between
// sweeps cannot leak forever. Logical expiry is always the cached_at check.
const safetyTTL = 7 * 24 * time.Hour

// EntityIdentity is the fuzzy identity a single property is cached under.
// Name is case-folded and trimmed before hashing so formatting differences
// collapse to the same key.
type EntityIdentity struct {
	Name   string
	Adults int
	Rooms  int
}

// Key returns the hashed cache key for this identity.
func (id EntityIdentity) Key() string {
	normalized := fmt.Sprintf("%s_%d_%d", strings.ToLower(strings.TrimSpace(id.Name)), id.Adults, id.Rooms)
	sum := md5.Sum([]byte(normalized))
	return entityKeyPrefix + hex.EncodeToString(sum[:])
}

// EntityPayload is what the cache stores per property: the result-card
// listing plus the detail-page fields.
type EntityPayload struct {
	Listing models.PropertyListing `json:"listing"`
	Details models.PropertyDetails `json:"details"`
}

type entityEnvelope struct {
	CachedAt time.Time              `json:"cached_at"`
	Listing  models.PropertyListing `json:"listing"`
	Details  models.PropertyDetails `json:"details"`
}

// EntityCache is the per-property cache tier. Reads never fail: any redis
// or decode error degrades to a miss. Expired entries are deleted on read;
// entity entries are small and numerous, so pruning keeps storage bounded.
type EntityCache struct {
	rdb    *redis.Client
	maxAge time.Duration
	logger logger.Logger
	now    func() time.Time
}

// NewEntityCache creates an entity cache with the given default max age.
func NewEntityCache(rdb *redis.Client, maxAge time.Duration, log logger.Logger) *EntityCache {
	return &EntityCache{
		rdb:    rdb,
		maxAge: maxAge,
		logger: log.WithFields(map[string]interface{}{"component": "entity-cache"}),
		now:    time.Now,
	}
}

// Lookup returns the cached payload for the identity if one exists and is
// younger than the cache's max age. A stale entry is deleted before the
// miss is reported.
func (c *EntityCache) Lookup(ctx context.Context, id EntityIdentity) (*EntityPayload, bool) {
	key := id.Key()

	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("entity cache read failed, treating as miss", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		metrics.CacheLookups.WithLabelValues("entity", "miss").Inc()
		return nil, false
	}

	var envelope entityEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		c.logger.Warn("entity cache entry corrupt, treating as miss", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		metrics.CacheLookups.WithLabelValues("entity", "miss").Inc()
		return nil, false
	}

	age := c.now().Sub(envelope.CachedAt)
	if age > c.maxAge {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("failed to prune expired entity entry", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		metrics.CacheLookups.WithLabelValues("entity", "stale").Inc()
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("entity", "hit").Inc()
	return &EntityPayload{Listing: envelope.Listing, Details: envelope.Details}, true
}

// Store upserts the payload under the identity with a fresh timestamp.
// Entries are never mutated in place; a refresh is a full overwrite.
func (c *EntityCache) Store(ctx context.Context, id EntityIdentity, listing models.PropertyListing, details models.PropertyDetails) error {
	envelope := entityEnvelope{
		CachedAt: c.now(),
		Listing:  listing,
		Details:  details,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal entity entry: %w", err)
	}

	if err := c.rdb.Set(ctx, id.Key(), data, safetyTTL).Err(); err != nil {
		return fmt.Errorf("store entity entry: %w", err)
	}
	return nil
}

// ClearExpired sweeps every entity entry and removes the ones older than
// maxAge, returning the number removed. Corrupt entries are logged and
// skipped; the sweep never aborts part-way.
func (c *EntityCache) ClearExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	removed := 0
	cutoff := c.now().Add(-maxAge)

	iter := c.rdb.Scan(ctx, 0, entityKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		raw, err := c.rdb.Get(ctx, key).Result()
		if err != nil {
			if err != redis.Nil {
				c.logger.Warn("sweep could not read entry, skipping", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
			}
			continue
		}

		var envelope entityEnvelope
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			c.logger.Warn("sweep found corrupt entry, skipping", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}

		if envelope.CachedAt.Before(cutoff) {
			if err := c.rdb.Del(ctx, key).Err(); err != nil {
				c.logger.Warn("sweep failed to delete expired entry", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
				continue
			}
			removed++
			metrics.CacheEntriesSwept.Inc()
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("entity cache sweep: %w", err)
	}

	if removed > 0 {
		c.logger.Info("cleared expired entity entries", map[string]interface{}{
			"removed": removed,
		})
	}
	return removed, nil
}
