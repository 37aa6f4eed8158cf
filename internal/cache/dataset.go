// internal/cache/dataset.go
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"
	"stayprice/internal/common/metrics"
	"stayprice/internal/models"
)

const datasetSchema = `
CREATE TABLE IF NOT EXISTS datasets (
	query_key  TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	stored_at  TIMESTAMPTZ NOT NULL
)`

// DatasetStore is the per-query cache tier, backed by Postgres. A lookup is
// TTL-gated on the stored_at column; any database or decode error degrades
// to a miss so the pipeline falls through to a fresh scrape. Stale rows are
// left in place, the next Store for the same key overwrites them.
type DatasetStore struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

// NewDatasetStore creates a dataset store on the given connection.
func NewDatasetStore(db *sql.DB, log logger.Logger) *DatasetStore {
	return &DatasetStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "dataset-store"}),
		now:    time.Now,
	}
}

// EnsureSchema creates the datasets table if it does not exist yet.
func (s *DatasetStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, datasetSchema); err != nil {
		return fmt.Errorf("create datasets table: %w", err)
	}
	return nil
}

// Lookup returns the cached dataset for the query if one exists and is
// younger than ttl. An empty dataset is a valid hit: emptiness was the
// scrape's answer and re-scraping within the window would repeat it.
func (s *DatasetStore) Lookup(ctx context.Context, query models.SearchQuery, ttl time.Duration) (*models.Dataset, bool) {
	key := query.Key()

	var payload []byte
	var storedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, stored_at FROM datasets WHERE query_key = $1",
		key,
	).Scan(&payload, &storedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("dataset lookup failed, treating as miss", map[string]interface{}{
				"query_key": key,
				"error":     err.Error(),
			})
		}
		metrics.CacheLookups.WithLabelValues("dataset", "miss").Inc()
		return nil, false
	}

	if s.now().Sub(storedAt) > ttl {
		metrics.CacheLookups.WithLabelValues("dataset", "stale").Inc()
		return nil, false
	}

	var dataset models.Dataset
	if err := json.Unmarshal(payload, &dataset); err != nil {
		s.logger.Warn("dataset payload corrupt, treating as miss", map[string]interface{}{
			"query_key": key,
			"error":     err.Error(),
		})
		metrics.CacheLookups.WithLabelValues("dataset", "miss").Inc()
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("dataset", "hit").Inc()
	return &dataset, true
}

// StoredConfig describes one cached dataset row without its payload.
type StoredConfig struct {
	QueryKey string    `json:"query_key"`
	StoredAt time.Time `json:"stored_at"`
}

// ListConfigs returns every cached dataset's key and age, newest first.
func (s *DatasetStore) ListConfigs(ctx context.Context) ([]StoredConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT query_key, stored_at FROM datasets ORDER BY stored_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list dataset configs: %w", err)
	}
	defer rows.Close()

	var configs []StoredConfig
	for rows.Next() {
		var c StoredConfig
		if err := rows.Scan(&c.QueryKey, &c.StoredAt); err != nil {
			return nil, fmt.Errorf("scan dataset config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dataset configs: %w", err)
	}
	return configs, nil
}

// Store upserts the dataset under its query key with a fresh stored_at.
// Empty datasets are stored like any other so the miss window still holds.
func (s *DatasetStore) Store(ctx context.Context, dataset *models.Dataset) error {
	payload, err := json.Marshal(dataset)
	if err != nil {
		return commonerrors.NewCacheWriteFailedError("dataset", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO datasets (query_key, payload, stored_at) VALUES ($1, $2, $3)
		 ON CONFLICT (query_key) DO UPDATE SET payload = EXCLUDED.payload, stored_at = EXCLUDED.stored_at`,
		dataset.Query.Key(), payload, s.now(),
	)
	if err != nil {
		return commonerrors.NewCacheWriteFailedError("dataset", err)
	}
	return nil
}
