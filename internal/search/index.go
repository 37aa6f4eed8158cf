// internal/search/index.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"
	"stayprice/internal/models"
	"stayprice/internal/normalize"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// ListingDocument is the shape indexed per scraped listing. Raw strings go
// through the normalizers once, at index time, so queries never parse.
type ListingDocument struct {
	Name                 string    `json:"name"`
	Destination          string    `json:"destination"`
	Price                *float64  `json:"price,omitempty"`
	Currency             string    `json:"currency,omitempty"`
	DistanceFromDowntown *float64  `json:"distance_from_downtown_km,omitempty"`
	DistanceFromBeach    *float64  `json:"distance_from_beach_km,omitempty"`
	GuestRating          *float64  `json:"guest_rating,omitempty"`
	ReviewCount          *float64  `json:"review_count,omitempty"`
	HotelLink            string    `json:"hotel_link,omitempty"`
	RunID                string    `json:"run_id"`
	ScrapedAt            time.Time `json:"scraped_at"`
}

// Indexer writes scraped datasets into the listing index for ad hoc
// inspection and dashboarding. Indexing is best effort per document; a
// batch reports the first failure after attempting every listing.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

// NewIndexer creates an indexer against the named index.
func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "listing-indexer", "index": index}),
	}
}

// IndexDataset writes every listing of the dataset under a fresh run id
// and returns how many documents landed.
func (ix *Indexer) IndexDataset(ctx context.Context, dataset *models.Dataset) (int, error) {
	runID := uuid.New().String()
	indexed := 0
	var firstErr error

	for i := range dataset.Listings {
		doc := ix.buildDocument(&dataset.Listings[i], dataset, runID)
		if err := ix.indexDocument(ctx, doc); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			ix.logger.Warn("listing index write failed", map[string]interface{}{
				"name":  doc.Name,
				"error": err.Error(),
			})
			continue
		}
		indexed++
	}

	ix.logger.Info("dataset indexed", map[string]interface{}{
		"run_id":  runID,
		"indexed": indexed,
		"failed":  len(dataset.Listings) - indexed,
	})
	return indexed, firstErr
}

func (ix *Indexer) buildDocument(listing *models.PropertyListing, dataset *models.Dataset, runID string) ListingDocument {
	doc := ListingDocument{
		Name:        listing.Name,
		Destination: dataset.Query.Destination,
		HotelLink:   listing.HotelLink,
		RunID:       runID,
		ScrapedAt:   dataset.ScrapedAt,
	}

	price := normalize.ParsePrice(listing.DiscountedPrice)
	if price.Value == nil {
		price = normalize.ParsePrice(listing.OriginalPrice)
	}
	if price.Value != nil {
		doc.Price = price.Value
		doc.Currency = price.Currency
	}

	doc.DistanceFromDowntown = normalize.ParseDistance(listing.DistanceFromDowntown)
	doc.DistanceFromBeach = normalize.ParseDistance(listing.DistanceFromBeach)
	doc.GuestRating = normalize.ExtractFloat(listing.GuestRatingScore)
	doc.ReviewCount = normalize.ExtractFloat(listing.Reviews)
	return doc
}

func (ix *Indexer) indexDocument(ctx context.Context, doc ListingDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return commonerrors.NewIndexWriteFailedError(err)
	}

	req := esapi.IndexRequest{
		Index: ix.index,
		Body:  bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return commonerrors.NewIndexWriteFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return commonerrors.NewIndexWriteFailedError(fmt.Errorf("index response: %s", res.Status()))
	}
	return nil
}
