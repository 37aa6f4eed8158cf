// internal/models/metadata.go
package models

import "time"

// TrainingMetadata records what the last successful training run saw. It is
// written once per run and read-only afterwards; the retraining decision
// compares it against freshly observed counts.
type TrainingMetadata struct {
	LastTrainedAt       *time.Time `json:"last_trained_at"`
	TrainedListingCount int        `json:"trained_listing_count"`
	TrainedDetailCount  int        `json:"trained_detail_count"`
}
