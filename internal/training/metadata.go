// internal/training/metadata.go
package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"
	"stayprice/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

const metadataSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"last_trained_at": {"type": ["string", "null"], "format": "date-time"},
		"trained_listing_count": {"type": "integer", "minimum": 0},
		"trained_detail_count": {"type": "integer", "minimum": 0}
	},
	"required": ["trained_listing_count", "trained_detail_count"]
}`

// MetadataStore persists training metadata as one JSON file per model.
// A missing, unreadable or invalid file reads as absent metadata, which
// the decision policy treats as a mandate to retrain.
type MetadataStore struct {
	dir    string
	logger logger.Logger
}

// NewMetadataStore creates a store rooted at dir.
func NewMetadataStore(dir string, log logger.Logger) *MetadataStore {
	return &MetadataStore{
		dir:    dir,
		logger: log.WithFields(map[string]interface{}{"component": "metadata-store"}),
	}
}

func (s *MetadataStore) path(modelName string) string {
	return filepath.Join(s.dir, modelName+"_metadata.json")
}

// Load reads the metadata for a model. Absent or corrupt files return nil
// without error; the caller cannot tell the difference and does not need to.
func (s *MetadataStore) Load(modelName string) *models.TrainingMetadata {
	path := s.path(modelName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("metadata unreadable, treating as absent", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
		return nil
	}

	if err := validateMetadata(data); err != nil {
		s.logger.Warn("metadata invalid, treating as absent", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil
	}

	var meta models.TrainingMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("metadata corrupt, treating as absent", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil
	}
	return &meta
}

// Save writes the metadata for a model, creating the directory as needed.
// The write is atomic: a crash mid-save leaves the previous file intact.
func (s *MetadataStore) Save(modelName string, meta *models.TrainingMetadata) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := validateMetadata(data); err != nil {
		return commonerrors.NewMetadataInvalidError(err.Error())
	}

	path := s.path(modelName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

// MarkTrained records a successful training run at the given instant.
func (s *MetadataStore) MarkTrained(modelName string, trainedAt time.Time, listingCount, detailCount int) error {
	trainedAt = trainedAt.UTC()
	return s.Save(modelName, &models.TrainingMetadata{
		LastTrainedAt:       &trainedAt,
		TrainedListingCount: listingCount,
		TrainedDetailCount:  detailCount,
	})
}

func validateMetadata(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(metadataSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("metadata schema violation: %s", strings.Join(msgs, "; "))
	}
	return nil
}
