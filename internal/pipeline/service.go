// internal/pipeline/service.go
package pipeline

import (
	"context"
	"strings"
	"time"

	"stayprice/internal/common/config"
	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"
	"stayprice/internal/common/metrics"
	"stayprice/internal/common/observability"
	"stayprice/internal/models"
	"stayprice/internal/normalize"
	"stayprice/internal/notify"
	"stayprice/internal/training"
)

// DatasetProvider yields the dataset for a query, cached or scraped.
type DatasetProvider interface {
	GetDataset(ctx context.Context, query models.SearchQuery) (*models.Dataset, error)
}

// Trainer submits feature rows to the model trainer.
type Trainer interface {
	Train(ctx context.Context, modelName string, rows []normalize.FeatureRow) (*training.TrainResult, error)
}

// DatasetIndexer pushes a scraped dataset into the listing index.
type DatasetIndexer interface {
	IndexDataset(ctx context.Context, dataset *models.Dataset) (int, error)
}

// RunNotifier reports a finished run.
type RunNotifier interface {
	NotifyRunComplete(ctx context.Context, summary notify.RunSummary) error
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	Query        models.SearchQuery
	ListingCount int
	DetailCount  int
	FeatureRows  int
	Decision     training.Decision
	Retrained    bool
	ModelVersion string
	Indexed      int
	Duration     time.Duration
}

// Service runs the scrape-decide-train pipeline end to end. Indexing and
// notification are best effort; the dataset, the decision and the trainer
// are load bearing.
type Service struct {
	datasets DatasetProvider
	trainer  Trainer
	metadata *training.MetadataStore
	indexer  DatasetIndexer
	notifier RunNotifier
	cfg      config.TrainingConfig
	obs      *observability.Observability
	tracing  *observability.Tracing
	logger   logger.Logger
	now      func() time.Time
}

// NewService wires a pipeline. indexer and notifier may be nil when those
// surfaces are disabled.
func NewService(
	datasets DatasetProvider,
	trainer Trainer,
	metadata *training.MetadataStore,
	indexer DatasetIndexer,
	notifier RunNotifier,
	cfg config.TrainingConfig,
	obs *observability.Observability,
	tracing *observability.Tracing,
	log logger.Logger,
) *Service {
	return &Service{
		datasets: datasets,
		trainer:  trainer,
		metadata: metadata,
		indexer:  indexer,
		notifier: notifier,
		cfg:      cfg,
		obs:      obs,
		tracing:  tracing,
		logger:   log.WithFields(map[string]interface{}{"component": "pipeline"}),
		now:      time.Now,
	}
}

// Run executes one full pipeline pass for the query: fetch the dataset,
// decide whether the model needs retraining, train if so, then index and
// notify. The returned report is valid even when err is non-nil up to the
// point of failure.
func (s *Service) Run(ctx context.Context, query models.SearchQuery) (RunReport, error) {
	return s.RunExcluding(ctx, query, "")
}

// RunExcluding is Run with a property held out of the training data. Used
// when the run exists to price a specific property: its own rows must not
// leak into the model it is priced against.
func (s *Service) RunExcluding(ctx context.Context, query models.SearchQuery, excludeName string) (RunReport, error) {
	start := s.now()
	report := RunReport{Query: query}

	if s.tracing != nil {
		spanCtx, span := s.tracing.StartSpan(ctx, "pipeline.run")
		defer span.End()
		ctx = spanCtx
	}

	report, err := s.run(ctx, query, excludeName, report)
	report.Duration = s.now().Sub(start)

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.PipelineRunDuration.WithLabelValues(status).Observe(report.Duration.Seconds())
	if s.obs != nil {
		s.obs.RecordRun(ctx, status)
		s.obs.RecordRunDuration(ctx, report.Duration, status)
	}

	s.notifyDone(ctx, report, err)
	return report, err
}

func (s *Service) run(ctx context.Context, query models.SearchQuery, excludeName string, report RunReport) (RunReport, error) {
	dataset, err := s.datasets.GetDataset(ctx, query)
	if err != nil {
		return report, err
	}

	if s.indexer != nil {
		indexed, err := s.indexer.IndexDataset(ctx, dataset)
		report.Indexed = indexed
		if err != nil {
			s.logger.Warn("dataset indexing incomplete", map[string]interface{}{
				"indexed": indexed,
				"error":   err.Error(),
			})
		}
	}

	listings, details := excludeProperty(dataset.Listings, dataset.Details, excludeName)
	report.ListingCount = len(listings)
	report.DetailCount = len(details)

	meta := s.metadata.Load(s.cfg.ModelName)
	report.Decision = training.ShouldRetrain(meta, report.ListingCount, report.DetailCount, training.DecisionPolicy{
		MinIncreaseRatio: s.cfg.MinIncreaseRatio,
		MaxAge:           time.Duration(s.cfg.MaxAgeDays) * 24 * time.Hour,
		Now:              s.now,
	})

	s.logger.Info("retraining decision", map[string]interface{}{
		"retrain":  report.Decision.Retrain,
		"reason":   report.Decision.Reason,
		"listings": report.ListingCount,
		"details":  report.DetailCount,
	})

	if !report.Decision.Retrain {
		return report, nil
	}

	rows := normalize.BuildFeatures(listings, details)
	report.FeatureRows = len(rows)
	if len(rows) < s.cfg.MinSamples {
		return report, commonerrors.NewInsufficientTrainingDataError(report.ListingCount, report.DetailCount)
	}

	result, err := s.trainer.Train(ctx, s.cfg.ModelName, rows)
	if err != nil {
		return report, err
	}
	report.Retrained = true
	report.ModelVersion = result.ModelVersion

	if err := s.metadata.MarkTrained(s.cfg.ModelName, s.now(), report.ListingCount, report.DetailCount); err != nil {
		// The model trained; a metadata write failure only means the next
		// run decides with stale counts.
		s.logger.Error("failed to persist training metadata", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return report, nil
}

// excludeProperty drops the named property from the training rows. The
// name compare mirrors the entity cache key normalization so a resolved
// property and its dataset row cannot drift apart on casing.
func excludeProperty(listings []models.PropertyListing, details []models.PropertyDetails, name string) ([]models.PropertyListing, []models.PropertyDetails) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return listings, details
	}

	keptListings := make([]models.PropertyListing, 0, len(listings))
	for _, l := range listings {
		if strings.ToLower(strings.TrimSpace(l.Name)) == target {
			continue
		}
		keptListings = append(keptListings, l)
	}

	keptDetails := make([]models.PropertyDetails, 0, len(details))
	for _, d := range details {
		if strings.ToLower(strings.TrimSpace(d.Name)) == target {
			continue
		}
		keptDetails = append(keptDetails, d)
	}
	return keptListings, keptDetails
}

func (s *Service) notifyDone(ctx context.Context, report RunReport, runErr error) {
	if s.notifier == nil {
		return
	}
	summary := notify.RunSummary{
		Destination:  report.Query.Destination,
		ListingCount: report.ListingCount,
		DetailCount:  report.DetailCount,
		Retrained:    report.Retrained,
		Reason:       report.Decision.Reason,
		ModelVersion: report.ModelVersion,
		Duration:     report.Duration,
		Err:          runErr,
	}
	if err := s.notifier.NotifyRunComplete(ctx, summary); err != nil {
		s.logger.Warn("run notification failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
