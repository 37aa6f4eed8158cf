// internal/training/decision.go
package training

import (
	"time"

	"stayprice/internal/common/metrics"
	"stayprice/internal/models"
)

// Decision reasons, also used as metric labels.
const (
	ReasonNoMetadata     = "no_metadata"
	ReasonNeverTrained   = "never_trained"
	ReasonModelTooOld    = "model_too_old"
	ReasonFirstData      = "first_data"
	ReasonDataGrowth     = "data_growth"
	ReasonDataShrunk     = "data_shrunk"
	ReasonStillEmpty     = "still_empty"
	ReasonGrowthTooSmall = "growth_too_small"
)

// Decision is the outcome of a retraining check.
type Decision struct {
	Retrain bool
	Reason  string
}

// DecisionPolicy holds the thresholds the retraining check runs against.
type DecisionPolicy struct {
	// MinIncreaseRatio is the relative sample growth that justifies a
	// retrain, e.g. 0.1 for ten percent.
	MinIncreaseRatio float64
	// MaxAge is how old a model may get before it is retrained regardless
	// of data volume.
	MaxAge time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// ShouldRetrain decides whether the model needs retraining given its last
// known training state and the sample counts of the current dataset.
//
// Missing or never-populated metadata always retrains: an unknown model
// state is treated as no model. Shrinking datasets never trigger on their
// own; only growth past the ratio, or age past the limit, does.
func ShouldRetrain(meta *models.TrainingMetadata, currentListings, currentDetails int, policy DecisionPolicy) Decision {
	d := decide(meta, currentListings, currentDetails, policy)

	outcome := "skip"
	if d.Retrain {
		outcome = "retrain"
	}
	metrics.RetrainDecisions.WithLabelValues(outcome, d.Reason).Inc()
	return d
}

func decide(meta *models.TrainingMetadata, currentListings, currentDetails int, policy DecisionPolicy) Decision {
	if meta == nil {
		return Decision{Retrain: true, Reason: ReasonNoMetadata}
	}
	if meta.LastTrainedAt == nil {
		return Decision{Retrain: true, Reason: ReasonNeverTrained}
	}

	now := time.Now
	if policy.Now != nil {
		now = policy.Now
	}
	if policy.MaxAge > 0 && now().Sub(*meta.LastTrainedAt) > policy.MaxAge {
		return Decision{Retrain: true, Reason: ReasonModelTooOld}
	}

	trainedTotal := meta.TrainedListingCount + meta.TrainedDetailCount
	currentTotal := currentListings + currentDetails

	if trainedTotal == 0 {
		if currentTotal > 0 {
			return Decision{Retrain: true, Reason: ReasonFirstData}
		}
		return Decision{Retrain: false, Reason: ReasonStillEmpty}
	}

	increase := float64(currentTotal-trainedTotal) / float64(trainedTotal)
	if increase > policy.MinIncreaseRatio {
		return Decision{Retrain: true, Reason: ReasonDataGrowth}
	}
	if increase < 0 {
		return Decision{Retrain: false, Reason: ReasonDataShrunk}
	}
	return Decision{Retrain: false, Reason: ReasonGrowthTooSmall}
}
