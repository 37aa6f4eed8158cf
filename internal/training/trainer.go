// internal/training/trainer.go
package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	commonerrors "stayprice/internal/common/errors"
	commonhttp "stayprice/internal/common/http"
	"stayprice/internal/common/logger"
	"stayprice/internal/normalize"

	"github.com/google/uuid"
)

// TrainRequest is the payload posted to the trainer service.
type TrainRequest struct {
	RunID     string                 `json:"run_id"`
	ModelName string                 `json:"model_name"`
	Target    string                 `json:"target"`
	Rows      []normalize.FeatureRow `json:"rows"`
}

// TrainResult is the trainer's answer to a successful run.
type TrainResult struct {
	ModelVersion string             `json:"model_version"`
	Samples      int                `json:"samples"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

// TrainerClient talks to the external training service over HTTP.
type TrainerClient struct {
	baseURL string
	client  *commonhttp.Client
	logger  logger.Logger
}

// NewTrainerClient creates a client against the trainer base URL.
func NewTrainerClient(baseURL string, client *commonhttp.Client, log logger.Logger) *TrainerClient {
	return &TrainerClient{
		baseURL: baseURL,
		client:  client,
		logger:  log.WithFields(map[string]interface{}{"component": "trainer-client"}),
	}
}

// Train submits the feature rows and blocks until the trainer answers.
// Transport failures are retryable; an explicit rejection is not.
func (c *TrainerClient) Train(ctx context.Context, modelName string, rows []normalize.FeatureRow) (*TrainResult, error) {
	reqBody := TrainRequest{
		RunID:     uuid.New().String(),
		ModelName: modelName,
		Target:    "price",
		Rows:      rows,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal train request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/train", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build train request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Run-ID", reqBody.RunID)

	c.logger.Info("submitting training run", map[string]interface{}{
		"run_id":     reqBody.RunID,
		"model_name": modelName,
		"rows":       len(rows),
	})

	resp, err := c.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, commonerrors.NewTrainerUnavailableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, commonerrors.NewTrainerUnavailableError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, commonerrors.NewTrainerRejectedError(resp.StatusCode, string(body))
	}

	var result TrainResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, commonerrors.NewTrainerRejectedError(resp.StatusCode, "unparseable trainer response: "+err.Error())
	}

	c.logger.Info("training run accepted", map[string]interface{}{
		"run_id":        reqBody.RunID,
		"model_version": result.ModelVersion,
		"samples":       result.Samples,
	})
	return &result, nil
}
