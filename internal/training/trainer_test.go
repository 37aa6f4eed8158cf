// internal/training/trainer_test.go
package training

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	commonerrors "stayprice/internal/common/errors"
	commonhttp "stayprice/internal/common/http"
	"stayprice/internal/common/logger"
	"stayprice/internal/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []normalize.FeatureRow {
	return []normalize.FeatureRow{
		{Name: "Ocean View Hotel", Price: 120.5, Currency: "$"},
		{Name: "City Center Inn", Price: 85, Currency: "$"},
	}
}

func TestTrainerClient_Train(t *testing.T) {
	var received TrainRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/train", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(TrainResult{
			ModelVersion: "v42",
			Samples:      len(received.Rows),
			Metrics:      map[string]float64{"rmse": 12.3},
		})
	}))
	defer srv.Close()

	client := NewTrainerClient(srv.URL, commonhttp.NewClient(5*time.Second), logger.NewNoOpLogger())

	result, err := client.Train(context.Background(), "price_model", sampleRows())
	require.NoError(t, err)

	assert.Equal(t, "v42", result.ModelVersion)
	assert.Equal(t, 2, result.Samples)
	assert.Equal(t, "price_model", received.ModelName)
	assert.Equal(t, "price", received.Target)
	assert.NotEmpty(t, received.RunID)
	assert.Len(t, received.Rows, 2)
}

func TestTrainerClient_Rejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not enough samples", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewTrainerClient(srv.URL, commonhttp.NewClient(5*time.Second), logger.NewNoOpLogger())

	_, err := client.Train(context.Background(), "price_model", sampleRows())
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeTrainerRejected, commonerrors.CodeOf(err))
	assert.False(t, commonerrors.IsRetryable(err))
}

func TestTrainerClient_Unreachable(t *testing.T) {
	client := NewTrainerClient("http://127.0.0.1:1", commonhttp.NewClient(200*time.Millisecond), logger.NewNoOpLogger())

	_, err := client.Train(context.Background(), "price_model", sampleRows())
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeTrainerUnavailable, commonerrors.CodeOf(err))
	assert.True(t, commonerrors.IsRetryable(err))
}

func TestTrainerClient_UnparseableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewTrainerClient(srv.URL, commonhttp.NewClient(5*time.Second), logger.NewNoOpLogger())

	_, err := client.Train(context.Background(), "price_model", sampleRows())
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeTrainerRejected, commonerrors.CodeOf(err))
}
