// Package errors provides standardized error handling for the scraping and
// training pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Fetch / scraping errors.
	ErrCodeFetchFailed      ErrorCode = "FETCH_FAILED"
	ErrCodeFetchTimeout     ErrorCode = "FETCH_TIMEOUT"
	ErrCodeSessionExhausted ErrorCode = "SESSION_EXHAUSTED"

	// Resolution errors.
	ErrCodeNoAcceptableMatch ErrorCode = "NO_ACCEPTABLE_MATCH"
	ErrCodeNoCandidates      ErrorCode = "NO_CANDIDATES"

	// Cache errors. Reads degrade to a miss; these codes surface only on writes.
	ErrCodeCacheWriteFailed ErrorCode = "CACHE_WRITE_FAILED"

	// Training errors.
	ErrCodeInsufficientTrainingData ErrorCode = "INSUFFICIENT_TRAINING_DATA"
	ErrCodeTrainerUnavailable       ErrorCode = "TRAINER_UNAVAILABLE"
	ErrCodeTrainerRejected          ErrorCode = "TRAINER_REJECTED"
	ErrCodeMetadataInvalid          ErrorCode = "METADATA_INVALID"

	// Search index errors.
	ErrCodeIndexWriteFailed ErrorCode = "INDEX_WRITE_FAILED"

	// Notification errors.
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match on the code of another StandardError.
func (e *StandardError) Is(target error) bool {
	var other *StandardError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or empty string for plain errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsRetryable reports whether the error is worth another attempt. Plain
// errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionExhaustedError marks a task that never got a scrape session
// before its context ended.
func NewSessionExhaustedError(cause error) *StandardError {
	return newError(ErrCodeSessionExhausted, "gave up waiting for a scrape session", cause.Error(), true)
}

// NewFetchFailedError wraps a single-page fetch failure. Retryable: the next
// run may succeed against the same URL.
func NewFetchFailedError(url string, cause error) *StandardError {
	e := newError(ErrCodeFetchFailed, "page fetch failed", cause.Error(), true)
	e.Metadata = map[string]interface{}{"url": url}
	return e
}

// NewNoAcceptableMatchError signals that no candidate cleared the similarity
// threshold. Non-retryable: re-running the same query yields the same candidates.
func NewNoAcceptableMatchError(target string, bestScore float64) *StandardError {
	e := newError(
		ErrCodeNoAcceptableMatch,
		fmt.Sprintf("no listing matched %q above threshold", target),
		fmt.Sprintf("best score %.2f", bestScore),
		false,
	)
	e.Metadata = map[string]interface{}{"target": target, "bestScore": bestScore}
	return e
}

// NewNoCandidatesError signals an empty candidate set for a target search.
func NewNoCandidatesError(target string) *StandardError {
	return newError(
		ErrCodeNoCandidates,
		fmt.Sprintf("search for %q returned no candidates", target),
		"",
		false,
	)
}

// NewInsufficientTrainingDataError is the precondition failure raised before
// the trainer collaborator is ever invoked.
func NewInsufficientTrainingDataError(listingCount, detailCount int) *StandardError {
	e := newError(
		ErrCodeInsufficientTrainingData,
		"not enough data to train a model",
		fmt.Sprintf("listings=%d details=%d", listingCount, detailCount),
		false,
	)
	e.Metadata = map[string]interface{}{
		"listingCount": listingCount,
		"detailCount":  detailCount,
	}
	return e
}

// NewTrainerUnavailableError wraps a transport-level trainer failure.
func NewTrainerUnavailableError(cause error) *StandardError {
	return newError(ErrCodeTrainerUnavailable, "trainer collaborator unreachable", cause.Error(), true)
}

// NewTrainerRejectedError wraps a non-2xx trainer response.
func NewTrainerRejectedError(status int, body string) *StandardError {
	return newError(
		ErrCodeTrainerRejected,
		fmt.Sprintf("trainer rejected the request with status %d", status),
		body,
		false,
	)
}

// NewMetadataInvalidError wraps a model-metadata document that failed schema
// validation.
func NewMetadataInvalidError(details string) *StandardError {
	return newError(ErrCodeMetadataInvalid, "model metadata failed validation", details, false)
}

// NewCacheWriteFailedError wraps a failed cache store. Reads never produce
// errors; they degrade to a miss.
func NewCacheWriteFailedError(tier string, cause error) *StandardError {
	e := newError(ErrCodeCacheWriteFailed, "cache write failed", cause.Error(), true)
	e.Metadata = map[string]interface{}{"tier": tier}
	return e
}

// NewIndexWriteFailedError wraps a failed Elasticsearch index write.
func NewIndexWriteFailedError(cause error) *StandardError {
	return newError(ErrCodeIndexWriteFailed, "listing index write failed", cause.Error(), true)
}

// NewNotificationSendFailedError wraps a failed run notification.
func NewNotificationSendFailedError(channel string, cause error) *StandardError {
	e := newError(ErrCodeNotificationSendFailed, "run notification failed", cause.Error(), true)
	e.Metadata = map[string]interface{}{"channel": channel}
	return e
}
