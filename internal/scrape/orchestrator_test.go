// internal/scrape/orchestrator_test.go
package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"stayprice/internal/common/logger"
	"stayprice/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher records peak concurrency and fails the URLs it is told to.
type countingFetcher struct {
	mu        sync.Mutex
	active    int
	maxActive int
	fail      map[string]bool
	delay     time.Duration
	block     chan struct{}
}

func (f *countingFetcher) SearchListings(ctx context.Context, query models.SearchQuery) ([]models.PropertyListing, error) {
	return nil, errors.New("not used")
}

func (f *countingFetcher) FetchDetails(ctx context.Context, url string) (*models.PropertyDetails, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.fail[url] {
		return nil, fmt.Errorf("simulated fetch failure for %s", url)
	}
	return &models.PropertyDetails{URL: url, Name: "property at " + url}, nil
}

func TestOrchestrator_DropsFailuresKeepsSuccesses(t *testing.T) {
	fetcher := &countingFetcher{
		fail:  map[string]bool{"u3": true, "u5": true, "u8": true},
		delay: time.Millisecond,
	}
	orch := NewOrchestrator(fetcher, 2, "test", logger.NewNoOpLogger())

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("u%d", i)
	}

	details := orch.FetchDetails(context.Background(), urls)

	require.Len(t, details, 7)
	seen := make(map[string]bool, len(details))
	for _, d := range details {
		seen[d.URL] = true
	}
	assert.False(t, seen["u3"])
	assert.False(t, seen["u5"])
	assert.False(t, seen["u8"])
	assert.LessOrEqual(t, fetcher.maxActive, 2, "concurrency limit must hold")
}

func TestOrchestrator_EmptyBatchReturnsImmediately(t *testing.T) {
	orch := NewOrchestrator(&countingFetcher{}, 5, "test", logger.NewNoOpLogger())

	assert.Nil(t, orch.FetchDetails(context.Background(), nil))
	assert.Nil(t, orch.FetchDetails(context.Background(), []string{}))
}

func TestOrchestrator_SingleWorkerProcessesSequentially(t *testing.T) {
	fetcher := &countingFetcher{delay: time.Millisecond}
	orch := NewOrchestrator(fetcher, 1, "test", logger.NewNoOpLogger())

	details := orch.FetchDetails(context.Background(), []string{"a", "b", "c"})

	assert.Len(t, details, 3)
	assert.Equal(t, 1, fetcher.maxActive)
}

func TestOrchestrator_CancellationAbandonsUnscheduledTasks(t *testing.T) {
	block := make(chan struct{})
	fetcher := &countingFetcher{block: block}
	orch := NewOrchestrator(fetcher, 2, "test", logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("u%d", i)
	}

	done := make(chan []models.PropertyDetails, 1)
	go func() { done <- orch.FetchDetails(ctx, urls) }()

	// Let the two workers pick up their first tasks, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(block)

	select {
	case details := <-done:
		assert.Less(t, len(details), len(urls), "cancellation must stop the batch early")
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not return after cancellation")
	}
}

func TestOrchestrator_DefaultsConcurrencyWhenUnset(t *testing.T) {
	orch := NewOrchestrator(&countingFetcher{}, 0, "test", logger.NewNoOpLogger())
	assert.Equal(t, DefaultMaxConcurrency, orch.maxConcurrency)
}

func TestSessionPool_AcquireBlocksAtCapacity(t *testing.T) {
	pool := NewSessionPool(1)
	require.NoError(t, pool.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Acquire(ctx)
	require.Error(t, err)

	pool.Release()
	require.NoError(t, pool.Acquire(context.Background()))
}
