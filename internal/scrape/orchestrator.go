// internal/scrape/orchestrator.go
package scrape

import (
	"context"
	"sync"
	"time"

	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"
	"stayprice/internal/common/metrics"
	"stayprice/internal/models"
)

// DefaultMaxConcurrency is the fan-out width used when no explicit limit is
// configured.
const DefaultMaxConcurrency = 5

// Orchestrator fans a batch of detail-page fetches across a fixed worker
// pool. Each task holds a session for its whole fetch; failed tasks are
// logged and dropped so one bad page never sinks the batch. Results come
// back in completion order.
type Orchestrator struct {
	fetcher        PageFetcher
	sessions       *SessionPool
	maxConcurrency int
	site           string
	logger         logger.Logger
}

// NewOrchestrator creates an orchestrator over the given fetcher. The
// session pool is sized to the concurrency limit.
func NewOrchestrator(fetcher PageFetcher, maxConcurrency int, site string, log logger.Logger) *Orchestrator {
	if maxConcurrency < 1 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Orchestrator{
		fetcher:        fetcher,
		sessions:       NewSessionPool(maxConcurrency),
		maxConcurrency: maxConcurrency,
		site:           site,
		logger:         log.WithFields(map[string]interface{}{"component": "orchestrator", "site": site}),
	}
}

// FetchDetails fetches every URL through the worker pool and returns the
// successful payloads. An empty URL list returns immediately. When the
// context ends, tasks not yet scheduled are abandoned; in-flight fetches
// see the cancellation through their own context.
func (o *Orchestrator) FetchDetails(ctx context.Context, urls []string) []models.PropertyDetails {
	if len(urls) == 0 {
		return nil
	}

	workers := o.maxConcurrency
	if len(urls) < workers {
		workers = len(urls)
	}

	tasks := make(chan string)
	results := make(chan models.PropertyDetails, len(urls))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for pageURL := range tasks {
				if payload := o.runTask(ctx, pageURL); payload != nil {
					results <- *payload
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, pageURL := range urls {
			select {
			case tasks <- pageURL:
			case <-ctx.Done():
				o.logger.Warn("abandoning unscheduled detail fetches", map[string]interface{}{
					"reason": ctx.Err().Error(),
				})
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	details := make([]models.PropertyDetails, 0, len(urls))
	for payload := range results {
		details = append(details, payload)
	}

	o.logger.Info("detail fetch batch finished", map[string]interface{}{
		"requested": len(urls),
		"succeeded": len(details),
		"dropped":   len(urls) - len(details),
	})
	return details
}

func (o *Orchestrator) runTask(ctx context.Context, pageURL string) *models.PropertyDetails {
	if err := o.sessions.Acquire(ctx); err != nil {
		o.failTask(pageURL, err)
		return nil
	}
	defer o.sessions.Release()

	metrics.FetchTasksActive.WithLabelValues(o.site).Inc()
	defer metrics.FetchTasksActive.WithLabelValues(o.site).Dec()

	start := time.Now()
	payload, err := o.fetcher.FetchDetails(ctx, pageURL)
	metrics.FetchTaskDuration.WithLabelValues(o.site).Observe(time.Since(start).Seconds())
	if err != nil {
		o.failTask(pageURL, err)
		return nil
	}

	metrics.FetchTasksCompleted.WithLabelValues(o.site).Inc()
	return payload
}

func (o *Orchestrator) failTask(pageURL string, err error) {
	code := string(commonerrors.CodeOf(err))
	if code == "" {
		code = "UNCLASSIFIED"
	}
	metrics.FetchTasksFailed.WithLabelValues(o.site, code).Inc()
	o.logger.Warn("detail fetch dropped", map[string]interface{}{
		"url":   pageURL,
		"error": err.Error(),
	})
}
