// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stayprice/internal/cache"
	"stayprice/internal/common/config"
	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"
	"stayprice/internal/models"
	"stayprice/internal/pipeline"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineRunner triggers a full pipeline run, optionally holding one
// property out of the training data.
type PipelineRunner interface {
	RunExcluding(ctx context.Context, query models.SearchQuery, excludeName string) (pipeline.RunReport, error)
}

// ScrapeAccess is the slice of the scrape service the API exposes.
type ScrapeAccess interface {
	GetDataset(ctx context.Context, query models.SearchQuery) (*models.Dataset, error)
	GetDatasetWithTTL(ctx context.Context, query models.SearchQuery, ttl time.Duration) (*models.Dataset, error)
	ResolveProperty(ctx context.Context, name string, query models.SearchQuery) (*cache.EntityPayload, error)
}

// CacheSweeper clears expired entity entries.
type CacheSweeper interface {
	ClearExpired(ctx context.Context, maxAge time.Duration) (int, error)
}

// ConfigLister enumerates the cached dataset configurations.
type ConfigLister interface {
	ListConfigs(ctx context.Context) ([]cache.StoredConfig, error)
}

// Server is the HTTP surface: health, dataset and property reads, run
// trigger, cache sweep and Prometheus metrics.
type Server struct {
	router   *mux.Router
	runner   PipelineRunner
	scraper  ScrapeAccess
	sweeper  CacheSweeper
	configs  ConfigLister
	cfg      config.APIConfig
	cacheCfg config.CacheConfig
	logger   logger.Logger
}

// NewServer builds the router. Handlers are registered once; the caller
// owns the http.Server lifecycle.
func NewServer(runner PipelineRunner, scraper ScrapeAccess, sweeper CacheSweeper, configs ConfigLister, cfg config.APIConfig, cacheCfg config.CacheConfig, log logger.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		runner:   runner,
		scraper:  scraper,
		sweeper:  sweeper,
		configs:  configs,
		cfg:      cfg,
		cacheCfg: cacheCfg,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/datasets", s.handleGetDataset).Methods(http.MethodGet)
	v1.HandleFunc("/datasets/configs", s.handleListConfigs).Methods(http.MethodGet)
	v1.HandleFunc("/properties/resolve", s.handleResolveProperty).Methods(http.MethodGet)
	v1.HandleFunc("/runs", s.handleTriggerRun).Methods(http.MethodPost)
	v1.HandleFunc("/cache/sweep", s.handleCacheSweep).Methods(http.MethodPost)
}

// Handler returns the root handler for mounting into an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving the API on the configured port.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Timeout) * time.Millisecond,
		WriteTimeout: 2 * time.Duration(s.cfg.Timeout) * time.Millisecond,
	}
	s.logger.Info("api listening", map[string]interface{}{"addr": srv.Addr})
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	query, err := queryFromRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	// force_refetch gates the cached dataset on the refetch delay instead
	// of the default freshness window: anything older than the delay is
	// scraped anew, anything younger is served as is.
	var dataset *models.Dataset
	if raw := r.URL.Query().Get("force_refetch"); raw == "true" {
		days := s.cacheCfg.RefetchDelayDays
		if rawDays := r.URL.Query().Get("refetch_delay_days"); rawDays != "" {
			if days, err = intParam(rawDays, days); err != nil {
				s.writeError(w, http.StatusBadRequest, fmt.Errorf("refetch_delay_days: %w", err))
				return
			}
		}
		dataset, err = s.scraper.GetDatasetWithTTL(r.Context(), query, time.Duration(days)*24*time.Hour)
	} else {
		dataset, err = s.scraper.GetDataset(r.Context(), query)
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dataset)
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.configs.ListConfigs(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if configs == nil {
		configs = []cache.StoredConfig{}
	}
	s.writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleResolveProperty(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}
	query, err := queryFromRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	payload, err := s.scraper.ResolveProperty(r.Context(), name, query)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// runRequest is the POST /runs body: a search query plus an optional
// property to hold out of the training data. Callers pricing a specific
// property set exclude_name so its own rows never train the model it is
// priced against.
type runRequest struct {
	models.SearchQuery
	ExcludeName string `json:"exclude_name"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid run request: %w", err))
		return
	}
	if req.Destination == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("destination is required"))
		return
	}

	report, err := s.runner.RunExcluding(r.Context(), req.SearchQuery, req.ExcludeName)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	maxAge := time.Duration(s.cacheCfg.EntityTTLHours) * time.Hour
	if raw := r.URL.Query().Get("max_age_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 1 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("max_age_hours must be a positive integer"))
			return
		}
		maxAge = time.Duration(hours) * time.Hour
	}

	removed, err := s.sweeper.ClearExpired(r.Context(), maxAge)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func queryFromRequest(r *http.Request) (models.SearchQuery, error) {
	q := r.URL.Query()
	destination := q.Get("destination")
	if destination == "" {
		return models.SearchQuery{}, fmt.Errorf("destination is required")
	}

	query := models.SearchQuery{Destination: destination}
	var err error
	if query.Adults, err = intParam(q.Get("adults"), 2); err != nil {
		return models.SearchQuery{}, fmt.Errorf("adults: %w", err)
	}
	if query.Rooms, err = intParam(q.Get("rooms"), 1); err != nil {
		return models.SearchQuery{}, fmt.Errorf("rooms: %w", err)
	}
	return query, nil
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return v, nil
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch commonerrors.CodeOf(err) {
	case commonerrors.ErrCodeNoCandidates, commonerrors.ErrCodeNoAcceptableMatch:
		status = http.StatusNotFound
	case commonerrors.ErrCodeInsufficientTrainingData:
		status = http.StatusUnprocessableEntity
	case commonerrors.ErrCodeFetchFailed, commonerrors.ErrCodeFetchTimeout,
		commonerrors.ErrCodeTrainerUnavailable, commonerrors.ErrCodeTrainerRejected:
		status = http.StatusBadGateway
	}
	s.writeError(w, status, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{"status": status, "error": err.Error()})
	}
	s.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  string(commonerrors.CodeOf(err)),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encoding failed", map[string]interface{}{"error": err.Error()})
	}
}
