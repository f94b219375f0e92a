package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/panelbio/riskserver/pkg/audit"
	"github.com/panelbio/riskserver/pkg/common/config"
	"github.com/panelbio/riskserver/pkg/common/database"
	"github.com/panelbio/riskserver/pkg/common/kafka"
	"github.com/panelbio/riskserver/pkg/common/logger"
	"github.com/panelbio/riskserver/pkg/common/models"
	"github.com/panelbio/riskserver/pkg/comparison"
	"github.com/panelbio/riskserver/pkg/display"
	"github.com/panelbio/riskserver/pkg/gateway/auth"
	"github.com/panelbio/riskserver/pkg/gateway/middleware"
	"github.com/panelbio/riskserver/pkg/refdata"
	"github.com/panelbio/riskserver/pkg/risk"
	"github.com/panelbio/riskserver/pkg/storage"
)

type RiskService struct {
	store    *refdata.Store
	calc     *risk.Calculator
	catalog  display.Catalog
	repo     *audit.Repository
	cache    *storage.ComparisonCache
	producer *kafka.Producer
	horizon  float64
}

func main() {
	logger.Init()
	cfg := config.Load()

	// Reference data must load in full before the service starts; there is
	// no degraded mode.
	store, err := refdata.Load(cfg.ReferenceDataDir)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load reference data")
	}

	catalog, err := display.Load(cfg.DisplayCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Display catalog not loaded, using built-in defaults")
		catalog = display.DefaultCatalog()
	}

	calc := risk.NewCalculator(store,
		risk.WithHorizon(cfg.RiskHorizonYears),
		risk.WithWarnf(func(format string, args ...interface{}) {
			logger.Log.Warnf(format, args...)
		}),
	)

	// Audit log, cache and event publishing are best-effort subsystems:
	// losing them degrades analytics, not the calculator.
	var repo *audit.Repository
	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Warn("Assessment audit log disabled")
	} else {
		repo = audit.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Warn("Failed to migrate audit tables, audit log disabled")
			repo = nil
		}
	}

	redisClient := database.GetRedis()
	cache := storage.NewComparisonCache(redisClient, cfg.ComparisonCacheTTL)

	producer := kafka.NewProducer(cfg.KafkaAssessmentTopic)
	defer producer.Close()

	service := &RiskService{
		store:    store,
		calc:     calc,
		catalog:  catalog,
		repo:     repo,
		cache:    cache,
		producer: producer,
		horizon:  cfg.RiskHorizonYears,
	}

	oidcAuth, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
	if err != nil {
		logger.Log.WithError(err).Warn("OIDC authentication not configured, running without auth")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	if oidcAuth != nil {
		router.Use(middleware.Authenticate(oidcAuth))
	}
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", healthCheck).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/assess", service.handleAssess).Methods("POST")
	apiRouter.HandleFunc("/comparisons", service.handleComparisons).Methods("POST")
	apiRouter.HandleFunc("/catalog", service.handleCatalog).Methods("GET")
	apiRouter.HandleFunc("/assessments/recent", service.handleRecent).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Risk Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Risk Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Risk Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *RiskService) handleAssess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	risks, err := s.calc.Assess(req)
	if err != nil {
		writeCalculationError(w, err)
		return
	}
	for i := range risks {
		risks[i].Display = s.catalog.Disease(risks[i].Disease)
	}

	latency := time.Since(start)
	requestID := r.Header.Get("X-Request-ID")

	resp := models.AssessmentResponse{
		RequestID: requestID,
		Risks:     risks,
		HorizonYr: s.horizon,
		Latency:   latency,
	}

	ctx := r.Context()
	if s.repo != nil {
		if err := s.repo.RecordAssessment(ctx, requestID, req, risks, latency); err != nil {
			logger.Log.WithError(err).Error("Failed to record assessment")
		}
	}
	if s.producer != nil {
		data := map[string]interface{}{
			"request_id": requestID,
			"outcomes":   len(risks),
			"latency_ms": latency.Milliseconds(),
		}
		// Publish failures are logged by the producer.
		_ = s.producer.PublishEvent(ctx, "assessment.completed", "risk-service", data)
	}

	logger.Log.WithFields(map[string]interface{}{
		"request_id": requestID,
		"outcomes":   len(risks),
		"latency_ms": latency.Milliseconds(),
	}).Info("Assessment completed")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *RiskService) handleComparisons(w http.ResponseWriter, r *http.Request) {
	var req models.ComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	base, enumerated, diseases := canonicalComparison(req)

	ctx := r.Context()
	key := s.cache.Key(base, enumerated, diseases)
	if cached, ok := s.cache.Get(ctx, key); ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cached)
		return
	}

	filtered := comparison.Filter(s.store.Concordance, enumerated, diseases)

	records := make([]models.ComparisonRecord, 0, len(filtered))
	for _, rec := range filtered {
		records = append(records, models.ComparisonRecord{
			Model:          rec.Model,
			CanonicalModel: rec.Canonical,
			Disease:        rec.Disease,
			DiseaseDisplay: s.catalog.Disease(rec.Disease),
			Estimate:       rec.Estimate,
			CILower:        rec.CILower,
			CIUpper:        rec.CIUpper,
		})
	}

	resp := &models.ComparisonResponse{
		Models:  enumerated,
		Records: records,
	}
	s.cache.Set(ctx, key, resp)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *RiskService) handleCatalog(w http.ResponseWriter, r *http.Request) {
	type diseaseEntry struct {
		Code    string `json:"code"`
		Display string `json:"display"`
	}
	diseases := make([]diseaseEntry, 0, len(refdata.Diseases))
	for _, code := range refdata.Diseases {
		diseases = append(diseases, diseaseEntry{Code: code, Display: s.catalog.Disease(code)})
	}

	payload := map[string]interface{}{
		"diseases":    diseases,
		"biomarkers":  risk.ContinuousFields,
		"scores":      risk.ScoreFields,
		"flags":       risk.FlagFields,
		"ethnicities": []string{"white", "south_asian", "black", "other"},
		"horizon_yr":  s.horizon,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (s *RiskService) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		http.Error(w, "Assessment audit log unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	logs, err := s.repo.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to query assessment logs")
		http.Error(w, "Failed to query assessment logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

// canonicalComparison normalizes a comparison request: long-form add-on
// labels are mapped to abbreviations and enumerated into the canonical model
// set, and diseases are placed in the canonical sequence. Equivalent requests
// therefore share one cache key regardless of input order or label form.
func canonicalComparison(req models.ComparisonRequest) (string, []string, []string) {
	base := req.Base
	if base == "" {
		base = comparison.BaseModel
	}

	addons := make([]string, 0, len(req.Addons))
	for _, addon := range req.Addons {
		addons = append(addons, comparison.MapName(addon))
	}
	enumerated := comparison.Enumerate(base, addons)

	diseases := req.Diseases
	if len(diseases) == 0 {
		diseases = refdata.Diseases
	}
	diseases = append([]string(nil), diseases...)
	sort.Slice(diseases, func(i, j int) bool {
		di, dj := refdata.DiseaseIndex(diseases[i]), refdata.DiseaseIndex(diseases[j])
		if di != dj {
			return di < dj
		}
		return diseases[i] < diseases[j]
	})

	return base, enumerated, diseases
}

// writeCalculationError maps the calculation error taxonomy to a
// distinguishable, human-readable response. The client resets the result
// area to its placeholder; no partial value is ever returned.
func writeCalculationError(w http.ResponseWriter, err error) {
	kind := "calculation"
	var inputErr *risk.InputError
	var lookupErr *risk.LookupError
	var configErr *risk.ConfigError
	var degenerateErr *risk.DegenerateScaleError
	switch {
	case errors.As(err, &inputErr):
		kind = "input_validation"
	case errors.As(err, &lookupErr):
		kind = "lookup"
	case errors.As(err, &configErr):
		kind = "config"
	case errors.As(err, &degenerateErr):
		kind = "degenerate_scale"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(models.ErrorResponse{Kind: kind, Message: err.Error()})
}
