package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BerylCAtieno/legalease-api/internal/handlers"
	"github.com/BerylCAtieno/legalease-api/internal/middleware"
	"github.com/BerylCAtieno/legalease-api/internal/observability"
	"github.com/BerylCAtieno/legalease-api/internal/ratelimit"
	"github.com/BerylCAtieno/legalease-api/internal/services"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

// Pinger reports whether the document store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Documents   services.DocumentService
	Questions   services.QAService
	Gate        *ratelimit.Gate
	Store       Pinger
	Metrics     *observability.Metrics
	Gatherer    prometheus.Gatherer
	ClientIPs   *middleware.ClientIPs
	ClientURL   string
	AdminToken  string
	MaxFileSize int64
	Logger      *utils.Logger
}

func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger, d.Metrics))
	r.Use(middleware.CORS(d.ClientURL))

	docHandler := handlers.NewDocumentHandler(d.Documents, d.MaxFileSize, d.Logger)
	qaHandler := handlers.NewQAHandler(d.Questions, d.Logger)

	limit := func(class ratelimit.Class, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(d.Gate, class, d.ClientIPs, d.Metrics)(h)
	}

	r.HandleFunc("/health", healthHandler(d.Store, d.Logger)).Methods(http.MethodGet)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// Admin routes exist only when a token is configured
	if d.AdminToken != "" {
		adminHandler := handlers.NewRateLimitHandler(d.Gate, d.Logger)
		admin := r.PathPrefix("/admin").Subrouter()
		admin.Use(middleware.RequireToken(d.AdminToken))
		admin.HandleFunc("/rate-limits/{class}/{key}", adminHandler.GetStatus).Methods(http.MethodGet)
		admin.HandleFunc("/rate-limits/{class}/{key}", adminHandler.Reset).Methods(http.MethodDelete)
	}

	// Everything below shares the general budget
	api := r.NewRoute().Subrouter()
	api.Use(middleware.RateLimit(d.Gate, ratelimit.ClassGeneral, d.ClientIPs, d.Metrics))

	// Documents
	api.Handle("/documents", limit(ratelimit.ClassUpload, docHandler.UploadDocument)).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/documents", docHandler.ListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", docHandler.GetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", docHandler.DeleteDocument).Methods(http.MethodDelete, http.MethodOptions)
	api.Handle("/documents/{id}/retry", limit(ratelimit.ClassAI, docHandler.RetryProcessing)).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/documents/{id}/summary/regenerate", limit(ratelimit.ClassAI, docHandler.RegenerateSummary)).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/documents/{id}/risks/regenerate", limit(ratelimit.ClassAI, docHandler.RegenerateRisks)).Methods(http.MethodPost, http.MethodOptions)

	// Questions
	api.Handle("/documents/{id}/questions", limit(ratelimit.ClassQA, qaHandler.AskQuestion)).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/documents/{id}/questions", qaHandler.GetHistory).Methods(http.MethodGet)
	api.Handle("/documents/{id}/questions/batch", limit(ratelimit.ClassAI, qaHandler.AskBatch)).Methods(http.MethodPost, http.MethodOptions)

	// AI
	api.Handle("/clauses/explain", limit(ratelimit.ClassAI, qaHandler.ExplainClause)).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/ai/status", qaHandler.Status).Methods(http.MethodGet)

	return r
}

func healthHandler(store Pinger, logger *utils.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Error("Health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}
}
