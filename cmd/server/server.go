package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/legalease-api/internal/analyzer"
	"github.com/BerylCAtieno/legalease-api/internal/config"
	"github.com/BerylCAtieno/legalease-api/internal/db"
	"github.com/BerylCAtieno/legalease-api/internal/extractor"
	"github.com/BerylCAtieno/legalease-api/internal/middleware"
	"github.com/BerylCAtieno/legalease-api/internal/observability"
	"github.com/BerylCAtieno/legalease-api/internal/ratelimit"
	"github.com/BerylCAtieno/legalease-api/internal/repository"
	"github.com/BerylCAtieno/legalease-api/internal/router"
	"github.com/BerylCAtieno/legalease-api/internal/services"
	"github.com/BerylCAtieno/legalease-api/internal/storage"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

const rateLimitSweepInterval = time.Minute

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := utils.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Failed to close resource", "error", err)
			}
		}
	}()

	repo, closeRepo, err := newRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeRepo)

	blob, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}
	logger.Info("Blob storage ready", "backend", blob.Name())

	ext, closeExt, err := newExtractor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeExt)

	provider, closeProvider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeProvider)

	an := analyzer.NewAnalyzer(provider, logger, analyzer.WithRateLimit(cfg.GenerationRPS, cfg.GenerationBurst))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	limits := make(map[ratelimit.Class]ratelimit.Limit, len(cfg.RateLimits))
	for class, l := range cfg.RateLimits {
		limits[ratelimit.Class(class)] = ratelimit.Limit{Points: l.Points, Duration: l.Duration()}
	}
	gate := ratelimit.NewGate(limits, logger)
	go gate.Run(ctx, rateLimitSweepInterval)

	ips, err := middleware.NewClientIPs(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	handler := router.NewRouter(router.Deps{
		Documents:   services.NewDocumentService(repo, blob, ext, an, metrics, logger),
		Questions:   services.NewQAService(repo, an, ext, cfg.BatchQuestionInterval, metrics, logger),
		Gate:        gate,
		Store:       repo,
		Metrics:     metrics,
		Gatherer:    reg,
		ClientIPs:   ips,
		ClientURL:   cfg.ClientURL,
		AdminToken:  cfg.AdminToken,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads wait on extraction and two generation calls
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			"port", cfg.Port,
			"store", cfg.StoreBackend,
			"extractor", ext.Name(),
			"provider", provider.Name(),
			"model", provider.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func newRepository(ctx context.Context, cfg *config.Config, logger *utils.Logger) (repository.Repository, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := repository.NewFirestoreClient(ctx, cfg.GCPProjectID, cfg.FirestoreDatabaseID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to firestore: %w", err)
		}
		logger.Info("Using firestore store", "project", cfg.GCPProjectID)
		return repository.NewFirestoreRepository(client), client.Close, nil
	case config.StoreMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryRepository(), func() error { return nil }, nil
	default:
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		database, err := db.NewSQLiteDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Using sqlite store", "database", cfg.DatabaseURL)
		return repository.NewRepository(database), database.Close, nil
	}
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.BlobBackend {
	case config.BlobGCS:
		return storage.NewGCSStorage(ctx, cfg.GCSBucketName)
	case config.BlobMemory:
		return storage.NewMemoryStorage(), nil
	default:
		return storage.NewS3Storage(ctx, cfg)
	}
}

// newExtractor uses Document AI when a processor is configured and falls back
// to local text extraction otherwise.
func newExtractor(ctx context.Context, cfg *config.Config, logger *utils.Logger) (extractor.Extractor, func() error, error) {
	if cfg.DocumentAIProcessor == "" {
		logger.Warn("DOCUMENT_AI_PROCESSOR_ID not set, using local extraction; images are not supported")
		return extractor.NewLocalExtractor(logger), func() error { return nil }, nil
	}
	ext, err := extractor.NewDocumentAIExtractor(ctx, extractor.DocumentAIConfig{
		ProjectID:   cfg.GCPProjectID,
		Location:    cfg.DocumentAILocation,
		ProcessorID: cfg.DocumentAIProcessor,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize document ai: %w", err)
	}
	return ext, ext.Close, nil
}

func newProvider(ctx context.Context, cfg *config.Config, logger *utils.Logger) (analyzer.Provider, func() error, error) {
	switch cfg.GenerationProvider {
	case config.ProviderOpenRouter:
		p := analyzer.NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL, logger)
		return p, func() error { return nil }, nil
	default:
		p, err := analyzer.NewVertexProvider(ctx, cfg.GCPProjectID, cfg.VertexAILocation, cfg.VertexAIModel, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vertex ai: %w", err)
		}
		return p, p.Close, nil
	}
}
