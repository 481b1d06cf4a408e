package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/legalease-api/internal/config"
	"github.com/BerylCAtieno/legalease-api/internal/db"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

var (
	rootCmd = &cobra.Command{
		Use:   "legalease",
		Short: "Legal document analysis API",
		Long: `LegalEase accepts legal documents, extracts their text, and produces
plain-language summaries, risk analyses and answers to questions about them.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite migrations and exit",
		RunE:  runMigrate,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		utils.NewLogger("error").Fatal("Command failed", "error", err)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := utils.NewLogger(cfg.LogLevel)

	if cfg.StoreBackend != config.StoreSQLite {
		logger.Info("Store backend has no migrations", "backend", cfg.StoreBackend)
		return nil
	}
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied", "database", cfg.DatabaseURL)
	return nil
}
