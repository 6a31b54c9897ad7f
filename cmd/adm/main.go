// Package main provides the main entry point for the eduassist admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"eduassist/cmd/adm/commands"
	"eduassist/internal/config"
	"eduassist/internal/database"
	"eduassist/internal/observability"
	"eduassist/internal/services"

	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *observability.Logger
)

func main() {
	ctx := context.Background()

	var err error
	cfg, err = config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Quiet logging and no telemetry for the admin CLI
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	tp, mp, loggerInstance, err := observability.SetupObservability(&cfg.OpenTelemetry, "eduassist-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger = loggerInstance

	defer func() {
		if tp != nil {
			if err := tp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error(), "db_url": cfg.Database.URL})
		}
	}()

	userService := services.NewUserService(db, cfg, logger)
	questionService := services.NewQuestionService(db, logger, cfg)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Eduassist Administration Tool",
		Long: `Eduassist Administration Tool

A CLI tool for administering the eduassist backend.
Provides commands for user management, database operations, and content seeding.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(userService, logger, cfg.Database.URL))
	rootCmd.AddCommand(commands.DatabaseCommands(dbManager, logger, db, cfg.Database.URL))
	rootCmd.AddCommand(commands.SeedCommands(questionService, logger, db))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
