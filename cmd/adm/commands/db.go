// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"os"

	"eduassist/internal/database"
	"eduassist/internal/observability"
	contextutils "eduassist/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(dbManager *database.Manager, logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for eduassist.

Available commands:
  migrate - Apply pending schema migrations
  stats   - Show database statistics`,
	}

	dbCmd.AddCommand(migrateCmd(dbManager, logger, databaseURL))
	dbCmd.AddCommand(statsCmd(logger, db))

	return dbCmd
}

// migrateCmd returns the migrate command
func migrateCmd(dbManager *database.Manager, logger *observability.Logger, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  `Apply all pending schema migrations to the configured database.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Running migrations", map[string]interface{}{"database_url": maskDatabaseURL(databaseURL)})
			if err := dbManager.RunMigrations(databaseURL); err != nil {
				logger.Error(ctx, "Migrations failed", err, map[string]interface{}{})
				return contextutils.WrapError(err, "migrations failed")
			}
			logger.Info(ctx, "Migrations applied successfully", map[string]interface{}{})
			return nil
		},
	}
}

// statsCmd returns the stats command
func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show row counts for the core tables.`,
		RunE:  runStats(logger, db),
	}
}

// runStats returns a function that shows database statistics
func runStats(logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("EDUASSIST_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		if db == nil {
			return contextutils.ErrorWithContextf("database connection not available")
		}

		counts := map[string]interface{}{}
		for _, table := range []string{"users", "subjects", "topics", "questions", "quizzes", "quiz_attempts", "recommendations"} {
			var count int
			if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
				logger.Error(ctx, "Failed to count table rows", err, map[string]interface{}{"table": table})
				return contextutils.WrapErrorf(err, "failed to count rows in %s", table)
			}
			counts[table] = count
		}

		logger.Info(ctx, "Database statistics", counts)
		return nil
	}
}
