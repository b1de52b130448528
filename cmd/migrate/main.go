package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gocomet/rider-service/internal/bootstrap"
	"github.com/gocomet/rider-service/internal/config"
	"github.com/gocomet/rider-service/internal/migration"
	"github.com/gocomet/rider-service/internal/repository/postgres"
	"github.com/gocomet/rider-service/internal/repository/redisgeo"
	"github.com/gocomet/rider-service/internal/service/availability"
	"github.com/gocomet/rider-service/pkg/cache"
	"github.com/gocomet/rider-service/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Maintenance tasks for the rider profile store",
	Long: `migrate applies the rider_profiles schema, rewrites pre-rename document
records onto the current catalog and rebuilds the Redis location index.`,
	SilenceUsage: true,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the rider_profiles table and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := bootstrap.Postgres(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.EnsureSchema(cmd.Context(), db); err != nil {
			return err
		}
		log.Info("Schema applied", logger.String("database", cfg.Database.Name))
		return nil
	},
}

var legacyDocumentsCmd = &cobra.Command{
	Use:   "legacy-documents",
	Short: "Move drivingLicense and nationalId records onto driversLicence and idDocument",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}

		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		repo, db, err := bootstrap.Profiles(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeDB(db)

		blobs, err := bootstrap.Blobs(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to create blob store: %w", err)
		}

		report, err := migration.NewLegacyDocuments(repo, blobs, log).Run(cmd.Context(), dryRun)
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex-locations",
	Short: "Rebuild the Redis location index from stored rider positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		repo, db, err := bootstrap.Profiles(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeDB(db)

		redisClient, err := bootstrap.Redis(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cache.Close(redisClient)

		svc := availability.NewService(repo, redisgeo.NewLocationIndex(redisClient), nil, log, availability.Config{})
		indexed, err := svc.RebuildIndex(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]int{"indexed": indexed})
	},
}

func init() {
	legacyDocumentsCmd.Flags().Bool("dry-run", false, "Report what would change without writing")

	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(legacyDocumentsCmd)
	rootCmd.AddCommand(reindexCmd)
}

func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := bootstrap.Logger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func closeDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
