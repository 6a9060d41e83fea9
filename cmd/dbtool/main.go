package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"route-optimization-service/internal/adapters/cache"
	"route-optimization-service/internal/adapters/repositories"
	"route-optimization-service/internal/config"
	"route-optimization-service/internal/platform/db"
	"route-optimization-service/internal/platform/obs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		obs.L().Info().Msg("No .env file found (using environment variables)")
	}
	obs.Setup(config.Get("LOG_LEVEL", "info"), config.Get("LOG_FORMAT", "console"), os.Stderr)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type toolOptions struct {
	databaseURL string
	seedPath    string
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &toolOptions{}

	cmd := &cobra.Command{
		Use:          "dbtool",
		Short:        "Prepare the route optimization database",
		SilenceUsage: true,
		// With no subcommand, initialize the schema and load the seed file.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), opts, func(ctx context.Context, conn *sql.DB) error {
				return initAndSeed(ctx, conn, opts.seedPath)
			})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	cmd.PersistentFlags().StringVar(&opts.seedPath, "seed", config.Get("SEED_PATH", "data/seeds/depots.json"), "seed file with depots and orders")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall deadline")

	cmd.AddCommand(newInitCmd(opts), newSeedCmd(opts), newPurgeCmd(opts))
	return cmd
}

func newInitCmd(opts *toolOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), opts, func(ctx context.Context, conn *sql.DB) error {
				if err := repositories.InitSchema(ctx, conn); err != nil {
					return fmt.Errorf("schema initialization failed: %w", err)
				}
				obs.L().Info().Msg("Schema ready.")
				return nil
			})
		},
	}
}

func newSeedCmd(opts *toolOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert depots and orders from the seed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), opts, func(ctx context.Context, conn *sql.DB) error {
				if err := repositories.SeedFromJSON(ctx, conn, opts.seedPath); err != nil {
					return fmt.Errorf("seeding failed: %w", err)
				}
				obs.L().Info().Str("seed_path", opts.seedPath).Msg("Seeding complete.")
				return nil
			})
		},
	}
}

func newPurgeCmd(opts *toolOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "purge-cache",
		Short: "Delete matrix cache rows older than the TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), opts, func(ctx context.Context, conn *sql.DB) error {
				n, err := cache.NewSQLMatrixCache(conn, ttl).Purge(ctx)
				if err != nil {
					return fmt.Errorf("purge matrix cache: %w", err)
				}
				obs.L().Info().Int64("rows", n).Dur("ttl", ttl).Msg("Matrix cache purged.")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", config.GetDuration("MATRIX_CACHE_TTL", 24*time.Hour), "age after which entries are removed")
	return cmd
}

func withDB(parent context.Context, opts *toolOptions, fn func(context.Context, *sql.DB) error) error {
	if strings.TrimSpace(opts.databaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, opts.timeout)
	defer cancel()

	conn, err := db.Open(ctx, opts.databaseURL)
	if err != nil {
		obs.L().Error().Err(err).Msg("open database")
		return err
	}
	defer conn.Close()

	if err := fn(ctx, conn); err != nil {
		obs.L().Error().Err(err).Msg("dbtool failed")
		return err
	}
	return nil
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string) error {
	log := obs.L()

	log.Info().Msg("Initializing database schema...")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Info().Msg("Schema ready.")

	log.Info().Str("seed_path", seedPath).Msg("Seeding database...")
	if err := repositories.SeedFromJSON(ctx, conn, seedPath); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Info().Msg("Seeding complete.")

	return nil
}
