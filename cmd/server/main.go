package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"route-optimization-service/internal/adapters/cache"
	"route-optimization-service/internal/adapters/distance"
	"route-optimization-service/internal/adapters/repositories"
	"route-optimization-service/internal/api"
	"route-optimization-service/internal/config"
	"route-optimization-service/internal/platform/db"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"
	"route-optimization-service/internal/services"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, Mapbox/ORS) behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		obs.L().Info().Msg("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		obs.L().Fatal().Err(err).Msg("load config")
	}
	obs.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	obs.RegisterDefault()
	log := obs.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]ports.HealthChecker{}
	memCache := cache.NewMemoryMatrixCache(cfg.MatrixCacheTTL, 256)
	var redisCache, sqlCache ports.MatrixCache

	var repo ports.OrderRepository
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		defer conn.Close()

		if err := repositories.InitSchema(ctx, conn); err != nil {
			log.Fatal().Err(err).Msg("init schema")
		}

		pg := repositories.NewPostgresOrderRepository(conn)
		repo = pg
		checks["database"] = pg

		sc := cache.NewSQLMatrixCache(conn, cfg.MatrixCacheTTL)
		sqlCache = sc
		go purgeLoop(ctx, sc)
	} else {
		// Local runs serve the seed file from memory.
		mem, err := repositories.NewMemoryOrderRepositoryFromSeed(cfg.SeedPath)
		if err != nil {
			log.Fatal().Err(err).Str("seed_path", cfg.SeedPath).Msg("load seed")
		}
		repo = mem
		log.Warn().Str("seed_path", cfg.SeedPath).Msg("DATABASE_URL not set, serving seed data from memory")
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without redis matrix cache")
		} else {
			defer client.Close()
			rc := cache.NewRedisMatrixCache(client, cfg.MatrixCacheTTL)
			redisCache = rc
			checks["redis"] = rc
		}
	}

	provider, err := newProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create matrix provider")
	}
	if provider == nil {
		log.Warn().Msg("MATRIX_PROVIDER=none, all matrices use the haversine fallback")
	}

	builder := services.NewMatrixBuilder(services.MatrixStrategy{
		Primary:     provider,
		Fallback:    services.HaversineFallback{AverageSpeedKmh: cfg.Optimizer.AverageSpeedKmh},
		CallTimeout: cfg.ProviderTimeout,
	}, cache.NewTiered(memCache, redisCache, sqlCache), cfg.ProviderConcurrency)
	optimizer := services.NewOptimizer(repo, builder, cfg.Optimizer)

	router := api.NewRouter(api.Deps{
		Optimizer:        optimizer,
		Repo:             repo,
		Provider:         provider,
		Checks:           checks,
		BatchConcurrency: cfg.BatchConcurrency,
	})

	// Write timeout covers the solver budget plus cold-cache matrix fetches.
	solverBudget := time.Duration(cfg.Optimizer.SolverTimeLimitSeconds) * time.Second
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      solverBudget + 90*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", cfg.MatrixProvider).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), solverBudget+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newProvider returns nil when no external provider is configured.
func newProvider(cfg config.Config) (ports.TravelTimeProvider, error) {
	switch cfg.MatrixProvider {
	case "mapbox":
		return distance.NewMapboxMatrixProvider(cfg.MapboxToken, cfg.ProviderMaxLocations, cfg.ProviderTimeout, cfg.ProviderRPS)
	case "ors":
		return distance.NewORSMatrixProvider(cfg.ORSAPIKey, cfg.ProviderMaxLocations, cfg.ProviderTimeout, cfg.ProviderRPS)
	default:
		return nil, nil
	}
}

func purgeLoop(ctx context.Context, c *cache.SQLMatrixCache) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Purge(ctx)
			if err != nil && !errors.Is(err, sql.ErrConnDone) {
				obs.L().Warn().Err(err).Msg("matrix cache purge failed")
				continue
			}
			if n > 0 {
				obs.L().Info().Int64("rows", n).Msg("matrix cache purged")
			}
		}
	}
}
