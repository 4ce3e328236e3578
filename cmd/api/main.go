package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/scoutledger/backend/api/routes"
	"github.com/scoutledger/backend/internal/claims"
	"github.com/scoutledger/backend/internal/leaderboard"
	"github.com/scoutledger/backend/internal/rewards"
	"github.com/scoutledger/backend/internal/scouts"
	"github.com/scoutledger/backend/pkg/config"
	"github.com/scoutledger/backend/pkg/db"
	"github.com/scoutledger/backend/pkg/instance"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/migrate"
	"github.com/scoutledger/backend/pkg/outbox"
	"github.com/scoutledger/backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	season, err := rewards.NewSeason(cfg.Season)
	if err != nil {
		logg.Error(context.Background(), "invalid season config", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	claimsRepo := claims.NewRepository(conn)
	snapshotter := claims.NewSnapshotter(claimsRepo, emitter, logg)
	claimsSvc, err := claims.NewService(claims.ServiceParams{
		Tx:          dbClient,
		Repo:        claimsRepo,
		Snapshotter: snapshotter,
		Wallets:     scouts.NewRepository(conn),
		Emitter:     emitter,
		Chain:       cfg.Chain,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create claims service", err)
		os.Exit(1)
	}
	board, err := leaderboard.NewService(leaderboard.NewRepository(conn), redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create leaderboard service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"season":   season.ID(),
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(cfg, logg, dbClient, redisClient, redisClient, routes.Services{
		Balances:    claimsSvc,
		Points:      claimsSvc,
		Proofs:      snapshotter,
		Onchain:     claimsSvc,
		Leaderboard: board,
		SeasonID:    season.ID(),
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
