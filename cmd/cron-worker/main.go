package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scoutledger/backend/internal/claims"
	"github.com/scoutledger/backend/internal/cron"
	"github.com/scoutledger/backend/internal/distribution"
	"github.com/scoutledger/backend/internal/leaderboard"
	"github.com/scoutledger/backend/internal/ownership"
	"github.com/scoutledger/backend/internal/rewards"
	"github.com/scoutledger/backend/internal/scouts"
	"github.com/scoutledger/backend/internal/stats"
	"github.com/scoutledger/backend/pkg/chain"
	"github.com/scoutledger/backend/pkg/config"
	"github.com/scoutledger/backend/pkg/db"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/metrics"
	"github.com/scoutledger/backend/pkg/migrate"
	"github.com/scoutledger/backend/pkg/outbox"
	"github.com/scoutledger/backend/pkg/redis"
)

func main() {
	runOnce := flag.String("run-once", "", "run a single job by name and exit (weekly-rewards, claim-reconcile, outbox-retention)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	registry, err := buildRegistry(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+envName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"season":      cfg.Season.StartWeek,
		"mode":        cfg.Rewards.Mode,
	})

	if *runOnce != "" {
		if err := service.RunOnce(ctx, *runOnce); err != nil {
			logg.Error(ctx, "cron job failed", err)
			os.Exit(1)
		}
		return
	}

	metrics.Serve(ctx, logg, cfg.Cron.MetricsAddr, prometheus.DefaultGatherer)
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	season, err := rewards.NewSeason(cfg.Season)
	if err != nil {
		return nil, err
	}
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	scoutRepo := scouts.NewRepository(conn)
	rewardMetrics := metrics.NewRewardMetrics(prometheus.DefaultRegisterer)

	board, err := leaderboard.NewService(leaderboard.NewRepository(conn), redisClient, logg)
	if err != nil {
		return nil, err
	}
	resolver, err := ownership.NewResolver(ownership.NewRepository(conn), scoutRepo)
	if err != nil {
		return nil, err
	}
	statsSvc, err := stats.NewService(dbClient, stats.NewRepository(conn), logg)
	if err != nil {
		return nil, err
	}
	claimsRepo := claims.NewRepository(conn)
	snapshotter := claims.NewSnapshotter(claimsRepo, emitter, logg)

	weekly, err := distribution.NewWeeklyService(distribution.WeeklyServiceParams{
		Tx:       dbClient,
		Repo:     distribution.NewRepository(conn),
		Ranker:   board,
		Resolver: resolver,
		Wallets:  scoutRepo,
		Emitter:  emitter,
		Claims:   snapshotter,
		Stats:    statsSvc,
		Season:   season,
		Rewards:  cfg.Rewards,
		Metrics:  rewardMetrics,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	weeklyJob, err := cron.NewWeeklyRewardsJob(cron.WeeklyRewardsJobParams{
		Logger:      logg,
		Distributor: weekly,
		Season:      season,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		DLQ:        outbox.NewDLQRepository(conn),
	})
	if err != nil {
		return nil, err
	}
	registry := cron.NewRegistry(weeklyJob, retentionJob)

	if cfg.Chain.RPCURL == "" {
		logg.Warn(context.Background(), "chain rpc url not configured; claim reconcile disabled")
		return registry, nil
	}
	evmClient, err := chain.DialEVMClient(cfg.Chain.RPCURL)
	if err != nil {
		return nil, err
	}
	claimsSvc, err := claims.NewService(claims.ServiceParams{
		Tx:          dbClient,
		Repo:        claimsRepo,
		Snapshotter: snapshotter,
		Wallets:     scoutRepo,
		Verifier:    chain.NewEVMVerifier(evmClient, common.HexToAddress(cfg.Chain.ClaimsContract), cfg.Chain.Confirmations),
		Emitter:     emitter,
		Chain:       cfg.Chain,
		Metrics:     rewardMetrics,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}
	reconcileJob, err := cron.NewClaimReconcileJob(cron.ClaimReconcileJobParams{Logger: logg, Reconciler: claimsSvc})
	if err != nil {
		return nil, err
	}
	registry.Register(reconcileJob)
	return registry, nil
}

func envName(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
