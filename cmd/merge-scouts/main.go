package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/scoutledger/backend/internal/merge"
	"github.com/scoutledger/backend/internal/rewards"
	"github.com/scoutledger/backend/internal/scouts"
	"github.com/scoutledger/backend/internal/stats"
	"github.com/scoutledger/backend/pkg/config"
	"github.com/scoutledger/backend/pkg/db"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/outbox"
)

func main() {
	retained := flag.String("retained", "", "id of the scout account that survives the merge")
	merged := flag.String("merged", "", "id of the scout account folded into the retained one")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "merge-scouts"})
	_ = godotenv.Load()

	req, err := parseRequest(*retained, *merged)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "merge-scouts",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"retained_id": req.RetainedID.String(),
		"merged_id":   req.MergedID.String(),
	})

	season, err := rewards.NewSeason(cfg.Season)
	requireResource(ctx, logg, "season", err)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	conn := dbClient.DB()
	statsSvc, err := stats.NewService(dbClient, stats.NewRepository(conn), logg)
	requireResource(ctx, logg, "stats service", err)

	svc, err := merge.NewService(merge.ServiceParams{
		Tx:              dbClient,
		Repo:            merge.NewRepository(conn),
		Scouts:          scouts.NewRepository(conn),
		Emitter:         outbox.NewService(outbox.NewRepository(conn), logg),
		Stats:           statsSvc,
		Season:          season.ID(),
		MaxStarterPacks: cfg.Rewards.MaxStarterPacks,
		Logger:          logg,
	})
	requireResource(ctx, logg, "merge service", err)

	result, err := svc.Merge(ctx, req)
	if err != nil {
		logg.Error(ctx, "merge failed", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	requireResource(ctx, logg, "result encoding", err)
	fmt.Println(string(out))
}

func parseRequest(retained, merged string) (merge.Request, error) {
	retainedID, err := uuid.Parse(retained)
	if err != nil {
		return merge.Request{}, fmt.Errorf("invalid -retained %q: %w", retained, err)
	}
	mergedID, err := uuid.Parse(merged)
	if err != nil {
		return merge.Request{}, fmt.Errorf("invalid -merged %q: %w", merged, err)
	}
	return merge.Request{RetainedID: retainedID, MergedID: mergedID}, nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
