package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/internal/leaderboard"
	"github.com/scoutledger/backend/internal/ownership"
	"github.com/scoutledger/backend/internal/rewards"
	"github.com/scoutledger/backend/pkg/config"
	dbtypes "github.com/scoutledger/backend/pkg/db/types"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/metrics"
	"github.com/scoutledger/backend/pkg/outbox"
	"github.com/scoutledger/backend/pkg/outbox/payloads"
)

const jobActor = "weekly-rewards"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ranker interface {
	Live(ctx context.Context, season, week string, n int) ([]leaderboard.Entry, error)
}

type holdingsResolver interface {
	Resolve(ctx context.Context, builderID uuid.UUID, season string, week isoweek.Week) (*ownership.Holdings, error)
}

type walletLookup interface {
	PrimaryWallet(ctx context.Context, scoutID uuid.UUID) (string, bool, error)
}

// ClaimPublisher snapshots a week's token receipts inside the payout transaction.
type ClaimPublisher interface {
	PublishTx(ctx context.Context, tx *gorm.DB, season, week string) (*models.WeeklyClaim, error)
}

// StatsRecomputer refreshes materialized scout stats after receipts change.
type StatsRecomputer interface {
	RecomputeScouts(ctx context.Context, season string, scoutIDs []uuid.UUID) error
}

// WeeklyServiceParams wires a WeeklyService.
type WeeklyServiceParams struct {
	Tx       txRunner
	Repo     *Repository
	Ranker   ranker
	Resolver holdingsResolver
	Wallets  walletLookup
	Emitter  outbox.Emitter
	Claims   ClaimPublisher
	Stats    StatsRecomputer
	Season   *rewards.Season
	Rewards  config.RewardsConfig
	Metrics  *metrics.RewardMetrics
	Logger   *logger.Logger
}

// WeeklyService turns a closed week's leaderboard into receipts and, in token mode,
// a published claim snapshot.
type WeeklyService struct {
	tx          txRunner
	repo        *Repository
	ranker      ranker
	resolver    holdingsResolver
	wallets     walletLookup
	emitter     outbox.Emitter
	claims      ClaimPublisher
	stats       StatsRecomputer
	season      *rewards.Season
	split       PoolSplit
	tokens      bool
	topN        int
	parallelism int
	metrics     *metrics.RewardMetrics
	logg        *logger.Logger
}

// WeeklyResult summarizes one run.
type WeeklyResult struct {
	Season      string
	Week        string
	Mode        string
	Builders    int
	Skipped     int
	Receipts    int
	Budget      string
	Distributed string
	Claim       *models.WeeklyClaim
}

func NewWeeklyService(p WeeklyServiceParams) (*WeeklyService, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("distribution repository required")
	case p.Ranker == nil:
		return nil, fmt.Errorf("leaderboard required")
	case p.Resolver == nil:
		return nil, fmt.Errorf("ownership resolver required")
	case p.Wallets == nil:
		return nil, fmt.Errorf("wallet lookup required")
	case p.Emitter == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case p.Season == nil:
		return nil, fmt.Errorf("season required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	split := PoolSplitFromConfig(p.Rewards)
	if err := split.Validate(); err != nil {
		return nil, err
	}
	tokens := p.Rewards.TokenMode()
	if tokens && p.Claims == nil {
		return nil, fmt.Errorf("claim publisher required in token mode")
	}
	parallelism := p.Rewards.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &WeeklyService{
		tx:          p.Tx,
		repo:        p.Repo,
		ranker:      p.Ranker,
		resolver:    p.Resolver,
		wallets:     p.Wallets,
		emitter:     p.Emitter,
		claims:      p.Claims,
		stats:       p.Stats,
		season:      p.Season,
		split:       split,
		tokens:      tokens,
		topN:        p.Rewards.TopBuilders,
		parallelism: parallelism,
		metrics:     p.Metrics,
		logg:        p.Logger,
	}, nil
}

func (s *WeeklyService) mode() string {
	if s.tokens {
		return config.RewardsModeTokens
	}
	return config.RewardsModePoints
}

// builderPlan holds one builder's receipts before they are written.
type builderPlan struct {
	entry  leaderboard.Entry
	pool   string
	points []models.PointsReceipt
	tokens []models.TokensReceipt
	scouts []uuid.UUID
}

type weeklyPlan struct {
	budget      string
	distributed string
	builders    []builderPlan
}

// builderFailure tags an error with the builder whose distribution raised it.
type builderFailure struct {
	builderID uuid.UUID
	err       error
}

func (f *builderFailure) Error() string { return fmt.Sprintf("builder %s: %v", f.builderID, f.err) }
func (f *builderFailure) Unwrap() error { return f.err }

// Distribute pays out week. Rerunning a week that was already paid writes nothing new.
// A data integrity failure blocks the whole week and raises an alert.
func (s *WeeklyService) Distribute(ctx context.Context, week isoweek.Week) (*WeeklyResult, error) {
	ctx = s.logg.WithSeason(ctx, s.season.ID())
	ctx = s.logg.WithWeek(ctx, week.String())
	ctx = s.logg.WithField(ctx, "mode", s.mode())

	if _, err := s.season.WeekIndex(week); err != nil {
		return nil, err
	}
	entries, err := s.ranker.Live(ctx, s.season.ID(), week.String(), s.topN)
	if err != nil {
		return nil, err
	}

	var plan *weeklyPlan
	if s.tokens {
		plan, err = s.planTokens(ctx, week, entries)
	} else {
		plan, err = s.planPoints(ctx, week, entries)
	}
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity) {
			s.block(ctx, week, err)
		}
		return nil, err
	}

	result, err := s.commit(ctx, week, entries, plan)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDistribution(s.mode(), s.budgetFloat(plan.budget), result.Builders, result.Receipts)
	s.recomputeStats(ctx, plan)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"builders": result.Builders,
		"skipped":  result.Skipped,
		"receipts": result.Receipts,
	}), "weekly rewards distributed")
	return result, nil
}

// Distributed reports whether week has already been paid out.
func (s *WeeklyService) Distributed(ctx context.Context, week isoweek.Week) (bool, error) {
	done, err := s.repo.RunRecorded(ctx, WeekAggregateID(s.season.ID(), week.String()))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check weekly run")
	}
	return done, nil
}

// Season is the season the service pays out.
func (s *WeeklyService) Season() *rewards.Season {
	return s.season
}

func (s *WeeklyService) planPoints(ctx context.Context, week isoweek.Week, entries []leaderboard.Entry) (*weeklyPlan, error) {
	budget, err := s.season.WeeklyPointsBudget(week)
	if err != nil {
		return nil, err
	}
	curve, err := rewards.NewCurve[float64](rewards.Points{}, s.season.Decay)
	if err != nil {
		return nil, err
	}
	allocs, err := rewards.Allocate(curve, budget, ranksOf(entries))
	if err != nil {
		return nil, err
	}

	plans := make([]builderPlan, len(entries))
	err = s.forEachBuilder(ctx, entries, func(ctx context.Context, i int, entry leaderboard.Entry) error {
		holdings, err := s.resolver.Resolve(ctx, entry.BuilderID, s.season.ID(), week)
		if err != nil {
			return err
		}
		split, err := SplitPoints(s.split, PointsInput{
			Rank:    entry.Rank,
			Pool:    allocs[i].Normalized,
			Supply:  holdings.Supply,
			Holders: holdings.ByScout,
		})
		if err != nil {
			return err
		}
		plan := builderPlan{entry: entry, pool: formatPoints(allocs[i].Normalized)}
		builderID := entry.BuilderID
		if split.BuilderReward > 0 {
			plan.points = append(plan.points, s.pointsReceipt(week, builderID, split.BuilderReward))
			plan.scouts = append(plan.scouts, builderID)
		}
		for _, scoutID := range sortedScouts(split.Holders) {
			plan.points = append(plan.points, s.pointsReceipt(week, scoutID, split.Holders[scoutID]))
			plan.scouts = append(plan.scouts, scoutID)
		}
		plans[i] = plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	var total float64
	for _, p := range plans {
		for _, r := range p.points {
			total += r.Value
		}
	}
	return &weeklyPlan{budget: formatPoints(budget), distributed: formatPoints(total), builders: plans}, nil
}

func (s *WeeklyService) planTokens(ctx context.Context, week isoweek.Week, entries []leaderboard.Entry) (*weeklyPlan, error) {
	budget, err := s.season.WeeklyTokenBudget(week)
	if err != nil {
		return nil, err
	}
	curve, err := rewards.NewCurve[*uint256.Int](rewards.Tokens{}, s.season.Decay)
	if err != nil {
		return nil, err
	}
	allocs, err := rewards.Allocate(curve, budget, ranksOf(entries))
	if err != nil {
		return nil, err
	}

	plans := make([]builderPlan, len(entries))
	err = s.forEachBuilder(ctx, entries, func(ctx context.Context, i int, entry leaderboard.Entry) error {
		holdings, err := s.resolver.Resolve(ctx, entry.BuilderID, s.season.ID(), week)
		if err != nil {
			return err
		}
		split, err := SplitTokens(s.split, TokensInput{
			Rank:    entry.Rank,
			Pool:    allocs[i].Normalized,
			Supply:  holdings.Supply,
			Holders: holdings.ByWallet,
		})
		if err != nil {
			return err
		}
		plan := builderPlan{entry: entry, pool: allocs[i].Normalized.Dec()}
		builderID := entry.BuilderID
		if !split.BuilderReward.IsZero() {
			wallet, ok, err := s.wallets.PrimaryWallet(ctx, builderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load builder wallet")
			}
			if ok {
				plan.tokens = append(plan.tokens, s.tokensReceipt(week, wallet, &builderID, split.BuilderReward))
				plan.scouts = append(plan.scouts, builderID)
			} else {
				s.logg.Warn(s.logg.WithBuilderID(ctx, builderID.String()), "builder has no wallet; builder share not receipted")
			}
		}
		for _, wallet := range sortedWallets(split.Holders) {
			var recipient *uuid.UUID
			if id, ok := holdings.Owners[wallet]; ok {
				id := id
				recipient = &id
				plan.scouts = append(plan.scouts, id)
			}
			plan.tokens = append(plan.tokens, s.tokensReceipt(week, wallet, recipient, split.Holders[wallet]))
		}
		plans[i] = plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := new(uint256.Int)
	for _, p := range plans {
		for _, r := range p.tokens {
			total.Add(total, &r.Value.Int)
		}
	}
	return &weeklyPlan{budget: budget.Dec(), distributed: total.Dec(), builders: plans}, nil
}

// forEachBuilder runs fn for every entry with bounded parallelism. Each call writes
// only its own index so no state is shared between goroutines.
func (s *WeeklyService) forEachBuilder(ctx context.Context, entries []leaderboard.Entry, fn func(ctx context.Context, i int, entry leaderboard.Entry) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			bctx := s.logg.WithBuilderID(gctx, entry.BuilderID.String())
			if err := fn(bctx, i, entry); err != nil {
				return &builderFailure{builderID: entry.BuilderID, err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *WeeklyService) commit(ctx context.Context, week isoweek.Week, entries []leaderboard.Entry, plan *weeklyPlan) (*WeeklyResult, error) {
	result := &WeeklyResult{
		Season:      s.season.ID(),
		Week:        week.String(),
		Mode:        s.mode(),
		Budget:      plan.budget,
		Distributed: plan.distributed,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SaveRanks(ctx, week.String(), entries); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ranks")
		}
		for _, bp := range plan.builders {
			paid, err := repo.PayoutExists(ctx, bp.entry.BuilderID, week.String())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check gems payout")
			}
			if paid {
				result.Skipped++
				continue
			}
			metadata, err := json.Marshal(map[string]any{
				"rank":  bp.entry.Rank,
				"gems":  bp.entry.GemsCollected,
				"pool":  bp.pool,
				"mode":  s.mode(),
				"split": s.split,
			})
			if err != nil {
				return err
			}
			event := &models.BuilderEvent{
				BuilderID: bp.entry.BuilderID,
				Type:      enums.BuilderEventGemsPayout,
				Season:    s.season.ID(),
				Week:      week.String(),
				Metadata:  metadata,
			}
			if err := repo.CreatePayoutEvent(ctx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gems payout")
			}
			for i := range bp.points {
				bp.points[i].EventID = event.ID
			}
			for i := range bp.tokens {
				bp.tokens[i].EventID = event.ID
			}
			if err := repo.CreatePointsReceipts(ctx, bp.points); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create points receipts")
			}
			if err := repo.CreateTokensReceipts(ctx, bp.tokens); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tokens receipts")
			}
			result.Builders++
			result.Receipts += len(bp.points) + len(bp.tokens)
		}

		if err := s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWeeklyRewardsDistributed,
			AggregateType: enums.AggregateSeasonWeek,
			AggregateID:   WeekAggregateID(s.season.ID(), week.String()),
			Actor:         &outbox.ActorRef{Job: jobActor},
			Data: payloads.WeeklyRewardsDistributedEvent{
				Season:           s.season.ID(),
				Week:             week.String(),
				Mode:             s.mode(),
				Builders:         result.Builders,
				Receipts:         result.Receipts,
				WeeklyBudget:     plan.budget,
				TotalDistributed: plan.distributed,
			},
		}); err != nil {
			return err
		}

		if s.tokens {
			claim, err := s.claims.PublishTx(ctx, tx, s.season.ID(), week.String())
			if err != nil {
				return err
			}
			result.Claim = claim
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// block records an alert for a week whose payout was halted.
func (s *WeeklyService) block(ctx context.Context, week isoweek.Week, cause error) {
	s.metrics.IncPayoutBlocked(s.mode())
	payload := payloads.WeeklyPayoutBlockedEvent{
		Season: s.season.ID(),
		Week:   week.String(),
		Mode:   s.mode(),
		Code:   string(pkgerrors.CodeDataIntegrity),
		Reason: cause.Error(),
	}
	var failure *builderFailure
	if errors.As(cause, &failure) {
		id := failure.builderID
		payload.BuilderID = &id
		ctx = s.logg.WithBuilderID(ctx, id.String())
	}
	s.logg.Error(ctx, "weekly payout blocked", cause)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWeeklyPayoutBlocked,
			AggregateType: enums.AggregateSeasonWeek,
			AggregateID:   WeekAggregateID(s.season.ID(), week.String()),
			Actor:         &outbox.ActorRef{Job: jobActor},
			Data:          payload,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "failed to record payout blocked alert", err)
	}
}

func (s *WeeklyService) recomputeStats(ctx context.Context, plan *weeklyPlan) {
	if s.stats == nil {
		return
	}
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, bp := range plan.builders {
		for _, id := range bp.scouts {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if err := s.stats.RecomputeScouts(ctx, s.season.ID(), ids); err != nil {
		s.logg.Error(ctx, "season stats recompute failed", err)
	}
}

func (s *WeeklyService) pointsReceipt(week isoweek.Week, recipient uuid.UUID, value float64) models.PointsReceipt {
	id := recipient
	return models.PointsReceipt{RecipientID: &id, Value: value, Season: s.season.ID(), Week: week.String()}
}

func (s *WeeklyService) tokensReceipt(week isoweek.Week, wallet string, recipient *uuid.UUID, value *uint256.Int) models.TokensReceipt {
	return models.TokensReceipt{
		RecipientAddress: wallet,
		RecipientID:      recipient,
		Value:            dbtypes.NewUint256(value),
		Season:           s.season.ID(),
		Week:             week.String(),
	}
}

func (s *WeeklyService) budgetFloat(budget string) float64 {
	if !s.tokens {
		f, _ := strconv.ParseFloat(budget, 64)
		return f
	}
	v, err := uint256.FromDecimal(budget)
	if err != nil {
		return 0
	}
	return rewards.Tokens{}.Float(v)
}

var weekNamespace = uuid.MustParse("5b0f6f7e-9d43-4c1e-8c39-2d9a1f3e6a10")

// WeekAggregateID is the stable outbox aggregate id of a season week.
func WeekAggregateID(season, week string) uuid.UUID {
	return uuid.NewSHA1(weekNamespace, []byte(season+"/"+week))
}

func ranksOf(entries []leaderboard.Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Rank
	}
	return out
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedScouts(m map[uuid.UUID]float64) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func sortedWallets(m map[string]*uint256.Int) []string {
	out := make([]string, 0, len(m))
	for w := range m {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
