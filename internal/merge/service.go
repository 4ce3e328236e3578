// Package merge folds one scout identity into another in a single transaction.
package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/internal/scouts"
	"github.com/scoutledger/backend/internal/stats"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/outbox"
	"github.com/scoutledger/backend/pkg/outbox/payloads"
)

const (
	mergeActor             = "merge-scouts"
	defaultMaxStarterPacks = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StatsRecomputer rebuilds a scout's balance and season totals from history inside
// the caller's transaction.
type StatsRecomputer interface {
	RecomputeTx(ctx context.Context, tx *gorm.DB, season string, scoutID uuid.UUID) (*stats.Recomputed, error)
}

// ServiceParams wires a Service.
type ServiceParams struct {
	Tx              txRunner
	Repo            *Repository
	Scouts          *scouts.Repository
	Emitter         outbox.Emitter
	Stats           StatsRecomputer
	Season          string
	MaxStarterPacks int
	Logger          *logger.Logger
}

type Service struct {
	tx              txRunner
	repo            *Repository
	scouts          *scouts.Repository
	emitter         outbox.Emitter
	stats           StatsRecomputer
	season          string
	maxStarterPacks int64
	logg            *logger.Logger
	now             func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("merge repository required")
	case p.Scouts == nil:
		return nil, fmt.Errorf("scouts repository required")
	case p.Emitter == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case p.Stats == nil:
		return nil, fmt.Errorf("stats recomputer required")
	case p.Season == "":
		return nil, fmt.Errorf("active season required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	limit := p.MaxStarterPacks
	if limit <= 0 {
		limit = defaultMaxStarterPacks
	}
	return &Service{
		tx:              p.Tx,
		repo:            p.Repo,
		scouts:          p.Scouts,
		emitter:         p.Emitter,
		stats:           p.Stats,
		season:          p.Season,
		maxStarterPacks: int64(limit),
		logg:            p.Logger,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

// Request names the identity that survives and the one folded into it.
type Request struct {
	RetainedID uuid.UUID
	MergedID   uuid.UUID
}

// Result describes a committed merge.
type Result struct {
	MergeEventID  uuid.UUID        `json:"mergeEventId"`
	RetainedID    uuid.UUID        `json:"retainedId"`
	MergedID      uuid.UUID        `json:"mergedId"`
	MergedRecords map[string]int64 `json:"mergedRecords"`
	Balance       float64          `json:"balance"`
}

// step moves one kind of row and reports how many moved.
type step struct {
	name string
	run  func(ctx context.Context, repo *Repository, from, to uuid.UUID) (int64, error)
}

func reassign(model any, column string) func(context.Context, *Repository, uuid.UUID, uuid.UUID) (int64, error) {
	return func(ctx context.Context, repo *Repository, from, to uuid.UUID) (int64, error) {
		return repo.Reassign(ctx, model, column, from, to)
	}
}

var steps = []step{
	{name: "wallets", run: moveWallets},
	{name: "points_receipts_received", run: reassign(&models.PointsReceipt{}, "recipient_id")},
	{name: "points_receipts_sent", run: reassign(&models.PointsReceipt{}, "sender_id")},
	{name: "tokens_receipts_received", run: reassign(&models.TokensReceipt{}, "recipient_id")},
	{name: "tokens_receipts_sent", run: reassign(&models.TokensReceipt{}, "sender_id")},
	{name: "nft_purchase_events", run: reassign(&models.NftPurchaseEvent{}, "scout_id")},
	{name: "builder_nfts", run: reassign(&models.BuilderNft{}, "builder_id")},
	{name: "builder_events", run: reassign(&models.BuilderEvent{}, "builder_id")},
	{name: "referrals_made", run: reassign(&models.ReferralEvent{}, "referrer_id")},
	{name: "referrals_received", run: reassign(&models.ReferralEvent{}, "referee_id")},
	{name: "weekly_stats", run: moveWeeklyStats},
	{name: "season_stats", run: func(ctx context.Context, repo *Repository, from, _ uuid.UUID) (int64, error) {
		return repo.DeleteSeasonStats(ctx, from)
	}},
}

// moveWallets keeps the retained scout's primary wallet when it has one.
func moveWallets(ctx context.Context, repo *Repository, from, to uuid.UUID) (int64, error) {
	has, err := repo.HasWallets(ctx, to)
	if err != nil {
		return 0, err
	}
	if has {
		if err := repo.ClearPrimaryWallets(ctx, from); err != nil {
			return 0, err
		}
	}
	return repo.Reassign(ctx, &models.ScoutWallet{}, "scout_id", from, to)
}

// moveWeeklyStats folds gems of weeks both scouts collected in into the retained row.
func moveWeeklyStats(ctx context.Context, repo *Repository, from, to uuid.UUID) (int64, error) {
	retained, err := repo.WeeklyStats(ctx, to)
	if err != nil {
		return 0, err
	}
	byWeek := make(map[string]uuid.UUID, len(retained))
	for _, row := range retained {
		byWeek[row.Week] = row.ID
	}
	merged, err := repo.WeeklyStats(ctx, from)
	if err != nil {
		return 0, err
	}
	var moved int64
	for _, row := range merged {
		target, ok := byWeek[row.Week]
		if !ok {
			continue
		}
		if err := repo.AddGems(ctx, target, row.GemsCollected); err != nil {
			return 0, err
		}
		if err := repo.DeleteWeeklyStats(ctx, row.ID); err != nil {
			return 0, err
		}
		moved++
	}
	n, err := repo.Reassign(ctx, &models.UserWeeklyStats{}, "user_id", from, to)
	if err != nil {
		return 0, err
	}
	return moved + n, nil
}

// Merge moves every row of req.MergedID onto req.RetainedID, records the merge and
// soft-deletes the merged scout. Nothing is written when any check or step fails.
func (s *Service) Merge(ctx context.Context, req Request) (*Result, error) {
	if req.RetainedID == uuid.Nil || req.MergedID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "both account identities are required")
	}
	if req.RetainedID == req.MergedID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot merge an account with itself")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"retained_id": req.RetainedID.String(),
		"merged_id":   req.MergedID.String(),
	})

	result := &Result{RetainedID: req.RetainedID, MergedID: req.MergedID, MergedRecords: map[string]int64{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		retained, merged, err := s.lockPair(ctx, s.scouts.WithTx(tx), req)
		if err != nil {
			return err
		}
		if err := s.checkStarterPacks(ctx, repo, req); err != nil {
			return err
		}
		seasons, err := repo.SeasonsWithStats(ctx, []uuid.UUID{req.RetainedID, req.MergedID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load season stats")
		}

		for _, st := range steps {
			n, err := st.run(ctx, repo, req.MergedID, req.RetainedID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge step "+st.name)
			}
			result.MergedRecords[st.name] = n
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{"step": st.name, "rows": n}), "merge step applied")
		}

		if !retained.IsBuilder() && merged.IsBuilder() {
			if err := repo.SetBuilderStatus(ctx, retained.ID, merged.BuilderStatus); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carry builder status")
			}
		}
		for _, season := range appendMissing(seasons, s.season) {
			recomputed, err := s.stats.RecomputeTx(ctx, tx, season, req.RetainedID)
			if err != nil {
				return fmt.Errorf("recompute season %s: %w", season, err)
			}
			result.Balance = recomputed.CurrentBalance
		}

		records, err := json.Marshal(result.MergedRecords)
		if err != nil {
			return err
		}
		event := &models.ScoutMergeEvent{
			MergedFromID:  req.MergedID,
			MergedToID:    req.RetainedID,
			MergedRecords: records,
		}
		if err := repo.CreateMergeEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record merge event")
		}
		result.MergeEventID = event.ID
		if err := repo.SoftDelete(ctx, req.MergedID, s.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "soft delete merged scout")
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventScoutMerged,
			AggregateType: enums.AggregateScout,
			AggregateID:   req.RetainedID,
			Actor:         &outbox.ActorRef{Job: mergeActor},
			Data: payloads.ScoutMergedEvent{
				MergeEventID:  event.ID,
				MergedFromID:  req.MergedID,
				MergedToID:    req.RetainedID,
				MergedRecords: result.MergedRecords,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "merge_event_id", result.MergeEventID.String()), "scouts merged")
	return result, nil
}

func (s *Service) lockPair(ctx context.Context, repo *scouts.Repository, req Request) (*models.Scout, *models.Scout, error) {
	load := func(id uuid.UUID) (*models.Scout, error) {
		scout, err := repo.FindByIDForUpdate(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "scout %s not found", id)
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock scout")
		}
		if scout.IsDeleted() {
			return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "scout %s is already deleted", id)
		}
		return scout, nil
	}
	locked := make(map[uuid.UUID]*models.Scout, 2)
	for _, id := range lockOrder(req.RetainedID, req.MergedID) {
		scout, err := load(id)
		if err != nil {
			return nil, nil, err
		}
		locked[id] = scout
	}
	retained, merged := locked[req.RetainedID], locked[req.MergedID]
	if retained.IsBuilder() && merged.IsBuilder() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "both accounts are builders")
	}
	return retained, merged, nil
}

func (s *Service) checkStarterPacks(ctx context.Context, repo *Repository, req Request) error {
	count, err := repo.StarterPacksBought(ctx, []uuid.UUID{req.RetainedID, req.MergedID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count starter packs")
	}
	if count > s.maxStarterPacks {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "combined starter packs %d exceed %d", count, s.maxStarterPacks).
			WithDetails(map[string]any{"starter_packs": count, "limit": s.maxStarterPacks})
	}
	return nil
}

// lockOrder sorts the pair by id so opposite merges of the same scouts lock rows in
// the same order.
func lockOrder(a, b uuid.UUID) [2]uuid.UUID {
	if bytes.Compare(a[:], b[:]) > 0 {
		return [2]uuid.UUID{b, a}
	}
	return [2]uuid.UUID{a, b}
}

func appendMissing(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
