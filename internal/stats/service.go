// Package stats rebuilds cached balances and season totals from the receipt and
// purchase history. Nothing here patches a total incrementally.
package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/db/models"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service struct {
	tx   txRunner
	repo *Repository
	logg *logger.Logger
}

func NewService(tx txRunner, repo *Repository, logg *logger.Logger) (*Service, error) {
	if tx == nil || repo == nil || logg == nil {
		return nil, fmt.Errorf("stats service requires tx runner, repository and logger")
	}
	return &Service{tx: tx, repo: repo, logg: logg}, nil
}

// Recomputed is the derived state of one scout.
type Recomputed struct {
	ScoutID        uuid.UUID
	CurrentBalance float64
	Season         models.UserSeasonStats
}

// RecomputeScouts rebuilds each scout in its own transaction.
func (s *Service) RecomputeScouts(ctx context.Context, season string, scoutIDs []uuid.UUID) error {
	for _, id := range scoutIDs {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := s.RecomputeTx(ctx, tx, season, id)
			return err
		})
		if err != nil {
			return err
		}
	}
	if len(scoutIDs) > 0 {
		s.logg.Debug(s.logg.WithField(s.logg.WithSeason(ctx, season), "scouts", len(scoutIDs)), "scout stats recomputed")
	}
	return nil
}

// RecomputeTx derives scoutID's balance and season totals inside tx.
// The balance is claimed points received minus points sent.
func (s *Service) RecomputeTx(ctx context.Context, tx *gorm.DB, season string, scoutID uuid.UUID) (*Recomputed, error) {
	repo := s.repo.WithTx(tx)
	received, err := repo.ReceivedPoints(ctx, scoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load received points")
	}
	sent, err := repo.SentPoints(ctx, scoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sent points")
	}
	payouts, err := repo.PayoutEventIDs(ctx, scoutID, season)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout events")
	}
	minted, err := repo.MintedNfts(ctx, scoutID, season)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load nft purchases")
	}

	out := &Recomputed{
		ScoutID: scoutID,
		Season:  models.UserSeasonStats{UserID: scoutID, Season: season, NftsPurchased: minted},
	}
	for _, r := range received {
		if r.ClaimedAt != nil {
			out.CurrentBalance += r.Value
		}
		if r.Season != season {
			continue
		}
		if _, own := payouts[r.EventID]; own {
			out.Season.PointsEarnedAsBuilder += r.Value
		} else {
			out.Season.PointsEarnedAsScout += r.Value
		}
	}
	for _, r := range sent {
		out.CurrentBalance -= r.Value
	}

	if err := repo.SetBalance(ctx, scoutID, out.CurrentBalance); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save balance")
	}
	row := out.Season
	if err := repo.UpsertSeasonStats(ctx, &row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save season stats")
	}
	return out, nil
}
