package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/chain"
	"github.com/scoutledger/backend/pkg/config"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/metrics"
	"github.com/scoutledger/backend/pkg/outbox"
)

const defaultReconcileBatch = 100

type serializableTxRunner interface {
	txRunner
	WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletOwners interface {
	OwnerOfWallet(ctx context.Context, address string) (uuid.UUID, bool, error)
}

// ServiceParams wires a Service.
type ServiceParams struct {
	Tx          serializableTxRunner
	Repo        *Repository
	Snapshotter *Snapshotter
	Wallets     walletOwners
	Verifier    chain.ClaimVerifier
	Emitter     outbox.Emitter
	Chain       config.ChainConfig
	Metrics     *metrics.RewardMetrics
	Logger      *logger.Logger
}

// Service serves points claims, on-chain claim submissions and their reconcile.
type Service struct {
	tx            serializableTxRunner
	repo          *Repository
	snapshotter   *Snapshotter
	wallets       walletOwners
	verifier      chain.ClaimVerifier
	emitter       outbox.Emitter
	poll          chain.PollConfig
	verifyTimeout time.Duration
	deadline      time.Duration
	metrics       *metrics.RewardMetrics
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("claims repository required")
	case p.Snapshotter == nil:
		return nil, fmt.Errorf("snapshotter required")
	case p.Wallets == nil:
		return nil, fmt.Errorf("wallet lookup required")
	case p.Emitter == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		tx:            p.Tx,
		repo:          p.Repo,
		snapshotter:   p.Snapshotter,
		wallets:       p.Wallets,
		verifier:      p.Verifier,
		emitter:       p.Emitter,
		poll:          chain.PollConfig{Initial: p.Chain.PollInitial, MaxInterval: p.Chain.PollMaxInterval},
		verifyTimeout: p.Chain.VerifyTimeout,
		deadline:      p.Chain.SubmissionDeadline,
		metrics:       p.Metrics,
		logg:          p.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// PointsClaim is the outcome of ClaimPoints.
type PointsClaim struct {
	ScoutID  uuid.UUID `json:"scoutId"`
	Week     string    `json:"week,omitempty"`
	Receipts int       `json:"receipts"`
	Points   float64   `json:"points"`
	Balance  float64   `json:"balance"`
}

// ClaimPoints marks the scout's unclaimed points receipts as claimed and credits
// their sum to the cached balance exactly once. An empty week claims every week.
// Calling it again with nothing left to claim changes nothing.
func (s *Service) ClaimPoints(ctx context.Context, scoutID uuid.UUID, week string) (*PointsClaim, error) {
	if scoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scout id required")
	}
	if week != "" {
		if _, err := parseWeek(week); err != nil {
			return nil, err
		}
	}
	ctx = s.logg.WithScoutID(ctx, scoutID.String())

	var out *PointsClaim
	err := s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		scout, err := repo.LockScout(ctx, scoutID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "scout %s not found", scoutID)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock scout")
		}
		if scout.IsDeleted() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "scout %s was merged or deleted", scoutID)
		}

		receipts, err := repo.UnclaimedPoints(ctx, scoutID, week)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unclaimed points")
		}
		claim := &PointsClaim{ScoutID: scoutID, Week: week, Balance: scout.CurrentBalance}
		if len(receipts) == 0 {
			out = claim
			return nil
		}

		ids := make([]uuid.UUID, len(receipts))
		for i, r := range receipts {
			ids[i] = r.ID
			claim.Points += r.Value
		}
		marked, err := repo.MarkPointsClaimed(ctx, ids, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark points claimed")
		}
		if marked != int64(len(ids)) {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "points claim raced: marked %d of %d receipts", marked, len(ids))
		}
		if err := repo.IncrementBalance(ctx, scoutID, claim.Points); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit balance")
		}
		claim.Receipts = len(receipts)
		claim.Balance += claim.Points
		out = claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Receipts > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"receipts": out.Receipts,
			"points":   out.Points,
		}), "points claimed")
	}
	return out, nil
}

// Balance is a scout's cached balance plus what remains unclaimed.
type Balance struct {
	ScoutID         uuid.UUID `json:"scoutId"`
	CurrentBalance  float64   `json:"currentBalance"`
	UnclaimedPoints float64   `json:"unclaimedPoints"`
	UnclaimedTokens string    `json:"unclaimedTokens"`
}

func (s *Service) Balance(ctx context.Context, scoutID uuid.UUID) (*Balance, error) {
	scout, err := s.repo.FindScout(ctx, scoutID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "scout %s not found", scoutID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load scout")
	}
	points, err := s.repo.UnclaimedPointsTotal(ctx, scoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum unclaimed points")
	}
	receipts, err := s.repo.UnclaimedTokens(ctx, scoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unclaimed tokens")
	}
	tokens, err := sumTokens(receipts)
	if err != nil {
		return nil, err
	}
	return &Balance{
		ScoutID:         scoutID,
		CurrentBalance:  scout.CurrentBalance,
		UnclaimedPoints: points,
		UnclaimedTokens: tokens.Dec(),
	}, nil
}
