package claims

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/chain"
	dbpkg "github.com/scoutledger/backend/pkg/db"
	dbtypes "github.com/scoutledger/backend/pkg/db/types"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
	"github.com/scoutledger/backend/pkg/outbox"
	"github.com/scoutledger/backend/pkg/outbox/payloads"
)

const reconcileActor = "claim-reconcile"

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Submission asks to record an on-chain claim the scout already sent.
type Submission struct {
	ScoutID uuid.UUID
	Week    string
	Wallet  string
	TxHash  string
}

// SubmitOnchainClaim records a pending claim for later reconcile. The wallet must
// belong to the scout and hold a leaf in the week's published claim.
func (s *Service) SubmitOnchainClaim(ctx context.Context, in Submission) (*models.ClaimSubmission, error) {
	week, err := parseWeek(in.Week)
	if err != nil {
		return nil, err
	}
	if in.ScoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scout id required")
	}
	if !txHashPattern.MatchString(in.TxHash) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction hash %q", in.TxHash)
	}
	if !common.IsHexAddress(in.Wallet) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid wallet address %q", in.Wallet)
	}
	wallet := strings.ToLower(in.Wallet)
	ctx = s.logg.WithScoutID(ctx, in.ScoutID.String())

	owner, ok, err := s.wallets.OwnerOfWallet(ctx, wallet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet owner")
	}
	if !ok || owner != in.ScoutID {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "wallet %s does not belong to scout", wallet)
	}
	proof, err := s.snapshotter.GetProof(ctx, week.String(), wallet)
	if err != nil {
		return nil, err
	}
	amount, err := dbtypes.ParseUint256(proof.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "decode leaf amount")
	}

	sub := &models.ClaimSubmission{
		ScoutID:       in.ScoutID,
		WalletAddress: wallet,
		Season:        proof.Season,
		Week:          week.String(),
		LeafIndex:     int(proof.Index),
		Amount:        amount,
		TxHash:        strings.ToLower(in.TxHash),
		Status:        enums.ClaimSubmissionPending,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		active, err := repo.ActiveSubmission(ctx, wallet, week.String())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active submission")
		}
		if active != nil {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "claim for %s already %s", week, active.Status)
		}
		if err := repo.CreateSubmission(ctx, sub); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "transaction %s already submitted", sub.TxHash)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create claim submission")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"week":    sub.Week,
		"tx_hash": sub.TxHash,
	}), "onchain claim submitted")
	return sub, nil
}

// ReconcileResult counts submission outcomes of one reconcile pass.
type ReconcileResult struct {
	Checked    int
	Confirmed  int
	Mismatched int
	Expired    int
	Pending    int
	Failed     int
}

// ReconcilePending checks every pending submission that is due against the chain,
// once each. Confirmed claims mark their token receipts claimed; mismatches alert
// and leave receipts untouched. Submissions still pending past the deadline expire;
// the others are scheduled for a later pass. A submission whose bookkeeping fails is
// logged and skipped. When any mismatch was found the returned error carries
// CodeReconciliationMismatch.
func (s *Service) ReconcilePending(ctx context.Context) (*ReconcileResult, error) {
	if s.verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "claim verifier not configured")
	}
	subs, err := s.repo.ListDue(ctx, s.now(), defaultReconcileBatch)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending submissions")
	}
	result := &ReconcileResult{}
	var mismatched []string
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile pass interrupted")
		}
		sub := subs[i]
		result.Checked++
		sctx := s.logg.WithFields(s.logg.WithScoutID(ctx, sub.ScoutID.String()), map[string]any{
			"week":    sub.Week,
			"tx_hash": sub.TxHash,
		})
		outcome, err := s.reconcileOne(sctx, sub)
		if err != nil {
			result.Failed++
			s.logg.Error(sctx, "claim reconcile failed", err)
			s.metrics.IncClaimReconciled("failed")
			continue
		}
		switch outcome {
		case enums.ClaimSubmissionConfirmed:
			result.Confirmed++
		case enums.ClaimSubmissionMismatch:
			result.Mismatched++
			mismatched = append(mismatched, sub.TxHash)
		case enums.ClaimSubmissionExpired:
			result.Expired++
		default:
			result.Pending++
		}
		s.metrics.IncClaimReconciled(string(outcome))
	}
	if len(mismatched) > 0 {
		return result, pkgerrors.Newf(pkgerrors.CodeReconciliationMismatch,
			"%d claim(s) disagree with chain: %s", len(mismatched), strings.Join(mismatched, ", ")).
			WithDetails(map[string]any{"tx_hashes": mismatched})
	}
	if result.Failed > 0 {
		return result, pkgerrors.Newf(pkgerrors.CodeDependency, "%d of %d claim(s) could not be reconciled", result.Failed, result.Checked)
	}
	return result, nil
}

func (s *Service) reconcileOne(ctx context.Context, sub models.ClaimSubmission) (enums.ClaimSubmissionStatus, error) {
	expected := chain.ExpectedClaim{
		Index:   uint64(sub.LeafIndex),
		Account: common.HexToAddress(sub.WalletAddress),
		Amount:  sub.Amount.Big(),
	}
	obs, err := s.verify(ctx, common.HexToHash(sub.TxHash), expected)
	switch {
	case err == nil:
		return enums.ClaimSubmissionConfirmed, s.markConfirmed(ctx, sub, obs)
	case errors.Is(err, chain.ErrMismatch):
		return enums.ClaimSubmissionMismatch, s.markMismatch(ctx, sub, err)
	}

	if s.deadline > 0 && s.now().Sub(sub.CreatedAt) > s.deadline {
		return enums.ClaimSubmissionExpired, s.markExpired(ctx, sub, err)
	}
	if !errors.Is(err, chain.ErrPending) {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "claim verification failed; will retry")
	}
	attempts := sub.Attempts + 1
	_, terr := s.repo.TransitionSubmission(ctx, sub.ID, map[string]any{
		"attempts":      attempts,
		"last_error":    err.Error(),
		"next_check_at": s.now().Add(s.poll.NextCheck(attempts)),
	})
	if terr != nil {
		return enums.ClaimSubmissionPending, pkgerrors.Wrap(pkgerrors.CodeDependency, terr, "record reconcile attempt")
	}
	return enums.ClaimSubmissionPending, nil
}

// verify makes a single chain lookup bounded by the verify timeout.
func (s *Service) verify(ctx context.Context, txHash common.Hash, expected chain.ExpectedClaim) (*chain.Observation, error) {
	if s.verifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.verifyTimeout)
		defer cancel()
	}
	return s.verifier.VerifyClaim(ctx, txHash, expected)
}

func (s *Service) markConfirmed(ctx context.Context, sub models.ClaimSubmission, obs *chain.Observation) error {
	now := s.now()
	var block uint64
	if obs != nil {
		block = obs.BlockNumber
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.TransitionSubmission(ctx, sub.ID, map[string]any{
			"status":       enums.ClaimSubmissionConfirmed,
			"attempts":     sub.Attempts + 1,
			"confirmed_at": now,
			"last_error":   nil,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm submission")
		}
		if !ok {
			return nil
		}
		marked, err := repo.MarkTokensClaimed(ctx, sub.WalletAddress, sub.Week, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark tokens claimed")
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"block":    block,
			"receipts": marked,
		}), "onchain claim confirmed")
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClaimConfirmed,
			AggregateType: enums.AggregateClaimSubmission,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{ScoutID: &sub.ScoutID, Job: reconcileActor},
			Data: payloads.ClaimConfirmedEvent{
				SubmissionID:  sub.ID,
				ScoutID:       sub.ScoutID,
				WalletAddress: sub.WalletAddress,
				Week:          sub.Week,
				TxHash:        sub.TxHash,
				Amount:        sub.Amount.String(),
				BlockNumber:   block,
			},
		})
	})
}

func (s *Service) markMismatch(ctx context.Context, sub models.ClaimSubmission, cause error) error {
	s.logg.Error(ctx, "onchain claim does not match local record", cause)
	reason := cause.Error()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).TransitionSubmission(ctx, sub.ID, map[string]any{
			"status":     enums.ClaimSubmissionMismatch,
			"attempts":   sub.Attempts + 1,
			"last_error": reason,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag mismatched submission")
		}
		if !ok {
			return nil
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClaimReconciliationMismatch,
			AggregateType: enums.AggregateClaimSubmission,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{ScoutID: &sub.ScoutID, Job: reconcileActor},
			Data: payloads.ClaimReconciliationMismatchEvent{
				SubmissionID:  sub.ID,
				ScoutID:       sub.ScoutID,
				WalletAddress: sub.WalletAddress,
				Week:          sub.Week,
				TxHash:        sub.TxHash,
				Expected:      sub.Amount.String(),
				Reason:        reason,
			},
		})
	})
}

func (s *Service) markExpired(ctx context.Context, sub models.ClaimSubmission, cause error) error {
	s.logg.Warn(s.logg.WithField(ctx, "attempts", sub.Attempts+1), "onchain claim confirmation expired")
	reason := "confirmation deadline exceeded"
	if cause != nil {
		reason = reason + ": " + cause.Error()
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).TransitionSubmission(ctx, sub.ID, map[string]any{
			"status":     enums.ClaimSubmissionExpired,
			"attempts":   sub.Attempts + 1,
			"last_error": reason,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire submission")
		}
		if !ok {
			return nil
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClaimConfirmationExpired,
			AggregateType: enums.AggregateClaimSubmission,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{ScoutID: &sub.ScoutID, Job: reconcileActor},
			Data: payloads.ClaimConfirmationExpiredEvent{
				SubmissionID: sub.ID,
				ScoutID:      sub.ScoutID,
				Week:         sub.Week,
				TxHash:       sub.TxHash,
				Attempts:     sub.Attempts + 1,
				SubmittedAt:  sub.CreatedAt,
			},
		})
	})
}

func parseWeek(raw string) (isoweek.Week, error) {
	return isoweek.Parse(raw)
}

func sumTokens(receipts []models.TokensReceipt) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, r := range receipts {
		if _, overflow := total.AddOverflow(total, &r.Value.Int); overflow {
			return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "unclaimed tokens overflow")
		}
	}
	return total, nil
}
