package claims

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	dbtypes "github.com/scoutledger/backend/pkg/db/types"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/merkle"
	"github.com/scoutledger/backend/pkg/outbox"
	"github.com/scoutledger/backend/pkg/outbox/payloads"
)

const snapshotActor = "claim-snapshotter"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Snapshotter publishes the immutable weekly Merkle claim and serves proofs from it.
type Snapshotter struct {
	repo    *Repository
	emitter outbox.Emitter
	logg    *logger.Logger
}

func NewSnapshotter(repo *Repository, emitter outbox.Emitter, logg *logger.Logger) *Snapshotter {
	return &Snapshotter{repo: repo, emitter: emitter, logg: logg}
}

// Proof is everything a wallet needs to submit its claim on chain.
type Proof struct {
	Season     string   `json:"season"`
	Week       string   `json:"week"`
	MerkleRoot string   `json:"merkleRoot"`
	Index      uint64   `json:"index"`
	Address    string   `json:"address"`
	Amount     string   `json:"amount"`
	Proof      []string `json:"proof"`
}

// PublishTx builds the claim for week from its token receipts inside tx. An existing
// claim is returned unchanged and a week without receipts publishes nothing.
func (s *Snapshotter) PublishTx(ctx context.Context, tx *gorm.DB, season, week string) (*models.WeeklyClaim, error) {
	if _, err := isoweek.Parse(week); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindWeeklyClaim(ctx, week)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load weekly claim")
	}
	if existing != nil {
		return existing, nil
	}

	sums, err := repo.TokenEntitlements(ctx, week)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token receipts")
	}
	entitlements := make([]merkle.Entitlement, 0, len(sums))
	for _, addr := range sortedAddresses(sums) {
		if !common.IsHexAddress(addr) {
			return nil, pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "receipt wallet %q is not an address", addr)
		}
		if sums[addr].IsZero() {
			continue
		}
		entitlements = append(entitlements, merkle.Entitlement{Address: common.HexToAddress(addr), Amount: sums[addr]})
	}
	if len(entitlements) == 0 {
		s.logg.Info(s.logg.WithWeek(ctx, week), "no token receipts; weekly claim not published")
		return nil, nil
	}

	tree, err := merkle.Build(entitlements)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "build merkle tree")
	}
	snap, err := tree.Snapshot()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "render merkle snapshot")
	}
	leaves, err := json.Marshal(snap.Leaves)
	if err != nil {
		return nil, err
	}
	proofs, err := json.Marshal(snap.Proofs)
	if err != nil {
		return nil, err
	}
	total, err := dbtypes.ParseUint256(snap.Total)
	if err != nil {
		return nil, err
	}

	claim := &models.WeeklyClaim{
		Season:         season,
		Week:           week,
		MerkleRoot:     snap.Root,
		TotalClaimable: total,
		Leaves:         leaves,
		Proofs:         proofs,
	}
	if err := repo.CreateWeeklyClaim(ctx, claim); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create weekly claim")
	}
	err = s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventWeeklyClaimPublished,
		AggregateType: enums.AggregateWeeklyClaim,
		AggregateID:   claim.ID,
		Actor:         &outbox.ActorRef{Job: snapshotActor},
		Data: payloads.WeeklyClaimPublishedEvent{
			ClaimID:        claim.ID,
			Season:         season,
			Week:           week,
			MerkleRoot:     snap.Root,
			TotalClaimable: snap.Total,
			LeafCount:      len(snap.Leaves),
		},
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"week":        week,
		"merkle_root": snap.Root,
		"leaves":      len(snap.Leaves),
	}), "weekly claim published")
	return claim, nil
}

// GetProof returns the leaf and proof for address in week's published claim. A
// stored proof that does not lead to the claim's root is a data integrity error.
func (s *Snapshotter) GetProof(ctx context.Context, week, address string) (*Proof, error) {
	if _, err := isoweek.Parse(week); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(address) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid wallet address %q", address)
	}
	claim, err := s.repo.FindWeeklyClaim(ctx, week)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load weekly claim")
	}
	if claim == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no claim published for %s", week)
	}
	return proofFromClaim(claim, common.HexToAddress(address))
}

func proofFromClaim(claim *models.WeeklyClaim, address common.Address) (*Proof, error) {
	var leaves []merkle.SnapshotLeaf
	if err := json.Unmarshal(claim.Leaves, &leaves); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "decode claim leaves")
	}
	var proofs map[string][]string
	if err := json.Unmarshal(claim.Proofs, &proofs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "decode claim proofs")
	}
	key := address.Hex()
	for _, leaf := range leaves {
		if !strings.EqualFold(leaf.Address, key) {
			continue
		}
		parsed, err := merkle.ParseLeaf(leaf)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "decode claim leaf")
		}
		if !merkle.Verify(common.HexToHash(claim.MerkleRoot), parsed, merkle.ParseProof(proofs[key])) {
			return nil, pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "stored proof for %s does not match root of %s", key, claim.Week)
		}
		return &Proof{
			Season:     claim.Season,
			Week:       claim.Week,
			MerkleRoot: claim.MerkleRoot,
			Index:      leaf.Index,
			Address:    key,
			Amount:     leaf.Amount,
			Proof:      proofs[key],
		}, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "%s has no entitlement in %s", key, claim.Week)
}

func sortedAddresses[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
