package claims

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/chain"
	"github.com/scoutledger/backend/pkg/config"
	"github.com/scoutledger/backend/pkg/db"
	"github.com/scoutledger/backend/pkg/db/dbtest"
	dbtypes "github.com/scoutledger/backend/pkg/db/types"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/outbox"
)

const (
	season   = "2025-W02"
	week     = "2025-W04"
	walletA  = "0x00000000000000000000000000000000000000aa"
	walletB  = "0x00000000000000000000000000000000000000bb"
	txHashOK = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

type fakeOwners map[string]uuid.UUID

func (f fakeOwners) OwnerOfWallet(_ context.Context, address string) (uuid.UUID, bool, error) {
	id, ok := f[address]
	return id, ok, nil
}

type stubVerifier struct {
	obs   *chain.Observation
	err   error
	byTx  map[common.Hash]error
	hang  map[common.Hash]bool
	calls int
}

func (s *stubVerifier) VerifyClaim(ctx context.Context, txHash common.Hash, _ chain.ExpectedClaim) (*chain.Observation, error) {
	s.calls++
	if s.hang[txHash] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := s.byTx[txHash]; ok {
		return nil, err
	}
	return s.obs, s.err
}

type fixture struct {
	tx       *db.Client
	conn     *gorm.DB
	snap     *Snapshotter
	svc      *Service
	verifier *stubVerifier
	owners   fakeOwners
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	repo := NewRepository(conn)
	snap := NewSnapshotter(repo, emitter, logg)
	verifier := &stubVerifier{}
	owners := fakeOwners{}
	svc, err := NewService(ServiceParams{
		Tx:          client,
		Repo:        repo,
		Snapshotter: snap,
		Wallets:     owners,
		Verifier:    verifier,
		Emitter:     emitter,
		Chain:       config.ChainConfig{SubmissionDeadline: 24 * time.Hour},
		Logger:      logg,
	})
	require.NoError(t, err)
	return &fixture{tx: client, conn: conn, snap: snap, svc: svc, verifier: verifier, owners: owners}
}

func (f *fixture) seedScout(t *testing.T, balance float64) uuid.UUID {
	t.Helper()
	scout := models.Scout{Path: uuid.NewString(), DisplayName: "scout", CurrentBalance: balance}
	require.NoError(t, f.conn.Create(&scout).Error)
	return scout.ID
}

func (f *fixture) seedTokens(t *testing.T, wallet string, owner *uuid.UUID, week string, units string) {
	t.Helper()
	value, err := dbtypes.ParseUint256(units)
	require.NoError(t, err)
	require.NoError(t, f.conn.Create(&models.TokensReceipt{
		EventID:          uuid.New(),
		RecipientAddress: wallet,
		RecipientID:      owner,
		Value:            value,
		Season:           season,
		Week:             week,
	}).Error)
}

func (f *fixture) seedPoints(t *testing.T, recipient uuid.UUID, week string, value float64) {
	t.Helper()
	id := recipient
	require.NoError(t, f.conn.Create(&models.PointsReceipt{
		EventID:     uuid.New(),
		RecipientID: &id,
		Value:       value,
		Season:      season,
		Week:        week,
	}).Error)
}

func (f *fixture) publish(t *testing.T, week string) (*models.WeeklyClaim, error) {
	t.Helper()
	var claim *models.WeeklyClaim
	err := f.tx.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		claim, err = f.snap.PublishTx(context.Background(), tx, season, week)
		return err
	})
	return claim, err
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestPublishBuildsVerifiableClaimOnce(t *testing.T) {
	f := newFixture(t)
	f.seedTokens(t, walletA, nil, week, "1000")
	f.seedTokens(t, walletA, nil, week, "500")
	f.seedTokens(t, walletB, nil, week, "250")
	f.seedTokens(t, walletB, nil, "2025-W05", "999")

	ctx := context.Background()
	claim, err := f.publish(t, week)
	require.NoError(t, err)
	require.NotNil(t, claim)
	require.Equal(t, "1750", claim.TotalClaimable.String())

	proof, err := f.snap.GetProof(ctx, week, walletA)
	require.NoError(t, err)
	require.Equal(t, "1500", proof.Amount)
	require.Equal(t, claim.MerkleRoot, proof.MerkleRoot)

	again, err := f.publish(t, week)
	require.NoError(t, err)
	require.Equal(t, claim.ID, again.ID)
	require.Equal(t, claim.MerkleRoot, again.MerkleRoot)
	require.EqualValues(t, 1, f.countEvents(t, enums.EventWeeklyClaimPublished))
}

func TestPublishWithoutReceiptsPublishesNothing(t *testing.T) {
	f := newFixture(t)
	claim, err := f.publish(t, week)
	require.NoError(t, err)
	require.Nil(t, claim)
	require.EqualValues(t, 0, f.countEvents(t, enums.EventWeeklyClaimPublished))
}

func TestGetProofRejectsTamperedProof(t *testing.T) {
	f := newFixture(t)
	f.seedTokens(t, walletA, nil, week, "1000")
	f.seedTokens(t, walletB, nil, week, "250")
	claim, err := f.publish(t, week)
	require.NoError(t, err)

	var proofs map[string][]string
	require.NoError(t, json.Unmarshal(claim.Proofs, &proofs))
	proofs[common.HexToAddress(walletA).Hex()] = []string{common.HexToHash("0xdead").Hex()}
	tampered, err := json.Marshal(proofs)
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.WeeklyClaim{}).Where("id = ?", claim.ID).Update("proofs", tampered).Error)

	_, err = f.snap.GetProof(context.Background(), week, walletA)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))
}

func TestGetProofNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.snap.GetProof(ctx, week, walletA)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	f.seedTokens(t, walletA, nil, week, "10")
	_, err = f.publish(t, week)
	require.NoError(t, err)
	_, err = f.snap.GetProof(ctx, week, walletB)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.snap.GetProof(ctx, week, "not-an-address")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestClaimPointsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	scout := f.seedScout(t, 100)
	other := f.seedScout(t, 0)
	f.seedPoints(t, scout, "2025-W03", 40)
	f.seedPoints(t, scout, week, 60)
	f.seedPoints(t, other, week, 5)

	ctx := context.Background()
	claim, err := f.svc.ClaimPoints(ctx, scout, "")
	require.NoError(t, err)
	require.Equal(t, 2, claim.Receipts)
	require.Equal(t, 100.0, claim.Points)
	require.Equal(t, 200.0, claim.Balance)

	again, err := f.svc.ClaimPoints(ctx, scout, "")
	require.NoError(t, err)
	require.Equal(t, 0, again.Receipts)
	require.Equal(t, 200.0, again.Balance)

	var stored models.Scout
	require.NoError(t, f.conn.First(&stored, "id = ?", scout).Error)
	require.Equal(t, 200.0, stored.CurrentBalance)

	balance, err := f.svc.Balance(ctx, other)
	require.NoError(t, err)
	require.Equal(t, 5.0, balance.UnclaimedPoints)
	require.Equal(t, 0.0, balance.CurrentBalance)
}

func TestClaimPointsForSingleWeek(t *testing.T) {
	f := newFixture(t)
	scout := f.seedScout(t, 0)
	f.seedPoints(t, scout, "2025-W03", 40)
	f.seedPoints(t, scout, week, 60)

	claim, err := f.svc.ClaimPoints(context.Background(), scout, week)
	require.NoError(t, err)
	require.Equal(t, 60.0, claim.Points)

	balance, err := f.svc.Balance(context.Background(), scout)
	require.NoError(t, err)
	require.Equal(t, 60.0, balance.CurrentBalance)
	require.Equal(t, 40.0, balance.UnclaimedPoints)
}

func TestClaimPointsRejectsUnknownScout(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ClaimPoints(context.Background(), uuid.New(), "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.ClaimPoints(context.Background(), uuid.New(), "2025-13")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func (f *fixture) publishedSubmission(t *testing.T) (uuid.UUID, *models.ClaimSubmission) {
	t.Helper()
	scout := f.seedScout(t, 0)
	f.owners[walletA] = scout
	f.seedTokens(t, walletA, &scout, week, "1500")
	f.seedTokens(t, walletB, nil, week, "250")
	ctx := context.Background()
	_, err := f.publish(t, week)
	require.NoError(t, err)

	sub, err := f.svc.SubmitOnchainClaim(ctx, Submission{ScoutID: scout, Week: week, Wallet: walletA, TxHash: txHashOK})
	require.NoError(t, err)
	return scout, sub
}

func TestSubmitOnchainClaim(t *testing.T) {
	f := newFixture(t)
	scout, sub := f.publishedSubmission(t)
	require.Equal(t, enums.ClaimSubmissionPending, sub.Status)
	require.Equal(t, "1500", sub.Amount.String())
	require.Equal(t, season, sub.Season)

	ctx := context.Background()
	_, err := f.svc.SubmitOnchainClaim(ctx, Submission{ScoutID: scout, Week: week, Wallet: walletA, TxHash: txHashOK})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.SubmitOnchainClaim(ctx, Submission{ScoutID: uuid.New(), Week: week, Wallet: walletA, TxHash: txHashOK})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.SubmitOnchainClaim(ctx, Submission{ScoutID: scout, Week: week, Wallet: walletA, TxHash: "0x12"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.owners[walletB] = scout
	_, err = f.svc.SubmitOnchainClaim(ctx, Submission{ScoutID: scout, Week: "2025-W06", Wallet: walletB, TxHash: txHashOK})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestReconcileConfirmedMarksTokens(t *testing.T) {
	f := newFixture(t)
	scout, sub := f.publishedSubmission(t)
	f.verifier.obs = &chain.Observation{BlockNumber: 42, Confirmations: 3}

	result, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, &ReconcileResult{Checked: 1, Confirmed: 1}, result)

	var stored models.ClaimSubmission
	require.NoError(t, f.conn.First(&stored, "id = ?", sub.ID).Error)
	require.Equal(t, enums.ClaimSubmissionConfirmed, stored.Status)
	require.NotNil(t, stored.ConfirmedAt)

	balance, err := f.svc.Balance(context.Background(), scout)
	require.NoError(t, err)
	require.Equal(t, "0", balance.UnclaimedTokens)
	require.EqualValues(t, 1, f.countEvents(t, enums.EventClaimConfirmed))

	again, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, again.Checked)
}

func TestReconcileMismatchNeverMarksReceipts(t *testing.T) {
	f := newFixture(t)
	scout, sub := f.publishedSubmission(t)
	f.verifier.err = pkgerrors.Wrap(pkgerrors.CodeReconciliationMismatch, chain.ErrMismatch, "amount differs")

	result, err := f.svc.ReconcilePending(context.Background())
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReconciliationMismatch))
	require.Equal(t, 1, result.Mismatched)

	var stored models.ClaimSubmission
	require.NoError(t, f.conn.First(&stored, "id = ?", sub.ID).Error)
	require.Equal(t, enums.ClaimSubmissionMismatch, stored.Status)

	balance, err := f.svc.Balance(context.Background(), scout)
	require.NoError(t, err)
	require.Equal(t, "1500", balance.UnclaimedTokens)
	require.EqualValues(t, 1, f.countEvents(t, enums.EventClaimReconciliationMismatch))
}

func TestReconcilePendingThenExpired(t *testing.T) {
	f := newFixture(t)
	_, sub := f.publishedSubmission(t)
	f.verifier.err = pkgerrors.Wrap(pkgerrors.CodeDependency, chain.ErrPending, "2 of 3 confirmations")

	result, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Pending)

	var stored models.ClaimSubmission
	require.NoError(t, f.conn.First(&stored, "id = ?", sub.ID).Error)
	require.Equal(t, enums.ClaimSubmissionPending, stored.Status)
	require.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)

	f.svc.now = func() time.Time { return stored.CreatedAt.Add(25 * time.Hour) }
	result, err = f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Expired)

	require.NoError(t, f.conn.First(&stored, "id = ?", sub.ID).Error)
	require.Equal(t, enums.ClaimSubmissionExpired, stored.Status)
	require.EqualValues(t, 1, f.countEvents(t, enums.EventClaimConfirmationExpired))
}

func TestReconcileTransportErrorStaysPending(t *testing.T) {
	f := newFixture(t)
	_, sub := f.publishedSubmission(t)
	f.verifier.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection refused"), "fetch receipt")

	result, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Pending)

	var stored models.ClaimSubmission
	require.NoError(t, f.conn.First(&stored, "id = ?", sub.ID).Error)
	require.Equal(t, enums.ClaimSubmissionPending, stored.Status)
}

const txHashB = "0x2222222222222222222222222222222222222222222222222222222222222222"

func (f *fixture) secondSubmission(t *testing.T, scout uuid.UUID) *models.ClaimSubmission {
	t.Helper()
	f.owners[walletB] = scout
	sub, err := f.svc.SubmitOnchainClaim(context.Background(), Submission{ScoutID: scout, Week: week, Wallet: walletB, TxHash: txHashB})
	require.NoError(t, err)
	return sub
}

func TestReconcileBoundsEachCheckSoStuckClaimsDoNotStarveOthers(t *testing.T) {
	f := newFixture(t)
	scout, stuck := f.publishedSubmission(t)
	fresh := f.secondSubmission(t, scout)
	f.svc.verifyTimeout = 20 * time.Millisecond
	f.svc.poll = chain.PollConfig{Initial: time.Hour}
	f.verifier.hang = map[common.Hash]bool{common.HexToHash(txHashOK): true}
	f.verifier.obs = &chain.Observation{BlockNumber: 42, Confirmations: 3}

	result, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, &ReconcileResult{Checked: 2, Confirmed: 1, Pending: 1}, result)

	var stored models.ClaimSubmission
	require.NoError(t, f.conn.First(&stored, "id = ?", fresh.ID).Error)
	require.Equal(t, enums.ClaimSubmissionConfirmed, stored.Status)
	require.NoError(t, f.conn.First(&stored, "id = ?", stuck.ID).Error)
	require.Equal(t, enums.ClaimSubmissionPending, stored.Status)
	require.NotNil(t, stored.NextCheckAt)

	again, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, again.Checked)
	require.Equal(t, 2, f.verifier.calls)
}

func TestReconcileSpacesChecksAcrossPasses(t *testing.T) {
	f := newFixture(t)
	_, sub := f.publishedSubmission(t)
	f.verifier.err = pkgerrors.Wrap(pkgerrors.CodeDependency, chain.ErrPending, "1 of 3 confirmations")
	f.svc.poll = chain.PollConfig{Initial: time.Hour, MaxInterval: 4 * time.Hour}
	start := time.Now().UTC().Truncate(time.Second).Add(time.Minute)
	f.svc.now = func() time.Time { return start }

	_, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	var stored models.ClaimSubmission
	require.NoError(t, f.conn.First(&stored, "id = ?", sub.ID).Error)
	require.NotNil(t, stored.NextCheckAt)
	require.True(t, stored.NextCheckAt.Equal(start.Add(time.Hour)), "next check %s", stored.NextCheckAt)

	f.svc.now = func() time.Time { return start.Add(30 * time.Minute) }
	early, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, early.Checked)

	due := start.Add(time.Hour)
	f.svc.now = func() time.Time { return due }
	result, err := f.svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Pending)

	require.NoError(t, f.conn.First(&stored, "id = ?", sub.ID).Error)
	require.Equal(t, 2, stored.Attempts)
	require.True(t, stored.NextCheckAt.Equal(due.Add(2*time.Hour)), "next check %s", stored.NextCheckAt)
	require.Equal(t, 2, f.verifier.calls)
}

func TestReconcileSkipsFailedSubmissionAndFinishesPass(t *testing.T) {
	f := newFixture(t)
	scout, pending := f.publishedSubmission(t)
	confirmed := f.secondSubmission(t, scout)
	f.verifier.obs = &chain.Observation{BlockNumber: 7, Confirmations: 3}
	f.verifier.byTx = map[common.Hash]error{
		common.HexToHash(txHashOK): pkgerrors.Wrap(pkgerrors.CodeDependency, chain.ErrPending, "not mined"),
	}
	require.NoError(t, f.conn.Exec("DROP TABLE outbox_events").Error)

	result, err := f.svc.ReconcilePending(context.Background())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Equal(t, &ReconcileResult{Checked: 2, Pending: 1, Failed: 1}, result)

	var stored models.ClaimSubmission
	require.NoError(t, f.conn.First(&stored, "id = ?", pending.ID).Error)
	require.Equal(t, 1, stored.Attempts)
	require.NoError(t, f.conn.First(&stored, "id = ?", confirmed.ID).Error)
	require.Equal(t, enums.ClaimSubmissionPending, stored.Status)
}

func TestSumTokensOverflow(t *testing.T) {
	ceiling := new(uint256.Int).SetAllOne()
	_, err := sumTokens([]models.TokensReceipt{
		{Value: dbtypes.NewUint256(ceiling)},
		{Value: dbtypes.Uint256FromUint64(1)},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))
}
