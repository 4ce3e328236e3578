package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutledger/backend/internal/claims"
	"github.com/scoutledger/backend/internal/leaderboard"
	"github.com/scoutledger/backend/pkg/config"
	"github.com/scoutledger/backend/pkg/db/models"
	dbtypes "github.com/scoutledger/backend/pkg/db/types"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryStore struct{ data map[string]string }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + "|" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type fakeClaims struct {
	balance     *claims.Balance
	claimCalls  int
	lastWeek    string
	proof       *claims.Proof
	proofErr    error
	submissions []claims.Submission
}

func (f *fakeClaims) Balance(_ context.Context, scoutID uuid.UUID) (*claims.Balance, error) {
	if f.balance == nil || f.balance.ScoutID != scoutID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "scout %s not found", scoutID)
	}
	return f.balance, nil
}

func (f *fakeClaims) ClaimPoints(_ context.Context, scoutID uuid.UUID, week string) (*claims.PointsClaim, error) {
	f.claimCalls++
	f.lastWeek = week
	return &claims.PointsClaim{ScoutID: scoutID, Week: week, Receipts: 2, Points: 40, Balance: 140}, nil
}

func (f *fakeClaims) GetProof(_ context.Context, week, address string) (*claims.Proof, error) {
	if f.proofErr != nil {
		return nil, f.proofErr
	}
	return f.proof, nil
}

func (f *fakeClaims) SubmitOnchainClaim(_ context.Context, in claims.Submission) (*models.ClaimSubmission, error) {
	f.submissions = append(f.submissions, in)
	return &models.ClaimSubmission{
		ID:            uuid.New(),
		ScoutID:       in.ScoutID,
		WalletAddress: strings.ToLower(in.Wallet),
		Week:          in.Week,
		TxHash:        strings.ToLower(in.TxHash),
		Status:        enums.ClaimSubmissionPending,
		Amount:        dbtypes.Uint256FromUint64(1500),
	}, nil
}

type fakeLeaderboard struct {
	season, week string
	n            int
}

func (f *fakeLeaderboard) Top(_ context.Context, season, week string, n int) ([]leaderboard.Entry, error) {
	f.season, f.week, f.n = season, week, n
	return []leaderboard.Entry{{BuilderID: uuid.New(), DisplayName: "ada", GemsCollected: 12, Rank: 1}}, nil
}

type harness struct {
	handler http.Handler
	claims  *fakeClaims
	board   *fakeLeaderboard
}

func newHarness(t *testing.T, redisErr error) *harness {
	t.Helper()
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	logg := logger.New(logger.Options{ServiceName: "api-test", Output: io.Discard})
	fc := &fakeClaims{}
	board := &fakeLeaderboard{}
	now := func() time.Time { return time.Date(2025, 2, 12, 9, 0, 0, 0, time.UTC) }
	h := NewRouter(cfg, logg, stubPinger{}, &memoryStore{data: map[string]string{}}, stubPinger{err: redisErr}, Services{
		Balances:    fc,
		Points:      fc,
		Proofs:      fc,
		Onchain:     fc,
		Leaderboard: board,
		SeasonID:    "2025-W02",
		Now:         now,
	})
	return &harness{handler: h, claims: fc, board: board}
}

func (h *harness) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data  map[string]any `json:"data"`
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&env))
	return env.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeData(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	down := newHarness(t, errors.New("dial tcp: refused"))
	rec = down.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))

	rec = down.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScoutBalance(t *testing.T) {
	h := newHarness(t, nil)
	scoutID := uuid.New()
	h.claims.balance = &claims.Balance{
		ScoutID:         scoutID,
		CurrentBalance:  100,
		UnclaimedPoints: 40,
		UnclaimedTokens: "1500000000000000000",
	}

	rec := h.do(http.MethodGet, "/api/v1/scouts/"+scoutID.String()+"/balance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(100), data["currentBalance"])
	assert.Equal(t, "1500000000000000000", data["unclaimedTokens"])
	assert.Equal(t, "1.5", data["unclaimedTokensDisplay"])

	rec = h.do(http.MethodGet, "/api/v1/scouts/"+uuid.NewString()+"/balance", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/scouts/nope/balance", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointsClaimRequiresAndHonoursIdempotencyKey(t *testing.T) {
	h := newHarness(t, nil)
	path := fmt.Sprintf("/api/v1/scouts/%s/claims/points", uuid.New())

	rec := h.do(http.MethodPost, path, `{"week":"2025-W05"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.claims.claimCalls)

	headers := map[string]string{"Idempotency-Key": "claim-1", "Content-Type": "application/json"}
	first := h.do(http.MethodPost, path, `{"week":"2025-W05"}`, headers)
	require.Equal(t, http.StatusOK, first.Code)
	replay := h.do(http.MethodPost, path, `{"week":"2025-W05"}`, headers)
	require.Equal(t, http.StatusOK, replay.Code)

	assert.Equal(t, 1, h.claims.claimCalls)
	assert.Equal(t, "2025-W05", h.claims.lastWeek)
	assert.Equal(t, first.Body.String(), replay.Body.String())

	reused := h.do(http.MethodPost, path, `{"week":"2025-W06"}`, headers)
	assert.Equal(t, http.StatusConflict, reused.Code)

	bad := h.do(http.MethodPost, path, `{"week":"week five"}`, map[string]string{"Idempotency-Key": "claim-2"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestClaimProof(t *testing.T) {
	h := newHarness(t, nil)
	h.claims.proof = &claims.Proof{Week: "2025-W05", MerkleRoot: "0xroot", Index: 3, Address: "0xabc", Amount: "1500", Proof: []string{"0x01"}}

	rec := h.do(http.MethodGet, "/api/v1/claims/2025-W05/proofs/0xabc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "0xroot", data["merkleRoot"])

	h.claims.proofErr = pkgerrors.New(pkgerrors.CodeNotFound, "no claim published for 2025-W09")
	rec = h.do(http.MethodGet, "/api/v1/claims/2025-W09/proofs/0xabc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOnchainClaimSubmission(t *testing.T) {
	h := newHarness(t, nil)
	scoutID := uuid.New()
	body := fmt.Sprintf(`{"scoutId":%q,"week":"2025-W05","wallet":"0x00000000000000000000000000000000000000AA","txHash":"0x%s"}`,
		scoutID, strings.Repeat("ab", 32))

	rec := h.do(http.MethodPost, "/api/v1/claims/onchain", body, map[string]string{"Idempotency-Key": "tx-1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "1500", data["amount"])
	require.Len(t, h.claims.submissions, 1)
	assert.Equal(t, scoutID, h.claims.submissions[0].ScoutID)

	rec = h.do(http.MethodPost, "/api/v1/claims/onchain", `{"scoutId":"x","week":"2025-W05","wallet":"0x1","txHash":"0x2"}`, map[string]string{"Idempotency-Key": "tx-2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, h.claims.submissions, 1)
}

func TestLeaderboardDefaultsToCurrentWeek(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/v1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-W07", h.board.week)
	assert.Equal(t, "2025-W02", h.board.season)

	rec = h.do(http.MethodGet, "/api/v1/leaderboard?week=2025-W04&limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-W04", h.board.week)
	assert.Equal(t, 10, h.board.n)
	entries, ok := decodeData(t, rec)["entries"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 1)

	rec = h.do(http.MethodGet, "/api/v1/leaderboard?week=2025W04", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
