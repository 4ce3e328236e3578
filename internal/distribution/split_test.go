package distribution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/scoutledger/backend/internal/ownership"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

func TestPoolSplitValidate(t *testing.T) {
	require.NoError(t, DefaultPoolSplit().Validate())

	err := PoolSplit{Builder: 20, Default: 70, StarterPack: 5}.Validate()
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))

	err = PoolSplit{Builder: -10, Default: 100, StarterPack: 10}.Validate()
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))
}

func TestSplitPointsProportionalShares(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	out, err := SplitPoints(DefaultPoolSplit(), PointsInput{
		Rank:   1,
		Pool:   1000,
		Supply: ownership.Balance{Default: 10, StarterPack: 2},
		Holders: map[uuid.UUID]ownership.Balance{
			a: {Default: 7, StarterPack: 1},
			b: {Default: 3, StarterPack: 1},
		},
	})
	require.NoError(t, err)

	require.Equal(t, 200.0, out.BuilderReward)
	require.Equal(t, 540.0, out.Holders[a]) // 490 + 50
	require.Equal(t, 260.0, out.Holders[b]) // 210 + 50
	require.LessOrEqual(t, out.Total(), 1000.0)
}

func TestSplitPointsFloorsAndNeverExceedsPool(t *testing.T) {
	holders := map[uuid.UUID]ownership.Balance{}
	for i := 0; i < 7; i++ {
		holders[uuid.New()] = ownership.Balance{Default: 1}
	}
	for _, pool := range []float64{1, 13, 999, 12345} {
		out, err := SplitPoints(DefaultPoolSplit(), PointsInput{
			Rank:    3,
			Pool:    pool,
			Supply:  ownership.Balance{Default: 7},
			Holders: holders,
		})
		require.NoError(t, err)
		require.LessOrEqual(t, out.Total(), pool)
		for _, v := range out.Holders {
			require.Equal(t, float64(int64(v)), v)
		}
	}
}

func TestSplitStarterSupplyZeroPaysNothingToStarterPool(t *testing.T) {
	holder := uuid.New()
	points, err := SplitPoints(DefaultPoolSplit(), PointsInput{
		Rank:    1,
		Pool:    1000,
		Supply:  ownership.Balance{Default: 4},
		Holders: map[uuid.UUID]ownership.Balance{holder: {Default: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 700.0, points.Holders[holder])
	require.Equal(t, 900.0, points.Total(), "the 10% starter pool is left undistributed")

	wallet := "0x1"
	tokens, err := SplitTokens(DefaultPoolSplit(), TokensInput{
		Rank:    1,
		Pool:    uint256.NewInt(1_000_000),
		Supply:  ownership.Balance{Default: 4},
		Holders: map[string]ownership.Balance{wallet: {Default: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(700_000), tokens.Holders[wallet].Uint64())
	require.Equal(t, uint64(900_000), tokens.Total().Uint64())
}

func TestSplitTokensExactIntegerArithmetic(t *testing.T) {
	pool, err := uint256.FromDecimal("1234567890123456789012345")
	require.NoError(t, err)

	holders := map[string]ownership.Balance{
		"0xa": {Default: 1},
		"0xb": {Default: 2, StarterPack: 1},
		"0xc": {Default: 4, StarterPack: 2},
	}
	out, err := SplitTokens(DefaultPoolSplit(), TokensInput{
		Rank:    5,
		Pool:    pool,
		Supply:  ownership.Balance{Default: 7, StarterPack: 3},
		Holders: holders,
	})
	require.NoError(t, err)

	// 1234567890123456789012345 * 70 * 1 / 700
	require.Equal(t, "123456789012345678901234", out.Holders["0xa"].Dec())
	require.Equal(t, "246913578024691357802469", out.BuilderReward.Dec())
	require.LessOrEqual(t, out.Total().Cmp(pool), 0)
}

func TestSplitRejectsPurchasedAboveSupply(t *testing.T) {
	_, err := SplitPoints(DefaultPoolSplit(), PointsInput{
		Rank:    1,
		Pool:    100,
		Supply:  ownership.Balance{Default: 2},
		Holders: map[uuid.UUID]ownership.Balance{uuid.New(): {Default: 3}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))

	_, err = SplitTokens(DefaultPoolSplit(), TokensInput{
		Rank:    1,
		Pool:    uint256.NewInt(100),
		Supply:  ownership.Balance{Default: 2, StarterPack: 1},
		Holders: map[string]ownership.Balance{"0xa": {StarterPack: 2}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))

	_, err = SplitTokens(DefaultPoolSplit(), TokensInput{
		Rank:   1,
		Pool:   uint256.NewInt(100),
		Supply: ownership.Balance{Default: 2},
		Holders: map[string]ownership.Balance{
			"0xa": {Default: 2},
			"0xb": {Default: 1},
		},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))
}

func TestSplitRejectsRankBelowOne(t *testing.T) {
	_, err := SplitPoints(DefaultPoolSplit(), PointsInput{Rank: 0, Pool: 100})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = SplitTokens(DefaultPoolSplit(), TokensInput{Rank: -1, Pool: uint256.NewInt(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSplitRejectsBadPercentages(t *testing.T) {
	_, err := SplitTokens(PoolSplit{Builder: 30, Default: 70, StarterPack: 10}, TokensInput{Rank: 1, Pool: uint256.NewInt(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))
}
