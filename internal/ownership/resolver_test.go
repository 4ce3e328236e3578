package ownership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/db/dbtest"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
)

type fakeDirectory struct {
	owners map[string]uuid.UUID
	calls  int
	err    error
}

func (f *fakeDirectory) ScoutsByWallet(_ context.Context, addresses []string) (map[string]uuid.UUID, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]uuid.UUID{}
	for _, a := range addresses {
		if id, ok := f.owners[a]; ok {
			out[a] = id
		}
	}
	return out, nil
}

func ptr(s string) *string { return &s }

func seedSeries(t *testing.T, conn *gorm.DB, builderID uuid.UUID, nftType enums.BuilderNftType) uuid.UUID {
	t.Helper()
	nft := models.BuilderNft{BuilderID: builderID, Season: "2025-W02", TokenID: 1, NftType: nftType, ContractAddress: "0xnft"}
	require.NoError(t, conn.Create(&nft).Error)
	return nft.ID
}

func TestResolveAggregatesByWalletAndScout(t *testing.T) {
	conn := dbtest.Open(t)
	builderID := uuid.New()
	defaultSeries := seedSeries(t, conn, builderID, enums.BuilderNftTypeDefault)
	starterSeries := seedSeries(t, conn, builderID, enums.BuilderNftTypeStarterPack)

	rows := []models.NftPurchaseEvent{
		{BuilderNftID: defaultSeries, ToAddress: ptr("0xAAAA000000000000000000000000000000000001"), TokensPurchased: 5, Week: "2025-W02", TxHash: "0x1", CreatedAt: t0},
		{BuilderNftID: defaultSeries, ToAddress: ptr(bob), TokensPurchased: 3, Week: "2025-W02", TxHash: "0x2", CreatedAt: t0.Add(time.Minute)},
		{BuilderNftID: starterSeries, ToAddress: ptr(bob), TokensPurchased: 1, Week: "2025-W03", TxHash: "0x3", CreatedAt: t0.Add(time.Hour)},
		{BuilderNftID: defaultSeries, ToAddress: ptr(carol), TokensPurchased: 2, Week: "2025-W03", TxHash: "0x4", CreatedAt: t0.Add(2 * time.Hour)},
		{BuilderNftID: defaultSeries, FromAddress: ptr(carol), ToAddress: ptr(alice), TokensPurchased: 1, Week: "2025-W05", TxHash: "0x5", CreatedAt: t0.Add(3 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, conn.Create(&rows[i]).Error)
	}

	scout := uuid.New()
	dir := &fakeDirectory{owners: map[string]uuid.UUID{alice: scout, bob: scout}}
	resolver, err := NewResolver(NewRepository(conn), dir)
	require.NoError(t, err)

	h, err := resolver.Resolve(context.Background(), builderID, "2025-W02", isoweek.MustParse("2025-W04"))
	require.NoError(t, err)

	require.Equal(t, Balance{Default: 10, StarterPack: 1}, h.Supply)
	require.Equal(t, Balance{Default: 5}, h.ByWallet[alice])
	require.Equal(t, Balance{Default: 8, StarterPack: 1}, h.ByScout[scout])
	require.Equal(t, []string{carol}, h.Unowned)
	require.Equal(t, 1, dir.calls)
}

func TestResolveSurfacesLedgerCorruption(t *testing.T) {
	conn := dbtest.Open(t)
	builderID := uuid.New()
	series := seedSeries(t, conn, builderID, enums.BuilderNftTypeDefault)
	require.NoError(t, conn.Create(&models.NftPurchaseEvent{
		BuilderNftID: series, FromAddress: ptr(alice), TokensPurchased: 1, Week: "2025-W02", TxHash: "0xburn",
	}).Error)

	resolver, err := NewResolver(NewRepository(conn), &fakeDirectory{})
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), builderID, "2025-W02", isoweek.MustParse("2025-W02"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))
}

func TestResolveDirectoryFailureIsRetryable(t *testing.T) {
	conn := dbtest.Open(t)
	builderID := uuid.New()
	series := seedSeries(t, conn, builderID, enums.BuilderNftTypeDefault)
	require.NoError(t, conn.Create(&models.NftPurchaseEvent{
		BuilderNftID: series, ToAddress: ptr(alice), TokensPurchased: 1, Week: "2025-W02", TxHash: "0xmint",
	}).Error)

	resolver, err := NewResolver(NewRepository(conn), &fakeDirectory{err: errors.New("conn reset")})
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), builderID, "2025-W02", isoweek.MustParse("2025-W02"))
	require.True(t, pkgerrors.IsRetryable(err))
}

func TestFromRowRejectsEmptyEndpoints(t *testing.T) {
	_, err := FromRow(models.NftPurchaseEvent{ID: uuid.New(), TokensPurchased: 1, Week: "2025-W02"}, enums.BuilderNftTypeDefault)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))

	_, err = FromRow(models.NftPurchaseEvent{ID: uuid.New(), ToAddress: ptr(alice), TokensPurchased: 1, Week: "bad"}, enums.BuilderNftTypeDefault)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDataIntegrity))
}
