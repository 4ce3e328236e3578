package stats

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/scoutledger/backend/pkg/db/dbtest"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	"github.com/scoutledger/backend/pkg/logger"
)

const season = "2025-W02"

func TestRecomputeScoutsReplaysHistory(t *testing.T) {
	client, conn := dbtest.Client(t)
	svc, err := NewService(client, NewRepository(conn), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	builder := models.Scout{Path: "ada", DisplayName: "Ada", CurrentBalance: 9999}
	require.NoError(t, conn.Create(&builder).Error)
	other := uuid.New()

	own := models.BuilderEvent{BuilderID: builder.ID, Type: enums.BuilderEventGemsPayout, Season: season, Week: "2025-W03"}
	foreign := models.BuilderEvent{BuilderID: other, Type: enums.BuilderEventGemsPayout, Season: season, Week: "2025-W03"}
	require.NoError(t, conn.Create(&own).Error)
	require.NoError(t, conn.Create(&foreign).Error)

	claimed := time.Now().UTC()
	id := builder.ID
	receipts := []models.PointsReceipt{
		{EventID: own.ID, RecipientID: &id, Value: 120, Season: season, Week: "2025-W03", ClaimedAt: &claimed},
		{EventID: foreign.ID, RecipientID: &id, Value: 30, Season: season, Week: "2025-W03"},
		{EventID: uuid.New(), RecipientID: &id, Value: 7, Season: "2024-W40", Week: "2024-W41", ClaimedAt: &claimed},
		{EventID: uuid.New(), SenderID: &id, Value: 20, Season: season, Week: "2025-W04"},
	}
	require.NoError(t, conn.Create(&receipts).Error)

	nft := models.BuilderNft{BuilderID: other, Season: season, TokenID: 1, NftType: enums.BuilderNftTypeDefault, ContractAddress: "0xnft"}
	require.NoError(t, conn.Create(&nft).Error)
	to := "0x00000000000000000000000000000000000000a1"
	require.NoError(t, conn.Create(&[]models.NftPurchaseEvent{
		{BuilderNftID: nft.ID, ScoutID: &id, ToAddress: &to, TokensPurchased: 3, Week: "2025-W03", TxHash: "0x1"},
		{BuilderNftID: nft.ID, ScoutID: &id, FromAddress: &to, TokensPurchased: 1, Week: "2025-W04", TxHash: "0x2"},
	}).Error)

	ctx := context.Background()
	require.NoError(t, svc.RecomputeScouts(ctx, season, []uuid.UUID{builder.ID}))
	// Running twice must land on the same totals.
	require.NoError(t, svc.RecomputeScouts(ctx, season, []uuid.UUID{builder.ID}))

	var stored models.Scout
	require.NoError(t, conn.First(&stored, "id = ?", builder.ID).Error)
	require.Equal(t, 107.0, stored.CurrentBalance)

	var row models.UserSeasonStats
	require.NoError(t, conn.Where("user_id = ? AND season = ?", builder.ID, season).First(&row).Error)
	require.Equal(t, 120.0, row.PointsEarnedAsBuilder)
	require.Equal(t, 30.0, row.PointsEarnedAsScout)
	require.EqualValues(t, 3, row.NftsPurchased)

	var count int64
	require.NoError(t, conn.Model(&models.UserSeasonStats{}).Where("user_id = ?", builder.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
