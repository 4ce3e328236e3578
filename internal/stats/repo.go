package stats

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
)

// Repository reads the receipt and purchase history stats are derived from.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ReceivedPoints returns every points receipt paid to scoutID.
func (r *Repository) ReceivedPoints(ctx context.Context, scoutID uuid.UUID) ([]models.PointsReceipt, error) {
	var receipts []models.PointsReceipt
	err := r.db.WithContext(ctx).Where("recipient_id = ?", scoutID).Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// SentPoints returns every points receipt paid by scoutID.
func (r *Repository) SentPoints(ctx context.Context, scoutID uuid.UUID) ([]models.PointsReceipt, error) {
	var receipts []models.PointsReceipt
	err := r.db.WithContext(ctx).Where("sender_id = ?", scoutID).Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// PayoutEventIDs returns the ids of scoutID's own gems_payout events in season.
func (r *Repository) PayoutEventIDs(ctx context.Context, scoutID uuid.UUID, season string) (map[uuid.UUID]struct{}, error) {
	var events []models.BuilderEvent
	err := r.db.WithContext(ctx).
		Select("id").
		Where("builder_id = ? AND season = ? AND type = ?", scoutID, season, enums.BuilderEventGemsPayout).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]struct{}, len(events))
	for _, e := range events {
		out[e.ID] = struct{}{}
	}
	return out, nil
}

// MintedNfts sums the NFTs scoutID bought from builders in season.
func (r *Repository) MintedNfts(ctx context.Context, scoutID uuid.UUID, season string) (int64, error) {
	var rows []models.NftPurchaseEvent
	err := r.db.WithContext(ctx).
		Table("nft_purchase_events AS e").
		Select("e.tokens_purchased").
		Joins("JOIN builder_nfts n ON n.id = e.builder_nft_id").
		Where("e.scout_id = ? AND e.from_address IS NULL AND n.season = ?", scoutID, season).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}
	var total int64
	for _, row := range rows {
		total += row.TokensPurchased
	}
	return total, nil
}

func (r *Repository) SetBalance(ctx context.Context, scoutID uuid.UUID, balance float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Scout{}).
		Where("id = ?", scoutID).
		Update("current_balance", balance).Error
}

// UpsertSeasonStats writes the season row for row.UserID, replacing its totals.
func (r *Repository) UpsertSeasonStats(ctx context.Context, row *models.UserSeasonStats) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "season"}},
			DoUpdates: clause.AssignmentColumns([]string{"points_earned_as_builder", "points_earned_as_scout", "nfts_purchased"}),
		}).
		Create(row).Error
}

