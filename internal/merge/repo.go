package merge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
)

// Repository moves ledger rows between scout identities.
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

// Reassign points column of every model row from one scout to another.
func (r *Repository) Reassign(ctx context.Context, model any, column string, from, to uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(model).
		Where(column+" = ?", from).
		Update(column, to)
	return res.RowsAffected, res.Error
}

// StarterPacksBought sums the starter pack mints bought by any of scoutIDs.
func (r *Repository) StarterPacksBought(ctx context.Context, scoutIDs []uuid.UUID) (int64, error) {
	var rows []models.NftPurchaseEvent
	err := r.db.WithContext(ctx).
		Table("nft_purchase_events AS e").
		Select("e.tokens_purchased").
		Joins("JOIN builder_nfts n ON n.id = e.builder_nft_id").
		Where("e.scout_id IN ? AND e.from_address IS NULL AND n.nft_type = ?", scoutIDs, enums.BuilderNftTypeStarterPack).
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

func (r *Repository) HasWallets(ctx context.Context, scoutID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ScoutWallet{}).Where("scout_id = ?", scoutID).Count(&count).Error
	return count > 0, err
}

func (r *Repository) ClearPrimaryWallets(ctx context.Context, scoutID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ScoutWallet{}).
		Where("scout_id = ?", scoutID).
		Update("is_primary", false).Error
}

func (r *Repository) WeeklyStats(ctx context.Context, scoutID uuid.UUID) ([]models.UserWeeklyStats, error) {
	var rows []models.UserWeeklyStats
	if err := r.db.WithContext(ctx).Where("user_id = ?", scoutID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) AddGems(ctx context.Context, statsID uuid.UUID, gems int64) error {
	return r.db.WithContext(ctx).
		Model(&models.UserWeeklyStats{}).
		Where("id = ?", statsID).
		Update("gems_collected", gorm.Expr("gems_collected + ?", gems)).Error
}

func (r *Repository) DeleteWeeklyStats(ctx context.Context, statsID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", statsID).Delete(&models.UserWeeklyStats{}).Error
}

// SeasonsWithStats lists the seasons either scout has a season stats row for.
func (r *Repository) SeasonsWithStats(ctx context.Context, scoutIDs []uuid.UUID) ([]string, error) {
	var seasons []string
	err := r.db.WithContext(ctx).
		Model(&models.UserSeasonStats{}).
		Where("user_id IN ?", scoutIDs).
		Distinct().
		Order("season").
		Pluck("season", &seasons).Error
	return seasons, err
}

func (r *Repository) DeleteSeasonStats(ctx context.Context, scoutID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", scoutID).Delete(&models.UserSeasonStats{})
	return res.RowsAffected, res.Error
}

func (r *Repository) SetBuilderStatus(ctx context.Context, scoutID uuid.UUID, status *enums.BuilderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Scout{}).
		Where("id = ?", scoutID).
		Update("builder_status", status).Error
}

// SoftDelete retires scoutID. Its balance moves with its receipts, so it is zeroed.
func (r *Repository) SoftDelete(ctx context.Context, scoutID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Scout{}).
		Where("id = ? AND deleted_at IS NULL", scoutID).
		Updates(map[string]any{"deleted_at": at, "current_balance": 0}).Error
}

func (r *Repository) CreateMergeEvent(ctx context.Context, event *models.ScoutMergeEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
