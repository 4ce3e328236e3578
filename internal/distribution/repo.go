package distribution

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/internal/leaderboard"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
)

// Repository writes weekly payout rows.
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

// PayoutExists reports whether builderID already has a gems_payout event for week.
func (r *Repository) PayoutExists(ctx context.Context, builderID uuid.UUID, week string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BuilderEvent{}).
		Where("builder_id = ? AND week = ? AND type = ?", builderID, week, enums.BuilderEventGemsPayout).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) CreatePayoutEvent(ctx context.Context, event *models.BuilderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *Repository) CreatePointsReceipts(ctx context.Context, receipts []models.PointsReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&receipts).Error
}

func (r *Repository) CreateTokensReceipts(ctx context.Context, receipts []models.TokensReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&receipts).Error
}

// SaveRanks freezes the computed ranks on the weekly stats rows.
func (r *Repository) SaveRanks(ctx context.Context, week string, entries []leaderboard.Entry) error {
	return leaderboard.NewRepository(r.db).SaveRanks(ctx, week, entries)
}

// RunRecorded reports whether the weekly run for aggregateID already committed.
func (r *Repository) RunRecorded(ctx context.Context, aggregateID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_type = ? AND aggregate_id = ?",
			enums.EventWeeklyRewardsDistributed, enums.AggregateSeasonWeek, aggregateID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
