package ownership

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
)

type eventRow struct {
	ID              uuid.UUID            `gorm:"column:id"`
	BuilderNftID    uuid.UUID            `gorm:"column:builder_nft_id"`
	NftType         enums.BuilderNftType `gorm:"column:nft_type"`
	FromAddress     *string              `gorm:"column:from_address"`
	ToAddress       *string              `gorm:"column:to_address"`
	TokensPurchased int64                `gorm:"column:tokens_purchased"`
	Week            string               `gorm:"column:week"`
	CreatedAt       time.Time            `gorm:"column:created_at"`
}

// Repository reads the append-only ownership ledger.
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

// ListForBuilder returns every ledger event of the builder's series in season.
func (r *Repository) ListForBuilder(ctx context.Context, builderID uuid.UUID, season string) ([]Event, error) {
	var rows []eventRow
	err := r.db.WithContext(ctx).
		Table("nft_purchase_events AS e").
		Select("e.id, e.builder_nft_id, n.nft_type, e.from_address, e.to_address, e.tokens_purchased, e.week, e.created_at").
		Joins("JOIN builder_nfts n ON n.id = e.builder_nft_id").
		Where("n.builder_id = ? AND n.season = ?", builderID, season).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		e, err := FromRow(models.NftPurchaseEvent{
			ID:              row.ID,
			BuilderNftID:    row.BuilderNftID,
			FromAddress:     row.FromAddress,
			ToAddress:       row.ToAddress,
			TokensPurchased: row.TokensPurchased,
			Week:            row.Week,
			CreatedAt:       row.CreatedAt,
		}, row.NftType)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
