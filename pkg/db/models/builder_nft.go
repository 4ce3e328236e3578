package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/enums"
)

// BuilderNft identifies one (builder, season, type) NFT series.
type BuilderNft struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	BuilderID       uuid.UUID            `gorm:"column:builder_id;type:uuid;not null;index"`
	Season          string               `gorm:"column:season;not null"`
	TokenID         int64                `gorm:"column:token_id;not null"`
	NftType         enums.BuilderNftType `gorm:"column:nft_type;type:builder_nft_type_enum;not null"`
	ContractAddress string               `gorm:"column:contract_address;not null"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (n *BuilderNft) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

// NftPurchaseEvent is one row of the ownership ledger. A nil FromAddress is a mint,
// a nil ToAddress is a burn and both set is a transfer.
type NftPurchaseEvent struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	BuilderNftID    uuid.UUID  `gorm:"column:builder_nft_id;type:uuid;not null;index"`
	ScoutID         *uuid.UUID `gorm:"column:scout_id;type:uuid;index"`
	FromAddress     *string    `gorm:"column:from_address"`
	ToAddress       *string    `gorm:"column:to_address"`
	TokensPurchased int64      `gorm:"column:tokens_purchased;not null"`
	Week            string     `gorm:"column:week;not null"`
	TxHash          string     `gorm:"column:tx_hash;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
}

func (e *NftPurchaseEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
