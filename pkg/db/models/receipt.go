package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/scoutledger/backend/pkg/db/types"
)

// PointsReceipt records points owed to RecipientID. A nil SenderID means the system
// paid the points; a nil RecipientID means they left the ledger.
type PointsReceipt struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	EventID     uuid.UUID  `gorm:"column:event_id;type:uuid;not null;index"`
	RecipientID *uuid.UUID `gorm:"column:recipient_id;type:uuid;index"`
	SenderID    *uuid.UUID `gorm:"column:sender_id;type:uuid;index"`
	Value       float64    `gorm:"column:value;not null"`
	Season      string     `gorm:"column:season;not null"`
	Week        string     `gorm:"column:week;not null"`
	ClaimedAt   *time.Time `gorm:"column:claimed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *PointsReceipt) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// TokensReceipt records token base units owed to a wallet.
type TokensReceipt struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventID          uuid.UUID       `gorm:"column:event_id;type:uuid;not null;index"`
	RecipientAddress string          `gorm:"column:recipient_address;not null;index"`
	RecipientID      *uuid.UUID      `gorm:"column:recipient_id;type:uuid;index"`
	SenderID         *uuid.UUID      `gorm:"column:sender_id;type:uuid"`
	Value            dbtypes.Uint256 `gorm:"column:value;type:numeric(78,0);not null"`
	Season           string          `gorm:"column:season;not null"`
	Week             string          `gorm:"column:week;not null"`
	ClaimedAt        *time.Time      `gorm:"column:claimed_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (r *TokensReceipt) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
