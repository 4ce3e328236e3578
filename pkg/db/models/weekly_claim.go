package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/scoutledger/backend/pkg/db/types"
	"github.com/scoutledger/backend/pkg/enums"
)

// WeeklyClaim is the published Merkle snapshot for one week. Rows are never updated.
type WeeklyClaim struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Season         string          `gorm:"column:season;not null"`
	Week           string          `gorm:"column:week;not null;uniqueIndex"`
	MerkleRoot     string          `gorm:"column:merkle_root;not null"`
	TotalClaimable dbtypes.Uint256 `gorm:"column:total_claimable;type:numeric(78,0);not null"`
	Leaves         json.RawMessage `gorm:"column:leaves;type:jsonb;not null"`
	Proofs         json.RawMessage `gorm:"column:proofs;type:jsonb;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (c *WeeklyClaim) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// ClaimSubmission is an optimistic record of an on-chain claim awaiting reconcile.
type ClaimSubmission struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	ScoutID       uuid.UUID                   `gorm:"column:scout_id;type:uuid;not null;index"`
	WalletAddress string                      `gorm:"column:wallet_address;not null"`
	Season        string                      `gorm:"column:season;not null"`
	Week          string                      `gorm:"column:week;not null"`
	LeafIndex     int                         `gorm:"column:leaf_index;not null"`
	Amount        dbtypes.Uint256             `gorm:"column:amount;type:numeric(78,0);not null"`
	TxHash        string                      `gorm:"column:tx_hash;not null;uniqueIndex"`
	Status        enums.ClaimSubmissionStatus `gorm:"column:status;type:claim_submission_status_enum;not null"`
	Attempts      int                         `gorm:"column:attempts;not null;default:0"`
	LastError     *string                     `gorm:"column:last_error"`
	NextCheckAt   *time.Time                  `gorm:"column:next_check_at"`
	ConfirmedAt   *time.Time                  `gorm:"column:confirmed_at"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *ClaimSubmission) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
