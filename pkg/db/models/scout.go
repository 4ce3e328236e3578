package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/enums"
)

// Scout is the canonical user identity. Builders are scouts with a builder status.
type Scout struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Path           string               `gorm:"column:path;not null;uniqueIndex"`
	DisplayName    string               `gorm:"column:display_name;not null"`
	BuilderStatus  *enums.BuilderStatus `gorm:"column:builder_status;type:builder_status_enum"`
	CurrentBalance float64              `gorm:"column:current_balance;not null;default:0"`
	DeletedAt      *time.Time           `gorm:"column:deleted_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Scout) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// IsBuilder reports whether the scout ever applied as a builder.
func (s Scout) IsBuilder() bool {
	return s.BuilderStatus != nil
}

func (s Scout) IsDeleted() bool {
	return s.DeletedAt != nil
}

// ScoutWallet links a lowercase hex address to the scout that controls it.
type ScoutWallet struct {
	Address   string    `gorm:"column:address;primaryKey"`
	ScoutID   uuid.UUID `gorm:"column:scout_id;type:uuid;not null;index"`
	Primary   bool      `gorm:"column:is_primary;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
