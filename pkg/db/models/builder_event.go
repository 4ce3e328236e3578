package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/enums"
)

// BuilderEvent is an append-only activity record for a builder.
type BuilderEvent struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	BuilderID uuid.UUID              `gorm:"column:builder_id;type:uuid;not null;index"`
	Type      enums.BuilderEventType `gorm:"column:type;type:builder_event_type_enum;not null"`
	Season    string                 `gorm:"column:season;not null"`
	Week      string                 `gorm:"column:week;not null"`
	Metadata  json.RawMessage        `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time              `gorm:"column:created_at"`
}

func (e *BuilderEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ReferralEvent links a referrer to the scout they brought in.
type ReferralEvent struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ReferrerID uuid.UUID `gorm:"column:referrer_id;type:uuid;not null;index"`
	RefereeID  uuid.UUID `gorm:"column:referee_id;type:uuid;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (e *ReferralEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
