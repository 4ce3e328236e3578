package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScoutMergeEvent is the append-only audit row for an account merge.
type ScoutMergeEvent struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MergedFromID  uuid.UUID       `gorm:"column:merged_from_id;type:uuid;not null;uniqueIndex"`
	MergedToID    uuid.UUID       `gorm:"column:merged_to_id;type:uuid;not null;index"`
	MergedRecords json.RawMessage `gorm:"column:merged_records;type:jsonb;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *ScoutMergeEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
