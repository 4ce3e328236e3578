package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserWeeklyStats is frozen once the week closes.
type UserWeeklyStats struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Season        string    `gorm:"column:season;not null"`
	Week          string    `gorm:"column:week;not null"`
	GemsCollected int64     `gorm:"column:gems_collected;not null;default:0"`
	Rank          *int      `gorm:"column:rank"`
}

func (UserWeeklyStats) TableName() string {
	return "user_weekly_stats"
}

func (s *UserWeeklyStats) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// UserSeasonStats is a materialized view over receipts and purchases.
type UserSeasonStats struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Season                string    `gorm:"column:season;not null"`
	PointsEarnedAsBuilder float64   `gorm:"column:points_earned_as_builder;not null;default:0"`
	PointsEarnedAsScout   float64   `gorm:"column:points_earned_as_scout;not null;default:0"`
	NftsPurchased         int64     `gorm:"column:nfts_purchased;not null;default:0"`
}

func (UserSeasonStats) TableName() string {
	return "user_season_stats"
}

func (s *UserSeasonStats) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
