package leaderboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
)

// Candidate is a builder with gems for the evaluated week.
type Candidate struct {
	BuilderID     uuid.UUID `gorm:"column:builder_id"`
	DisplayName   string    `gorm:"column:display_name"`
	Path          string    `gorm:"column:path"`
	GemsCollected int64     `gorm:"column:gems_collected"`
}

// Repository reads ranker inputs from weekly stats and builder events.
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

// Candidates returns approved, non-deleted builders with positive gems for week.
func (r *Repository) Candidates(ctx context.Context, week string) ([]Candidate, error) {
	var rows []Candidate
	err := r.db.WithContext(ctx).
		Table("user_weekly_stats AS w").
		Select("s.id AS builder_id, s.display_name, s.path, w.gems_collected").
		Joins("JOIN scouts s ON s.id = w.user_id").
		Where("w.week = ?", week).
		Where("w.gems_collected > 0").
		Where("s.builder_status = ?", enums.BuilderStatusApproved).
		Where("s.deleted_at IS NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FirstMergedPullRequests returns the earliest merged_pull_request timestamp in season
// for each builder that has one.
func (r *Repository) FirstMergedPullRequests(ctx context.Context, season string, builderIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	out := make(map[uuid.UUID]time.Time, len(builderIDs))
	if len(builderIDs) == 0 {
		return out, nil
	}
	var events []models.BuilderEvent
	err := r.db.WithContext(ctx).
		Select("builder_id", "created_at").
		Where("type = ?", enums.BuilderEventMergedPullRequest).
		Where("season = ?", season).
		Where("builder_id IN ?", builderIDs).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if prev, ok := out[e.BuilderID]; !ok || e.CreatedAt.Before(prev) {
			out[e.BuilderID] = e.CreatedAt
		}
	}
	return out, nil
}

// SaveRanks writes the computed rank back onto each builder's weekly stats row.
func (r *Repository) SaveRanks(ctx context.Context, week string, entries []Entry) error {
	for _, e := range entries {
		err := r.db.WithContext(ctx).
			Model(&models.UserWeeklyStats{}).
			Where("user_id = ? AND week = ?", e.BuilderID, week).
			Update("rank", e.Rank).Error
		if err != nil {
			return err
		}
	}
	return nil
}
