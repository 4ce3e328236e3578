package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	dlqRetentionDays    = 90
	outboxMinAttempts   = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Repository   outboxRetentionRepo
	DLQ          dlqRetentionRepo
	Retention    int
	DLQRetention int
	MinAttempts  int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// NewOutboxRetentionJob prunes relayed outbox rows and old dead letters. Alerts for
// blocked payouts and claim mismatches live in the outbox until relayed, so only
// published or exhausted rows are removed.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		dlq:          params.DLQ,
		retention:    orDefault(params.Retention, outboxRetentionDays),
		dlqRetention: orDefault(params.DLQRetention, dlqRetentionDays),
		minAttempts:  orDefault(params.MinAttempts, outboxMinAttempts),
		now:          time.Now,
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	repo         outboxRetentionRepo
	dlq          dlqRetentionRepo
	retention    int
	dlqRetention int
	minAttempts  int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-days(j.retention))
	dlqCutoff := now.Add(-days(j.dlqRetention))
	var deleted, dead int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
		if err != nil {
			return err
		}
		deleted = rows
		if j.dlq == nil {
			return nil
		}
		dead, err = j.dlq.DeleteFailedBefore(ctx, tx, dlqCutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	ctx = j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"dlq_cutoff":   dlqCutoff,
		"min_attempts": j.minAttempts,
		"rows_deleted": deleted,
		"dlq_deleted":  dead,
	})
	j.logg.Info(ctx, "outbox retention cleanup complete")
	j.reportRecentDeadLetters(ctx, now)
	return nil
}

// reportRecentDeadLetters warns when events were dead-lettered in the last day.
func (j *outboxRetentionJob) reportRecentDeadLetters(ctx context.Context, now time.Time) {
	if j.dlq == nil {
		return
	}
	recent, err := j.dlq.CountSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		j.logg.Error(ctx, "count recent dead letters", err)
		return
	}
	if recent > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "dead_letters_24h", recent), "outbox events dead-lettered in the last day")
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
