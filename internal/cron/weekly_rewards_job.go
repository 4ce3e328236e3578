package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scoutledger/backend/internal/distribution"
	"github.com/scoutledger/backend/internal/rewards"
	"github.com/scoutledger/backend/pkg/isoweek"
	"github.com/scoutledger/backend/pkg/logger"
)

type weeklyDistributor interface {
	Distributed(ctx context.Context, week isoweek.Week) (bool, error)
	Distribute(ctx context.Context, week isoweek.Week) (*distribution.WeeklyResult, error)
}

type WeeklyRewardsJobParams struct {
	Logger      *logger.Logger
	Distributor weeklyDistributor
	Season      *rewards.Season
}

// NewWeeklyRewardsJob pays every closed week of the season that has not been
// distributed yet, oldest first, so weeks missed or blocked earlier are caught up.
func NewWeeklyRewardsJob(params WeeklyRewardsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Distributor == nil {
		return nil, fmt.Errorf("distributor required")
	}
	if params.Season == nil {
		return nil, fmt.Errorf("season required")
	}
	return &weeklyRewardsJob{
		logg:        params.Logger,
		distributor: params.Distributor,
		season:      params.Season,
		now:         time.Now,
	}, nil
}

type weeklyRewardsJob struct {
	logg        *logger.Logger
	distributor weeklyDistributor
	season      *rewards.Season
	now         func() time.Time
}

func (j *weeklyRewardsJob) Name() string { return "weekly-rewards" }

func (j *weeklyRewardsJob) Run(ctx context.Context) error {
	last := isoweek.LastClosed(j.now())
	if last.Before(j.season.Start) {
		j.logg.Debug(j.logg.WithWeek(ctx, last.String()), "no closed week in the active season yet")
		return nil
	}
	if last.After(j.season.End()) {
		last = j.season.End()
	}

	var failed []error
	for _, week := range j.season.Weeks() {
		if week.After(last) {
			break
		}
		if err := j.payWeek(j.logg.WithWeek(ctx, week.String()), week); err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(failed, err)...)
			}
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}

// payWeek distributes week unless it already was. A failed week is logged and
// reported without stopping later weeks.
func (j *weeklyRewardsJob) payWeek(ctx context.Context, week isoweek.Week) error {
	done, err := j.distributor.Distributed(ctx, week)
	if err != nil {
		return fmt.Errorf("check %s: %w", week, err)
	}
	if done {
		j.logg.Debug(ctx, "week already distributed")
		return nil
	}
	result, err := j.distributor.Distribute(ctx, week)
	if err != nil {
		j.logg.Error(ctx, "weekly distribution failed", err)
		return fmt.Errorf("distribute %s: %w", week, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"builders":    result.Builders,
		"receipts":    result.Receipts,
		"budget":      result.Budget,
		"distributed": result.Distributed,
	}), "weekly rewards distributed")
	return nil
}
