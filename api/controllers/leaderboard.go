package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/scoutledger/backend/api/responses"
	"github.com/scoutledger/backend/api/validators"
	"github.com/scoutledger/backend/internal/leaderboard"
	"github.com/scoutledger/backend/pkg/isoweek"
	"github.com/scoutledger/backend/pkg/logger"
)

type LeaderboardService interface {
	Top(ctx context.Context, season, week string, n int) ([]leaderboard.Entry, error)
}

type leaderboardResponse struct {
	Season  string              `json:"season"`
	Week    string              `json:"week"`
	Entries []leaderboard.Entry `json:"entries"`
}

// Leaderboard ranks builders for ?week=, defaulting to the current week.
func Leaderboard(svc LeaderboardService, season string, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		week, err := validators.ParseQueryWeek(r, "week", isoweek.Of(now()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithWeek(r.Context(), week.String())

		entries, err := svc.Top(ctx, season, week.String(), limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if entries == nil {
			entries = []leaderboard.Entry{}
		}
		responses.WriteSuccess(w, leaderboardResponse{Season: season, Week: week.String(), Entries: entries})
	}
}
