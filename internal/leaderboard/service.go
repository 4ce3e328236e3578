package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
	"github.com/scoutledger/backend/pkg/logger"
	"github.com/scoutledger/backend/pkg/redis"
)

const closedWeekTTL = 7 * 24 * time.Hour

// Entry is one ranked builder. Ranks are 1-based with no gaps.
type Entry struct {
	BuilderID          uuid.UUID  `json:"builderId"`
	DisplayName        string     `json:"displayName"`
	Path               string     `json:"path"`
	GemsCollected      int64      `json:"gemsCollected"`
	FirstPullRequestAt *time.Time `json:"firstPullRequestAt,omitempty"`
	Rank               int        `json:"rank"`
}

type repository interface {
	Candidates(ctx context.Context, week string) ([]Candidate, error)
	FirstMergedPullRequests(ctx context.Context, season string, builderIDs []uuid.UUID) (map[uuid.UUID]time.Time, error)
}

// Cache stores rankings of closed weeks. *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	LeaderboardKey(season, week string) string
}

// Service ranks builders for a week.
type Service struct {
	repo  repository
	cache Cache
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds a ranker. cache and logg may be nil.
func NewService(repo repository, cache Cache, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("leaderboard repository required")
	}
	return &Service{repo: repo, cache: cache, logg: logg, now: time.Now}, nil
}

// Leaderboard returns the full ranking for week within season. Closed weeks are
// served from the cache when one is configured.
func (s *Service) Leaderboard(ctx context.Context, season, week string) ([]Entry, error) {
	w, err := isoweek.Parse(week)
	if err != nil {
		return nil, err
	}
	closed := w.Before(isoweek.Of(s.now()))
	if closed {
		if cached, ok := s.fromCache(ctx, season, w); ok {
			return cached, nil
		}
	}

	entries, err := s.load(ctx, season, w)
	if err != nil {
		return nil, err
	}
	if closed {
		s.toCache(ctx, season, w, entries)
	}
	return entries, nil
}

// Top returns at most n entries of the ranking.
func (s *Service) Top(ctx context.Context, season, week string, n int) ([]Entry, error) {
	entries, err := s.Leaderboard(ctx, season, week)
	if err != nil {
		return nil, err
	}
	return limit(entries, n), nil
}

// Live returns at most n entries ranked from the store, bypassing the cache. Payouts
// use it so builders deleted or demoted after a cached read are never ranked.
func (s *Service) Live(ctx context.Context, season, week string, n int) ([]Entry, error) {
	w, err := isoweek.Parse(week)
	if err != nil {
		return nil, err
	}
	entries, err := s.load(ctx, season, w)
	if err != nil {
		return nil, err
	}
	return limit(entries, n), nil
}

func (s *Service) load(ctx context.Context, season string, w isoweek.Week) ([]Entry, error) {
	candidates, err := s.repo.Candidates(ctx, w.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load weekly stats")
	}
	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.BuilderID
	}
	firstPRs, err := s.repo.FirstMergedPullRequests(ctx, season, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merged pull requests")
	}

	return Rank(candidates, firstPRs), nil
}

func limit(entries []Entry, n int) []Entry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}

// Rank orders candidates by gems descending, then earliest merged pull request, then
// display name. Builders without a pull request sort after those with one. The
// builder id breaks any remaining tie so the order never depends on input order.
func Rank(candidates []Candidate, firstPRs map[uuid.UUID]time.Time) []Entry {
	entries := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		e := Entry{
			BuilderID:     c.BuilderID,
			DisplayName:   c.DisplayName,
			Path:          c.Path,
			GemsCollected: c.GemsCollected,
		}
		if at, ok := firstPRs[c.BuilderID]; ok {
			at := at.UTC()
			e.FirstPullRequestAt = &at
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.GemsCollected != b.GemsCollected {
			return a.GemsCollected > b.GemsCollected
		}
		switch {
		case a.FirstPullRequestAt != nil && b.FirstPullRequestAt == nil:
			return true
		case a.FirstPullRequestAt == nil && b.FirstPullRequestAt != nil:
			return false
		case a.FirstPullRequestAt != nil && !a.FirstPullRequestAt.Equal(*b.FirstPullRequestAt):
			return a.FirstPullRequestAt.Before(*b.FirstPullRequestAt)
		}
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.BuilderID.String() < b.BuilderID.String()
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func (s *Service) fromCache(ctx context.Context, season string, week isoweek.Week) ([]Entry, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.LeaderboardKey(season, week.String()))
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logg != nil {
			s.logg.Warn(s.logg.WithWeek(ctx, week.String()), "leaderboard cache read failed")
		}
		return nil, false
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (s *Service) toCache(ctx context.Context, season string, week isoweek.Week, entries []Entry) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.LeaderboardKey(season, week.String()), string(payload), closedWeekTTL); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithWeek(ctx, week.String()), "leaderboard cache write failed", err)
	}
}
