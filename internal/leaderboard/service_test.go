package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/db/dbtest"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/redis"
)

const (
	testSeason = "2025-W02"
	testWeek   = "2025-W05"
)

func seedBuilder(t *testing.T, conn *gorm.DB, name string, status *enums.BuilderStatus, gems int64) uuid.UUID {
	t.Helper()
	scout := models.Scout{Path: name, DisplayName: name, BuilderStatus: status}
	require.NoError(t, conn.Create(&scout).Error)
	require.NoError(t, conn.Create(&models.UserWeeklyStats{UserID: scout.ID, Season: testSeason, Week: testWeek, GemsCollected: gems}).Error)
	return scout.ID
}

func seedPR(t *testing.T, conn *gorm.DB, builderID uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, conn.Create(&models.BuilderEvent{
		BuilderID: builderID,
		Type:      enums.BuilderEventMergedPullRequest,
		Season:    testSeason,
		Week:      testWeek,
		CreatedAt: at,
	}).Error)
}

func approved() *enums.BuilderStatus {
	s := enums.BuilderStatusApproved
	return &s
}

func TestLeaderboardFiltersAndOrders(t *testing.T) {
	conn := dbtest.Open(t)
	base := time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)

	top := seedBuilder(t, conn, "zed", approved(), 90)
	early := seedBuilder(t, conn, "mia", approved(), 40)
	late := seedBuilder(t, conn, "abe", approved(), 40)
	noPR := seedBuilder(t, conn, "aaa", approved(), 40)
	seedBuilder(t, conn, "zero", approved(), 0)
	banned := enums.BuilderStatusBanned
	seedBuilder(t, conn, "banned", &banned, 500)
	deleted := seedBuilder(t, conn, "gone", approved(), 700)
	now := time.Now().UTC()
	require.NoError(t, conn.Model(&models.Scout{}).Where("id = ?", deleted).Update("deleted_at", &now).Error)

	seedPR(t, conn, early, base)
	seedPR(t, conn, early, base.Add(72*time.Hour))
	seedPR(t, conn, late, base.Add(time.Hour))

	svc, err := NewService(NewRepository(conn), nil, nil)
	require.NoError(t, err)

	entries, err := svc.Leaderboard(context.Background(), testSeason, testWeek)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	got := []uuid.UUID{entries[0].BuilderID, entries[1].BuilderID, entries[2].BuilderID, entries[3].BuilderID}
	require.Equal(t, []uuid.UUID{top, early, late, noPR}, got)
	for i, e := range entries {
		require.Equal(t, i+1, e.Rank)
	}
	require.True(t, entries[1].FirstPullRequestAt.Equal(base))

	topTwo, err := svc.Top(context.Background(), testSeason, testWeek, 2)
	require.NoError(t, err)
	require.Len(t, topTwo, 2)
}

func TestRankTieBreaksOnDisplayNameRegardlessOfInputOrder(t *testing.T) {
	at := time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC)
	bob := Candidate{BuilderID: uuid.New(), DisplayName: "bob", GemsCollected: 10}
	amy := Candidate{BuilderID: uuid.New(), DisplayName: "amy", GemsCollected: 10}
	prs := map[uuid.UUID]time.Time{bob.BuilderID: at, amy.BuilderID: at}

	forward := Rank([]Candidate{bob, amy}, prs)
	backward := Rank([]Candidate{amy, bob}, prs)

	require.Equal(t, "amy", forward[0].DisplayName)
	require.Equal(t, forward, backward)
}

func TestLeaderboardRejectsInvalidWeek(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)), nil, nil)
	require.NoError(t, err)

	_, err = svc.Leaderboard(context.Background(), testSeason, "2025-13")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type fakeCache struct {
	values map[string]string
	sets   int
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.sets++
	f.values[key] = value.(string)
	return nil
}

func (f *fakeCache) LeaderboardKey(season, week string) string {
	return "sl:leaderboard:" + season + ":" + week
}

type countingRepo struct {
	repository
	candidates int
}

func (c *countingRepo) Candidates(ctx context.Context, week string) ([]Candidate, error) {
	c.candidates++
	return c.repository.Candidates(ctx, week)
}

func TestLeaderboardCachesClosedWeeks(t *testing.T) {
	conn := dbtest.Open(t)
	seedBuilder(t, conn, "solo", approved(), 5)

	repo := &countingRepo{repository: NewRepository(conn)}
	cache := &fakeCache{values: map[string]string{}}
	svc, err := NewService(repo, cache, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }

	first, err := svc.Leaderboard(context.Background(), testSeason, testWeek)
	require.NoError(t, err)
	second, err := svc.Leaderboard(context.Background(), testSeason, testWeek)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, repo.candidates)
	require.Equal(t, 1, cache.sets)
}

func TestSaveRanksWritesBackToWeeklyStats(t *testing.T) {
	conn := dbtest.Open(t)
	id := seedBuilder(t, conn, "solo", approved(), 5)

	repo := NewRepository(conn)
	require.NoError(t, repo.SaveRanks(context.Background(), testWeek, []Entry{{BuilderID: id, Rank: 1}}))

	var stats models.UserWeeklyStats
	require.NoError(t, conn.Where("user_id = ?", id).First(&stats).Error)
	require.NotNil(t, stats.Rank)
	require.Equal(t, 1, *stats.Rank)
}

func TestLiveIgnoresCachedRankingAfterSoftDelete(t *testing.T) {
	conn := dbtest.Open(t)
	mergedAway := seedBuilder(t, conn, "merged-away", approved(), 50)
	kept := seedBuilder(t, conn, "kept", approved(), 10)

	cache := &fakeCache{values: map[string]string{}}
	svc, err := NewService(NewRepository(conn), cache, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }

	cached, err := svc.Leaderboard(context.Background(), testSeason, testWeek)
	require.NoError(t, err)
	require.Len(t, cached, 2)

	now := time.Now().UTC()
	require.NoError(t, conn.Model(&models.Scout{}).Where("id = ?", mergedAway).Update("deleted_at", &now).Error)

	live, err := svc.Live(context.Background(), testSeason, testWeek, 10)
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, kept, live[0].BuilderID)
	require.Equal(t, 1, live[0].Rank)
}

func TestLeaderboardCacheIsScopedBySeason(t *testing.T) {
	conn := dbtest.Open(t)
	seedBuilder(t, conn, "solo", approved(), 5)

	repo := &countingRepo{repository: NewRepository(conn)}
	cache := &fakeCache{values: map[string]string{}}
	svc, err := NewService(repo, cache, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }

	_, err = svc.Leaderboard(context.Background(), testSeason, testWeek)
	require.NoError(t, err)
	_, err = svc.Leaderboard(context.Background(), "2024-W40", testWeek)
	require.NoError(t, err)

	require.Equal(t, 2, repo.candidates)
	require.Contains(t, cache.values, "sl:leaderboard:"+testSeason+":"+testWeek)
	require.Contains(t, cache.values, "sl:leaderboard:2024-W40:"+testWeek)
}
