package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/model"
	"code4kids_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttemptRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.progress.RecordLevelAttempt(context.Background(), win(1, 3))
	assert.True(t, errors.Is(err, util.ErrUnauthenticated))
}

func TestRecordAttemptRejectsUnknownLevel(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u1", model.Student)

	_, err := env.progress.RecordLevelAttempt(ctx, win(12, 3))
	assert.True(t, errors.Is(err, util.ErrInvalidLevel))

	_, err = env.progress.GetUserProgress(ctx, "u1")
	assert.True(t, errors.Is(err, util.ErrProgressNotFound))
}

func TestRecordAttemptFreshUserPerfectFirstLevel(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u1", model.Student)

	res, err := env.progress.RecordLevelAttempt(ctx, AttemptRequest{
		LevelID:    1,
		Success:    true,
		Stars:      3,
		TimeSpent:  20000,
		CodeBlocks: []model.CodeBlock{{ID: "b1", Type: "set", Label: "apples = 3"}},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"first_steps", "apple_master"}, awardIDs(res))
	assert.Equal(t, 33, res.WorldProgress)
	assert.Equal(t, model.RankNovice, res.NewRank)
	assert.Equal(t, "level2", res.UnlockedLevel)

	p, err := env.progress.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalStars)
	assert.Equal(t, 1, p.TotalLevelsCompleted)
	l1 := p.Level(model.WorldVillage, "level1")
	assert.True(t, l1.Completed)
	assert.Equal(t, 3, l1.Stars)
	assert.Equal(t, int64(20000), *l1.BestTime)
	assert.True(t, p.Level(model.WorldVillage, "level2").Unlocked)
	assert.Len(t, p.Achievements, 2)
	assert.False(t, p.LastPlayed.IsZero())

	sessions, err := env.progress.RecentSessions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 3, sessions[0].Stars)
	assert.Equal(t, "apples = 3", sessions[0].CodeBlocks[0].Label)
}

func TestRecordAttemptFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u1", model.Student)

	res, err := env.progress.RecordLevelAttempt(ctx, AttemptRequest{LevelID: 1, Success: false, Stars: 2, TimeSpent: 5000})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.NewAchievements)

	p, err := env.progress.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	l1 := p.Level(model.WorldVillage, "level1")
	assert.Equal(t, 1, l1.Attempts)
	assert.False(t, l1.Completed)
	assert.Equal(t, 0, p.TotalStars)
	assert.Empty(t, p.Achievements)

	sessions, err := env.progress.RecentSessions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 0, sessions[0].Stars)
	assert.False(t, sessions[0].Success)
}

func TestRecordAttemptReplayWithFewerStars(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u1", model.Student)

	_, err := env.progress.RecordLevelAttempt(ctx, win(1, 3))
	require.NoError(t, err)
	res, err := env.progress.RecordLevelAttempt(ctx, win(1, 1))
	require.NoError(t, err)
	assert.Empty(t, res.NewAchievements)

	p, err := env.progress.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalStars)
	assert.Equal(t, 1, p.TotalLevelsCompleted)
	assert.Equal(t, 2, p.Level(model.WorldVillage, "level1").Attempts)
	assert.Len(t, p.Achievements, 2)

	sessions, err := env.progress.RecentSessions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, 1, sessions[0].Stars, "newest first")
}

func TestRecordAttemptUnlocksForest(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u1", model.Student)

	for _, level := range []int{1, 2} {
		_, err := env.progress.RecordLevelAttempt(ctx, win(level, 2))
		require.NoError(t, err)
	}
	res, err := env.progress.RecordLevelAttempt(ctx, win(3, 2))
	require.NoError(t, err)
	assert.Equal(t, 100, res.WorldProgress)
	assert.Equal(t, model.WorldForest, res.UnlockedWorld)
	assert.Equal(t, model.RankApprentice, res.NewRank)
	assert.Contains(t, awardIDs(res), "village_hero")

	p, err := env.progress.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Worlds[model.WorldForest].Unlocked)
	assert.True(t, p.Level(model.WorldForest, "level4").Unlocked)
	assert.Equal(t, 100, p.Worlds[model.WorldVillage].Progress)
}

func TestInitializeIsGuarded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.progress.InitializeUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Level(model.WorldVillage, "level1").Unlocked)

	_, err = env.progress.RecordLevelAttempt(asUser("u1", model.Student), win(1, 2))
	require.NoError(t, err)

	_, err = env.progress.InitializeUserProgress(ctx, "u1")
	assert.True(t, errors.Is(err, util.ErrProgressExists))

	p, err = env.progress.EnsureUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalStars, "existing progress is kept")
}

func TestConcurrentAttemptsAreNotLost(t *testing.T) {
	env := newTestEnv(t)
	cfg := defaultProgressConfig()
	cfg.MaxConflictRetries = 25
	require.NoError(t, env.settings.Apply(cfg))

	ctx := asUser("u1", model.Student)
	_, err := env.progress.EnsureUserProgress(ctx, "u1")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.progress.RecordLevelAttempt(ctx, AttemptRequest{LevelID: 1, Success: i%2 == 0, Stars: 1 + i%3, TimeSpent: int64(1000 + i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := env.progress.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, n, p.Level(model.WorldVillage, "level1").Attempts)
	assert.Equal(t, 1, p.TotalLevelsCompleted)
	assert.Equal(t, p.Level(model.WorldVillage, "level1").Stars, p.TotalStars)

	seen := map[string]bool{}
	for _, a := range p.Achievements {
		assert.False(t, seen[a.ID], "duplicate award %s", a.ID)
		seen[a.ID] = true
	}
}

// conflictStore rejects every conditional progress write.
type conflictStore struct {
	*faultyStore
	tries int
}

func (c *conflictStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, opts ...docstore.WriteOption) error {
	if collection == util.CollectionUserProgress {
		c.tries++
		return docstore.ErrVersionConflict
	}
	return c.faultyStore.Update(ctx, collection, id, fields, opts...)
}

func TestConflictRetriesAreBounded(t *testing.T) {
	env := newTestEnv(t)
	cs := &conflictStore{faultyStore: env.faulty}
	env.progress.ProgressRepo.Store = cs

	_, err := env.progress.RecordLevelAttempt(asUser("u1", model.Student), win(1, 3))
	assert.True(t, errors.Is(err, util.ErrConcurrentUpdate))
	assert.Equal(t, defaultProgressConfig().MaxConflictRetries+1, cs.tries)
}

func TestSessionAppendFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.faulty.failSet[util.CollectionGameSessions] = errBoom
	ctx := asUser("u1", model.Student)

	res, err := env.progress.RecordLevelAttempt(ctx, win(1, 2))
	require.NoError(t, err)
	assert.True(t, res.Success)

	p, err := env.progress.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalStars)
}

func TestRemoteStoreFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	env.faulty.failGet[util.CollectionUserProgress] = errBoom

	_, err := env.progress.RecordLevelAttempt(asUser("u1", model.Student), win(1, 2))
	assert.True(t, errors.Is(err, util.ErrRemoteStore))
	assert.True(t, errors.Is(err, errBoom))
}

func TestProgressWriteFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u1", model.Student)
	_, err := env.progress.EnsureUserProgress(ctx, "u1")
	require.NoError(t, err)
	env.faulty.failUpdate[util.CollectionUserProgress] = errBoom

	_, err = env.progress.RecordLevelAttempt(ctx, win(1, 2))
	assert.True(t, errors.Is(err, util.ErrRemoteStore))

	sessions, err := env.progress.RecentSessions(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

// legacyProgress predates unlocked flags: the village is complete and the
// forest has never been opened.
func legacyProgress() map[string]interface{} {
	lvl := func(done bool, stars int) map[string]interface{} {
		return map[string]interface{}{"completed": done, "stars": stars, "attempts": 1, "bestTime": nil}
	}
	return map[string]interface{}{
		"totalStars":           6,
		"totalLevelsCompleted": 3,
		"currentStreak":        3,
		"rank":                 "Apprentice Wizard",
		"achievements":         []interface{}{},
		"worlds": map[string]interface{}{
			"village": map[string]interface{}{
				"name": "Variable Village", "progress": 100,
				"levels": map[string]interface{}{"level1": lvl(true, 2), "level2": lvl(true, 2), "level3": lvl(true, 2)},
			},
			"forest": map[string]interface{}{
				"name": "If-Else Forest", "progress": 0,
				"levels": map[string]interface{}{"level4": lvl(false, 0), "level5": lvl(false, 0), "level6": lvl(false, 0)},
			},
			"mountain": map[string]interface{}{
				"name": "Loop Mountain", "progress": 0,
				"levels": map[string]interface{}{"level7": lvl(false, 0), "level8": lvl(false, 0), "level9": lvl(false, 0)},
			},
		},
	}
}

func TestGetDashboardDataMigratesLegacyDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.mem.Set(ctx, util.CollectionUserProgress, "old", legacyProgress()))

	data, err := env.progress.GetDashboardData(ctx, "old")
	require.NoError(t, err)
	assert.True(t, data.Progress.Worlds[model.WorldForest].Unlocked)
	assert.True(t, data.Progress.Level(model.WorldForest, "level4").Unlocked)
	assert.False(t, data.Progress.Level(model.WorldForest, "level5").Unlocked)
	assert.False(t, data.Progress.Worlds[model.WorldMountain].Unlocked)
	assert.Equal(t, 4, data.Summary.CurrentLevel)
	assert.Len(t, data.AllAchievements, 24)

	stored, err := env.mem.Get(ctx, util.CollectionUserProgress, "old")
	require.NoError(t, err)
	v, ok := docstore.GetPath(stored.Data, "worlds.forest.levels.level4.unlocked")
	require.True(t, ok)
	assert.Equal(t, true, v)

	// a second read has nothing left to patch
	before := stored.Version
	_, err = env.progress.GetDashboardData(ctx, "old")
	require.NoError(t, err)
	again, err := env.mem.Get(ctx, util.CollectionUserProgress, "old")
	require.NoError(t, err)
	assert.Equal(t, before, again.Version)
}

func TestRecordAttemptMigratesLegacyDocumentFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("old", model.Student)
	require.NoError(t, env.mem.Set(ctx, util.CollectionUserProgress, "old", legacyProgress()))

	res, err := env.progress.RecordLevelAttempt(ctx, win(1, 3))
	require.NoError(t, err)
	assert.Equal(t, 7, res.TotalStars)

	stored, err := env.mem.Get(ctx, util.CollectionUserProgress, "old")
	require.NoError(t, err)
	for _, path := range []string{
		"worlds.village.unlocked",
		"worlds.village.levels.level1.unlocked",
		"worlds.village.levels.level2.unlocked",
		"worlds.forest.unlocked",
		"worlds.forest.levels.level4.unlocked",
	} {
		v, ok := docstore.GetPath(stored.Data, path)
		require.True(t, ok, path)
		assert.Equal(t, true, v, path)
	}

	data, err := env.progress.GetDashboardData(ctx, "old")
	require.NoError(t, err)
	l1 := data.Progress.Level(model.WorldVillage, "level1")
	assert.True(t, l1.Unlocked)
	assert.Equal(t, 3, l1.Stars)
	assert.Equal(t, 2, l1.Attempts)
	assert.True(t, data.Progress.Level(model.WorldVillage, "level2").Unlocked)
}

func TestGetUserProgressMigratesLegacyDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.mem.Set(ctx, util.CollectionUserProgress, "old", legacyProgress()))

	p, err := env.progress.GetUserProgress(ctx, "old")
	require.NoError(t, err)
	assert.True(t, p.Level(model.WorldVillage, "level1").Unlocked)
	assert.True(t, p.Worlds[model.WorldForest].Unlocked)
	assert.True(t, p.Level(model.WorldForest, "level4").Unlocked)
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) InvalidateDashboard(context.Context) {
	c.calls++
}

func TestRecordAttemptInvalidatesClassDashboard(t *testing.T) {
	env := newTestEnv(t)
	inv := &countingInvalidator{}
	env.progress.DashboardCache = inv
	ctx := asUser("u1", model.Student)

	_, err := env.progress.RecordLevelAttempt(ctx, win(1, 3))
	require.NoError(t, err)
	_, err = env.progress.RecordLevelAttempt(ctx, AttemptRequest{LevelID: 2, Success: false})
	require.NoError(t, err)
	assert.Equal(t, 2, inv.calls)

	env.faulty.failUpdate[util.CollectionUserProgress] = errBoom
	_, err = env.progress.RecordLevelAttempt(ctx, win(2, 1))
	require.Error(t, err)
	assert.Equal(t, 2, inv.calls, "failed writes leave the cache alone")
}

func TestGetDashboardDataFallsBackWhenMigrationFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.mem.Set(ctx, util.CollectionUserProgress, "old", legacyProgress()))
	env.faulty.failUpdate[util.CollectionUserProgress] = errBoom

	data, err := env.progress.GetDashboardData(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 6, data.Progress.TotalStars)
	assert.False(t, data.Progress.Worlds[model.WorldForest].Unlocked)
}

func TestMigrateAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.mem.Set(ctx, util.CollectionUserProgress, "old1", legacyProgress()))
	require.NoError(t, env.mem.Set(ctx, util.CollectionUserProgress, "old2", legacyProgress()))
	_, err := env.progress.InitializeUserProgress(ctx, "fresh")
	require.NoError(t, err)

	n, err := env.progress.MigrateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = env.progress.MigrateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSettingsApplyKeepsPreviousOnError(t *testing.T) {
	env := newTestEnv(t)
	bad := defaultProgressConfig()
	bad.StreakPolicy = "hourly"
	assert.Error(t, env.settings.Apply(bad))
	assert.Equal(t, "success", env.settings.Config().StreakPolicy)

	good := defaultProgressConfig()
	good.EvaluationMode = "snapshot"
	require.NoError(t, env.settings.Apply(good))
	assert.Equal(t, "snapshot", string(env.settings.EvaluationMode()))
}
