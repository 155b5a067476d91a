package progress

import (
	"errors"
	"testing"

	"code4kids_backend/internal/model"
	"code4kids_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupLevel(t *testing.T) {
	tests := []struct {
		id    int
		world string
		key   string
	}{
		{1, model.WorldVillage, "level1"},
		{3, model.WorldVillage, "level3"},
		{4, model.WorldForest, "level4"},
		{6, model.WorldForest, "level6"},
		{7, model.WorldMountain, "level7"},
		{9, model.WorldMountain, "level9"},
	}
	for _, tt := range tests {
		ref, err := LookupLevel(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.world, ref.World)
		assert.Equal(t, tt.key, ref.Key)
	}

	for _, bad := range []int{0, -1, 10, 100} {
		_, err := LookupLevel(bad)
		assert.True(t, errors.Is(err, util.ErrInvalidLevel), "level %d", bad)
	}
}

func TestAllLevelsInPlayOrder(t *testing.T) {
	levels := AllLevels()
	require.Len(t, levels, TotalLevels)
	for i, ref := range levels {
		assert.Equal(t, i+1, ref.ID)
	}
}

func TestCalculateRank(t *testing.T) {
	assert.Equal(t, model.RankNovice, CalculateRank(0))
	assert.Equal(t, model.RankNovice, CalculateRank(2))
	assert.Equal(t, model.RankApprentice, CalculateRank(3))
	assert.Equal(t, model.RankApprentice, CalculateRank(5))
	assert.Equal(t, model.RankExpert, CalculateRank(6))
	assert.Equal(t, model.RankMaster, CalculateRank(9))
}

func TestCalculateWorldProgress(t *testing.T) {
	assert.Equal(t, 0, CalculateWorldProgress(nil))
	assert.Equal(t, 0, CalculateWorldProgress(&model.World{Levels: map[string]*model.LevelState{}}))

	w := &model.World{Levels: map[string]*model.LevelState{
		"level1": {Completed: true},
		"level2": {Completed: true},
		"level3": {},
	}}
	assert.Equal(t, 67, CalculateWorldProgress(w))

	w.Levels["level1"].Completed = false
	assert.Equal(t, 33, CalculateWorldProgress(w))

	w.Levels["level1"].Completed = true
	w.Levels["level3"].Completed = true
	assert.Equal(t, 100, CalculateWorldProgress(w))
}

func TestNextLevelAndWorld(t *testing.T) {
	next, ok := NextLevel(model.WorldVillage, "level1")
	require.True(t, ok)
	assert.Equal(t, "level2", next)

	_, ok = NextLevel(model.WorldVillage, "level3")
	assert.False(t, ok)

	nw, ok := NextWorld(model.WorldForest)
	require.True(t, ok)
	assert.Equal(t, model.WorldMountain, nw)

	_, ok = NextWorld(model.WorldMountain)
	assert.False(t, ok)
}

func TestNewUserProgress(t *testing.T) {
	p := NewUserProgress(testNow)

	assert.Equal(t, model.RankNovice, p.Rank)
	assert.Empty(t, p.Achievements)
	assert.NotNil(t, p.Achievements)
	assert.Equal(t, testNow, p.CreatedAt)
	require.Len(t, p.Worlds, 3)

	for _, ref := range AllLevels() {
		l := p.Level(ref.World, ref.Key)
		require.NotNil(t, l, ref.Key)
		assert.Equal(t, ref.ID == 1, l.Unlocked, ref.Key)
		assert.False(t, l.Completed)
		assert.Nil(t, l.BestTime)
	}
	assert.True(t, p.Worlds[model.WorldVillage].Unlocked)
	assert.False(t, p.Worlds[model.WorldForest].Unlocked)
	assert.False(t, p.Worlds[model.WorldMountain].Unlocked)
	assert.Equal(t, "Variable Village", p.Worlds[model.WorldVillage].Name)
}

func TestEnsureShapeKeepsExistingValues(t *testing.T) {
	p := &model.UserProgress{
		TotalLevelsCompleted: 4,
		Worlds: map[string]*model.World{
			model.WorldVillage: {
				Name:     "Custom",
				Unlocked: true,
				Levels:   map[string]*model.LevelState{"level1": {Completed: true, Stars: 2}},
			},
		},
	}
	EnsureShape(p)

	assert.Equal(t, model.RankApprentice, p.Rank)
	assert.Equal(t, "Custom", p.Worlds[model.WorldVillage].Name)
	assert.Equal(t, 2, p.Level(model.WorldVillage, "level1").Stars)
	assert.NotNil(t, p.Level(model.WorldVillage, "level3"))
	assert.NotNil(t, p.Level(model.WorldMountain, "level9"))
	assert.Equal(t, "Loop Mountain", p.Worlds[model.WorldMountain].Name)
}
