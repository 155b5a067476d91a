package progress

import (
	"time"

	"code4kids_backend/internal/model"
)

// NewUserProgress builds the zero-state document: only the village and its
// first level are unlocked.
func NewUserProgress(now time.Time) *model.UserProgress {
	p := &model.UserProgress{
		Rank:         model.RankNovice,
		Worlds:       make(map[string]*model.World, len(WorldOrder)),
		Achievements: []model.AchievementAward{},
		LastPlayed:   now,
		CreatedAt:    now,
	}
	for i, w := range WorldOrder {
		world := &model.World{
			Name:     WorldName(w),
			Unlocked: i == 0,
			Levels:   make(map[string]*model.LevelState),
		}
		for j, key := range WorldLevels(w) {
			world.Levels[key] = &model.LevelState{Unlocked: i == 0 && j == 0}
		}
		p.Worlds[w] = world
	}
	return p
}

// EnsureShape fills in worlds and levels missing from a decoded document so
// callers can index the tree without nil checks. It never changes existing values.
func EnsureShape(p *model.UserProgress) {
	if p.Worlds == nil {
		p.Worlds = make(map[string]*model.World, len(WorldOrder))
	}
	if p.Achievements == nil {
		p.Achievements = []model.AchievementAward{}
	}
	if p.Rank == "" {
		p.Rank = CalculateRank(p.TotalLevelsCompleted)
	}
	for _, w := range WorldOrder {
		world := p.Worlds[w]
		if world == nil {
			world = &model.World{}
			p.Worlds[w] = world
		}
		if world.Name == "" {
			world.Name = WorldName(w)
		}
		if world.Levels == nil {
			world.Levels = make(map[string]*model.LevelState)
		}
		for _, key := range WorldLevels(w) {
			if world.Levels[key] == nil {
				world.Levels[key] = &model.LevelState{}
			}
		}
	}
}
