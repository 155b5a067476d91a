package progress

import (
	"fmt"
	"math"

	"code4kids_backend/internal/model"
	"code4kids_backend/internal/util"
)

const TotalLevels = 9

// LevelRef locates a global level number inside the world/level document tree.
type LevelRef struct {
	ID    int
	World string
	Key   string
}

// WorldOrder is the fixed order in which worlds unlock.
var WorldOrder = []string{model.WorldVillage, model.WorldForest, model.WorldMountain}

var worldNames = map[string]string{
	model.WorldVillage:  "Variable Village",
	model.WorldForest:   "If-Else Forest",
	model.WorldMountain: "Loop Mountain",
}

var worldLevels = map[string][]string{
	model.WorldVillage:  {"level1", "level2", "level3"},
	model.WorldForest:   {"level4", "level5", "level6"},
	model.WorldMountain: {"level7", "level8", "level9"},
}

var levelTable = map[int]LevelRef{
	1: {ID: 1, World: model.WorldVillage, Key: "level1"},
	2: {ID: 2, World: model.WorldVillage, Key: "level2"},
	3: {ID: 3, World: model.WorldVillage, Key: "level3"},
	4: {ID: 4, World: model.WorldForest, Key: "level4"},
	5: {ID: 5, World: model.WorldForest, Key: "level5"},
	6: {ID: 6, World: model.WorldForest, Key: "level6"},
	7: {ID: 7, World: model.WorldMountain, Key: "level7"},
	8: {ID: 8, World: model.WorldMountain, Key: "level8"},
	9: {ID: 9, World: model.WorldMountain, Key: "level9"},
}

func LookupLevel(id int) (LevelRef, error) {
	ref, ok := levelTable[id]
	if !ok {
		return LevelRef{}, fmt.Errorf("%w: %d", util.ErrInvalidLevel, id)
	}
	return ref, nil
}

// AllLevels returns every level in play order.
func AllLevels() []LevelRef {
	out := make([]LevelRef, 0, TotalLevels)
	for id := 1; id <= TotalLevels; id++ {
		out = append(out, levelTable[id])
	}
	return out
}

func WorldLevels(world string) []string {
	return worldLevels[world]
}

func WorldName(world string) string {
	return worldNames[world]
}

func NextLevel(world, levelKey string) (string, bool) {
	keys := worldLevels[world]
	for i, k := range keys {
		if k == levelKey && i+1 < len(keys) {
			return keys[i+1], true
		}
	}
	return "", false
}

func NextWorld(world string) (string, bool) {
	for i, w := range WorldOrder {
		if w == world && i+1 < len(WorldOrder) {
			return WorldOrder[i+1], true
		}
	}
	return "", false
}

func previousWorld(world string) (string, bool) {
	for i, w := range WorldOrder {
		if w == world && i > 0 {
			return WorldOrder[i-1], true
		}
	}
	return "", false
}

func CalculateRank(levelsCompleted int) model.Rank {
	switch {
	case levelsCompleted >= 9:
		return model.RankMaster
	case levelsCompleted >= 6:
		return model.RankExpert
	case levelsCompleted >= 3:
		return model.RankApprentice
	}
	return model.RankNovice
}

// CalculateWorldProgress is round(100 * completed / levels); 0 for a world without levels.
func CalculateWorldProgress(w *model.World) int {
	if w == nil || len(w.Levels) == 0 {
		return 0
	}
	completed := 0
	for _, l := range w.Levels {
		if l != nil && l.Completed {
			completed++
		}
	}
	return percent(completed, len(w.Levels))
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
