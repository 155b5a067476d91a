package model

import (
	"time"
)

type Rank string

const (
	RankNovice     Rank = "Novice Wizard"
	RankApprentice Rank = "Apprentice Wizard"
	RankExpert     Rank = "Expert Wizard"
	RankMaster     Rank = "Master Wizard"
)

const (
	WorldVillage  = "village"
	WorldForest   = "forest"
	WorldMountain = "mountain"
)

// UserProgress is the per-user progress document, keyed by user id.
type UserProgress struct {
	TotalStars           int                `json:"totalStars"`
	TotalLevelsCompleted int                `json:"totalLevelsCompleted"`
	CurrentStreak        int                `json:"currentStreak"`
	Rank                 Rank               `json:"rank"`
	Worlds               map[string]*World  `json:"worlds"`
	Achievements         []AchievementAward `json:"achievements"`
	LastPlayed           time.Time          `json:"lastPlayed"`
	// LastSuccessAt is only moved by successful attempts; streaks are measured from it.
	LastSuccessAt        *time.Time         `json:"lastSuccessAt,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
}

type World struct {
	Name     string                 `json:"name"`
	Progress int                    `json:"progress"`
	Unlocked bool                   `json:"unlocked"`
	Levels   map[string]*LevelState `json:"levels"`
}

// LevelState holds best-of stats for one level. BestTime is in milliseconds.
type LevelState struct {
	Completed bool   `json:"completed"`
	Stars     int    `json:"stars"`
	Attempts  int    `json:"attempts"`
	BestTime  *int64 `json:"bestTime"`
	Unlocked  bool   `json:"unlocked"`
}

type AchievementAward struct {
	ID       string    `json:"id"`
	EarnedAt time.Time `json:"earnedAt"`
}

// HasAchievement reports whether id was already awarded.
func (p *UserProgress) HasAchievement(id string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Level returns the state of levelKey in world, or nil.
func (p *UserProgress) Level(world, levelKey string) *LevelState {
	if p == nil || p.Worlds == nil {
		return nil
	}
	w := p.Worlds[world]
	if w == nil || w.Levels == nil {
		return nil
	}
	return w.Levels[levelKey]
}

// Clone returns a deep copy so rule evaluation can work on an immutable snapshot.
func (p *UserProgress) Clone() *UserProgress {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Worlds = make(map[string]*World, len(p.Worlds))
	for name, w := range p.Worlds {
		if w == nil {
			continue
		}
		wc := *w
		wc.Levels = make(map[string]*LevelState, len(w.Levels))
		for key, l := range w.Levels {
			if l == nil {
				continue
			}
			lc := *l
			if l.BestTime != nil {
				bt := *l.BestTime
				lc.BestTime = &bt
			}
			wc.Levels[key] = &lc
		}
		cp.Worlds[name] = &wc
	}
	cp.Achievements = append([]AchievementAward(nil), p.Achievements...)
	if p.LastSuccessAt != nil {
		ls := *p.LastSuccessAt
		cp.LastSuccessAt = &ls
	}
	return &cp
}

// CodeBlock is the abridged snapshot of a block the player used.
type CodeBlock struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// GameSession is the write-once log row of a single play attempt. TimeSpent is in milliseconds.
type GameSession struct {
	UserID     string      `json:"userId"`
	LevelID    int         `json:"levelId"`
	Success    bool        `json:"success"`
	Stars      int         `json:"stars"`
	TimeSpent  int64       `json:"timeSpent"`
	CodeBlocks []CodeBlock `json:"codeBlocks"`
	Timestamp  time.Time   `json:"timestamp"`
}
