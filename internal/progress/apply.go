package progress

import (
	"fmt"
	"time"

	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/model"
)

// Attempt is the outcome of one play-through reported by the game.
type Attempt struct {
	LevelID    int
	Success    bool
	Stars      int
	TimeSpent  int64
	CodeBlocks []model.CodeBlock
}

// Outcome is the result of applying an Attempt to a progress document.
// Patch holds the dotted-path fields to persist; Before is never modified.
type Outcome struct {
	Level           LevelRef
	Success         bool
	Stars           int
	FirstCompletion bool
	WorldProgress   int
	UnlockedLevel   string
	UnlockedWorld   string
	Before          *model.UserProgress
	After           *model.UserProgress
	Patch           map[string]interface{}
}

func levelPath(ref LevelRef) string {
	return fmt.Sprintf("worlds.%s.levels.%s", ref.World, ref.Key)
}

func clampStars(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 3:
		return 3
	}
	return s
}

// Apply runs the attempt state machine against p. Attempts always increment;
// stars and best time are best-of; unlocks only move forward, one level or
// world per call.
func Apply(p *model.UserProgress, a Attempt, now time.Time, streak StreakPolicy) (*Outcome, error) {
	ref, err := LookupLevel(a.LevelID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = NewUserProgress(now)
	}
	if streak == nil {
		streak = SuccessStreak{}
	}

	before := p.Clone()
	EnsureShape(before)
	after := before.Clone()

	world := after.Worlds[ref.World]
	level := world.Levels[ref.Key]
	level.Attempts++
	after.LastPlayed = now

	out := &Outcome{
		Level:   ref,
		Success: a.Success,
		Before:  before,
		After:   after,
		Patch: map[string]interface{}{
			levelPath(ref) + ".attempts": level.Attempts,
			"lastPlayed":                 docstore.ServerTimestamp(),
		},
	}

	if !a.Success {
		out.WorldProgress = CalculateWorldProgress(world)
		return out, nil
	}

	stars := clampStars(a.Stars)
	out.Stars = stars
	wasCompleted := level.Completed
	prevStars := level.Stars

	level.Completed = true
	if stars > level.Stars {
		level.Stars = stars
	}
	if a.TimeSpent >= 0 && (level.BestTime == nil || a.TimeSpent < *level.BestTime) {
		t := a.TimeSpent
		level.BestTime = &t
	}
	world.Progress = CalculateWorldProgress(world)
	out.WorldProgress = world.Progress

	// Only the improvement is added, so replays with fewer stars never lower the total.
	after.TotalStars += level.Stars - prevStars

	if !wasCompleted {
		out.FirstCompletion = true
		after.TotalLevelsCompleted++
		after.Rank = CalculateRank(after.TotalLevelsCompleted)

		if next, ok := NextLevel(ref.World, ref.Key); ok && !world.Levels[next].Unlocked {
			world.Levels[next].Unlocked = true
			out.UnlockedLevel = next
			out.Patch[fmt.Sprintf("worlds.%s.levels.%s.unlocked", ref.World, next)] = true
		}
		if world.Progress == 100 {
			if nw, ok := NextWorld(ref.World); ok {
				nextWorld := after.Worlds[nw]
				if !nextWorld.Unlocked {
					nextWorld.Unlocked = true
					out.UnlockedWorld = nw
					out.Patch[fmt.Sprintf("worlds.%s.unlocked", nw)] = true
				}
				first := WorldLevels(nw)[0]
				if !nextWorld.Levels[first].Unlocked {
					nextWorld.Levels[first].Unlocked = true
					out.Patch[fmt.Sprintf("worlds.%s.levels.%s.unlocked", nw, first)] = true
				}
			}
		}
	}

	// Documents written before lastSuccessAt existed fall back to lastPlayed.
	lastSuccess := before.LastPlayed
	if before.LastSuccessAt != nil {
		lastSuccess = *before.LastSuccessAt
	}
	after.CurrentStreak = streak.Next(before.CurrentStreak, lastSuccess, now)
	succeededAt := now
	after.LastSuccessAt = &succeededAt

	// Leaf fields only, so the stored unlocked flag is never rewritten here.
	lp := levelPath(ref)
	out.Patch[lp+".completed"] = true
	out.Patch[lp+".stars"] = level.Stars
	if level.BestTime != nil {
		out.Patch[lp+".bestTime"] = *level.BestTime
	}
	out.Patch["lastSuccessAt"] = succeededAt
	out.Patch[fmt.Sprintf("worlds.%s.progress", ref.World)] = world.Progress
	out.Patch["totalStars"] = after.TotalStars
	out.Patch["totalLevelsCompleted"] = after.TotalLevelsCompleted
	out.Patch["rank"] = after.Rank
	out.Patch["currentStreak"] = after.CurrentStreak
	return out, nil
}

// AddAwards appends newly earned achievements to the outcome and its patch.
func (o *Outcome) AddAwards(awards []model.AchievementAward) {
	if len(awards) == 0 {
		return
	}
	o.After.Achievements = append(o.After.Achievements, awards...)
	o.Patch["achievements"] = o.After.Achievements
}
