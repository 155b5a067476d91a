package achievement

import (
	"fmt"
	"time"

	"code4kids_backend/internal/model"
)

// Mode selects which progress state rules observe.
type Mode string

const (
	// ModeProjected shows rules the totals, streak and level states after the attempt.
	ModeProjected Mode = "projected"
	// ModeSnapshot shows rules the totals and streak from before the attempt,
	// with only the attempted level's state brought forward.
	ModeSnapshot Mode = "snapshot"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeProjected:
		return ModeProjected, nil
	case ModeSnapshot:
		return ModeSnapshot, nil
	}
	return "", fmt.Errorf("unknown achievement evaluation mode %q", s)
}

// Event describes the successful attempt being evaluated.
type Event struct {
	LevelID         int
	World           string
	LevelKey        string
	Stars           int
	FirstCompletion bool
	WorldProgress   int
}

// Input is everything Evaluate needs. Before decides which ids are already earned.
type Input struct {
	Before *model.UserProgress
	After  *model.UserProgress
	Event  Event
}

// View is what a rule predicate observes.
type View struct {
	Progress *model.UserProgress
	Event    Event
}

func buildView(in Input, mode Mode) View {
	if mode != ModeSnapshot || in.Before == nil {
		p := in.After
		if p == nil {
			p = in.Before
		}
		return View{Progress: p, Event: in.Event}
	}

	p := in.Before.Clone()
	if l := in.After.Level(in.Event.World, in.Event.LevelKey); l != nil {
		if w := p.Worlds[in.Event.World]; w != nil && w.Levels != nil {
			lc := *l
			w.Levels[in.Event.LevelKey] = &lc
		}
	}
	return View{Progress: p, Event: in.Event}
}

// Evaluate returns the awards newly earned by the event, in catalogue order.
// It never returns an id already present in in.Before.
func Evaluate(in Input, mode Mode, now time.Time) []model.AchievementAward {
	v := buildView(in, mode)
	if v.Progress == nil {
		return nil
	}

	var out []model.AchievementAward
	for _, r := range rules {
		if in.Before.HasAchievement(r.ID) {
			continue
		}
		if r.Check(v) {
			out = append(out, model.AchievementAward{ID: r.ID, EarnedAt: now})
		}
	}
	return out
}
