package achievement

import (
	"code4kids_backend/internal/model"
)

// Rule is one catalogue entry together with the predicate that awards it.
type Rule struct {
	model.Achievement
	Check func(v View) bool
}

func firstCompletion(level int) func(View) bool {
	return func(v View) bool {
		return v.Event.FirstCompletion && v.Event.LevelID == level
	}
}

func perfectScore(level int) func(View) bool {
	return func(v View) bool {
		return v.Event.LevelID == level && v.Event.Stars == 3
	}
}

func streakAtLeast(n int) func(View) bool {
	return func(v View) bool { return v.Progress.CurrentStreak >= n }
}

func levelsAtLeast(n int) func(View) bool {
	return func(v View) bool { return v.Progress.TotalLevelsCompleted >= n }
}

func starsAtLeast(n int) func(View) bool {
	return func(v View) bool { return v.Progress.TotalStars >= n }
}

func worldComplete(world string) func(View) bool {
	return func(v View) bool {
		return v.Event.World == world && v.Event.WorldProgress == 100
	}
}

func bothCompleted(world, a, b string) func(View) bool {
	return func(v View) bool {
		la, lb := v.Progress.Level(world, a), v.Progress.Level(world, b)
		return la != nil && lb != nil && la.Completed && lb.Completed
	}
}

func rule(id, name, description, icon string, rarity model.Rarity, check func(View) bool) Rule {
	return Rule{
		Achievement: model.Achievement{ID: id, Name: name, Description: description, Icon: icon, Rarity: rarity},
		Check:       check,
	}
}

// rules is evaluated in order; awards come back in the same order.
var rules = []Rule{
	rule("first_steps", "First Steps", "Complete your first level in Variable Village", "👣", model.RarityCommon, firstCompletion(1)),
	rule("variable_rookie", "Variable Rookie", "Complete level 2 and store your first values", "📦", model.RarityCommon, firstCompletion(2)),
	rule("data_keeper", "Data Keeper", "Complete level 3 and keep every variable in order", "🗃️", model.RarityCommon, firstCompletion(3)),
	rule("forest_explorer", "Forest Explorer", "Complete level 4 and take your first branch", "🌲", model.RarityCommon, firstCompletion(4)),
	rule("decision_maker", "Decision Maker", "Complete level 5 by choosing the right path", "🔀", model.RarityUncommon, firstCompletion(5)),
	rule("path_finder", "Path Finder", "Complete level 6 and find your way out of the forest", "🧭", model.RarityUncommon, firstCompletion(6)),
	rule("mountain_climber", "Mountain Climber", "Complete level 7 and start the climb", "🧗", model.RarityUncommon, firstCompletion(7)),
	rule("loop_runner", "Loop Runner", "Complete level 8 by repeating yourself wisely", "🔁", model.RarityRare, firstCompletion(8)),
	rule("summit_reached", "Summit Reached", "Complete level 9 at the top of Loop Mountain", "🏔️", model.RarityRare, firstCompletion(9)),

	rule("apple_master", "Apple Master", "Earn 3 stars on level 1", "🍎", model.RarityUncommon, perfectScore(1)),
	rule("branch_master", "Branch Master", "Earn 3 stars on level 4", "🌿", model.RarityUncommon, perfectScore(4)),
	rule("loop_master", "Loop Master", "Earn 3 stars on level 7", "➰", model.RarityRare, perfectScore(7)),
	rule("flawless_summit", "Flawless Summit", "Earn 3 stars on level 9", "💎", model.RarityLegendary, perfectScore(9)),

	rule("on_a_roll", "On a Roll", "Reach a streak of 3", "🔥", model.RarityCommon, streakAtLeast(3)),
	rule("unstoppable", "Unstoppable", "Reach a streak of 5", "⚡", model.RarityRare, streakAtLeast(5)),

	rule("halfway_hero", "Halfway Hero", "Complete 5 levels", "🦸", model.RarityUncommon, levelsAtLeast(5)),
	rule("code_champion", "Code Champion", "Complete all 9 levels", "🏆", model.RarityLegendary, levelsAtLeast(9)),

	rule("star_collector", "Star Collector", "Collect 10 stars", "⭐", model.RarityCommon, starsAtLeast(10)),
	rule("star_gazer", "Star Gazer", "Collect 20 stars", "🌟", model.RarityRare, starsAtLeast(20)),
	rule("superstar", "Superstar", "Collect all 27 stars", "✨", model.RarityLegendary, starsAtLeast(27)),

	rule("variable_duo", "Variable Duo", "Complete both level 1 and level 2", "👯", model.RarityUncommon, bothCompleted(model.WorldVillage, "level1", "level2")),

	rule("village_hero", "Village Hero", "Finish every level in Variable Village", "🏘️", model.RarityUncommon, worldComplete(model.WorldVillage)),
	rule("forest_guardian", "Forest Guardian", "Finish every level in If-Else Forest", "🛡️", model.RarityRare, worldComplete(model.WorldForest)),
	rule("mountain_king", "Mountain King", "Finish every level in Loop Mountain", "👑", model.RarityLegendary, worldComplete(model.WorldMountain)),
}

var byID = func() map[string]model.Achievement {
	m := make(map[string]model.Achievement, len(rules))
	for _, r := range rules {
		m[r.ID] = r.Achievement
	}
	return m
}()

// Catalog returns every achievement, earned or not, in display order.
func Catalog() []model.Achievement {
	out := make([]model.Achievement, len(rules))
	for i, r := range rules {
		out[i] = r.Achievement
	}
	return out
}

func Lookup(id string) (model.Achievement, bool) {
	a, ok := byID[id]
	return a, ok
}

// Resolve joins awards with their catalogue metadata, keeping award order.
// Ids no longer in the catalogue are skipped.
func Resolve(awards []model.AchievementAward) []model.UnlockedAchievement {
	out := make([]model.UnlockedAchievement, 0, len(awards))
	for _, aw := range awards {
		a, ok := byID[aw.ID]
		if !ok {
			continue
		}
		out = append(out, model.UnlockedAchievement{Achievement: a, EarnedAt: aw.EarnedAt})
	}
	return out
}
