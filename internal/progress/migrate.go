package progress

import (
	"fmt"
)

// Legacy progress documents predate the per-level "unlocked" flag and the
// world-unlocking rules. Each migration is a predicate over the raw document
// plus a patch builder that only touches missing or stale fields, so running
// either one again on its own output yields an empty patch.

const (
	MigrationUnlockedFields = "unlocked_fields"
	MigrationWorldUnlocking = "world_unlocking"
)

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func rawWorld(doc map[string]interface{}, world string) (map[string]interface{}, bool) {
	worlds, ok := asMap(doc["worlds"])
	if !ok {
		return nil, false
	}
	return asMap(worlds[world])
}

func rawLevel(doc map[string]interface{}, world, key string) (map[string]interface{}, bool) {
	w, ok := rawWorld(doc, world)
	if !ok {
		return nil, false
	}
	levels, ok := asMap(w["levels"])
	if !ok {
		return nil, false
	}
	return asMap(levels[key])
}

// rawWorldProgress derives progress from the level entries present in the document.
func rawWorldProgress(w map[string]interface{}) int {
	levels, ok := asMap(w["levels"])
	if !ok || len(levels) == 0 {
		return 0
	}
	completed := 0
	for _, l := range levels {
		if lm, ok := asMap(l); ok && asBool(lm["completed"]) {
			completed++
		}
	}
	return percent(completed, len(levels))
}

// NeedsUnlockedMigration reports whether any world or level lacks its "unlocked" field.
func NeedsUnlockedMigration(doc map[string]interface{}) bool {
	for _, w := range WorldOrder {
		wm, ok := rawWorld(doc, w)
		if !ok {
			continue
		}
		if _, has := wm["unlocked"]; !has {
			return true
		}
		for _, key := range WorldLevels(w) {
			lm, ok := rawLevel(doc, w, key)
			if !ok {
				continue
			}
			if _, has := lm["unlocked"]; !has {
				return true
			}
		}
	}
	return false
}

// UnlockedMigrationPatch synthesizes missing "unlocked" fields. A world without
// the flag is unlocked when it is the first world or its predecessor is fully
// complete. The first level of a world follows the world; every later level
// follows the completion of the level before it.
func UnlockedMigrationPatch(doc map[string]interface{}) map[string]interface{} {
	patch := map[string]interface{}{}
	for _, w := range WorldOrder {
		wm, ok := rawWorld(doc, w)
		if !ok {
			continue
		}

		worldUnlocked, has := wm["unlocked"].(bool)
		if !has {
			worldUnlocked = true
			if prev, ok := previousWorld(w); ok {
				pm, ok := rawWorld(doc, prev)
				worldUnlocked = ok && rawWorldProgress(pm) == 100
			}
			patch[fmt.Sprintf("worlds.%s.unlocked", w)] = worldUnlocked
		}

		prevCompleted := false
		for i, key := range WorldLevels(w) {
			lm, ok := rawLevel(doc, w, key)
			if !ok {
				prevCompleted = false
				continue
			}
			if _, has := lm["unlocked"]; !has {
				unlocked := prevCompleted
				if i == 0 {
					unlocked = worldUnlocked
				}
				patch[fmt.Sprintf("worlds.%s.levels.%s.unlocked", w, key)] = unlocked
			}
			prevCompleted = asBool(lm["completed"])
		}
	}
	return patch
}

// NeedsWorldUnlockMigration reports whether a stored world progress is stale or
// a fully completed world has not unlocked itself and its successor.
func NeedsWorldUnlockMigration(doc map[string]interface{}) bool {
	return len(WorldUnlockMigrationPatch(doc)) > 0
}

// WorldUnlockMigrationPatch corrects stale progress values and unlock flags.
// Flags are only ever raised, never cleared.
func WorldUnlockMigrationPatch(doc map[string]interface{}) map[string]interface{} {
	patch := map[string]interface{}{}
	for _, w := range WorldOrder {
		wm, ok := rawWorld(doc, w)
		if !ok {
			continue
		}
		derived := rawWorldProgress(wm)
		if stored, ok := asInt(wm["progress"]); !ok || stored != derived {
			patch[fmt.Sprintf("worlds.%s.progress", w)] = derived
		}
		if derived < 100 {
			continue
		}
		if !asBool(wm["unlocked"]) {
			patch[fmt.Sprintf("worlds.%s.unlocked", w)] = true
		}
		nw, ok := NextWorld(w)
		if !ok {
			continue
		}
		nm, ok := rawWorld(doc, nw)
		if !ok || !asBool(nm["unlocked"]) {
			patch[fmt.Sprintf("worlds.%s.unlocked", nw)] = true
		}
		first := WorldLevels(nw)[0]
		if lm, ok := rawLevel(doc, nw, first); !ok || !asBool(lm["unlocked"]) {
			patch[fmt.Sprintf("worlds.%s.levels.%s.unlocked", nw, first)] = true
		}
	}
	return patch
}
