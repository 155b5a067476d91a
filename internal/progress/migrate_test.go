package progress

import (
	"testing"

	"code4kids_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levelDoc(completed bool) map[string]interface{} {
	return map[string]interface{}{"completed": completed, "stars": float64(0), "attempts": float64(1)}
}

// legacyDoc has no unlocked flags anywhere, the village complete and level4 done.
func legacyDoc() map[string]interface{} {
	return map[string]interface{}{
		"totalLevelsCompleted": float64(4),
		"worlds": map[string]interface{}{
			"village": map[string]interface{}{
				"name":     "Variable Village",
				"progress": float64(100),
				"levels": map[string]interface{}{
					"level1": levelDoc(true), "level2": levelDoc(true), "level3": levelDoc(true),
				},
			},
			"forest": map[string]interface{}{
				"name":     "If-Else Forest",
				"progress": float64(33),
				"levels": map[string]interface{}{
					"level4": levelDoc(true), "level5": levelDoc(false), "level6": levelDoc(false),
				},
			},
			"mountain": map[string]interface{}{
				"name":     "Loop Mountain",
				"progress": float64(0),
				"levels": map[string]interface{}{
					"level7": levelDoc(false), "level8": levelDoc(false), "level9": levelDoc(false),
				},
			},
		},
	}
}

// apply mimics the document store patch semantics for the paths produced here.
func apply(t *testing.T, doc map[string]interface{}, patch map[string]interface{}) {
	t.Helper()
	for path, v := range patch {
		cur := doc
		parts := splitDotted(path)
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]interface{})
			if !ok {
				next = map[string]interface{}{}
				cur[p] = next
			}
			cur = next
		}
		switch n := v.(type) {
		case int:
			cur[parts[len(parts)-1]] = float64(n)
		default:
			cur[parts[len(parts)-1]] = v
		}
	}
}

func splitDotted(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}

func TestUnlockedMigration(t *testing.T) {
	doc := legacyDoc()
	require.True(t, NeedsUnlockedMigration(doc))

	patch := UnlockedMigrationPatch(doc)
	assert.Equal(t, true, patch["worlds.village.unlocked"])
	assert.Equal(t, true, patch["worlds.forest.unlocked"])
	assert.Equal(t, false, patch["worlds.mountain.unlocked"])
	assert.Equal(t, true, patch["worlds.village.levels.level1.unlocked"])
	assert.Equal(t, true, patch["worlds.village.levels.level3.unlocked"])
	assert.Equal(t, true, patch["worlds.forest.levels.level4.unlocked"])
	assert.Equal(t, true, patch["worlds.forest.levels.level5.unlocked"])
	assert.Equal(t, false, patch["worlds.forest.levels.level6.unlocked"])
	assert.Equal(t, false, patch["worlds.mountain.levels.level7.unlocked"])

	apply(t, doc, patch)
	assert.False(t, NeedsUnlockedMigration(doc))
	assert.Empty(t, UnlockedMigrationPatch(doc))
}

func TestUnlockedMigrationKeepsExistingFlags(t *testing.T) {
	doc := legacyDoc()
	village := doc["worlds"].(map[string]interface{})["village"].(map[string]interface{})
	village["unlocked"] = true
	lv2 := village["levels"].(map[string]interface{})["level2"].(map[string]interface{})
	lv2["unlocked"] = false

	patch := UnlockedMigrationPatch(doc)
	assert.NotContains(t, patch, "worlds.village.unlocked")
	assert.NotContains(t, patch, "worlds.village.levels.level2.unlocked")
	assert.Contains(t, patch, "worlds.village.levels.level3.unlocked")
}

func TestUnlockedMigrationNotNeededForFreshDocument(t *testing.T) {
	doc, err := model.ToDocument(NewUserProgress(testNow))
	require.NoError(t, err)
	assert.False(t, NeedsUnlockedMigration(doc))
	assert.False(t, NeedsWorldUnlockMigration(doc))
}

func TestWorldUnlockMigration(t *testing.T) {
	doc := legacyDoc()
	apply(t, doc, UnlockedMigrationPatch(doc))

	// stale: forest recorded locked although the village is complete
	worlds := doc["worlds"].(map[string]interface{})
	forest := worlds["forest"].(map[string]interface{})
	forest["unlocked"] = false
	forest["levels"].(map[string]interface{})["level4"].(map[string]interface{})["unlocked"] = false
	forest["progress"] = float64(0)

	require.True(t, NeedsWorldUnlockMigration(doc))
	patch := WorldUnlockMigrationPatch(doc)
	assert.Equal(t, true, patch["worlds.forest.unlocked"])
	assert.Equal(t, true, patch["worlds.forest.levels.level4.unlocked"])
	assert.Equal(t, 33, patch["worlds.forest.progress"])
	assert.NotContains(t, patch, "worlds.village.unlocked")
	assert.NotContains(t, patch, "worlds.mountain.unlocked")

	apply(t, doc, patch)
	assert.False(t, NeedsWorldUnlockMigration(doc))
}

func TestWorldUnlockMigrationNeverLocks(t *testing.T) {
	doc := legacyDoc()
	apply(t, doc, UnlockedMigrationPatch(doc))
	worlds := doc["worlds"].(map[string]interface{})
	worlds["mountain"].(map[string]interface{})["unlocked"] = true

	patch := WorldUnlockMigrationPatch(doc)
	assert.NotContains(t, patch, "worlds.mountain.unlocked")
}
