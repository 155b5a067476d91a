package dashboard

import (
	"testing"
	"time"

	"code4kids_backend/internal/model"
	"code4kids_backend/internal/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

const window = 48 * time.Hour

// played returns fresh progress after winning the given levels with stars each.
func played(t *testing.T, lastPlayed time.Time, stars int, levels ...int) *model.UserProgress {
	t.Helper()
	p := progress.NewUserProgress(lastPlayed)
	for _, id := range levels {
		out, err := progress.Apply(p, progress.Attempt{LevelID: id, Success: true, Stars: stars, TimeSpent: 1000}, lastPlayed, nil)
		require.NoError(t, err)
		p = out.After
	}
	return p
}

func TestOverallProgress(t *testing.T) {
	assert.Equal(t, 0, OverallProgress(nil))
	assert.Equal(t, 0, OverallProgress(&model.UserProgress{}))
	assert.Equal(t, 0, OverallProgress(progress.NewUserProgress(now)))
	assert.Equal(t, 33, OverallProgress(played(t, now, 1, 1, 2, 3)))
	assert.Equal(t, 100, OverallProgress(played(t, now, 1, 1, 2, 3, 4, 5, 6, 7, 8, 9)))
}

func TestCurrentLevel(t *testing.T) {
	assert.Equal(t, 1, CurrentLevel(nil))
	assert.Equal(t, 1, CurrentLevel(progress.NewUserProgress(now)))
	assert.Equal(t, 3, CurrentLevel(played(t, now, 2, 1, 2)))
	assert.Equal(t, 4, CurrentLevel(played(t, now, 2, 1, 2, 3)))
	assert.Equal(t, 9, CurrentLevel(played(t, now, 2, 1, 2, 3, 4, 5, 6, 7, 8, 9)))

	// nothing unlocked and uncompleted: one past the last completed level
	p := played(t, now, 2, 1)
	p.Level(model.WorldVillage, "level2").Unlocked = false
	assert.Equal(t, 2, CurrentLevel(p))
}

func TestCurrentWorldName(t *testing.T) {
	assert.Equal(t, "Variable Village", CurrentWorldName(nil))
	assert.Equal(t, "Variable Village", CurrentWorldName(progress.NewUserProgress(now)))
	assert.Equal(t, "If-Else Forest", CurrentWorldName(played(t, now, 1, 1, 2, 3)))
	assert.Equal(t, "Loop Mountain", CurrentWorldName(played(t, now, 1, 1, 2, 3, 4, 5, 6)))
}

func TestClassStatsEmpty(t *testing.T) {
	stats := ClassStats(nil, now, window)
	assert.Equal(t, 0, stats.TotalStudents)
	assert.Equal(t, 0, stats.AverageProgress)
	assert.Nil(t, stats.TopPerformer)
}

func TestClassStats(t *testing.T) {
	students := []Student{
		{UID: "a", Username: "ada", Progress: played(t, now.Add(-time.Hour), 3, 1, 2, 3)},
		{UID: "b", Username: "bob", Progress: played(t, now.Add(-72*time.Hour), 1, 1)},
		{UID: "c", Username: "cy"},
	}
	stats := ClassStats(students, now, window)

	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 1, stats.ActiveStudents)
	// (33 + 11 + 0) / 3
	assert.Equal(t, 15, stats.AverageProgress)
	assert.Equal(t, 4, stats.TotalLevelsCompleted)
	assert.Equal(t, 10, stats.TotalStarsEarned)
	require.NotNil(t, stats.TopPerformer)
	assert.Equal(t, "a", stats.TopPerformer.UID)
	assert.Equal(t, 9, stats.TopPerformer.TotalStars)
}

func TestWorldProgressStats(t *testing.T) {
	students := []Student{
		{UID: "a", Progress: played(t, now, 3, 1, 2, 3)},
		{UID: "b", Progress: played(t, now, 2, 1)},
		{UID: "c"},
	}
	stats := WorldProgressStats(students)
	require.Len(t, stats, 3)

	village := stats[model.WorldVillage]
	assert.Equal(t, "Variable Village", village.Name)
	assert.Equal(t, 1, village.StudentsCompleted)
	assert.Equal(t, 1, village.StudentsInProgress)
	// (3+3+3+2) / 4
	assert.Equal(t, "2.8", village.AverageStars)

	forest := stats[model.WorldForest]
	assert.Equal(t, 0, forest.StudentsCompleted)
	assert.Equal(t, 0, forest.StudentsInProgress)
	assert.Equal(t, "0.0", forest.AverageStars)
}

func TestSummary(t *testing.T) {
	s := Summary(Student{UID: "a", Username: "ada", Progress: played(t, now, 3, 1)})
	assert.Equal(t, 11, s.OverallProgress)
	assert.Equal(t, 2, s.CurrentLevel)
	assert.Equal(t, "Variable Village", s.CurrentWorld)
	assert.Equal(t, 3, s.TotalStars)
	require.NotNil(t, s.LastPlayed)

	empty := Summary(Student{UID: "z"})
	assert.Equal(t, model.RankNovice, empty.Rank)
	assert.Nil(t, empty.LastPlayed)
	assert.Equal(t, 1, empty.CurrentLevel)
}

func TestActivityFeed(t *testing.T) {
	sessions := []model.GameSession{
		{UserID: "a", LevelID: 1, Timestamp: now.Add(-3 * time.Minute)},
		{UserID: "b", LevelID: 2, Timestamp: now.Add(-1 * time.Minute)},
		{UserID: "a", LevelID: 3, Timestamp: now.Add(-2 * time.Minute)},
	}
	feed := ActivityFeed(sessions, map[string]string{"a": "ada"}, 2)
	require.Len(t, feed, 2)
	assert.Equal(t, 2, feed[0].LevelID)
	assert.Equal(t, "", feed[0].Username)
	assert.Equal(t, 3, feed[1].LevelID)
	assert.Equal(t, "ada", feed[1].Username)

	// input order is untouched
	assert.Equal(t, 1, sessions[0].LevelID)
}

func TestBuildTeacherDashboard(t *testing.T) {
	students := []Student{
		{UID: "b", Username: "bob", Progress: played(t, now, 1, 1)},
		{UID: "a", Username: "ada", Progress: played(t, now, 3, 1, 2)},
	}
	d := BuildTeacherDashboard(students, nil, now, window, 10)
	require.Len(t, d.Students, 2)
	assert.Equal(t, "ada", d.Students[0].Username)
	assert.Equal(t, 2, d.ClassStatistics.TotalStudents)
	assert.Empty(t, d.RecentActivity)
	assert.Equal(t, now, d.GeneratedAt)
}
