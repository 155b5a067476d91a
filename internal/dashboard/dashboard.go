// Package dashboard holds read-only projections over progress documents.
// Nothing here writes; every function is a pure view over its inputs.
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"time"

	"code4kids_backend/internal/model"
	"code4kids_backend/internal/progress"
)

// Student pairs an account with its progress, which may be nil when the
// student never logged in after registration.
type Student struct {
	UID      string
	Username string
	Email    string
	Progress *model.UserProgress
}

type Performer struct {
	UID        string `json:"uid"`
	Username   string `json:"username"`
	TotalStars int    `json:"totalStars"`
}

type ClassStatistics struct {
	TotalStudents        int        `json:"totalStudents"`
	ActiveStudents       int        `json:"activeStudents"`
	AverageProgress      int        `json:"averageProgress"`
	TotalLevelsCompleted int        `json:"totalLevelsCompleted"`
	TotalStarsEarned     int        `json:"totalStarsEarned"`
	TopPerformer         *Performer `json:"topPerformer"`
}

type WorldStats struct {
	Name               string `json:"name"`
	StudentsCompleted  int    `json:"studentsCompleted"`
	StudentsInProgress int    `json:"studentsInProgress"`
	AverageStars       string `json:"averageStars"`
}

type StudentSummary struct {
	UID                  string     `json:"uid"`
	Username             string     `json:"username"`
	OverallProgress      int        `json:"overallProgress"`
	CurrentLevel         int        `json:"currentLevel"`
	CurrentWorld         string     `json:"currentWorld"`
	TotalStars           int        `json:"totalStars"`
	TotalLevelsCompleted int        `json:"totalLevelsCompleted"`
	Rank                 model.Rank `json:"rank"`
	AchievementCount     int        `json:"achievementCount"`
	LastPlayed           *time.Time `json:"lastPlayed"`
}

type ActivityEntry struct {
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	LevelID   int       `json:"levelId"`
	Success   bool      `json:"success"`
	Stars     int       `json:"stars"`
	TimeSpent int64     `json:"timeSpent"`
	Timestamp time.Time `json:"timestamp"`
}

type TeacherDashboard struct {
	ClassStatistics ClassStatistics       `json:"classStatistics"`
	WorldStats      map[string]WorldStats `json:"worldStats"`
	Students        []StudentSummary      `json:"students"`
	RecentActivity  []ActivityEntry       `json:"recentActivity"`
	GeneratedAt     time.Time             `json:"generatedAt"`
}

func round(f float64) int {
	return int(math.Round(f))
}

// OverallProgress is the rounded share of completed levels across all worlds.
func OverallProgress(p *model.UserProgress) int {
	if p == nil {
		return 0
	}
	total, completed := 0, 0
	for _, w := range p.Worlds {
		if w == nil {
			continue
		}
		for _, l := range w.Levels {
			total++
			if l != nil && l.Completed {
				completed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return round(100 * float64(completed) / float64(total))
}

// CurrentLevel is the first unlocked, uncompleted level in play order. When
// there is none it is one past the last completed level, capped at the final level.
func CurrentLevel(p *model.UserProgress) int {
	if p == nil {
		return 1
	}
	lastCompleted := 0
	for _, ref := range progress.AllLevels() {
		l := p.Level(ref.World, ref.Key)
		if l == nil {
			continue
		}
		if l.Unlocked && !l.Completed {
			return ref.ID
		}
		if l.Completed {
			lastCompleted = ref.ID
		}
	}
	if lastCompleted+1 > progress.TotalLevels {
		return progress.TotalLevels
	}
	return lastCompleted + 1
}

// CurrentWorldName is the display name of the furthest unlocked world.
func CurrentWorldName(p *model.UserProgress) string {
	current := progress.WorldOrder[0]
	if p != nil {
		for _, w := range progress.WorldOrder {
			if world := p.Worlds[w]; world != nil && world.Unlocked {
				current = w
			}
		}
	}
	return progress.WorldName(current)
}

func isActive(p *model.UserProgress, now time.Time, window time.Duration) bool {
	if p == nil || p.LastPlayed.IsZero() {
		return false
	}
	return now.Sub(p.LastPlayed) <= window
}

// ClassStats aggregates a class. Students without progress count toward the
// total with zero progress. Ties for top performer go to the earlier student.
func ClassStats(students []Student, now time.Time, activeWindow time.Duration) ClassStatistics {
	stats := ClassStatistics{TotalStudents: len(students)}
	if len(students) == 0 {
		return stats
	}

	sumProgress := 0
	for i := range students {
		s := &students[i]
		sumProgress += OverallProgress(s.Progress)

		stars := 0
		if s.Progress != nil {
			stars = s.Progress.TotalStars
			stats.TotalLevelsCompleted += s.Progress.TotalLevelsCompleted
			stats.TotalStarsEarned += stars
			if isActive(s.Progress, now, activeWindow) {
				stats.ActiveStudents++
			}
		}
		if stats.TopPerformer == nil || stars > stats.TopPerformer.TotalStars {
			stats.TopPerformer = &Performer{UID: s.UID, Username: s.Username, TotalStars: stars}
		}
	}
	stats.AverageProgress = round(float64(sumProgress) / float64(len(students)))
	return stats
}

// WorldProgressStats rolls up every world across the class. AverageStars is
// the mean star count over completed levels, with one decimal.
func WorldProgressStats(students []Student) map[string]WorldStats {
	out := make(map[string]WorldStats, len(progress.WorldOrder))
	for _, w := range progress.WorldOrder {
		ws := WorldStats{Name: progress.WorldName(w)}
		stars, completedLevels := 0, 0
		for i := range students {
			p := students[i].Progress
			if p == nil {
				continue
			}
			world := p.Worlds[w]
			if world == nil {
				continue
			}
			switch pct := progress.CalculateWorldProgress(world); {
			case pct == 100:
				ws.StudentsCompleted++
			case pct > 0:
				ws.StudentsInProgress++
			}
			for _, l := range world.Levels {
				if l != nil && l.Completed {
					stars += l.Stars
					completedLevels++
				}
			}
		}
		avg := 0.0
		if completedLevels > 0 {
			avg = float64(stars) / float64(completedLevels)
		}
		ws.AverageStars = fmt.Sprintf("%.1f", avg)
		out[w] = ws
	}
	return out
}

func Summary(s Student) StudentSummary {
	sum := StudentSummary{
		UID:             s.UID,
		Username:        s.Username,
		OverallProgress: OverallProgress(s.Progress),
		CurrentLevel:    CurrentLevel(s.Progress),
		CurrentWorld:    CurrentWorldName(s.Progress),
		Rank:            model.RankNovice,
	}
	if p := s.Progress; p != nil {
		sum.TotalStars = p.TotalStars
		sum.TotalLevelsCompleted = p.TotalLevelsCompleted
		sum.AchievementCount = len(p.Achievements)
		if p.Rank != "" {
			sum.Rank = p.Rank
		}
		if !p.LastPlayed.IsZero() {
			lp := p.LastPlayed
			sum.LastPlayed = &lp
		}
	}
	return sum
}

// ActivityFeed lists sessions newest first. names maps uid to display name.
func ActivityFeed(sessions []model.GameSession, names map[string]string, limit int) []ActivityEntry {
	sorted := append([]model.GameSession(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]ActivityEntry, 0, len(sorted))
	for _, s := range sorted {
		out = append(out, ActivityEntry{
			UID:       s.UserID,
			Username:  names[s.UserID],
			LevelID:   s.LevelID,
			Success:   s.Success,
			Stars:     s.Stars,
			TimeSpent: s.TimeSpent,
			Timestamp: s.Timestamp,
		})
	}
	return out
}

// BuildTeacherDashboard assembles every class view. Students are listed by
// total stars, then username.
func BuildTeacherDashboard(students []Student, sessions []model.GameSession, now time.Time, activeWindow time.Duration, feedLimit int) *TeacherDashboard {
	names := make(map[string]string, len(students))
	summaries := make([]StudentSummary, 0, len(students))
	for _, s := range students {
		names[s.UID] = s.Username
		summaries = append(summaries, Summary(s))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].TotalStars != summaries[j].TotalStars {
			return summaries[i].TotalStars > summaries[j].TotalStars
		}
		return summaries[i].Username < summaries[j].Username
	})

	return &TeacherDashboard{
		ClassStatistics: ClassStats(students, now, activeWindow),
		WorldStats:      WorldProgressStats(students),
		Students:        summaries,
		RecentActivity:  ActivityFeed(sessions, names, feedLimit),
		GeneratedAt:     now,
	}
}
