package progress

import (
	"fmt"
	"time"
)

// StreakPolicy computes currentStreak after a successful attempt from the
// time of the previous success. Failed attempts never change the streak.
type StreakPolicy interface {
	Next(prev int, lastSuccess, now time.Time) int
}

// SuccessStreak counts successful attempts.
type SuccessStreak struct{}

func (SuccessStreak) Next(prev int, _, _ time.Time) int {
	return prev + 1
}

// DailyStreak counts consecutive calendar days on which the player succeeded.
type DailyStreak struct {
	Location *time.Location
}

func (d DailyStreak) Next(prev int, lastSuccess, now time.Time) int {
	if lastSuccess.IsZero() || prev <= 0 {
		return 1
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	last := civilDay(lastSuccess.In(loc))
	today := civilDay(now.In(loc))
	switch {
	case today.Equal(last):
		return prev
	case today.Equal(last.AddDate(0, 0, 1)):
		return prev + 1
	}
	return 1
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func ParseStreakPolicy(name string) (StreakPolicy, error) {
	switch name {
	case "", "success":
		return SuccessStreak{}, nil
	case "daily":
		return DailyStreak{}, nil
	}
	return nil, fmt.Errorf("unknown streak policy %q", name)
}
