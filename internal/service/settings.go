package service

import (
	"sync"
	"time"

	"code4kids_backend/internal/achievement"
	"code4kids_backend/internal/config"
	"code4kids_backend/internal/progress"
)

// Settings holds the hot-reloadable progress configuration shared by services.
type Settings struct {
	mu     sync.RWMutex
	cfg    config.ProgressConfig
	streak progress.StreakPolicy
	mode   achievement.Mode
}

func NewSettings(cfg config.ProgressConfig) (*Settings, error) {
	s := &Settings{}
	if err := s.Apply(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply validates cfg and swaps it in. On error the previous settings stay active.
func (s *Settings) Apply(cfg config.ProgressConfig) error {
	streak, err := progress.ParseStreakPolicy(cfg.StreakPolicy)
	if err != nil {
		return err
	}
	mode, err := achievement.ParseMode(cfg.EvaluationMode)
	if err != nil {
		return err
	}
	if cfg.MaxConflictRetries < 0 {
		cfg.MaxConflictRetries = 0
	}
	if cfg.ActiveWindowHours <= 0 {
		cfg.ActiveWindowHours = 48
	}
	if cfg.ActivityFeedLimit <= 0 {
		cfg.ActivityFeedLimit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.streak = streak
	s.mode = mode
	return nil
}

func (s *Settings) Config() config.ProgressConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Settings) StreakPolicy() progress.StreakPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streak
}

func (s *Settings) EvaluationMode() achievement.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Settings) ActiveWindow() time.Duration {
	return s.Config().ActiveWindow()
}
