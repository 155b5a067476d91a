package service

import (
	"context"
	"errors"
	"time"

	"code4kids_backend/internal/achievement"
	"code4kids_backend/internal/dashboard"
	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/model"
	"code4kids_backend/internal/progress"
	"code4kids_backend/internal/repository"
	"code4kids_backend/internal/util"
	"code4kids_backend/pkg/logger"
	"code4kids_backend/pkg/monitoring"
	"code4kids_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const dashboardSessionLimit = 10

// DashboardInvalidator is told when a progress write makes cached class views stale.
type DashboardInvalidator interface {
	InvalidateDashboard(ctx context.Context)
}

type ProgressService struct {
	ProgressRepo   *repository.ProgressRepository
	SessionRepo    *repository.SessionRepository
	Settings       *Settings
	DashboardCache DashboardInvalidator
	Clock          func() time.Time
}

func NewProgressService(progressRepo *repository.ProgressRepository, sessionRepo *repository.SessionRepository, settings *Settings) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		SessionRepo:  sessionRepo,
		Settings:     settings,
		Clock:        time.Now,
	}
}

// AttemptRequest is one play-through reported by the game. TimeSpent is in milliseconds.
type AttemptRequest struct {
	LevelID    int               `json:"levelId" binding:"required,min=1"`
	Success    bool              `json:"success"`
	Stars      int               `json:"stars" binding:"min=0"`
	TimeSpent  int64             `json:"timeSpent" binding:"min=0"`
	CodeBlocks []model.CodeBlock `json:"codeBlocks"`
}

type AttemptResult struct {
	Success         bool                        `json:"success"`
	NewAchievements []model.UnlockedAchievement `json:"newAchievements,omitempty"`
	WorldProgress   int                         `json:"worldProgress,omitempty"`
	NewRank         model.Rank                  `json:"newRank,omitempty"`
	TotalStars      int                         `json:"totalStars,omitempty"`
	UnlockedLevel   string                      `json:"unlockedLevel,omitempty"`
	UnlockedWorld   string                      `json:"unlockedWorld,omitempty"`
}

type DashboardData struct {
	Progress        *model.UserProgress         `json:"progress"`
	Summary         dashboard.StudentSummary    `json:"summary"`
	Achievements    []model.UnlockedAchievement `json:"achievements"`
	AllAchievements []model.Achievement         `json:"allAchievements"`
	RecentSessions  []model.GameSession         `json:"recentSessions"`
}

func (s *ProgressService) now() time.Time {
	return s.Clock().UTC()
}

// InitializeUserProgress creates the zero-state document. It refuses to
// overwrite an existing one with util.ErrProgressExists.
func (s *ProgressService) InitializeUserProgress(ctx context.Context, uid string) (*model.UserProgress, error) {
	p := progress.NewUserProgress(s.now())
	err := s.ProgressRepo.Create(ctx, uid, p)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil, util.ErrProgressExists
	}
	if err != nil {
		logger.Log.Error("Failed to initialize progress", zap.String("uid", uid), zap.Error(err))
		return nil, err
	}
	logger.Log.Info("Initialized progress", zap.String("uid", uid))
	return s.GetUserProgress(ctx, uid)
}

// EnsureUserProgress returns the user's progress, creating it when absent.
func (s *ProgressService) EnsureUserProgress(ctx context.Context, uid string) (*model.UserProgress, error) {
	vp, err := s.ensure(ctx, uid)
	if err != nil {
		return nil, err
	}
	return vp.Progress, nil
}

func (s *ProgressService) ensure(ctx context.Context, uid string) (*repository.VersionedProgress, error) {
	vp, err := s.load(ctx, uid)
	if err == nil {
		return vp, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}
	if _, err := s.InitializeUserProgress(ctx, uid); err != nil && !errors.Is(err, util.ErrProgressExists) {
		return nil, err
	}
	return s.load(ctx, uid)
}

// load reads the user's document and brings a legacy shape up to date
// before it is decoded.
func (s *ProgressService) load(ctx context.Context, uid string) (*repository.VersionedProgress, error) {
	doc, err := s.ProgressRepo.GetRaw(ctx, uid)
	if err != nil {
		return nil, err
	}
	doc, _ = s.migrate(ctx, doc)
	return repository.DecodeProgress(doc)
}

func (s *ProgressService) GetUserProgress(ctx context.Context, uid string) (*model.UserProgress, error) {
	vp, err := s.load(ctx, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}
	progress.EnsureShape(vp.Progress)
	return vp.Progress, nil
}

// RecordLevelAttempt applies one attempt for the signed-in user. The write is
// conditional on the version that was read; on a concurrent change the
// attempt is re-applied to fresh state, up to the configured retry count.
func (s *ProgressService) RecordLevelAttempt(ctx context.Context, req AttemptRequest) (*AttemptResult, error) {
	claims, err := util.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := progress.LookupLevel(req.LevelID); err != nil {
		return nil, err
	}

	ctx, span := tracing.Tracer().Start(ctx, "ProgressService.RecordLevelAttempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.uid", claims.UID),
		attribute.Int("level.id", req.LevelID),
		attribute.Bool("attempt.success", req.Success),
	)

	cfg := s.Settings.Config()
	streak := s.Settings.StreakPolicy()
	mode := s.Settings.EvaluationMode()
	attempt := progress.Attempt{
		LevelID:    req.LevelID,
		Success:    req.Success,
		Stars:      req.Stars,
		TimeSpent:  req.TimeSpent,
		CodeBlocks: req.CodeBlocks,
	}

	var out *progress.Outcome
	var awards []model.AchievementAward
	for try := 0; ; try++ {
		vp, err := s.ensure(ctx, claims.UID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load progress")
			logger.FromContext(ctx).Error("Failed to load progress", zap.String("uid", claims.UID), zap.Error(err))
			return nil, err
		}

		now := s.now()
		out, err = progress.Apply(vp.Progress, attempt, now, streak)
		if err != nil {
			return nil, err
		}
		awards = nil
		if out.Success {
			awards = achievement.Evaluate(achievement.Input{
				Before: out.Before,
				After:  out.After,
				Event: achievement.Event{
					LevelID:         out.Level.ID,
					World:           out.Level.World,
					LevelKey:        out.Level.Key,
					Stars:           out.Stars,
					FirstCompletion: out.FirstCompletion,
					WorldProgress:   out.WorldProgress,
				},
			}, mode, now)
			out.AddAwards(awards)
		}

		err = s.ProgressRepo.Patch(ctx, claims.UID, out.Patch, vp.Version)
		if err == nil {
			break
		}
		if !errors.Is(err, docstore.ErrVersionConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write progress")
			logger.FromContext(ctx).Error("Failed to record attempt",
				zap.String("uid", claims.UID), zap.Int("level", req.LevelID), zap.Error(err))
			return nil, err
		}
		monitoring.VersionConflicts.Inc()
		if try >= cfg.MaxConflictRetries {
			logger.FromContext(ctx).Warn("Giving up on contended progress write",
				zap.String("uid", claims.UID), zap.Int("tries", try+1))
			return nil, util.ErrConcurrentUpdate
		}
		logger.Log.Debug("Progress changed concurrently, retrying",
			zap.String("uid", claims.UID), zap.Int("try", try+1))
	}

	s.appendSession(ctx, claims.UID, attempt, out)
	if s.DashboardCache != nil {
		s.DashboardCache.InvalidateDashboard(ctx)
	}

	monitoring.RecordAttempt(req.LevelID, req.Success)
	for _, a := range awards {
		monitoring.AchievementsUnlocked.WithLabelValues(a.ID).Inc()
	}

	if !out.Success {
		return &AttemptResult{Success: false}, nil
	}
	if len(awards) > 0 {
		logger.Log.Info("Achievements unlocked",
			zap.String("uid", claims.UID), zap.Int("count", len(awards)))
	}
	return &AttemptResult{
		Success:         true,
		NewAchievements: achievement.Resolve(awards),
		WorldProgress:   out.WorldProgress,
		NewRank:         out.After.Rank,
		TotalStars:      out.After.TotalStars,
		UnlockedLevel:   out.UnlockedLevel,
		UnlockedWorld:   out.UnlockedWorld,
	}, nil
}

// appendSession logs the attempt. Session rows are diagnostic, so a failure
// here is logged and swallowed.
func (s *ProgressService) appendSession(ctx context.Context, uid string, a progress.Attempt, out *progress.Outcome) {
	stars := 0
	if out.Success {
		stars = out.Stars
	}
	blocks := make([]model.CodeBlock, 0, len(a.CodeBlocks))
	for _, b := range a.CodeBlocks {
		blocks = append(blocks, model.CodeBlock{ID: b.ID, Type: b.Type, Label: b.Label})
	}
	session := &model.GameSession{
		UserID:     uid,
		LevelID:    a.LevelID,
		Success:    out.Success,
		Stars:      stars,
		TimeSpent:  a.TimeSpent,
		CodeBlocks: blocks,
		Timestamp:  out.After.LastPlayed,
	}
	if _, err := s.SessionRepo.Append(ctx, session); err != nil {
		logger.FromContext(ctx).Warn("Failed to append game session",
			zap.String("uid", uid), zap.Int("level", a.LevelID), zap.Error(err))
	}
}

// migrate brings a legacy document up to date. It is best-effort: on any
// failure the most recent successfully read document is returned.
func (s *ProgressService) migrate(ctx context.Context, doc *docstore.Document) (*docstore.Document, bool) {
	steps := []struct {
		kind  string
		needs func(map[string]interface{}) bool
		patch func(map[string]interface{}) map[string]interface{}
	}{
		{progress.MigrationUnlockedFields, progress.NeedsUnlockedMigration, progress.UnlockedMigrationPatch},
		{progress.MigrationWorldUnlocking, progress.NeedsWorldUnlockMigration, progress.WorldUnlockMigrationPatch},
	}

	migrated := false
	for _, step := range steps {
		if !step.needs(doc.Data) {
			continue
		}
		patch := step.patch(doc.Data)
		if len(patch) == 0 {
			continue
		}
		if err := s.ProgressRepo.UpdateFields(ctx, doc.ID, patch); err != nil {
			logger.Log.Warn("Progress migration failed",
				zap.String("uid", doc.ID), zap.String("kind", step.kind), zap.Error(err))
			return doc, migrated
		}
		monitoring.ProgressMigrations.WithLabelValues(step.kind).Inc()
		logger.Log.Info("Migrated progress document",
			zap.String("uid", doc.ID), zap.String("kind", step.kind), zap.Int("fields", len(patch)))

		fresh, err := s.ProgressRepo.GetRaw(ctx, doc.ID)
		if err != nil {
			logger.Log.Warn("Failed to re-read migrated progress", zap.String("uid", doc.ID), zap.Error(err))
			return doc, migrated
		}
		doc = fresh
		migrated = true
	}
	return doc, migrated
}

// GetDashboardData migrates the user's document if needed and returns it with
// its derived views.
func (s *ProgressService) GetDashboardData(ctx context.Context, uid string) (*DashboardData, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ProgressService.GetDashboardData")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	vp, err := s.load(ctx, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrProgressNotFound
	}
	if err != nil {
		logger.Log.Error("Failed to load dashboard progress", zap.String("uid", uid), zap.Error(err))
		return nil, err
	}
	p := vp.Progress
	progress.EnsureShape(p)

	sessions, err := s.SessionRepo.ListByUser(ctx, uid, dashboardSessionLimit)
	if err != nil {
		logger.Log.Warn("Failed to load recent sessions", zap.String("uid", uid), zap.Error(err))
		sessions = []model.GameSession{}
	}

	return &DashboardData{
		Progress:        p,
		Summary:         dashboard.Summary(dashboard.Student{UID: uid, Progress: p}),
		Achievements:    achievement.Resolve(p.Achievements),
		AllAchievements: achievement.Catalog(),
		RecentSessions:  sessions,
	}, nil
}

func (s *ProgressService) GetAllAchievements() []model.Achievement {
	return achievement.Catalog()
}

func (s *ProgressService) RecentSessions(ctx context.Context, uid string, limit int) ([]model.GameSession, error) {
	return s.SessionRepo.ListByUser(ctx, uid, limit)
}

// MigrateAll runs both legacy migrations over every progress document and
// returns how many documents changed.
func (s *ProgressService) MigrateAll(ctx context.Context) (int, error) {
	docs, err := s.ProgressRepo.ListRaw(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if _, migrated := s.migrate(ctx, doc); migrated {
			count++
		}
	}
	logger.Log.Info("Progress migration sweep finished",
		zap.Int("documents", len(docs)), zap.Int("migrated", count))
	return count, nil
}
