package service

import (
	"context"
	"encoding/json"
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
	"code4kids_backend/pkg/tracing"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const teacherDashboardCacheKey = "code4kids:teacher_dashboard"

type TeacherService struct {
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
	SessionRepo  *repository.SessionRepository
	Redis        *redis.Client
	Settings     *Settings
	Clock        func() time.Time
}

func NewTeacherService(
	userRepo *repository.UserRepository,
	progressRepo *repository.ProgressRepository,
	sessionRepo *repository.SessionRepository,
	rdb *redis.Client,
	settings *Settings,
) *TeacherService {
	return &TeacherService{
		UserRepo:     userRepo,
		ProgressRepo: progressRepo,
		SessionRepo:  sessionRepo,
		Redis:        rdb,
		Settings:     settings,
		Clock:        time.Now,
	}
}

type StudentDetail struct {
	User           *model.User                 `json:"user"`
	Summary        dashboard.StudentSummary    `json:"summary"`
	Progress       *model.UserProgress         `json:"progress"`
	Achievements   []model.UnlockedAchievement `json:"achievements"`
	RecentSessions []model.GameSession         `json:"recentSessions"`
}

func requireStaff(ctx context.Context) error {
	claims, err := util.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if claims.Role != model.Teacher && claims.Role != model.Admin {
		return util.ErrPermissionDenied
	}
	return nil
}

func (s *TeacherService) loadStudents(ctx context.Context) ([]dashboard.Student, error) {
	users, err := s.UserRepo.ListByRole(ctx, model.Student)
	if err != nil {
		return nil, err
	}
	all, err := s.ProgressRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	byUID := make(map[string]*model.UserProgress, len(all))
	for _, vp := range all {
		progress.EnsureShape(vp.Progress)
		byUID[vp.UID] = vp.Progress
	}

	students := make([]dashboard.Student, 0, len(users))
	for _, u := range users {
		students = append(students, dashboard.Student{
			UID:      u.UID,
			Username: u.Username,
			Email:    u.Email,
			Progress: byUID[u.UID],
		})
	}
	return students, nil
}

func (s *TeacherService) build(ctx context.Context) (*dashboard.TeacherDashboard, error) {
	cfg := s.Settings.Config()
	students, err := s.loadStudents(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.SessionRepo.Recent(ctx, cfg.ActivityFeedLimit)
	if err != nil {
		return nil, err
	}
	return dashboard.BuildTeacherDashboard(students, sessions, s.Clock().UTC(), cfg.ActiveWindow(), cfg.ActivityFeedLimit), nil
}

// GetTeacherDashboardData returns the class views, served from redis while
// the cached copy is fresh.
func (s *TeacherService) GetTeacherDashboardData(ctx context.Context) (*dashboard.TeacherDashboard, error) {
	if err := requireStaff(ctx); err != nil {
		return nil, err
	}
	ctx, span := tracing.Tracer().Start(ctx, "TeacherService.GetTeacherDashboardData")
	defer span.End()

	if d, ok := s.cached(ctx); ok {
		return d, nil
	}

	d, err := s.build(ctx)
	if err != nil {
		logger.Log.Error("Failed to build teacher dashboard", zap.Error(err))
		return nil, err
	}
	s.store(ctx, d)
	return d, nil
}

func (s *TeacherService) cached(ctx context.Context) (*dashboard.TeacherDashboard, bool) {
	if s.Redis == nil || s.Settings.Config().DashboardCacheTTL() <= 0 {
		return nil, false
	}
	raw, err := s.Redis.Get(ctx, teacherDashboardCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Teacher dashboard cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var d dashboard.TeacherDashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, false
	}
	return &d, true
}

func (s *TeacherService) store(ctx context.Context, d *dashboard.TeacherDashboard) {
	ttl := s.Settings.Config().DashboardCacheTTL()
	if s.Redis == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, teacherDashboardCacheKey, raw, ttl).Err(); err != nil {
		logger.Log.Warn("Teacher dashboard cache write failed", zap.Error(err))
	}
}

// InvalidateDashboard drops the cached class dashboard after a progress write.
func (s *TeacherService) InvalidateDashboard(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, teacherDashboardCacheKey).Err(); err != nil {
		logger.Log.Warn("Teacher dashboard cache invalidation failed", zap.Error(err))
	}
}

// StreamDashboard calls fn with a fresh dashboard now and after every progress
// change, until ctx is done.
func (s *TeacherService) StreamDashboard(ctx context.Context, fn func(*dashboard.TeacherDashboard)) error {
	if err := requireStaff(ctx); err != nil {
		return err
	}
	updates := make(chan struct{}, 1)
	stop, err := s.ProgressRepo.Watch(ctx, func([]*docstore.Document) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			d, err := s.build(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Log.Warn("Failed to rebuild streamed dashboard", zap.Error(err))
				continue
			}
			fn(d)
		}
	}
}

func (s *TeacherService) GetStudentDetail(ctx context.Context, uid string) (*StudentDetail, error) {
	if err := requireStaff(ctx); err != nil {
		return nil, err
	}
	user, err := s.UserRepo.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	var p *model.UserProgress
	vp, err := s.ProgressRepo.Get(ctx, uid)
	switch {
	case err == nil:
		p = vp.Progress
		progress.EnsureShape(p)
	case errors.Is(err, docstore.ErrNotFound):
	default:
		return nil, err
	}

	sessions, err := s.SessionRepo.ListByUser(ctx, uid, s.Settings.Config().ActivityFeedLimit)
	if err != nil {
		return nil, err
	}

	detail := &StudentDetail{
		User:           user.Public(),
		Summary:        dashboard.Summary(dashboard.Student{UID: uid, Username: user.Username, Progress: p}),
		Progress:       p,
		Achievements:   []model.UnlockedAchievement{},
		RecentSessions: sessions,
	}
	if p != nil {
		detail.Achievements = achievement.Resolve(p.Achievements)
	}
	return detail, nil
}
