package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code4kids_backend/internal/config"
	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/model"
	"code4kids_backend/internal/repository"
	"code4kids_backend/internal/util"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("network unreachable")

// testClock ticks one second per reading so every write gets a distinct time.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// faultyStore injects failures per collection and operation.
type faultyStore struct {
	docstore.Store
	failGet    map[string]error
	failSet    map[string]error
	failUpdate map[string]error
	updates    int64
}

func (f *faultyStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := f.failGet[collection]; err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, collection, id)
}

func (f *faultyStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, opts ...docstore.WriteOption) error {
	if err := f.failSet[collection]; err != nil {
		return err
	}
	return f.Store.Set(ctx, collection, id, data, opts...)
}

func (f *faultyStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, opts ...docstore.WriteOption) error {
	atomic.AddInt64(&f.updates, 1)
	if err := f.failUpdate[collection]; err != nil {
		return err
	}
	return f.Store.Update(ctx, collection, id, fields, opts...)
}

type testEnv struct {
	mem      *docstore.MemoryStore
	faulty   *faultyStore
	clock    *testClock
	settings *Settings
	progress *ProgressService
	teacher  *TeacherService
	auth     *AuthService
	users    *UserService
}

func defaultProgressConfig() config.ProgressConfig {
	return config.ProgressConfig{
		EvaluationMode:     "projected",
		StreakPolicy:       "success",
		MaxConflictRetries: 3,
		ActiveWindowHours:  48,
		ActivityFeedLimit:  20,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newTestClock()
	mem := docstore.NewMemoryStore()
	mem.Clock = clock.Now
	faulty := &faultyStore{
		Store:      mem,
		failGet:    map[string]error{},
		failSet:    map[string]error{},
		failUpdate: map[string]error{},
	}

	settings, err := NewSettings(defaultProgressConfig())
	require.NoError(t, err)

	progressRepo := repository.NewProgressRepository(faulty)
	sessionRepo := repository.NewSessionRepository(faulty)
	userRepo := repository.NewUserRepository(faulty)
	userRepo.Clock = clock.Now

	progressSvc := NewProgressService(progressRepo, sessionRepo, settings)
	progressSvc.Clock = clock.Now
	teacherSvc := NewTeacherService(userRepo, progressRepo, sessionRepo, nil, settings)
	teacherSvc.Clock = clock.Now

	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}}
	authSvc := NewAuthService(userRepo, progressSvc, cfg)
	authSvc.Clock = clock.Now

	return &testEnv{
		mem:      mem,
		faulty:   faulty,
		clock:    clock,
		settings: settings,
		progress: progressSvc,
		teacher:  teacherSvc,
		auth:     authSvc,
		users:    NewUserService(userRepo),
	}
}

func asUser(uid string, role model.UserRole) context.Context {
	return util.WithUser(context.Background(), &util.Claims{UID: uid, Username: uid, Role: role})
}

func win(level, stars int) AttemptRequest {
	return AttemptRequest{LevelID: level, Success: true, Stars: stars, TimeSpent: 20000}
}

func awardIDs(r *AttemptResult) []string {
	out := make([]string, len(r.NewAchievements))
	for i, a := range r.NewAchievements {
		out[i] = a.ID
	}
	return out
}
