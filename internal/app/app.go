package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code4kids_backend/internal/config"
	"code4kids_backend/internal/controller"
	"code4kids_backend/internal/docstore"
	"code4kids_backend/internal/repository"
	"code4kids_backend/internal/service"
	"code4kids_backend/pkg/configwatcher"
	"code4kids_backend/pkg/database"
	"code4kids_backend/pkg/logger"
	"code4kids_backend/pkg/monitoring"
	"code4kids_backend/pkg/security"
	"code4kids_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configDir = "configs"

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	Store    docstore.Store
	services *services

	shutdownTracer func(context.Context) error
}

type repositories struct {
	user     *repository.UserRepository
	progress *repository.ProgressRepository
	session  *repository.SessionRepository
}

type services struct {
	settings *service.Settings
	progress *service.ProgressService
	auth     *service.AuthService
	user     *service.UserService
	teacher  *service.TeacherService
}

type controllers struct {
	auth        *controller.AuthController
	user        *controller.UserController
	progress    *controller.ProgressController
	achievement *controller.AchievementController
	dashboard   *controller.DashboardController
	health      *controller.HealthController
}

func (a *App) initRepositories(store docstore.Store) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(store),
		progress: repository.NewProgressRepository(store),
		session:  repository.NewSessionRepository(store),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	settings, err := service.NewSettings(cfg.Progress)
	if err != nil {
		return nil, err
	}

	s := &services{settings: settings}
	s.progress = service.NewProgressService(repos.progress, repos.session, settings)
	s.auth = service.NewAuthService(repos.user, s.progress, cfg)
	s.user = service.NewUserService(repos.user)
	s.teacher = service.NewTeacherService(repos.user, repos.progress, repos.session, rdb, settings)
	s.progress.DashboardCache = s.teacher
	return s, nil
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		user:        controller.NewUserController(s.user),
		progress:    controller.NewProgressController(s.progress),
		achievement: controller.NewAchievementController(s.progress),
		dashboard:   controller.NewDashboardController(s.teacher),
		health:      controller.NewHealthController(a.DB, a.Redis, a.Config.Database.Driver),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// openStore connects the configured backend. Redis is optional; when present
// it fans out change notifications between instances.
func openStore(cfg *config.Config) (docstore.Store, *gorm.DB, *redis.Client, error) {
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		client, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = client
	}

	if cfg.Database.Driver == "memory" {
		logger.Log.Warn("Using in-memory document store, data is lost on restart")
		return docstore.NewMemoryStore(), nil, rdb, nil
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, nil, nil, err
	}

	var bus docstore.Bus = docstore.NewLocalBus()
	if rdb != nil {
		bus = docstore.NewRedisBus(rdb)
	}
	store, err := docstore.NewGormStore(db, bus)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, db, rdb, nil
}

// New assembles the application around an already opened store.
func New(cfg *config.Config, store docstore.Store, db *gorm.DB, rdb *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Store:  store,
	}

	repos := app.initRepositories(store)
	svcs, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		return nil, err
	}
	app.services = svcs
	ctrls := app.initControllers(svcs)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	return app, nil
}

func NewApp(cfg *config.Config) *App {
	store, db, rdb, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize document store", zap.Error(err))
	}

	app, err := New(cfg, store, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(cfg.Tracing, cfg.Server.Mode)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.shutdownTracer = shutdown
	}

	if cfg.ForceMigrate {
		if _, err := app.MigrateProgress(context.Background()); err != nil {
			logger.Log.Fatal("Progress migration failed", zap.Error(err))
		}
	}

	return app
}

// MigrateProgress upgrades every stored progress document in place.
func (a *App) MigrateProgress(ctx context.Context) (int, error) {
	return a.services.progress.MigrateAll(ctx)
}

// ApplyConfig hot-applies the tunable sections of a reloaded configuration.
func (a *App) ApplyConfig(cfg *config.Config) {
	if err := a.services.settings.Apply(cfg.Progress); err != nil {
		logger.Log.Warn("Ignoring invalid progress settings", zap.Error(err))
		return
	}
	logger.Log.Info("Progress settings reloaded",
		zap.String("evaluation_mode", cfg.Progress.EvaluationMode),
		zap.String("streak_policy", cfg.Progress.StreakPolicy))
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := configwatcher.Watch(watchCtx, configDir, a.ApplyConfig); err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
