package app

import (
	"code4kids_backend/docs"
	"code4kids_backend/internal/config"
	"code4kids_backend/internal/middleware"
	"code4kids_backend/internal/model"
	"code4kids_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/achievements/catalog", c.achievement.GetCatalog)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/me", c.user.GetMe)
	rg.PUT("/me/profile", c.user.UpdateProfile)

	rg.GET("/progress", c.progress.GetProgress)
	rg.POST("/progress/init", c.progress.InitProgress)
	rg.POST("/progress/attempts", c.progress.RecordAttempt)
	rg.GET("/dashboard", c.progress.GetDashboard)
	rg.GET("/sessions", c.progress.GetSessions)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/dashboard", c.dashboard.GetTeacherDashboard)
		teacher.GET("/dashboard/stream", c.dashboard.StreamTeacherDashboard)
		teacher.GET("/dashboard/ws", c.dashboard.StreamTeacherDashboardWS)
		teacher.GET("/students/:uid", c.dashboard.GetStudent)
	}
}
