package controller

import (
	"context"
	"net/http"
	"time"

	"code4kids_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Driver string
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, driver string) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Driver: driver}
}

// HealthCheck godoc
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{"store": c.Driver}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			util.InternalServerError(ctx)
			return
		}
		if err := sqlDB.PingContext(reqCtx); err != nil {
			util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		components["database"] = "ok"
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(reqCtx).Err(); err != nil {
			components["redis"] = "unavailable"
		} else {
			components["redis"] = "ok"
		}
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
