package controller

import (
	"code4kids_backend/internal/service"
	"code4kids_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 100
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// GetProgress godoc
// @Summary Current user's progress document
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.UserProgress}
// @Failure 401 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	p, err := c.ProgressService.GetUserProgress(ctx.Request.Context(), claims.UID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, p)
}

// InitProgress godoc
// @Summary Create the zero-state progress document
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Success 201 {object} util.Response{data=model.UserProgress}
// @Failure 409 {object} util.Response "Progress already exists"
// @Router /api/progress/init [post]
func (c *ProgressController) InitProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	p, err := c.ProgressService.InitializeUserProgress(ctx.Request.Context(), claims.UID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, p)
}

// RecordAttempt godoc
// @Summary Record one level attempt
// @Description Applies the attempt to the progress document and returns newly unlocked achievements
// @Tags progress
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.AttemptRequest true "Attempt outcome"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response "Invalid level"
// @Failure 409 {object} util.Response "Concurrent update"
// @Router /api/progress/attempts [post]
func (c *ProgressController) RecordAttempt(ctx *gin.Context) {
	var req service.AttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	res, err := c.ProgressService.RecordLevelAttempt(ctx.Request.Context(), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// GetDashboard godoc
// @Summary Student dashboard
// @Description Progress (migrated if needed), summary, achievements and recent sessions
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.DashboardData}
// @Router /api/dashboard [get]
func (c *ProgressController) GetDashboard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	data, err := c.ProgressService.GetDashboardData(ctx.Request.Context(), claims.UID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, data)
}

// GetSessions godoc
// @Summary Current user's recent game sessions
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Max rows (default 20, max 100)"
// @Success 200 {object} util.Response{data=[]model.GameSession}
// @Router /api/sessions [get]
func (c *ProgressController) GetSessions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	limit := util.ParseLimit(ctx.Query("limit"), defaultSessionLimit, maxSessionLimit)
	sessions, err := c.ProgressService.RecentSessions(ctx.Request.Context(), claims.UID, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, sessions)
}
