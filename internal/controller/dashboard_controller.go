package controller

import (
	"io"
	"time"

	"code4kids_backend/internal/dashboard"
	"code4kids_backend/internal/service"
	"code4kids_backend/internal/util"
	"code4kids_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const streamHeartbeat = 25 * time.Second

type DashboardController struct {
	TeacherService *service.TeacherService
}

func NewDashboardController(teacherService *service.TeacherService) *DashboardController {
	return &DashboardController{TeacherService: teacherService}
}

// GetTeacherDashboard godoc
// @Summary Class dashboard
// @Description Class statistics, per-world rollups, student summaries and recent activity
// @Tags teacher
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=dashboard.TeacherDashboard}
// @Failure 403 {object} util.Response
// @Router /api/teacher/dashboard [get]
func (c *DashboardController) GetTeacherDashboard(ctx *gin.Context) {
	d, err := c.TeacherService.GetTeacherDashboardData(ctx.Request.Context())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// StreamTeacherDashboard godoc
// @Summary Live class dashboard
// @Description Server-sent events; a "dashboard" event is sent now and after every progress change
// @Tags teacher
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Router /api/teacher/dashboard/stream [get]
func (c *DashboardController) StreamTeacherDashboard(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()
	updates := make(chan *dashboard.TeacherDashboard, 1)
	errc := make(chan error, 1)

	go func() {
		errc <- c.TeacherService.StreamDashboard(reqCtx, func(d *dashboard.TeacherDashboard) {
			// only the newest dashboard matters to a slow client
			select {
			case <-updates:
			default:
			}
			updates <- d
		})
	}()

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	streaming := false
	ctx.Stream(func(w io.Writer) bool {
		select {
		case <-reqCtx.Done():
			return false
		case err := <-errc:
			if err != nil && !streaming {
				util.RespondError(ctx, err)
			} else if err != nil {
				logger.Log.Warn("Teacher dashboard stream ended", zap.Error(err))
			}
			return false
		case d := <-updates:
			streaming = true
			ctx.SSEvent("dashboard", d)
			return true
		case <-heartbeat.C:
			streaming = true
			ctx.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

// GetStudent godoc
// @Summary One student's progress for a teacher
// @Tags teacher
// @Produce json
// @Security ApiKeyAuth
// @Param uid path string true "Student uid"
// @Success 200 {object} util.Response{data=service.StudentDetail}
// @Failure 404 {object} util.Response
// @Router /api/teacher/students/{uid} [get]
func (c *DashboardController) GetStudent(ctx *gin.Context) {
	detail, err := c.TeacherService.GetStudentDetail(ctx.Request.Context(), ctx.Param("uid"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}
