package controller

import (
	"code4kids_backend/internal/service"
	"code4kids_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AchievementController struct {
	ProgressService *service.ProgressService
}

func NewAchievementController(progressService *service.ProgressService) *AchievementController {
	return &AchievementController{ProgressService: progressService}
}

// GetCatalog godoc
// @Summary Full achievement catalogue
// @Description Every achievement, earned or not, in display order
// @Tags achievements
// @Produce json
// @Success 200 {object} util.Response{data=[]model.Achievement}
// @Router /api/achievements/catalog [get]
func (c *AchievementController) GetCatalog(ctx *gin.Context) {
	util.Success(ctx, c.ProgressService.GetAllAchievements())
}
