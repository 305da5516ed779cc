package controller

import (
	"step_tracker_backend/internal/service"
	"step_tracker_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// GetProgress godoc
// @Summary 我的进度
// @Description 总步数、距离、热量、连续天数、等级与徽章
// @Tags 步数
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.Progress}
// @Failure 401 {object} util.Response "未授权"
// @Router /api/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)
	if session == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressService.GetProgress(ctx.Request.Context(), session.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}
