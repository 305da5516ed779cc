package controller

import (
	"step_tracker_backend/internal/service"
	"step_tracker_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	LeaderboardService *service.LeaderboardService
}

func NewLeaderboardController(leaderboardService *service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{LeaderboardService: leaderboardService}
}

// GetLeaderboard godoc
// @Summary 步数排行榜
// @Description 按用户汇总步数，可按日期筛选；view 为 all、top 或 bottom（各 10 名）
// @Tags 排行榜
// @Produce  json
// @Security BearerAuth
// @Param   date query string false "日期 YYYY-MM-DD，为空时统计全部"
// @Param   view query string false "all | top | bottom" default(all)
// @Success 200 {object} util.Response{data=service.Leaderboard}
// @Failure 400 {object} util.Response "参数错误"
// @Router /api/leaderboard [get]
func (c *LeaderboardController) GetLeaderboard(ctx *gin.Context) {
	view, ok := service.ParseLeaderboardView(ctx.Query("view"))
	if !ok {
		util.BadRequest(ctx, "view must be one of all, top, bottom")
		return
	}

	board, err := c.LeaderboardService.Leaderboard(ctx.Request.Context(), service.LeaderboardQuery{
		Date: ctx.Query("date"),
		View: view,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, board)
}
