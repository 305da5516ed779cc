package controller

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"step_tracker_backend/internal/service"
	"step_tracker_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	VerificationService *service.VerificationService
	ExportService       *service.ExportService
}

func NewAdminController(verificationService *service.VerificationService, exportService *service.ExportService) *AdminController {
	return &AdminController{
		VerificationService: verificationService,
		ExportService:       exportService,
	}
}

// ConfirmRequest 确认清空活动时需要再次输入密码
// swagger:model ConfirmRequest
type ConfirmRequest struct {
	Password string `json:"password"`
}

func submissionIDParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "Invalid submission ID")
		return 0, false
	}
	return uint(id), true
}

// GetQueue godoc
// @Summary 待审核队列
// @Description 未审核且步数超过阈值的提交
// @Tags 管理
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.SubmissionWithUser}
// @Failure 403 {object} util.Response "无权限"
// @Router /api/admin/queue [get]
func (c *AdminController) GetQueue(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)

	rows, err := c.VerificationService.Queue(ctx.Request.Context(), session.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, rows)
}

// ExportQueueCSV godoc
// @Summary 导出待审核队列 CSV
// @Tags 管理
// @Produce  text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /api/admin/queue/export.csv [get]
func (c *AdminController) ExportQueueCSV(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)

	var buf bytes.Buffer
	if err := c.ExportService.WriteQueueCSV(ctx.Request.Context(), session.UserID, &buf); err != nil {
		util.HandleError(ctx, err)
		return
	}

	sendCSV(ctx, "verification_queue.csv", buf.Bytes())
}

// ExportEvidenceZIP godoc
// @Summary 打包下载全部截图
// @Tags 管理
// @Produce  application/zip
// @Security BearerAuth
// @Success 200 {file} file
// @Router /api/admin/evidence.zip [get]
func (c *AdminController) ExportEvidenceZIP(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)

	w := newAttachmentWriter(ctx, "evidence.zip", util.MimeZIP)
	_, err := c.ExportService.WriteEvidenceZIP(ctx.Request.Context(), session.UserID, w)
	w.finish(err)
}

// GetImage godoc
// @Summary 查看提交截图
// @Tags 管理
// @Produce  image/jpeg
// @Security BearerAuth
// @Param   id path int true "提交 ID"
// @Success 200 {file} file
// @Failure 404 {object} util.Response "提交或截图不存在"
// @Router /api/admin/submissions/{id}/image [get]
func (c *AdminController) GetImage(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)
	id, ok := submissionIDParam(ctx)
	if !ok {
		return
	}

	rc, err := c.VerificationService.OpenEvidence(ctx.Request.Context(), session.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	defer rc.Close()

	ctx.Header("Cache-Control", "private, no-store")
	ctx.Header("X-Content-Type-Options", "nosniff")
	ctx.Header("Content-Type", util.MimeJPEG)
	ctx.Status(http.StatusOK)
	if _, err := io.Copy(ctx.Writer, rc); err != nil {
		util.LogInternalError(ctx, err)
	}
}

// Verify godoc
// @Summary 审核通过
// @Description 只能从未审核变为已审核
// @Tags 管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "提交 ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 404 {object} util.Response "提交不存在"
// @Failure 409 {object} util.Response "已审核"
// @Router /api/admin/submissions/{id}/verify [post]
func (c *AdminController) Verify(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)
	id, ok := submissionIDParam(ctx)
	if !ok {
		return
	}

	sub, err := c.VerificationService.Verify(ctx.Request.Context(), session.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, sub)
}

// RequestDelete godoc
// @Summary 申请删除提交
// @Description 返回确认令牌，需在有效期内调用确认接口才会删除
// @Tags 管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "提交 ID"
// @Success 202 {object} util.Response{data=model.PendingAction}
// @Failure 409 {object} util.Response "已审核的提交不能删除"
// @Router /api/admin/submissions/{id}/delete [post]
func (c *AdminController) RequestDelete(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)
	id, ok := submissionIDParam(ctx)
	if !ok {
		return
	}

	action, err := c.VerificationService.RequestDelete(ctx.Request.Context(), session.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusAccepted, util.Response{
		Code:    http.StatusAccepted,
		Message: "confirmation required",
		Data:    action,
	})
}

// RequestReset godoc
// @Summary 申请清空活动
// @Description 删除全部提交和截图，需二次确认
// @Tags 管理
// @Produce  json
// @Security BearerAuth
// @Success 202 {object} util.Response{data=model.PendingAction}
// @Router /api/admin/reset [post]
func (c *AdminController) RequestReset(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)

	action, err := c.VerificationService.RequestReset(ctx.Request.Context(), session.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusAccepted, util.Response{
		Code:    http.StatusAccepted,
		Message: "confirmation required",
		Data:    action,
	})
}

// Confirm godoc
// @Summary 确认待执行操作
// @Description 清空活动时需提供当前管理员密码
// @Tags 管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   token path string true "确认令牌"
// @Param   body body ConfirmRequest false "密码"
// @Success 200 {object} util.Response{data=service.ConfirmResult}
// @Failure 401 {object} util.Response "密码错误"
// @Failure 404 {object} util.Response "令牌不存在或已过期"
// @Router /api/admin/confirmations/{token} [post]
func (c *AdminController) Confirm(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)

	var req ConfirmRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	result, err := c.VerificationService.Confirm(ctx.Request.Context(), session.UserID, ctx.Param("token"), req.Password)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// Cancel godoc
// @Summary 取消待执行操作
// @Tags 管理
// @Produce  json
// @Security BearerAuth
// @Param   token path string true "确认令牌"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "令牌不存在或已过期"
// @Router /api/admin/confirmations/{token} [delete]
func (c *AdminController) Cancel(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)

	if err := c.VerificationService.Cancel(ctx.Request.Context(), session.UserID, ctx.Param("token")); err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"cancelled": true})
}
