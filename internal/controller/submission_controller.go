package controller

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"step_tracker_backend/internal/service"
	"step_tracker_backend/internal/util"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// multipart 表单保存在内存中的上限，超出部分写临时文件
const multipartMemory = 8 << 20

type SubmissionController struct {
	SubmissionService *service.SubmissionService
	ExportService     *service.ExportService
	Rules             *service.RuleSet
}

func NewSubmissionController(submissionService *service.SubmissionService, exportService *service.ExportService, rules *service.RuleSet) *SubmissionController {
	return &SubmissionController{
		SubmissionService: submissionService,
		ExportService:     exportService,
		Rules:             rules,
	}
}

// Submit godoc
// @Summary 提交步数
// @Description 上传某天的步数和截图。两次提交之间有冷却时间，冷却中返回 429 及剩余时间
// @Tags 步数
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   date formData string true "日期 YYYY-MM-DD"
// @Param   steps formData int true "步数"
// @Param   screenshot formData file true "步数截图"
// @Success 201 {object} util.Response{data=service.SubmissionResult} "提交成功"
// @Failure 400 {object} util.Response "参数错误或图片无效"
// @Failure 413 {object} util.Response "文件过大"
// @Failure 429 {object} util.Response{data=util.RateLimitedData} "冷却中"
// @Router /api/submissions [post]
func (c *SubmissionController) Submit(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)
	if session == nil {
		util.Unauthorized(ctx)
		return
	}

	// 冷却中不读取请求体
	if err := c.SubmissionService.CheckCooldown(ctx.Request.Context(), session); err != nil {
		util.HandleError(ctx, err)
		return
	}

	maxBytes := c.Rules.Get().MaxUploadBytes
	// 表单其余字段很小，给 multipart 头留出余量
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBytes+1<<20)

	if err := ctx.Request.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			util.HandleError(ctx, fmt.Errorf("%w: request body exceeds %d bytes", util.ErrTooLarge, maxBytes))
			return
		}
		util.BadRequest(ctx, "expected a multipart form with date, steps and screenshot")
		return
	}

	image, err := readScreenshot(ctx, maxBytes)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	// 没有截图时步数不参与校验，由服务返回 MissingEvidence
	var steps int
	if len(image) > 0 {
		steps, err = parseSteps(ctx.PostForm("steps"))
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
	}

	result, err := c.SubmissionService.Submit(ctx.Request.Context(), service.SubmissionInput{
		Session:   session,
		Date:      strings.TrimSpace(ctx.PostForm("date")),
		StepCount: steps,
		Image:     image,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, result)
}

func parseSteps(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: steps is required", util.ErrInvalidStepCount)
	}
	steps, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", util.ErrInvalidStepCount, raw)
	}
	return steps, nil
}

// readScreenshot 读取上传文件，最多读 maxBytes+1 字节以便判断超限
func readScreenshot(ctx *gin.Context, maxBytes int64) ([]byte, error) {
	fh, err := ctx.FormFile("screenshot")
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, util.ErrTooLarge
		}
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidImage, err)
	}
	if fh.Size > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", util.ErrTooLarge, fh.Size, maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(f, maxBytes+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return err != nil && errors.As(err, &maxErr)
}

// List godoc
// @Summary 我的提交记录
// @Tags 步数
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Submission}
// @Router /api/submissions [get]
func (c *SubmissionController) List(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)
	if session == nil {
		util.Unauthorized(ctx)
		return
	}

	subs, err := c.SubmissionService.History(ctx.Request.Context(), session.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, subs)
}

// ExportCSV godoc
// @Summary 导出我的提交记录 CSV
// @Tags 步数
// @Produce  text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /api/submissions/export.csv [get]
func (c *SubmissionController) ExportCSV(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)
	if session == nil {
		util.Unauthorized(ctx)
		return
	}

	var buf bytes.Buffer
	if err := c.ExportService.WriteUserCSV(ctx.Request.Context(), session.UserID, &buf); err != nil {
		util.HandleError(ctx, err)
		return
	}

	sendCSV(ctx, "submissions.csv", buf.Bytes())
}

// ExportZIP godoc
// @Summary 打包下载我的截图
// @Description 只包含仍保留的截图，存储中缺失的文件会跳过
// @Tags 步数
// @Produce  application/zip
// @Security BearerAuth
// @Success 200 {file} file
// @Router /api/submissions/export.zip [get]
func (c *SubmissionController) ExportZIP(ctx *gin.Context) {
	session := util.GetSessionFromContext(ctx)
	if session == nil {
		util.Unauthorized(ctx)
		return
	}

	w := newAttachmentWriter(ctx, "screenshots.zip", util.MimeZIP)
	_, err := c.ExportService.WriteUserZIP(ctx.Request.Context(), session.UserID, w)
	w.finish(err)
}
