package controller

import (
	"fmt"
	"step_tracker_backend/internal/util"
	"step_tracker_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// attachmentWriter 第一次写入时才发送下载响应头，之前出错仍可返回 JSON 错误
type attachmentWriter struct {
	ctx         *gin.Context
	filename    string
	contentType string
	started     bool
}

func newAttachmentWriter(ctx *gin.Context, filename, contentType string) *attachmentWriter {
	return &attachmentWriter{ctx: ctx, filename: filename, contentType: contentType}
}

func (w *attachmentWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true
		setAttachmentHeaders(w.ctx, w.filename, w.contentType)
		w.ctx.Status(200)
	}
	return w.ctx.Writer.Write(p)
}

// finish 处理流式导出的错误，已开始写入时只能记录日志
func (w *attachmentWriter) finish(err error) {
	if err == nil {
		return
	}
	if !w.started {
		util.HandleError(w.ctx, err)
		return
	}
	logger.Log.Error("Export aborted mid-stream", zap.String("file", w.filename), zap.Error(err))
	w.ctx.Abort()
}

func setAttachmentHeaders(ctx *gin.Context, filename, contentType string) {
	ctx.Header("Content-Type", contentType)
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	ctx.Header("Cache-Control", "no-store")
}

func sendCSV(ctx *gin.Context, filename string, data []byte) {
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	ctx.Header("Cache-Control", "no-store")
	ctx.Data(200, util.MimeCSV+"; charset=utf-8", data)
}
