package service

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/util"
	"step_tracker_backend/pkg/logger"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var (
	userCSVHeader  = []string{"form_id", "form_date", "form_stepcount", "form_filepath", "form_verified", "form_created_at"}
	queueCSVHeader = []string{"form_id", "user_name", "form_date", "form_stepcount", "form_filepath"}
)

type ExportService struct {
	Submissions  *SubmissionService
	Verification *VerificationService
	Storage      StorageProvider
}

func NewExportService(submissions *SubmissionService, verification *VerificationService, storage StorageProvider) *ExportService {
	return &ExportService{
		Submissions:  submissions,
		Verification: verification,
		Storage:      storage,
	}
}

// WriteUserCSV 导出用户自己的提交
func (s *ExportService) WriteUserCSV(ctx context.Context, userID uint, w io.Writer) error {
	subs, err := s.Submissions.History(ctx, userID)
	if err != nil {
		return err
	}
	return WriteSubmissionsCSV(w, subs)
}

func WriteSubmissionsCSV(w io.Writer, subs []model.Submission) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(userCSVHeader); err != nil {
		return err
	}
	for _, sub := range subs {
		record := []string{
			strconv.FormatUint(uint64(sub.ID), 10),
			sub.Date,
			strconv.Itoa(sub.StepCount),
			sub.FilePath,
			strconv.FormatBool(sub.Verified),
			sub.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteQueueCSV 导出待审核列表
func (s *ExportService) WriteQueueCSV(ctx context.Context, actorID uint, w io.Writer) error {
	rows, err := s.Verification.Queue(ctx, actorID)
	if err != nil {
		return err
	}
	return WriteQueueCSV(w, rows)
}

func WriteQueueCSV(w io.Writer, rows []model.SubmissionWithUser) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(queueCSVHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatUint(uint64(row.ID), 10),
			row.UserName,
			row.Date,
			strconv.Itoa(row.StepCount),
			row.FilePath,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUserZIP 打包用户仍保留的截图，缺失文件跳过，返回写入的文件数
func (s *ExportService) WriteUserZIP(ctx context.Context, userID uint, w io.Writer) (int, error) {
	subs, err := s.Submissions.History(ctx, userID)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(subs))
	for _, sub := range subs {
		if sub.HasEvidence() {
			names = append(names, sub.FilePath)
		}
	}
	return s.writeZIP(ctx, w, names)
}

// WriteEvidenceZIP 管理员打包存储中的全部截图
func (s *ExportService) WriteEvidenceZIP(ctx context.Context, actorID uint, w io.Writer) (int, error) {
	if _, err := s.Verification.requireAdmin(ctx, actorID); err != nil {
		return 0, err
	}

	names, err := s.Storage.List(ctx)
	if err != nil {
		return 0, err
	}
	return s.writeZIP(ctx, w, names)
}

func (s *ExportService) writeZIP(ctx context.Context, w io.Writer, names []string) (int, error) {
	zw := zip.NewWriter(w)
	written := 0

	for _, name := range names {
		if err := s.addToZIP(ctx, zw, name); err != nil {
			if errors.Is(err, util.ErrNotFound) {
				logger.Log.Warn("Evidence missing from storage, skipped", zap.String("file", name))
				continue
			}
			zw.Close()
			return written, err
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return written, err
	}
	return written, nil
}

func (s *ExportService) addToZIP(ctx context.Context, zw *zip.Writer, name string) error {
	src, err := s.Storage.Open(ctx, name)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}
