package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/repository"
	"step_tracker_backend/internal/util"
	"step_tracker_backend/pkg/logger"
	"step_tracker_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// VerificationStore 审核流程依赖的存储操作
type VerificationStore interface {
	FindByID(ctx context.Context, id uint) (*model.Submission, error)
	MarkVerified(ctx context.Context, id uint, clearFilePath bool) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	Queue(ctx context.Context, threshold int) ([]model.SubmissionWithUser, error)
}

// UserDirectory 管理员身份以库中数据为准
type UserDirectory interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// ConfirmResult 确认执行后的结果
type ConfirmResult struct {
	Kind               model.PendingActionKind `json:"kind"`
	SubmissionID       uint                    `json:"submissionId,omitempty"`
	DeletedSubmissions int64                   `json:"deletedSubmissions"`
	DeletedFiles       int                     `json:"deletedFiles"`
}

type VerificationService struct {
	Repo     VerificationStore
	Users    UserDirectory
	Storage  StorageProvider
	Sessions repository.SessionStore
	Rules    *RuleSet
	Now      func() time.Time
}

func NewVerificationService(repo VerificationStore, users UserDirectory, storage StorageProvider, sessions repository.SessionStore, rules *RuleSet) *VerificationService {
	return &VerificationService{
		Repo:     repo,
		Users:    users,
		Storage:  storage,
		Sessions: sessions,
		Rules:    rules,
		Now:      time.Now,
	}
}

// requireAdmin 每次操作都重新读取管理员标志
func (s *VerificationService) requireAdmin(ctx context.Context, actorID uint) (*model.User, error) {
	user, err := s.Users.FindByID(ctx, actorID)
	if errors.Is(err, util.ErrNotFound) {
		return nil, util.ErrPermissionDenied
	}
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, util.ErrPermissionDenied
	}
	return user, nil
}

// Queue 待审核列表：未审核且步数超过阈值
func (s *VerificationService) Queue(ctx context.Context, actorID uint) ([]model.SubmissionWithUser, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	rules := s.Rules.Get()
	rows, err := s.Repo.Queue(ctx, rules.ReviewThreshold)
	if err != nil {
		return nil, err
	}
	return repository.QuarantineInvalidWithUsers(rows), nil
}

// Verify 未审核 → 已审核，只修改审核标志（可配置同时删除截图）
func (s *VerificationService) Verify(ctx context.Context, actorID, submissionID uint) (*model.Submission, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	sub, err := s.Repo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Verified {
		return nil, fmt.Errorf("%w: submission %d is already verified", util.ErrInvalidTransition, submissionID)
	}

	deleteEvidence := s.Rules.Get().DeleteEvidenceOnVerify && sub.HasEvidence()
	changed, err := s.Repo.MarkVerified(ctx, submissionID, deleteEvidence)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: submission %d is already verified", util.ErrInvalidTransition, submissionID)
	}

	if deleteEvidence {
		if err := s.Storage.Delete(ctx, sub.FilePath); err != nil {
			logger.Log.Error("Failed to delete evidence after verification",
				zap.Uint("form_id", sub.ID),
				zap.String("file", sub.FilePath),
				zap.Error(err),
			)
		}
		sub.FilePath = ""
	}
	sub.Verified = true

	monitoring.VerificationCounter.WithLabelValues("verify").Inc()
	logger.Log.Info("Submission verified", zap.Uint("form_id", sub.ID), zap.Uint("admin_id", actorID))
	return sub, nil
}

// RequestDelete 删除的第一步，只生成待确认令牌
func (s *VerificationService) RequestDelete(ctx context.Context, actorID, submissionID uint) (*model.PendingAction, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	sub, err := s.Repo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Verified {
		return nil, fmt.Errorf("%w: submission %d is already verified", util.ErrInvalidTransition, submissionID)
	}

	action, err := s.newPending(ctx, model.PendingDelete, actorID, submissionID)
	if err != nil {
		return nil, err
	}
	monitoring.VerificationCounter.WithLabelValues("request_delete").Inc()
	return action, nil
}

// RequestReset 清空挑战的第一步
func (s *VerificationService) RequestReset(ctx context.Context, actorID uint) (*model.PendingAction, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	action, err := s.newPending(ctx, model.PendingReset, actorID, 0)
	if err != nil {
		return nil, err
	}
	monitoring.VerificationCounter.WithLabelValues("request_reset").Inc()
	return action, nil
}

func (s *VerificationService) newPending(ctx context.Context, kind model.PendingActionKind, actorID, submissionID uint) (*model.PendingAction, error) {
	now := s.Now()
	action := &model.PendingAction{
		Token:        model.GenerateUUID(),
		Kind:         kind,
		SubmissionID: submissionID,
		ActorID:      actorID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.Rules.Get().ConfirmationTTL),
	}
	if err := s.Sessions.SavePending(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// loadPending 令牌必须存在、未过期且属于当前管理员
func (s *VerificationService) loadPending(ctx context.Context, actorID uint, token string) (*model.PendingAction, error) {
	action, err := s.Sessions.GetPending(ctx, token)
	if err != nil {
		return nil, err
	}
	if action == nil || action.ActorID != actorID || action.Expired(s.Now()) {
		return nil, util.ErrConfirmationNotFound
	}
	return action, nil
}

// Confirm 第二步：校验令牌后执行并消费令牌
func (s *VerificationService) Confirm(ctx context.Context, actorID uint, token, password string) (*ConfirmResult, error) {
	admin, err := s.requireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}

	action, err := s.loadPending(ctx, actorID, token)
	if err != nil {
		return nil, err
	}

	if action.Kind == model.PendingReset && s.Rules.Get().ResetRequiresPassword {
		if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
			return nil, util.ErrInvalidCredentials
		}
	}

	consumed, err := s.Sessions.DeletePending(ctx, token)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, util.ErrConfirmationNotFound
	}

	switch action.Kind {
	case model.PendingDelete:
		return s.deleteSubmission(ctx, actorID, action.SubmissionID)
	case model.PendingReset:
		return s.reset(ctx, actorID)
	default:
		return nil, fmt.Errorf("unknown pending action kind %q", action.Kind)
	}
}

// Cancel 放弃待确认操作
func (s *VerificationService) Cancel(ctx context.Context, actorID uint, token string) error {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if _, err := s.loadPending(ctx, actorID, token); err != nil {
		return err
	}
	if _, err := s.Sessions.DeletePending(ctx, token); err != nil {
		return err
	}
	monitoring.VerificationCounter.WithLabelValues("cancel").Inc()
	return nil
}

func (s *VerificationService) deleteSubmission(ctx context.Context, actorID, submissionID uint) (*ConfirmResult, error) {
	sub, err := s.Repo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Verified {
		return nil, fmt.Errorf("%w: submission %d is already verified", util.ErrInvalidTransition, submissionID)
	}

	deleted, err := s.Repo.Delete(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, fmt.Errorf("%w: submission %d", util.ErrNotFound, submissionID)
	}

	result := &ConfirmResult{Kind: model.PendingDelete, SubmissionID: submissionID, DeletedSubmissions: 1}
	if sub.HasEvidence() {
		if err := s.Storage.Delete(ctx, sub.FilePath); err != nil {
			logger.Log.Error("Failed to delete evidence of removed submission",
				zap.Uint("form_id", sub.ID),
				zap.String("file", sub.FilePath),
				zap.Error(err),
			)
		} else {
			result.DeletedFiles = 1
		}
	}

	monitoring.VerificationCounter.WithLabelValues("delete").Inc()
	logger.Log.Info("Submission deleted", zap.Uint("form_id", submissionID), zap.Uint("admin_id", actorID))
	return result, nil
}

// ResetAll 运维命令直接清空活动，不经过二次确认
func (s *VerificationService) ResetAll(ctx context.Context) (*ConfirmResult, error) {
	return s.reset(ctx, 0)
}

// reset 删除全部记录和全部截图
func (s *VerificationService) reset(ctx context.Context, actorID uint) (*ConfirmResult, error) {
	n, err := s.Repo.DeleteAll(ctx)
	if err != nil {
		return nil, err
	}
	result := &ConfirmResult{Kind: model.PendingReset, DeletedSubmissions: n}

	files, err := s.Storage.List(ctx)
	if err != nil {
		logger.Log.Error("Failed to list evidence during reset", zap.Error(err))
	}
	for _, f := range files {
		if err := s.Storage.Delete(ctx, f); err != nil {
			logger.Log.Error("Failed to delete evidence during reset", zap.String("file", f), zap.Error(err))
			continue
		}
		result.DeletedFiles++
	}

	monitoring.VerificationCounter.WithLabelValues("reset").Inc()
	logger.Log.Warn("Challenge reset",
		zap.Uint("admin_id", actorID),
		zap.Int64("submissions", n),
		zap.Int("files", result.DeletedFiles),
	)
	return result, nil
}

// OpenEvidence 管理员查看截图
func (s *VerificationService) OpenEvidence(ctx context.Context, actorID, submissionID uint) (io.ReadCloser, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	sub, err := s.Repo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !sub.HasEvidence() {
		return nil, fmt.Errorf("%w: submission %d has no screenshot", util.ErrNotFound, submissionID)
	}
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrNotFound, err)
	}
	return s.Storage.Open(ctx, sub.FilePath)
}
