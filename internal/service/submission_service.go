package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/repository"
	"step_tracker_backend/internal/util"
	"step_tracker_backend/pkg/logger"
	"step_tracker_backend/pkg/monitoring"
	"step_tracker_backend/pkg/tracing"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// SubmissionStore 提交流水线依赖的存储操作
type SubmissionStore interface {
	Create(ctx context.Context, sub *model.Submission) error
	FindByUser(ctx context.Context, userID uint) ([]model.Submission, error)
	LatestCreatedAt(ctx context.Context, userID uint) (*time.Time, error)
	ClearFilePath(ctx context.Context, id uint) error
}

// SubmissionInput 一次步数提交
type SubmissionInput struct {
	Session   *util.Session
	Date      string
	StepCount int
	Image     []byte
}

// SubmissionResult 提交成功后的结果
type SubmissionResult struct {
	Submission       *model.Submission `json:"submission"`
	EvidenceRetained bool              `json:"evidenceRetained"`
}

type SubmissionService struct {
	Repo     SubmissionStore
	Storage  StorageProvider
	Sessions repository.SessionStore
	Rules    *RuleSet
	Now      func() time.Time
}

func NewSubmissionService(repo SubmissionStore, storage StorageProvider, sessions repository.SessionStore, rules *RuleSet) *SubmissionService {
	return &SubmissionService{
		Repo:     repo,
		Storage:  storage,
		Sessions: sessions,
		Rules:    rules,
		Now:      time.Now,
	}
}

// Submit 提交流水线：冷却 → 截图必填 → 校验 → 图片规范化 → 写文件 → 写记录 → 低步数丢弃截图
func (s *SubmissionService) Submit(ctx context.Context, in SubmissionInput) (*SubmissionResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "submission.intake")
	defer span.End()
	span.SetAttributes(
		attribute.Int("user.id", int(in.Session.UserID)),
		attribute.Int("submission.steps", in.StepCount),
	)

	result, err := s.submit(ctx, in)
	monitoring.SubmissionCounter.WithLabelValues(submissionOutcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *SubmissionService) submit(ctx context.Context, in SubmissionInput) (*SubmissionResult, error) {
	rules := s.Rules.Get()
	now := s.Now()
	session := in.Session

	if err := s.checkCooldown(ctx, session, now, rules.Cooldown); err != nil {
		return nil, err
	}

	// 没有截图时不看步数
	if len(in.Image) == 0 {
		return nil, util.ErrMissingEvidence
	}
	if in.StepCount <= 0 || in.StepCount > rules.MaxStepCount {
		return nil, fmt.Errorf("%w: %d is not between 1 and %d", util.ErrInvalidStepCount, in.StepCount, rules.MaxStepCount)
	}
	if _, err := model.ParseDate(in.Date, rules.Location()); err != nil {
		return nil, fmt.Errorf("%w: %q is not YYYY-MM-DD", util.ErrInvalidDate, in.Date)
	}

	img, err := NewImageService(rules).Normalize(in.Image)
	if err != nil {
		return nil, err
	}

	filename := evidenceFilename(session.UserName, in.Date, now.In(rules.Location())) + img.Extension

	if _, err := s.Storage.Upload(ctx, filename, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType); err != nil {
		return nil, fmt.Errorf("%w: upload %s: %v", util.ErrStoreWriteFailed, filename, err)
	}

	sub := &model.Submission{
		UserID:    session.UserID,
		Date:      in.Date,
		StepCount: in.StepCount,
		FilePath:  filename,
		Verified:  false,
		CreatedAt: now,
	}
	if err := s.Repo.Create(ctx, sub); err != nil {
		// 记录写入失败时删除刚上传的文件
		if derr := s.Storage.Delete(ctx, filename); derr != nil {
			logger.Log.Error("Failed to remove orphaned evidence after insert failure",
				zap.String("file", filename),
				zap.Uint("user_id", session.UserID),
				zap.Error(derr),
			)
		}
		return nil, fmt.Errorf("%w: insert: %v", util.ErrStoreWriteFailed, err)
	}

	retained := true
	if in.StepCount < rules.EvidenceExemptBelow {
		retained = false
		s.discardEvidence(ctx, sub)
	}

	if err := s.Sessions.SetLastSubmission(ctx, session.ID, now, rules.Cooldown); err != nil {
		logger.Log.Warn("Failed to cache last submission time",
			zap.String("session", session.ID),
			zap.Error(err),
		)
	}

	logger.Log.Info("Submission accepted",
		zap.Uint("form_id", sub.ID),
		zap.Uint("user_id", session.UserID),
		zap.String("date", sub.Date),
		zap.Int("steps", sub.StepCount),
		zap.Bool("evidence_retained", retained),
	)

	return &SubmissionResult{Submission: sub, EvidenceRetained: retained}, nil
}

// CheckCooldown 在读取请求体之前调用，冷却中返回 *util.RateLimitedError
func (s *SubmissionService) CheckCooldown(ctx context.Context, session *util.Session) error {
	err := s.checkCooldown(ctx, session, s.Now(), s.Rules.Get().Cooldown)
	if _, ok := util.AsRateLimited(err); ok {
		monitoring.SubmissionCounter.WithLabelValues(monitoring.SubmissionRateLimited).Inc()
	}
	return err
}

func (s *SubmissionService) checkCooldown(ctx context.Context, session *util.Session, now time.Time, cooldown time.Duration) error {
	last, err := s.lastSubmission(ctx, session)
	if err != nil {
		return err
	}
	if decision := EvaluateCooldown(now, last, cooldown); !decision.Allowed {
		return &util.RateLimitedError{Remaining: decision.Wait}
	}
	return nil
}

// lastSubmission 先查会话缓存，未命中再查库
func (s *SubmissionService) lastSubmission(ctx context.Context, session *util.Session) (*time.Time, error) {
	cached, err := s.Sessions.GetLastSubmission(ctx, session.ID)
	if err != nil {
		logger.Log.Warn("Session cache lookup failed", zap.String("session", session.ID), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}
	return s.Repo.LatestCreatedAt(ctx, session.UserID)
}

// discardEvidence 低步数提交不保留截图，失败只记录日志
func (s *SubmissionService) discardEvidence(ctx context.Context, sub *model.Submission) {
	if err := s.Storage.Delete(ctx, sub.FilePath); err != nil {
		logger.Log.Error("Failed to delete exempt evidence",
			zap.Uint("form_id", sub.ID),
			zap.String("file", sub.FilePath),
			zap.Error(err),
		)
		return
	}
	if err := s.Repo.ClearFilePath(ctx, sub.ID); err != nil {
		logger.Log.Error("Failed to clear evidence path",
			zap.Uint("form_id", sub.ID),
			zap.Error(err),
		)
		return
	}
	sub.FilePath = ""
}

// History 用户自己的提交，最新的在前
func (s *SubmissionService) History(ctx context.Context, userID uint) ([]model.Submission, error) {
	subs, err := s.Repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	subs = repository.QuarantineInvalid(subs)
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

// evidenceFilename {user}_{date}_{HHMMSS}_{rand6}，清洗后留出 ".jpg" 的长度
func evidenceFilename(userName, date string, at time.Time) string {
	suffix := strings.ReplaceAll(model.GenerateUUID(), "-", "")[:6]
	raw := fmt.Sprintf("%s_%s_%s_%s", userName, date, at.Format("150405"), suffix)
	return util.SecureFilename(raw, model.MaxFilePathLength-4)
}

func submissionOutcome(err error) string {
	if err == nil {
		return monitoring.SubmissionAccepted
	}
	if _, ok := util.AsRateLimited(err); ok {
		return monitoring.SubmissionRateLimited
	}
	if errors.Is(err, util.ErrStoreWriteFailed) {
		return monitoring.SubmissionFailed
	}
	return monitoring.SubmissionRejected
}
