package controller

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/testutil"
	"step_tracker_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminEnv struct {
	*testEnv
	admin      *model.User
	adminToken string
	member     *model.User
}

func newAdminEnv(t *testing.T) *adminEnv {
	t.Helper()
	env := newTestEnv(t)
	admin := env.createUser(t, "root", "admin-password", true)
	member := env.createUser(t, "alice", "password-1", false)
	return &adminEnv{testEnv: env, admin: admin, adminToken: env.tokenFor(t, admin), member: member}
}

// submitWithEvidence 通过接口提交，返回新记录
func (e *adminEnv) submitWithEvidence(t *testing.T, steps int) *model.Submission {
	t.Helper()
	w := e.do(submissionRequest(t, "2024-11-03", fmt.Sprint(steps), testPNG(t, 12, 12)), e.tokenFor(t, e.member))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result struct {
		Submission model.Submission `json:"submission"`
	}
	decode(t, w, &result)
	e.clock.Advance(10 * time.Minute)
	return &result.Submission
}

func TestAdminController_RequiresAdmin(t *testing.T) {
	env := newAdminEnv(t)
	memberToken := env.tokenFor(t, env.member)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/queue", nil), memberToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 令牌里的管理员标志不作数，以库中为准
	forged, err := util.GenerateJWT(env.member.ID, env.member.Name, true, testSecret, time.Hour)
	require.NoError(t, err)
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/admin/queue", nil), forged)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 撤销管理员后旧令牌立即失效
	require.NoError(t, env.users.SetAdmin(context.Background(), env.admin.Name, false))
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/admin/queue", nil), env.adminToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminController_QueueAndVerify(t *testing.T) {
	env := newAdminEnv(t)
	high := env.submitWithEvidence(t, 20000)
	env.submitWithEvidence(t, 12000)

	var queue []model.SubmissionWithUser
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/queue", nil), env.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &queue)
	require.Len(t, queue, 1)
	assert.Equal(t, high.ID, queue[0].ID)
	assert.Equal(t, "alice", queue[0].UserName)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/admin/queue/export.csv", nil), env.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")

	w = env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/admin/submissions/%d/image", high.ID), nil), env.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, util.MimeJPEG, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0xFF, 0xD8}))

	verifyPath := fmt.Sprintf("/api/admin/submissions/%d/verify", high.ID)
	w = env.do(httptest.NewRequest(http.MethodPost, verifyPath, nil), env.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodPost, verifyPath, nil), env.adminToken)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/admin/queue", nil), env.adminToken)
	decode(t, w, &queue)
	assert.Empty(t, queue)
}

func TestAdminController_BadIDAndMissing(t *testing.T) {
	env := newAdminEnv(t)

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/admin/submissions/abc/verify", nil), env.adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/admin/submissions/999/verify", nil), env.adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/admin/submissions/999/image", nil), env.adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminController_DeleteIsTwoStep(t *testing.T) {
	env := newAdminEnv(t)
	sub := env.submitWithEvidence(t, 18000)

	w := env.do(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/admin/submissions/%d/delete", sub.ID), nil), env.adminToken)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var pending model.PendingAction
	decode(t, w, &pending)
	require.NotEmpty(t, pending.Token)

	_, err := env.submissions.FindByID(context.Background(), sub.ID)
	require.NoError(t, err, "nothing is deleted before confirmation")

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/admin/confirmations/"+pending.Token, nil), env.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err = env.submissions.FindByID(context.Background(), sub.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
	files, err := env.storage.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)

	// 令牌只能使用一次
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/admin/confirmations/"+pending.Token, nil), env.adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminController_CancelAndExpiry(t *testing.T) {
	env := newAdminEnv(t)
	sub := env.submitWithEvidence(t, 18000)
	path := fmt.Sprintf("/api/admin/submissions/%d/delete", sub.ID)

	var pending model.PendingAction
	w := env.do(httptest.NewRequest(http.MethodPost, path, nil), env.adminToken)
	decode(t, w, &pending)
	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/admin/confirmations/"+pending.Token, nil), env.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/admin/confirmations/"+pending.Token, nil), env.adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodPost, path, nil), env.adminToken)
	decode(t, w, &pending)
	env.clock.Advance(env.rules.Get().ConfirmationTTL)
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/admin/confirmations/"+pending.Token, nil), env.adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := env.submissions.FindByID(context.Background(), sub.ID)
	assert.NoError(t, err)
}

func TestAdminController_ResetRequiresPassword(t *testing.T) {
	env := newAdminEnv(t)
	env.submitWithEvidence(t, 18000)
	testutil.CreateSubmission(t, env.db, model.Submission{UserID: env.member.ID, Date: "2024-11-01", StepCount: 3000})

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/admin/reset", nil), env.adminToken)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var pending model.PendingAction
	decode(t, w, &pending)
	assert.Equal(t, model.PendingReset, pending.Kind)

	confirmPath := "/api/admin/confirmations/" + pending.Token
	w = env.do(jsonRequest(t, http.MethodPost, confirmPath, ConfirmRequest{Password: "wrong"}), env.adminToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var result struct {
		DeletedSubmissions int64 `json:"deletedSubmissions"`
		DeletedFiles       int   `json:"deletedFiles"`
	}
	w = env.do(jsonRequest(t, http.MethodPost, confirmPath, ConfirmRequest{Password: "admin-password"}), env.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &result)
	assert.Equal(t, int64(2), result.DeletedSubmissions)
	assert.Equal(t, 1, result.DeletedFiles)

	var count int64
	require.NoError(t, env.db.Model(&model.Submission{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAdminController_EvidenceZIP(t *testing.T) {
	env := newAdminEnv(t)
	env.submitWithEvidence(t, 18000)
	env.submitWithEvidence(t, 25000)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/evidence.zip", nil), env.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "evidence.zip")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)
}
