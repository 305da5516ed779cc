package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/middleware"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/repository"
	"step_tracker_backend/internal/service"
	"step_tracker_backend/internal/testutil"
	"step_tracker_backend/internal/util"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "controller-test-secret-0123456789abcdef"

type testEnv struct {
	router      *gin.Engine
	db          *gorm.DB
	users       *repository.UserRepository
	submissions *repository.SubmissionRepository
	storage     *service.LocalStorageProvider
	rules       *service.RuleSet
	clock       *testutil.Clock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	storage, err := service.NewLocalStorageProvider(t.TempDir())
	require.NoError(t, err)

	campaign := config.DefaultCampaign()
	campaign.Timezone = "UTC"
	rules := service.NewRuleSet(campaign)
	clock := testutil.NewClock(time.Date(2024, 11, 3, 10, 15, 0, 0, time.UTC))

	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret, ExpireTime: time.Hour}, Campaign: campaign}

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	sessions := repository.NewMemorySessionStoreWithClock(clock.Now)

	authService := service.NewAuthService(userRepo, cfg)
	authService.Cost = bcrypt.MinCost
	userService := service.NewUserService(userRepo)
	submissionService := service.NewSubmissionService(submissionRepo, storage, sessions, rules)
	submissionService.Now = clock.Now
	progressService := service.NewProgressService(submissionRepo, rules)
	progressService.Now = clock.Now
	leaderboardService := service.NewLeaderboardService(submissionRepo, rules)
	verificationService := service.NewVerificationService(submissionRepo, userRepo, storage, sessions, rules)
	verificationService.Now = clock.Now
	exportService := service.NewExportService(submissionService, verificationService, storage)

	authController := NewAuthController(authService, userService)
	submissionController := NewSubmissionController(submissionService, exportService, rules)
	progressController := NewProgressController(progressService)
	leaderboardController := NewLeaderboardController(leaderboardService)
	adminController := NewAdminController(verificationService, exportService)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/register", authController.Register)
	api.POST("/login", authController.Login)

	auth := api.Group("")
	auth.Use(middleware.AuthMiddleware(testSecret))
	auth.GET("/profile", authController.GetProfile)
	auth.POST("/submissions", submissionController.Submit)
	auth.GET("/submissions", submissionController.List)
	auth.GET("/submissions/export.csv", submissionController.ExportCSV)
	auth.GET("/submissions/export.zip", submissionController.ExportZIP)
	auth.GET("/progress", progressController.GetProgress)
	auth.GET("/leaderboard", leaderboardController.GetLeaderboard)

	admin := auth.Group("/admin")
	admin.Use(middleware.AdminMiddleware(userRepo))
	admin.GET("/queue", adminController.GetQueue)
	admin.GET("/queue/export.csv", adminController.ExportQueueCSV)
	admin.GET("/evidence.zip", adminController.ExportEvidenceZIP)
	admin.GET("/submissions/:id/image", adminController.GetImage)
	admin.POST("/submissions/:id/verify", adminController.Verify)
	admin.POST("/submissions/:id/delete", adminController.RequestDelete)
	admin.POST("/reset", adminController.RequestReset)
	admin.POST("/confirmations/:token", adminController.Confirm)
	admin.DELETE("/confirmations/:token", adminController.Cancel)

	return &testEnv{
		router:      r,
		db:          db,
		users:       userRepo,
		submissions: submissionRepo,
		storage:     storage,
		rules:       rules,
		clock:       clock,
	}
}

func (e *testEnv) createUser(t *testing.T, name, password string, admin bool) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{Name: name, Password: string(hash), IsAdmin: admin}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user *model.User) string {
	t.Helper()
	token, err := util.GenerateJWT(user.ID, user.Name, user.IsAdmin, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// submissionRequest 构造 multipart 提交，image 为空时不带文件
func submissionRequest(t *testing.T, date, steps string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("date", date))
	require.NoError(t, mw.WriteField("steps", steps))
	if image != nil {
		part, err := mw.CreateFormFile("screenshot", "steps.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/submissions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: 144, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
