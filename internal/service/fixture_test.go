package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/repository"
	"step_tracker_backend/internal/testutil"
	"step_tracker_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var fixtureStart = time.Date(2024, 11, 3, 10, 15, 0, 0, time.UTC)

type fixture struct {
	db          *gorm.DB
	users       *repository.UserRepository
	submissions *repository.SubmissionRepository
	storage     *LocalStorageProvider
	sessions    *repository.MemorySessionStore
	rules       *RuleSet
	clock       *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	storage, err := NewLocalStorageProvider(t.TempDir())
	require.NoError(t, err)

	campaign := config.DefaultCampaign()
	campaign.Timezone = "UTC"

	clock := testutil.NewClock(fixtureStart)
	return &fixture{
		db:          db,
		users:       repository.NewUserRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		storage:     storage,
		sessions:    repository.NewMemorySessionStoreWithClock(clock.Now),
		rules:       NewRuleSet(campaign),
		clock:       clock,
	}
}

func (f *fixture) submissionService() *SubmissionService {
	svc := NewSubmissionService(f.submissions, f.storage, f.sessions, f.rules)
	svc.Now = f.clock.Now
	return svc
}

func (f *fixture) verificationService() *VerificationService {
	svc := NewVerificationService(f.submissions, f.users, f.storage, f.sessions, f.rules)
	svc.Now = f.clock.Now
	return svc
}

func (f *fixture) updateRules(t *testing.T, mutate func(c *config.CampaignConfig)) {
	t.Helper()
	c := f.rules.Get()
	mutate(&c)
	require.NoError(t, f.rules.Update(c))
}

// createUser 写入带真实 bcrypt 哈希的用户
func (f *fixture) createUser(t *testing.T, name, password string, admin bool) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{Name: name, Password: string(hash), IsAdmin: admin}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

// storeEvidence 直接放入一个截图文件
func (f *fixture) storeEvidence(t *testing.T, name string) {
	t.Helper()
	_, err := f.storage.Upload(context.Background(), name, bytes.NewReader([]byte("jpeg")), 4, util.MimeJPEG)
	require.NoError(t, err)
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	names, err := f.storage.List(context.Background())
	require.NoError(t, err)
	return names
}

func sessionFor(user *model.User, id string) *util.Session {
	return &util.Session{ID: id, UserID: user.ID, UserName: user.Name, IsAdmin: user.IsAdmin}
}

// pngBytes 生成带透明区域的 PNG
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.NRGBA{R: 200, G: 20, B: 20, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
