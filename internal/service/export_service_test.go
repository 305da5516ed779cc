package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sort"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/util"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestWriteSubmissionsCSV_Golden(t *testing.T) {
	subs := []model.Submission{
		{ID: 2, Date: "2024-11-04", StepCount: 16000, FilePath: "alice_2024-11-04_081500_a1b2c3.jpg", CreatedAt: time.Date(2024, 11, 4, 8, 15, 0, 0, time.UTC)},
		{ID: 1, Date: "2024-11-03", StepCount: 4200, Verified: true, CreatedAt: time.Date(2024, 11, 3, 21, 0, 5, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSubmissionsCSV(&buf, subs))
	newGoldie(t).Assert(t, "user_export", buf.Bytes())
}

func TestWriteQueueCSV_Golden(t *testing.T) {
	rows := []model.SubmissionWithUser{
		{Submission: model.Submission{ID: 7, Date: "2024-11-03", StepCount: 30000, FilePath: "bob_2024-11-03_090000_000001.jpg"}, UserName: "bob"},
		{Submission: model.Submission{ID: 9, Date: "2024-11-03", StepCount: 15001, FilePath: "o_brien_2024-11-03_091000_00000f.jpg"}, UserName: "o'brien, jr"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteQueueCSV(&buf, rows))
	newGoldie(t).Assert(t, "queue_export", buf.Bytes())
}

func zipNames(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(content)
	}
	return out
}

func TestExportService_UserZIPSkipsMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", "password1", false)
	bob := f.createUser(t, "bob", "password1", false)

	f.storeEvidence(t, "alice_1.jpg")
	f.storeEvidence(t, "bob_1.jpg")
	f.db.Create(&model.Submission{UserID: alice.ID, Date: "2024-11-03", StepCount: 20000, FilePath: "alice_1.jpg", CreatedAt: fixtureStart})
	f.db.Create(&model.Submission{UserID: alice.ID, Date: "2024-11-04", StepCount: 20000, FilePath: "alice_missing.jpg", CreatedAt: fixtureStart})
	f.db.Create(&model.Submission{UserID: alice.ID, Date: "2024-11-05", StepCount: 500, CreatedAt: fixtureStart})
	f.db.Create(&model.Submission{UserID: bob.ID, Date: "2024-11-03", StepCount: 20000, FilePath: "bob_1.jpg", CreatedAt: fixtureStart})

	svc := NewExportService(f.submissionService(), f.verificationService(), f.storage)

	var buf bytes.Buffer
	n, err := svc.WriteUserZIP(ctx, alice.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]string{"alice_1.jpg": "jpeg"}, zipNames(t, buf.Bytes()))
}

func TestExportService_EvidenceZIPAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, "root", "admin-pass", true)
	alice := f.createUser(t, "alice", "password1", false)
	f.storeEvidence(t, "a.jpg")
	f.storeEvidence(t, "b.jpg")

	svc := NewExportService(f.submissionService(), f.verificationService(), f.storage)

	var buf bytes.Buffer
	_, err := svc.WriteEvidenceZIP(ctx, alice.ID, &buf)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	buf.Reset()
	n, err := svc.WriteEvidenceZIP(ctx, admin.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := zipNames(t, buf.Bytes())
	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, keys)
}

func TestExportService_UserCSVOnlyOwnRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", "password1", false)
	bob := f.createUser(t, "bob", "password1", false)
	f.db.Create(&model.Submission{UserID: alice.ID, Date: "2024-11-03", StepCount: 100, CreatedAt: fixtureStart})
	f.db.Create(&model.Submission{UserID: bob.ID, Date: "2024-11-03", StepCount: 200, CreatedAt: fixtureStart})

	svc := NewExportService(f.submissionService(), f.verificationService(), f.storage)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteUserCSV(ctx, alice.ID, &buf))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[1]), ",2024-11-03,100,,false,")
}
