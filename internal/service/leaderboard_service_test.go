package service

import (
	"context"
	"fmt"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(name, date string, steps int) model.SubmissionWithUser {
	return model.SubmissionWithUser{
		Submission: model.Submission{Date: date, StepCount: steps},
		UserName:   name,
	}
}

func names(entries []LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserName)
	}
	return out
}

func TestRankTotals_AllDescending(t *testing.T) {
	rows := []model.SubmissionWithUser{
		row("alice", "2024-11-03", 5000),
		row("bob", "2024-11-03", 9000),
		row("alice", "2024-11-04", 6000),
		row("carol", "2024-11-04", 9000),
	}

	board := RankTotals(rows, LeaderboardQuery{View: ViewAll})

	assert.Equal(t, []string{"alice", "bob", "carol"}, names(board.Entries))
	assert.Equal(t, 11000, board.Entries[0].TotalSteps)
	assert.Equal(t, []int{1, 2, 3}, []int{board.Entries[0].Rank, board.Entries[1].Rank, board.Entries[2].Rank})
	require.NotNil(t, board.Leader)
	assert.Equal(t, "alice", board.Leader.UserName)
}

func TestRankTotals_TopAndBottomLimit(t *testing.T) {
	var rows []model.SubmissionWithUser
	for i := 1; i <= 12; i++ {
		rows = append(rows, row(fmt.Sprintf("user%02d", i), "2024-11-03", i*1000))
	}

	top := RankTotals(rows, LeaderboardQuery{View: ViewTop})
	require.Len(t, top.Entries, LeaderboardLimit)
	assert.Equal(t, "user12", top.Entries[0].UserName)
	assert.Equal(t, "user03", top.Entries[9].UserName)
	assert.Equal(t, "user12", top.Leader.UserName)

	bottom := RankTotals(rows, LeaderboardQuery{View: ViewBottom})
	require.Len(t, bottom.Entries, LeaderboardLimit)
	assert.Equal(t, "user01", bottom.Entries[0].UserName)
	assert.Equal(t, 1, bottom.Entries[0].Rank)
	assert.Nil(t, bottom.Leader)

	all := RankTotals(rows, LeaderboardQuery{View: ViewAll})
	assert.Len(t, all.Entries, 12)
}

func TestRankTotals_Empty(t *testing.T) {
	board := RankTotals(nil, LeaderboardQuery{View: ViewAll})
	assert.Empty(t, board.Entries)
	assert.Nil(t, board.Leader)
}

func TestParseLeaderboardView(t *testing.T) {
	v, ok := ParseLeaderboardView("")
	assert.True(t, ok)
	assert.Equal(t, ViewAll, v)

	v, ok = ParseLeaderboardView("bottom")
	assert.True(t, ok)
	assert.Equal(t, ViewBottom, v)

	_, ok = ParseLeaderboardView("middle")
	assert.False(t, ok)
}

func TestLeaderboardService_DateFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", "password1", false)
	bob := f.createUser(t, "bob", "password1", false)

	f.db.Create(&model.Submission{UserID: alice.ID, Date: "2024-11-03", StepCount: 3000, CreatedAt: fixtureStart})
	f.db.Create(&model.Submission{UserID: bob.ID, Date: "2024-11-03", StepCount: 1000, CreatedAt: fixtureStart})
	f.db.Create(&model.Submission{UserID: bob.ID, Date: "2024-11-04", StepCount: 9000, CreatedAt: fixtureStart})
	f.db.Create(&model.Submission{UserID: alice.ID, Date: "2024-11-04", StepCount: 999999, CreatedAt: fixtureStart})

	svc := NewLeaderboardService(f.submissions, f.rules)

	board, err := svc.Leaderboard(ctx, LeaderboardQuery{})
	require.NoError(t, err)
	// 超出上限的记录被隔离
	assert.Equal(t, []string{"bob", "alice"}, names(board.Entries))
	assert.Equal(t, 10000, board.Entries[0].TotalSteps)

	board, err = svc.Leaderboard(ctx, LeaderboardQuery{Date: "2024-11-03", View: ViewTop})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names(board.Entries))
	assert.Equal(t, "2024-11-03", board.Date)

	_, err = svc.Leaderboard(ctx, LeaderboardQuery{Date: "Nov 3"})
	assert.ErrorIs(t, err, util.ErrInvalidDate)
}
