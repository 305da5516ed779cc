package service

import (
	"context"
	"fmt"
	"sort"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/repository"
	"step_tracker_backend/internal/util"
)

type LeaderboardView string

const (
	ViewAll    LeaderboardView = "all"
	ViewTop    LeaderboardView = "top"
	ViewBottom LeaderboardView = "bottom"
)

// LeaderboardLimit top / bottom 视图的条数
const LeaderboardLimit = 10

// ParseLeaderboardView 空字符串视为 all
func ParseLeaderboardView(s string) (LeaderboardView, bool) {
	switch LeaderboardView(s) {
	case "", ViewAll:
		return ViewAll, true
	case ViewTop:
		return ViewTop, true
	case ViewBottom:
		return ViewBottom, true
	}
	return "", false
}

type LeaderboardQuery struct {
	Date string
	View LeaderboardView
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserName   string `json:"userName"`
	TotalSteps int    `json:"totalSteps"`
}

type Leaderboard struct {
	Date    string             `json:"date,omitempty"`
	View    LeaderboardView    `json:"view"`
	Entries []LeaderboardEntry `json:"entries"`
	Leader  *LeaderboardEntry  `json:"leader,omitempty"`
}

// LeaderboardStore 排行榜依赖的读操作
type LeaderboardStore interface {
	AllWithUsers(ctx context.Context, date string) ([]model.SubmissionWithUser, error)
}

type LeaderboardService struct {
	Repo  LeaderboardStore
	Rules *RuleSet
}

func NewLeaderboardService(repo LeaderboardStore, rules *RuleSet) *LeaderboardService {
	return &LeaderboardService{Repo: repo, Rules: rules}
}

func (s *LeaderboardService) Leaderboard(ctx context.Context, q LeaderboardQuery) (*Leaderboard, error) {
	rules := s.Rules.Get()

	if q.Date != "" {
		if _, err := model.ParseDate(q.Date, rules.Location()); err != nil {
			return nil, fmt.Errorf("%w: %q is not YYYY-MM-DD", util.ErrInvalidDate, q.Date)
		}
	}
	if q.View == "" {
		q.View = ViewAll
	}

	rows, err := s.Repo.AllWithUsers(ctx, q.Date)
	if err != nil {
		return nil, err
	}
	rows = repository.QuarantineInvalidWithUsers(rows)

	return RankTotals(rows, q), nil
}

// RankTotals 按用户汇总步数并排名，同分按用户名排序
func RankTotals(rows []model.SubmissionWithUser, q LeaderboardQuery) *Leaderboard {
	totals := make(map[string]int)
	for _, r := range rows {
		totals[r.UserName] += r.StepCount
	}

	entries := make([]LeaderboardEntry, 0, len(totals))
	for name, total := range totals {
		entries = append(entries, LeaderboardEntry{UserName: name, TotalSteps: total})
	}

	ascending := q.View == ViewBottom
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalSteps != entries[j].TotalSteps {
			if ascending {
				return entries[i].TotalSteps < entries[j].TotalSteps
			}
			return entries[i].TotalSteps > entries[j].TotalSteps
		}
		return entries[i].UserName < entries[j].UserName
	})

	if q.View != ViewAll && len(entries) > LeaderboardLimit {
		entries = entries[:LeaderboardLimit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	board := &Leaderboard{Date: q.Date, View: q.View, Entries: entries}
	if q.View != ViewBottom && len(entries) > 0 {
		leader := entries[0]
		board.Leader = &leader
	}
	return board
}
