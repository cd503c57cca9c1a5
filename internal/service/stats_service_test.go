package service

import (
	"context"
	"testing"
	"time"

	"tutor_backend/internal/llm"
	"tutor_backend/internal/model"
	"tutor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mathQuestion = "¿Cómo resuelvo ecuaciones con funciones?"

func TestStats_Streaks(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	set := func(days ...string) map[string]bool {
		out := map[string]bool{}
		for _, d := range days {
			out[d] = true
		}
		return out
	}

	tests := []struct {
		name    string
		days    map[string]bool
		current int
		longest int
	}{
		{"empty", set(), 0, 0},
		{"today only", set("2026-03-10"), 1, 1},
		{"ends today", set("2026-03-10", "2026-03-09", "2026-03-08", "2026-03-05", "2026-03-04", "2026-03-03", "2026-03-02"), 3, 4},
		{"ends yesterday", set("2026-03-09", "2026-03-08"), 2, 2},
		{"broken two days ago", set("2026-03-08", "2026-03-07"), 0, 2},
		{"across month boundary", set("2026-03-01", "2026-02-28", "2026-02-27"), 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, longest := streaks(tt.days, now)
			assert.Equal(t, tt.current, current)
			assert.Equal(t, tt.longest, longest)
		})
	}
}

func moveSession(t *testing.T, f *fixture, id string, at time.Time) {
	t.Helper()
	err := f.db.Model(&model.ChatSession{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"created_at": at, "last_message_at": at}).Error
	require.NoError(t, err)
}

func TestStats_UserStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.MockReply{Text: "¿Qué sabes ya?"}, llm.MockReply{Text: "¿Y ahora?"})

	empty, err := f.stats.GetUserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, empty.SessionsCompleted)
	assert.Zero(t, empty.CurrentStreak)
	assert.Nil(t, empty.LastActivity)

	math, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.tutor.SubmitMessage(ctx, math.ID, "u1", mathQuestion, nil)
		require.NoError(t, err)
	}
	_, err = f.tutor.UpdateDuration(ctx, math.ID, "u1", 150)
	require.NoError(t, err)

	free, err := f.tutor.StartSession(ctx, "u1", nil, "Libre")
	require.NoError(t, err)
	moveSession(t, f, free.ID, time.Now().AddDate(0, 0, -1))

	stats, err := f.stats.GetUserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SessionsCompleted)
	assert.EqualValues(t, 2, stats.MessagesSent)
	assert.Equal(t, 3, stats.StudyTimeMinutes)
	assert.Equal(t, 1, stats.AverageSessionDuration)
	assert.Equal(t, 1, stats.TotalSubjects)
	assert.Equal(t, 2, stats.ConceptsLearned)
	assert.Equal(t, 2, stats.CurrentStreak)
	assert.Equal(t, 2, stats.LongestStreak)
	assert.NotNil(t, stats.LastActivity)

	// 停用的会话不计入统计
	require.NoError(t, f.tutor.EndSession(ctx, free.ID, "u1"))
	stats, err = f.stats.GetUserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SessionsCompleted)
	assert.Equal(t, 1, stats.CurrentStreak)

	other, err := f.stats.GetUserStats(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, other.SessionsCompleted)
	assert.Zero(t, other.MessagesSent)
}

func TestStats_AnalyticsAndCharts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.MockReply{Text: "¿Qué sabes ya?"})

	session, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)
	_, err = f.tutor.SubmitMessage(ctx, session.ID, "u1", mathQuestion, nil)
	require.NoError(t, err)

	analytics, err := f.stats.GetAnalytics(ctx, "u1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, analytics.Period)
	assert.Equal(t, 1, analytics.Summary.TotalSessions)
	assert.Equal(t, 2, analytics.Summary.TotalMessages)
	assert.Equal(t, 2, analytics.Summary.TotalConcepts)
	assert.Equal(t, 16, analytics.Trends.EngagementScore)
	assert.Equal(t, 100, analytics.Trends.SessionsGrowth)
	assert.Equal(t, "improving", analytics.Trends.Trend)
	require.Len(t, analytics.ActivityData, 1)
	assert.Equal(t, []string{"mathematics"}, analytics.ActivityData[0].Subjects)
	require.Len(t, analytics.SubjectBreakdown, 1)
	assert.Equal(t, "mathematics", analytics.SubjectBreakdown[0].SubjectID)
	assert.Equal(t, 1, analytics.SubjectBreakdown[0].Sessions)

	filtered, err := f.stats.GetAnalytics(ctx, "u1", PeriodWeek, []string{"history"})
	require.NoError(t, err)
	assert.Zero(t, filtered.Summary.TotalSessions)
	assert.Empty(t, filtered.SubjectBreakdown)

	_, err = f.stats.GetAnalytics(ctx, "u1", "decade", nil)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	points, err := f.stats.GetChartData(ctx, "u1", ChartMessages, PeriodAll)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 2, points[0].Value)
	assert.Equal(t, time.Now().UTC().Format(util.DateFormat), points[0].Date)

	_, err = f.stats.GetChartData(ctx, "u1", "pie", "")
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	// 会话移到上一个周期后，本月为空且趋势下降
	moveSession(t, f, session.ID, time.Now().AddDate(0, 0, -40))
	analytics, err = f.stats.GetAnalytics(ctx, "u1", PeriodMonth, nil)
	require.NoError(t, err)
	assert.Zero(t, analytics.Summary.TotalSessions)
	assert.Equal(t, -100, analytics.Trends.SessionsGrowth)
	assert.Equal(t, "declining", analytics.Trends.Trend)
	assert.Empty(t, analytics.ActivityData)
}

func TestStats_RecentSessionsAndDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)
	_, err = f.tutor.StartSession(ctx, "u1", strPtr("history"), "")
	require.NoError(t, err)
	_, err = f.tutor.UpdateDuration(ctx, first.ID, "u1", 600)
	require.NoError(t, err)

	recent, err := f.stats.GetRecentSessions(ctx, "u1", "", 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	recent, err = f.stats.GetRecentSessions(ctx, "u1", "mathematics", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, first.ID, recent[0].ID)
	assert.Equal(t, "Matemáticas", recent[0].Subject)
	assert.Equal(t, 10, recent[0].Duration)
	assert.NotNil(t, recent[0].ConceptsLearned)

	_, err = f.goals.CreateGoal(ctx, "u1", CreateGoalRequest{Title: "Repasar la Edad Media", TargetValue: 2})
	require.NoError(t, err)

	dashboard, err := f.stats.GetDashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, dashboard.Stats.SessionsCompleted)
	assert.Len(t, dashboard.Progress, 2)
	assert.Len(t, dashboard.ActiveGoals, 1)
	require.Len(t, dashboard.DailyActivity, dashboardDays)
	today := dashboard.DailyActivity[dashboardDays-1]
	assert.Equal(t, time.Now().UTC().Format(util.DateFormat), today.Date)
	assert.Equal(t, 2, today.Sessions)
	assert.Equal(t, []string{"history", "mathematics"}, today.Subjects)
	assert.Zero(t, dashboard.DailyActivity[0].Sessions)
}
