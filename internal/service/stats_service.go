package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/util"
)

const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"

	ChartSessions  = "sessions"
	ChartMessages  = "messages"
	ChartStudyTime = "study_time"
	ChartSubjects  = "subjects"

	defaultRecentSessions = 10
	maxRecentSessions     = 50
	dashboardDays         = 30
	dashboardListSize     = 5
)

// StatsService 汇总会话、学科进度和学习路径，提供个人统计与图表数据
type StatsService struct {
	ChatRepo     *repository.ChatRepository
	ProgressRepo *repository.ProgressRepository
	PathRepo     *repository.LearningPathRepository
	GoalRepo     *repository.GoalRepository
	Achievements *AchievementService

	now func() time.Time
}

func NewStatsService(
	chatRepo *repository.ChatRepository,
	progressRepo *repository.ProgressRepository,
	pathRepo *repository.LearningPathRepository,
	goalRepo *repository.GoalRepository,
	achievements *AchievementService,
) *StatsService {
	return &StatsService{
		ChatRepo:     chatRepo,
		ProgressRepo: progressRepo,
		PathRepo:     pathRepo,
		GoalRepo:     goalRepo,
		Achievements: achievements,
		now:          time.Now,
	}
}

type UserStats struct {
	SessionsCompleted      int        `json:"sessionsCompleted"`
	MessagesSent           int64      `json:"messagesSent"`
	StudyTimeMinutes       int        `json:"studyTimeMinutes"`
	CurrentStreak          int        `json:"currentStreak"`
	LongestStreak          int        `json:"longestStreak"`
	TotalSubjects          int        `json:"totalSubjects"`
	AverageSessionDuration int        `json:"averageSessionDuration"`
	ConceptsLearned        int        `json:"conceptsLearned"`
	ModulesCompleted       int        `json:"modulesCompleted"`
	PathsCompleted         int        `json:"pathsCompleted"`
	LastActivity           *time.Time `json:"lastActivity,omitempty"`
}

type DailyActivity struct {
	Date            string   `json:"date"`
	Sessions        int      `json:"sessions"`
	Messages        int      `json:"messages"`
	StudyTime       int      `json:"studyTime"`
	ConceptsLearned int      `json:"conceptsLearned"`
	Subjects        []string `json:"subjects"`
}

type Dashboard struct {
	Stats              *UserStats               `json:"stats"`
	Progress           []model.SubjectProgress  `json:"progress"`
	DailyActivity      []DailyActivity          `json:"dailyActivity"`
	RecentAchievements []model.UserAchievement  `json:"recentAchievements"`
	ActiveGoals        []model.Goal             `json:"activeGoals"`
	LearningPaths      []model.UserLearningPath `json:"learningPaths"`
}

type RecentSession struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SubjectID       *string   `json:"subjectId,omitempty"`
	Subject         string    `json:"subject,omitempty"`
	MessageCount    uint64    `json:"messageCount"`
	Duration        int       `json:"duration"`
	ConceptsLearned []string  `json:"conceptsLearned"`
	CreatedAt       time.Time `json:"createdAt"`
	LastMessageAt   time.Time `json:"lastMessageAt"`
}

type AnalyticsSummary struct {
	TotalSessions          int `json:"totalSessions"`
	TotalMessages          int `json:"totalMessages"`
	TotalStudyTime         int `json:"totalStudyTime"`
	TotalConcepts          int `json:"totalConcepts"`
	AverageSessionDuration int `json:"averageSessionDuration"`
	CurrentStreak          int `json:"currentStreak"`
	LongestStreak          int `json:"longestStreak"`
}

// AnalyticsTrends 与上一个等长周期对比的增长百分比
type AnalyticsTrends struct {
	SessionsGrowth  int    `json:"sessionsGrowth"`
	StudyTimeGrowth int    `json:"studyTimeGrowth"`
	ConceptsGrowth  int    `json:"conceptsGrowth"`
	EngagementScore int    `json:"engagementScore"`
	Trend           string `json:"trend"`
}

type SubjectBreakdown struct {
	SubjectID              string    `json:"subjectId"`
	Sessions               int       `json:"sessions"`
	Messages               int       `json:"messages"`
	ConceptsLearned        int       `json:"conceptsLearned"`
	TimeSpent              int       `json:"timeSpent"`
	AverageSessionDuration int       `json:"averageSessionDuration"`
	Level                  int       `json:"level"`
	XP                     int       `json:"xp"`
	Progress               float64   `json:"progress"`
	LastActivity           time.Time `json:"lastActivity"`
}

type Analytics struct {
	Period           string             `json:"period"`
	Summary          AnalyticsSummary   `json:"summary"`
	Trends           AnalyticsTrends    `json:"trends"`
	SubjectBreakdown []SubjectBreakdown `json:"subjectBreakdown"`
	ActivityData     []DailyActivity    `json:"activityData"`
}

type ChartPoint struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Date  string `json:"date"`
}

// sessionTotals 一组会话的合计，时长单位为秒
type sessionTotals struct {
	sessions int
	messages int
	seconds  int
	concepts map[string]struct{}
	subjects map[string]struct{}
}

func sumSessions(sessions []model.ChatSession) sessionTotals {
	t := sessionTotals{concepts: map[string]struct{}{}, subjects: map[string]struct{}{}}
	for _, s := range sessions {
		t.sessions++
		t.messages += int(s.MessageCount)
		t.seconds += s.Duration
		for _, c := range s.ConceptsLearned {
			t.concepts[c] = struct{}{}
		}
		if s.SubjectID != nil {
			t.subjects[*s.SubjectID] = struct{}{}
		}
	}
	return t
}

func (t sessionTotals) minutes() int {
	return int(math.Round(float64(t.seconds) / 60))
}

func (t sessionTotals) averageMinutes() int {
	if t.sessions == 0 {
		return 0
	}
	return int(math.Round(float64(t.seconds) / 60 / float64(t.sessions)))
}

func (s *StatsService) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	sessions, err := s.ChatRepo.StatSessions(ctx, userID, repository.SessionFilter{})
	if err != nil {
		return nil, err
	}
	sent, err := s.ChatRepo.CountUserMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	modules, err := s.PathRepo.CompletedModuleCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.PathRepo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals := sumSessions(sessions)
	current, longest := streaks(activityDays(sessions), s.now())

	stats := &UserStats{
		SessionsCompleted:      totals.sessions,
		MessagesSent:           sent,
		StudyTimeMinutes:       totals.minutes(),
		CurrentStreak:          current,
		LongestStreak:          longest,
		TotalSubjects:          len(totals.subjects),
		AverageSessionDuration: totals.averageMinutes(),
		ConceptsLearned:        len(totals.concepts),
		ModulesCompleted:       modules,
	}
	for _, e := range enrollments {
		if e.Status == model.PathCompleted {
			stats.PathsCompleted++
		}
	}
	for _, session := range sessions {
		if stats.LastActivity == nil || session.UpdatedAt.After(*stats.LastActivity) {
			updated := session.UpdatedAt
			stats.LastActivity = &updated
		}
	}
	return stats, nil
}

func (s *StatsService) GetDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	stats, err := s.GetUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	progress, err := s.ProgressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	since := startOfDay(now).AddDate(0, 0, -(dashboardDays - 1))
	from := since.In(now.Location())
	sessions, err := s.ChatRepo.StatSessions(ctx, userID, repository.SessionFilter{Since: &from})
	if err != nil {
		return nil, err
	}

	achievements, err := s.Achievements.GetRecent(ctx, userID, dashboardListSize)
	if err != nil {
		return nil, err
	}
	goals, err := s.GoalRepo.FindByUserID(ctx, userID, model.GoalActive, dashboardListSize)
	if err != nil {
		return nil, err
	}
	paths, err := s.PathRepo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Stats:              stats,
		Progress:           progress,
		DailyActivity:      fillDays(buildActivity(sessions), since, dashboardDays),
		RecentAchievements: achievements,
		ActiveGoals:        goals,
		LearningPaths:      paths,
	}, nil
}

func (s *StatsService) GetRecentSessions(ctx context.Context, userID, subjectID string, limit int) ([]RecentSession, error) {
	if limit <= 0 {
		limit = defaultRecentSessions
	}
	limit = min(limit, maxRecentSessions)

	sessions, err := s.ChatRepo.RecentSessions(ctx, userID, subjectID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]RecentSession, 0, len(sessions))
	for _, session := range sessions {
		item := RecentSession{
			ID:              session.ID,
			Title:           session.Title,
			SubjectID:       session.SubjectID,
			MessageCount:    session.MessageCount,
			Duration:        int(math.Round(float64(session.Duration) / 60)),
			ConceptsLearned: []string(session.ConceptsLearned),
			CreatedAt:       session.CreatedAt,
			LastMessageAt:   session.UpdatedAt,
		}
		if item.ConceptsLearned == nil {
			item.ConceptsLearned = []string{}
		}
		if session.Subject != nil {
			item.Subject = session.Subject.Name
		}
		if session.LastMessageAt != nil {
			item.LastMessageAt = *session.LastMessageAt
		}
		result = append(result, item)
	}
	return result, nil
}

// GetAnalytics period 为空时按 month 处理，subjects 为空表示全部学科
func (s *StatsService) GetAnalytics(ctx context.Context, userID, period string, subjects []string) (*Analytics, error) {
	if period == "" {
		period = PeriodMonth
	}
	now := s.now()
	start, err := periodStart(period, now)
	if err != nil {
		return nil, err
	}

	sessions, err := s.ChatRepo.StatSessions(ctx, userID, repository.SessionFilter{Since: start, Subjects: subjects})
	if err != nil {
		return nil, err
	}
	current := sumSessions(sessions)

	// 连续天数不受周期限制
	all, err := s.ChatRepo.StatSessions(ctx, userID, repository.SessionFilter{Subjects: subjects})
	if err != nil {
		return nil, err
	}
	streak, longest := streaks(activityDays(all), now)

	analytics := &Analytics{
		Period: period,
		Summary: AnalyticsSummary{
			TotalSessions:          current.sessions,
			TotalMessages:          current.messages,
			TotalStudyTime:         current.minutes(),
			TotalConcepts:          len(current.concepts),
			AverageSessionDuration: current.averageMinutes(),
			CurrentStreak:          streak,
			LongestStreak:          longest,
		},
		Trends: AnalyticsTrends{
			EngagementScore: min(100, current.sessions*8+len(current.concepts)*4),
			Trend:           "stable",
		},
		ActivityData: buildActivity(sessions),
	}

	if start != nil {
		prevStart := start.Add(-now.Sub(*start))
		previous, err := s.ChatRepo.StatSessions(ctx, userID, repository.SessionFilter{Since: &prevStart, Until: start, Subjects: subjects})
		if err != nil {
			return nil, err
		}
		prev := sumSessions(previous)
		analytics.Trends.SessionsGrowth = growth(current.sessions, prev.sessions)
		analytics.Trends.StudyTimeGrowth = growth(current.seconds, prev.seconds)
		analytics.Trends.ConceptsGrowth = growth(len(current.concepts), len(prev.concepts))
		switch {
		case analytics.Trends.SessionsGrowth > 10:
			analytics.Trends.Trend = "improving"
		case analytics.Trends.SessionsGrowth < -10:
			analytics.Trends.Trend = "declining"
		}
	}

	progress, err := s.ProgressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	analytics.SubjectBreakdown = subjectBreakdown(progress, subjects)
	return analytics, nil
}

func (s *StatsService) GetChartData(ctx context.Context, userID, chartType, period string) ([]ChartPoint, error) {
	var value func(DailyActivity) int
	switch chartType {
	case ChartSessions:
		value = func(d DailyActivity) int { return d.Sessions }
	case ChartMessages:
		value = func(d DailyActivity) int { return d.Messages }
	case ChartStudyTime:
		value = func(d DailyActivity) int { return d.StudyTime }
	case ChartSubjects:
		value = func(d DailyActivity) int { return len(d.Subjects) }
	default:
		return nil, fmt.Errorf("%w: unknown chart type %q", util.ErrInvalidInput, chartType)
	}

	if period == "" {
		period = PeriodMonth
	}
	start, err := periodStart(period, s.now())
	if err != nil {
		return nil, err
	}
	sessions, err := s.ChatRepo.StatSessions(ctx, userID, repository.SessionFilter{Since: start})
	if err != nil {
		return nil, err
	}

	activity := buildActivity(sessions)
	points := make([]ChartPoint, 0, len(activity))
	for _, d := range activity {
		day, _ := time.Parse(util.DateFormat, d.Date)
		points = append(points, ChartPoint{Label: day.Format("Jan 2"), Value: value(d), Date: d.Date})
	}
	return points, nil
}

func periodStart(period string, now time.Time) (*time.Time, error) {
	var start time.Time
	switch period {
	case PeriodWeek:
		start = now.AddDate(0, 0, -7)
	case PeriodMonth:
		start = now.AddDate(0, -1, 0)
	case PeriodYear:
		start = now.AddDate(-1, 0, 0)
	case PeriodAll:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown period %q", util.ErrInvalidInput, period)
	}
	return &start, nil
}

func growth(current, previous int) int {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return int(math.Round(float64(current-previous) * 100 / float64(previous)))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// activityDays 会话创建日和最后一条消息所在日都算作活跃日
func activityDays(sessions []model.ChatSession) map[string]bool {
	days := make(map[string]bool)
	for _, s := range sessions {
		days[s.CreatedAt.UTC().Format(util.DateFormat)] = true
		if s.LastMessageAt != nil {
			days[s.LastMessageAt.UTC().Format(util.DateFormat)] = true
		}
	}
	return days
}

// streaks 当前连续天数从今天起算，今天没有活动时从昨天起算
func streaks(days map[string]bool, now time.Time) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	day := startOfDay(now)
	if !days[day.Format(util.DateFormat)] {
		day = day.AddDate(0, 0, -1)
	}
	for days[day.Format(util.DateFormat)] {
		current++
		day = day.AddDate(0, 0, -1)
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	run := 0
	var prev time.Time
	for i, k := range keys {
		d, err := time.Parse(util.DateFormat, k)
		if err != nil {
			continue
		}
		if i > 0 && d.Equal(prev.AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
		prev = d
	}
	return current, max(longest, current)
}

// buildActivity 按会话创建日聚合，日期升序
func buildActivity(sessions []model.ChatSession) []DailyActivity {
	byDay := make(map[string]*DailyActivity)
	subjects := make(map[string]map[string]struct{})

	for _, s := range sessions {
		key := s.CreatedAt.UTC().Format(util.DateFormat)
		d, ok := byDay[key]
		if !ok {
			d = &DailyActivity{Date: key, Subjects: []string{}}
			byDay[key] = d
			subjects[key] = map[string]struct{}{}
		}
		d.Sessions++
		d.Messages += int(s.MessageCount)
		d.StudyTime += int(math.Round(float64(s.Duration) / 60))
		d.ConceptsLearned += len(s.ConceptsLearned)
		if s.SubjectID != nil {
			if _, seen := subjects[key][*s.SubjectID]; !seen {
				subjects[key][*s.SubjectID] = struct{}{}
				d.Subjects = append(d.Subjects, *s.SubjectID)
			}
		}
	}

	result := make([]DailyActivity, 0, len(byDay))
	for _, d := range byDay {
		sort.Strings(d.Subjects)
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result
}

// fillDays 补齐 [since, since+days) 内没有活动的日期
func fillDays(activity []DailyActivity, since time.Time, days int) []DailyActivity {
	byDay := make(map[string]DailyActivity, len(activity))
	for _, d := range activity {
		byDay[d.Date] = d
	}

	result := make([]DailyActivity, 0, days)
	for i := 0; i < days; i++ {
		key := since.AddDate(0, 0, i).Format(util.DateFormat)
		if d, ok := byDay[key]; ok {
			result = append(result, d)
			continue
		}
		result = append(result, DailyActivity{Date: key, Subjects: []string{}})
	}
	return result
}

func subjectBreakdown(progress []model.SubjectProgress, subjects []string) []SubjectBreakdown {
	wanted := make(map[string]bool, len(subjects))
	for _, id := range subjects {
		wanted[id] = true
	}

	result := make([]SubjectBreakdown, 0, len(progress))
	for _, p := range progress {
		if len(wanted) > 0 && !wanted[p.SubjectID] {
			continue
		}
		minutes := int(math.Round(float64(p.TotalTimeSpent) / 60))
		avg := 0
		if p.TotalSessions > 0 {
			avg = int(math.Round(float64(p.TotalTimeSpent) / 60 / float64(p.TotalSessions)))
		}
		result = append(result, SubjectBreakdown{
			SubjectID:              p.SubjectID,
			Sessions:               p.TotalSessions,
			Messages:               p.TotalMessages,
			ConceptsLearned:        len(p.ConceptsLearned),
			TimeSpent:              minutes,
			AverageSessionDuration: avg,
			Level:                  p.Level,
			XP:                     p.XP,
			Progress:               p.Progress,
			LastActivity:           p.LastActivity,
		})
	}
	return result
}
