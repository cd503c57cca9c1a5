package service

import (
	"context"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/pkg/logger"

	"go.uber.org/zap"
)

const defaultRecentAchievements = 5

type AchievementService struct {
	Repo         *repository.AchievementRepository
	ProgressRepo *repository.ProgressRepository
	PathRepo     *repository.LearningPathRepository
}

func NewAchievementService(
	repo *repository.AchievementRepository,
	progressRepo *repository.ProgressRepository,
	pathRepo *repository.LearningPathRepository,
) *AchievementService {
	return &AchievementService{
		Repo:         repo,
		ProgressRepo: progressRepo,
		PathRepo:     pathRepo,
	}
}

type AchievementStatus string

const (
	AchievementCompleted  AchievementStatus = "completed"
	AchievementInProgress AchievementStatus = "in_progress"
	AchievementLocked     AchievementStatus = "locked"
)

// CatalogEntry 成就目录项及解锁人数
type CatalogEntry struct {
	model.Achievement
	UnlockedBy int `json:"unlockedBy"`
}

// UserAchievementView 用户视角的成就状态
type UserAchievementView struct {
	Achievement  model.Achievement `json:"achievement"`
	Status       AchievementStatus `json:"status"`
	CurrentValue int               `json:"currentValue"`
	Progress     int               `json:"progress"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	IsNotified   bool              `json:"isNotified"`
}

// UserAchievementSummary 按状态分组的用户成就
type UserAchievementSummary struct {
	Completed   []UserAchievementView `json:"completed"`
	InProgress  []UserAchievementView `json:"inProgress"`
	Locked      []UserAchievementView `json:"locked"`
	TotalPoints int                   `json:"totalPoints"`
}

func (s *AchievementService) ListCatalog(ctx context.Context, category, rarity string) ([]CatalogEntry, error) {
	items, err := s.Repo.ListCatalog(ctx, category, rarity)
	if err != nil {
		return nil, err
	}
	counts, err := s.Repo.UnlockCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0, len(items))
	for _, a := range items {
		out = append(out, CatalogEntry{Achievement: a, UnlockedBy: counts[a.ID]})
	}
	return out, nil
}

func (s *AchievementService) GetUserAchievements(ctx context.Context, userID string) (*UserAchievementSummary, error) {
	catalog, err := s.Repo.ListCatalog(ctx, "", "")
	if err != nil {
		return nil, err
	}
	rows, err := s.Repo.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.UserAchievement, len(rows))
	for _, r := range rows {
		byID[r.AchievementID] = r
	}

	summary := &UserAchievementSummary{
		Completed:  []UserAchievementView{},
		InProgress: []UserAchievementView{},
		Locked:     []UserAchievementView{},
	}
	for _, a := range catalog {
		view := UserAchievementView{Achievement: a, Status: AchievementLocked}
		if ua, ok := byID[a.ID]; ok {
			view.CurrentValue = ua.CurrentValue
			view.Progress = ua.Progress
			view.CompletedAt = ua.CompletedAt
			view.IsNotified = ua.IsNotified
			switch {
			case ua.IsCompleted:
				view.Status = AchievementCompleted
			case ua.CurrentValue > 0:
				view.Status = AchievementInProgress
			}
		}

		switch view.Status {
		case AchievementCompleted:
			summary.Completed = append(summary.Completed, view)
			summary.TotalPoints += a.Points
		case AchievementInProgress:
			summary.InProgress = append(summary.InProgress, view)
		default:
			summary.Locked = append(summary.Locked, view)
		}
	}
	return summary, nil
}

func (s *AchievementService) GetRecent(ctx context.Context, userID string, limit int) ([]model.UserAchievement, error) {
	if limit <= 0 {
		limit = defaultRecentAchievements
	}
	return s.Repo.Recent(ctx, userID, limit)
}

func (s *AchievementService) MarkNotified(ctx context.Context, userID, achievementID string) error {
	return s.Repo.MarkNotified(ctx, userID, achievementID)
}

// Evaluate 根据当前进度汇总重新计算所有成就
func (s *AchievementService) Evaluate(ctx context.Context, userID string) error {
	catalog, err := s.Repo.ListCatalog(ctx, "", "")
	if err != nil {
		return err
	}

	totals := map[string]repository.Totals{}
	totalsFor := func(subject string) (repository.Totals, error) {
		if t, ok := totals[subject]; ok {
			return t, nil
		}
		t, err := s.ProgressRepo.Totals(ctx, userID, subject)
		if err != nil {
			return t, err
		}
		totals[subject] = t
		return t, nil
	}

	modules := -1
	for _, a := range catalog {
		req := a.Requirement.Data()
		if req.Threshold <= 0 {
			continue
		}

		var value int
		if req.Kind == model.RequirementModules {
			if modules < 0 {
				if modules, err = s.PathRepo.CompletedModuleCount(ctx, userID); err != nil {
					return err
				}
			}
			value = modules
		} else {
			t, err := totalsFor(req.Subject)
			if err != nil {
				return err
			}
			value = requirementValue(req.Kind, t)
		}

		if value <= 0 {
			continue
		}

		ua := &model.UserAchievement{
			UserID:        userID,
			AchievementID: a.ID,
			CurrentValue:  value,
			Progress:      min(100, value*100/req.Threshold),
		}
		if value >= req.Threshold {
			now := time.Now()
			ua.IsCompleted = true
			ua.CompletedAt = &now
		}
		if err := s.Repo.Upsert(ctx, ua); err != nil {
			return err
		}
		if ua.IsCompleted {
			logger.Log.Debug("Achievement progress completed",
				zap.String("user_id", userID), zap.String("achievement_id", a.ID))
		}
	}
	return nil
}

func requirementValue(kind model.RequirementKind, t repository.Totals) int {
	switch kind {
	case model.RequirementSessions:
		return t.Sessions
	case model.RequirementMessages:
		return t.Messages
	case model.RequirementConcepts:
		return t.Concepts
	case model.RequirementLevel:
		return t.MaxLevel
	case model.RequirementTime:
		return t.TimeSpent
	}
	return 0
}
