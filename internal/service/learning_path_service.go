package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/logger"
	"tutor_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const defaultRecommendLimit = 6

type LearningPathService struct {
	Repo      *repository.LearningPathRepository
	Evaluator AchievementEvaluator
}

func NewLearningPathService(repo *repository.LearningPathRepository) *LearningPathService {
	return &LearningPathService{Repo: repo}
}

// PathFilter 路径列表查询参数
type PathFilter struct {
	Subjects   []string `form:"subject"`
	Difficulty string   `form:"difficulty"`
	Search     string   `form:"search"`
	Limit      int      `form:"limit"`
}

// ModuleProgressUpdate 模块进度上报
type ModuleProgressUpdate struct {
	Progress  int      `json:"progress"`
	TimeSpent int      `json:"timeSpent"`
	Score     *float64 `json:"score"`
	Failed    bool     `json:"failed"`
}

func (s *LearningPathService) ListPaths(ctx context.Context, filter PathFilter) ([]model.LearningPath, error) {
	return s.Repo.List(ctx, repository.PathQuery{
		Subjects:   filter.Subjects,
		Difficulty: filter.Difficulty,
		Search:     filter.Search,
		Limit:      filter.Limit,
	})
}

func (s *LearningPathService) GetPath(ctx context.Context, id string) (*model.LearningPath, error) {
	return s.Repo.FindByID(ctx, id)
}

// Recommend 推荐路径中排除已报名的，按目录顺序截断
func (s *LearningPathService) Recommend(ctx context.Context, userID string, limit int) ([]model.LearningPath, error) {
	if limit <= 0 {
		limit = defaultRecommendLimit
	}
	enrolled, err := s.Repo.EnrolledPathIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Repo.List(ctx, repository.PathQuery{
		Recommended: true,
		ExcludeIDs:  enrolled,
		Limit:       limit,
	})
}

// Enroll 幂等报名：已报名时原样返回
func (s *LearningPathService) Enroll(ctx context.Context, userID, pathID string) (*model.UserLearningPath, error) {
	path, err := s.Repo.FindByID(ctx, pathID)
	if err != nil {
		return nil, err
	}

	existing, err := s.Repo.FindEnrollment(ctx, userID, pathID)
	if err == nil {
		existing.Path = path
		return existing, nil
	}
	if !errors.Is(err, util.ErrEnrollmentNotFound) {
		return nil, err
	}

	now := time.Now()
	modules := make([]model.ModuleProgress, len(path.Modules))
	for i, m := range path.Modules {
		status := model.ModuleLocked
		if i == 0 {
			status = model.ModuleAvailable
		}
		modules[i] = model.ModuleProgress{ModuleID: m.ID, Status: status}
	}

	e := &model.UserLearningPath{
		UserID:           userID,
		PathID:           pathID,
		Status:           model.PathInProgress,
		CompletedModules: datatypes.JSONSlice[string]{},
		ModuleProgress:   modules,
		StartedAt:        now,
		LastActivity:     now,
	}
	if len(path.Modules) > 0 {
		e.CurrentModuleID = &path.Modules[0].ID
	}

	created, err := s.Repo.CreateEnrollment(ctx, e)
	if err != nil {
		return nil, err
	}
	if !created {
		if e, err = s.Repo.FindEnrollment(ctx, userID, pathID); err != nil {
			return nil, err
		}
	} else {
		logger.Log.Info("User enrolled in learning path", zap.String("user_id", userID), zap.String("path_id", pathID))
	}
	e.Path = path
	return e, nil
}

// GetUserProgress pathID 为空时返回全部报名
func (s *LearningPathService) GetUserProgress(ctx context.Context, userID string, pathID *string) ([]model.UserLearningPath, error) {
	if pathID == nil {
		return s.Repo.ListEnrollments(ctx, userID)
	}
	e, err := s.Repo.FindEnrollment(ctx, userID, *pathID)
	if err != nil {
		return nil, err
	}
	if e.Path, err = s.Repo.FindByID(ctx, *pathID); err != nil {
		return nil, err
	}
	return []model.UserLearningPath{*e}, nil
}

// UpdateModuleProgress 模块状态机，按报名记录的 version 串行化
func (s *LearningPathService) UpdateModuleProgress(ctx context.Context, userID, pathID, moduleID string, update ModuleProgressUpdate) (*model.UserLearningPath, error) {
	path, err := s.Repo.FindByID(ctx, pathID)
	if err != nil {
		return nil, err
	}
	index := -1
	for i, m := range path.Modules {
		if m.ID == moduleID {
			index = i
			break
		}
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		e, err := s.Repo.FindEnrollment(ctx, userID, pathID)
		if err != nil {
			return nil, err
		}
		if index < 0 {
			return nil, util.ErrModuleNotFound
		}

		version := e.Version
		completedNow, err := applyModuleProgress(e, path, index, update, time.Now())
		if err != nil {
			return nil, err
		}

		ok, err := s.Repo.UpdateEnrollmentCAS(ctx, e, version)
		if err != nil {
			return nil, err
		}
		if !ok {
			casBackoff(attempt)
			continue
		}

		if completedNow {
			monitoring.ModuleCompletedCounter.WithLabelValues(pathID).Inc()
			if s.Evaluator != nil {
				if err := s.Evaluator.Evaluate(ctx, userID); err != nil {
					logger.Log.Warn("Achievement evaluation failed", zap.String("user_id", userID), zap.Error(err))
				}
			}
		}
		e.Version = version + 1
		e.Path = path
		return e, nil
	}

	logger.Log.Warn("UpdateModuleProgress gave up after concurrent updates",
		zap.String("user_id", userID), zap.String("path_id", pathID))
	return nil, util.ErrConflict
}

// applyModuleProgress 在内存中推进状态机，返回该模块是否首次完成
func applyModuleProgress(e *model.UserLearningPath, path *model.LearningPath, index int, update ModuleProgressUpdate, now time.Time) (bool, error) {
	moduleID := path.Modules[index].ID
	modules := []model.ModuleProgress(e.ModuleProgress)

	pos := e.FindModule(moduleID)
	if pos < 0 {
		// 报名后新增的模块
		status := model.ModuleLocked
		if index == 0 || moduleStatus(modules, path.Modules[index-1].ID) == model.ModuleCompleted {
			status = model.ModuleAvailable
		}
		modules = append(modules, model.ModuleProgress{ModuleID: moduleID, Status: status})
		pos = len(modules) - 1
	}

	mp := &modules[pos]
	if mp.Status == model.ModuleLocked {
		return false, fmt.Errorf("%w: module %s", util.ErrModuleLocked, moduleID)
	}

	progress := min(max(update.Progress, 0), 100)
	timeSpent := max(update.TimeSpent, 0)

	mp.Attempts++
	mp.TimeSpent += timeSpent
	mp.LastAttempt = &now
	if update.Score != nil {
		score := *update.Score
		mp.Score = &score
		e.Score = &score
	}
	e.TotalTimeSpent += timeSpent

	completedNow := false
	if !mp.Status.Terminal() {
		switch {
		case progress >= 100:
			mp.Status = model.ModuleCompleted
			mp.Progress = 100
			mp.CompletedAt = &now
			completedNow = true
		case update.Failed:
			mp.Status = model.ModuleFailed
			mp.Progress = max(mp.Progress, progress)
		default:
			mp.Status = model.ModuleInProgress
			mp.Progress = max(mp.Progress, progress)
		}
	}

	if completedNow {
		completed, _ := model.AppendUnique(e.CompletedModules, moduleID)
		e.CompletedModules = completed
		if index+1 < len(path.Modules) {
			next := path.Modules[index+1].ID
			for i := range modules {
				if modules[i].ModuleID == next && modules[i].Status == model.ModuleLocked {
					modules[i].Status = model.ModuleAvailable
				}
			}
		}
	}
	e.ModuleProgress = modules

	done := 0
	for _, m := range path.Modules {
		if moduleStatus(modules, m.ID) == model.ModuleCompleted {
			done++
		}
	}
	total := len(path.Modules)
	if total > 0 {
		e.Progress = int(math.Round(float64(done) / float64(total) * 100))
	}

	if total > 0 && done == total {
		e.Status = model.PathCompleted
		if e.CompletedAt == nil {
			e.CompletedAt = &now
		}
		e.CurrentModuleID = &moduleID
	} else {
		if e.Status != model.PathPaused {
			e.Status = model.PathInProgress
		}
		for _, m := range path.Modules {
			st := moduleStatus(modules, m.ID)
			if st == model.ModuleAvailable || st == model.ModuleInProgress {
				id := m.ID
				e.CurrentModuleID = &id
				break
			}
		}
	}
	e.LastActivity = now
	return completedNow, nil
}

func moduleStatus(modules []model.ModuleProgress, moduleID string) model.ModuleStatus {
	for _, m := range modules {
		if m.ModuleID == moduleID {
			return m.Status
		}
	}
	return model.ModuleLocked
}
