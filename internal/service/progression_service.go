package service

import (
	"context"
	"fmt"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/tutor"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/logger"
	"tutor_backend/pkg/monitoring"

	"go.uber.org/zap"
)

const maxCASRetries = 8

// AchievementEvaluator 在进度变化后重新计算成就
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID string) error
}

// ProgressionService 学科进度与经验等级
type ProgressionService struct {
	Repo      *repository.ProgressRepository
	Evaluator AchievementEvaluator
}

func NewProgressionService(repo *repository.ProgressRepository) *ProgressionService {
	return &ProgressionService{Repo: repo}
}

// CreditOptions 概念记入时顺带累加的计数
type CreditOptions struct {
	NewSession   bool
	MessageDelta int
}

// AwardXP 发放经验，等级只升不降
func (s *ProgressionService) AwardXP(ctx context.Context, userID, subjectID string, amount int) (*tutor.XPAward, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: negative xp amount", util.ErrInvalidInput)
	}

	p, err := s.Repo.Ensure(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		award := tutor.ApplyXP(p.XP, p.Level, amount)
		award.SubjectID = subjectID

		ok, err := s.Repo.UpdateCAS(ctx, p.ID, p.Version, map[string]interface{}{
			"xp":            award.CurrentXP,
			"level":         award.CurrentLevel,
			"last_activity": time.Now(),
		})
		if err != nil {
			return nil, err
		}
		if ok {
			monitoring.XPAwarded.WithLabelValues(subjectID).Add(float64(amount))
			if award.LeveledUp {
				monitoring.LevelUpCounter.WithLabelValues(subjectID).Inc()
			}
			s.notify(ctx, userID)
			return &award, nil
		}

		casBackoff(attempt)
		if p, err = s.Repo.Find(ctx, userID, subjectID); err != nil {
			return nil, err
		}
	}

	logger.Log.Warn("AwardXP gave up after concurrent updates", zap.String("user_id", userID), zap.String("subject_id", subjectID))
	return nil, util.ErrConflict
}

// CreditConcepts 合并去重后的概念并重算进度百分比
func (s *ProgressionService) CreditConcepts(ctx context.Context, userID, subjectID string, concepts []string, opts CreditOptions) (*model.SubjectProgress, error) {
	p, err := s.Repo.Ensure(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}

	counters := map[string]int{}
	if opts.NewSession {
		counters["total_sessions"] = 1
	}
	if opts.MessageDelta > 0 {
		counters["total_messages"] = opts.MessageDelta
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		merged, added := model.AppendUnique(p.ConceptsLearned, concepts...)
		if added == 0 {
			if err := s.Repo.Increment(ctx, p.ID, counters); err != nil {
				return nil, err
			}
			return s.finishCredit(ctx, userID, subjectID)
		}

		p.ConceptsLearned = merged
		p.RecomputeProgress()

		updates := map[string]interface{}{
			"concepts_learned": p.ConceptsLearned,
			"progress":         p.Progress,
			"last_activity":    time.Now(),
		}
		for column, delta := range counters {
			updates[column] = gormIncrement(column, delta)
		}

		ok, err := s.Repo.UpdateCAS(ctx, p.ID, p.Version, updates)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.finishCredit(ctx, userID, subjectID)
		}

		casBackoff(attempt)
		if p, err = s.Repo.Find(ctx, userID, subjectID); err != nil {
			return nil, err
		}
	}

	logger.Log.Warn("CreditConcepts gave up after concurrent updates", zap.String("user_id", userID), zap.String("subject_id", subjectID))
	return nil, util.ErrConflict
}

func (s *ProgressionService) finishCredit(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error) {
	s.notify(ctx, userID)
	return s.Repo.Find(ctx, userID, subjectID)
}

// CreditTime 累加学习时长，非正数忽略
func (s *ProgressionService) CreditTime(ctx context.Context, userID, subjectID string, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	p, err := s.Repo.Ensure(ctx, userID, subjectID)
	if err != nil {
		return err
	}
	if err := s.Repo.Increment(ctx, p.ID, map[string]int{"total_time_spent": seconds}); err != nil {
		return err
	}
	s.notify(ctx, userID)
	return nil
}

func (s *ProgressionService) GetProgress(ctx context.Context, userID string) ([]model.SubjectProgress, error) {
	return s.Repo.ListByUser(ctx, userID)
}

// GetSubjectProgress 尚无记录时返回零值进度，不落库
func (s *ProgressionService) GetSubjectProgress(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error) {
	p, err := s.Repo.Find(ctx, userID, subjectID)
	if err == nil {
		return p, nil
	}
	if !errorsIsNotFound(err) {
		return nil, err
	}
	return &model.SubjectProgress{
		UserID:          userID,
		SubjectID:       subjectID,
		ConceptsLearned: []string{},
		Level:           1,
	}, nil
}

func (s *ProgressionService) notify(ctx context.Context, userID string) {
	if s.Evaluator == nil {
		return
	}
	if err := s.Evaluator.Evaluate(ctx, userID); err != nil {
		logger.Log.Warn("Achievement evaluation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
