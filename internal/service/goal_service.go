package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// GoalService 处理学习目标的业务逻辑
type GoalService struct {
	Repo *repository.GoalRepository
}

func NewGoalService(repo *repository.GoalRepository) *GoalService {
	return &GoalService{Repo: repo}
}

// CreateGoalRequest 创建学习目标的请求结构
type CreateGoalRequest struct {
	Title       string                `json:"title" binding:"required,max=255"`
	Description string                `json:"description" binding:"max=1000"`
	Type        model.GoalType        `json:"type"`
	TargetValue int                   `json:"targetValue" binding:"required,min=1"`
	Unit        string                `json:"unit" binding:"max=32"`
	Priority    model.GoalPriority    `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	Category    string                `json:"category" binding:"max=64"`
	Deadline    *time.Time            `json:"deadline"`
	Milestones  []model.GoalMilestone `json:"milestones"`
}

// UpdateGoalRequest 更新学习目标的请求结构，空字段不修改
type UpdateGoalRequest struct {
	Title       *string                `json:"title" binding:"omitempty,max=255"`
	Description *string                `json:"description" binding:"omitempty,max=1000"`
	TargetValue *int                   `json:"targetValue" binding:"omitempty,min=1"`
	Unit        *string                `json:"unit"`
	Priority    *model.GoalPriority    `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	Category    *string                `json:"category"`
	Deadline    *time.Time             `json:"deadline"`
	Milestones  *[]model.GoalMilestone `json:"milestones"`
}

// ListGoals 获取用户目标，status 为空时返回全部
func (s *GoalService) ListGoals(ctx context.Context, userID string, status model.GoalStatus, limit int) ([]model.Goal, error) {
	return s.Repo.FindByUserID(ctx, userID, status, limit)
}

func (s *GoalService) GetGoal(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	return s.Repo.FindByIDAndUserID(ctx, goalID, userID)
}

// CreateGoal 创建新的学习目标，默认 active / medium
func (s *GoalService) CreateGoal(ctx context.Context, userID string, req CreateGoalRequest) (*model.Goal, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrInvalidInput)
	}
	if req.TargetValue <= 0 {
		return nil, fmt.Errorf("%w: targetValue must be positive", util.ErrInvalidInput)
	}

	goal := &model.Goal{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Type:        req.Type,
		TargetValue: req.TargetValue,
		Unit:        req.Unit,
		Status:      model.GoalActive,
		Priority:    req.Priority,
		Category:    req.Category,
		Deadline:    req.Deadline,
		Milestones:  datatypes.JSONSlice[model.GoalMilestone](req.Milestones),
	}
	if goal.Type == "" {
		goal.Type = model.GoalCustom
	}
	if goal.Priority == "" {
		goal.Priority = model.PriorityMedium
	}
	if goal.Milestones == nil {
		goal.Milestones = datatypes.JSONSlice[model.GoalMilestone]{}
	}

	return goal, s.Repo.Create(ctx, goal)
}

// UpdateGoal 更新目标的描述性字段
func (s *GoalService) UpdateGoal(ctx context.Context, userID, goalID string, req UpdateGoalRequest) (*model.Goal, error) {
	goal, err := s.Repo.FindByIDAndUserID(ctx, goalID, userID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, fmt.Errorf("%w: title is required", util.ErrInvalidInput)
		}
		goal.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		goal.Description = *req.Description
	}
	if req.TargetValue != nil {
		if *req.TargetValue <= 0 {
			return nil, fmt.Errorf("%w: targetValue must be positive", util.ErrInvalidInput)
		}
		goal.TargetValue = *req.TargetValue
	}
	if req.Unit != nil {
		goal.Unit = *req.Unit
	}
	if req.Priority != nil {
		goal.Priority = *req.Priority
	}
	if req.Category != nil {
		goal.Category = *req.Category
	}
	if req.Deadline != nil {
		goal.Deadline = req.Deadline
	}
	if req.Milestones != nil {
		goal.Milestones = *req.Milestones
	}

	return goal, s.Repo.Update(ctx, goal)
}

// UpdateProgress 记录当前值，达到目标值时完成进行中的目标
func (s *GoalService) UpdateProgress(ctx context.Context, userID, goalID string, value int) (*model.Goal, error) {
	if value < 0 {
		return nil, fmt.Errorf("%w: progress must be non-negative", util.ErrInvalidInput)
	}
	goal, err := s.Repo.FindByIDAndUserID(ctx, goalID, userID)
	if err != nil {
		return nil, err
	}
	if goal.Status.Terminal() {
		return nil, fmt.Errorf("%w: goal is %s", util.ErrInvalidGoalTransition, goal.Status)
	}

	now := time.Now()
	goal.CurrentValue = value
	for i := range goal.Milestones {
		m := &goal.Milestones[i]
		if !m.Reached && value >= m.TargetValue {
			m.Reached = true
			m.ReachedAt = &now
		}
	}
	if goal.Status == model.GoalActive && value >= goal.TargetValue {
		goal.Status = model.GoalCompleted
		goal.CompletedAt = &now
	}

	return goal, s.Repo.Update(ctx, goal)
}

func (s *GoalService) CompleteGoal(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	return s.ChangeStatus(ctx, userID, goalID, model.GoalCompleted)
}

// ChangeStatus 非法迁移在修改前拒绝
func (s *GoalService) ChangeStatus(ctx context.Context, userID, goalID string, to model.GoalStatus) (*model.Goal, error) {
	goal, err := s.Repo.FindByIDAndUserID(ctx, goalID, userID)
	if err != nil {
		return nil, err
	}
	if !goal.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", util.ErrInvalidGoalTransition, goal.Status, to)
	}

	goal.Status = to
	if to == model.GoalCompleted {
		now := time.Now()
		goal.CompletedAt = &now
		if goal.CurrentValue < goal.TargetValue {
			goal.CurrentValue = goal.TargetValue
		}
	}
	return goal, s.Repo.Update(ctx, goal)
}

func (s *GoalService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	if _, err := s.Repo.FindByIDAndUserID(ctx, goalID, userID); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, goalID)
}

// ExpireOverdue 后台任务：截止时间已过的目标置为 expired
func (s *GoalService) ExpireOverdue(ctx context.Context) error {
	n, err := s.Repo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Log.Info("Expired overdue goals", zap.Int64("count", n))
	}
	return nil
}
