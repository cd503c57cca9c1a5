package service

import (
	"context"

	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// SubjectService 管理员维护学科配置，修改后使缓存失效
type SubjectService struct {
	Repo  *repository.SubjectRepository
	Cache *SubjectCache
}

func NewSubjectService(repo *repository.SubjectRepository, cache *SubjectCache) *SubjectService {
	return &SubjectService{Repo: repo, Cache: cache}
}

// UpdateSubjectRequest 空字段不修改
type UpdateSubjectRequest struct {
	Name         *string           `json:"name" binding:"omitempty,max=100"`
	Description  *string           `json:"description"`
	Icon         *string           `json:"icon" binding:"omitempty,max=50"`
	Color        *string           `json:"color" binding:"omitempty,max=20"`
	SystemPrompt *string           `json:"systemPrompt"`
	Difficulty   *model.Difficulty `json:"difficulty" binding:"omitempty,oneof=beginner intermediate advanced expert"`
	Concepts     *[]string         `json:"concepts"`
	IsActive     *bool             `json:"isActive"`
}

func (s *SubjectService) ListAll(ctx context.Context) ([]model.Subject, error) {
	return s.Repo.ListAll(ctx)
}

func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*model.Subject, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if req.SystemPrompt != nil {
		updates["system_prompt"] = *req.SystemPrompt
	}
	if req.Difficulty != nil {
		updates["difficulty"] = *req.Difficulty
	}
	if req.Concepts != nil {
		updates["concepts"] = datatypes.JSONSlice[string](*req.Concepts)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.Repo.Update(ctx, id, updates); err != nil {
			return nil, err
		}
		if err := s.Cache.Invalidate(ctx); err != nil {
			logger.Log.Warn("Subject cache refresh failed after update", zap.String("subject_id", id), zap.Error(err))
		}
	}
	return s.Repo.FindByID(ctx, id)
}
