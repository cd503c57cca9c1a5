package repository

import (
	"context"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/util"

	"gorm.io/gorm"
)

type GoalRepository struct {
	DB *gorm.DB
}

func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{DB: db}
}

func (r *GoalRepository) Create(ctx context.Context, goal *model.Goal) error {
	return storeErr(r.DB.WithContext(ctx).Create(goal).Error)
}

func (r *GoalRepository) Update(ctx context.Context, goal *model.Goal) error {
	return storeErr(r.DB.WithContext(ctx).Save(goal).Error)
}

func (r *GoalRepository) Delete(ctx context.Context, id string) error {
	return storeErr(r.DB.WithContext(ctx).Where("id = ?", id).Delete(&model.Goal{}).Error)
}

// FindByIDAndUserID 他人的目标同样视为不存在
func (r *GoalRepository) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Goal, error) {
	var goal model.Goal
	err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&goal).Error
	if err != nil {
		return nil, translate(err, util.ErrGoalNotFound)
	}
	return &goal, nil
}

func (r *GoalRepository) FindByUserID(ctx context.Context, userID string, status model.GoalStatus, limit int) ([]model.Goal, error) {
	db := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	var goals []model.Goal
	err := db.Order("created_at desc").Find(&goals).Error
	return goals, storeErr(err)
}

// ExpireOverdue 将截止时间已过的活跃/暂停目标置为过期
func (r *GoalRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.Goal{}).
		Where("status IN ? AND deadline IS NOT NULL AND deadline < ?",
			[]model.GoalStatus{model.GoalActive, model.GoalPaused}, now).
		Update("status", model.GoalExpired)
	return res.RowsAffected, storeErr(res.Error)
}
