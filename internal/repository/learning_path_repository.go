package repository

import (
	"context"

	"tutor_backend/internal/model"
	"tutor_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LearningPathRepository struct {
	DB *gorm.DB
}

func NewLearningPathRepository(db *gorm.DB) *LearningPathRepository {
	return &LearningPathRepository{DB: db}
}

// PathQuery 路径列表过滤条件
type PathQuery struct {
	Subjects   []string
	Difficulty string
	Search     string
	// 仅推荐路径
	Recommended bool
	ExcludeIDs  []string
	Limit       int
}

func orderedModules(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order asc")
}

// List 按目录顺序返回路径及其模块
func (r *LearningPathRepository) List(ctx context.Context, q PathQuery) ([]model.LearningPath, error) {
	db := r.DB.WithContext(ctx).Model(&model.LearningPath{}).Preload("Modules", orderedModules)

	if len(q.Subjects) > 0 {
		db = db.Where("subject IN ?", q.Subjects)
	}
	if q.Difficulty != "" {
		db = db.Where("difficulty = ?", q.Difficulty)
	}
	if q.Search != "" {
		term := "%" + q.Search + "%"
		db = db.Where("title LIKE ? OR description LIKE ? OR tags LIKE ?", term, term, term)
	}
	if q.Recommended {
		db = db.Where("is_recommended = ?", true)
	}
	if len(q.ExcludeIDs) > 0 {
		db = db.Where("id NOT IN ?", q.ExcludeIDs)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var paths []model.LearningPath
	err := db.Order("created_at asc, id asc").Find(&paths).Error
	return paths, storeErr(err)
}

func (r *LearningPathRepository) FindByID(ctx context.Context, id string) (*model.LearningPath, error) {
	var path model.LearningPath
	err := r.DB.WithContext(ctx).Preload("Modules", orderedModules).Where("id = ?", id).First(&path).Error
	if err != nil {
		return nil, translate(err, util.ErrPathNotFound)
	}
	return &path, nil
}

func (r *LearningPathRepository) FindEnrollment(ctx context.Context, userID, pathID string) (*model.UserLearningPath, error) {
	var e model.UserLearningPath
	err := r.DB.WithContext(ctx).Where("user_id = ? AND path_id = ?", userID, pathID).First(&e).Error
	if err != nil {
		return nil, translate(err, util.ErrEnrollmentNotFound)
	}
	return &e, nil
}

func (r *LearningPathRepository) ListEnrollments(ctx context.Context, userID string) ([]model.UserLearningPath, error) {
	var rows []model.UserLearningPath
	err := r.DB.WithContext(ctx).
		Preload("Path").
		Preload("Path.Modules", orderedModules).
		Where("user_id = ?", userID).
		Order("last_activity desc").
		Find(&rows).Error
	return rows, storeErr(err)
}

func (r *LearningPathRepository) EnrolledPathIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.UserLearningPath{}).
		Where("user_id = ?", userID).Pluck("path_id", &ids).Error
	return ids, storeErr(err)
}

// CreateEnrollment 插入报名记录，仅在真正插入时原子递增报名人数
func (r *LearningPathRepository) CreateEnrollment(ctx context.Context, e *model.UserLearningPath) (bool, error) {
	created := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "path_id"}},
			DoNothing: true,
		}).Create(e)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Model(&model.LearningPath{}).Where("id = ?", e.PathID).
			UpdateColumn("enrollment_count", gorm.Expr("enrollment_count + ?", 1)).Error
	})
	return created, storeErr(err)
}

// UpdateEnrollmentCAS 在 version 未变化时整体写回可变字段
func (r *LearningPathRepository) UpdateEnrollmentCAS(ctx context.Context, e *model.UserLearningPath, version int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.UserLearningPath{}).
		Where("id = ? AND version = ?", e.ID, version).
		Updates(map[string]interface{}{
			"status":            e.Status,
			"progress":          e.Progress,
			"current_module_id": e.CurrentModuleID,
			"completed_modules": e.CompletedModules,
			"module_progress":   e.ModuleProgress,
			"total_time_spent":  e.TotalTimeSpent,
			"score":             e.Score,
			"last_activity":     e.LastActivity,
			"completed_at":      e.CompletedAt,
			"version":           gorm.Expr("version + ?", 1),
		})
	if res.Error != nil {
		return false, storeErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompletedModuleCount 用户在所有路径上完成的模块总数
func (r *LearningPathRepository) CompletedModuleCount(ctx context.Context, userID string) (int, error) {
	var rows []model.UserLearningPath
	err := r.DB.WithContext(ctx).Select("id", "completed_modules").Where("user_id = ?", userID).Find(&rows).Error
	if err != nil {
		return 0, storeErr(err)
	}
	n := 0
	for _, row := range rows {
		n += len(row.CompletedModules)
	}
	return n, nil
}

func (r *LearningPathRepository) CountPaths(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.LearningPath{}).Count(&n).Error
	return n, storeErr(err)
}
