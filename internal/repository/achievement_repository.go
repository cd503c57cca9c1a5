package repository

import (
	"context"
	"errors"

	"tutor_backend/internal/model"
	"tutor_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) ListCatalog(ctx context.Context, category, rarity string) ([]model.Achievement, error) {
	db := r.DB.WithContext(ctx).Where("is_active = ?", true)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if rarity != "" {
		db = db.Where("rarity = ?", rarity)
	}
	var items []model.Achievement
	err := db.Order("points asc, id asc").Find(&items).Error
	return items, storeErr(err)
}

// UnlockCounts 每个成就的解锁人数
func (r *AchievementRepository) UnlockCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		AchievementID string
		Total         int
	}
	err := r.DB.WithContext(ctx).Model(&model.UserAchievement{}).
		Select("achievement_id, COUNT(*) AS total").
		Where("is_completed = ?", true).
		Group("achievement_id").
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr(err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.AchievementID] = row.Total
	}
	return out, nil
}

func (r *AchievementRepository) ListUserAchievements(ctx context.Context, userID string) ([]model.UserAchievement, error) {
	var rows []model.UserAchievement
	err := r.DB.WithContext(ctx).Preload("Achievement").Where("user_id = ?", userID).Find(&rows).Error
	return rows, storeErr(err)
}

func (r *AchievementRepository) Recent(ctx context.Context, userID string, limit int) ([]model.UserAchievement, error) {
	var rows []model.UserAchievement
	err := r.DB.WithContext(ctx).Preload("Achievement").
		Where("user_id = ? AND is_completed = ?", userID, true).
		Order("completed_at desc").Limit(limit).Find(&rows).Error
	return rows, storeErr(err)
}

// Upsert 写入用户成就进度，已完成的记录不会被覆盖为未完成
func (r *AchievementRepository) Upsert(ctx context.Context, ua *model.UserAchievement) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.UserAchievement
		err := tx.Where("user_id = ? AND achievement_id = ?", ua.UserID, ua.AchievementID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(ua).Error
		}
		if err != nil {
			return err
		}
		if existing.IsCompleted {
			return nil
		}
		return tx.Model(&existing).Updates(map[string]interface{}{
			"current_value": ua.CurrentValue,
			"progress":      ua.Progress,
			"is_completed":  ua.IsCompleted,
			"completed_at":  ua.CompletedAt,
		}).Error
	})
	return storeErr(err)
}

func (r *AchievementRepository) MarkNotified(ctx context.Context, userID, achievementID string) error {
	res := r.DB.WithContext(ctx).Model(&model.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ? AND is_completed = ?", userID, achievementID, true).
		Update("is_notified", true)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		r.DB.WithContext(ctx).Model(&model.UserAchievement{}).
			Where("user_id = ? AND achievement_id = ? AND is_completed = ?", userID, achievementID, true).Count(&n)
		if n == 0 {
			return util.ErrAchievementNotFound
		}
	}
	return nil
}
