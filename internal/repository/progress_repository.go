package repository

import (
	"context"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Ensure 惰性创建 (用户, 学科) 进度行，并发创建时忽略冲突
func (r *ProgressRepository) Ensure(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error) {
	row := &model.SubjectProgress{
		UserID:          userID,
		SubjectID:       subjectID,
		ConceptsLearned: []string{},
		Level:           1,
		LastActivity:    time.Now(),
	}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "subject_id"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return r.Find(ctx, userID, subjectID)
}

func (r *ProgressRepository) Find(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error) {
	var p model.SubjectProgress
	err := r.DB.WithContext(ctx).Where("user_id = ? AND subject_id = ?", userID, subjectID).First(&p).Error
	if err != nil {
		return nil, translate(err, util.ErrNotFound)
	}
	return &p, nil
}

// ListByUser 按最近活动倒序
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]model.SubjectProgress, error) {
	var rows []model.SubjectProgress
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("last_activity desc").Find(&rows).Error
	return rows, storeErr(err)
}

// UpdateCAS 在 version 未变化时写入 updates，并递增 version
func (r *ProgressRepository) UpdateCAS(ctx context.Context, id uint, version int, updates map[string]interface{}) (bool, error) {
	updates["version"] = gorm.Expr("version + ?", 1)
	res := r.DB.WithContext(ctx).Model(&model.SubjectProgress{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return false, storeErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Increment 原子累加计数器，不参与比较并交换
func (r *ProgressRepository) Increment(ctx context.Context, id uint, counters map[string]int) error {
	updates := map[string]interface{}{"last_activity": time.Now()}
	for column, delta := range counters {
		if delta == 0 {
			continue
		}
		updates[column] = gorm.Expr(column+" + ?", delta)
	}
	return storeErr(r.DB.WithContext(ctx).Model(&model.SubjectProgress{}).Where("id = ?", id).Updates(updates).Error)
}

// Totals 汇总用户在所有学科上的进度，用于成就判定
type Totals struct {
	Sessions  int
	Messages  int
	Concepts  int
	TimeSpent int
	MaxLevel  int
}

func (r *ProgressRepository) Totals(ctx context.Context, userID string, subjectID string) (Totals, error) {
	rows, err := r.ListByUser(ctx, userID)
	if err != nil {
		return Totals{}, err
	}
	t := Totals{MaxLevel: 1}
	for _, p := range rows {
		if subjectID != "" && p.SubjectID != subjectID {
			continue
		}
		t.Sessions += p.TotalSessions
		t.Messages += p.TotalMessages
		t.Concepts += len(p.ConceptsLearned)
		t.TimeSpent += p.TotalTimeSpent
		if p.Level > t.MaxLevel {
			t.MaxLevel = p.Level
		}
	}
	return t, nil
}
