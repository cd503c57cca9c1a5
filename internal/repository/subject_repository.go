package repository

import (
	"context"

	"tutor_backend/internal/model"
	"tutor_backend/internal/util"

	"gorm.io/gorm"
)

type SubjectRepository struct {
	DB *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{DB: db}
}

func (r *SubjectRepository) ListActive(ctx context.Context) ([]model.Subject, error) {
	var subjects []model.Subject
	err := r.DB.WithContext(ctx).Where("is_active = ?", true).Order("name asc").Find(&subjects).Error
	return subjects, storeErr(err)
}

func (r *SubjectRepository) ListAll(ctx context.Context) ([]model.Subject, error) {
	var subjects []model.Subject
	err := r.DB.WithContext(ctx).Order("name asc").Find(&subjects).Error
	return subjects, storeErr(err)
}

func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*model.Subject, error) {
	var subject model.Subject
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&subject).Error
	if err != nil {
		return nil, translate(err, util.ErrSubjectNotFound)
	}
	return &subject, nil
}

// Update 仅更新传入的字段，map 形式保证 false 值也会写入
func (r *SubjectRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	err := r.DB.WithContext(ctx).Model(&model.Subject{}).Where("id = ?", id).Updates(updates).Error
	return storeErr(err)
}
