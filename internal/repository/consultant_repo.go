package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// ConsultantRepository 顾问投影数据访问接口（只读）
type ConsultantRepository interface {
	GetByID(ctx context.Context, id string) (*model.Consultant, error)
	List(ctx context.Context) ([]model.Consultant, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Consultant, error)
}

type consultantRepo struct {
	db *gorm.DB
}

// NewConsultantRepo 创建 ConsultantRepository 实例
func NewConsultantRepo(db *gorm.DB) ConsultantRepository {
	return &consultantRepo{db: db}
}

func (r *consultantRepo) GetByID(ctx context.Context, id string) (*model.Consultant, error) {
	var consultant model.Consultant
	err := r.db.WithContext(ctx).
		Preload("Skills").
		Preload("Certifications").
		Preload("Licenses").
		Preload("ComplianceItems").
		Where("consultant_id = ?", id).
		First(&consultant).Error
	if err != nil {
		return nil, err
	}
	return &consultant, nil
}

func (r *consultantRepo) List(ctx context.Context) ([]model.Consultant, error) {
	var consultants []model.Consultant
	err := r.db.WithContext(ctx).
		Preload("Skills").
		Preload("Certifications").
		Preload("Licenses").
		Preload("ComplianceItems").
		Order("consultant_id ASC").
		Find(&consultants).Error
	return consultants, err
}

func (r *consultantRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Consultant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var consultants []model.Consultant
	err := r.db.WithContext(ctx).
		Preload("Skills").
		Preload("Certifications").
		Preload("Licenses").
		Preload("ComplianceItems").
		Where("consultant_id IN ?", ids).
		Order("consultant_id ASC").
		Find(&consultants).Error
	return consultants, err
}
