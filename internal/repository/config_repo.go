package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// SchedulingConfigRepository 调度配置数据访问接口
type SchedulingConfigRepository interface {
	GetActive(ctx context.Context) (*model.SchedulingConfiguration, error)
	GetByVersion(ctx context.Context, version int) (*model.SchedulingConfiguration, error)
	List(ctx context.Context, offset, limit int) ([]model.SchedulingConfiguration, int64, error)
	MaxVersion(ctx context.Context) (int, error)
	CreateActive(ctx context.Context, cfg *model.SchedulingConfiguration) error
}

type schedulingConfigRepo struct {
	db *gorm.DB
}

// NewSchedulingConfigRepo 创建 SchedulingConfigRepository 实例
func NewSchedulingConfigRepo(db *gorm.DB) SchedulingConfigRepository {
	return &schedulingConfigRepo{db: db}
}

func (r *schedulingConfigRepo) GetActive(ctx context.Context) (*model.SchedulingConfiguration, error) {
	var cfg model.SchedulingConfiguration
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *schedulingConfigRepo) GetByVersion(ctx context.Context, version int) (*model.SchedulingConfiguration, error) {
	var cfg model.SchedulingConfiguration
	err := r.db.WithContext(ctx).
		Where("version = ?", version).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *schedulingConfigRepo) List(ctx context.Context, offset, limit int) ([]model.SchedulingConfiguration, int64, error) {
	var (
		configs []model.SchedulingConfiguration
		total   int64
	)
	if err := r.db.WithContext(ctx).Model(&model.SchedulingConfiguration{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).
		Order("version DESC").
		Offset(offset).Limit(limit).
		Find(&configs).Error
	return configs, total, err
}

func (r *schedulingConfigRepo) MaxVersion(ctx context.Context) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&model.SchedulingConfiguration{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	return max, err
}

// CreateActive 在同一事务内停用当前激活版本并写入新版本。
// 部分唯一索引 uniq_scheduling_config_active 兜底保证同一时刻只有一条激活记录。
func (r *schedulingConfigRepo) CreateActive(ctx context.Context, cfg *model.SchedulingConfiguration) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.SchedulingConfiguration{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		cfg.IsActive = true
		return tx.Create(cfg).Error
	})
}
