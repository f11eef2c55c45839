package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// ShiftRepository 班次投影数据访问接口（只读，状态除外）
type ShiftRepository interface {
	GetByID(ctx context.Context, id string) (*model.Shift, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Shift, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Shift, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type shiftRepo struct {
	db *gorm.DB
}

// NewShiftRepo 创建 ShiftRepository 实例
func NewShiftRepo(db *gorm.DB) ShiftRepository {
	return &shiftRepo{db: db}
}

func (r *shiftRepo) GetByID(ctx context.Context, id string) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Preload("Hospital").
		Where("shift_id = ?", id).
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Shift, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var shifts []model.Shift
	err := r.db.WithContext(ctx).
		Preload("Hospital").
		Where("shift_id IN ?", ids).
		Order("start_at ASC, shift_id ASC").
		Find(&shifts).Error
	return shifts, err
}

func (r *shiftRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.Shift, error) {
	var shifts []model.Shift
	err := r.db.WithContext(ctx).
		Preload("Hospital").
		Where("start_at >= ? AND start_at < ?", from, to).
		Order("start_at ASC, shift_id ASC").
		Find(&shifts).Error
	return shifts, err
}

func (r *shiftRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Where("shift_id = ?", id).
		Update("status", status).Error
}
