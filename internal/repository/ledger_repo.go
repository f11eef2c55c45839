package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	pkgerrors "github.com/MDx-Vision/nicehr-sub005/pkg/errors"
)

// LedgerRepository 周工时账本数据访问接口
type LedgerRepository interface {
	Get(ctx context.Context, consultantID string, weekStart time.Time) (*model.CommittedHoursLedger, error)
	Create(ctx context.Context, entry *model.CommittedHoursLedger) error
	Update(ctx context.Context, entry *model.CommittedHoursLedger) error
	ListByConsultant(ctx context.Context, consultantID string) ([]model.CommittedHoursLedger, error)
}

type ledgerRepo struct {
	db *gorm.DB
}

// NewLedgerRepo 创建 LedgerRepository 实例
func NewLedgerRepo(db *gorm.DB) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) Get(ctx context.Context, consultantID string, weekStart time.Time) (*model.CommittedHoursLedger, error) {
	var entry model.CommittedHoursLedger
	err := r.db.WithContext(ctx).
		Where("consultant_id = ? AND week_start = ?", consultantID, weekStart.Format("2006-01-02")).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepo) Create(ctx context.Context, entry *model.CommittedHoursLedger) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Update 带版本号的条件更新。RowsAffected 为 0 说明版本已被并发批次推进。
func (r *ledgerRepo) Update(ctx context.Context, entry *model.CommittedHoursLedger) error {
	oldVersion := entry.Version
	result := r.db.WithContext(ctx).
		Model(entry).
		Where("ledger_id = ? AND version = ?", entry.LedgerID, oldVersion).
		Updates(map[string]interface{}{
			"hours":   entry.Hours,
			"version": oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	entry.Version = oldVersion + 1
	return nil
}

func (r *ledgerRepo) ListByConsultant(ctx context.Context, consultantID string) ([]model.CommittedHoursLedger, error) {
	var entries []model.CommittedHoursLedger
	err := r.db.WithContext(ctx).
		Where("consultant_id = ?", consultantID).
		Order("week_start ASC").
		Find(&entries).Error
	return entries, err
}
