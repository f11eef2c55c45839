package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// AuditRepository 审计日志数据访问接口（append-only）
type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
	BatchCreate(ctx context.Context, entries []model.AuditEntry) error
	List(ctx context.Context, category, refID string, offset, limit int) ([]model.AuditEntry, int64, error)
}

type auditRepo struct {
	db *gorm.DB
}

// NewAuditRepo 创建 AuditRepository 实例
func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, entry *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepo) BatchCreate(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *auditRepo) List(ctx context.Context, category, refID string, offset, limit int) ([]model.AuditEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.AuditEntry{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if refID != "" {
		query = query.Where("ref_id = ?", refID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []model.AuditEntry
	err := query.
		Order("created_at DESC, audit_id DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	return entries, total, err
}
