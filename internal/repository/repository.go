package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Consultant ConsultantRepository
	Shift      ShiftRepository
	Batch      AssignmentBatchRepository
	Assignment AssignmentRepository
	Ledger     LedgerRepository
	Config     SchedulingConfigRepository
	Audit      AuditRepository
	Outbox     OutboxRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		Consultant: NewConsultantRepo(db),
		Shift:      NewShiftRepo(db),
		Batch:      NewAssignmentBatchRepo(db),
		Assignment: NewAssignmentRepo(db),
		Ledger:     NewLedgerRepo(db),
		Config:     NewSchedulingConfigRepo(db),
		Audit:      NewAuditRepo(db),
		Outbox:     NewOutboxRepo(db),
	}
}

// Transaction 在单个数据库事务内执行 fn；fn 收到的聚合绑定事务连接。
// 批次确认/撤销等跨表写入必须经由此方法保证共同命运。
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		// 测试场景下 mock 聚合没有底层连接，直接执行
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
